package entity

import "time"

// MetricType is the value type of a metric axis.
type MetricType string

const (
	MetricTypeInt      MetricType = "int"
	MetricTypeFloat    MetricType = "float"
	MetricTypeString   MetricType = "string"
	MetricTypeDateTime MetricType = "dateTime"
	MetricTypePercent  MetricType = "percent"
)

// Range bounds a metric axis.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Metric describes a chart an experiment reports values to.
type Metric struct {
	Name   string     `json:"name"`
	XLabel string     `json:"x_label"`
	XType  MetricType `json:"x_type"`
	YLabel string     `json:"y_label"`
	YType  MetricType `json:"y_type"`
	XRange *Range     `json:"x_range"`
	YRange *Range     `json:"y_range"`
}

// NewMetric builds a metric with optional axis ranges.
func NewMetric(name, xLabel string, xType MetricType, yLabel string, yType MetricType, xRange, yRange *Range) Metric {
	return Metric{
		Name:   name,
		XLabel: xLabel,
		XType:  xType,
		YLabel: yLabel,
		YType:  yType,
		XRange: xRange,
		YRange: yRange,
	}
}

// MetricValue is one point of a metric.
type MetricValue struct {
	X float64
	Y float64
}

type metricPoint struct {
	Timestamp float64 `json:"timestamp"`
	Metric    string  `json:"metric"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
