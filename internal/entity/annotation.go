package entity

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ErrEmptySegmentation is returned when a mask is drawn from an instance
// with an empty polygon.
var ErrEmptySegmentation = errors.New("empty segmentation")

// BBox is an axis aligned bounding box.
type BBox struct {
	MinX   float64 `json:"top_left_x"`
	MinY   float64 `json:"top_left_y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewBBoxFromCorners builds a box from its top left and bottom right
// corners.
func NewBBoxFromCorners(minX, minY, maxX, maxY float64) BBox {
	return BBox{MinX: minX, MinY: minY, Width: maxX - minX, Height: maxY - minY}
}

// BBoxFromPoly returns the smallest box containing the flat x,y polygon.
func BBoxFromPoly(polygon []float64) (BBox, error) {
	if len(polygon) < 2 || len(polygon)%2 != 0 {
		return BBox{}, fmt.Errorf("polygon must hold an even, non-zero number of values, got %d", len(polygon))
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i < len(polygon); i += 2 {
		minX = math.Min(minX, polygon[i])
		maxX = math.Max(maxX, polygon[i])
		minY = math.Min(minY, polygon[i+1])
		maxY = math.Max(maxY, polygon[i+1])
	}
	return NewBBoxFromCorners(minX, minY, maxX, maxY), nil
}

func (b BBox) MaxX() float64 { return b.MinX + b.Width }
func (b BBox) MaxY() float64 { return b.MinY + b.Height }

// Polygon returns the box as a closed polygon starting and ending at the
// top left corner, clockwise.
func (b BBox) Polygon() []float64 {
	return []float64{
		b.MinX, b.MinY,
		b.MaxX(), b.MinY,
		b.MaxX(), b.MaxY(),
		b.MinX, b.MaxY(),
		b.MinX, b.MinY,
	}
}

// Segmentation is a flat list of x,y polygon coordinates.
type Segmentation []float64

// Points splits the segmentation into x,y pairs. A trailing odd value is
// ignored.
func (s Segmentation) Points() [][2]float64 {
	points := make([][2]float64, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		points = append(points, [2]float64{s[i], s[i+1]})
	}
	return points
}

// SegmentationInstance is one annotated object of a class.
type SegmentationInstance struct {
	ClassID       uuid.UUID      `json:"class_id"`
	BBox          BBox           `json:"bbox"`
	Segmentations []Segmentation `json:"annotations"`
}

// Centroid is the mean of all polygon vertices of the instance.
func (s *SegmentationInstance) Centroid() (float64, float64) {
	var sumX, sumY float64
	var n int
	for _, seg := range s.Segmentations {
		for _, p := range seg.Points() {
			sumX += p[0]
			sumY += p[1]
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sumX / float64(n), sumY / float64(n)
}

// CenterSegmentations translates every polygon so the centroid lands on
// (x, y).
func (s *SegmentationInstance) CenterSegmentations(x, y float64) {
	cx, cy := s.Centroid()
	dx, dy := x-cx, y-cy

	for _, seg := range s.Segmentations {
		for i := 0; i+1 < len(seg); i += 2 {
			seg[i] += dx
			seg[i+1] += dy
		}
	}
}

// RotateSegmentations rotates every polygon around the centroid. Positive
// degrees rotate the same way image libraries rotate pixels, which is
// counter-clockwise on screen with y pointing down.
func (s *SegmentationInstance) RotateSegmentations(degrees float64) {
	cx, cy := s.Centroid()
	theta := -degrees * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)

	for _, seg := range s.Segmentations {
		for i := 0; i+1 < len(seg); i += 2 {
			x, y := seg[i]-cx, seg[i+1]-cy
			seg[i] = x*cos - y*sin + cx
			seg[i+1] = x*sin + y*cos + cy
		}
	}
}

// ImageAnnotation holds all instances annotated on one image.
type ImageAnnotation struct {
	Name      string                 `json:"name"`
	Width     float64                `json:"width"`
	Height    float64                `json:"height"`
	Instances []SegmentationInstance `json:"instances"`
}

// ImageDatasetClass is a label of an image dataset. A class may own more
// than one id when classes were merged.
type ImageDatasetClass struct {
	ClassIDs []uuid.UUID `json:"ids"`
	Label    string      `json:"class_name"`
	Color    string      `json:"color"`
}

// Classes is the ordered class list of an image dataset.
type Classes []ImageDatasetClass

// LabelIDForClassID returns the index of the class owning id.
func (c Classes) LabelIDForClassID(id uuid.UUID) (int, bool) {
	for i, class := range c {
		for _, classID := range class.ClassIDs {
			if classID == id {
				return i, true
			}
		}
	}
	return 0, false
}

// ClassByLabel returns the class with the given label.
func (c Classes) ClassByLabel(label string) (ImageDatasetClass, bool) {
	for _, class := range c {
		if class.Label == label {
			return class, true
		}
	}
	return ImageDatasetClass{}, false
}
