package entity

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
)

// fillPolygon sets every pixel of img whose center lies inside the
// polygon to value, using the even-odd rule.
func fillPolygon(img *image.Gray, points [][2]float64, value uint8) {
	if len(points) < 3 {
		return
	}

	bounds := img.Bounds()
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		minY = math.Min(minY, p[1])
		maxY = math.Max(maxY, p[1])
	}

	startRow := max(bounds.Min.Y, int(math.Floor(minY)))
	endRow := min(bounds.Max.Y-1, int(math.Ceil(maxY)))

	xs := make([]float64, 0, len(points))
	for row := startRow; row <= endRow; row++ {
		y := float64(row) + 0.5

		xs = xs[:0]
		for i := range points {
			a, b := points[i], points[(i+1)%len(points)]
			if (a[1] <= y && b[1] > y) || (b[1] <= y && a[1] > y) {
				xs = append(xs, a[0]+(y-a[1])*(b[0]-a[0])/(b[1]-a[1]))
			}
		}
		sort.Float64s(xs)

		for i := 0; i+1 < len(xs); i += 2 {
			from := max(bounds.Min.X, int(math.Ceil(xs[i]-0.5)))
			to := min(bounds.Max.X-1, int(math.Ceil(xs[i+1]-0.5))-1)
			for col := from; col <= to; col++ {
				img.SetGray(col, row, color.Gray{Y: value})
			}
		}
	}
}

func newMask(width, height int) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid mask size %dx%d", width, height)
	}
	return image.NewGray(image.Rect(0, 0, width, height)), nil
}

// SegmentationMask draws every polygon of the instance with value 1.
func (s *SegmentationInstance) SegmentationMask(width, height int) (*image.Gray, error) {
	mask, err := newMask(width, height)
	if err != nil {
		return nil, err
	}
	for _, seg := range s.Segmentations {
		fillPolygon(mask, seg.Points(), 1)
	}
	return mask, nil
}

// BinaryMask is SegmentationMask with every non-zero pixel set to 1.
func (s *SegmentationInstance) BinaryMask(width, height int) (*image.Gray, error) {
	mask, err := s.SegmentationMask(width, height)
	if err != nil {
		return nil, err
	}
	for i, v := range mask.Pix {
		if v > 0 {
			mask.Pix[i] = 1
		}
	}
	return mask, nil
}

// SegmentationMask draws all instances whose class is in classes. Pixels
// take the class label index plus one so zero stays background. Instances
// of unknown classes are skipped.
func (a *ImageAnnotation) SegmentationMask(classes Classes) (*image.Gray, error) {
	mask, err := newMask(int(a.Width), int(a.Height))
	if err != nil {
		return nil, err
	}

	for _, instance := range a.Instances {
		labelID, ok := classes.LabelIDForClassID(instance.ClassID)
		if !ok {
			continue
		}
		if labelID+1 > math.MaxUint8 {
			return nil, fmt.Errorf("class label index %d does not fit a grayscale mask", labelID)
		}

		for _, seg := range instance.Segmentations {
			if len(seg) == 0 {
				return nil, fmt.Errorf("instance of class %s: %w", instance.ClassID, ErrEmptySegmentation)
			}
			fillPolygon(mask, seg.Points(), uint8(labelID+1))
		}
	}
	return mask, nil
}
