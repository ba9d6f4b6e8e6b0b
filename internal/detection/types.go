package detection

import (
	"image"
	"math"
	"sort"
)

// Box is an axis-aligned bounding box in image pixel coordinates.
type Box struct {
	X0, Y0 float32 // top-left
	X1, Y1 float32 // bottom-right
}

// Width returns box width.
func (b Box) Width() float32 {
	return b.X1 - b.X0
}

// Height returns box height.
func (b Box) Height() float32 {
	return b.Y1 - b.Y0
}

// Area returns box area, 0 for degenerate boxes.
func (b Box) Area() float32 {
	if b.X1 <= b.X0 || b.Y1 <= b.Y0 {
		return 0
	}
	return b.Width() * b.Height()
}

// Rect rounds the box to integer pixel bounds.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(float64(b.X0))),
		int(math.Floor(float64(b.Y0))),
		int(math.Ceil(float64(b.X1))),
		int(math.Ceil(float64(b.Y1))),
	)
}

// Clamp limits the box to [0,width] x [0,height].
func (b Box) Clamp(width, height int) Box {
	return Box{
		X0: clamp(b.X0, 0, float32(width)),
		Y0: clamp(b.Y0, 0, float32(height)),
		X1: clamp(b.X1, 0, float32(width)),
		Y1: clamp(b.Y1, 0, float32(height)),
	}
}

// Confidence pairs the winning class of a box with its probability.
type Confidence struct {
	Prob  float32
	Class int
}

// Detection is one result before it is written into OutputBuffers.
type Detection struct {
	Box        Box
	Confidence Confidence
	// Scores is the full class distribution; nil means one-hot on
	// Confidence.Class.
	Scores []float32
}

// sortByClass orders detections by class, then by descending probability.
func sortByClass(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		a, b := dets[i].Confidence, dets[j].Confidence
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		return a.Prob > b.Prob
	})
}

// write copies dets into out, truncated to limit and to the buffer capacity,
// and returns the number of entries written.
func write(out *OutputBuffers, dets []Detection, limit int) int {
	n := len(dets)
	if limit < n {
		n = limit
	}
	if c := out.Capacity(); c < n {
		n = c
	}

	for i := 0; i < n; i++ {
		d := dets[i]
		out.Boxes[i] = d.Box
		out.Confidences[i] = d.Confidence

		row := out.Scores(i)
		for k := range row {
			row[k] = 0
		}
		if d.Scores != nil {
			copy(row, d.Scores)
		} else if d.Confidence.Class >= 0 && d.Confidence.Class < len(row) {
			row[d.Confidence.Class] = d.Confidence.Prob
		}
	}
	return n
}

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
