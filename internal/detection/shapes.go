package detection

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/jtrovato/jetson-inference/internal/config"
	"github.com/jtrovato/jetson-inference/internal/imaging"
)

// Classes reported by the shapes backend.
const (
	ClassRectangle = 0
	ClassCircle    = 1
)

// edgeThreshold is the grayscale step between neighbors that marks an edge.
const edgeThreshold = 30.0

// minContour is the smallest connected edge group kept as a contour.
const minContour = 10

var shapeLabels = []string{"rectangle", "circle"}

func init() {
	Register(config.BackendShapes, newShapes)
}

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int
	Y int
}

// shapesDetector finds axis-aligned rectangles and circles without a model.
//
// # Algorithm
//
//  1. Edge Detection: grayscale gradient against the right and lower
//     neighbor, thresholded at edgeThreshold
//  2. Contour Finding: 8-connected flood fill over edge pixels
//  3. Rectangles: bounding box of each contour, scored by how closely the
//     contour length matches the box perimeter:
//     1 - |contour_length - 2*(w+h)| / (2*(w+h))
//  4. Circles (when max_radius > 0): Hough accumulator per radius, votes
//     cast every 10 degrees, peaks above 60% of 2*radius, scored by
//     votes / (2*radius) capped at 1
//  5. Confidence threshold, class-aware NMS, ordering by class
//
// The result depends on the pixels only, so repeated calls on the same image
// report the same boxes in the same order.
type shapesDetector struct {
	cfg      config.Detector
	labels   []string
	profiler *Profiler
	logger   *zap.SugaredLogger
}

func newShapes(cfg config.Detector, logger *zap.SugaredLogger) (Detector, error) {
	labels := shapeLabels
	if cfg.Labels != "" {
		l, err := readLabels(cfg.Labels)
		if err != nil {
			return nil, err
		}
		if len(l) < len(shapeLabels) {
			return nil, fmt.Errorf("labels %s: shapes backend needs %d classes, file has %d",
				cfg.Labels, len(shapeLabels), len(l))
		}
		labels = l[:len(shapeLabels)]
	}

	logger.Debugw("shapes detector ready",
		"min_area", cfg.Shapes.MinArea,
		"tolerance", cfg.Shapes.Tolerance,
		"circles", cfg.Shapes.MaxRadius > 0)

	return &shapesDetector{
		cfg:      cfg,
		labels:   labels,
		profiler: NewProfiler(logger),
		logger:   logger,
	}, nil
}

func (d *shapesDetector) MaxBoundingBoxes() int { return d.cfg.MaxBoxes }

func (d *shapesDetector) NumClasses() int { return len(shapeLabels) }

func (d *shapesDetector) ClassName(class int) string { return className(d.labels, class) }

func (d *shapesDetector) EnableProfiler() { d.profiler.Enable() }

func (d *shapesDetector) Close() error { return nil }

func (d *shapesDetector) Detect(ctx context.Context, img *imaging.Buffer, out *OutputBuffers) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if img == nil || img.Width == 0 || img.Height == 0 {
		return 0, fmt.Errorf("cannot detect on an empty image")
	}

	d.profiler.Begin()

	edges := detectEdges(img)
	d.profiler.Lap("edges")

	dets := detectRectangles(edges, img.Width, img.Height, d.cfg.Shapes.MinArea, d.cfg.Shapes.Tolerance)
	d.profiler.Lap("rectangles")

	if d.cfg.Shapes.MaxRadius > 0 {
		circles, err := detectCircles(ctx, edges, img.Width, img.Height, d.cfg.Shapes.MinRadius, d.cfg.Shapes.MaxRadius)
		if err != nil {
			return 0, err
		}
		dets = append(dets, circles...)
		d.profiler.Lap("circles")
	}

	kept := dets[:0]
	for _, det := range dets {
		if det.Confidence.Prob >= d.cfg.Threshold {
			kept = append(kept, det)
		}
	}
	kept = nms(kept, d.cfg.NMS)
	d.profiler.Lap("nms")

	n := write(out, kept, d.cfg.MaxBoxes)
	d.profiler.End(img.Width, img.Height)
	return n, nil
}

// detectRectangles scores the bounding box of every contour as a rectangle.
// Contours whose box is smaller than minArea or whose score is below
// tolerance are dropped.
func detectRectangles(edges [][]bool, width, height, minArea int, tolerance float64) []Detection {
	contours := findContours(edges, width, height)

	dets := make([]Detection, 0)
	for _, contour := range contours {
		if len(contour) < 4 {
			continue
		}

		minX, minY := width, height
		maxX, maxY := 0, 0
		for _, p := range contour {
			if p.X < minX {
				minX = p.X
			}
			if p.X > maxX {
				maxX = p.X
			}
			if p.Y < minY {
				minY = p.Y
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}

		rectWidth := maxX - minX
		rectHeight := maxY - minY
		if rectWidth*rectHeight < minArea {
			continue
		}

		expectedPerimeter := 2 * (rectWidth + rectHeight)
		if expectedPerimeter == 0 {
			continue
		}
		rectangularity := 1.0 - math.Abs(float64(len(contour)-expectedPerimeter))/float64(expectedPerimeter)
		if rectangularity < tolerance {
			continue
		}

		dets = append(dets, Detection{
			Box: Box{
				X0: float32(minX),
				Y0: float32(minY),
				X1: float32(maxX + 1),
				Y1: float32(maxY + 1),
			},
			Confidence: Confidence{Prob: float32(rectangularity), Class: ClassRectangle},
		})
	}
	return dets
}

// detectCircles runs a Hough circle transform over radii [minRadius, maxRadius].
func detectCircles(ctx context.Context, edges [][]bool, width, height, minRadius, maxRadius int) ([]Detection, error) {
	if minRadius < 1 {
		minRadius = 1
	}

	edgePoints := make([]Point, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges[y][x] {
				edgePoints = append(edgePoints, Point{X: x, Y: y})
			}
		}
	}

	circles := make([]Detection, 0)
	radii := make([]int, 0)
	accumulator := make([]int, width*height)

	for radius := minRadius; radius <= maxRadius; radius++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range accumulator {
			accumulator[i] = 0
		}

		// Vote in a circle around every edge point
		for _, p := range edgePoints {
			for angle := 0; angle < 360; angle += 10 {
				rad := float64(angle) * math.Pi / 180
				cx := p.X - int(float64(radius)*math.Cos(rad))
				cy := p.Y - int(float64(radius)*math.Sin(rad))
				if cx >= 0 && cx < width && cy >= 0 && cy < height {
					accumulator[cy*width+cx]++
				}
			}
		}

		threshold := int(float64(2*radius) * 0.6)
		for y := radius; y < height-radius; y++ {
			for x := radius; x < width-radius; x++ {
				votes := accumulator[y*width+x]
				if votes < threshold || !localMax(accumulator, width, height, x, y) {
					continue
				}
				confidence := math.Min(float64(votes)/float64(2*radius), 1.0)
				circles = append(circles, Detection{
					Box: Box{
						X0: float32(x - radius),
						Y0: float32(y - radius),
						X1: float32(x + radius + 1),
						Y1: float32(y + radius + 1),
					},
					Confidence: Confidence{Prob: float32(confidence), Class: ClassCircle},
				})
				radii = append(radii, radius)
			}
		}
	}

	return filterDuplicateCircles(circles, radii), nil
}

// localMax reports whether no accumulator cell within 5 pixels of (x, y)
// holds more votes.
func localMax(acc []int, width, height, x, y int) bool {
	v := acc[y*width+x]
	for dy := -5; dy <= 5; dy++ {
		for dx := -5; dx <= 5; dx++ {
			if dy == 0 && dx == 0 {
				continue
			}
			ny, nx := y+dy, x+dx
			if ny >= 0 && ny < height && nx >= 0 && nx < width && acc[ny*width+nx] > v {
				return false
			}
		}
	}
	return true
}

// detectEdges marks pixels whose grayscale value differs from the right or
// lower neighbor by more than edgeThreshold. Border pixels are never edges.
func detectEdges(img *imaging.Buffer) [][]bool {
	width, height := img.Width, img.Height
	edges := make([][]bool, height)

	for y := 0; y < height; y++ {
		edges[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			if x == 0 || y == 0 || x == width-1 || y == height-1 {
				continue
			}

			c := grayValue(img, x, y)
			dx := math.Abs(c - grayValue(img, x+1, y))
			dy := math.Abs(c - grayValue(img, x, y+1))

			if dx > edgeThreshold || dy > edgeThreshold {
				edges[y][x] = true
			}
		}
	}
	return edges
}

// findContours groups 8-connected edge pixels. Groups smaller than
// minContour pixels are discarded as noise.
func findContours(edges [][]bool, width, height int) [][]Point {
	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	contours := make([][]Point, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges[y][x] && !visited[y][x] {
				contour := make([]Point, 0)
				floodFill(edges, visited, x, y, width, height, &contour)
				if len(contour) >= minContour {
					contours = append(contours, contour)
				}
			}
		}
	}
	return contours
}

// floodFill collects the connected edge region containing (startX, startY).
// It uses an explicit stack so large contours cannot overflow the goroutine stack.
func floodFill(edges, visited [][]bool, startX, startY, width, height int, contour *[]Point) {
	stack := []Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !edges[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		*contour = append(*contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
}

// grayValue is the ITU-R BT.601 luminance of a pixel, 0-255.
func grayValue(img *imaging.Buffer, x, y int) float64 {
	i := img.Offset(x, y)
	return float64(img.Pix[i])*0.299 + float64(img.Pix[i+1])*0.587 + float64(img.Pix[i+2])*0.114
}

// filterDuplicateCircles keeps the first of any circles whose centers are
// closer than the mean of their radii. radii is parallel to circles.
func filterDuplicateCircles(circles []Detection, radii []int) []Detection {
	if len(circles) == 0 {
		return circles
	}

	type kept struct {
		cx, cy float32
		radius int
	}
	seen := make([]kept, 0)
	filtered := make([]Detection, 0)

	for i, c := range circles {
		cx := (c.Box.X0 + c.Box.X1) / 2
		cy := (c.Box.Y0 + c.Box.Y1) / 2

		isDuplicate := false
		for _, f := range seen {
			dx := float64(cx - f.cx)
			dy := float64(cy - f.cy)
			if math.Sqrt(dx*dx+dy*dy) < float64(radii[i]+f.radius)/2 {
				isDuplicate = true
				break
			}
		}
		if !isDuplicate {
			seen = append(seen, kept{cx: cx, cy: cy, radius: radii[i]})
			filtered = append(filtered, c)
		}
	}
	return filtered
}
