package detection

import (
	"image/color"
	"testing"

	"github.com/jtrovato/jetson-inference/internal/imaging"
)

func TestNewYOLOLayout(t *testing.T) {
	l, err := newYOLOLayout([]int64{1, 84, 8400}, 640, 640)
	if err != nil {
		t.Fatalf("newYOLOLayout failed: %v", err)
	}
	if l.classes != 80 || l.anchors != 8400 || l.outputSize() != 84*8400 {
		t.Errorf("got %d classes, %d anchors", l.classes, l.anchors)
	}

	bad := [][]int64{
		{84, 8400},
		{2, 84, 8400},
		{0, 84, 8400},
		{1, 4, 8400},
		{1, -1, 8400},
	}
	for _, shape := range bad {
		if _, err := newYOLOLayout(shape, 640, 640); err == nil {
			t.Errorf("Expected error for shape %v", shape)
		}
	}
	if _, err := newYOLOLayout([]int64{1, 84, 8400}, 0, 640); err == nil {
		t.Error("Expected error for zero input width")
	}
	if _, err := newYOLOLayout([]int64{1, 84, -1}, 4, 4); err == nil {
		t.Error("Expected error when no anchors fit the input")
	}
}

func TestNewYOLOLayout_DynamicDims(t *testing.T) {
	tests := []struct {
		shape         []int64
		width, height int
		anchors       int
	}{
		{[]int64{-1, 84, 8400}, 640, 640, 8400},
		{[]int64{1, 84, -1}, 640, 640, 8400},
		{[]int64{-1, 6, -1}, 320, 256, 40*32 + 20*16 + 10*8},
	}

	for _, tt := range tests {
		l, err := newYOLOLayout(tt.shape, tt.width, tt.height)
		if err != nil {
			t.Errorf("newYOLOLayout(%v) failed: %v", tt.shape, err)
			continue
		}
		if l.anchors != tt.anchors {
			t.Errorf("newYOLOLayout(%v, %dx%d): got %d anchors, want %d", tt.shape, tt.width, tt.height, l.anchors, tt.anchors)
		}
		if l.classes != int(tt.shape[1])-4 {
			t.Errorf("newYOLOLayout(%v): got %d classes", tt.shape, l.classes)
		}
	}
}

// yoloOutput builds a [1, 4+classes, anchors] tensor from per-anchor rows
func yoloOutput(classes int, anchors [][]float32) []float32 {
	n := len(anchors)
	out := make([]float32, (4+classes)*n)
	for i, a := range anchors {
		for row, v := range a {
			out[row*n+i] = v
		}
	}
	return out
}

func TestYOLODecode(t *testing.T) {
	l := yoloLayout{classes: 2, anchors: 3, inputWidth: 100, inputHeight: 100}

	output := yoloOutput(2, [][]float32{
		{50, 50, 20, 10, 0.1, 0.9},  // class 1
		{20, 20, 10, 10, 0.3, 0.2},  // below threshold
		{90, 90, 40, 40, 0.7, 0.05}, // class 0, clipped at the border
	})

	dets := l.decode(output, 200, 100, 0.5)

	if len(dets) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(dets))
	}

	d := dets[0]
	if d.Confidence.Class != 1 || d.Confidence.Prob != 0.9 {
		t.Errorf("first detection: got %+v", d.Confidence)
	}
	// x scaled by 2, y by 1
	if d.Box != (Box{X0: 80, Y0: 45, X1: 120, Y1: 55}) {
		t.Errorf("first box: got %+v", d.Box)
	}
	if len(d.Scores) != 2 || d.Scores[0] != 0.1 || d.Scores[1] != 0.9 {
		t.Errorf("scores: got %v", d.Scores)
	}

	if dets[1].Box.X1 != 200 || dets[1].Box.Y1 != 100 {
		t.Errorf("second box should be clamped to the image: got %+v", dets[1].Box)
	}
}

func TestYOLOFillInput(t *testing.T) {
	img := createTestImage(8, 4, color.RGBA{255, 0, 51, 255})
	l := yoloLayout{classes: 1, anchors: 1, inputWidth: 4, inputHeight: 4}

	dst := make([]float32, 3*4*4)
	l.fillInput(dst, imaging.FromImage(img))

	for i := 0; i < 16; i++ {
		if dst[i] != 1 || dst[16+i] != 0 {
			t.Fatalf("pixel %d: got r=%v g=%v", i, dst[i], dst[16+i])
		}
		if b := dst[32+i]; b < 0.19 || b > 0.21 {
			t.Fatalf("pixel %d: got b=%v, want 0.2", i, b)
		}
	}
}
