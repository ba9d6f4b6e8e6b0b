package batch

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/jtrovato/jetson-inference/internal/config"
	"github.com/jtrovato/jetson-inference/internal/detection"
	"github.com/jtrovato/jetson-inference/internal/imaging"
)

// fakeDetector reports one box per entry of classes for every image
type fakeDetector struct {
	classes   []int
	failWidth int // images of this width fail detection

	calls      atomic.Int32
	inflight   atomic.Int32
	concurrent atomic.Bool
	profiling  bool
	closed     bool
}

func (f *fakeDetector) MaxBoundingBoxes() int { return 8 }

func (f *fakeDetector) NumClasses() int { return 3 }

func (f *fakeDetector) ClassName(class int) string { return []string{"a", "b", "c"}[class] }

func (f *fakeDetector) EnableProfiler() { f.profiling = true }

func (f *fakeDetector) Close() error {
	f.closed = true
	return nil
}

func (f *fakeDetector) Detect(ctx context.Context, img *imaging.Buffer, out *detection.OutputBuffers) (int, error) {
	if f.inflight.Add(1) > 1 {
		f.concurrent.Store(true)
	}
	defer f.inflight.Add(-1)
	f.calls.Add(1)

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if img.Width == f.failWidth {
		return 0, errors.New("inference failed")
	}

	n := len(f.classes)
	if n > out.Capacity() {
		n = out.Capacity()
	}
	for i := 0; i < n; i++ {
		x := float32(2 + 4*i)
		out.Boxes[i] = detection.Box{X0: x, Y0: 2, X1: x + 3, Y1: 5}
		out.Confidences[i] = detection.Confidence{Prob: 0.9, Class: f.classes[i]}
	}
	return n, nil
}

// countingFactory returns a factory handing out det and counting calls
func countingFactory(det detection.Detector, calls *int) detection.Factory {
	return func(config.Detector, *zap.SugaredLogger) (detection.Detector, error) {
		*calls++
		return det, nil
	}
}

type drawCall struct {
	count int
	class int
}

// recordingDrawer records DrawBoxes calls instead of drawing
type recordingDrawer struct {
	mu    *sync.Mutex
	calls *[]drawCall
	syncs *int
}

func (d recordingDrawer) DrawBoxes(boxes []detection.Box, class int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	*d.calls = append(*d.calls, drawCall{count: len(boxes), class: class})
	return nil
}

func (d recordingDrawer) Sync() {
	d.mu.Lock()
	defer d.mu.Unlock()
	*d.syncs++
}

// recorder collects the save and draw calls of a run
type recorder struct {
	mu    sync.Mutex
	draws []drawCall
	syncs int
	saves []string
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		Save: func(path string, buf *imaging.Buffer, maxValue float32) error {
			r.mu.Lock()
			r.saves = append(r.saves, path)
			r.mu.Unlock()
			return imaging.SaveRGBA(path, buf, maxValue)
		},
		NewDrawer: func(*imaging.Buffer) Drawer {
			return recordingDrawer{mu: &r.mu, calls: &r.draws, syncs: &r.syncs}
		},
	}
}

// createImageFile writes a solid color PNG into dir
func createImageFile(t *testing.T, dir, name string, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", name, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode %s: %v", name, err)
	}
	return path
}

// testConfig returns a valid config saving into out
func testConfig(out string) config.Config {
	cfg := config.Default()
	cfg.Detector.Backend = config.BackendShapes
	cfg.Output.Dir = out
	return cfg
}
