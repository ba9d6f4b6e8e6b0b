//go:build cgo

package detection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jtrovato/jetson-inference/internal/config"
	"github.com/jtrovato/jetson-inference/internal/imaging"
)

// defaultInputSize is used for models whose input dimensions are dynamic and
// not given in the configuration.
const defaultInputSize = 640

func init() {
	Register(config.BackendONNX, newONNX)
}

var (
	ortMu   sync.Mutex
	ortRefs int
)

// acquireRuntime initializes the onnxruntime environment for the first
// detector and counts the others.
func acquireRuntime(library string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortRefs == 0 {
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
		}
	}
	ortRefs++
	return nil
}

// releaseRuntime destroys the environment when the last detector closes.
func releaseRuntime() error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortRefs == 0 {
		return nil
	}
	ortRefs--
	if ortRefs == 0 {
		return ort.DestroyEnvironment()
	}
	return nil
}

// onnxDetector runs a YOLO-style ONNX model. The input and output tensors are
// allocated once and reused for every image.
type onnxDetector struct {
	cfg      config.Detector
	layout   yoloLayout
	labels   []string
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	output   *ort.Tensor[float32]
	profiler *Profiler
	logger   *zap.SugaredLogger
}

func newONNX(cfg config.Detector, logger *zap.SugaredLogger) (Detector, error) {
	if cfg.Network == "" {
		return nil, errors.New("onnx backend requires a network file")
	}
	if _, err := os.Stat(cfg.Network); err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}
	if cfg.Weights != "" {
		weights := cfg.Weights
		if !filepath.IsAbs(weights) {
			weights = filepath.Join(filepath.Dir(cfg.Network), weights)
		}
		if _, err := os.Stat(weights); err != nil {
			return nil, fmt.Errorf("weights: %w", err)
		}
	}

	var labels []string
	if cfg.Labels != "" {
		var err error
		if labels, err = readLabels(cfg.Labels); err != nil {
			return nil, err
		}
	}

	if err := acquireRuntime(cfg.ORTLibrary); err != nil {
		return nil, err
	}

	d, err := openSession(cfg, labels, logger)
	if err != nil {
		return nil, multierr.Append(err, releaseRuntime())
	}
	return d, nil
}

func openSession(cfg config.Detector, labels []string, logger *zap.SugaredLogger) (*onnxDetector, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("model has %d inputs and %d outputs, want 1 and at least 1", len(inputs), len(outputs))
	}

	inDims := inputs[0].Dimensions
	if len(inDims) != 4 || (inDims[1] != 3 && inDims[1] > 0) {
		return nil, fmt.Errorf("unsupported input shape %v, want [1 3 height width]", inDims)
	}
	width, height := int(inDims[3]), int(inDims[2])
	if cfg.InputWidth > 0 {
		width = cfg.InputWidth
	}
	if cfg.InputHeight > 0 {
		height = cfg.InputHeight
	}
	if width <= 0 {
		width = defaultInputSize
	}
	if height <= 0 {
		height = defaultInputSize
	}

	layout, err := newYOLOLayout(outputs[0].Dimensions, width, height)
	if err != nil {
		return nil, err
	}
	if labels != nil && len(labels) != layout.classes {
		return nil, fmt.Errorf("labels %s has %d classes, model has %d", cfg.Labels, len(labels), layout.classes)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(runtime.NumCPU()); err != nil {
		logger.Warnw("could not set intra-op threads", "error", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(height), int64(width)))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+layout.classes), int64(layout.anchors)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.Network,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	logger.Infow("model loaded",
		"network", cfg.Network,
		"input", fmt.Sprintf("%dx%d", width, height),
		"classes", layout.classes,
		"anchors", layout.anchors)

	return &onnxDetector{
		cfg:      cfg,
		layout:   layout,
		labels:   labels,
		session:  session,
		input:    inputTensor,
		output:   outputTensor,
		profiler: NewProfiler(logger),
		logger:   logger,
	}, nil
}

func (d *onnxDetector) MaxBoundingBoxes() int { return d.cfg.MaxBoxes }

func (d *onnxDetector) NumClasses() int { return d.layout.classes }

func (d *onnxDetector) ClassName(class int) string { return className(d.labels, class) }

func (d *onnxDetector) EnableProfiler() { d.profiler.Enable() }

func (d *onnxDetector) Detect(ctx context.Context, img *imaging.Buffer, out *OutputBuffers) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if img == nil || img.Width == 0 || img.Height == 0 {
		return 0, errors.New("cannot detect on an empty image")
	}

	d.profiler.Begin()

	d.layout.fillInput(d.input.GetData(), img)
	d.profiler.Lap("preprocess")

	if err := d.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}
	d.profiler.Lap("inference")

	dets := d.layout.decode(d.output.GetData(), img.Width, img.Height, d.cfg.Threshold)
	dets = nms(dets, d.cfg.NMS)
	d.profiler.Lap("postprocess")

	n := write(out, dets, d.cfg.MaxBoxes)
	d.profiler.End(img.Width, img.Height)
	return n, nil
}

func (d *onnxDetector) Close() error {
	return multierr.Combine(
		d.session.Destroy(),
		d.input.Destroy(),
		d.output.Destroy(),
		releaseRuntime(),
	)
}
