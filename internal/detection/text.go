//go:build cgo

package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"

	"github.com/jtrovato/jetson-inference/internal/config"
	localimg "github.com/jtrovato/jetson-inference/internal/imaging"
)

// ClassWord is the single class reported by the text backend.
const ClassWord = 0

func init() {
	Register(config.BackendText, newText)
}

// textDetector reports word bounding boxes found by Tesseract. Confidence is
// Tesseract's word confidence scaled to 0-1.
type textDetector struct {
	cfg      config.Detector
	client   *gosseract.Client
	labels   []string
	profiler *Profiler
	logger   *zap.SugaredLogger
}

func newText(cfg config.Detector, logger *zap.SugaredLogger) (Detector, error) {
	labels := []string{"word"}
	if cfg.Labels != "" {
		l, err := readLabels(cfg.Labels)
		if err != nil {
			return nil, err
		}
		if len(l) == 0 {
			return nil, fmt.Errorf("labels %s is empty", cfg.Labels)
		}
		labels = l[:1]
	}

	client := gosseract.NewClient()
	if cfg.Network != "" {
		// Network names the tessdata directory for this backend
		if err := client.SetTessdataPrefix(cfg.Network); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(cfg.Text.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	logger.Debugw("tesseract ready", "version", client.Version(), "language", cfg.Text.Language)

	return &textDetector{
		cfg:      cfg,
		client:   client,
		labels:   labels,
		profiler: NewProfiler(logger),
		logger:   logger,
	}, nil
}

func (d *textDetector) MaxBoundingBoxes() int { return d.cfg.MaxBoxes }

func (d *textDetector) NumClasses() int { return 1 }

func (d *textDetector) ClassName(class int) string { return className(d.labels, class) }

func (d *textDetector) EnableProfiler() { d.profiler.Enable() }

func (d *textDetector) Close() error { return d.client.Close() }

func (d *textDetector) Detect(ctx context.Context, img *localimg.Buffer, out *OutputBuffers) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if img == nil || img.Width == 0 || img.Height == 0 {
		return 0, errors.New("cannot detect on an empty image")
	}

	d.profiler.Begin()

	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, img.ToNRGBA(255), imaging.PNG); err != nil {
		return 0, fmt.Errorf("failed to encode image: %w", err)
	}
	if err := d.client.SetImageFromBytes(encoded.Bytes()); err != nil {
		return 0, fmt.Errorf("failed to set image: %w", err)
	}
	d.profiler.Lap("encode")

	boxes, err := d.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return 0, fmt.Errorf("failed to get word boxes: %w", err)
	}
	d.profiler.Lap("ocr")

	minConf := float32(d.cfg.Text.MinConfidence)
	if d.cfg.Threshold > minConf {
		minConf = d.cfg.Threshold
	}

	dets := make([]Detection, 0, len(boxes))
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		confidence := float32(box.Confidence / 100.0)
		if confidence < minConf {
			continue
		}
		dets = append(dets, Detection{
			Box: Box{
				X0: float32(box.Box.Min.X),
				Y0: float32(box.Box.Min.Y),
				X1: float32(box.Box.Max.X),
				Y1: float32(box.Box.Max.Y),
			}.Clamp(img.Width, img.Height),
			Confidence: Confidence{Prob: confidence, Class: ClassWord},
		})
	}
	sortByClass(dets)

	n := write(out, dets, d.cfg.MaxBoxes)
	d.profiler.End(img.Width, img.Height)
	return n, nil
}
