package batch

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jtrovato/jetson-inference/internal/config"
	"github.com/jtrovato/jetson-inference/internal/detection"
	"github.com/jtrovato/jetson-inference/internal/imaging"
	"github.com/jtrovato/jetson-inference/internal/overlay"
)

// Stage names the step of Process at which a file failed.
type Stage string

// Processing stages.
const (
	StageLoad   Stage = "load"
	StageDetect Stage = "detect"
	StageDraw   Stage = "draw"
	StageSave   Stage = "save"
)

// FileResult is the outcome of processing one directory entry.
type FileResult struct {
	Name     string
	Loaded   bool
	Detected bool
	Boxes    int
	Runs     int // overlay calls issued
	Saved    bool
	Output   string // path written, when Saved
	Stage    Stage  // stage of the last failure, empty on success
	Err      error
	Duration time.Duration
}

// Failed reports whether any stage failed.
func (r FileResult) Failed() bool {
	return r.Err != nil
}

// Drawer burns runs of boxes into an image.
type Drawer interface {
	DrawBoxes(boxes []detection.Box, class int) error
	Sync()
}

// Hooks replace the image codec and overlay used by a Processor.
// Zero fields use the imaging and overlay packages.
type Hooks struct {
	Load      func(path string) (*imaging.Buffer, error)
	Save      func(path string, buf *imaging.Buffer, maxValue float32) error
	NewDrawer func(buf *imaging.Buffer) Drawer
}

// Processor runs load, detect, overlay and save for single files. A
// Processor owns its output buffers and must not be used concurrently.
type Processor struct {
	folder  string
	cfg     config.Config
	det     detection.Detector
	out     *detection.OutputBuffers
	hooks   Hooks
	palette *overlay.Palette
	logger  *zap.SugaredLogger
}

// NewProcessor returns a processor for entries of folder.
func NewProcessor(folder string, cfg config.Config, det detection.Detector, out *detection.OutputBuffers,
	palette *overlay.Palette, hooks Hooks, logger *zap.SugaredLogger,
) *Processor {
	p := &Processor{
		folder:  folder,
		cfg:     cfg,
		det:     det,
		out:     out,
		hooks:   hooks,
		palette: palette,
		logger:  logger,
	}
	if p.hooks.Load == nil {
		p.hooks.Load = imaging.LoadRGBA
	}
	if p.hooks.Save == nil {
		p.hooks.Save = imaging.SaveRGBA
	}
	if p.hooks.NewDrawer == nil {
		p.hooks.NewDrawer = p.newCanvas
	}
	return p
}

func (p *Processor) newCanvas(buf *imaging.Buffer) Drawer {
	return overlay.NewCanvas(buf, p.palette, overlay.Options{
		LineWidth: p.cfg.Output.LineWidth,
		Labels:    p.cfg.Output.Labels,
		Classes:   p.det.NumClasses(),
		ClassName: p.det.ClassName,
	})
}

// OutputPath returns where the processed copy of name is written, or "" when
// the run does not save.
func (p *Processor) OutputPath(name string) string {
	switch {
	case p.cfg.Output.InPlace:
		return filepath.Join(p.folder, name)
	case p.cfg.Output.Dir != "":
		return filepath.Join(p.cfg.Output.Dir, name)
	default:
		return ""
	}
}

// Process handles one directory entry. Failures are reported in the result
// and never abort the caller's batch.
func (p *Processor) Process(ctx context.Context, name string) FileResult {
	start := time.Now()
	res := FileResult{Name: name}

	path := filepath.Join(p.folder, name)
	log := p.logger.With("file", name)

	buf, err := p.hooks.Load(path)
	if err != nil {
		log.Warnw("skipping file", "error", err)
		return p.fail(res, StageLoad, err, start)
	}
	res.Loaded = true
	log.Debugw("image loaded", "width", buf.Width, "height", buf.Height)

	n, err := p.det.Detect(ctx, buf, p.out)
	if err != nil {
		log.Errorw("failed to detect objects", "error", err)
		return p.fail(res, StageDetect, err, start)
	}
	res.Detected = true
	res.Boxes = n

	log.Infof("%d bounding boxes detected", n)
	for i := 0; i < n; i++ {
		b := p.out.Boxes[i]
		c := p.out.Confidences[i]
		log.Infof("bounding box %d (%.2f, %.2f) (%.2f, %.2f) w=%.2f h=%.2f class=%s prob=%.3f",
			i, b.X0, b.Y0, b.X1, b.Y1, b.Width(), b.Height(), p.det.ClassName(c.Class), c.Prob)
	}

	target := p.OutputPath(name)
	if target == "" {
		res.Duration = time.Since(start)
		return res
	}

	if p.cfg.Output.Overlay && n > 0 {
		drawer := p.hooks.NewDrawer(buf)
		for _, run := range overlay.Partition(p.out.Confidences, n) {
			res.Runs++
			if err := drawer.DrawBoxes(p.out.Boxes[run.Start:run.End()], run.Class); err != nil {
				log.Errorw("failed to draw boxes", "class", run.Class, "start", run.Start, "count", run.Count, "error", err)
				res.Stage, res.Err = StageDraw, err
			}
		}
		drawer.Sync()
	}

	if err := p.hooks.Save(target, buf, p.cfg.Output.Alpha); err != nil {
		log.Errorw("failed to save output image", "path", target, "error", err)
		return p.fail(res, StageSave, err, start)
	}
	res.Saved = true
	res.Output = target
	log.Infow("saved output image", "path", target, "format", imaging.Format(target))

	res.Duration = time.Since(start)
	return res
}

func (p *Processor) fail(res FileResult, stage Stage, err error, start time.Time) FileResult {
	res.Stage = stage
	res.Err = err
	res.Duration = time.Since(start)
	return res
}
