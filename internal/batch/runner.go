package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jtrovato/jetson-inference/internal/config"
	"github.com/jtrovato/jetson-inference/internal/detection"
	"github.com/jtrovato/jetson-inference/internal/imaging"
	"github.com/jtrovato/jetson-inference/internal/overlay"
)

// Runner executes a batch over one folder.
type Runner struct {
	cfg     config.Config
	factory detection.Factory
	hooks   Hooks
	logger  *zap.SugaredLogger
}

// NewRunner returns a runner constructing detectors with factory.
// A nil factory uses detection.Create.
func NewRunner(cfg config.Config, factory detection.Factory, hooks Hooks, logger *zap.SugaredLogger) *Runner {
	if factory == nil {
		factory = detection.Create
	}
	return &Runner{cfg: cfg, factory: factory, hooks: hooks, logger: logger}
}

// Run processes every entry of folder. The returned error is non-nil only for
// failures that prevent the batch from running at all; per-file failures are
// listed in the summary. A cancelled ctx stops the batch between files and
// still returns the summary of the files processed so far.
func (r *Runner) Run(ctx context.Context, folder string) (summary *Summary, err error) {
	start := time.Now()

	dir, err := OpenDir(folder)
	if err != nil {
		return nil, err
	}

	// Released in acquisition order, so the detector goes last.
	closers := []func() error{dir.Close}
	defer func() {
		if cerr := closeAll(closers...); cerr != nil {
			r.logger.Warnw("teardown failed", "error", cerr)
		}
	}()

	if out := r.cfg.Output.Dir; out != "" {
		if err := os.MkdirAll(out, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output folder: %w", err)
		}
	}

	palette, err := overlay.NewPalette(r.cfg.Output.Colors)
	if err != nil {
		return nil, err
	}

	det, err := r.factory(r.cfg.Detector, r.logger.Named("detector"))
	if err != nil {
		return nil, err
	}
	closers = append(closers, det.Close)

	if r.cfg.Detector.Profile {
		det.EnableProfiler()
	}

	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var shared detection.Detector = det
	if workers > 1 {
		shared = &lockedDetector{Detector: det}
	}

	procs := make(chan *Processor, workers)
	for i := 0; i < workers; i++ {
		out, err := detection.AllocFor(det)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate output buffers: %w", err)
		}
		procs <- NewProcessor(folder, r.cfg, shared, out, palette, r.hooks, r.logger)
	}

	r.logger.Infow("starting batch",
		"folder", dir.Path(),
		"backend", r.cfg.Detector.Backend,
		"max_boxes", det.MaxBoundingBoxes(),
		"classes", det.NumClasses(),
		"workers", workers,
		"saving", r.cfg.Saving())

	summary = &Summary{Folder: folder}
	var mu sync.Mutex
	record := func(res FileResult) {
		mu.Lock()
		summary.Add(res)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)

	walkErr := dir.Each(func(name string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.Go(func() error {
			p := <-procs
			defer func() { procs <- p }()
			record(p.Process(ctx, name))
			return nil
		})
		return nil
	})
	_ = g.Wait()

	summary.Duration = time.Since(start)
	switch {
	case walkErr == nil:
	case errors.Is(walkErr, context.Canceled), errors.Is(walkErr, context.DeadlineExceeded):
		summary.Interrupted = true
		r.logger.Warnw("batch interrupted", "processed", summary.Seen)
	default:
		r.logger.Errorw("stopped reading folder", "error", walkErr)
		summary.Interrupted = true
	}
	return summary, nil
}

// lockedDetector serializes Detect calls for concurrent workers.
type lockedDetector struct {
	mu sync.Mutex
	detection.Detector
}

func (d *lockedDetector) Detect(ctx context.Context, img *imaging.Buffer, out *detection.OutputBuffers) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Detector.Detect(ctx, img, out)
}

// closeAll closes every closer and combines their errors.
func closeAll(closers ...func() error) error {
	var err error
	for _, c := range closers {
		err = multierr.Append(err, c())
	}
	return err
}
