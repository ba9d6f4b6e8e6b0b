// Package cli implements the detectnet-folder command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/jtrovato/jetson-inference/internal/batch"
	"github.com/jtrovato/jetson-inference/internal/config"
	"github.com/jtrovato/jetson-inference/internal/detection"
	"github.com/jtrovato/jetson-inference/internal/logging"
)

// Exit codes returned by Run.
const (
	ExitOK    = 0
	ExitError = 1 // initialization or directory-open failure
	ExitUsage = 2
)

// ErrUsage marks errors caused by how the program was invoked.
var ErrUsage = errors.New("usage error")

// errInit marks failures that happen after the arguments were accepted.
var errInit = errors.New("initialization failed")

const usageText = "detectnet-folder [flags] <folder> [output-folder]"

// Deps are the collaborators Run wires together.
type Deps struct {
	// Factory constructs the detector; nil uses detection.Create.
	Factory detection.Factory

	// Hooks replace the image codec and overlay of the batch.
	Hooks batch.Hooks

	Version   string
	BuildTime string
	GitCommit string
}

// NewApp returns the command line application. Its Action runs one batch.
func NewApp(deps Deps, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:            "detectnet-folder",
		Usage:           "run object detection over every image in a folder",
		UsageText:       usageText,
		ArgsUsage:       "<folder> [output-folder]",
		Version:         fmt.Sprintf("%s (built %s, commit %s)", orDefault(deps.Version, "dev"), orDefault(deps.BuildTime, "unknown"), orDefault(deps.GitCommit, "unknown")),
		HideHelpCommand: true,
		Writer:          stdout,
		ErrWriter:       stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      "config",
				Aliases:   []string{"c"},
				Usage:     "load configuration from `FILE`",
				EnvVars:   []string{"DETECTNET_CONFIG"},
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "detector backend: " + strings.Join(detection.Backends(), ", "),
				EnvVars: []string{"DETECTNET_BACKEND"},
			},
			&cli.StringFlag{
				Name:      "network",
				Usage:     "model definition `FILE`",
				EnvVars:   []string{"DETECTNET_NETWORK"},
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:      "weights",
				Usage:     "trained weights `FILE`",
				EnvVars:   []string{"DETECTNET_WEIGHTS"},
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:      "labels",
				Usage:     "class names `FILE`, one per line",
				EnvVars:   []string{"DETECTNET_LABELS"},
				TakesFile: true,
			},
			&cli.Float64Flag{
				Name:    "threshold",
				Usage:   "minimum class confidence",
				EnvVars: []string{"DETECTNET_THRESHOLD"},
			},
			&cli.Float64Flag{
				Name:    "nms",
				Usage:   "IoU above which boxes of one class are suppressed",
				EnvVars: []string{"DETECTNET_NMS"},
			},
			&cli.IntFlag{
				Name:    "max-boxes",
				Usage:   "maximum detections per image",
				EnvVars: []string{"DETECTNET_MAX_BOXES"},
			},
			&cli.BoolFlag{
				Name:    "in-place",
				Usage:   "overwrite the source images",
				EnvVars: []string{"DETECTNET_IN_PLACE"},
			},
			&cli.BoolFlag{
				Name:    "no-overlay",
				Usage:   "save images without drawing boxes",
				EnvVars: []string{"DETECTNET_NO_OVERLAY"},
			},
			&cli.BoolFlag{
				Name:    "profile",
				Usage:   "log detector timings for every image",
				EnvVars: []string{"DETECTNET_PROFILE"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "number of images processed concurrently",
				EnvVars: []string{"DETECTNET_WORKERS"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"DETECTNET_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:      "ort-library",
				Usage:     "onnxruntime shared library `FILE`",
				EnvVars:   []string{"DETECTNET_ORT_LIBRARY"},
				TakesFile: true,
			},
		},
		OnUsageError: func(_ *cli.Context, err error, _ bool) error {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		},
		ExitErrHandler: func(*cli.Context, error) {},
		Action: func(c *cli.Context) error {
			return run(c, deps, stdout, stderr)
		},
	}
}

// Run executes the program with args (including the program name) and
// returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, deps Deps) int {
	err := NewApp(deps, stdout, stderr).RunContext(ctx, args)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errInit):
		return ExitError
	default:
		fmt.Fprintf(stderr, "%v\nusage: %s\n", err, usageText)
		return ExitUsage
	}
}

func run(c *cli.Context, deps Deps, stdout, stderr io.Writer) error {
	args := c.Args()
	if args.Len() < 1 || args.Len() > 2 {
		return fmt.Errorf("%w: expected <folder> [output-folder], got %d arguments", ErrUsage, args.Len())
	}
	folder := args.Get(0)
	if args.Len() == 2 && c.Bool("in-place") {
		return fmt.Errorf("%w: --in-place cannot be combined with an output folder", ErrUsage)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return initFailure(stderr, err)
	}
	if args.Len() == 2 {
		cfg.Output.Dir = args.Get(1)
		cfg.Output.InPlace = false
	}
	if err := cfg.Validate(); err != nil {
		return initFailure(stderr, fmt.Errorf("invalid configuration: %w", err))
	}

	logger, err := logging.NewWithWriter("detectnet", cfg.LogLevel, stderr)
	if err != nil {
		return initFailure(stderr, err)
	}
	defer logger.Sync()

	logger.Debugw("arguments", "args", c.App.Name+" "+strings.Join(args.Slice(), " "))

	runner := batch.NewRunner(cfg, deps.Factory, deps.Hooks, logger.Named("batch"))
	summary, err := runner.Run(c.Context, folder)
	if err != nil {
		logger.Errorw("batch failed", "folder", folder, "error", err)
		return fmt.Errorf("%w: %w", errInit, err)
	}

	if err := summary.Render(stdout); err != nil {
		logger.Warnw("failed to write summary", "error", err)
	}
	logSummary(logger, summary)
	return nil
}

// loadConfig layers the config file and explicitly set flags over the defaults.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	d := &cfg.Detector
	if c.IsSet("backend") {
		d.Backend = c.String("backend")
	}
	if c.IsSet("network") {
		d.Network = c.String("network")
	}
	if c.IsSet("weights") {
		d.Weights = c.String("weights")
	}
	if c.IsSet("labels") {
		d.Labels = c.String("labels")
	}
	if c.IsSet("threshold") {
		d.Threshold = float32(c.Float64("threshold"))
	}
	if c.IsSet("nms") {
		d.NMS = float32(c.Float64("nms"))
	}
	if c.IsSet("max-boxes") {
		d.MaxBoxes = c.Int("max-boxes")
	}
	if c.IsSet("profile") {
		d.Profile = c.Bool("profile")
	}
	if c.IsSet("ort-library") {
		d.ORTLibrary = c.String("ort-library")
	}
	if c.IsSet("in-place") {
		cfg.Output.InPlace = c.Bool("in-place")
	}
	if c.IsSet("no-overlay") {
		cfg.Output.Overlay = !c.Bool("no-overlay")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	return cfg, nil
}

func initFailure(stderr io.Writer, err error) error {
	fmt.Fprintf(stderr, "detectnet-folder: %v\n", err)
	return fmt.Errorf("%w: %w", errInit, err)
}

func logSummary(logger *zap.SugaredLogger, s *batch.Summary) {
	logger.Infow("batch complete",
		"files", s.Seen,
		"loaded", s.Loaded,
		"detected", s.Detected,
		"boxes", s.Boxes,
		"saved", s.Saved,
		"failed", len(s.Failures),
		"interrupted", s.Interrupted,
		"elapsed", s.Duration)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
