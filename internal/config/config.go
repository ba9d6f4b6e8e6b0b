// Package config holds the settings of a detectnet-folder run: which detector
// backend to construct and from which files, how results are written, and how
// the batch is executed.
//
// Settings come from three layers, later layers winning: Default, an optional
// YAML file read by Load, and command-line flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in Detector.Backend.
const (
	BackendONNX   = "onnx"
	BackendShapes = "shapes"
	BackendText   = "text"
)

// MaxBoxesLimit bounds Detector.MaxBoxes.
const MaxBoxesLimit = 4096

// Config contains every setting of a batch run.
type Config struct {
	Detector Detector `yaml:"detector"`
	Output   Output   `yaml:"output"`
	Workers  int      `yaml:"workers"`   // number of images processed concurrently
	LogLevel string   `yaml:"log_level"` // debug, info, warn or error
}

// Detector contains the settings used to construct the inference engine.
type Detector struct {
	Backend     string  `yaml:"backend"`      // onnx, shapes or text
	Network     string  `yaml:"network"`      // model file (onnx) or tessdata directory (text)
	Weights     string  `yaml:"weights"`      // trained weights file, optional for onnx
	Labels      string  `yaml:"labels"`       // class names, one per line
	Threshold   float32 `yaml:"threshold"`    // minimum class confidence 0-1
	NMS         float32 `yaml:"nms"`          // IoU above which overlapping boxes of one class are suppressed
	MaxBoxes    int     `yaml:"max_boxes"`    // capacity of the output buffers
	InputWidth  int     `yaml:"input_width"`  // model input width, 0 = read from the model
	InputHeight int     `yaml:"input_height"` // model input height, 0 = read from the model
	Profile     bool    `yaml:"profile"`      // log per-stage timings of every Detect call
	ORTLibrary  string  `yaml:"ort_library"`  // onnxruntime shared library, empty = platform default
	Shapes      Shapes  `yaml:"shapes"`
	Text        Text    `yaml:"text"`
}

// Shapes configures the classical rectangle/circle backend.
type Shapes struct {
	MinArea   int     `yaml:"min_area"`   // minimum rectangle area in square pixels
	Tolerance float64 `yaml:"tolerance"`  // minimum rectangularity 0-1
	MinRadius int     `yaml:"min_radius"` // smallest circle radius searched
	MaxRadius int     `yaml:"max_radius"` // 0 disables circle detection
}

// Text configures the tesseract word-box backend.
type Text struct {
	Language      string  `yaml:"language"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// Output controls what happens to an image after detection.
type Output struct {
	Dir       string         `yaml:"dir"`        // destination folder, empty = do not save
	InPlace   bool           `yaml:"in_place"`   // overwrite the source image
	Overlay   bool           `yaml:"overlay"`    // draw boxes before saving
	LineWidth float64        `yaml:"line_width"` // rectangle stroke width in pixels
	Labels    bool           `yaml:"labels"`     // draw class names above boxes
	Alpha     float32        `yaml:"alpha"`      // intensity ceiling passed to the image writer
	Colors    map[int]string `yaml:"colors"`     // per-class hex color overrides
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Detector: Detector{
			Backend:   BackendONNX,
			Threshold: 0.5,
			NMS:       0.45,
			MaxBoxes:  100,
			Shapes: Shapes{
				MinArea:   400,
				Tolerance: 0.85,
			},
			Text: Text{
				Language:      "eng",
				MinConfidence: 0.6,
			},
		},
		Output: Output{
			Overlay:   true,
			LineWidth: 2,
			Labels:    true,
			Alpha:     255,
		},
		Workers:  1,
		LogLevel: "info",
	}
}

// Load reads a YAML file on top of Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Saving reports whether processed images are written anywhere.
func (c Config) Saving() bool {
	return c.Output.Dir != "" || c.Output.InPlace
}

// Validate checks the configuration for values no component can work with.
func (c Config) Validate() error {
	d := c.Detector
	switch d.Backend {
	case BackendONNX, BackendShapes, BackendText:
	default:
		return fmt.Errorf("unknown detector backend %q (use %s, %s or %s)",
			d.Backend, BackendONNX, BackendShapes, BackendText)
	}
	if d.Threshold < 0 || d.Threshold > 1 {
		return fmt.Errorf("detector threshold %v outside [0,1]", d.Threshold)
	}
	if d.NMS < 0 || d.NMS > 1 {
		return fmt.Errorf("detector nms %v outside [0,1]", d.NMS)
	}
	if d.MaxBoxes < 1 || d.MaxBoxes > MaxBoxesLimit {
		return fmt.Errorf("detector max_boxes %d outside [1,%d]", d.MaxBoxes, MaxBoxesLimit)
	}
	if d.InputWidth < 0 || d.InputHeight < 0 {
		return fmt.Errorf("detector input size %dx%d must not be negative", d.InputWidth, d.InputHeight)
	}
	if d.Shapes.MaxRadius > 0 && d.Shapes.MaxRadius < d.Shapes.MinRadius {
		return fmt.Errorf("shapes max_radius %d below min_radius %d", d.Shapes.MaxRadius, d.Shapes.MinRadius)
	}

	o := c.Output
	if o.InPlace && o.Dir != "" {
		return errors.New("output folder and in-place saving are mutually exclusive")
	}
	if o.Alpha <= 0 || o.Alpha > 255 {
		return fmt.Errorf("output alpha %v outside (0,255]", o.Alpha)
	}
	if o.LineWidth <= 0 {
		return fmt.Errorf("output line_width %v must be positive", o.LineWidth)
	}
	for class, hex := range o.Colors {
		if class < 0 {
			return fmt.Errorf("output color for negative class %d", class)
		}
		if _, err := colorful.Hex(hex); err != nil {
			return fmt.Errorf("output color for class %d: %w", class, err)
		}
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers %d must be at least 1", c.Workers)
	}
	return nil
}
