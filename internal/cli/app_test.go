package cli

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/jtrovato/jetson-inference/internal/config"
	"github.com/jtrovato/jetson-inference/internal/detection"
	"github.com/jtrovato/jetson-inference/internal/imaging"
)

// stubDetector reports a single box of class 0
type stubDetector struct{}

func (stubDetector) MaxBoundingBoxes() int { return 4 }
func (stubDetector) NumClasses() int { return 1 }
func (stubDetector) ClassName(int) string { return "thing" }
func (stubDetector) EnableProfiler() {}
func (stubDetector) Close() error { return nil }
func (stubDetector) Detect(_ context.Context, _ *imaging.Buffer, out *detection.OutputBuffers) (int, error) {
	out.Boxes[0] = detection.Box{X0: 1, Y0: 1, X1: 6, Y1: 6}
	out.Confidences[0] = detection.Confidence{Prob: 0.8, Class: 0}
	return 1, nil
}

// recordingDeps returns deps whose factory records every configuration it receives
func recordingDeps(got *[]config.Detector) Deps {
	return Deps{
		Factory: func(cfg config.Detector, _ *zap.SugaredLogger) (detection.Detector, error) {
			*got = append(*got, cfg)
			return stubDetector{}, nil
		},
		Version:   "1.2.3",
		BuildTime: "today",
		GitCommit: "abc123",
	}
}

// createImageFolder creates a folder with one small PNG
func createImageFolder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.White)
		}
	}
	f, err := os.Create(filepath.Join(dir, "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return dir
}

func runCLI(t *testing.T, deps Deps, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), append([]string{"detectnet-folder"}, args...), &stdout, &stderr, deps)
	return code, stdout.String(), stderr.String()
}

func TestRun_UsageErrors(t *testing.T) {
	folder := createImageFolder(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"too many arguments", []string{folder, t.TempDir(), "extra"}},
		{"in-place with output folder", []string{"--in-place", folder, t.TempDir()}},
		{"unknown flag", []string{"--frobnicate", folder}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var created []config.Detector
			code, _, stderr := runCLI(t, recordingDeps(&created), tt.args...)

			if code != ExitUsage {
				t.Errorf("exit code: got %d, want %d (stderr: %s)", code, ExitUsage, stderr)
			}
			if len(created) != 0 {
				t.Errorf("detector constructed %d times on the usage path", len(created))
			}
			if !strings.Contains(stderr, "usage:") {
				t.Errorf("stderr should contain usage, got %q", stderr)
			}
		})
	}
}

func TestRun_MissingFolder(t *testing.T) {
	var created []config.Detector
	code, _, stderr := runCLI(t, recordingDeps(&created), "--backend", "shapes", filepath.Join(t.TempDir(), "missing"))

	if code != ExitError {
		t.Errorf("exit code: got %d, want %d", code, ExitError)
	}
	if len(created) != 0 {
		t.Errorf("detector constructed %d times for a missing folder", len(created))
	}
	if !strings.Contains(stderr, "no such file or directory") {
		t.Errorf("stderr should report the OS error, got %q", stderr)
	}
}

func TestRun_Success(t *testing.T) {
	folder := createImageFolder(t)
	out := filepath.Join(t.TempDir(), "out")

	var created []config.Detector
	code, stdout, stderr := runCLI(t, recordingDeps(&created), "--backend", "shapes", folder, out)

	if code != ExitOK {
		t.Fatalf("exit code: got %d, want 0 (stderr: %s)", code, stderr)
	}
	if len(created) != 1 {
		t.Errorf("detector constructed %d times, want 1", len(created))
	}
	if !strings.Contains(stdout, "FILES") {
		t.Errorf("stdout should contain the summary table, got %q", stdout)
	}
	if !strings.Contains(stderr, "1 bounding boxes detected") {
		t.Errorf("stderr should log detections, got %q", stderr)
	}
	if _, err := os.Stat(filepath.Join(out, "a.png")); err != nil {
		t.Errorf("output image not written: %v", err)
	}
}

func TestRun_InvalidConfiguration(t *testing.T) {
	folder := createImageFolder(t)

	var created []config.Detector
	code, _, stderr := runCLI(t, recordingDeps(&created), "--threshold", "2", folder)

	if code != ExitError {
		t.Errorf("exit code: got %d, want %d", code, ExitError)
	}
	if len(created) != 0 {
		t.Errorf("detector constructed %d times with an invalid configuration", len(created))
	}
	if !strings.Contains(stderr, "threshold") {
		t.Errorf("stderr should name the bad setting, got %q", stderr)
	}
}

func TestRun_ConfigFileAndFlags(t *testing.T) {
	folder := createImageFolder(t)
	cfgPath := filepath.Join(t.TempDir(), "detectnet.yaml")
	content := "detector:\n  backend: shapes\n  threshold: 0.3\n  max_boxes: 10\nlog_level: warn\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	var created []config.Detector
	code, _, stderr := runCLI(t, recordingDeps(&created), "-c", cfgPath, "--max-boxes", "20", "--profile", folder)

	if code != ExitOK {
		t.Fatalf("exit code: got %d (stderr: %s)", code, stderr)
	}
	if len(created) != 1 {
		t.Fatalf("detector constructed %d times, want 1", len(created))
	}
	got := created[0]
	if got.Backend != config.BackendShapes || got.Threshold != 0.3 || got.MaxBoxes != 20 || !got.Profile {
		t.Errorf("detector config: %+v", got)
	}
	if strings.Contains(stderr, "INFO") {
		t.Errorf("log_level warn from the file should hide info lines:\n%s", stderr)
	}
}

func TestRun_BadConfigFile(t *testing.T) {
	folder := createImageFolder(t)

	var created []config.Detector
	code, _, _ := runCLI(t, recordingDeps(&created), "--config", "/nonexistent/detectnet.yaml", folder)

	if code != ExitError {
		t.Errorf("exit code: got %d, want %d", code, ExitError)
	}
}

func TestRun_EnvironmentVariables(t *testing.T) {
	folder := createImageFolder(t)
	t.Setenv("DETECTNET_BACKEND", "shapes")
	t.Setenv("DETECTNET_NMS", "0.7")

	var created []config.Detector
	code, _, stderr := runCLI(t, recordingDeps(&created), folder)

	if code != ExitOK {
		t.Fatalf("exit code: got %d (stderr: %s)", code, stderr)
	}
	if created[0].Backend != config.BackendShapes || created[0].NMS != 0.7 {
		t.Errorf("detector config: %+v", created[0])
	}
}

func TestRun_Version(t *testing.T) {
	var created []config.Detector
	code, stdout, _ := runCLI(t, recordingDeps(&created), "--version")

	if code != ExitOK {
		t.Errorf("exit code: got %d, want 0", code)
	}
	for _, want := range []string{"1.2.3", "today", "abc123"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("version output missing %q: %q", want, stdout)
		}
	}
	if len(created) != 0 {
		t.Error("--version should not construct a detector")
	}
}
