package detection

import (
	"time"

	"go.uber.org/zap"
)

// timing is the duration of one stage of a Detect call.
type timing struct {
	Stage    string
	Duration time.Duration
}

// Profiler records stage durations of Detect calls. A disabled profiler costs
// one branch per call.
type Profiler struct {
	logger  *zap.SugaredLogger
	enabled bool
	start   time.Time
	last    time.Time
	timings []timing
}

// NewProfiler returns a disabled profiler reporting to logger.
func NewProfiler(logger *zap.SugaredLogger) *Profiler {
	return &Profiler{logger: logger}
}

// Enable turns timing on.
func (p *Profiler) Enable() {
	p.enabled = true
}

// Begin starts timing a new call.
func (p *Profiler) Begin() {
	if !p.enabled {
		return
	}
	p.start = time.Now()
	p.last = p.start
	p.timings = p.timings[:0]
}

// Lap closes the current stage under the given name.
func (p *Profiler) Lap(stage string) {
	if !p.enabled {
		return
	}
	now := time.Now()
	p.timings = append(p.timings, timing{Stage: stage, Duration: now.Sub(p.last)})
	p.last = now
}

// End logs the stages of the current call as one line.
func (p *Profiler) End(width, height int) {
	if !p.enabled {
		return
	}

	fields := make([]interface{}, 0, 2*len(p.timings)+6)
	fields = append(fields, "width", width, "height", height)
	for _, t := range p.timings {
		fields = append(fields, t.Stage, t.Duration)
	}
	fields = append(fields, "total", time.Since(p.start))
	p.logger.Infow("detect timing", fields...)
}
