package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/jtrovato/jetson-inference/internal/config"
	"github.com/jtrovato/jetson-inference/internal/imaging"
)

// ErrUnknownBackend is returned by Create for a backend nobody registered.
var ErrUnknownBackend = errors.New("unknown detector backend")

// Detector runs object detection on one image at a time.
type Detector interface {
	// MaxBoundingBoxes is the most detections a single Detect call reports.
	MaxBoundingBoxes() int

	// NumClasses is the number of classes the detector distinguishes.
	NumClasses() int

	// ClassName returns a human-readable name for class, or its index as text
	// when no name is known.
	ClassName(class int) string

	// Detect finds objects in img and writes up to
	// min(MaxBoundingBoxes, out.Capacity()) of them into out. It returns the
	// number written. On error the contents of out are undefined.
	Detect(ctx context.Context, img *imaging.Buffer, out *OutputBuffers) (int, error)

	// EnableProfiler turns on per-stage timing of Detect calls.
	EnableProfiler()

	// Close releases the detector. No other method may be called afterwards.
	Close() error
}

// Factory constructs a detector from its configuration.
type Factory func(cfg config.Detector, logger *zap.SugaredLogger) (Detector, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available to Create under name. Registering the
// same name twice replaces the earlier factory.
func Register(name string, factory Factory) {
	registryMu.Lock()
	registry[name] = factory
	registryMu.Unlock()
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create constructs the detector named by cfg.Backend.
//
// It fails rather than returning a partially usable handle: missing model
// files, unreadable labels and runtime initialization errors are all reported
// here.
func Create(cfg config.Detector, logger *zap.SugaredLogger) (Detector, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Backend]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	det, err := factory(cfg, logger.Named(cfg.Backend))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s detector: %w", cfg.Backend, err)
	}
	return det, nil
}
