//go:build !cgo

package detection

import (
	"errors"

	"go.uber.org/zap"

	"github.com/jtrovato/jetson-inference/internal/config"
)

func init() {
	Register(config.BackendText, func(config.Detector, *zap.SugaredLogger) (Detector, error) {
		return nil, errors.New("text backend requires a cgo build with libtesseract")
	})
}
