//go:build !linux || !cgo

package media

import (
	"context"
	"errors"

	"github.com/sigma-social/voiced/internal/core"
)

// Microphone capture via pion/mediadevices needs platform drivers that are
// only wired for Linux here. Elsewhere the synthetic source must be enabled
// explicitly.
func captureSession(_ context.Context, _ Options) (*Session, error) {
	return nil, &core.MediaAcquisitionError{
		Cause: errors.New("microphone capture not supported on this platform; enable media.synthetic"),
	}
}
