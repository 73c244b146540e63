// Package media owns the local audio capture device. Acquire/Release are the
// single open/close point for the OS device; peer links only borrow tracks.
package media

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/sigma-social/voiced/internal/core"
)

type Options struct {
	// Synthetic swaps the microphone for a generated Opus-silence source.
	Synthetic  bool
	SampleRate int
	Channels   int
}

// Acquirer implements core.MediaAcquirer.
type Acquirer struct {
	opts Options
}

func NewAcquirer(opts Options) *Acquirer {
	if opts.SampleRate == 0 {
		opts.SampleRate = 48000
	}
	if opts.Channels == 0 {
		opts.Channels = 1
	}
	return &Acquirer{opts: opts}
}

func (a *Acquirer) Acquire(ctx context.Context) (core.MediaSource, error) {
	if a.opts.Synthetic {
		return newSyntheticSession(a.opts)
	}
	return captureSession(ctx, a.opts)
}

// Session is one live capture. Muting gates the outbound sample writer; the
// device stays open, so unmute needs no renegotiation.
type Session struct {
	tracks []webrtc.TrackLocal
	muted  atomic.Bool

	stop        func()
	releaseOnce sync.Once
}

func (s *Session) Tracks() []webrtc.TrackLocal { return s.tracks }

func (s *Session) SetMuted(muted bool) { s.muted.Store(muted) }

func (s *Session) Muted() bool { return s.muted.Load() }

// Release stops the capture pump and the underlying device. Idempotent.
func (s *Session) Release() {
	s.releaseOnce.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}
