package media

import (
	"context"
	"testing"

	"github.com/pion/webrtc/v4"
)

func syntheticAcquirer() *Acquirer {
	return NewAcquirer(Options{Synthetic: true, SampleRate: 48000, Channels: 1})
}

func TestAcquireSynthetic(t *testing.T) {
	src, err := syntheticAcquirer().Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer src.Release()

	tracks := src.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("tracks = %d, want 1", len(tracks))
	}
	if tracks[0].Kind() != webrtc.RTPCodecTypeAudio {
		t.Fatalf("kind = %v, want audio", tracks[0].Kind())
	}
}

func TestMuteFlag(t *testing.T) {
	src, err := syntheticAcquirer().Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer src.Release()

	if src.Muted() {
		t.Fatalf("new session must start unmuted")
	}
	src.SetMuted(true)
	if !src.Muted() {
		t.Fatalf("SetMuted(true) not observed")
	}
	src.SetMuted(false)
	if src.Muted() {
		t.Fatalf("SetMuted(false) not observed")
	}
}

func TestReleaseIdempotent(t *testing.T) {
	src, err := syntheticAcquirer().Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	// A second Release must not panic on the closed stop channel.
	src.Release()
	src.Release()
}

func TestDefaultOptions(t *testing.T) {
	a := NewAcquirer(Options{Synthetic: true})
	if a.opts.SampleRate != 48000 || a.opts.Channels != 1 {
		t.Fatalf("defaults = %+v, want 48 kHz mono", a.opts)
	}
}
