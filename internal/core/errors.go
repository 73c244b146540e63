package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyInCall is returned by Start while a session is active or in a
	// transient state.
	ErrAlreadyInCall = errors.New("already in a call")

	// ErrNotInCall is returned by operations that need an active session.
	ErrNotInCall = errors.New("no active call")

	// ErrSignalingUnavailable means the signaling channel failed to open or
	// dropped before join completed. Fatal to Start; triggers full teardown.
	ErrSignalingUnavailable = errors.New("signaling unavailable")

	// ErrStaleSignal marks an answer/candidate for an unknown or closed link.
	// Logged and dropped, never fatal.
	ErrStaleSignal = errors.New("stale signaling message")

	// ErrBackpressure is returned when the signaling send buffer is full.
	ErrBackpressure = errors.New("signal send buffer full")
)

// MediaAcquisitionError wraps a microphone capture failure: permission
// denied, no device, or no capture support on this platform. Fatal to Start.
type MediaAcquisitionError struct {
	Cause error
}

func (e *MediaAcquisitionError) Error() string {
	return fmt.Sprintf("media acquisition failed: %v", e.Cause)
}

func (e *MediaAcquisitionError) Unwrap() error { return e.Cause }
