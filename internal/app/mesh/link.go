// Package mesh owns the full-mesh set of peer links for one call session.
// The manager is the single reconciliation point between the relay's view
// of the room and local state; links never outlive it.
package mesh

import (
	"github.com/pion/webrtc/v4"

	"github.com/sigma-social/voiced/internal/activity"
	"github.com/sigma-social/voiced/internal/core"
)

// link is one participant's negotiated connection. All fields are guarded
// by the manager's lock; pion callbacks re-enter through manager methods.
type link struct {
	id    core.ParticipantID
	role  core.LinkRole
	state core.LinkState
	tr    core.PeerTransport

	// pending holds candidates that arrived before the remote description;
	// drained in arrival order once it is applied.
	pending   []webrtc.ICECandidateInit
	remoteSet bool

	remoteTrack *webrtc.TrackRemote
	monitor     *activity.Monitor
	talkLevel   float64
	speaking    bool
}

// closeLocked releases the transport and stops the activity monitor.
// Callers hold the manager lock. Safe to call on an already-closed link.
func (l *link) closeLocked() {
	if l.state == core.LinkClosed {
		return
	}
	l.state = core.LinkClosed
	if l.monitor != nil {
		l.monitor.Stop()
		l.monitor = nil
	}
	l.tr.Close()
}
