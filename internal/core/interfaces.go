package core

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/sigma-social/voiced/internal/domain"
)

// SignalSender is the outbound half of the relay wire protocol.
// Sends are best-effort once the session is ending; callers log, not abort.
type SignalSender interface {
	SendJoin() error
	SendLeave() error
	SendOffer(to ParticipantID, sdp webrtc.SessionDescription) error
	SendAnswer(to ParticipantID, sdp webrtc.SessionDescription) error
	SendCandidate(to ParticipantID, cand webrtc.ICECandidateInit) error
	SendMuteStatus(muted bool) error
}

// SignalEvents is the inbound half: the channel adapter decodes relay frames
// and calls exactly one method per frame, in arrival order.
type SignalEvents interface {
	OnUserList(ids []ParticipantID)
	OnOffer(from ParticipantID, sdp webrtc.SessionDescription)
	OnAnswer(from ParticipantID, sdp webrtc.SessionDescription)
	OnCandidate(from ParticipantID, cand webrtc.ICECandidateInit)
	OnPeerLeave(from ParticipantID)
	OnMuteStatus(from ParticipantID, muted bool)
	OnStatusRequest()
	// OnChannelClosed fires once when the channel drops, with the read error.
	OnChannelClosed(err error)
}

// SignalChannel is one open room-scoped duplex connection to the relay.
// Owned by the session controller; Close is idempotent.
type SignalChannel interface {
	SignalSender
	Close()
}

// ChannelDialer opens a SignalChannel for a room, delivering decoded frames
// to ev. Implementations must fetch a fresh auth token per dial.
type ChannelDialer interface {
	Dial(ctx context.Context, room domain.RoomID, ev SignalEvents) (SignalChannel, error)
}

// PeerTransport is one negotiated media connection to a single peer.
// Wraps the underlying PeerConnection so the mesh state machine stays
// testable without pion.
type PeerTransport interface {
	// AddLocalTracks must be called before CreateOffer so the tracks are in
	// the offer's media description.
	AddLocalTracks(tracks []webrtc.TrackLocal) error
	CreateOffer() (webrtc.SessionDescription, error)
	ApplyAnswer(sdp webrtc.SessionDescription) error
	// ApplyOfferCreateAnswer is the responder path: apply remote offer,
	// produce and set the local answer.
	ApplyOfferCreateAnswer(sdp webrtc.SessionDescription) (webrtc.SessionDescription, error)
	AddICECandidate(cand webrtc.ICECandidateInit) error

	OnICECandidate(func(webrtc.ICECandidateInit))
	OnConnected(func())
	OnDisconnected(func())
	OnTrack(func(track *webrtc.TrackRemote))

	// Close releases the transport. Idempotent.
	Close()
}

// TransportFactory builds one PeerTransport per peer link.
type TransportFactory func() (PeerTransport, error)

// MediaSource owns the local capture. Tracks are borrowed by peer links and
// must never be stopped by them; Release is the single close point.
type MediaSource interface {
	Tracks() []webrtc.TrackLocal
	SetMuted(muted bool)
	Muted() bool
	// Release stops every owned track. Idempotent, safe from any state.
	Release()
}

// MediaAcquirer opens the capture device. Returns *MediaAcquisitionError on
// denied permission or missing device.
type MediaAcquirer interface {
	Acquire(ctx context.Context) (MediaSource, error)
}

// ProfileResolver maps a ParticipantID to roster display metadata.
// Called once per newly observed id, not on every reconciliation.
type ProfileResolver interface {
	Profile(ctx context.Context, id ParticipantID) (domain.Profile, error)
}

// TokenSource yields a short-lived access token. Implementations refresh on
// every call; the signaling channel is long-lived and opened rarely.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
