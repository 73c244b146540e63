// Package signalws is the relay-facing signaling channel: one room-scoped
// websocket carrying the JSON negotiation protocol. It moves bytes and
// decodes frames; all call policy lives in the mesh and session layers.
package signalws

import (
	"github.com/pion/webrtc/v4"

	"github.com/sigma-social/voiced/internal/core"
)

type messageType string

const (
	msgJoin          messageType = "join"
	msgUserList      messageType = "user-list"
	msgOffer         messageType = "offer"
	msgAnswer        messageType = "answer"
	msgCandidate     messageType = "candidate"
	msgLeave         messageType = "leave"
	msgMuteStatus    messageType = "mute-status"
	msgRequestStatus messageType = "request-status"
)

// message is the wire envelope. One struct covers every frame; unused
// fields stay omitted, which keeps outbound frames minimal.
type message struct {
	Type      messageType                `json:"type"`
	Users     []core.ParticipantID       `json:"users,omitempty"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	To        core.ParticipantID         `json:"to,omitempty"`
	From      core.ParticipantID         `json:"from,omitempty"`
	IsMuted   *bool                      `json:"isMuted,omitempty"`
}
