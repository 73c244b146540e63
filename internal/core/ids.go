package core

// ParticipantID identifies a remote peer within one signaling session.
// Assigned by the relay; not stable across sessions.
type ParticipantID string

// SessionState is the lifecycle state of the whole call session.
type SessionState string

const (
	SessionIdle     SessionState = "idle"
	SessionStarting SessionState = "starting"
	SessionActive   SessionState = "active"
	SessionEnding   SessionState = "ending"
)

// LinkRole fixes who sends the first offer on a peer link.
type LinkRole string

const (
	RoleInitiator LinkRole = "initiator"
	RoleResponder LinkRole = "responder"
)

// LinkState is the negotiation state of one peer link. Closed is terminal.
type LinkState string

const (
	LinkNew          LinkState = "new"
	LinkNegotiating  LinkState = "negotiating"
	LinkConnected    LinkState = "connected"
	LinkDisconnected LinkState = "disconnected"
	LinkClosed       LinkState = "closed"
)
