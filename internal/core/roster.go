package core

// ParticipantState is the read-only roster view of one peer link.
type ParticipantState struct {
	ID        ParticipantID `json:"id"`
	Name      string        `json:"name"`
	Photo     string        `json:"photo,omitempty"`
	State     LinkState     `json:"state"`
	TalkLevel float64       `json:"talk_level"`
	Speaking  bool          `json:"speaking"`
	Muted     bool          `json:"muted"`
}

// Roster is a point-in-time snapshot, ordered by participant id.
type Roster []ParticipantState
