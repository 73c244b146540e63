package mesh

import (
	"fmt"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/sigma-social/voiced/internal/core"
)

type sentFrame struct {
	kind string
	to   core.ParticipantID
}

type fakeSender struct {
	frames []sentFrame
}

func (s *fakeSender) SendJoin() error  { s.frames = append(s.frames, sentFrame{kind: "join"}); return nil }
func (s *fakeSender) SendLeave() error { s.frames = append(s.frames, sentFrame{kind: "leave"}); return nil }

func (s *fakeSender) SendOffer(to core.ParticipantID, _ webrtc.SessionDescription) error {
	s.frames = append(s.frames, sentFrame{kind: "offer", to: to})
	return nil
}

func (s *fakeSender) SendAnswer(to core.ParticipantID, _ webrtc.SessionDescription) error {
	s.frames = append(s.frames, sentFrame{kind: "answer", to: to})
	return nil
}

func (s *fakeSender) SendCandidate(to core.ParticipantID, _ webrtc.ICECandidateInit) error {
	s.frames = append(s.frames, sentFrame{kind: "candidate", to: to})
	return nil
}

func (s *fakeSender) SendMuteStatus(bool) error {
	s.frames = append(s.frames, sentFrame{kind: "mute-status"})
	return nil
}

func (s *fakeSender) count(kind string) int {
	n := 0
	for _, f := range s.frames {
		if f.kind == kind {
			n++
		}
	}
	return n
}

type fakeTransport struct {
	offers     int
	answers    int
	candidates []webrtc.ICECandidateInit
	tracks     int
	closed     bool

	failApplyAnswer error

	onICE          func(webrtc.ICECandidateInit)
	onDisconnected func()
}

func (t *fakeTransport) AddLocalTracks(tracks []webrtc.TrackLocal) error {
	t.tracks += len(tracks)
	return nil
}

func (t *fakeTransport) CreateOffer() (webrtc.SessionDescription, error) {
	t.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "o"}, nil
}

func (t *fakeTransport) ApplyAnswer(webrtc.SessionDescription) error {
	if t.failApplyAnswer != nil {
		return t.failApplyAnswer
	}
	t.answers++
	return nil
}

func (t *fakeTransport) ApplyOfferCreateAnswer(webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "a"}, nil
}

func (t *fakeTransport) AddICECandidate(cand webrtc.ICECandidateInit) error {
	t.candidates = append(t.candidates, cand)
	return nil
}

func (t *fakeTransport) OnICECandidate(fn func(webrtc.ICECandidateInit)) { t.onICE = fn }
func (t *fakeTransport) OnConnected(func())                          {}
func (t *fakeTransport) OnDisconnected(fn func())                    { t.onDisconnected = fn }
func (t *fakeTransport) OnTrack(func(*webrtc.TrackRemote))           {}
func (t *fakeTransport) Close()                                      { t.closed = true }

type harness struct {
	sender     *fakeSender
	transports []*fakeTransport
	m          *Manager
}

func newHarness() *harness {
	h := &harness{sender: &fakeSender{}}
	h.m = NewManager(Options{
		Send: h.sender,
		Transports: func() (core.PeerTransport, error) {
			tr := &fakeTransport{}
			h.transports = append(h.transports, tr)
			return tr, nil
		},
	})
	return h
}

func offer() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "remote"}
}

func answer() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "remote"}
}

func TestSyncRoster(t *testing.T) {
	t.Run("joining a populated room offers to every peer", func(t *testing.T) {
		h := newHarness()
		h.m.SyncRoster([]core.ParticipantID{"a", "b", "c"})

		if got := h.sender.count("offer"); got != 3 {
			t.Fatalf("offers sent = %d, want 3", got)
		}
		if len(h.transports) != 3 {
			t.Fatalf("transports created = %d, want 3", len(h.transports))
		}
	})

	t.Run("idempotent on an unchanged roster", func(t *testing.T) {
		h := newHarness()
		ids := []core.ParticipantID{"a", "b"}
		h.m.SyncRoster(ids)
		h.m.SyncRoster(ids)

		if got := h.sender.count("offer"); got != 2 {
			t.Fatalf("offers sent = %d, want 2 (no renegotiation)", got)
		}
	})

	t.Run("closes links for peers missing from the list", func(t *testing.T) {
		h := newHarness()
		h.m.SyncRoster([]core.ParticipantID{"a", "b"})
		h.m.SyncRoster([]core.ParticipantID{"a"})

		if !h.transports[1].closed {
			t.Fatalf("expected transport for removed peer to be closed")
		}
		if h.transports[0].closed {
			t.Fatalf("surviving peer's transport must stay open")
		}
	})

	t.Run("recreates a dead link for a still-present peer", func(t *testing.T) {
		h := newHarness()
		h.m.SyncRoster([]core.ParticipantID{"a"})

		// Transport loss drops the link without renegotiating.
		h.transports[0].onDisconnected()
		if got := len(h.m.Roster()); got != 0 {
			t.Fatalf("roster size after disconnect = %d, want 0", got)
		}

		h.m.SyncRoster([]core.ParticipantID{"a"})
		if got := h.sender.count("offer"); got != 2 {
			t.Fatalf("offers sent = %d, want 2 (fresh negotiation)", got)
		}
	})
}

func TestHandleOffer(t *testing.T) {
	t.Run("creates a responder link and answers", func(t *testing.T) {
		h := newHarness()
		h.m.HandleOffer("a", offer())

		if got := h.sender.count("answer"); got != 1 {
			t.Fatalf("answers sent = %d, want 1", got)
		}
		roster := h.m.Roster()
		if len(roster) != 1 || roster[0].State != core.LinkNegotiating {
			t.Fatalf("roster = %+v, want one negotiating entry", roster)
		}
	})

	t.Run("replaced transport's candidates are not forwarded", func(t *testing.T) {
		h := newHarness()
		h.m.HandleOffer("a", offer())
		h.m.HandleOffer("a", offer())

		h.transports[0].onICE(webrtc.ICECandidateInit{Candidate: "stale"})
		if got := h.sender.count("candidate"); got != 0 {
			t.Fatalf("candidates forwarded from replaced transport = %d, want 0", got)
		}

		h.transports[1].onICE(webrtc.ICECandidateInit{Candidate: "live"})
		if got := h.sender.count("candidate"); got != 1 {
			t.Fatalf("candidates forwarded from live transport = %d, want 1", got)
		}
	})

	t.Run("duplicate offer replaces the live link", func(t *testing.T) {
		h := newHarness()
		h.m.HandleOffer("a", offer())
		h.m.HandleOffer("a", offer())

		if !h.transports[0].closed {
			t.Fatalf("first transport must be closed on replacement")
		}
		if h.transports[1].closed {
			t.Fatalf("replacement transport must stay open")
		}
		if got := h.sender.count("answer"); got != 2 {
			t.Fatalf("answers sent = %d, want 2", got)
		}
	})
}

func TestHandleAnswer(t *testing.T) {
	t.Run("applies the answer on an initiator link", func(t *testing.T) {
		h := newHarness()
		h.m.SyncRoster([]core.ParticipantID{"a"})
		h.m.HandleAnswer("a", answer())

		if h.transports[0].answers != 1 {
			t.Fatalf("ApplyAnswer calls = %d, want 1", h.transports[0].answers)
		}
	})

	t.Run("drops an answer from an unknown peer", func(t *testing.T) {
		h := newHarness()
		h.m.HandleAnswer("ghost", answer())
		if len(h.transports) != 0 {
			t.Fatalf("no transport should exist for an unknown answer")
		}
	})

	t.Run("drops an answer on a responder link", func(t *testing.T) {
		h := newHarness()
		h.m.HandleOffer("a", offer())
		h.m.HandleAnswer("a", answer())

		if h.transports[0].answers != 0 {
			t.Fatalf("answer must not be applied to a responder link")
		}
	})

	t.Run("drops a second answer", func(t *testing.T) {
		h := newHarness()
		h.m.SyncRoster([]core.ParticipantID{"a"})
		h.m.HandleAnswer("a", answer())
		h.m.HandleAnswer("a", answer())

		if h.transports[0].answers != 1 {
			t.Fatalf("ApplyAnswer calls = %d, want 1", h.transports[0].answers)
		}
	})
}

func TestHandleCandidate(t *testing.T) {
	t.Run("queued before the remote description, drained in order", func(t *testing.T) {
		h := newHarness()
		h.m.SyncRoster([]core.ParticipantID{"a"})

		for i := 0; i < 3; i++ {
			h.m.HandleCandidate("a", webrtc.ICECandidateInit{Candidate: fmt.Sprintf("cand-%d", i)})
		}
		if got := len(h.transports[0].candidates); got != 0 {
			t.Fatalf("candidates applied before answer = %d, want 0", got)
		}

		h.m.HandleAnswer("a", answer())
		got := h.transports[0].candidates
		if len(got) != 3 {
			t.Fatalf("candidates applied = %d, want 3", len(got))
		}
		for i, cand := range got {
			if want := fmt.Sprintf("cand-%d", i); cand.Candidate != want {
				t.Fatalf("candidate %d = %q, want %q (arrival order)", i, cand.Candidate, want)
			}
		}
	})

	t.Run("applied immediately once the remote description is set", func(t *testing.T) {
		h := newHarness()
		h.m.HandleOffer("a", offer())
		h.m.HandleCandidate("a", webrtc.ICECandidateInit{Candidate: "now"})

		if got := len(h.transports[0].candidates); got != 1 {
			t.Fatalf("candidates applied = %d, want 1", got)
		}
	})

	t.Run("dropped for an unknown peer", func(t *testing.T) {
		h := newHarness()
		h.m.HandleCandidate("ghost", webrtc.ICECandidateInit{Candidate: "x"})
		if len(h.transports) != 0 {
			t.Fatalf("no transport should exist")
		}
	})
}

func TestHandleLeave(t *testing.T) {
	h := newHarness()
	h.m.SyncRoster([]core.ParticipantID{"a", "b"})
	h.m.HandleLeave("a")

	if !h.transports[0].closed {
		t.Fatalf("leaving peer's transport must be closed")
	}
	roster := h.m.Roster()
	if len(roster) != 1 || roster[0].ID != "b" {
		t.Fatalf("roster = %+v, want only b", roster)
	}
}

func TestCloseAll(t *testing.T) {
	h := newHarness()
	h.m.SyncRoster([]core.ParticipantID{"a", "b"})
	h.m.CloseAll()

	for i, tr := range h.transports {
		if !tr.closed {
			t.Fatalf("transport %d not closed", i)
		}
	}

	// A closed manager refuses further events.
	h.m.SyncRoster([]core.ParticipantID{"c"})
	h.m.HandleOffer("d", offer())
	if len(h.transports) != 2 {
		t.Fatalf("events after CloseAll must not create links")
	}
}

func TestRoster(t *testing.T) {
	t.Run("sorted by id with raw-id name fallback", func(t *testing.T) {
		h := newHarness()
		h.m.SyncRoster([]core.ParticipantID{"b", "a"})

		roster := h.m.Roster()
		if len(roster) != 2 || roster[0].ID != "a" || roster[1].ID != "b" {
			t.Fatalf("roster order = %+v, want a then b", roster)
		}
		if roster[0].Name != "a" {
			t.Fatalf("name = %q, want raw id fallback", roster[0].Name)
		}
	})

	t.Run("mute masks speaking", func(t *testing.T) {
		h := newHarness()
		h.m.SyncRoster([]core.ParticipantID{"a"})

		h.m.mu.Lock()
		h.m.links["a"].speaking = true
		h.m.links["a"].talkLevel = 0.8
		h.m.mu.Unlock()

		h.m.SetPeerMuted("a", true)
		roster := h.m.Roster()
		if roster[0].Speaking {
			t.Fatalf("muted peer must not be reported as speaking")
		}
		if roster[0].TalkLevel != 0.8 {
			t.Fatalf("talk level must still be reported, got %v", roster[0].TalkLevel)
		}

		h.m.SetPeerMuted("a", false)
		if !h.m.Roster()[0].Speaking {
			t.Fatalf("unmuted peer with activity must be speaking")
		}
	})

	t.Run("mute state survives link replacement", func(t *testing.T) {
		h := newHarness()
		h.m.HandleOffer("a", offer())
		h.m.SetPeerMuted("a", true)
		h.m.HandleOffer("a", offer())

		if !h.m.Roster()[0].Muted {
			t.Fatalf("mute flag must survive renegotiation")
		}
	})
}
