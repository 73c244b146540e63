package mesh

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/sigma-social/voiced/internal/activity"
	"github.com/sigma-social/voiced/internal/core"
	"github.com/sigma-social/voiced/internal/domain"
)

const profileTimeout = 5 * time.Second

// Options wires a Manager. Send and Transports are required; Profiles may
// be nil (roster falls back to raw ids), Media may be nil only in tests.
type Options struct {
	Send       core.SignalSender
	Transports core.TransportFactory
	Media      core.MediaSource
	Profiles   core.ProfileResolver

	ActivityInterval  time.Duration
	ActivityThreshold float64
	AudioLevelExtID   uint8
}

// Manager owns the peer-link map. It is the only writer: signaling events,
// roster reconciliation and pion callbacks all funnel through its lock, so
// each link's state machine sees a serialized event stream.
type Manager struct {
	opts Options

	mu       sync.Mutex
	links    map[core.ParticipantID]*link
	muted    map[core.ParticipantID]bool
	profiles map[core.ParticipantID]domain.Profile
	fetched  map[core.ParticipantID]bool
	closed   bool
}

func NewManager(opts Options) *Manager {
	if opts.ActivityInterval <= 0 {
		opts.ActivityInterval = 50 * time.Millisecond
	}
	return &Manager{
		opts:     opts,
		links:    make(map[core.ParticipantID]*link),
		muted:    make(map[core.ParticipantID]bool),
		profiles: make(map[core.ParticipantID]domain.Profile),
		fetched:  make(map[core.ParticipantID]bool),
	}
}

// SyncRoster reconciles the link map against the relay's user-list: extra
// links are closed, missing ones created as initiators, dead ones (already
// disconnected or closed) recreated. Idempotent on an unchanged set.
func (m *Manager) SyncRoster(ids []core.ParticipantID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	want := make(map[core.ParticipantID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	for id, l := range m.links {
		if !want[id] {
			log.Info().Str("module", "mesh").Str("peer", string(id)).Msg("peer left roster")
			l.closeLocked()
			delete(m.links, id)
			delete(m.muted, id)
		}
	}

	for _, id := range ids {
		if l, ok := m.links[id]; ok {
			if l.state != core.LinkDisconnected && l.state != core.LinkClosed {
				continue
			}
			// Dead link for a still-present peer: drop and renegotiate.
			l.closeLocked()
			delete(m.links, id)
		}
		m.createInitiatorLocked(id)
	}
}

// HandleOffer routes an inbound offer. An offer for a live link replaces
// it: the newest negotiation attempt wins.
func (m *Manager) HandleOffer(from core.ParticipantID, sdp webrtc.SessionDescription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	if old, ok := m.links[from]; ok {
		log.Info().Str("module", "mesh").Str("peer", string(from)).Msg("duplicate offer, replacing link")
		old.closeLocked()
		delete(m.links, from)
	}

	tr, err := m.opts.Transports()
	if err != nil {
		log.Error().Str("module", "mesh").Str("peer", string(from)).Err(err).Msg("transport create")
		return
	}
	l := &link{id: from, role: core.RoleResponder, state: core.LinkNew, tr: tr}
	m.links[from] = l
	m.bindLocked(l)
	m.ensureProfileLocked(from)

	if err := tr.AddLocalTracks(m.localTracks()); err != nil {
		log.Error().Str("module", "mesh").Str("peer", string(from)).Err(err).Msg("add local tracks")
		m.dropLocked(l)
		return
	}
	answer, err := tr.ApplyOfferCreateAnswer(sdp)
	if err != nil {
		log.Error().Str("module", "mesh").Str("peer", string(from)).Err(err).Msg("apply offer")
		m.dropLocked(l)
		return
	}
	l.remoteSet = true
	l.state = core.LinkNegotiating
	if err := m.opts.Send.SendAnswer(from, answer); err != nil {
		log.Warn().Str("module", "mesh").Str("peer", string(from)).Err(err).Msg("send answer")
	}
}

// HandleAnswer applies a remote answer on an initiator link, then drains
// queued candidates in arrival order. Unknown or out-of-place answers are
// stale and dropped.
func (m *Manager) HandleAnswer(from core.ParticipantID, sdp webrtc.SessionDescription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[from]
	if m.closed || !ok || l.state == core.LinkClosed || l.role != core.RoleInitiator || l.remoteSet {
		log.Debug().Str("module", "mesh").Str("peer", string(from)).Err(core.ErrStaleSignal).Msg("answer dropped")
		return
	}
	if err := l.tr.ApplyAnswer(sdp); err != nil {
		log.Error().Str("module", "mesh").Str("peer", string(from)).Err(err).Msg("apply answer")
		m.dropLocked(l)
		return
	}
	l.remoteSet = true
	m.drainCandidatesLocked(l)
}

// HandleCandidate applies or queues one remote ICE candidate. Candidates
// arriving before the remote description are held and never dropped.
func (m *Manager) HandleCandidate(from core.ParticipantID, cand webrtc.ICECandidateInit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[from]
	if m.closed || !ok || l.state == core.LinkClosed {
		log.Debug().Str("module", "mesh").Str("peer", string(from)).Err(core.ErrStaleSignal).Msg("candidate dropped")
		return
	}
	if !l.remoteSet {
		l.pending = append(l.pending, cand)
		return
	}
	if err := l.tr.AddICECandidate(cand); err != nil {
		log.Warn().Str("module", "mesh").Str("peer", string(from)).Err(err).Msg("add candidate")
	}
}

// HandleLeave removes a voluntarily departing peer.
func (m *Manager) HandleLeave(from core.ParticipantID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[from]
	if !ok {
		return
	}
	log.Info().Str("module", "mesh").Str("peer", string(from)).Msg("peer leave")
	l.closeLocked()
	delete(m.links, from)
	delete(m.muted, from)
}

// SetPeerMuted records a peer's broadcast mute state. Kept outside the link
// so it survives link replacement and out-of-order arrival.
func (m *Manager) SetPeerMuted(from core.ParticipantID, muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.muted[from] = muted
}

// CloseAll tears down every link. The manager refuses further events.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, l := range m.links {
		l.closeLocked()
		delete(m.links, id)
	}
}

// Roster returns a point-in-time snapshot for the UI layer, sorted by id
// for stable output.
func (m *Manager) Roster() core.Roster {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(core.Roster, 0, len(m.links))
	for id, l := range m.links {
		p := m.profiles[id]
		name := p.DisplayName
		if name == "" {
			name = string(id)
		}
		out = append(out, core.ParticipantState{
			ID:        id,
			Name:      name,
			Photo:     p.Photo,
			State:     l.state,
			TalkLevel: l.talkLevel,
			Speaking:  l.speaking && !m.muted[id],
			Muted:     m.muted[id],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) createInitiatorLocked(id core.ParticipantID) {
	tr, err := m.opts.Transports()
	if err != nil {
		log.Error().Str("module", "mesh").Str("peer", string(id)).Err(err).Msg("transport create")
		return
	}
	l := &link{id: id, role: core.RoleInitiator, state: core.LinkNew, tr: tr}
	m.links[id] = l
	m.bindLocked(l)
	m.ensureProfileLocked(id)

	// Tracks must be attached before the offer so its media description
	// includes them.
	if err := tr.AddLocalTracks(m.localTracks()); err != nil {
		log.Error().Str("module", "mesh").Str("peer", string(id)).Err(err).Msg("add local tracks")
		m.dropLocked(l)
		return
	}
	offer, err := tr.CreateOffer()
	if err != nil {
		log.Error().Str("module", "mesh").Str("peer", string(id)).Err(err).Msg("create offer")
		m.dropLocked(l)
		return
	}
	l.state = core.LinkNegotiating
	if err := m.opts.Send.SendOffer(id, offer); err != nil {
		log.Warn().Str("module", "mesh").Str("peer", string(id)).Err(err).Msg("send offer")
	}
}

// bindLocked hooks transport callbacks back into the manager. Each closure
// verifies the link is still the live one for its id before mutating, so
// callbacks from a replaced transport are ignored.
func (m *Manager) bindLocked(l *link) {
	id := l.id

	l.tr.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		m.mu.Lock()
		live := m.links[id] == l && l.state != core.LinkClosed
		m.mu.Unlock()
		if !live {
			// Candidates from a replaced transport must not leak into the
			// peer's fresh negotiation.
			return
		}
		if err := m.opts.Send.SendCandidate(id, cand); err != nil {
			log.Debug().Str("module", "mesh").Str("peer", string(id)).Err(err).Msg("send candidate")
		}
	})

	l.tr.OnConnected(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.links[id] != l || l.state == core.LinkClosed {
			return
		}
		l.state = core.LinkConnected
		log.Info().Str("module", "mesh").Str("peer", string(id)).Msg("peer connected")
	})

	l.tr.OnDisconnected(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.links[id] != l || l.state == core.LinkClosed {
			return
		}
		// Policy: no ICE restart. Drop the link; a future user-list
		// reconciliation recreates it if the peer is still present.
		l.state = core.LinkDisconnected
		log.Info().Str("module", "mesh").Str("peer", string(id)).Msg("peer transport lost")
		l.closeLocked()
		delete(m.links, id)
	})

	l.tr.OnTrack(func(track *webrtc.TrackRemote) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.links[id] != l || l.state == core.LinkClosed {
			return
		}
		l.remoteTrack = track
		l.monitor = activity.NewMonitor(
			track,
			m.opts.AudioLevelExtID,
			m.opts.ActivityInterval,
			m.opts.ActivityThreshold,
			func(level float64, speaking bool) { m.setTalkLevel(id, l, level, speaking) },
		)
	})
}

func (m *Manager) setTalkLevel(id core.ParticipantID, l *link, level float64, speaking bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links[id] != l {
		return
	}
	l.talkLevel = level
	l.speaking = speaking
}

func (m *Manager) drainCandidatesLocked(l *link) {
	for _, cand := range l.pending {
		if err := l.tr.AddICECandidate(cand); err != nil {
			log.Warn().Str("module", "mesh").Str("peer", string(l.id)).Err(err).Msg("drain candidate")
		}
	}
	l.pending = nil
}

func (m *Manager) dropLocked(l *link) {
	l.closeLocked()
	if m.links[l.id] == l {
		delete(m.links, l.id)
	}
}

func (m *Manager) localTracks() []webrtc.TrackLocal {
	if m.opts.Media == nil {
		return nil
	}
	return m.opts.Media.Tracks()
}

// ensureProfileLocked starts one profile lookup per newly observed id.
// Lookups run off the lock; a failed lookup leaves the raw id as the name.
func (m *Manager) ensureProfileLocked(id core.ParticipantID) {
	if m.opts.Profiles == nil || m.fetched[id] {
		return
	}
	m.fetched[id] = true
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), profileTimeout)
		defer cancel()
		p, err := m.opts.Profiles.Profile(ctx, id)
		if err != nil {
			log.Warn().Str("module", "mesh").Str("peer", string(id)).Err(err).Msg("profile lookup")
			return
		}
		m.mu.Lock()
		m.profiles[id] = p
		m.mu.Unlock()
	}()
}
