package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Transport is one peer's negotiated audio connection. The mesh layer owns
// the negotiation order; this type only wraps the PeerConnection surface.
type Transport struct {
	pc *webrtc.PeerConnection

	mu             sync.Mutex
	onICE          func(webrtc.ICECandidateInit)
	onConnected    func()
	onDisconnected func()
	onTrack        func(track *webrtc.TrackRemote)

	closeOnce sync.Once
}

func (t *Transport) bind() {
	t.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		if fn := t.iceHandler(); fn != nil {
			fn(cand.ToJSON())
		}
	})

	t.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
		switch s {
		case webrtc.ICEConnectionStateConnected:
			if fn := t.connectedHandler(); fn != nil {
				fn()
			}
		case webrtc.ICEConnectionStateDisconnected,
			webrtc.ICEConnectionStateFailed,
			webrtc.ICEConnectionStateClosed:
			if fn := t.disconnectedHandler(); fn != nil {
				fn()
			}
		}
	})

	t.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		if fn := t.trackHandler(); fn != nil {
			fn(track)
		}
	})
}

func (t *Transport) AddLocalTracks(tracks []webrtc.TrackLocal) error {
	for _, track := range tracks {
		if _, err := t.pc.AddTrack(track); err != nil {
			return err
		}
	}
	return nil
}

// CreateOffer produces and applies the local offer. Candidates trickle via
// OnICECandidate; the offer is sent without waiting for gathering.
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (t *Transport) ApplyAnswer(sdp webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(sdp)
}

func (t *Transport) ApplyOfferCreateAnswer(sdp webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := t.pc.SetRemoteDescription(sdp); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (t *Transport) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(cand)
}

func (t *Transport) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onICE = fn
}

func (t *Transport) OnConnected(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConnected = fn
}

func (t *Transport) OnDisconnected(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisconnected = fn
}

func (t *Transport) OnTrack(fn func(track *webrtc.TrackRemote)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTrack = fn
}

func (t *Transport) iceHandler() func(webrtc.ICECandidateInit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onICE
}

func (t *Transport) connectedHandler() func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onConnected
}

func (t *Transport) disconnectedHandler() func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onDisconnected
}

func (t *Transport) trackHandler() func(*webrtc.TrackRemote) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onTrack
}

// Close releases the PeerConnection. Idempotent.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		if err := t.pc.Close(); err != nil {
			log.Error().Str("module", "rtc").Err(err).Msg("close error")
		}
	})
}
