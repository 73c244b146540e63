// Package rtc implements core.PeerTransport over pion PeerConnections.
package rtc

import (
	"github.com/pion/interceptor"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"

	"github.com/sigma-social/voiced/internal/core"
)

// AudioLevelExtensionID is the RTP header extension id for the RFC 6464
// ssrc-audio-level extension. It is the first (and only) extension we
// register, so pion assigns it id 1; responder-side negotiation adopts the
// remote's extmap ids instead.
const AudioLevelExtensionID uint8 = 1

// Engine holds the shared webrtc.API all peer transports are built from:
// default codecs, the audio-level header extension for talk-level
// monitoring, and the default interceptor set.
type Engine struct {
	api *webrtc.API
	cfg webrtc.Configuration
}

func NewEngine(stunServers []string) (*Engine, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	if err := m.RegisterHeaderExtension(
		webrtc.RTPHeaderExtensionCapability{URI: sdp.AudioLevelURI},
		webrtc.RTPCodecTypeAudio,
	); err != nil {
		return nil, err
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, err
	}

	if len(stunServers) == 0 {
		stunServers = []string{"stun:stun.l.google.com:19302"}
	}

	return &Engine{
		api: webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir)),
		cfg: webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
		},
	}, nil
}

// NewTransport is the core.TransportFactory for this engine.
func (e *Engine) NewTransport() (core.PeerTransport, error) {
	pc, err := e.api.NewPeerConnection(e.cfg)
	if err != nil {
		return nil, err
	}
	t := &Transport{pc: pc}
	t.bind()
	return t, nil
}
