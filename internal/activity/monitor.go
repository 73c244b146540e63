package activity

import (
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/rs/zerolog/log"
)

// RTPSource is the part of webrtc.TrackRemote the monitor reads from.
type RTPSource interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// ewmaWeight is the smoothing weight of the newest sample. Chosen so a
// burst of speech registers within two or three packets (20 ms each).
const ewmaWeight = 0.35

// Monitor samples one audio stream and reports a smoothed talk level on a
// fixed interval. It reads the RFC 6464 ssrc-audio-level header extension
// from inbound RTP; payloads stay opaque (no decode needed). The monitor
// stops itself when the source ends, emitting a final zero level so UI
// speaking indicators clear.
type Monitor struct {
	src       RTPSource
	extID     uint8
	interval  time.Duration
	threshold float64
	onLevel   func(level float64, speaking bool)

	mu    sync.Mutex
	level float64

	done     chan struct{}
	stopOnce sync.Once
}

// NewMonitor starts sampling immediately. onLevel is called from the
// monitor's own goroutine, once per interval and once more with a zero
// level when the monitor stops.
func NewMonitor(src RTPSource, extID uint8, interval time.Duration, threshold float64, onLevel func(level float64, speaking bool)) *Monitor {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	m := &Monitor{
		src:       src,
		extID:     extID,
		interval:  interval,
		threshold: threshold,
		onLevel:   onLevel,
		done:      make(chan struct{}),
	}
	go m.readLoop()
	go m.tickLoop()
	return m
}

// Stop halts sampling. Idempotent; also called internally on source EOF.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *Monitor) readLoop() {
	defer m.Stop()
	for {
		select {
		case <-m.done:
			return
		default:
		}
		pkt, _, err := m.src.ReadRTP()
		if err != nil {
			return
		}
		m.observe(pkt)
	}
}

func (m *Monitor) observe(pkt *rtp.Packet) {
	raw := pkt.GetExtension(m.extID)
	if raw == nil {
		return
	}
	var ext rtp.AudioLevelExtension
	if err := ext.Unmarshal(raw); err != nil {
		log.Debug().Str("module", "activity").Err(err).Msg("bad audio-level extension")
		return
	}
	sample := levelFromDBov(ext.Level)
	m.mu.Lock()
	m.level = (1-ewmaWeight)*m.level + ewmaWeight*sample
	m.mu.Unlock()
}

func (m *Monitor) tickLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			m.onLevel(0, false)
			return
		case <-ticker.C:
			m.mu.Lock()
			level := m.level
			m.mu.Unlock()
			m.onLevel(level, IsActive(level, m.threshold))
		}
	}
}
