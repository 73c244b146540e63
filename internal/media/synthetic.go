package media

import (
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

// opusSilence is a single Opus DTX silence frame. Enough to keep a valid
// audio m-line flowing where no capture hardware exists.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const frameDuration = 20 * time.Millisecond

func newSyntheticSession(opts Options) (*Session, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: uint32(opts.SampleRate),
			Channels:  uint16(opts.Channels),
		},
		"audio-"+uuid.NewString(),
		"voiced-"+uuid.NewString(),
	)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	s := &Session{
		tracks: []webrtc.TrackLocal{track},
		stop:   func() { close(done) },
	}

	go func() {
		ticker := time.NewTicker(frameDuration)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if s.Muted() {
					continue
				}
				if err := track.WriteSample(media.Sample{Data: opusSilence, Duration: frameDuration}); err != nil {
					log.Debug().Str("module", "media").Err(err).Msg("synthetic write")
				}
			}
		}
	}()

	log.Info().Str("module", "media").Msg("synthetic audio source started")
	return s, nil
}
