//go:build linux && cgo

package media

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/sigma-social/voiced/internal/core"
)

// captureSession opens the microphone through pion/mediadevices (malgo on
// Linux), encodes with Opus and pumps encoded frames into a sample track.
// The pump is the mute gate: while muted nothing is written, but the device
// and encoder keep running.
func captureSession(_ context.Context, opts Options) (*Session, error) {
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, &core.MediaAcquisitionError{Cause: err}
	}
	selector := mediadevices.NewCodecSelector(mediadevices.WithAudioEncoders(&opusParams))

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Codec: selector,
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(opts.SampleRate)
			c.ChannelCount = prop.Int(opts.Channels)
		},
	})
	if err != nil {
		return nil, &core.MediaAcquisitionError{Cause: err}
	}

	audioTracks := stream.GetAudioTracks()
	if len(audioTracks) == 0 {
		return nil, &core.MediaAcquisitionError{Cause: errors.New("no audio capture device")}
	}
	src, ok := audioTracks[0].(mediadevices.Track)
	if !ok {
		return nil, &core.MediaAcquisitionError{Cause: errors.New("unexpected track type")}
	}
	src.OnEnded(func(err error) {
		if err != nil {
			log.Warn().Str("module", "media").Err(err).Msg("capture track ended")
		}
	})

	reader, err := src.NewEncodedReader(webrtc.MimeTypeOpus)
	if err != nil {
		src.Close()
		return nil, &core.MediaAcquisitionError{Cause: err}
	}

	out, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: uint32(opts.SampleRate),
			Channels:  uint16(opts.Channels),
		},
		"audio-"+uuid.NewString(),
		"voiced-"+uuid.NewString(),
	)
	if err != nil {
		reader.Close()
		src.Close()
		return nil, &core.MediaAcquisitionError{Cause: err}
	}

	s := &Session{
		tracks: []webrtc.TrackLocal{out},
		stop: func() {
			reader.Close()
			src.Close()
		},
	}

	go func() {
		for {
			buf, release, err := reader.Read()
			if err != nil {
				log.Info().Str("module", "media").Err(err).Msg("capture pump stopped")
				return
			}
			if !s.Muted() {
				dur := frameDuration
				if buf.Samples > 0 {
					dur = time.Duration(buf.Samples) * time.Second / time.Duration(opts.SampleRate)
				}
				data := make([]byte, len(buf.Data))
				copy(data, buf.Data)
				if err := out.WriteSample(media.Sample{Data: data, Duration: dur}); err != nil {
					log.Debug().Str("module", "media").Err(err).Msg("sample write")
				}
			}
			if release != nil {
				release()
			}
		}
	}()

	log.Info().Str("module", "media").Int("sample_rate", opts.SampleRate).Int("channels", opts.Channels).Msg("microphone capture started")
	return s, nil
}
