package signalws

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/sigma-social/voiced/internal/core"
	"github.com/sigma-social/voiced/internal/domain"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64
)

// Dialer opens signaling channels. It refreshes the access token on every
// dial: the channel is long-lived and rarely opened, so a stored token
// would usually be expired.
type Dialer struct {
	BaseURL string // e.g. wss://host/ws/voice
	Tokens  core.TokenSource
}

func (d *Dialer) Dial(ctx context.Context, room domain.RoomID, ev core.SignalEvents) (core.SignalChannel, error) {
	token, err := d.Tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: token refresh: %v", core.ErrSignalingUnavailable, err)
	}

	u := fmt.Sprintf("%s/%s/?token=%s",
		strings.TrimRight(d.BaseURL, "/"),
		url.PathEscape(string(room)),
		url.QueryEscape(token),
	)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", core.ErrSignalingUnavailable, err)
	}
	log.Info().Str("module", "signalws").Str("room", string(room)).Msg("channel open")

	ch := &Channel{
		conn:       conn,
		send:       make(chan message, sendBuffer),
		ev:         ev,
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	go ch.writePump()
	go ch.readPump()
	return ch, nil
}

// Channel is one open signaling connection. Reads are decoded on a single
// goroutine so frames reach the event sink in arrival order.
type Channel struct {
	conn *websocket.Conn
	send chan message
	ev   core.SignalEvents

	done       chan struct{}
	writerDone chan struct{}
	once       sync.Once
}

func (c *Channel) SendJoin() error  { return c.trySend(message{Type: msgJoin}) }
func (c *Channel) SendLeave() error { return c.trySend(message{Type: msgLeave}) }

func (c *Channel) SendOffer(to core.ParticipantID, sdp webrtc.SessionDescription) error {
	return c.trySend(message{Type: msgOffer, To: to, Offer: &sdp})
}

func (c *Channel) SendAnswer(to core.ParticipantID, sdp webrtc.SessionDescription) error {
	return c.trySend(message{Type: msgAnswer, To: to, Answer: &sdp})
}

func (c *Channel) SendCandidate(to core.ParticipantID, cand webrtc.ICECandidateInit) error {
	return c.trySend(message{Type: msgCandidate, To: to, Candidate: &cand})
}

func (c *Channel) SendMuteStatus(muted bool) error {
	return c.trySend(message{Type: msgMuteStatus, IsMuted: &muted})
}

func (c *Channel) trySend(msg message) error {
	select {
	case <-c.done:
		return core.ErrSignalingUnavailable
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return core.ErrBackpressure
	}
}

// Close is idempotent and safe from any goroutine. Frames already queued
// (the voluntary leave in particular) are flushed before the connection
// drops; each write is still bounded by the write deadline.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.done)
		<-c.writerDone
		for {
			select {
			case msg := <-c.send:
				if !c.writeFrame(msg) {
					_ = c.conn.Close()
					return
				}
			default:
				_ = c.conn.Close()
				return
			}
		}
	})
}

func (c *Channel) writePump() {
	defer close(c.writerDone)
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if !c.writeFrame(msg) {
				return
			}
		}
	}
}

func (c *Channel) writeFrame(msg message) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Warn().Str("module", "signalws").Err(err).Msg("set write deadline")
		return false
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Warn().Str("module", "signalws").Err(err).Msg("write")
		return false
	}
	return true
}

func (c *Channel) readPump() {
	defer c.Close()
	for {
		var msg message
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
				// Locally closed; the teardown path is already running.
				c.ev.OnChannelClosed(nil)
			default:
				log.Warn().Str("module", "signalws").Err(err).Msg("read")
				c.ev.OnChannelClosed(err)
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Channel) dispatch(msg message) {
	switch msg.Type {
	case msgUserList:
		c.ev.OnUserList(msg.Users)
	case msgOffer:
		if msg.Offer == nil {
			log.Warn().Str("module", "signalws").Str("from", string(msg.From)).Msg("offer frame without offer")
			return
		}
		c.ev.OnOffer(msg.From, *msg.Offer)
	case msgAnswer:
		if msg.Answer == nil {
			log.Warn().Str("module", "signalws").Str("from", string(msg.From)).Msg("answer frame without answer")
			return
		}
		c.ev.OnAnswer(msg.From, *msg.Answer)
	case msgCandidate:
		if msg.Candidate == nil {
			return
		}
		c.ev.OnCandidate(msg.From, *msg.Candidate)
	case msgLeave:
		c.ev.OnPeerLeave(msg.From)
	case msgMuteStatus:
		if msg.IsMuted == nil {
			return
		}
		c.ev.OnMuteStatus(msg.From, *msg.IsMuted)
	case msgRequestStatus:
		c.ev.OnStatusRequest()
	default:
		log.Debug().Str("module", "signalws").Str("type", string(msg.Type)).Msg("unknown signal")
	}
}
