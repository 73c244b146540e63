// Package call holds the session controller: one voice call at a time,
// owning the signaling channel, the local capture and the peer mesh, with
// a single teardown funnel every exit path runs through.
package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/sigma-social/voiced/internal/app/mesh"
	"github.com/sigma-social/voiced/internal/core"
	"github.com/sigma-social/voiced/internal/domain"
)

// Deps are the collaborators a Controller needs. All are required except
// Profiles.
type Deps struct {
	Media      core.MediaAcquirer
	Channels   core.ChannelDialer
	Transports core.TransportFactory
	Profiles   core.ProfileResolver

	ActivityInterval  time.Duration
	ActivityThreshold float64
	AudioLevelExtID   uint8
}

// Controller drives the session state machine Idle → Starting → Active →
// Ending → Idle. Starting and Ending are transient and never re-entered;
// a second Start is rejected, and Leave during Starting cancels the
// in-flight start instead of queueing.
type Controller struct {
	deps Deps

	mu      sync.Mutex
	state   core.SessionState
	room    domain.RoomID
	media   core.MediaSource
	channel core.SignalChannel
	links   *mesh.Manager

	// abortStart is set while Starting when the channel drops or Leave is
	// called; Start re-checks it before committing to Active.
	abortStart bool
}

func NewController(deps Deps) *Controller {
	return &Controller{deps: deps, state: core.SessionIdle}
}

// Start acquires the microphone, opens the signaling channel and joins the
// room. Media failure aborts before any channel exists; channel failure
// releases the capture. Either way no partial session is left behind.
func (c *Controller) Start(ctx context.Context, room domain.RoomID) error {
	c.mu.Lock()
	if c.state != core.SessionIdle {
		c.mu.Unlock()
		return core.ErrAlreadyInCall
	}
	c.state = core.SessionStarting
	c.abortStart = false
	c.mu.Unlock()

	media, err := c.deps.Media.Acquire(ctx)
	if err != nil {
		c.setState(core.SessionIdle)
		return err
	}

	channel, err := c.deps.Channels.Dial(ctx, room, c)
	if err != nil {
		media.Release()
		c.setState(core.SessionIdle)
		return err
	}

	links := mesh.NewManager(mesh.Options{
		Send:              channel,
		Transports:        c.deps.Transports,
		Media:             media,
		Profiles:          c.deps.Profiles,
		ActivityInterval:  c.deps.ActivityInterval,
		ActivityThreshold: c.deps.ActivityThreshold,
		AudioLevelExtID:   c.deps.AudioLevelExtID,
	})

	c.mu.Lock()
	if c.abortStart {
		// The channel dropped or Leave was called while we were dialing.
		// A session that never completed its join is torn down here, not
		// committed.
		c.abortStart = false
		c.state = core.SessionIdle
		c.mu.Unlock()
		media.Release()
		channel.Close()
		return fmt.Errorf("%w: channel lost before join", core.ErrSignalingUnavailable)
	}
	c.media = media
	c.channel = channel
	c.links = links
	c.room = room
	c.state = core.SessionActive
	c.mu.Unlock()

	if err := channel.SendJoin(); err != nil {
		log.Warn().Str("module", "call").Err(err).Msg("send join")
	}
	log.Info().Str("module", "call").Str("room", string(room)).Msg("call started")
	return nil
}

// Leave is the single required cleanup path: explicit hang-up, daemon
// shutdown and channel loss all funnel here. During Starting it cancels the
// in-flight start; when idle it is a no-op.
func (c *Controller) Leave() {
	c.mu.Lock()
	if c.state == core.SessionStarting {
		c.abortStart = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.teardown(true)
}

// ToggleMute flips the local mute flag and broadcasts it to all peers.
// Peer links are untouched; the capture device stays open.
func (c *Controller) ToggleMute() (bool, error) {
	c.mu.Lock()
	if c.state != core.SessionActive {
		c.mu.Unlock()
		return false, core.ErrNotInCall
	}
	muted := !c.media.Muted()
	c.media.SetMuted(muted)
	channel := c.channel
	c.mu.Unlock()

	if err := channel.SendMuteStatus(muted); err != nil {
		log.Warn().Str("module", "call").Err(err).Msg("broadcast mute")
	}
	return muted, nil
}

// State reports the session state and the local mute flag.
func (c *Controller) State() (core.SessionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	muted := false
	if c.media != nil {
		muted = c.media.Muted()
	}
	return c.state, muted
}

// Room returns the room of the active session, if any.
func (c *Controller) Room() (domain.RoomID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.state == core.SessionActive
}

// Roster returns the current participant snapshot; empty when idle.
func (c *Controller) Roster() core.Roster {
	if m := c.activeLinks(); m != nil {
		return m.Roster()
	}
	return core.Roster{}
}

// teardown moves Active → Ending → Idle, closing everything exactly once.
// sendLeave is best-effort; the channel may already be down.
func (c *Controller) teardown(sendLeave bool) {
	c.mu.Lock()
	if c.state != core.SessionActive {
		c.mu.Unlock()
		return
	}
	c.state = core.SessionEnding
	media, channel, links := c.media, c.channel, c.links
	c.media, c.channel, c.links = nil, nil, nil
	room := c.room
	c.room = ""
	c.mu.Unlock()

	if sendLeave {
		if err := channel.SendLeave(); err != nil {
			log.Debug().Str("module", "call").Err(err).Msg("send leave")
		}
	}
	links.CloseAll()
	media.Release()
	channel.Close()

	c.setState(core.SessionIdle)
	log.Info().Str("module", "call").Str("room", string(room)).Msg("call ended")
}

func (c *Controller) setState(s core.SessionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) activeLinks() *mesh.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != core.SessionActive {
		return nil
	}
	return c.links
}

// --- core.SignalEvents ---
// Inbound frames only act on the session that is still active; anything
// arriving during or after teardown is dropped.

func (c *Controller) OnUserList(ids []core.ParticipantID) {
	if m := c.activeLinks(); m != nil {
		m.SyncRoster(ids)
	}
}

func (c *Controller) OnOffer(from core.ParticipantID, sdp webrtc.SessionDescription) {
	if m := c.activeLinks(); m != nil {
		m.HandleOffer(from, sdp)
	}
}

func (c *Controller) OnAnswer(from core.ParticipantID, sdp webrtc.SessionDescription) {
	if m := c.activeLinks(); m != nil {
		m.HandleAnswer(from, sdp)
	}
}

func (c *Controller) OnCandidate(from core.ParticipantID, cand webrtc.ICECandidateInit) {
	if m := c.activeLinks(); m != nil {
		m.HandleCandidate(from, cand)
	}
}

func (c *Controller) OnPeerLeave(from core.ParticipantID) {
	if m := c.activeLinks(); m != nil {
		m.HandleLeave(from)
	}
}

func (c *Controller) OnMuteStatus(from core.ParticipantID, muted bool) {
	if m := c.activeLinks(); m != nil {
		m.SetPeerMuted(from, muted)
	}
}

func (c *Controller) OnStatusRequest() {
	c.mu.Lock()
	if c.state != core.SessionActive {
		c.mu.Unlock()
		return
	}
	muted := c.media.Muted()
	channel := c.channel
	c.mu.Unlock()

	if err := channel.SendMuteStatus(muted); err != nil {
		log.Warn().Str("module", "call").Err(err).Msg("answer status request")
	}
}

func (c *Controller) OnChannelClosed(err error) {
	if err == nil {
		// Closed by our own teardown.
		return
	}
	log.Warn().Str("module", "call").Err(err).Msg("signaling channel lost")
	c.mu.Lock()
	if c.state == core.SessionStarting {
		// Drop before join completed: fatal to the in-flight Start, which
		// owns the cleanup.
		c.abortStart = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.teardown(false)
}
