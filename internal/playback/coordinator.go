// Package playback owns the per-guild voice sessions and guarantees that each
// guild plays at most one stream at a time.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/keshon/yomiage/internal/logging"
	"github.com/keshon/yomiage/internal/metrics"
)

const DefaultConnectTimeout = 30 * time.Second

type stopReason int

const (
	stopSkip stopReason = iota + 1
	stopTeardown
	// stopMove ends the stream on the old channel. The guild stays connected.
	stopMove
)

// playback is the in-flight stream of a guild.
type playback struct {
	scope  SkipScope
	once   sync.Once
	reason stopReason
	stop   chan struct{}
}

func newPlayback(scope SkipScope) *playback {
	return &playback{scope: scope, stop: make(chan struct{})}
}

// cancel reports whether this call was the one that stopped the playback.
func (p *playback) cancel(r stopReason) bool {
	fired := false
	p.once.Do(func() {
		p.reason = r
		close(p.stop)
		fired = true
	})
	return fired
}

// guild is the actor holding one guild's state. All fields are guarded by mu.
type guild struct {
	id      string
	mu      sync.Mutex
	retired bool

	session *Session
	conn    Connection
	playing *playback
}

func (g *guild) state() State {
	switch {
	case g.session == nil:
		return Disconnected
	case g.playing != nil:
		return Playing
	default:
		return Idle
	}
}

type Config struct {
	Transport      Transport
	Engines        EngineReleaser
	ConnectTimeout time.Duration
	Logger         *log.Logger
}

// Coordinator is the registry of guild actors.
type Coordinator struct {
	transport      Transport
	engines        EngineReleaser
	connectTimeout time.Duration
	log            *log.Logger

	mu     sync.Mutex
	guilds map[string]*guild
}

type noopReleaser struct{}

func (noopReleaser) Release(string) {}

func New(cfg Config) *Coordinator {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Engines == nil {
		cfg.Engines = noopReleaser{}
	}
	return &Coordinator{
		transport:      cfg.Transport,
		engines:        cfg.Engines,
		connectTimeout: cfg.ConnectTimeout,
		log:            logging.For(cfg.Logger, "playback"),
		guilds:         make(map[string]*guild),
	}
}

// lockGuild returns the locked actor for id, creating it when create is set.
// It returns nil when the guild has no actor and create is false.
func (c *Coordinator) lockGuild(id string, create bool) *guild {
	for {
		c.mu.Lock()
		g, ok := c.guilds[id]
		if !ok {
			if !create {
				c.mu.Unlock()
				return nil
			}
			g = &guild{id: id}
			c.guilds[id] = g
		}
		c.mu.Unlock()

		g.mu.Lock()
		if !g.retired {
			return g
		}
		g.mu.Unlock()
	}
}

// retire removes g from the registry. g.mu must be held.
func (c *Coordinator) retire(g *guild) {
	c.mu.Lock()
	if c.guilds[g.id] == g {
		delete(c.guilds, g.id)
	}
	c.mu.Unlock()
	g.retired = true
	g.session = nil
	g.conn = nil
}

func (c *Coordinator) connect(ctx context.Context, guildID, channelID string) (Connection, error) {
	cctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	conn, err := c.transport.Connect(cctx, guildID, channelID)
	if err != nil {
		if ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrConnectionTimeout, c.connectTimeout)
		}
		return nil, fmt.Errorf("connect to voice channel %s: %w", channelID, err)
	}
	return conn, nil
}

// Join connects the guild to voiceChannelID and binds it to textChannelID.
// userVoiceChannelID is the channel the requesting user is in; an empty
// voiceChannelID means that channel.
func (c *Coordinator) Join(ctx context.Context, guildID, textChannelID, voiceChannelID, userVoiceChannelID string) (Session, error) {
	g := c.lockGuild(guildID, true)
	defer g.mu.Unlock()

	if g.session != nil {
		return c.snapshot(g), ErrAlreadyConnected
	}
	if voiceChannelID == "" {
		voiceChannelID = userVoiceChannelID
	}
	if userVoiceChannelID == "" || userVoiceChannelID != voiceChannelID {
		c.retire(g)
		return Session{}, ErrUserNotInChannel
	}

	conn, err := c.connect(ctx, guildID, voiceChannelID)
	if err != nil {
		c.retire(g)
		c.log.Warn("Join failed", "guild", guildID, "voice", voiceChannelID, "err", err)
		return Session{}, err
	}

	g.conn = conn
	g.session = &Session{GuildID: guildID, TextChannelID: textChannelID, VoiceChannelID: voiceChannelID}
	metrics.SessionOpened()
	c.log.Info("Joined voice channel", "guild", guildID, "text", textChannelID, "voice", voiceChannelID)
	return c.snapshot(g), nil
}

// Leave force-disconnects the guild and releases its engine.
func (c *Coordinator) Leave(ctx context.Context, guildID string) error {
	g := c.lockGuild(guildID, false)
	if g == nil {
		return ErrNotConnected
	}
	defer g.mu.Unlock()

	if g.session == nil {
		return ErrNotConnected
	}
	if g.playing != nil {
		g.playing.cancel(stopTeardown)
	}

	err := g.conn.Disconnect(true)
	c.engines.Release(guildID)
	c.retire(g)
	metrics.SessionClosed()
	c.log.Info("Left voice channel", "guild", guildID)

	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// Move reconnects the guild to newVoiceChannelID and rebinds it to
// textChannelID. The guild lock is held throughout, so no other operation sees
// the guild between the disconnect and the new binding. A stream still playing
// on the old channel ends as skipped. If reconnecting fails the guild ends up
// disconnected.
func (c *Coordinator) Move(ctx context.Context, guildID, textChannelID, newVoiceChannelID, userVoiceChannelID string) (Session, error) {
	g := c.lockGuild(guildID, false)
	if g == nil {
		return Session{}, ErrNotConnected
	}
	defer g.mu.Unlock()

	if g.session == nil {
		return Session{}, ErrNotConnected
	}
	if newVoiceChannelID == "" {
		newVoiceChannelID = userVoiceChannelID
	}
	if userVoiceChannelID == "" || userVoiceChannelID != newVoiceChannelID {
		return c.snapshot(g), ErrUserNotInChannel
	}

	if g.playing != nil {
		g.playing.cancel(stopMove)
		g.playing = nil
	}
	if err := g.conn.Disconnect(false); err != nil {
		c.log.Warn("Disconnect before move failed", "guild", guildID, "err", err)
	}
	g.conn = nil

	conn, err := c.connect(ctx, guildID, newVoiceChannelID)
	if err != nil {
		c.engines.Release(guildID)
		c.retire(g)
		metrics.SessionClosed()
		c.log.Warn("Move failed, guild disconnected", "guild", guildID, "err", err)
		return Session{}, err
	}

	g.conn = conn
	g.session = &Session{GuildID: guildID, TextChannelID: textChannelID, VoiceChannelID: newVoiceChannelID}
	c.log.Info("Moved voice channel", "guild", guildID, "text", textChannelID, "voice", newVoiceChannelID)
	return c.snapshot(g), nil
}

// Enqueue plays req if the guild is idle and waits until the stream finishes
// or is skipped. A busy guild drops the request without error.
func (c *Coordinator) Enqueue(ctx context.Context, guildID string, req Request) (Outcome, error) {
	outcome, err := c.enqueue(ctx, guildID, req)
	metrics.RecordPlayback(outcome.String())
	return outcome, err
}

func (c *Coordinator) enqueue(ctx context.Context, guildID string, req Request) (Outcome, error) {
	if req.Audio == nil {
		return OutcomeDropped, errors.New("playback request has no audio")
	}

	g := c.lockGuild(guildID, false)
	if g == nil {
		return OutcomeDropped, ErrNotConnected
	}
	if g.session == nil {
		g.mu.Unlock()
		return OutcomeDropped, ErrNotConnected
	}
	if g.playing != nil {
		g.mu.Unlock()
		c.log.Debug("Playback dropped, guild busy", "guild", guildID, "source", req.Source)
		return OutcomeDropped, nil
	}

	pb := newPlayback(req.Scope)
	conn := g.conn
	done := make(chan error, 1)
	if err := conn.Play(req.Audio, func(err error) { done <- err }); err != nil {
		g.mu.Unlock()
		return OutcomeFailed, fmt.Errorf("start playback: %w", err)
	}
	g.playing = pb
	g.mu.Unlock()

	var (
		outcome Outcome
		err     error
	)
	select {
	case err = <-done:
		// Retire the skip waiter; a late Skip finds nothing to cancel. If a
		// stop won the race the transport error is only its echo.
		if pb.cancel(0) {
			outcome = OutcomeCompleted
			if err != nil {
				outcome = OutcomeFailed
			}
		} else {
			outcome, err = stoppedOutcome(pb.reason)
		}
	case <-pb.stop:
		conn.Stop()
		<-done
		outcome, err = stoppedOutcome(pb.reason)
	case <-ctx.Done():
		pb.cancel(0)
		conn.Stop()
		<-done
		outcome, err = OutcomeFailed, ctx.Err()
	}

	g.mu.Lock()
	if g.playing == pb {
		g.playing = nil
	}
	g.mu.Unlock()

	c.log.Debug("Playback finished", "guild", guildID, "source", req.Source, "outcome", outcome)
	return outcome, err
}

func stoppedOutcome(r stopReason) (Outcome, error) {
	switch r {
	case stopTeardown:
		return OutcomeFailed, ErrNotConnected
	default:
		return OutcomeSkipped, nil
	}
}

// Skip cancels the guild's in-flight playback if its scope allows a skip from
// scope. It reports whether a playback was cancelled.
func (c *Coordinator) Skip(guildID string, scope SkipScope) bool {
	g := c.lockGuild(guildID, false)
	if g == nil {
		return false
	}
	defer g.mu.Unlock()

	if g.playing == nil || !g.playing.scope.Allows(scope) {
		return false
	}
	return g.playing.cancel(stopSkip)
}

func (c *Coordinator) Busy(guildID string) bool {
	return c.State(guildID) == Playing
}

func (c *Coordinator) State(guildID string) State {
	g := c.lockGuild(guildID, false)
	if g == nil {
		return Disconnected
	}
	defer g.mu.Unlock()
	return g.state()
}

// Session returns a copy of the guild's session.
func (c *Coordinator) Session(guildID string) (Session, bool) {
	g := c.lockGuild(guildID, false)
	if g == nil {
		return Session{}, false
	}
	defer g.mu.Unlock()
	if g.session == nil {
		return Session{}, false
	}
	return c.snapshot(g), true
}

// snapshot copies g's session with its current state. g.mu must be held.
func (c *Coordinator) snapshot(g *guild) Session {
	s := *g.session
	s.State = g.state()
	return s
}

// Sessions returns every connected guild's session.
func (c *Coordinator) Sessions() []Session {
	c.mu.Lock()
	ids := make([]string, 0, len(c.guilds))
	for id := range c.guilds {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	var out []Session
	for _, id := range ids {
		if s, ok := c.Session(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// Shutdown leaves every connected guild.
func (c *Coordinator) Shutdown(ctx context.Context) {
	for _, s := range c.Sessions() {
		if err := c.Leave(ctx, s.GuildID); err != nil && !errors.Is(err, ErrNotConnected) {
			c.log.Warn("Leave on shutdown failed", "guild", s.GuildID, "err", err)
		}
	}
}
