// Package playbacktest provides an in-memory voice transport for tests.
package playbacktest

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/keshon/yomiage/internal/playback"
)

var ErrDisconnected = errors.New("connection closed")

// Transport records every call. Plays stay active until Finish, Stop or
// Disconnect unless AutoFinish is set.
type Transport struct {
	ConnectErr error
	// Hang makes Connect block until its context is done.
	Hang       bool
	AutoFinish bool

	mu       sync.Mutex
	connects []string
	conns    []*Conn
	started  chan *Conn

	active    atomic.Int32
	maxActive atomic.Int32
}

func New() *Transport {
	return &Transport{started: make(chan *Conn, 256)}
}

func (t *Transport) Connect(ctx context.Context, guildID, channelID string) (playback.Connection, error) {
	t.mu.Lock()
	t.connects = append(t.connects, guildID+"/"+channelID)
	t.mu.Unlock()

	if t.Hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if t.ConnectErr != nil {
		return nil, t.ConnectErr
	}

	c := &Conn{t: t, guildID: guildID, channelID: channelID}
	t.mu.Lock()
	t.conns = append(t.conns, c)
	t.mu.Unlock()
	return c, nil
}

// Connects lists "guild/channel" for every Connect call.
func (t *Transport) Connects() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.connects...)
}

func (t *Transport) Conns() []*Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Conn(nil), t.conns...)
}

// Calls counts every call made on the transport and its connections.
func (t *Transport) Calls() int {
	t.mu.Lock()
	n := len(t.connects)
	conns := append([]*Conn(nil), t.conns...)
	t.mu.Unlock()

	for _, c := range conns {
		c.mu.Lock()
		n += c.plays + c.stops + c.disconnects
		c.mu.Unlock()
	}
	return n
}

// Started delivers the connection each time a Play begins. Sends are dropped
// once the buffer is full.
func (t *Transport) Started() <-chan *Conn {
	return t.started
}

// MaxActive is the highest number of plays seen running at once.
func (t *Transport) MaxActive() int {
	return int(t.maxActive.Load())
}

func (t *Transport) enter() {
	n := t.active.Add(1)
	for {
		m := t.maxActive.Load()
		if n <= m || t.maxActive.CompareAndSwap(m, n) {
			return
		}
	}
}

type Conn struct {
	t         *Transport
	guildID   string
	channelID string

	mu          sync.Mutex
	onDone      func(error)
	audio       [][]byte
	plays       int
	stops       int
	disconnects int
	closed      bool
	forced      bool
}

var _ playback.Connection = (*Conn)(nil)

func (c *Conn) ChannelID() string { return c.channelID }

func (c *Conn) Play(r io.Reader, onDone func(error)) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.plays++
	if c.closed {
		c.mu.Unlock()
		return ErrDisconnected
	}
	if c.onDone != nil {
		c.mu.Unlock()
		return errors.New("already playing")
	}
	c.audio = append(c.audio, data)
	c.onDone = onDone
	c.mu.Unlock()

	c.t.enter()
	select {
	case c.t.started <- c:
	default:
	}
	if c.t.AutoFinish {
		go c.Finish(nil)
	}
	return nil
}

// Finish ends the current play with err. It reports false when nothing was
// playing.
func (c *Conn) Finish(err error) bool {
	c.mu.Lock()
	done := c.onDone
	c.onDone = nil
	c.mu.Unlock()

	if done == nil {
		return false
	}
	c.t.active.Add(-1)
	done(err)
	return true
}

func (c *Conn) Stop() {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
	c.Finish(nil)
}

func (c *Conn) Disconnect(force bool) error {
	c.mu.Lock()
	c.disconnects++
	c.closed = true
	c.forced = force
	c.mu.Unlock()
	c.Finish(ErrDisconnected)
	return nil
}

func (c *Conn) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

func (c *Conn) Plays() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plays
}

// Audio returns the bytes of every accepted play.
func (c *Conn) Audio() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.audio...)
}

// Disconnected reports whether Disconnect was called, and with force.
func (c *Conn) Disconnected() (closed, forced bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.forced
}
