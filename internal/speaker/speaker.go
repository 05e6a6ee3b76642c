// Package speaker plays voice sessions through the local sound card. It lets
// the CLI drive the same playback coordinator the Discord bot uses.
package speaker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/keshon/yomiage/internal/logging"
	"github.com/keshon/yomiage/internal/playback"
	"github.com/keshon/yomiage/internal/synth"
)

const pollInterval = 10 * time.Millisecond

var ErrBusy = errors.New("speaker is already playing")

// player is the subset of *oto.Player used here.
type player interface {
	Play()
	Pause()
	IsPlaying() bool
	Err() error
	Close() error
}

// Device creates players on an output device.
type Device interface {
	NewPlayer(r io.Reader) player
}

type otoDevice struct {
	ctx *oto.Context
}

func (d otoDevice) NewPlayer(r io.Reader) player { return d.ctx.NewPlayer(r) }

var (
	otoOnce sync.Once
	otoDev  Device
	otoErr  error
)

// OpenDevice opens the default output for 48 kHz stereo 16-bit PCM. oto
// allows one context per process, so later calls share the first.
func OpenDevice() (Device, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   synth.SampleRate,
			ChannelCount: synth.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoDev = otoDevice{ctx: ctx}
	})
	return otoDev, otoErr
}

// Transport hands out connections that all play on one device. The guild and
// channel are only labels.
type Transport struct {
	dev Device
	log *log.Logger
}

var _ playback.Transport = (*Transport)(nil)

func NewTransport(dev Device, logger *log.Logger) *Transport {
	return &Transport{dev: dev, log: logging.For(logger, "speaker")}
}

func (t *Transport) Connect(ctx context.Context, guildID, channelID string) (playback.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.log.Debug("Speaker session opened", "guild", guildID, "channel", channelID)
	return &conn{dev: t.dev, channelID: channelID}, nil
}

type conn struct {
	dev       Device
	channelID string

	mu     sync.Mutex
	stop   chan struct{}
	closed bool
}

func (c *conn) ChannelID() string { return c.channelID }

func (c *conn) Play(r io.Reader, onDone func(error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("speaker connection closed")
	}
	if c.stop != nil {
		c.mu.Unlock()
		return ErrBusy
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	p := c.dev.NewPlayer(r)
	p.Play()

	go func() {
		err := wait(p, stop)
		if cerr := p.Close(); err == nil {
			err = cerr
		}

		c.mu.Lock()
		if c.stop == stop {
			c.stop = nil
		}
		c.mu.Unlock()

		onDone(err)
	}()
	return nil
}

// wait blocks until p drains its reader or stop closes.
func wait(p player, stop <-chan struct{}) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			p.Pause()
			return nil
		case <-ticker.C:
			if !p.IsPlaying() {
				return p.Err()
			}
		}
	}
}

func (c *conn) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *conn) Disconnect(bool) error {
	c.Stop()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
