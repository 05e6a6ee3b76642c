package discord

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"layeh.com/gopus"

	"github.com/keshon/yomiage/internal/logging"
	"github.com/keshon/yomiage/internal/playback"
	"github.com/keshon/yomiage/internal/synth"
)

const (
	frameSize    = 960 // 20ms at 48kHz
	maxOpusBytes = frameSize * synth.Channels * 2
)

var ErrAlreadyPlaying = errors.New("connection is already playing")

// voiceJoiner is the part of *discordgo.Session the transport uses.
type voiceJoiner interface {
	ChannelVoiceJoin(gID, cID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
}

// VoiceTransport opens Discord voice connections and streams PCM to them as
// Opus.
type VoiceTransport struct {
	dg  voiceJoiner
	log *log.Logger
}

var _ playback.Transport = (*VoiceTransport)(nil)

func NewVoiceTransport(dg *discordgo.Session, logger *log.Logger) *VoiceTransport {
	return &VoiceTransport{dg: dg, log: logging.For(logger, "voice")}
}

type joinResult struct {
	vc  *discordgo.VoiceConnection
	err error
}

// Connect joins channelID deafened. discordgo blocks on the voice handshake
// without a context, so the join runs aside and a connection that arrives
// after ctx is done is torn down.
func (t *VoiceTransport) Connect(ctx context.Context, guildID, channelID string) (playback.Connection, error) {
	res := make(chan joinResult, 1)
	go func() {
		vc, err := t.dg.ChannelVoiceJoin(guildID, channelID, false, true)
		res <- joinResult{vc, err}
	}()

	select {
	case r := <-res:
		if r.err != nil {
			if r.vc != nil {
				r.vc.Disconnect()
			}
			return nil, fmt.Errorf("join voice: %w", r.err)
		}
		return newVoiceConn(r.vc, channelID, t.log), nil
	case <-ctx.Done():
		go func() {
			if r := <-res; r.vc != nil {
				if err := r.vc.Disconnect(); err != nil {
					t.log.Warn("Failed to drop late voice connection", "guild", guildID, "err", err)
				}
			}
		}()
		return nil, ctx.Err()
	}
}

type voiceConn struct {
	vc        *discordgo.VoiceConnection
	channelID string
	log       *log.Logger

	mu   sync.Mutex
	stop chan struct{}
}

func newVoiceConn(vc *discordgo.VoiceConnection, channelID string, logger *log.Logger) *voiceConn {
	return &voiceConn{vc: vc, channelID: channelID, log: logger}
}

func (c *voiceConn) ChannelID() string { return c.channelID }

func (c *voiceConn) Play(r io.Reader, onDone func(error)) error {
	enc, err := gopus.NewEncoder(synth.SampleRate, synth.Channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("encoder error: %w", err)
	}

	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		return ErrAlreadyPlaying
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go func() {
		err := c.stream(enc, r, stop)

		c.mu.Lock()
		if c.stop == stop {
			c.stop = nil
		}
		c.mu.Unlock()

		onDone(err)
	}()
	return nil
}

func (c *voiceConn) stream(enc *gopus.Encoder, r io.Reader, stop <-chan struct{}) error {
	if err := c.vc.Speaking(true); err != nil {
		c.log.Debug("Speaking on failed", "err", err)
	}
	defer func() {
		if err := c.vc.Speaking(false); err != nil {
			c.log.Debug("Speaking off failed", "err", err)
		}
	}()

	pcmBuf := make([]byte, frameSize*synth.Channels*2)
	intBuf := make([]int16, frameSize*synth.Channels)

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		n, err := io.ReadFull(r, pcmBuf)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			// Pad the tail frame with silence.
			clear(pcmBuf[n:])
		case err != nil:
			return fmt.Errorf("read error: %w", err)
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}
		opus, encErr := enc.Encode(intBuf, frameSize, maxOpusBytes)
		if encErr != nil {
			return fmt.Errorf("encode error: %w", encErr)
		}

		select {
		case c.vc.OpusSend <- opus:
		case <-stop:
			return nil
		}

		if err != nil {
			return nil
		}
	}
}

// Stop ends the current stream, if any. onDone still fires.
func (c *voiceConn) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// Disconnect stops playback and leaves the channel. discordgo has no graceful
// drain, so force only affects logging.
func (c *voiceConn) Disconnect(force bool) error {
	c.Stop()
	if err := c.vc.Disconnect(); err != nil {
		return fmt.Errorf("disconnect voice: %w", err)
	}
	c.log.Debug("Voice disconnected", "channel", c.channelID, "force", force)
	return nil
}
