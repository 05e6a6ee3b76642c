package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// State is the externally visible state of a guild.
type State int

const (
	Disconnected State = iota
	Idle
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	default:
		return "disconnected"
	}
}

var (
	// ErrPrecondition is matched by every error reporting a command issued in
	// the wrong state. Such errors never change state.
	ErrPrecondition = errors.New("precondition failed")

	ErrAlreadyConnected = fmt.Errorf("%w: already connected", ErrPrecondition)
	ErrNotConnected     = fmt.Errorf("%w: not connected", ErrPrecondition)
	ErrUserNotInChannel = fmt.Errorf("%w: user is not in the target voice channel", ErrPrecondition)

	ErrConnectionTimeout = errors.New("voice connection timed out")
)

// Transport opens voice connections.
type Transport interface {
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Connection is one live voice connection. Play streams 48 kHz stereo 16-bit
// PCM and calls onDone exactly once when the stream ends, fails or is
// stopped.
type Connection interface {
	ChannelID() string
	Play(r io.Reader, onDone func(error)) error
	Stop()
	Disconnect(force bool) error
}

// EngineReleaser drops per-guild synthesis state when a guild disconnects.
type EngineReleaser interface {
	Release(guildID string)
}

// Session is a guild's binding to one text channel and one voice channel.
type Session struct {
	GuildID        string
	TextChannelID  string
	VoiceChannelID string
	State          State
}

// SkipScope says which skip requests may cancel a playback. An empty AuthorID
// lets anyone in the channel skip.
type SkipScope struct {
	ChannelID string
	AuthorID  string
}

// Allows reports whether a skip issued by req cancels a playback scoped to s.
func (s SkipScope) Allows(req SkipScope) bool {
	if s.ChannelID != req.ChannelID {
		return false
	}
	return s.AuthorID == "" || s.AuthorID == req.AuthorID
}

// Request is one audio stream to play.
type Request struct {
	Audio  io.Reader
	Scope  SkipScope
	Source string // "text" or "tag", for logs and metrics
}

type Outcome int

const (
	OutcomeDropped Outcome = iota
	OutcomeCompleted
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "dropped"
	}
}
