// Package reading connects chat messages to the voice pipeline: it decides
// which messages are read aloud and keeps the preference cache current.
package reading

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/keshon/yomiage/internal/events"
	"github.com/keshon/yomiage/internal/logging"
	"github.com/keshon/yomiage/internal/phonetic"
	"github.com/keshon/yomiage/internal/playback"
	"github.com/keshon/yomiage/internal/prefcache"
	"github.com/keshon/yomiage/internal/textproc"
)

// Commands is the surface used by user commands.
type Commands interface {
	Join(ctx context.Context, guildID, textChannelID, voiceChannelID, userVoiceChannelID string) (playback.Session, error)
	Leave(ctx context.Context, guildID string) error
	Move(ctx context.Context, guildID, textChannelID, newVoiceChannelID, userVoiceChannelID string) (playback.Session, error)
	Skip(guildID string, scope playback.SkipScope) bool
	PlayClip(ctx context.Context, guildID, channelID string, audio io.Reader) (playback.Outcome, error)
	Session(guildID string) (playback.Session, bool)
}

// Events is the surface fed by the message stream and the update bus.
type Events interface {
	HandleMessage(ctx context.Context, msg Message) (playback.Outcome, error)
	events.Handler
}

// Message is an inbound chat message with mentions already resolved.
type Message struct {
	GuildID   string
	ChannelID string
	AuthorID  string
	Username  string
	Nickname  string
	AuthorBot bool
	Content   string
}

type Config struct {
	Coordinator   *playback.Coordinator
	Cache         *prefcache.Cache
	Phonetic      phonetic.Table
	CommandPrefix string
	Logger        *log.Logger
}

// Reader implements both Commands and Events.
type Reader struct {
	coord  *playback.Coordinator
	cache  *prefcache.Cache
	table  phonetic.Table
	prefix string
	log    *log.Logger
}

var (
	_ Commands = (*Reader)(nil)
	_ Events   = (*Reader)(nil)
)

func New(cfg Config) *Reader {
	return &Reader{
		coord:  cfg.Coordinator,
		cache:  cfg.Cache,
		table:  cfg.Phonetic,
		prefix: cfg.CommandPrefix,
		log:    logging.For(cfg.Logger, "reading"),
	}
}

func (r *Reader) Join(ctx context.Context, guildID, textChannelID, voiceChannelID, userVoiceChannelID string) (playback.Session, error) {
	return r.coord.Join(ctx, guildID, textChannelID, voiceChannelID, userVoiceChannelID)
}

func (r *Reader) Leave(ctx context.Context, guildID string) error {
	return r.coord.Leave(ctx, guildID)
}

func (r *Reader) Move(ctx context.Context, guildID, textChannelID, newVoiceChannelID, userVoiceChannelID string) (playback.Session, error) {
	return r.coord.Move(ctx, guildID, textChannelID, newVoiceChannelID, userVoiceChannelID)
}

func (r *Reader) Skip(guildID string, scope playback.SkipScope) bool {
	return r.coord.Skip(guildID, scope)
}

func (r *Reader) Session(guildID string) (playback.Session, bool) {
	return r.coord.Session(guildID)
}

// PlayClip plays prepared audio. Anyone in channelID may skip it.
func (r *Reader) PlayClip(ctx context.Context, guildID, channelID string, audio io.Reader) (playback.Outcome, error) {
	return r.coord.Enqueue(ctx, guildID, playback.Request{
		Audio:  audio,
		Scope:  playback.SkipScope{ChannelID: channelID},
		Source: "tag",
	})
}

// HandleMessage reads msg aloud when the guild is connected, msg was sent in
// the bound text channel, it is not a command, and nothing is playing.
// Everything else returns OutcomeDropped with no error.
func (r *Reader) HandleMessage(ctx context.Context, msg Message) (playback.Outcome, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return playback.OutcomeDropped, nil
	}
	session, ok := r.coord.Session(msg.GuildID)
	if !ok || msg.ChannelID != session.TextChannelID {
		return playback.OutcomeDropped, nil
	}
	if r.prefix != "" && strings.HasPrefix(msg.Content, r.prefix) {
		return playback.OutcomeDropped, nil
	}
	if session.State == playback.Playing {
		return playback.OutcomeDropped, nil
	}

	user, err := r.cache.UserPreference(ctx, msg.AuthorID)
	if err != nil {
		return playback.OutcomeDropped, err
	}
	engine, err := r.cache.GuildEngine(ctx, msg.GuildID)
	if err != nil {
		return playback.OutcomeDropped, err
	}
	if msg.AuthorBot && !engine.Preference().ReadBot {
		return playback.OutcomeDropped, nil
	}

	audio, err := engine.Speak(ctx, textproc.Utterance{
		SpeakerID: msg.AuthorID,
		Username:  msg.Username,
		Nickname:  msg.Nickname,
		Text:      msg.Content,
	}, user, r.table)
	if err != nil {
		return playback.OutcomeDropped, err
	}

	outcome, err := r.coord.Enqueue(ctx, msg.GuildID, playback.Request{
		Audio:  audio,
		Scope:  playback.SkipScope{ChannelID: msg.ChannelID, AuthorID: msg.AuthorID},
		Source: "text",
	})
	if errors.Is(err, playback.ErrNotConnected) {
		// The guild left while the text was being synthesized.
		return playback.OutcomeDropped, nil
	}
	return outcome, err
}

// HandleUpdate applies an update notification to the cache.
func (r *Reader) HandleUpdate(ev events.Event) {
	switch ev.Kind {
	case events.UserPreferenceUpdated:
		if ev.User != nil {
			r.cache.InvalidateUser(*ev.User)
		}
	case events.GuildPreferenceUpdated:
		if ev.Guild != nil {
			r.cache.InvalidateGuild(*ev.Guild)
		}
	case events.DictionaryAdded, events.DictionaryUpdated, events.DictionaryRemoved:
		op, _ := ev.Op()
		if ev.Entry != nil {
			r.cache.UpdateDictionary(op, *ev.Entry)
		}
	default:
		r.log.Warn("Unknown update event", "kind", ev.Kind)
	}
}
