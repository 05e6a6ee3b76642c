package voice

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/yomiage/internal/audiotag"
	"github.com/keshon/yomiage/internal/bot"
	"github.com/keshon/yomiage/internal/command"
	"github.com/keshon/yomiage/internal/playback"
	"github.com/keshon/yomiage/internal/settings"
	"github.com/keshon/yomiage/internal/storage"
	st "github.com/keshon/yomiage/internal/storagetypes"
)

type fakeReader struct {
	joinArgs  []string
	joinErr   error
	moveErr   error
	leaveErr  error
	skipScope playback.SkipScope
	skipOK    bool
	session   *playback.Session
	clips     int
}

func (f *fakeReader) Join(_ context.Context, guildID, text, voice, userVoice string) (playback.Session, error) {
	f.joinArgs = []string{guildID, text, voice, userVoice}
	if f.joinErr != nil {
		return playback.Session{}, f.joinErr
	}
	if voice == "" {
		voice = userVoice
	}
	return playback.Session{GuildID: guildID, TextChannelID: text, VoiceChannelID: voice, State: playback.Idle}, nil
}

func (f *fakeReader) Leave(context.Context, string) error { return f.leaveErr }

func (f *fakeReader) Move(_ context.Context, guildID, text, voice, userVoice string) (playback.Session, error) {
	if f.moveErr != nil {
		return playback.Session{}, f.moveErr
	}
	return playback.Session{GuildID: guildID, TextChannelID: text, VoiceChannelID: voice}, nil
}

func (f *fakeReader) Skip(_ string, scope playback.SkipScope) bool {
	f.skipScope = scope
	return f.skipOK
}

func (f *fakeReader) PlayClip(context.Context, string, string, io.Reader) (playback.Outcome, error) {
	f.clips++
	return playback.OutcomeCompleted, nil
}

func (f *fakeReader) Session(string) (playback.Session, bool) {
	if f.session == nil {
		return playback.Session{}, false
	}
	return *f.session, true
}

type fakeLocator map[string]string

func (l fakeLocator) FindUserVoiceState(_, userID string) (*bot.VoiceState, error) {
	ch, ok := l[userID]
	if !ok {
		return nil, bot.ErrNotInVoice
	}
	return &bot.VoiceState{ChannelID: ch, UserID: userID}, nil
}

type reply struct {
	embed     *discordgo.MessageEmbed
	ephemeral bool
	followup  bool
}

type fakeResponder struct {
	deferred int
	replies  []reply
}

func (r *fakeResponder) RespondEmbed(_ *discordgo.Session, _ *discordgo.InteractionCreate, e *discordgo.MessageEmbed) error {
	r.replies = append(r.replies, reply{embed: e})
	return nil
}

func (r *fakeResponder) RespondEmbedEphemeral(_ *discordgo.Session, _ *discordgo.InteractionCreate, e *discordgo.MessageEmbed) error {
	r.replies = append(r.replies, reply{embed: e, ephemeral: true})
	return nil
}

func (r *fakeResponder) RespondDeferred(*discordgo.Session, *discordgo.InteractionCreate) error {
	r.deferred++
	return nil
}

func (r *fakeResponder) FollowupEmbed(_ *discordgo.Session, _ *discordgo.InteractionCreate, e *discordgo.MessageEmbed) error {
	r.replies = append(r.replies, reply{embed: e, followup: true})
	return nil
}

func (r *fakeResponder) last(t *testing.T) reply {
	t.Helper()
	require.NotEmpty(t, r.replies)
	return r.replies[len(r.replies)-1]
}

type harness struct {
	reader   *fakeReader
	resp     *fakeResponder
	settings *settings.Service
	deps     *command.Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{
		reader:   &fakeReader{},
		resp:     &fakeResponder{},
		settings: settings.New(store, nil),
	}
	h.deps = &command.Deps{
		Reader:    h.reader,
		Settings:  h.settings,
		Tags:      audiotag.New(t.TempDir()),
		Voice:     fakeLocator{"u1": "vc-user"},
		Responder: h.resp,
	}
	return h
}

func (h *harness) run(t *testing.T, cmd command.Command, opts ...*discordgo.ApplicationCommandInteractionDataOption) {
	t.Helper()
	ctx := &command.SlashInteractionContext{
		Ctx: context.Background(),
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   "g1",
			ChannelID: "text",
			Member: &discordgo.Member{
				User:        &discordgo.User{ID: "u1", Username: "alice"},
				Permissions: discordgo.PermissionManageServer,
			},
			Data: discordgo.ApplicationCommandInteractionData{Name: cmd.Name(), Options: opts},
		}},
		Deps: h.deps,
	}
	require.NoError(t, cmd.Run(ctx))
}

func str(name, v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v}
}

func num(name string, v float64) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionNumber, Value: v}
}

func flag(name string, v bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: v}
}

func sub(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts}
}

func TestJoinUsesCallerVoiceChannel(t *testing.T) {
	h := newHarness(t)

	h.run(t, &JoinCommand{})

	assert.Equal(t, []string{"g1", "text", "", "vc-user"}, h.reader.joinArgs)
	assert.Equal(t, 1, h.resp.deferred)
	r := h.resp.last(t)
	assert.True(t, r.followup)
	assert.Contains(t, r.embed.Description, "<#vc-user>")
}

func TestJoinExplicitChannel(t *testing.T) {
	h := newHarness(t)

	h.run(t, &JoinCommand{}, &discordgo.ApplicationCommandInteractionDataOption{
		Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: "vc-2",
	})

	assert.Equal(t, "vc-2", h.reader.joinArgs[2])
}

func TestJoinReportsPreconditions(t *testing.T) {
	cases := map[error]string{
		playback.ErrAlreadyConnected:  "already in a voice channel",
		playback.ErrUserNotInChannel:  "Join the voice channel first.",
		playback.ErrConnectionTimeout: "Timed out",
	}
	for err, want := range cases {
		t.Run(err.Error(), func(t *testing.T) {
			h := newHarness(t)
			h.reader.joinErr = err

			h.run(t, &JoinCommand{})

			assert.Contains(t, h.resp.last(t).embed.Description, want)
		})
	}
}

func TestLeaveNotConnected(t *testing.T) {
	h := newHarness(t)
	h.reader.leaveErr = playback.ErrNotConnected

	h.run(t, &LeaveCommand{})

	r := h.resp.last(t)
	assert.True(t, r.ephemeral)
	assert.Contains(t, r.embed.Description, "not in a voice channel")
}

func TestMoveReportsResult(t *testing.T) {
	h := newHarness(t)

	h.run(t, &MoveCommand{}, &discordgo.ApplicationCommandInteractionDataOption{
		Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: "vc-3",
	})
	assert.Contains(t, h.resp.last(t).embed.Description, "<#vc-3>")

	h.reader.moveErr = playback.ErrNotConnected
	h.run(t, &MoveCommand{})
	assert.Contains(t, h.resp.last(t).embed.Description, "/join")
}

func TestSkipScopedToCaller(t *testing.T) {
	h := newHarness(t)

	h.run(t, &SkipCommand{})
	assert.Equal(t, playback.SkipScope{ChannelID: "text", AuthorID: "u1"}, h.reader.skipScope)
	assert.Contains(t, h.resp.last(t).embed.Description, "Nothing")

	h.reader.skipOK = true
	h.run(t, &SkipCommand{})
	assert.Contains(t, h.resp.last(t).embed.Description, "Skipped")
}

func TestVoiceUpdatesAndValidates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.run(t, &VoiceCommand{}, num("speed", 1.5), num("volume", -3))
	pref, err := h.settings.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1.5, pref.Speed)
	assert.Equal(t, -3.0, pref.Volume)

	h.run(t, &VoiceCommand{}, num("speed", 3))
	r := h.resp.last(t)
	assert.True(t, r.ephemeral)
	assert.Contains(t, r.embed.Description, "speed must be between")

	pref, err = h.settings.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1.5, pref.Speed)
}

func TestVoiceWithoutOptionsShowsCurrent(t *testing.T) {
	h := newHarness(t)

	h.run(t, &VoiceCommand{})

	r := h.resp.last(t)
	require.Len(t, r.embed.Fields, 4)
	assert.Equal(t, "1.00", r.embed.Fields[0].Value)
}

func TestVoiceGuildSetsFlags(t *testing.T) {
	h := newHarness(t)

	h.run(t, &VoiceGuildCommand{}, flag("read_bot", true), flag("read_name", true))

	pref, err := h.settings.Guild(context.Background(), "g1")
	require.NoError(t, err)
	assert.True(t, pref.ReadBot)
	assert.True(t, pref.ReadName)
	assert.False(t, pref.ReadNick)
}

func TestDictLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.run(t, &DictCommand{}, sub("add", str("word", "gg"), str("reading", "good game")))
	assert.Contains(t, h.resp.last(t).embed.Description, "Added")

	h.run(t, &DictCommand{}, sub("add", str("word", "gg"), str("reading", "gee gee")))
	assert.Contains(t, h.resp.last(t).embed.Description, "Updated")

	words, err := h.settings.Words(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []st.DictionaryEntry{{GuildID: "g1", Before: "gg", After: "gee gee"}}, words)

	h.run(t, &DictCommand{}, sub("list"))
	assert.Contains(t, h.resp.last(t).embed.Description, "`gg` → `gee gee`")

	h.run(t, &DictCommand{}, sub("remove", str("word", "gg")))
	assert.Contains(t, h.resp.last(t).embed.Description, "Removed")

	h.run(t, &DictCommand{}, sub("remove", str("word", "gg")))
	assert.Contains(t, h.resp.last(t).embed.Description, "not in the dictionary")

	h.run(t, &DictCommand{}, sub("add", str("word", "  "), str("reading", "x")))
	assert.Contains(t, h.resp.last(t).embed.Description, "must not be empty")
}

func TestTagPlayRequiresConnection(t *testing.T) {
	h := newHarness(t)

	h.run(t, &TagCommand{}, sub("play", str("name", "hello")))

	assert.Zero(t, h.reader.clips)
	assert.Contains(t, h.resp.last(t).embed.Description, "/join")
}

func TestTagPlayUnknownTag(t *testing.T) {
	h := newHarness(t)
	h.reader.session = &playback.Session{GuildID: "g1", State: playback.Idle}

	h.run(t, &TagCommand{}, sub("play", str("name", "missing")))

	assert.Zero(t, h.reader.clips)
	assert.Contains(t, h.resp.last(t).embed.Description, "not found")
}

func TestTagListEmpty(t *testing.T) {
	h := newHarness(t)

	h.run(t, &TagCommand{}, sub("list"))

	r := h.resp.last(t)
	assert.Equal(t, "No tags yet.", r.embed.Description)
	assert.Equal(t, "Page 1/1", r.embed.Footer.Text)
}

func TestRegisterAddsEveryCommand(t *testing.T) {
	reg := command.NewRegistry()
	Register(reg)

	for _, name := range []string{"join", "leave", "move", "skip", "voice", "voice-guild", "dict", "tag"} {
		cmd, ok := reg.GetCommand(name)
		require.True(t, ok, name)
		_, ok = cmd.(command.SlashProvider)
		assert.True(t, ok, name)
	}
}
