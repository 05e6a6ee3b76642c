// Package discord runs the Discord gateway side of the reader: it feeds guild
// messages to the reading pipeline, dispatches slash commands and provides
// the voice transport.
package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/keshon/yomiage/internal/audiotag"
	"github.com/keshon/yomiage/internal/bot"
	"github.com/keshon/yomiage/internal/command"
	"github.com/keshon/yomiage/internal/command/voice"
	"github.com/keshon/yomiage/internal/config"
	"github.com/keshon/yomiage/internal/logging"
	"github.com/keshon/yomiage/internal/reading"
	"github.com/keshon/yomiage/internal/settings"
	"github.com/keshon/yomiage/pkg/util"
)

// Discord allows roughly 50 requests per second per bot.
const (
	commandRateLimit   = 40
	registerGuildLimit = 4
)

type Config struct {
	Session  *discordgo.Session
	Config   *config.Config
	Commands reading.Commands
	Events   reading.Events
	Settings *settings.Service
	Tags     *audiotag.Library
	Logger   *log.Logger
}

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	registry *command.Registry
	deps     *command.Deps
	events   reading.Events
	cache    commandCache
	limiter  *rate.Limiter
	log      *log.Logger

	mu         sync.Mutex
	ctx        context.Context
	registered map[string]bool
}

// NewSession creates a session with the intents the reader needs. It does
// not connect.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent
	return dg, nil
}

func New(c Config) *Bot {
	b := &Bot{
		dg:         c.Session,
		cfg:        c.Config,
		registry:   command.NewRegistry(),
		events:     c.Events,
		cache:      commandCache{dir: c.Config.CommandCacheDir},
		limiter:    rate.NewLimiter(commandRateLimit, 1),
		log:        logging.For(c.Logger, "discord"),
		ctx:        context.Background(),
		registered: map[string]bool{},
	}
	b.deps = &command.Deps{
		Reader:    c.Commands,
		Settings:  c.Settings,
		Tags:      c.Tags,
		Voice:     b,
		Responder: DefaultResponder,
		Logger:    c.Logger,
	}
	voice.Register(b.registry)
	return b
}

// Open connects to the gateway. Handlers run with ctx until Close.
func (b *Bot) Open(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onMessageCreate)
	b.dg.AddHandler(b.onInteractionCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	return nil
}

func (b *Bot) Close() error {
	return b.dg.Close()
}

func (b *Bot) context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

// FindUserVoiceState finds the voice state of a user
func (b *Bot) FindUserVoiceState(guildID, userID string) (*bot.VoiceState, error) {
	return findUserVoiceState(b.dg.State, guildID, userID)
}

func findUserVoiceState(state *discordgo.State, guildID, userID string) (*bot.VoiceState, error) {
	guild, err := state.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return &bot.VoiceState{ChannelID: vs.ChannelID, UserID: vs.UserID}, nil
		}
	}
	return nil, bot.ErrNotInVoice
}

// onReady is called when the bot is ready
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	var guilds []string
	for _, g := range r.Guilds {
		if b.leaveIfBlacklisted(s, g.ID) {
			continue
		}
		guilds = append(guilds, g.ID)
	}

	if b.cfg.InitSlashCommands {
		err := util.Parallel(b.context(), guilds, registerGuildLimit, func(ctx context.Context, guildID string) error {
			if err := b.registerCommands(ctx, guildID); err != nil {
				b.log.Error("Error registering slash commands", "guild", guildID, "err", err)
			}
			return nil
		})
		if err != nil {
			b.log.Error("Slash command registration stopped", "err", err)
		}
	} else {
		b.log.Info("Registering slash commands skipped")
	}

	b.log.Info("✅ Discord bot is running", "user", r.User.Username, "guilds", len(guilds))
}

// onGuildCreate registers commands for guilds joined after startup.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.leaveIfBlacklisted(s, g.Guild.ID) {
		return
	}
	if !b.cfg.InitSlashCommands {
		return
	}
	if err := b.registerCommands(b.context(), g.Guild.ID); err != nil {
		b.log.Error("Failed to register commands for guild", "guild", g.Guild.ID, "err", err)
	}
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) bool {
	if !b.isGuildBlacklisted(guildID) {
		return false
	}
	b.log.Info("Leaving blacklisted guild", "guild", guildID)
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error("Failed to leave guild", "guild", guildID, "err", err)
	}
	return true
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.DiscordGuildBlacklist, guildID)
}

// onMessageCreate hands guild messages to the reader.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID == "" || m.Author == nil {
		return
	}
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	content, err := m.ContentWithMoreMentionsReplaced(s)
	if err != nil {
		content = m.ContentWithMentionsReplaced()
	}

	outcome, err := b.events.HandleMessage(b.context(), toMessage(m, content))
	if err != nil {
		b.log.Warn("Failed to read message", "guild", m.GuildID, "channel", m.ChannelID, "err", err)
		return
	}
	b.log.Debug("Message handled", "guild", m.GuildID, "outcome", outcome)
}

func toMessage(m *discordgo.MessageCreate, content string) reading.Message {
	msg := reading.Message{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		Username:  m.Author.Username,
		AuthorBot: m.Author.Bot,
		Content:   content,
	}
	if m.Member != nil {
		msg.Nickname = m.Member.Nick
	}
	return msg
}

// onInteractionCreate dispatches slash commands.
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.CommandType != discordgo.ChatApplicationCommand {
		return
	}

	cmd, ok := b.registry.GetCommand(data.Name)
	if !ok {
		b.log.Warn("Unknown command", "command", data.Name)
		return
	}

	ctx := &command.SlashInteractionContext{
		Ctx:     b.context(),
		Session: s,
		Event:   i,
		Deps:    b.deps,
	}
	if err := cmd.Run(ctx); err != nil {
		b.log.Error("Error running slash command", "command", data.Name, "err", err)
		if rerr := RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("Error running slash command: %v", err),
			Color:       bot.EmbedColor,
		}); rerr != nil {
			b.log.Debug("Error reply not sent", "err", rerr)
		}
	}
}

// registerCommands brings the guild's slash commands in line with the
// registry, sending only definitions whose hash changed. Any failure leaves
// the guild unmarked so the next GuildCreate retries it.
func (b *Bot) registerCommands(ctx context.Context, guildID string) (err error) {
	b.mu.Lock()
	if b.registered[guildID] {
		b.mu.Unlock()
		return nil
	}
	b.registered[guildID] = true
	b.mu.Unlock()
	defer func() {
		if err != nil {
			b.unmark(guildID)
		}
	}()

	appID, err := b.appID()
	if err != nil {
		return err
	}

	existing, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	localHashes := b.cache.load(guildID)

	wanted, wantedHashes := definitions(b.registry)
	changed := plan(existing, wanted, wantedHashes, localHashes)

	var errs []error
	for _, old := range changed.obsolete {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		b.log.Info("Deleting obsolete command", "guild", guildID, "command", old.Name)
		if err := b.dg.ApplicationCommandDelete(appID, guildID, old.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", old.Name, err))
			continue
		}
		delete(localHashes, old.Name)
	}

	for _, def := range changed.upsert {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, def); err != nil {
			errs = append(errs, fmt.Errorf("create %s: %w", def.Name, err))
			continue
		}
		localHashes[def.Name] = wantedHashes[def.Name]
		b.log.Debug("Command registered", "guild", guildID, "command", def.Name)
	}

	if err := b.cache.save(guildID, localHashes); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// unmark lets the next GuildCreate retry a failed registration.
func (b *Bot) unmark(guildID string) {
	b.mu.Lock()
	delete(b.registered, guildID)
	b.mu.Unlock()
}

func (b *Bot) appID() (string, error) {
	if b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	user, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("fetch bot user: %w", err)
	}
	return user.ID, nil
}

// definitions returns every slash definition in reg with its hash.
func definitions(reg *command.Registry) ([]*discordgo.ApplicationCommand, map[string]string) {
	var wanted []*discordgo.ApplicationCommand
	hashes := make(map[string]string)
	for _, cmd := range reg.AllCommands() {
		if def := normalizeDefinition(cmd); def != nil {
			wanted = append(wanted, def)
			hashes[def.Name] = definitionHash(def)
		}
	}
	return wanted, hashes
}

type registrationPlan struct {
	obsolete []*discordgo.ApplicationCommand
	upsert   []*discordgo.ApplicationCommand
}

// plan compares what Discord has with what the registry wants. A command is
// re-sent when its cached hash differs or Discord does not know it.
func plan(existing, wanted []*discordgo.ApplicationCommand, wantedHashes, localHashes map[string]string) registrationPlan {
	var p registrationPlan
	remote := map[string]bool{}
	for _, old := range existing {
		remote[old.Name] = true
		if _, ok := wantedHashes[old.Name]; !ok {
			p.obsolete = append(p.obsolete, old)
		}
	}
	for _, def := range wanted {
		if localHashes[def.Name] != wantedHashes[def.Name] || !remote[def.Name] {
			p.upsert = append(p.upsert, def)
		}
	}
	return p
}

// normalizeDefinition normalizes a command definition
func normalizeDefinition(cmd command.Command) *discordgo.ApplicationCommand {
	slash, ok := cmd.(command.SlashProvider)
	if !ok {
		return nil
	}
	def := slash.SlashDefinition()
	if def == nil {
		return nil
	}
	if def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}
