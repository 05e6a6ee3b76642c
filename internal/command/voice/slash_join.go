package voice

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/yomiage/internal/bot"
	"github.com/keshon/yomiage/internal/command"
	"github.com/keshon/yomiage/internal/config"
)

type JoinCommand struct{}

func (c *JoinCommand) Name() string        { return "join" }
func (c *JoinCommand) Description() string { return "Start reading this channel aloud in voice" }
func (c *JoinCommand) Aliases() []string   { return []string{} }
func (c *JoinCommand) Category() string    { return config.CategoryVoice }
func (c *JoinCommand) RequireAdmin() bool  { return false }

func (c *JoinCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			channelOption("channel", "Voice channel to join (defaults to yours)"),
		},
	}
}

func (c *JoinCommand) Run(ctx interface{}) error {
	v, err := slashContext(ctx)
	if err != nil {
		return err
	}
	d := v.Deps
	e := v.Event

	_, opts := command.Options(e)
	userVoice := bot.UserVoiceChannel(d.Voice, e.GuildID, v.Caller().ID)

	// Connecting can outlast the interaction deadline.
	if err := d.Responder.RespondDeferred(v.Session, e); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}

	session, err := d.Reader.Join(v.Ctx, e.GuildID, e.ChannelID, channelID(opts, "channel"), userVoice)
	if err != nil {
		return d.Responder.FollowupEmbed(v.Session, e, errorEmbed("🔊 Join", err))
	}
	return d.Responder.FollowupEmbed(v.Session, e, &discordgo.MessageEmbed{
		Title:       "🔊 Joined",
		Description: fmt.Sprintf("Reading <#%s> in <#%s>.", session.TextChannelID, session.VoiceChannelID),
		Color:       bot.EmbedColor,
	})
}
