package voice

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/yomiage/internal/bot"
	"github.com/keshon/yomiage/internal/command"
	"github.com/keshon/yomiage/internal/config"
)

type MoveCommand struct{}

func (c *MoveCommand) Name() string        { return "move" }
func (c *MoveCommand) Description() string { return "Move the reader to another voice channel" }
func (c *MoveCommand) Aliases() []string   { return []string{} }
func (c *MoveCommand) Category() string    { return config.CategoryVoice }
func (c *MoveCommand) RequireAdmin() bool  { return false }

func (c *MoveCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			channelOption("channel", "Voice channel to move to (defaults to yours)"),
		},
	}
}

func (c *MoveCommand) Run(ctx interface{}) error {
	v, err := slashContext(ctx)
	if err != nil {
		return err
	}
	d := v.Deps
	e := v.Event

	_, opts := command.Options(e)
	userVoice := bot.UserVoiceChannel(d.Voice, e.GuildID, v.Caller().ID)

	if err := d.Responder.RespondDeferred(v.Session, e); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}

	session, err := d.Reader.Move(v.Ctx, e.GuildID, e.ChannelID, channelID(opts, "channel"), userVoice)
	if err != nil {
		return d.Responder.FollowupEmbed(v.Session, e, errorEmbed("🔀 Move", err))
	}
	return d.Responder.FollowupEmbed(v.Session, e, &discordgo.MessageEmbed{
		Title:       "🔀 Moved",
		Description: fmt.Sprintf("Reading <#%s> in <#%s>.", session.TextChannelID, session.VoiceChannelID),
		Color:       bot.EmbedColor,
	})
}
