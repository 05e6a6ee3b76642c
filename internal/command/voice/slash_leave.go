package voice

import (
	"github.com/bwmarrin/discordgo"

	"github.com/keshon/yomiage/internal/config"
)

type LeaveCommand struct{}

func (c *LeaveCommand) Name() string        { return "leave" }
func (c *LeaveCommand) Description() string { return "Stop reading and leave the voice channel" }
func (c *LeaveCommand) Aliases() []string   { return []string{} }
func (c *LeaveCommand) Category() string    { return config.CategoryVoice }
func (c *LeaveCommand) RequireAdmin() bool  { return false }

func (c *LeaveCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *LeaveCommand) Run(ctx interface{}) error {
	v, err := slashContext(ctx)
	if err != nil {
		return err
	}

	if err := v.Deps.Reader.Leave(v.Ctx, v.Event.GuildID); err != nil {
		return v.Reply(errorEmbed("👋 Leave", err), true)
	}
	return v.Reply(&discordgo.MessageEmbed{Description: "👋 Left the voice channel."}, false)
}
