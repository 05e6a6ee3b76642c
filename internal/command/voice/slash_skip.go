package voice

import (
	"github.com/bwmarrin/discordgo"

	"github.com/keshon/yomiage/internal/config"
	"github.com/keshon/yomiage/internal/playback"
)

type SkipCommand struct{}

func (c *SkipCommand) Name() string        { return "skip" }
func (c *SkipCommand) Description() string { return "Stop reading your current message" }
func (c *SkipCommand) Aliases() []string   { return []string{} }
func (c *SkipCommand) Category() string    { return config.CategoryVoice }
func (c *SkipCommand) RequireAdmin() bool  { return false }

func (c *SkipCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *SkipCommand) Run(ctx interface{}) error {
	v, err := slashContext(ctx)
	if err != nil {
		return err
	}

	scope := playback.SkipScope{ChannelID: v.Event.ChannelID, AuthorID: v.Caller().ID}
	if !v.Deps.Reader.Skip(v.Event.GuildID, scope) {
		return v.Reply(&discordgo.MessageEmbed{Description: "Nothing you can skip is playing."}, true)
	}
	return v.Reply(&discordgo.MessageEmbed{Description: "⏭️ Skipped."}, true)
}
