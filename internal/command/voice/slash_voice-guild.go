package voice

import (
	"github.com/bwmarrin/discordgo"

	"github.com/keshon/yomiage/internal/command"
	"github.com/keshon/yomiage/internal/config"
	st "github.com/keshon/yomiage/internal/storagetypes"
)

// VoiceGuildCommand shows or changes how the guild's messages are read.
type VoiceGuildCommand struct{}

func (c *VoiceGuildCommand) Name() string        { return "voice-guild" }
func (c *VoiceGuildCommand) Description() string { return "Show or change how this server is read" }
func (c *VoiceGuildCommand) Aliases() []string   { return []string{} }
func (c *VoiceGuildCommand) Category() string    { return config.CategorySettings }
func (c *VoiceGuildCommand) RequireAdmin() bool  { return true }

func (c *VoiceGuildCommand) SlashDefinition() *discordgo.ApplicationCommand {
	boolOption := func(name, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        name,
			Description: desc,
		}
	}
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			boolOption("read_name", "Say the speaker's name before their message"),
			boolOption("read_nick", "Use server nicknames instead of usernames"),
			boolOption("read_bot", "Read messages written by bots"),
		},
	}
}

func (c *VoiceGuildCommand) Run(ctx interface{}) error {
	v, err := slashContext(ctx)
	if err != nil {
		return err
	}
	_, opts := command.Options(v.Event)
	guildID := v.Event.GuildID

	var pref st.GuildVoicePreference
	if len(opts) == 0 {
		pref, err = v.Deps.Settings.Guild(v.Ctx, guildID)
	} else {
		pref, err = v.Deps.Settings.UpdateGuild(v.Ctx, guildID, func(p *st.GuildVoicePreference) {
			if o, ok := opts["read_name"]; ok {
				p.ReadName = o.BoolValue()
			}
			if o, ok := opts["read_nick"]; ok {
				p.ReadNick = o.BoolValue()
			}
			if o, ok := opts["read_bot"]; ok {
				p.ReadBot = o.BoolValue()
			}
		})
	}
	if err != nil {
		return v.Reply(errorEmbed("⚙️ Server voice", err), true)
	}

	return v.Reply(&discordgo.MessageEmbed{
		Title: "⚙️ Server voice",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Read name", Value: onOff(pref.ReadName), Inline: true},
			{Name: "Read nickname", Value: onOff(pref.ReadNick), Inline: true},
			{Name: "Read bots", Value: onOff(pref.ReadBot), Inline: true},
		},
	}, false)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
