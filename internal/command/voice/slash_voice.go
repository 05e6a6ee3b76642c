package voice

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/yomiage/internal/command"
	"github.com/keshon/yomiage/internal/config"
	"github.com/keshon/yomiage/internal/settings"
	st "github.com/keshon/yomiage/internal/storagetypes"
)

// VoiceCommand shows or changes the caller's own voice parameters.
type VoiceCommand struct{}

func (c *VoiceCommand) Name() string        { return "voice" }
func (c *VoiceCommand) Description() string { return "Show or change your reading voice" }
func (c *VoiceCommand) Aliases() []string   { return []string{} }
func (c *VoiceCommand) Category() string    { return config.CategorySettings }
func (c *VoiceCommand) RequireAdmin() bool  { return false }

func numberOption(name, desc string, lo, hi float64) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionNumber,
		Name:        name,
		Description: desc,
		MinValue:    &lo,
		MaxValue:    hi,
	}
}

func (c *VoiceCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			numberOption("speed", "Speaking rate", settings.MinSpeed, settings.MaxSpeed),
			numberOption("tone", "Pitch shift in semitones", settings.MinTone, settings.MaxTone),
			numberOption("intonation", "Intonation scale", settings.MinIntonation, settings.MaxIntonation),
			numberOption("volume", "Volume in dB", settings.MinVolume, settings.MaxVolume),
		},
	}
}

func (c *VoiceCommand) Run(ctx interface{}) error {
	v, err := slashContext(ctx)
	if err != nil {
		return err
	}
	_, opts := command.Options(v.Event)
	userID := v.Caller().ID

	var pref st.UserVoicePreference
	if len(opts) == 0 {
		pref, err = v.Deps.Settings.User(v.Ctx, userID)
	} else {
		pref, err = v.Deps.Settings.UpdateUser(v.Ctx, userID, func(p *st.UserVoicePreference) {
			if o, ok := opts["speed"]; ok {
				p.Speed = o.FloatValue()
			}
			if o, ok := opts["tone"]; ok {
				p.Tone = o.FloatValue()
			}
			if o, ok := opts["intonation"]; ok {
				p.Intonation = o.FloatValue()
			}
			if o, ok := opts["volume"]; ok {
				p.Volume = o.FloatValue()
			}
		})
	}
	if err != nil {
		return v.Reply(errorEmbed("🗣️ Voice", err), true)
	}

	return v.Reply(&discordgo.MessageEmbed{
		Title: "🗣️ Your voice",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Speed", Value: fmt.Sprintf("%.2f", pref.Speed), Inline: true},
			{Name: "Tone", Value: fmt.Sprintf("%.2f", pref.Tone), Inline: true},
			{Name: "Intonation", Value: fmt.Sprintf("%.2f", pref.Intonation), Inline: true},
			{Name: "Volume", Value: fmt.Sprintf("%.1f dB", pref.Volume), Inline: true},
		},
	}, true)
}
