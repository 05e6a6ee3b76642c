package voice

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/yomiage/internal/command"
	"github.com/keshon/yomiage/internal/config"
	"github.com/keshon/yomiage/internal/playback"
)

// TagCommand plays and lists the guild's audio tags.
type TagCommand struct{}

func (c *TagCommand) Name() string        { return "tag" }
func (c *TagCommand) Description() string { return "Play or list audio tags" }
func (c *TagCommand) Aliases() []string   { return []string{} }
func (c *TagCommand) Category() string    { return config.CategoryTags }
func (c *TagCommand) RequireAdmin() bool  { return false }

func (c *TagCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play an audio tag",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Tag name",
					Required:    true,
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List audio tags",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "page",
					Description: "Page number",
				}},
			},
		},
	}
}

func (c *TagCommand) Run(ctx interface{}) error {
	v, err := slashContext(ctx)
	if err != nil {
		return err
	}
	sub, opts := command.Options(v.Event)

	switch sub {
	case "play":
		return c.play(v, opts["name"].StringValue())
	case "list":
		page := 1
		if o, ok := opts["page"]; ok {
			page = int(o.IntValue())
		}
		return c.list(v, page)
	default:
		return v.Reply(&discordgo.MessageEmbed{Description: fmt.Sprintf("Unknown subcommand: %s", sub)}, true)
	}
}

func (c *TagCommand) play(v *command.SlashInteractionContext, name string) error {
	d := v.Deps
	guildID := v.Event.GuildID

	session, ok := d.Reader.Session(guildID)
	if !ok {
		return v.Reply(errorEmbed("🎶 Tag", playback.ErrNotConnected), true)
	}
	if session.State == playback.Playing {
		return v.Reply(&discordgo.MessageEmbed{Description: "Something is already playing."}, true)
	}

	audio, err := d.Tags.Load(guildID, name)
	if err != nil {
		return v.Reply(errorEmbed("🎶 Tag", err), true)
	}
	if err := v.Reply(&discordgo.MessageEmbed{Description: fmt.Sprintf("🎶 %s", name)}, false); err != nil {
		return err
	}

	// Playback outlives the reply; the outcome only goes to the log.
	outcome, err := d.Reader.PlayClip(v.Ctx, guildID, v.Event.ChannelID, audio)
	if err != nil {
		return fmt.Errorf("play tag %s: %w", name, err)
	}
	if outcome == playback.OutcomeDropped && d.Logger != nil {
		d.Logger.Debug("Tag dropped, guild busy", "guild", guildID, "tag", name)
	}
	return nil
}

func (c *TagCommand) list(v *command.SlashInteractionContext, page int) error {
	tags, pages, err := v.Deps.Tags.Page(v.Event.GuildID, page-1)
	if err != nil {
		return v.Reply(errorEmbed("🎶 Tags", err), true)
	}
	page = max(1, min(page, pages))

	desc := "No tags yet."
	if len(tags) > 0 {
		names := make([]string, len(tags))
		for i, t := range tags {
			names[i] = "`" + t.Name + "`"
		}
		desc = strings.Join(names, " ")
	}
	return v.Reply(&discordgo.MessageEmbed{
		Title:       "🎶 Tags",
		Description: desc,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d", page, pages)},
	}, true)
}
