package voice

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/yomiage/internal/command"
	"github.com/keshon/yomiage/internal/config"
	st "github.com/keshon/yomiage/internal/storagetypes"
)

// embed descriptions are capped at 4096 characters
const maxDescription = 4000

// DictCommand manages the guild's reading dictionary.
type DictCommand struct{}

func (c *DictCommand) Name() string        { return "dict" }
func (c *DictCommand) Description() string { return "Manage how words are read in this server" }
func (c *DictCommand) Aliases() []string   { return []string{} }
func (c *DictCommand) Category() string    { return config.CategoryDictionary }
func (c *DictCommand) RequireAdmin() bool  { return true }

func (c *DictCommand) SlashDefinition() *discordgo.ApplicationCommand {
	word := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "word",
		Description: "Text as written",
		Required:    true,
	}
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add or replace a reading",
				Options: []*discordgo.ApplicationCommandOption{
					word,
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "reading",
						Description: "Text as it should be read",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a reading",
				Options:     []*discordgo.ApplicationCommandOption{word},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List all readings",
			},
		},
	}
}

func (c *DictCommand) Run(ctx interface{}) error {
	v, err := slashContext(ctx)
	if err != nil {
		return err
	}
	sub, opts := command.Options(v.Event)
	guildID := v.Event.GuildID

	switch sub {
	case "add":
		entry := st.DictionaryEntry{
			GuildID: guildID,
			Before:  opts["word"].StringValue(),
			After:   opts["reading"].StringValue(),
		}
		op, err := v.Deps.Settings.PutWord(v.Ctx, entry)
		if err != nil {
			return v.Reply(errorEmbed("📖 Dictionary", err), true)
		}
		verb := "Added"
		if op == st.DictionaryUpdate {
			verb = "Updated"
		}
		return v.Reply(&discordgo.MessageEmbed{
			Title:       "📖 Dictionary",
			Description: fmt.Sprintf("%s `%s` → `%s`", verb, entry.Before, entry.After),
		}, false)

	case "remove":
		word := opts["word"].StringValue()
		removed, err := v.Deps.Settings.RemoveWord(v.Ctx, guildID, word)
		if err != nil {
			return v.Reply(errorEmbed("📖 Dictionary", err), true)
		}
		if !removed {
			return v.Reply(&discordgo.MessageEmbed{
				Title:       "📖 Dictionary",
				Description: fmt.Sprintf("`%s` is not in the dictionary.", word),
			}, true)
		}
		return v.Reply(&discordgo.MessageEmbed{
			Title:       "📖 Dictionary",
			Description: fmt.Sprintf("Removed `%s`", word),
		}, false)

	case "list":
		words, err := v.Deps.Settings.Words(v.Ctx, guildID)
		if err != nil {
			return v.Reply(errorEmbed("📖 Dictionary", err), true)
		}
		return v.Reply(&discordgo.MessageEmbed{
			Title:       fmt.Sprintf("📖 Dictionary (%d)", len(words)),
			Description: formatWords(words),
		}, true)

	default:
		return v.Reply(&discordgo.MessageEmbed{Description: fmt.Sprintf("Unknown subcommand: %s", sub)}, true)
	}
}

func formatWords(words []st.DictionaryEntry) string {
	if len(words) == 0 {
		return "The dictionary is empty."
	}
	var b strings.Builder
	for i, w := range words {
		line := fmt.Sprintf("`%s` → `%s`\n", w.Before, w.After)
		if b.Len()+len(line) > maxDescription {
			fmt.Fprintf(&b, "… and %d more", len(words)-i)
			break
		}
		b.WriteString(line)
	}
	return b.String()
}
