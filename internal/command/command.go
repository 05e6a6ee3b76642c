package command

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"github.com/keshon/yomiage/internal/audiotag"
	"github.com/keshon/yomiage/internal/bot"
	"github.com/keshon/yomiage/internal/reading"
	"github.com/keshon/yomiage/internal/settings"
)

type Command interface {
	Name() string
	Description() string
	Aliases() []string
	Category() string
	RequireAdmin() bool
	Run(ctx interface{}) error
}

// SlashProvider describes how a command is registered with Discord.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// Deps are the services commands act on.
type Deps struct {
	Reader    reading.Commands
	Settings  *settings.Service
	Tags      *audiotag.Library
	Voice     bot.VoiceLocator
	Responder bot.Responder
	Logger    *log.Logger
}

// SlashInteractionContext is what the runtime hands a slash command.
type SlashInteractionContext struct {
	Ctx     context.Context
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Deps    *Deps
}

// Caller returns the invoking member's user, falling back to the DM user.
func (c *SlashInteractionContext) Caller() *discordgo.User {
	if c.Event.Member != nil && c.Event.Member.User != nil {
		return c.Event.Member.User
	}
	return c.Event.User
}

// Reply sends embed as a public or ephemeral response.
func (c *SlashInteractionContext) Reply(embed *discordgo.MessageEmbed, ephemeral bool) error {
	if embed.Color == 0 {
		embed.Color = bot.EmbedColor
	}
	if ephemeral {
		return c.Deps.Responder.RespondEmbedEphemeral(c.Session, c.Event, embed)
	}
	return c.Deps.Responder.RespondEmbed(c.Session, c.Event, embed)
}

// Options flattens the top level options, or those of the first subcommand
// when sub is true, into a map by name.
func Options(e *discordgo.InteractionCreate) (string, map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	data := e.ApplicationCommandData()
	opts := data.Options
	sub := ""
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		sub = opts[0].Name
		opts = opts[0].Options
	}

	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		out[o.Name] = o
	}
	return sub, out
}
