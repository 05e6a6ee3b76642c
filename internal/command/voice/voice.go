// Package voice holds the slash commands that drive the guild voice reader.
package voice

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/yomiage/internal/audiotag"
	"github.com/keshon/yomiage/internal/command"
	"github.com/keshon/yomiage/internal/playback"
	"github.com/keshon/yomiage/internal/settings"
)

// Register adds every voice command to reg with the standard middlewares.
func Register(reg *command.Registry) {
	for _, cmd := range []command.Command{
		&JoinCommand{},
		&LeaveCommand{},
		&MoveCommand{},
		&SkipCommand{},
		&VoiceCommand{},
		&VoiceGuildCommand{},
		&DictCommand{},
		&TagCommand{},
	} {
		reg.RegisterCommand(cmd,
			command.WithGuildOnly(),
			command.WithAdminOnly(),
			command.WithCommandLogger(),
		)
	}
}

func slashContext(ctx interface{}) (*command.SlashInteractionContext, error) {
	v, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil, fmt.Errorf("wrong context type %T", ctx)
	}
	return v, nil
}

// describeErr turns a command failure into the text shown to the user.
func describeErr(err error) string {
	switch {
	case errors.Is(err, playback.ErrAlreadyConnected):
		return "I'm already in a voice channel. Use `/move` to switch channels."
	case errors.Is(err, playback.ErrNotConnected):
		return "I'm not in a voice channel. Use `/join` first."
	case errors.Is(err, playback.ErrUserNotInChannel):
		return "Join the voice channel first."
	case errors.Is(err, playback.ErrConnectionTimeout):
		return "Timed out connecting to the voice channel."
	case errors.Is(err, settings.ErrOutOfRange):
		return err.Error()
	case errors.Is(err, settings.ErrEmptyWord):
		return "The word must not be empty."
	case errors.Is(err, audiotag.ErrNotFound):
		return err.Error()
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}

func errorEmbed(title string, err error) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: describeErr(err)}
}

func channelOption(name, desc string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         name,
		Description:  desc,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice},
	}
}

// channelID reads a channel option's raw ID so no state lookup is needed.
func channelID(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	o, ok := opts[name]
	if !ok {
		return ""
	}
	if id, ok := o.Value.(string); ok {
		return id
	}
	return ""
}
