// Package bot holds the small surface commands need from the running Discord
// bot, so command packages never import the discord package directly.
package bot

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

const EmbedColor = 0xb01e66

var ErrNotInVoice = errors.New("user not in any voice channel")

type VoiceState struct {
	ChannelID string
	UserID    string
}

// VoiceLocator finds the voice channel a member is connected to.
type VoiceLocator interface {
	FindUserVoiceState(guildID, userID string) (*VoiceState, error)
}

// Responder sends interaction replies.
type Responder interface {
	RespondEmbed(s *discordgo.Session, e *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error
	RespondEmbedEphemeral(s *discordgo.Session, e *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error
	RespondDeferred(s *discordgo.Session, e *discordgo.InteractionCreate) error
	FollowupEmbed(s *discordgo.Session, e *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error
}

// UserVoiceChannel returns the member's voice channel, or "" when the member
// is not connected or the lookup fails.
func UserVoiceChannel(l VoiceLocator, guildID, userID string) string {
	if l == nil {
		return ""
	}
	vs, err := l.FindUserVoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}
