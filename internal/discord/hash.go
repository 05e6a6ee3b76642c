package discord

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"

	"github.com/bwmarrin/discordgo"
)

// definitionShape is the part of a slash command definition Discord shows to
// users. IDs and versions assigned by Discord are left out, so a definition
// hashes the same before and after it is registered.
type definitionShape struct {
	Name        string                           `json:"name"`
	Description string                           `json:"description"`
	Type        discordgo.ApplicationCommandType `json:"type"`
	Permissions *int64                           `json:"permissions,omitempty"`
	Options     []optionShape                    `json:"options,omitempty"`
}

type optionShape struct {
	Name         string                                 `json:"name"`
	Description  string                                 `json:"description"`
	Type         discordgo.ApplicationCommandOptionType `json:"type"`
	Required     bool                                   `json:"required"`
	Min          *float64                               `json:"min,omitempty"`
	Max          float64                                `json:"max,omitempty"`
	ChannelTypes []discordgo.ChannelType                `json:"channel_types,omitempty"`
	Choices      []choiceShape                          `json:"choices,omitempty"`
	Options      []optionShape                          `json:"options,omitempty"`
}

type choiceShape struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// definitionHash fingerprints def. Option order does not matter; names,
// descriptions, limits and choices do.
func definitionHash(def *discordgo.ApplicationCommand) string {
	data, _ := json.Marshal(definitionShape{
		Name:        def.Name,
		Description: def.Description,
		Type:        def.Type,
		Permissions: def.DefaultMemberPermissions,
		Options:     optionShapes(def.Options),
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func optionShapes(opts []*discordgo.ApplicationCommandOption) []optionShape {
	if len(opts) == 0 {
		return nil
	}
	out := make([]optionShape, 0, len(opts))
	for _, o := range opts {
		s := optionShape{
			Name:         o.Name,
			Description:  o.Description,
			Type:         o.Type,
			Required:     o.Required,
			Min:          o.MinValue,
			Max:          o.MaxValue,
			ChannelTypes: o.ChannelTypes,
			Options:      optionShapes(o.Options),
		}
		for _, c := range o.Choices {
			s.Choices = append(s.Choices, choiceShape{Name: c.Name, Value: c.Value})
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b optionShape) int { return cmp.Compare(a.Name, b.Name) })
	return out
}
