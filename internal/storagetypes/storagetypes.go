package storagetypes

import "time"

// Default voice parameters applied to records created on first lookup.
const (
	DefaultSpeed      = 1.0
	DefaultTone       = 0.0
	DefaultIntonation = 1.0
	DefaultVolume     = 0.0
)

type UserVoicePreference struct {
	UserID     string    `json:"user_id"`
	Speed      float64   `json:"speed"`
	Tone       float64   `json:"tone"`
	Intonation float64   `json:"intonation"`
	Volume     float64   `json:"volume"` // dB
	UpdatedAt  time.Time `json:"updated_at"`
}

type GuildVoicePreference struct {
	GuildID   string    `json:"guild_id"`
	ReadName  bool      `json:"read_name"`
	ReadNick  bool      `json:"read_nick"`
	ReadBot   bool      `json:"read_bot"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DictionaryEntry struct {
	GuildID string `json:"guild_id"`
	Before  string `json:"before"`
	After   string `json:"after"`
}

// DictionaryOp names a change delivered for a guild dictionary.
type DictionaryOp string

const (
	DictionaryAdd    DictionaryOp = "add"
	DictionaryUpdate DictionaryOp = "update"
	DictionaryRemove DictionaryOp = "remove"
)

func NewUserVoicePreference(userID string) UserVoicePreference {
	return UserVoicePreference{
		UserID:     userID,
		Speed:      DefaultSpeed,
		Tone:       DefaultTone,
		Intonation: DefaultIntonation,
		Volume:     DefaultVolume,
		UpdatedAt:  time.Now(),
	}
}

func NewGuildVoicePreference(guildID string) GuildVoicePreference {
	return GuildVoicePreference{
		GuildID:   guildID,
		UpdatedAt: time.Now(),
	}
}

// GuildRecord is the per-guild document kept by the JSON store.
type GuildRecord struct {
	Preference GuildVoicePreference `json:"voice_preference"`
	Dictionary map[string]string    `json:"dictionary"` // before -> after
}
