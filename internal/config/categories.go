package config

const (
	CategoryVoice      = "🔊 Voice"
	CategoryDictionary = "📖 Dictionary"
	CategoryTags       = "🎶 Tags"
	CategorySettings   = "⚙️ Settings"
)

var CategoryWeights = map[string]int{
	CategoryVoice:      0,
	CategoryTags:       10,
	CategoryDictionary: 20,
	CategorySettings:   50,
}
