package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keshon/yomiage/internal/phonetic"
	st "github.com/keshon/yomiage/internal/storagetypes"
)

func TestPreprocess(t *testing.T) {
	plain := st.NewGuildVoicePreference("g")
	lol := NewDictionary(map[string]string{"lol": "laugh out loud"})
	brb := phonetic.Table{"BRB": "be right back"}

	tests := []struct {
		name  string
		text  string
		dict  *Dictionary
		table phonetic.Table
		want  string
	}{
		{"dictionary hit", "that's so lol", lol, nil, "that's so laugh out loud"},
		{"dictionary miss", "no match here", lol, nil, "no match here"},
		{"phonetic hit", "brb everyone", nil, brb, "be right back everyone"},
		{"phonetic run must match whole", "brbq", nil, brb, "brbq"},
		{"phonetic mixed case", "BrB", nil, brb, "be right back"},
		{"phonetic between non letters", "ok,brb!", nil, brb, "ok,be right back!"},
		{"empty", "", lol, brb, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Preprocess(Utterance{Text: tt.text}, false, plain, tt.dict, tt.table)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPreprocessNamePrefix(t *testing.T) {
	u := Utterance{SpeakerID: "1", Username: "alice", Nickname: "ali", Text: "hi"}

	tests := []struct {
		name        string
		readName    bool
		readNick    bool
		nickname    string
		sameSpeaker bool
		want        string
	}{
		{"disabled", false, false, "ali", true, "hi"},
		{"new speaker is not prefixed", true, false, "ali", false, "hi"},
		{"same speaker gets username", true, false, "ali", true, "alicehi"},
		{"same speaker gets nickname", true, true, "ali", true, "alihi"},
		{"empty nickname falls back", true, true, "", true, "alicehi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := st.GuildVoicePreference{GuildID: "g", ReadName: tt.readName, ReadNick: tt.readNick}
			uu := u
			uu.Nickname = tt.nickname
			assert.Equal(t, tt.want, Preprocess(uu, tt.sameSpeaker, g, nil, nil))
		})
	}
}

func TestDictionarySinglePass(t *testing.T) {
	d := NewDictionary(map[string]string{
		"a":  "b",
		"b":  "c",
		"ab": "X",
		"":   "ignored",
	})

	// "b" produced by the first rule is not rewritten again, and the longer
	// rule wins at the same position.
	assert.Equal(t, "Xcb", d.Apply("abba"))
	assert.Equal(t, 3, d.Len())
}

func TestDictionaryCopyOnWrite(t *testing.T) {
	base := NewDictionary(map[string]string{"x": "y"})

	added := base.With("foo", "bar")
	assert.Equal(t, "y bar", added.Apply("x foo"))
	assert.Equal(t, "y foo", base.Apply("x foo"), "original is unchanged")

	updated := added.With("foo", "baz")
	assert.Equal(t, "baz", updated.Apply("foo"))

	removed := updated.Without("foo")
	assert.Equal(t, "foo", removed.Apply("foo"))
	assert.Same(t, removed, removed.Without("missing"))

	var empty *Dictionary
	assert.Equal(t, "text", empty.Apply("text"))
	assert.Equal(t, "b", empty.With("a", "b").Apply("a"))
}

func TestDictionaryFromEntries(t *testing.T) {
	d := DictionaryFromEntries([]st.DictionaryEntry{
		{GuildID: "g", Before: "w", After: "warai"},
	})
	assert.Equal(t, map[string]string{"w": "warai"}, d.Rules())
}
