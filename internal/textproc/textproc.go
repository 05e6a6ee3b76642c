// Package textproc turns a chat message into text the synthesizer can read.
package textproc

import (
	"regexp"
	"sort"
	"strings"

	"github.com/keshon/yomiage/internal/phonetic"
	st "github.com/keshon/yomiage/internal/storagetypes"
)

// Utterance is one message to be read aloud.
type Utterance struct {
	SpeakerID string
	Username  string
	Nickname  string
	Text      string
}

// DisplayName is the name prefixed to the text when names are read.
func (u Utterance) DisplayName(readNick bool) string {
	if readNick && u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

var asciiWord = regexp.MustCompile(`[a-zA-Z]+`)

// Preprocess applies name prefixing, dictionary substitution and phonetic
// translation, in that order. sameSpeaker reports whether u.SpeakerID equals
// the previously read speaker; the name is prefixed only when it is true.
func Preprocess(u Utterance, sameSpeaker bool, guild st.GuildVoicePreference, dict *Dictionary, table phonetic.Table) string {
	text := u.Text
	if guild.ReadName && sameSpeaker {
		text = u.DisplayName(guild.ReadNick) + text
	}

	text = dict.Apply(text)

	if len(table) == 0 {
		return text
	}
	return asciiWord.ReplaceAllStringFunc(text, func(word string) string {
		if v, ok := table[strings.ToUpper(word)]; ok {
			return v
		}
		return word
	})
}

// Dictionary is an immutable set of literal substitution rules for one guild.
// Rules are applied in a single left-to-right pass; at a given position the
// longest matching Before wins and replaced text is never rescanned.
type Dictionary struct {
	rules    map[string]string
	replacer *strings.Replacer
}

func NewDictionary(rules map[string]string) *Dictionary {
	d := &Dictionary{rules: make(map[string]string, len(rules))}
	for before, after := range rules {
		if before == "" {
			continue
		}
		d.rules[before] = after
	}
	d.compile()
	return d
}

// DictionaryFromEntries builds a Dictionary from stored entries.
func DictionaryFromEntries(entries []st.DictionaryEntry) *Dictionary {
	rules := make(map[string]string, len(entries))
	for _, e := range entries {
		rules[e.Before] = e.After
	}
	return NewDictionary(rules)
}

func (d *Dictionary) compile() {
	keys := make([]string, 0, len(d.rules))
	for k := range d.rules {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, d.rules[k])
	}
	d.replacer = strings.NewReplacer(pairs...)
}

// With returns a copy with before mapped to after.
func (d *Dictionary) With(before, after string) *Dictionary {
	rules := d.Rules()
	rules[before] = after
	return NewDictionary(rules)
}

// Without returns a copy with before removed. It returns d itself when the
// rule is absent.
func (d *Dictionary) Without(before string) *Dictionary {
	if d == nil {
		return nil
	}
	if _, ok := d.rules[before]; !ok {
		return d
	}
	rules := d.Rules()
	delete(rules, before)
	return NewDictionary(rules)
}

// Rules returns a copy of the rule mapping.
func (d *Dictionary) Rules() map[string]string {
	out := map[string]string{}
	if d == nil {
		return out
	}
	for k, v := range d.rules {
		out[k] = v
	}
	return out
}

func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rules)
}

func (d *Dictionary) Apply(text string) string {
	if d == nil || len(d.rules) == 0 {
		return text
	}
	return d.replacer.Replace(text)
}
