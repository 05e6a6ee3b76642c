// Package phonetic loads the static table that maps uppercase ASCII words to
// a pronunciation the synthesizer can read.
package phonetic

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table maps an uppercase token to its pronunciation. It is immutable after
// Load.
type Table map[string]string

var lineComment = regexp.MustCompile(`(?m)^\s*//.*$|\s+//[^"\n]*$`)

// Load reads a table from path. Files ending in .yaml or .yml are parsed as
// YAML; anything else is JSON that may carry // line comments.
func Load(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phonetic table: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON parses a JSON object, ignoring // comments that start a line or
// trail a value.
func ParseJSON(data []byte) (Table, error) {
	raw := map[string]string{}
	if err := json.Unmarshal(lineComment.ReplaceAll(data, nil), &raw); err != nil {
		return nil, fmt.Errorf("parse phonetic table: %w", err)
	}
	return normalize(raw), nil
}

func ParseYAML(data []byte) (Table, error) {
	raw := map[string]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse phonetic table: %w", err)
	}
	return normalize(raw), nil
}

func normalize(raw map[string]string) Table {
	t := make(Table, len(raw))
	for k, v := range raw {
		t[strings.ToUpper(k)] = v
	}
	return t
}

// Lookup returns the pronunciation for word, matched case-insensitively.
func (t Table) Lookup(word string) (string, bool) {
	v, ok := t[strings.ToUpper(word)]
	return v, ok
}
