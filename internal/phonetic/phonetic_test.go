package phonetic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONWithComments(t *testing.T) {
	src := `{
  // chat slang
  "BRB": "be right back", // trailing
  "lol": "laugh out loud",
  "URL": "http://example.com"
}`
	table, err := ParseJSON([]byte(src))
	require.NoError(t, err)

	assert.Equal(t, "be right back", table["BRB"])
	assert.Equal(t, "laugh out loud", table["LOL"], "keys are uppercased")
	assert.Equal(t, "http://example.com", table["URL"])
	assert.Len(t, table, 3)
}

func TestParseJSONInvalid(t *testing.T) {
	_, err := ParseJSON([]byte(`{"a": 1`))
	assert.Error(t, err)
}

func TestLoadPicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()

	yml := filepath.Join(dir, "dic.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("brb: be right back\nGG: good game\n"), 0o644))
	table, err := Load(yml)
	require.NoError(t, err)
	assert.Equal(t, Table{"BRB": "be right back", "GG": "good game"}, table)

	js := filepath.Join(dir, "dic.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"afk": "away from keyboard"}`), 0o644))
	table, err = Load(js)
	require.NoError(t, err)
	got, ok := table.Lookup("Afk")
	assert.True(t, ok)
	assert.Equal(t, "away from keyboard", got)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
