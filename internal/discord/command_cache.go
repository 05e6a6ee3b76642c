package discord

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// commandCache remembers, per guild, the hash of every registered command so
// unchanged commands are not re-sent to Discord.
type commandCache struct {
	dir string
}

// guildCachePath returns the path to the guild command cache
func (c commandCache) guildCachePath(guildID string) string {
	return filepath.Join(c.dir, guildID+".json")
}

// load returns an empty map when the cache is missing or unreadable.
func (c commandCache) load(guildID string) map[string]string {
	data := make(map[string]string)
	file, err := os.ReadFile(c.guildCachePath(guildID))
	if err == nil {
		_ = json.Unmarshal(file, &data)
	}
	return data
}

func (c commandCache) save(guildID string, hashes map[string]string) error {
	path := c.guildCachePath(guildID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create command cache dir: %w", err)
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
