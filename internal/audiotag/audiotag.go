// Package audiotag serves short named WAV clips that users can play into the
// voice channel. Clips live under <dir>/shared and <dir>/<guildID>; a guild
// clip hides a shared clip of the same name.
package audiotag

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/keshon/yomiage/internal/synth"
	"github.com/keshon/yomiage/internal/tts"
)

const (
	PageSize  = 20
	sharedDir = "shared"
)

var ErrNotFound = errors.New("audio tag not found")

type Tag struct {
	Name  string
	Path  string
	Guild bool
}

type Library struct {
	dir string
}

func New(dir string) *Library {
	return &Library{dir: dir}
}

func scan(dir string, guild bool, into map[string]Tag) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read tags dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		into[name] = Tag{Name: name, Path: filepath.Join(dir, e.Name()), Guild: guild}
	}
	return nil
}

// List returns the tags available to guildID sorted by name.
func (l *Library) List(guildID string) ([]Tag, error) {
	found := map[string]Tag{}
	if err := scan(filepath.Join(l.dir, sharedDir), false, found); err != nil {
		return nil, err
	}
	if guildID != "" && guildID != sharedDir {
		if err := scan(filepath.Join(l.dir, guildID), true, found); err != nil {
			return nil, err
		}
	}

	tags := make([]Tag, 0, len(found))
	for _, t := range found {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

// Page returns page (zero based, clamped to range) of the guild's tags and
// the total page count, which is at least 1.
func (l *Library) Page(guildID string, page int) ([]Tag, int, error) {
	tags, err := l.List(guildID)
	if err != nil {
		return nil, 0, err
	}
	pages := (len(tags) + PageSize - 1) / PageSize
	if pages == 0 {
		pages = 1
	}
	page = max(0, min(page, pages-1))

	start := page * PageSize
	end := min(start+PageSize, len(tags))
	return tags[start:end], pages, nil
}

func (l *Library) Find(guildID, name string) (Tag, error) {
	tags, err := l.List(guildID)
	if err != nil {
		return Tag{}, err
	}
	for _, t := range tags {
		if t.Name == name {
			return t, nil
		}
	}
	return Tag{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Load decodes the named tag into transport-ready audio.
func (l *Library) Load(guildID, name string) (*tts.Audio, error) {
	tag, err := l.Find(guildID, name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(tag.Path)
	if err != nil {
		return nil, fmt.Errorf("open tag %s: %w", name, err)
	}
	defer f.Close()

	clip, err := synth.DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("tag %s: %w", name, err)
	}
	return tts.NewAudio(clip.TransportPCM()), nil
}
