// Package storagetest holds behaviour checks shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/yomiage/internal/storage"
	st "github.com/keshon/yomiage/internal/storagetypes"
)

// Run exercises s against the Store contract. s must be empty.
func Run(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("user created with defaults on first fetch", func(t *testing.T) {
		pref, err := s.FetchOrCreateUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", pref.UserID)
		assert.Equal(t, st.DefaultSpeed, pref.Speed)
		assert.Equal(t, st.DefaultIntonation, pref.Intonation)
	})

	t.Run("saved user is returned by fetch", func(t *testing.T) {
		pref := st.NewUserVoicePreference("u2")
		pref.Speed = 1.5
		pref.Volume = -3
		require.NoError(t, s.SaveUser(ctx, pref))

		got, err := s.FetchOrCreateUser(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, 1.5, got.Speed)
		assert.Equal(t, -3.0, got.Volume)
	})

	t.Run("guild created with defaults then saved", func(t *testing.T) {
		pref, err := s.FetchOrCreateGuild(ctx, "g1")
		require.NoError(t, err)
		assert.False(t, pref.ReadName)
		assert.False(t, pref.ReadBot)

		pref.ReadName = true
		pref.ReadNick = true
		require.NoError(t, s.SaveGuild(ctx, pref))

		got, err := s.FetchOrCreateGuild(ctx, "g1")
		require.NoError(t, err)
		assert.True(t, got.ReadName)
		assert.True(t, got.ReadNick)
		assert.False(t, got.ReadBot)
	})

	t.Run("dictionary upsert list remove", func(t *testing.T) {
		entries, err := s.ListDictionary(ctx, "g2")
		require.NoError(t, err)
		assert.Empty(t, entries)

		created, err := s.PutDictionary(ctx, st.DictionaryEntry{GuildID: "g2", Before: "lol", After: "laugh"})
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.PutDictionary(ctx, st.DictionaryEntry{GuildID: "g2", Before: "lol", After: "laugh out loud"})
		require.NoError(t, err)
		assert.False(t, created)

		_, err = s.PutDictionary(ctx, st.DictionaryEntry{GuildID: "g2", Before: "afk", After: "away"})
		require.NoError(t, err)

		entries, err = s.ListDictionary(ctx, "g2")
		require.NoError(t, err)
		assert.Equal(t, []st.DictionaryEntry{
			{GuildID: "g2", Before: "afk", After: "away"},
			{GuildID: "g2", Before: "lol", After: "laugh out loud"},
		}, entries)

		removed, err := s.RemoveDictionary(ctx, "g2", "afk")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = s.RemoveDictionary(ctx, "g2", "afk")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("dictionaries are guild scoped", func(t *testing.T) {
		_, err := s.PutDictionary(ctx, st.DictionaryEntry{GuildID: "g3", Before: "x", After: "y"})
		require.NoError(t, err)

		entries, err := s.ListDictionary(ctx, "g4")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
