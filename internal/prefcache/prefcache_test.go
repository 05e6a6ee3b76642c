package prefcache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/yomiage/datastore"
	"github.com/keshon/yomiage/internal/storage"
	st "github.com/keshon/yomiage/internal/storagetypes"
	"github.com/keshon/yomiage/internal/synth/synthtest"
	"github.com/keshon/yomiage/internal/tts"
)

// countingStore counts fetches and can be switched to fail or to stall.
type countingStore struct {
	storage.Store
	userFetches  atomic.Int32
	guildFetches atomic.Int32
	fail         atomic.Bool
	gate         chan struct{}
}

var errDown = errors.New("disk gone")

func (s *countingStore) FetchOrCreateUser(ctx context.Context, id string) (st.UserVoicePreference, error) {
	s.userFetches.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.fail.Load() {
		return st.UserVoicePreference{}, storage.Unavailable("fetch user preference", errDown)
	}
	return s.Store.FetchOrCreateUser(ctx, id)
}

func (s *countingStore) FetchOrCreateGuild(ctx context.Context, id string) (st.GuildVoicePreference, error) {
	s.guildFetches.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.fail.Load() {
		return st.GuildVoicePreference{}, storage.Unavailable("fetch guild preference", errDown)
	}
	return s.Store.FetchOrCreateGuild(ctx, id)
}

func newStore(t *testing.T) *countingStore {
	t.Helper()
	ds, err := datastore.NewWithConfig(&datastore.Config{FilePath: filepath.Join(t.TempDir(), "ds.json")})
	require.NoError(t, err)
	s := storage.NewWithDataStore(ds)
	t.Cleanup(func() { s.Close() })
	return &countingStore{Store: s}
}

func newCache(store storage.Store, factory *synthtest.Factory) *Cache {
	return New(store, NewEngineFactory(factory.New, tts.NewPool(2), nil), nil)
}

func TestUserPreferenceCreatesOnceAndCaches(t *testing.T) {
	store := newStore(t)
	c := newCache(store, &synthtest.Factory{})
	ctx := context.Background()

	pref, err := c.UserPreference(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, st.DefaultSpeed, pref.Speed)

	_, err = c.UserPreference(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, store.userFetches.Load())
}

func TestInvalidateUserReplacesWithoutRefetch(t *testing.T) {
	store := newStore(t)
	c := newCache(store, &synthtest.Factory{})
	ctx := context.Background()

	_, err := c.UserPreference(ctx, "u1")
	require.NoError(t, err)

	updated := st.UserVoicePreference{UserID: "u1", Speed: 1.7, Intonation: 1}
	c.InvalidateUser(updated)

	got, err := c.UserPreference(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	assert.EqualValues(t, 1, store.userFetches.Load())
}

func TestStoreFailureLeavesCacheUntouched(t *testing.T) {
	store := newStore(t)
	store.fail.Store(true)
	factory := &synthtest.Factory{}
	c := newCache(store, factory)
	ctx := context.Background()

	_, err := c.UserPreference(ctx, "u1")
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	_, err = c.GuildEngine(ctx, "g1")
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.Zero(t, factory.Count())

	store.fail.Store(false)
	_, err = c.UserPreference(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.userFetches.Load())
}

func TestGuildEngineConcurrentMissesLoadOnce(t *testing.T) {
	store := newStore(t)
	store.gate = make(chan struct{})
	factory := &synthtest.Factory{}
	c := newCache(store, factory)

	var wg sync.WaitGroup
	engines := make([]*tts.Engine, 8)
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := c.GuildEngine(context.Background(), "g1")
			assert.NoError(t, err)
			engines[i] = e
		}(i)
	}

	time.Sleep(30 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	for _, e := range engines[1:] {
		assert.Same(t, engines[0], e)
	}
	assert.Equal(t, 1, factory.Count())
}

func TestGuildEngineLoadsDictionary(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	_, err := store.PutDictionary(ctx, st.DictionaryEntry{GuildID: "g1", Before: "w", After: "warai"})
	require.NoError(t, err)

	c := newCache(store, &synthtest.Factory{})
	e, err := c.GuildEngine(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"w": "warai"}, e.Dictionary().Rules())
	assert.Equal(t, "g1", e.GuildID())
}

func TestInvalidateGuildOnlyTouchesExistingEngine(t *testing.T) {
	store := newStore(t)
	factory := &synthtest.Factory{}
	c := newCache(store, factory)
	ctx := context.Background()

	c.InvalidateGuild(st.GuildVoicePreference{GuildID: "g1", ReadName: true})
	c.UpdateDictionary(st.DictionaryAdd, st.DictionaryEntry{GuildID: "g1", Before: "a", After: "b"})
	assert.Zero(t, factory.Count())

	e, err := c.GuildEngine(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, e.Preference().ReadName, "earlier update does not create state")

	c.InvalidateGuild(st.GuildVoicePreference{GuildID: "g1", ReadName: true})
	assert.True(t, e.Preference().ReadName)

	c.UpdateDictionary(st.DictionaryAdd, st.DictionaryEntry{GuildID: "g1", Before: "a", After: "b"})
	assert.Equal(t, 1, e.Dictionary().Len())
}

func TestReleaseClosesEngine(t *testing.T) {
	store := newStore(t)
	factory := &synthtest.Factory{}
	c := newCache(store, factory)
	ctx := context.Background()

	first, err := c.GuildEngine(ctx, "g1")
	require.NoError(t, err)

	c.Release("g1")
	c.Release("g1")
	assert.True(t, factory.Fakes[0].Closed())

	second, err := c.GuildEngine(ctx, "g1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, factory.Count())

	c.Close()
	assert.True(t, factory.Fakes[1].Closed())
}

func TestSynthesizerFactoryError(t *testing.T) {
	store := newStore(t)
	c := newCache(store, &synthtest.Factory{Err: errors.New("no binary")})

	_, err := c.GuildEngine(context.Background(), "g1")
	assert.ErrorContains(t, err, "no binary")
}
