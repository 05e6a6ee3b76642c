// Package prefcache memoizes user preferences and guild synthesis engines.
package prefcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/keshon/yomiage/internal/logging"
	"github.com/keshon/yomiage/internal/metrics"
	"github.com/keshon/yomiage/internal/storage"
	st "github.com/keshon/yomiage/internal/storagetypes"
	"github.com/keshon/yomiage/internal/synth"
	"github.com/keshon/yomiage/internal/tts"
)

// EngineFactory builds the engine for a guild from its stored state.
type EngineFactory func(guildID string, pref st.GuildVoicePreference, dict []st.DictionaryEntry) (*tts.Engine, error)

// NewEngineFactory returns an EngineFactory that gives every engine its own
// synthesizer and the shared pool.
func NewEngineFactory(newSynth synth.Factory, pool *tts.Pool, logger *log.Logger) EngineFactory {
	return func(guildID string, pref st.GuildVoicePreference, dict []st.DictionaryEntry) (*tts.Engine, error) {
		s, err := newSynth()
		if err != nil {
			return nil, fmt.Errorf("create synthesizer: %w", err)
		}
		return tts.NewEngine(tts.EngineConfig{
			GuildID:     guildID,
			Preference:  pref,
			Dictionary:  dict,
			Synthesizer: s,
			Pool:        pool,
			Logger:      logger,
		}), nil
	}
}

// Cache holds one UserVoicePreference per user and one engine per guild.
// Entries are created on first lookup and replaced whole by the Invalidate
// methods.
type Cache struct {
	store     storage.Store
	newEngine EngineFactory
	log       *log.Logger

	mu      sync.Mutex
	users   map[string]st.UserVoicePreference
	engines map[string]*tts.Engine

	loads singleflight.Group
}

func New(store storage.Store, newEngine EngineFactory, logger *log.Logger) *Cache {
	return &Cache{
		store:     store,
		newEngine: newEngine,
		log:       logging.For(logger, "prefcache"),
		users:     make(map[string]st.UserVoicePreference),
		engines:   make(map[string]*tts.Engine),
	}
}

// UserPreference returns the cached preference for userID, loading (and
// creating) it from the store on a miss. Store failures leave the cache
// untouched.
func (c *Cache) UserPreference(ctx context.Context, userID string) (st.UserVoicePreference, error) {
	c.mu.Lock()
	pref, ok := c.users[userID]
	c.mu.Unlock()
	if ok {
		return pref, nil
	}

	v, err, _ := c.loads.Do("user:"+userID, func() (any, error) {
		pref, err := c.store.FetchOrCreateUser(ctx, userID)
		metrics.RecordCacheLoad("user", err)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		// An update that arrived during the load wins.
		if cur, ok := c.users[userID]; ok {
			return cur, nil
		}
		c.users[userID] = pref
		return pref, nil
	})
	if err != nil {
		return st.UserVoicePreference{}, err
	}
	return v.(st.UserVoicePreference), nil
}

// GuildEngine returns the engine for guildID, building it from the stored
// preference and dictionary on a miss.
func (c *Cache) GuildEngine(ctx context.Context, guildID string) (*tts.Engine, error) {
	if e, ok := c.engine(guildID); ok {
		return e, nil
	}

	v, err, _ := c.loads.Do("guild:"+guildID, func() (any, error) {
		if e, ok := c.engine(guildID); ok {
			return e, nil
		}

		pref, err := c.store.FetchOrCreateGuild(ctx, guildID)
		if err == nil {
			var dict []st.DictionaryEntry
			dict, err = c.store.ListDictionary(ctx, guildID)
			if err == nil {
				metrics.RecordCacheLoad("guild", nil)
				return c.installEngine(guildID, pref, dict)
			}
		}
		metrics.RecordCacheLoad("guild", err)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*tts.Engine), nil
}

func (c *Cache) installEngine(guildID string, pref st.GuildVoicePreference, dict []st.DictionaryEntry) (*tts.Engine, error) {
	e, err := c.newEngine(guildID, pref, dict)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if cur, ok := c.engines[guildID]; ok {
		c.mu.Unlock()
		e.Close()
		return cur, nil
	}
	c.engines[guildID] = e
	c.mu.Unlock()

	c.log.Debug("Engine created", "guild", guildID, "dictionary", len(dict))
	return e, nil
}

func (c *Cache) engine(guildID string) (*tts.Engine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.engines[guildID]
	return e, ok
}

// InvalidateUser replaces the cached preference for pref.UserID.
func (c *Cache) InvalidateUser(pref st.UserVoicePreference) {
	c.mu.Lock()
	c.users[pref.UserID] = pref
	c.mu.Unlock()
}

// InvalidateGuild hands pref to the guild's engine if one exists. No engine is
// created.
func (c *Cache) InvalidateGuild(pref st.GuildVoicePreference) {
	if e, ok := c.engine(pref.GuildID); ok {
		e.UpdateGuildPreference(pref)
	}
}

// UpdateDictionary forwards a dictionary change to the guild's engine if one
// exists.
func (c *Cache) UpdateDictionary(op st.DictionaryOp, entry st.DictionaryEntry) {
	if e, ok := c.engine(entry.GuildID); ok {
		e.UpdateDictionary(op, entry)
	}
}

// Release drops the guild's engine and closes it once any in-flight
// generation finishes.
func (c *Cache) Release(guildID string) {
	c.mu.Lock()
	e, ok := c.engines[guildID]
	delete(c.engines, guildID)
	c.mu.Unlock()

	if !ok {
		return
	}
	if err := e.Close(); err != nil {
		c.log.Warn("Failed to close engine", "guild", guildID, "err", err)
	}
}

// Close releases every engine.
func (c *Cache) Close() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.engines))
	for id := range c.engines {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.Release(id)
	}
}
