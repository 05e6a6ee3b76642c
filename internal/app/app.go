// Package app wires the voice pipeline from configuration. Both the Discord
// bot and the CLI build their services here.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/keshon/yomiage/internal/audiotag"
	"github.com/keshon/yomiage/internal/config"
	"github.com/keshon/yomiage/internal/events"
	"github.com/keshon/yomiage/internal/logging"
	"github.com/keshon/yomiage/internal/phonetic"
	"github.com/keshon/yomiage/internal/playback"
	"github.com/keshon/yomiage/internal/prefcache"
	"github.com/keshon/yomiage/internal/reading"
	"github.com/keshon/yomiage/internal/settings"
	"github.com/keshon/yomiage/internal/storage"
	"github.com/keshon/yomiage/internal/storage/sqlite"
	"github.com/keshon/yomiage/internal/synth"
	"github.com/keshon/yomiage/internal/tts"
)

const eventBuffer = 64

// OpenStore opens the store selected by STORAGE_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case "sqlite":
		return sqlite.Open(ctx, cfg.StoragePath)
	case "json":
		return storage.New(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// LoadPhonetic reads the phonetic table. A missing file yields an empty
// table.
func LoadPhonetic(path string, logger *log.Logger) (phonetic.Table, error) {
	table, err := phonetic.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		logging.For(logger, "app").Warn("Phonetic table not found, continuing without it", "path", path)
		return phonetic.Table{}, nil
	}
	return table, err
}

// SynthFactory returns the open_jtalk factory described by cfg.
func SynthFactory(cfg *config.Config) synth.Factory {
	return synth.NewOpenJTalkFactory(synth.OpenJTalkConfig{
		Binary:  cfg.OpenJTalkBin,
		DictDir: cfg.OpenJTalkDictDir,
		Voice:   cfg.OpenJTalkVoice,
	})
}

type Options struct {
	Config    *config.Config
	Store     storage.Store
	Transport playback.Transport
	Synth     synth.Factory
	Phonetic  phonetic.Table
	Logger    *log.Logger
}

// Services is the assembled pipeline.
type Services struct {
	Bus         *events.Bus
	Pool        *tts.Pool
	Cache       *prefcache.Cache
	Coordinator *playback.Coordinator
	Reader      *reading.Reader
	Settings    *settings.Service
	Tags        *audiotag.Library

	updates <-chan events.Event
	log     *log.Logger
}

func New(o Options) *Services {
	cfg := o.Config
	bus := events.NewBus()
	pool := tts.NewPool(cfg.SynthWorkers)
	cache := prefcache.New(o.Store, prefcache.NewEngineFactory(o.Synth, pool, o.Logger), o.Logger)
	coord := playback.New(playback.Config{
		Transport:      o.Transport,
		Engines:        cache,
		ConnectTimeout: cfg.ConnectTimeout,
		Logger:         o.Logger,
	})

	return &Services{
		Bus:         bus,
		Pool:        pool,
		Cache:       cache,
		Coordinator: coord,
		Reader: reading.New(reading.Config{
			Coordinator:   coord,
			Cache:         cache,
			Phonetic:      o.Phonetic,
			CommandPrefix: cfg.CommandPrefix,
			Logger:        o.Logger,
		}),
		Settings: settings.New(o.Store, bus),
		Tags:     audiotag.New(cfg.TagsDir),
		// Subscribed before anything can publish.
		updates: bus.Subscribe(eventBuffer),
		log:     logging.For(o.Logger, "app"),
	}
}

// RunEventPump applies update events to the cache until ctx is done or the
// bus closes.
func (s *Services) RunEventPump(ctx context.Context) error {
	return events.Pump(ctx, s.updates, s.Reader)
}

// Shutdown leaves every guild, then stops the bus and closes all engines.
func (s *Services) Shutdown(ctx context.Context) {
	s.Coordinator.Shutdown(ctx)
	s.Bus.Close()
	s.Cache.Close()
	s.log.Info("Voice pipeline stopped")
}
