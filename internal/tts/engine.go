// Package tts owns the per-guild synthesis engines.
package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/keshon/yomiage/internal/logging"
	"github.com/keshon/yomiage/internal/metrics"
	"github.com/keshon/yomiage/internal/phonetic"
	st "github.com/keshon/yomiage/internal/storagetypes"
	"github.com/keshon/yomiage/internal/synth"
	"github.com/keshon/yomiage/internal/textproc"
)

var (
	ErrSynthesis    = errors.New("synthesis failed")
	ErrEngineClosed = errors.New("engine closed")
)

// SynthesisError reports a synthesizer failure for one guild. It matches
// ErrSynthesis with errors.Is.
type SynthesisError struct {
	GuildID string
	Err     error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("guild %s: %v: %v", e.GuildID, ErrSynthesis, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

func (e *SynthesisError) Is(target error) bool { return target == ErrSynthesis }

// Engine wraps one guild's synthesizer. The synthesizer is used by one call
// at a time; parameter changes and generation share the same lock.
type Engine struct {
	guildID string
	synth   synth.Synthesizer
	pool    *Pool
	log     *log.Logger

	lock   *semaphore.Weighted
	closed bool // guarded by lock

	pref        atomic.Pointer[st.GuildVoicePreference]
	dict        atomic.Pointer[textproc.Dictionary]
	dictMu      sync.Mutex
	lastSpeaker atomic.Pointer[string]
}

// EngineConfig carries the collaborators for NewEngine.
type EngineConfig struct {
	GuildID     string
	Preference  st.GuildVoicePreference
	Dictionary  []st.DictionaryEntry
	Synthesizer synth.Synthesizer
	Pool        *Pool
	Logger      *log.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Pool == nil {
		cfg.Pool = NewPool(1)
	}
	e := &Engine{
		guildID: cfg.GuildID,
		synth:   cfg.Synthesizer,
		pool:    cfg.Pool,
		log:     logging.For(cfg.Logger, "tts").With("guild", cfg.GuildID),
		lock:    semaphore.NewWeighted(1),
	}
	pref := cfg.Preference
	e.pref.Store(&pref)
	e.dict.Store(textproc.DictionaryFromEntries(cfg.Dictionary))
	return e
}

func (e *Engine) GuildID() string { return e.guildID }

// Preference returns the guild preference currently in effect.
func (e *Engine) Preference() st.GuildVoicePreference {
	return *e.pref.Load()
}

func (e *Engine) Dictionary() *textproc.Dictionary {
	return e.dict.Load()
}

// UpdateGuildPreference replaces the preference. A generation already in
// progress keeps the value it started with.
func (e *Engine) UpdateGuildPreference(pref st.GuildVoicePreference) {
	e.pref.Store(&pref)
}

// UpdateDictionary applies op to the guild dictionary. Removing an absent
// rule is a no-op.
func (e *Engine) UpdateDictionary(op st.DictionaryOp, entry st.DictionaryEntry) {
	e.dictMu.Lock()
	defer e.dictMu.Unlock()

	cur := e.dict.Load()
	switch op {
	case st.DictionaryAdd, st.DictionaryUpdate:
		e.dict.Store(cur.With(entry.Before, entry.After))
	case st.DictionaryRemove:
		e.dict.Store(cur.Without(entry.Before))
	default:
		e.log.Warn("Unknown dictionary op", "op", op)
	}
}

// Speak preprocesses u for this guild and synthesizes it with the speaker's
// voice parameters. The speaker only becomes the previous speaker once the
// synthesis succeeds.
func (e *Engine) Speak(ctx context.Context, u textproc.Utterance, user st.UserVoicePreference, table phonetic.Table) (*Audio, error) {
	if err := e.lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.lock.Release(1)

	prev := e.lastSpeaker.Load()
	same := prev != nil && *prev == u.SpeakerID

	text := textproc.Preprocess(u, same, e.Preference(), e.Dictionary(), table)
	audio, err := e.generateLocked(ctx, text, user)
	if err != nil {
		return nil, err
	}
	speaker := u.SpeakerID
	e.lastSpeaker.Store(&speaker)
	return audio, nil
}

// Generate synthesizes text and returns it as transport-ready PCM.
func (e *Engine) Generate(ctx context.Context, text string, user st.UserVoicePreference) (*Audio, error) {
	if err := e.lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.lock.Release(1)
	return e.generateLocked(ctx, text, user)
}

// generateLocked runs the synthesizer. The engine lock must be held.
func (e *Engine) generateLocked(ctx context.Context, text string, user st.UserVoicePreference) (*Audio, error) {
	if e.closed {
		return nil, ErrEngineClosed
	}

	var pcm []int16
	start := time.Now()
	err := e.pool.Do(ctx, func() error {
		e.synth.SetSpeed(user.Speed)
		e.synth.SetTone(user.Tone)
		e.synth.SetIntonation(user.Intonation)
		e.synth.SetVolume(user.Volume)

		var err error
		pcm, err = e.synth.Generate(ctx, text)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		metrics.RecordSynthesis("error", time.Since(start))
		e.log.Error("Synthesis failed", "err", err)
		return nil, &SynthesisError{GuildID: e.guildID, Err: err}
	}
	metrics.RecordSynthesis("success", time.Since(start))

	return NewAudio(synth.StereoBytes(pcm)), nil
}

// Close waits for an in-flight generation and closes the synthesizer.
// Later calls to Generate return ErrEngineClosed.
func (e *Engine) Close() error {
	if err := e.lock.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer e.lock.Release(1)

	if e.closed {
		return nil
	}
	e.closed = true
	return e.synth.Close()
}
