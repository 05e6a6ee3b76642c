// Package synthtest provides an in-memory Synthesizer for tests.
package synthtest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/keshon/yomiage/internal/synth"
)

// Params is the voice parameter set in effect for one Generate call.
type Params struct {
	Speed, Tone, Intonation, Volume float64
}

// Fake returns one sample per input byte. Block, when set, is received from
// before Generate returns.
type Fake struct {
	Err   error
	Block chan struct{}

	mu      sync.Mutex
	params  Params
	texts   []string
	calls   []Params
	closed  bool
	active  atomic.Int32
	maxSeen atomic.Int32
}

var _ synth.Synthesizer = (*Fake)(nil)

func (f *Fake) SetSpeed(v float64)      { f.mu.Lock(); f.params.Speed = v; f.mu.Unlock() }
func (f *Fake) SetTone(v float64)       { f.mu.Lock(); f.params.Tone = v; f.mu.Unlock() }
func (f *Fake) SetIntonation(v float64) { f.mu.Lock(); f.params.Intonation = v; f.mu.Unlock() }
func (f *Fake) SetVolume(v float64)     { f.mu.Lock(); f.params.Volume = v; f.mu.Unlock() }

func (f *Fake) Generate(ctx context.Context, text string) ([]int16, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.calls = append(f.calls, f.params)
	f.mu.Unlock()

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}

	pcm := make([]int16, len(text))
	for i := range pcm {
		pcm[i] = int16(text[i])
	}
	return pcm, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func (f *Fake) Calls() []Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Params(nil), f.calls...)
}

func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// MaxConcurrent is the highest number of Generate calls seen running at once.
func (f *Fake) MaxConcurrent() int {
	return int(f.maxSeen.Load())
}

// Shared counts concurrent Generate calls across several fakes.
type Shared struct {
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (s *Shared) Enter() {
	n := s.active.Add(1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			return
		}
	}
}

func (s *Shared) Exit() { s.active.Add(-1) }

func (s *Shared) Max() int { return int(s.maxSeen.Load()) }

// Counted wraps a Synthesizer and reports its Generate calls to a Shared
// counter.
type Counted struct {
	synth.Synthesizer
	Shared *Shared
}

func (c Counted) Generate(ctx context.Context, text string) ([]int16, error) {
	c.Shared.Enter()
	defer c.Shared.Exit()
	return c.Synthesizer.Generate(ctx, text)
}

// Factory returns a synth.Factory handing out new Fakes and records them.
type Factory struct {
	mu    sync.Mutex
	Fakes []*Fake
	Err   error
}

func (f *Factory) New() (synth.Synthesizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	fk := &Fake{}
	f.Fakes = append(f.Fakes, fk)
	return fk, nil
}

func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Fakes)
}
