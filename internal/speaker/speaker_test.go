package speaker

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/yomiage/internal/logging"
	"github.com/keshon/yomiage/internal/playback"
)

// fakePlayer drains its reader in the background, like oto does.
type fakePlayer struct {
	r      io.Reader
	hold   chan struct{}
	mu     sync.Mutex
	done   bool
	paused bool
	closed bool
	read   int64
}

func (p *fakePlayer) Play() {
	go func() {
		if p.hold != nil {
			<-p.hold
		}
		n, _ := io.Copy(io.Discard, p.r)
		p.mu.Lock()
		p.read = n
		p.done = true
		p.mu.Unlock()
	}()
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

func (p *fakePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.done && !p.paused
}

func (p *fakePlayer) Err() error { return nil }

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

type fakeDevice struct {
	hold    chan struct{}
	mu      sync.Mutex
	players []*fakePlayer
}

func (d *fakeDevice) NewPlayer(r io.Reader) player {
	p := &fakePlayer{r: r, hold: d.hold}
	d.mu.Lock()
	d.players = append(d.players, p)
	d.mu.Unlock()
	return p
}

func TestPlayRunsToCompletion(t *testing.T) {
	dev := &fakeDevice{}
	c, err := NewTransport(dev, logging.Discard()).Connect(context.Background(), "g1", "local")
	require.NoError(t, err)

	done := make(chan error, 1)
	require.NoError(t, c.Play(bytes.NewReader(make([]byte, 4096)), func(err error) { done <- err }))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("playback never finished")
	}
	require.Len(t, dev.players, 1)
	assert.True(t, dev.players[0].closed)
	assert.Equal(t, int64(4096), dev.players[0].read)
}

func TestStopEndsPlayback(t *testing.T) {
	dev := &fakeDevice{hold: make(chan struct{})}
	defer close(dev.hold)
	c, err := NewTransport(dev, nil).Connect(context.Background(), "g1", "local")
	require.NoError(t, err)

	done := make(chan error, 1)
	require.NoError(t, c.Play(bytes.NewReader(make([]byte, 16)), func(err error) { done <- err }))
	assert.ErrorIs(t, c.Play(bytes.NewReader(nil), func(error) {}), ErrBusy)

	c.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop did not end playback")
	}
	assert.True(t, dev.players[0].paused)
}

func TestDisconnectRejectsPlay(t *testing.T) {
	c, err := NewTransport(&fakeDevice{}, nil).Connect(context.Background(), "g1", "local")
	require.NoError(t, err)

	require.NoError(t, c.Disconnect(true))
	assert.Error(t, c.Play(bytes.NewReader(nil), func(error) {}))
}

func TestConnectHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTransport(&fakeDevice{}, nil).Connect(ctx, "g1", "local")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCoordinatorOverSpeaker(t *testing.T) {
	coord := playback.New(playback.Config{Transport: NewTransport(&fakeDevice{}, nil)})
	ctx := context.Background()

	_, err := coord.Join(ctx, "local", "cli", "speaker", "speaker")
	require.NoError(t, err)

	outcome, err := coord.Enqueue(ctx, "local", playback.Request{Audio: bytes.NewReader(make([]byte, 64)), Source: "text"})
	require.NoError(t, err)
	assert.Equal(t, playback.OutcomeCompleted, outcome)

	require.NoError(t, coord.Leave(ctx, "local"))
}
