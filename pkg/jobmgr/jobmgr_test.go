package jobmgr

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) report(s string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, s)
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func TestStartAsyncAndStop(t *testing.T) {
	rec := &recorder{}
	m := NewManager(rec.report)
	started := make(chan struct{})

	require.NoError(t, m.StartAsync(context.Background(), "pump", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	assert.Equal(t, []string{"pump"}, m.List())
	assert.Equal(t, "Running jobs: pump", m.Status())
	assert.Error(t, m.StartAsync(context.Background(), "pump", func(context.Context) error { return nil }))

	require.NoError(t, m.Stop("pump"))
	m.Wait()

	assert.Empty(t, m.List())
	assert.Equal(t, "No jobs are running.", m.Status())
	assert.Equal(t, []string{"running:pump", "done:pump"}, rec.all())
	assert.Error(t, m.Stop("pump"))
}

func TestFailedJobIsReported(t *testing.T) {
	rec := &recorder{}
	m := NewManager(rec.report)

	require.NoError(t, m.StartAsync(context.Background(), "metrics", func(context.Context) error {
		return errors.New("bind failed")
	}))
	m.Wait()

	assert.Contains(t, rec.all(), "error:metrics:bind failed")
	assert.Empty(t, m.List())
}

func TestStopAllCancelsEveryJob(t *testing.T) {
	m := NewManager(nil)
	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c"} {
		wg.Add(1)
		require.NoError(t, m.StartAsync(context.Background(), name, func(ctx context.Context) error {
			wg.Done()
			<-ctx.Done()
			return nil
		}))
	}
	wg.Wait()

	m.StopAll()
	m.Wait()

	assert.Empty(t, m.List())
}

func TestParentCancellationStopsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(nil)

	require.NoError(t, m.StartAsync(ctx, "pump", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}))
	cancel()
	m.Wait()

	assert.Empty(t, m.List())
}

func TestStartSync(t *testing.T) {
	m := NewManager(nil)
	ran := false

	err := m.StartSync(context.Background(), "once", func(ctx context.Context) error {
		ran = true
		return ctx.Err()
	})

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	report := LogReporter(log.New(&buf))

	report("running:pump")
	report("error:metrics:listen tcp: address in use")

	out := buf.String()
	assert.Contains(t, out, "Job started")
	assert.Contains(t, out, "job=pump")
	assert.Contains(t, out, "Job failed")
	assert.Contains(t, out, "address in use")
}
