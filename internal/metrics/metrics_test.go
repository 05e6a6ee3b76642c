package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPlayback(t *testing.T) {
	playbacksTotal.Reset()

	RecordPlayback("completed")
	RecordPlayback("completed")
	RecordPlayback("skipped")

	assert.Equal(t, 2.0, testutil.ToFloat64(playbacksTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(playbacksTotal.WithLabelValues("skipped")))
}

func TestSessionsGauge(t *testing.T) {
	sessionsActive.Set(0)

	SessionOpened()
	SessionOpened()
	SessionClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(sessionsActive))
}

func TestRecordSynthesisAndCacheLoads(t *testing.T) {
	synthesisDuration.Reset()
	cacheLoadsTotal.Reset()

	RecordSynthesis("success", 300*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(synthesisDuration))

	RecordCacheLoad("user", nil)
	RecordCacheLoad("user", errors.New("down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(cacheLoadsTotal.WithLabelValues("user", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cacheLoadsTotal.WithLabelValues("user", "error")))
}

func TestHandler(t *testing.T) {
	RecordPlayback("dropped")
	srv := httptest.NewServer(Handler(NewRegistry()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "yomiage_playbacks_total")

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
