// Package metrics holds the Prometheus collectors for the voice pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yomiage"

var (
	synthesisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Duration of speech synthesis calls in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"}, // status: success, error
	)

	playbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playbacks_total",
			Help:      "Total number of playback requests by outcome",
		},
		[]string{"outcome"}, // outcome: completed, skipped, dropped, failed
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of guilds currently connected to a voice channel",
		},
	)

	cacheLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preference_cache_loads_total",
			Help:      "Total number of preference cache misses loaded from the store",
		},
		[]string{"kind", "status"}, // kind: user, guild
	)

	allMetrics = []prometheus.Collector{
		synthesisDuration,
		playbacksTotal,
		sessionsActive,
		cacheLoadsTotal,
	}
)

func RecordSynthesis(status string, d time.Duration) {
	synthesisDuration.WithLabelValues(status).Observe(d.Seconds())
}

func RecordPlayback(outcome string) {
	playbacksTotal.WithLabelValues(outcome).Inc()
}

func SessionOpened() { sessionsActive.Inc() }
func SessionClosed() { sessionsActive.Dec() }

func RecordCacheLoad(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	cacheLoadsTotal.WithLabelValues(kind, status).Inc()
}

// NewRegistry returns a registry with the pipeline collectors plus the Go
// runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range allMetrics {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves /metrics and /health.
func Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// NewServer returns an HTTP server for the metrics handler on addr.
func NewServer(addr string, reg *prometheus.Registry) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           Handler(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
