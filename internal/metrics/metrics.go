// Package metrics exposes Prometheus collectors for cache resolutions and
// remote fetches. A nil *Metrics is a valid no-op so components can be built
// without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resolution outcomes used as the "outcome" label.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Metrics 汇总解析与回源相关的指标。
type Metrics struct {
	// Resolutions counts resolve calls by outcome.
	// Labels: outcome=[hit, miss, error]
	Resolutions *prometheus.CounterVec

	// Fetches counts remote fetches by scheme and result.
	// Labels: scheme, result=[success, not_found, failure]
	Fetches *prometheus.CounterVec

	// FetchedBytes counts bytes written to staging files by scheme.
	FetchedBytes *prometheus.CounterVec

	// FetchDuration tracks remote fetch latency by scheme.
	FetchDuration *prometheus.HistogramVec
}

// New 创建并注册指标，registerer 为空时使用 prometheus.DefaultRegisterer。
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objcache_resolutions_total",
				Help: "Total resolve requests by outcome",
			},
			[]string{"outcome"},
		),
		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objcache_fetches_total",
				Help: "Total remote fetches by scheme and result",
			},
			[]string{"scheme", "result"},
		),
		FetchedBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objcache_fetched_bytes_total",
				Help: "Total bytes written to staging files by scheme",
			},
			[]string{"scheme"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "objcache_fetch_duration_seconds",
				Help:    "Remote fetch duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"scheme"},
		),
	}

	registerer.MustRegister(
		m.Resolutions,
		m.Fetches,
		m.FetchedBytes,
		m.FetchDuration,
	)
	return m
}

// RegisterStoreCommits 以 CounterFunc 暴露元数据库的提交次数。
func RegisterStoreCommits(registerer prometheus.Registerer, commits func() int64) error {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return registerer.Register(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "objcache_metadata_commits_total",
			Help: "Total committed metadata transactions",
		},
		func() float64 { return float64(commits()) },
	))
}

// RecordResolution 记录一次解析结果。
func (m *Metrics) RecordResolution(outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

// RecordFetch 记录一次回源的结果、耗时与写入字节数。
func (m *Metrics) RecordFetch(scheme, result string, elapsed time.Duration, written int64) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(scheme, result).Inc()
	m.FetchDuration.WithLabelValues(scheme).Observe(elapsed.Seconds())
	if written > 0 {
		m.FetchedBytes.WithLabelValues(scheme).Add(float64(written))
	}
}
