package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordResolutionCountsByOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordResolution(OutcomeHit)
	m.RecordResolution(OutcomeHit)
	m.RecordResolution(OutcomeMiss)

	if got := testutil.ToFloat64(m.Resolutions.WithLabelValues(OutcomeHit)); got != 2 {
		t.Fatalf("expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.Resolutions.WithLabelValues(OutcomeMiss)); got != 1 {
		t.Fatalf("expected 1 miss, got %v", got)
	}
}

func TestRecordFetchAddsBytes(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordFetch("s3", "success", 20*time.Millisecond, 128)
	m.RecordFetch("s3", "failure", time.Millisecond, 0)

	if got := testutil.ToFloat64(m.FetchedBytes.WithLabelValues("s3")); got != 128 {
		t.Fatalf("expected 128 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(m.Fetches.WithLabelValues("s3", "failure")); got != 1 {
		t.Fatalf("expected 1 failed fetch, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordResolution(OutcomeError)
	m.RecordFetch("s3", "success", time.Second, 1)
}

func TestRegisterStoreCommits(t *testing.T) {
	reg := prometheus.NewRegistry()
	var commits int64 = 3
	if err := RegisterStoreCommits(reg, func() int64 { return commits }); err != nil {
		t.Fatalf("register error: %v", err)
	}
	count, err := testutil.GatherAndCount(reg, "objcache_metadata_commits_total")
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected commit metric to be exported, got %d series", count)
	}
}
