package datadog

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/eamazon/datawarp-v3.1/internal/metrics"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

// newTestBackend builds a backend with a fake submitter, a frozen clock,
// and a ticker that never fires; tests drive Flush explicitly.
func newTestBackend(t *testing.T, sub *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName: "test",
		now:     func() time.Time { return time.Unix(1700000000, 0) },
		newTicker: func(d time.Duration) *time.Ticker {
			return &time.Ticker{C: make(chan time.Time)}
		},
		submitter: sub,
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b
}

func metricNames(p datadogV2.MetricPayload) []string {
	names := make([]string, 0, len(p.Series))
	for _, s := range p.Series {
		names = append(names, s.Metric)
	}
	sort.Strings(names)
	return names
}

func TestFlush_NothingBufferedSubmitsNothing(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if sub.count() != 0 {
		t.Fatalf("expected no submissions, got %d", sub.count())
	}
}

func TestFlush_SubmitsAndResets(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter(metrics.SheetsTotal, 1, metrics.Labels{"status": "loaded"})
	b.IncCounter(metrics.SheetsTotal, 1, metrics.Labels{"status": "skipped"})
	b.IncCounter(metrics.RowsTotal, 120, metrics.Labels{"table": "workforce_stats"})
	b.IncCounter(metrics.DriftTotal, 1, metrics.Labels{"table": "workforce_stats"})
	b.ObserveHistogram(metrics.LoadDuration, 1.5, metrics.Labels{"status": "ok"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	payload, ok := sub.last()
	if !ok {
		t.Fatal("expected a submission")
	}

	names := metricNames(payload)
	wantSome := []string{
		"datawarp.load.duration_seconds.p50",
		"datawarp.mapping_drift.total",
		"datawarp.rows.total",
		"datawarp.sheets.total",
	}
	for _, w := range wantSome {
		found := false
		for _, n := range names {
			if n == w {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected metric %s in %v", w, names)
		}
	}

	// Buffers were reset: a second flush submits nothing.
	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if sub.count() != 1 {
		t.Fatalf("expected 1 submission total, got %d", sub.count())
	}
}

func TestFlush_ReturnsSubmitterError(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("intake down")}
	b := newTestBackend(t, sub)

	b.IncCounter(metrics.SheetsTotal, 1, metrics.Labels{"status": "loaded"})
	if err := b.Flush(); err == nil {
		t.Fatal("expected submission error")
	}

	// Buffers reset even on failure.
	if err := b.Flush(); err != nil {
		t.Fatalf("empty Flush after failure: %v", err)
	}
	if sub.count() != 1 {
		t.Fatalf("expected 1 submission, got %d", sub.count())
	}
}

func TestClose_PerformsFinalFlush(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter(metrics.RowsTotal, 5, metrics.Labels{"table": "t"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if sub.count() != 1 {
		t.Fatalf("expected final flush submission, got %d", sub.count())
	}
}

func TestBuildSeries_TagsCarryJobAndLabels(t *testing.T) {
	b := newTestBackend(t, &fakeSubmitter{})
	defer func() { _ = b.Close() }()

	s := snapshot{
		sheetCounts: map[string]float64{"loaded": 2},
	}
	series := b.buildSeries(s, 1700000000)
	if len(series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(series))
	}

	tags := series[0].Tags
	wantTags := map[string]bool{"job:test": false, "status:loaded": false}
	for _, tag := range tags {
		if _, ok := wantTags[tag]; ok {
			wantTags[tag] = true
		}
	}
	for tag, seen := range wantTags {
		if !seen {
			t.Fatalf("missing tag %s in %v", tag, tags)
		}
	}
}

func TestIncCounter_IgnoresNonPositiveAndUnknown(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter(metrics.SheetsTotal, 0, metrics.Labels{"status": "loaded"})
	b.IncCounter(metrics.SheetsTotal, -3, metrics.Labels{"status": "loaded"})
	b.IncCounter("some_other_metric", 1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if sub.count() != 0 {
		t.Fatalf("expected nothing buffered, got %d submissions", sub.count())
	}
}

func TestPercentileNearestRank(t *testing.T) {
	samples := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentileNearestRank(samples, 0.50); got != 6 {
		t.Fatalf("p50 = %v", got)
	}
	if got := percentileNearestRank(samples, 1.0); got != 10 {
		t.Fatalf("p100 = %v", got)
	}
	if got := percentileNearestRank(samples, 0); got != 1 {
		t.Fatalf("p0 = %v", got)
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Fatalf("empty = %v", got)
	}
}

func TestParseTagsCSV(t *testing.T) {
	got := ParseTagsCSV(" env:prod, service:dw ,, ")
	if len(got) != 2 || got[0] != "env:prod" || got[1] != "service:dw" {
		t.Fatalf("unexpected tags: %v", got)
	}
	if got := ParseTagsCSV(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}
