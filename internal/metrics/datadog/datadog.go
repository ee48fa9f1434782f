// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// Flushing model: pipeline runs range from seconds (one CSV) to an hour
// (a backfill). Submitting only at exit would turn long runs into a single
// spike, so the backend buffers in memory, flushes on a ticker, and
// flushes one final time on Close.
//
// Concurrency model:
//   - pipeline goroutines call IncCounter/ObserveHistogram at any time
//   - Flush snapshots and resets buffers under a mutex, then submits
//     out-of-lock
//   - the flush loop calls Flush periodically; Close stops the loop
package datadog

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/eamazon/datawarp-v3.1/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to
	// "datawarp".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// Defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets these; tests use
	// them to avoid real clocks, tickers, and network submission.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal slice of the Datadog SDK the backend
// needs. The SDK only exposes a concrete *datadogV2.MetricsApi, which a
// unit test cannot stub without real HTTP; this interface can be faked.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	sheetCounts   map[string]float64   // status -> count
	rowCounts     map[string]float64   // table -> count
	driftCounts   map[string]float64   // table -> count
	loadDur       map[string][]float64 // status -> seconds
	downloadBytes map[string][]float64 // status -> bytes
}

// NewBackend constructs a Datadog backend using the official client.
// Credentials come from the standard DD_API_KEY / DD_APP_KEY environment;
// network errors surface from Flush, not from construction.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "datawarp"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 1+len(opts.Tags))
	baseTags = append(baseTags, "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),

		baseTags: baseTags,

		now:       nowFn,
		newTicker: newTicker,

		sheetCounts:   make(map[string]float64),
		rowCounts:     make(map[string]float64),
		driftCounts:   make(map[string]float64),
		loadDur:       make(map[string][]float64),
		downloadBytes: make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Call once;
// a second Close panics on the already-closed channel.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown metric names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.SheetsTotal:
		b.sheetCounts[orUnknown(labels["status"])] += delta
	case metrics.RowsTotal:
		b.rowCounts[orUnknown(labels["table"])] += delta
	case metrics.DriftTotal:
		b.driftCounts[orUnknown(labels["table"])] += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown metric names are
// ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.LoadDuration:
		status := orUnknown(labels["status"])
		b.loadDur[status] = append(b.loadDur[status], value)
	case metrics.DownloadBytes:
		status := orUnknown(labels["status"])
		b.downloadBytes[status] = append(b.downloadBytes[status], value)
	}
}

// snapshot is the buffered state detached from the backend so payload
// building and submission happen out of lock.
type snapshot struct {
	sheetCounts   map[string]float64
	rowCounts     map[string]float64
	driftCounts   map[string]float64
	loadDur       map[string][]float64
	downloadBytes map[string][]float64
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		sheetCounts:   b.sheetCounts,
		rowCounts:     b.rowCounts,
		driftCounts:   b.driftCounts,
		loadDur:       b.loadDur,
		downloadBytes: b.downloadBytes,
	}

	b.sheetCounts = make(map[string]float64)
	b.rowCounts = make(map[string]float64)
	b.driftCounts = make(map[string]float64)
	b.loadDur = make(map[string][]float64)
	b.downloadBytes = make(map[string][]float64)

	return s
}

func (s snapshot) isEmpty() bool {
	return len(s.sheetCounts) == 0 &&
		len(s.rowCounts) == 0 &&
		len(s.driftCounts) == 0 &&
		len(s.loadDur) == 0 &&
		len(s.downloadBytes) == 0
}

// Flush submits buffered metrics to Datadog and resets local buffers.
// Buffers reset even when submission fails, to keep the pipeline fast and
// never block future writes on a metrics outage.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	series := b.buildSeries(snap, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries is pure (no locks, no network, no clocks) so the naming and
// tagging contract can be unit tested directly.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.sheetCounts)+len(s.rowCounts)+16)

	for status, v := range s.sheetCounts {
		if v == 0 {
			continue
		}
		series = append(series, countSeries("datawarp.sheets.total", v,
			withTags(b.baseTags, "status:"+status), nowUnix))
	}
	for table, v := range s.rowCounts {
		if v == 0 {
			continue
		}
		series = append(series, countSeries("datawarp.rows.total", v,
			withTags(b.baseTags, "table:"+table), nowUnix))
	}
	for table, v := range s.driftCounts {
		if v == 0 {
			continue
		}
		series = append(series, countSeries("datawarp.mapping_drift.total", v,
			withTags(b.baseTags, "table:"+table), nowUnix))
	}

	for status, samples := range s.loadDur {
		addPercentiles(&series, withTags(b.baseTags, "status:"+status),
			"datawarp.load.duration_seconds", samples, nowUnix)
	}
	for status, samples := range s.downloadBytes {
		addPercentiles(&series, withTags(b.baseTags, "status:"+status),
			"datawarp.download_bytes", samples, nowUnix)
	}

	return series
}

// addPercentiles appends a fixed set of percentile gauges for a sample
// set. Sorts a copy; does not mutate input.
func addPercentiles(series *[]datadogV2.MetricSeries, tags []string, metricPrefix string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series, gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix))
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:dw".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
