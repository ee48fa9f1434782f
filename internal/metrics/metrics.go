// Package metrics defines the minimal metrics surface the pipeline emits
// to. Core code depends only on Backend; concrete backends (Datadog,
// no-op) live in subpackages or here.
package metrics

// Labels are low-cardinality metric dimensions.
type Labels map[string]string

// Metric names. Backends are free to ignore names they do not understand.
const (
	// SheetsTotal counts processed sheets. Labels: status
	// (loaded|skipped|failed).
	SheetsTotal = "dw_sheets_total"
	// RowsTotal counts rows written. Labels: table.
	RowsTotal = "dw_rows_total"
	// DriftTotal counts mapping drift events. Labels: table.
	DriftTotal = "dw_mapping_drift_total"
	// LoadDuration observes seconds per table load. Labels: status.
	LoadDuration = "dw_load_duration_seconds"
	// DownloadBytes observes bytes per fetched source file. Labels:
	// status.
	DownloadBytes = "dw_download_bytes"
)

// Backend receives metric writes from the pipeline.
//
// Implementations must be safe for concurrent use; the runner records
// metrics from whatever goroutine a load happens to run on.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush submits buffered metrics now.
	Flush() error
	// Close flushes once more and releases resources. Call once.
	Close() error
}

// Nop is the default backend: it discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }
func (Nop) Close() error                             { return nil }

var _ Backend = Nop{}
