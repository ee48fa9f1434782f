package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/eamazon/datawarp-v3.1/internal/enrich"
	"github.com/eamazon/datawarp-v3.1/internal/grain"
	"github.com/eamazon/datawarp-v3.1/internal/infer"
	"github.com/eamazon/datawarp-v3.1/internal/load"
	"github.com/eamazon/datawarp-v3.1/internal/mapping"
	"github.com/eamazon/datawarp-v3.1/internal/metrics"
	"github.com/eamazon/datawarp-v3.1/internal/period"
	"github.com/eamazon/datawarp-v3.1/internal/sheet"
	"github.com/eamazon/datawarp-v3.1/internal/storage"
)

// Outcome summarises what happened to one sheet of one source file.
type Outcome struct {
	Sheet  string
	Table  string
	Status string // loaded | skipped | failed
	Reason string // populated for skips
	Rows   int64
	Grain  grain.Result
	Drift  mapping.DriftReport
	Err    error
}

// Runner processes source files for one pipeline.
//
// Sheets are processed independently: one broken sheet fails its own
// outcome and the run moves on, so a glossary tab with odd formatting
// never blocks the data tabs beside it.
type Runner struct {
	Repo    storage.Repository
	Metrics metrics.Backend
	Verbose bool

	// now is a clock seam for tests.
	now func() time.Time
}

func NewRunner(repo storage.Repository) *Runner {
	return &Runner{Repo: repo, Metrics: metrics.Nop{}, now: time.Now}
}

func (r *Runner) metrics() metrics.Backend {
	if r.Metrics == nil {
		return metrics.Nop{}
	}
	return r.Metrics
}

func (r *Runner) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

// ProcessFile runs every sheet of one source file through inference,
// classification, identity resolution, and loading, then persists the
// updated pipeline config. sourceRef is the file path or URL recorded
// against each load.
//
// The returned outcomes cover every sheet seen; err is non-nil only for
// failures outside any single sheet (source errors, config persistence).
func (r *Runner) ProcessFile(ctx context.Context, cfg *Config, src sheet.Source, sourceRef string, p period.Period) ([]Outcome, error) {
	if p.IsZero() {
		return nil, fmt.Errorf("pipeline %s: no reporting period for source file", cfg.Name)
	}

	var outcomes []Outcome
	anyLoaded := false

	for _, name := range src.SheetNames() {
		s, err := src.Sheet(name)
		if err != nil {
			outcomes = append(outcomes, r.failed(cfg, Outcome{Sheet: name},
				fmt.Errorf("read sheet %s: %w", name, err)))
			continue
		}

		o := r.processSheet(ctx, cfg, s, sourceRef, p)
		outcomes = append(outcomes, o)
		if o.Status == "loaded" {
			anyLoaded = true
		}
	}

	if anyLoaded {
		cfg.MarkPeriodLoaded(p.String())
	}
	if err := cfg.Save(ctx, r.Repo); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (r *Runner) processSheet(ctx context.Context, cfg *Config, s *sheet.Sheet, sourceRef string, p period.Period) Outcome {
	o := Outcome{Sheet: s.Name}
	started := r.clock()

	st := infer.Infer(s)
	if !st.IsValid() {
		o.Status = "skipped"
		o.Reason = skipReason(st)
		r.logf("pipeline %s: sheet %q skipped: %s", cfg.Name, s.Name, o.Reason)
		r.metrics().IncCounter(metrics.SheetsTotal, 1, metrics.Labels{"status": "skipped"})
		return o
	}

	sheetKey := mapping.Identifier(s.Name)
	o.Table = cfg.TableName(s.Name)

	saved := cfg.Mapping(sheetKey)

	// Grain sticks once classified; monthly noise must not flip a table's
	// identity between releases.
	if saved != nil && saved.Grain != "" {
		o.Grain = grain.Result{Entity: grain.Entity(saved.Grain), Confidence: saved.GrainConfidence}
	} else {
		o.Grain = grain.Classify(&st)
	}
	if o.Grain.Entity == grain.Unknown && !cfg.LoadUnknownGrain {
		o.Status = "skipped"
		o.Reason = "grain unknown"
		r.logf("pipeline %s: sheet %q skipped: grain unknown", cfg.Name, s.Name)
		r.metrics().IncCounter(metrics.SheetsTotal, 1, metrics.Labels{"status": "skipped"})
		return o
	}

	observed := make([]mapping.Column, len(st.Columns))
	for i, c := range st.Columns {
		observed[i] = mapping.Column{
			Name:         c.Name,
			SourceHeader: joinChain(c.HeaderChain()),
			Type:         c.Type.String(),
		}
	}

	m, drift := mapping.Resolve(saved, o.Table, observed)
	o.Drift = drift
	if drift.Drifted() {
		r.logf("pipeline %s: table %s drift v%d: added=%v removed=%v returned=%v",
			cfg.Name, o.Table, m.MappingsVersion, drift.Added, drift.Removed, drift.Returned)
		r.metrics().IncCounter(metrics.DriftTotal, 1, metrics.Labels{"table": o.Table})
	}

	if m.Grain == "" {
		m.Grain = string(o.Grain.Entity)
		m.GrainConfidence = o.Grain.Confidence
	}
	if m.LastEnriched.IsZero() {
		enrich.Enrich(m, r.clock())
	}

	rows := projectRows(&st, s, m)

	planner := load.NewPlanner(r.Repo)
	planner.SetVerbose(r.Verbose)
	res, err := planner.Load(ctx, load.Plan{
		Pipeline: cfg.Name,
		Table:    o.Table,
		Period:   p.String(),
		Mapping:  m,
		Rows:     rows,
	})

	cfg.SetMapping(sheetKey, m)
	r.record(ctx, cfg, o.Table, sourceRef, p, res, m.MappingsVersion, err)

	if err != nil {
		o.Status = "failed"
		o.Err = err
		r.metrics().IncCounter(metrics.SheetsTotal, 1, metrics.Labels{"status": "failed"})
		r.metrics().ObserveHistogram(metrics.LoadDuration, r.clock().Sub(started).Seconds(),
			metrics.Labels{"status": "failed"})
		return o
	}

	o.Status = "loaded"
	o.Rows = res.RowsWritten
	r.logf("pipeline %s: table %s period %s loaded %d rows", cfg.Name, o.Table, p, res.RowsWritten)
	r.metrics().IncCounter(metrics.SheetsTotal, 1, metrics.Labels{"status": "loaded"})
	r.metrics().IncCounter(metrics.RowsTotal, float64(res.RowsWritten), metrics.Labels{"table": o.Table})
	r.metrics().ObserveHistogram(metrics.LoadDuration, r.clock().Sub(started).Seconds(),
		metrics.Labels{"status": "ok"})
	return o
}

// projectRows reorders extracted rows from inferred column order to the
// mapping's active column order. The mapping is authoritative: a column
// the source moved still lands in its original position.
func projectRows(st *infer.TableStructure, s *sheet.Sheet, m *mapping.SheetMapping) [][]any {
	extracted := infer.ExtractRows(s, st)

	byName := map[string]int{}
	for i, c := range st.Columns {
		byName[c.Name] = i
	}

	active := m.ActiveNames()
	out := make([][]any, len(extracted))
	for i, row := range extracted {
		projected := make([]any, len(active))
		for j, name := range active {
			if idx, ok := byName[name]; ok {
				projected[j] = row[idx]
			}
		}
		out[i] = projected
	}
	return out
}

func (r *Runner) record(ctx context.Context, cfg *Config, table, sourceRef string, p period.Period, res load.Result, version int, loadErr error) {
	rec := storage.LoadRecord{
		Pipeline:        cfg.Name,
		Table:           table,
		Period:          p.String(),
		Source:          sourceRef,
		RowsRead:        res.RowsRead,
		RowsWritten:     res.RowsWritten,
		MappingsVersion: version,
		Status:          res.Status,
		LoadedAt:        r.clock(),
	}
	if loadErr != nil {
		rec.Error = loadErr.Error()
	}
	if err := r.Repo.RecordLoad(ctx, rec); err != nil {
		// History is best-effort; the load itself already succeeded or
		// failed on its own terms.
		log.Printf("pipeline %s: record load history for %s: %v", cfg.Name, table, err)
	}
}

func (r *Runner) failed(cfg *Config, o Outcome, err error) Outcome {
	o.Status = "failed"
	o.Err = err
	r.logf("pipeline %s: sheet %q failed: %v", cfg.Name, o.Sheet, err)
	r.metrics().IncCounter(metrics.SheetsTotal, 1, metrics.Labels{"status": "failed"})
	return o
}

func skipReason(st infer.TableStructure) string {
	if st.Err != "" {
		return st.Err
	}
	return "sheet is " + st.Class.String()
}

func joinChain(chain []string) string {
	out := ""
	for i, part := range chain {
		if i > 0 {
			out += " > "
		}
		out += part
	}
	return out
}

func (r *Runner) logf(format string, args ...any) {
	if r.Verbose {
		log.Printf(format, args...)
	}
}
