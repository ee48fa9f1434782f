// Package load executes idempotent, period-scoped loads against a storage
// destination.
//
// A load walks a fixed state machine:
//
//	PLANNED -> SCHEMA_RECONCILED -> PERIOD_CLEARED -> WRITTEN -> RECONCILED
//
// and stops at FAILED on the first error. Because the period is cleared
// before writing, re-running a load for the same period replaces its rows
// exactly; loads for different periods never touch each other.
package load

import (
	"context"
	"fmt"
	"log"

	"github.com/eamazon/datawarp-v3.1/internal/mapping"
	"github.com/eamazon/datawarp-v3.1/internal/storage"
)

// Plan is one table-load for one period.
type Plan struct {
	Pipeline string
	Table    string
	// Period is the canonical YYYY-MM string stamped on every row.
	Period string
	// Mapping is the resolved column identity for the table. Its
	// ActiveNames define, in order, the columns of every row in Rows.
	Mapping *mapping.SheetMapping
	// Rows holds the data values, one slice per output row, aligned with
	// Mapping.ActiveNames. The period column is added by the planner.
	Rows [][]any
}

// Result reports where a load finished.
type Result struct {
	// Status is the final state, StatusReconciled on success and
	// StatusFailed after an error.
	Status string
	// RowsRead is the number of typed input rows in the plan.
	RowsRead int64
	// RowsWritten is the number of rows the destination reported written.
	RowsWritten int64
}

// Planner drives loads against one destination. It holds no per-load
// state; a single Planner may run loads for many tables.
type Planner struct {
	dest    storage.Destination
	verbose bool
}

func NewPlanner(dest storage.Destination) *Planner {
	return &Planner{dest: dest}
}

// SetVerbose enables per-state progress logging.
func (p *Planner) SetVerbose(v bool) { p.verbose = v }

// Load executes one plan to completion.
//
// On error the returned Result carries StatusFailed and the error names
// the last state reached; the destination may hold a cleared or partially
// written period, which the next successful run of the same plan repairs.
func (p *Planner) Load(ctx context.Context, plan Plan) (Result, error) {
	res := Result{Status: storage.StatusPlanned, RowsRead: int64(len(plan.Rows))}

	if err := validate(plan); err != nil {
		return fail(res, err)
	}
	p.logf("load %s period %s: %d rows planned", plan.Table, plan.Period, len(plan.Rows))

	if err := p.reconcileSchema(ctx, plan); err != nil {
		return fail(res, err)
	}
	res.Status = storage.StatusSchemaReconciled
	p.logf("load %s period %s: schema reconciled", plan.Table, plan.Period)

	deleted, err := p.dest.DeletePeriod(ctx, plan.Table, plan.Period)
	if err != nil {
		return fail(res, fmt.Errorf("clear period %s of %s: %w", plan.Period, plan.Table, err))
	}
	res.Status = storage.StatusPeriodCleared
	if deleted > 0 {
		p.logf("load %s period %s: replaced %d existing rows", plan.Table, plan.Period, deleted)
	}

	written, err := p.write(ctx, plan)
	res.RowsWritten = written
	if err != nil {
		return fail(res, err)
	}
	res.Status = storage.StatusWritten

	if err := p.reconcile(ctx, plan, written); err != nil {
		return fail(res, err)
	}
	res.Status = storage.StatusReconciled
	p.logf("load %s period %s: reconciled %d rows", plan.Table, plan.Period, written)

	return res, nil
}

// fail stamps the error with the last state reached, so a FAILED history
// record shows which step the load died at.
func fail(res Result, err error) (Result, error) {
	err = fmt.Errorf("after %s: %w", res.Status, err)
	res.Status = storage.StatusFailed
	return res, err
}

func validate(plan Plan) error {
	if plan.Table == "" {
		return fmt.Errorf("plan has no table name")
	}
	if plan.Period == "" {
		return fmt.Errorf("plan for %s has no period", plan.Table)
	}
	if plan.Mapping == nil {
		return fmt.Errorf("plan for %s has no column mapping", plan.Table)
	}
	width := len(plan.Mapping.ActiveNames())
	if width == 0 {
		return fmt.Errorf("plan for %s has no active columns", plan.Table)
	}
	for i, row := range plan.Rows {
		if len(row) != width {
			return fmt.Errorf("plan for %s: row %d has %d values, mapping has %d active columns",
				plan.Table, i, len(row), width)
		}
	}
	return nil
}

// reconcileSchema ensures the physical table exists and contains every
// mapping column. The schema only grows: columns missing from the latest
// release stay in place, and nothing is ever dropped or retyped.
func (p *Planner) reconcileSchema(ctx context.Context, plan Plan) error {
	defs := make([]storage.ColumnDef, 0, len(plan.Mapping.Columns))
	for _, c := range plan.Mapping.Columns {
		defs = append(defs, storage.ColumnDef{Name: c.Name, Type: c.Type})
	}

	if err := p.dest.EnsureTable(ctx, plan.Table, defs); err != nil {
		return fmt.Errorf("ensure table %s: %w", plan.Table, err)
	}

	existing, err := p.dest.ListColumns(ctx, plan.Table)
	if err != nil {
		return fmt.Errorf("list columns of %s: %w", plan.Table, err)
	}
	have := map[string]bool{}
	for _, name := range existing {
		have[name] = true
	}

	var missing []storage.ColumnDef
	var missingNames []string
	for _, def := range defs {
		if !have[def.Name] {
			missing = append(missing, def)
			missingNames = append(missingNames, def.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	p.logf("load %s: widening schema with %v", plan.Table, missingNames)
	if err := p.dest.AddColumns(ctx, plan.Table, missing); err != nil {
		return &SchemaError{Table: plan.Table, Missing: missingNames, Err: err}
	}
	return nil
}

func (p *Planner) write(ctx context.Context, plan Plan) (int64, error) {
	columns := append([]string{storage.PeriodColumn}, plan.Mapping.ActiveNames()...)

	rows := make([][]any, len(plan.Rows))
	for i, row := range plan.Rows {
		out := make([]any, 0, len(row)+1)
		out = append(out, plan.Period)
		out = append(out, row...)
		rows[i] = out
	}

	written, err := p.dest.InsertRows(ctx, plan.Table, columns, rows)
	if err != nil {
		return written, fmt.Errorf("write %s period %s: %w", plan.Table, plan.Period, err)
	}
	if written != int64(len(rows)) {
		return written, &IntegrityError{
			Table:    plan.Table,
			Period:   plan.Period,
			Expected: int64(len(rows)),
			Got:      written,
		}
	}
	return written, nil
}

// reconcile re-counts the period in the destination. The count must equal
// what was just written; anything else means concurrent interference or a
// silent write failure, and the load is recorded FAILED.
func (p *Planner) reconcile(ctx context.Context, plan Plan, written int64) error {
	stored, err := p.dest.CountPeriod(ctx, plan.Table, plan.Period)
	if err != nil {
		return fmt.Errorf("count %s period %s: %w", plan.Table, plan.Period, err)
	}
	if stored != written {
		return &IntegrityError{
			Table:    plan.Table,
			Period:   plan.Period,
			Expected: written,
			Got:      stored,
		}
	}
	return nil
}

func (p *Planner) logf(format string, args ...any) {
	if p.verbose {
		log.Printf(format, args...)
	}
}
