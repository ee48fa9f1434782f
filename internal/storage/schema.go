package storage

import "time"

// Logical column types. Backends map these to their own SQL types; the
// planner and mappings never see dialect names.
const (
	TypeText    = "text"
	TypeInteger = "integer"
	TypeDecimal = "decimal"
	TypeDate    = "date"
)

// System columns every loaded table carries alongside its data columns.
// Backends create all three; only the period value is supplied by the
// planner, the other two are generated at insert time.
const (
	// RowIDColumn is the backend-generated surrogate row identifier.
	RowIDColumn = "row_id"
	// PeriodColumn holds the canonical YYYY-MM period string and scopes
	// deletes and reloads.
	PeriodColumn = "period"
	// LoadedAtColumn records when each row was written.
	LoadedAtColumn = "loaded_at"
)

// IsSystemColumn reports whether a destination column is system-owned
// rather than part of the canonical data column list.
func IsSystemColumn(name string) bool {
	return name == RowIDColumn || name == PeriodColumn || name == LoadedAtColumn
}

// ColumnDef is one column of a loaded table, in logical-type terms.
type ColumnDef struct {
	Name string
	Type string
}

// Load statuses as recorded in history. A load walks these in order and
// stops at FAILED on any error.
const (
	StatusPlanned          = "PLANNED"
	StatusSchemaReconciled = "SCHEMA_RECONCILED"
	StatusPeriodCleared    = "PERIOD_CLEARED"
	StatusWritten          = "WRITTEN"
	StatusReconciled       = "RECONCILED"
	StatusFailed           = "FAILED"
)

// LoadRecord is one row of load history, unique per
// (pipeline, table, period). RowsRead counts the typed input rows and
// RowsWritten the destination's post-write count; the pair is what
// reconciliation compares.
type LoadRecord struct {
	Pipeline        string
	Table           string
	Period          string
	Source          string
	RowsRead        int64
	RowsWritten     int64
	MappingsVersion int
	Status          string
	Error           string
	LoadedAt        time.Time
}

// Metadata table names, shared by all backends so a database can be
// pointed at by any of them interchangeably. Backends create these lazily
// on first metadata operation.
const (
	PipelinesTable = "dw_pipelines"
	HistoryTable   = "dw_load_history"
)
