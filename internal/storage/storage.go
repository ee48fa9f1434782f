// Package storage defines the backend-agnostic interfaces for loaded data
// and pipeline metadata, plus the registry that backend packages register
// into from init().
//
// The types shared by the load planner and the backends live here so the
// backend packages can import them without circular deps.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to open a repository.
//
// Kind must match a registered backend kind ("postgres", "sqlite",
// "mssql"); DSN is passed through to the backend factory and validated
// backend-specifically.
type Config struct {
	Kind string
	DSN  string
}

// Destination is the data-plane surface the load planner drives.
//
// IMPORTANT: this interface is intentionally minimal. The planner owns
// load semantics (ordering, idempotency, verification); backends only
// translate each step into their own SQL dialect.
type Destination interface {
	// EnsureTable creates the table if it does not exist, with the given
	// data columns plus the standard period column. Idempotent.
	EnsureTable(ctx context.Context, table string, columns []ColumnDef) error

	// ListColumns returns the table's current column names in ordinal
	// order, or nil when the table does not exist.
	ListColumns(ctx context.Context, table string) ([]string, error)

	// AddColumns widens the table. The schema only ever grows; backends
	// never receive a drop or type change.
	AddColumns(ctx context.Context, table string, columns []ColumnDef) error

	// DeletePeriod removes all rows for one reporting period and returns
	// the number deleted.
	DeletePeriod(ctx context.Context, table, period string) (int64, error)

	// InsertRows bulk-inserts rows for the given columns and returns the
	// number written. The period column is passed like any other.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// CountPeriod returns the number of rows stored for one period.
	CountPeriod(ctx context.Context, table, period string) (int64, error)
}

// MetaStore persists pipeline configuration and load history.
//
// Pipeline configuration is an opaque JSON document: backends store and
// return the bytes untouched so config schema changes never require
// backend changes.
type MetaStore interface {
	// LoadPipeline returns the stored document for a pipeline, or nil
	// (and no error) when the pipeline has never been saved.
	LoadPipeline(ctx context.Context, name string) ([]byte, error)

	// SavePipeline upserts the pipeline document.
	SavePipeline(ctx context.Context, name string, doc []byte) error

	// RecordLoad upserts a load history record keyed on
	// (pipeline, table, period). Re-loading a period overwrites the
	// previous record rather than appending.
	RecordLoad(ctx context.Context, rec LoadRecord) error

	// History returns a pipeline's load records, most recent first.
	History(ctx context.Context, pipeline string) ([]LoadRecord, error)

	// ListPipelines returns the names of all saved pipelines, sorted.
	ListPipelines(ctx context.Context) ([]string, error)
}

// Repository is the full backend surface: data plane, metadata plane, and
// lifecycle.
type Repository interface {
	Destination
	MetaStore

	// Close releases backend resources. Treat as "call once".
	Close()
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Call from an init() function
// in the backend package.
//
// Panics on empty kind, nil factory, or duplicate registration; failing
// fast beats ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Safe for concurrent use with Register. Returns an error when cfg.Kind is
// empty or unregistered, otherwise whatever the factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("storage: unsupported kind %q (is the backend package imported?)", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, for error messages and CLI
// help.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
