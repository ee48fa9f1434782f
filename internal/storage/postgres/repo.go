package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eamazon/datawarp-v3.1/internal/storage"
)

// Repo implements storage.Repository for Postgres.
//
// Bulk writes go through the COPY protocol, which is the fast path for the
// row volumes monthly publications produce. Everything else is plain SQL
// on the pool.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() { r.pool.Close() }

func (r *Repo) EnsureTable(ctx context.Context, table string, columns []storage.ColumnDef) error {
	if _, err := r.pool.Exec(ctx, buildCreateTableSQL(table, columns)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

func (r *Repo) ListColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = $1
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *Repo) AddColumns(ctx context.Context, table string, columns []storage.ColumnDef) error {
	for _, c := range columns {
		if _, err := r.pool.Exec(ctx, buildAddColumnSQL(table, c)); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, c.Name, err)
		}
	}
	return nil
}

func (r *Repo) DeletePeriod(ctx context.Context, table, period string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM "+sqlIdent(table)+" WHERE "+sqlIdent(storage.PeriodColumn)+" = $1", period)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

func (r *Repo) CountPeriod(ctx context.Context, table, period string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM "+sqlIdent(table)+" WHERE "+sqlIdent(storage.PeriodColumn)+" = $1", period).Scan(&n)
	return n, err
}

func (r *Repo) ensureMeta(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createPipelinesSQL); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, createHistorySQL)
	return err
}

func (r *Repo) LoadPipeline(ctx context.Context, name string) ([]byte, error) {
	if err := r.ensureMeta(ctx); err != nil {
		return nil, err
	}
	var doc []byte
	err := r.pool.QueryRow(ctx,
		`SELECT doc FROM `+storage.PipelinesTable+` WHERE name = $1`, name).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

func (r *Repo) SavePipeline(ctx context.Context, name string, doc []byte) error {
	if err := r.ensureMeta(ctx); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, upsertPipelineSQL, name, doc, time.Now().UTC())
	return err
}

func (r *Repo) RecordLoad(ctx context.Context, rec storage.LoadRecord) error {
	if err := r.ensureMeta(ctx); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, upsertHistorySQL,
		rec.Pipeline, rec.Table, rec.Period, rec.Source, rec.RowsRead, rec.RowsWritten,
		rec.MappingsVersion, rec.Status, rec.Error, rec.LoadedAt.UTC())
	return err
}

func (r *Repo) ListPipelines(ctx context.Context) ([]string, error) {
	if err := r.ensureMeta(ctx); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT name FROM `+storage.PipelinesTable+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *Repo) History(ctx context.Context, pipeline string) ([]storage.LoadRecord, error) {
	if err := r.ensureMeta(ctx); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT pipeline, table_name, period, source, rows_read, rows_written, mappings_version, status, error, loaded_at
		 FROM `+storage.HistoryTable+` WHERE pipeline = $1 ORDER BY loaded_at DESC`, pipeline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.LoadRecord
	for rows.Next() {
		var rec storage.LoadRecord
		if err := rows.Scan(&rec.Pipeline, &rec.Table, &rec.Period, &rec.Source,
			&rec.RowsRead, &rec.RowsWritten,
			&rec.MappingsVersion, &rec.Status, &rec.Error, &rec.LoadedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
