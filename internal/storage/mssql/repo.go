package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/eamazon/datawarp-v3.1/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server, for teams
// whose warehouse lives there. Semantics match the Postgres backend; only
// the dialect differs.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) EnsureTable(ctx context.Context, table string, columns []storage.ColumnDef) error {
	if _, err := r.db.ExecContext(ctx, buildCreateTableSQL(table, columns)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

func (r *Repo) ListColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_NAME = @p1 ORDER BY ORDINAL_POSITION`, table)
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
		if _, err := r.db.ExecContext(ctx, buildAddColumnSQL(table, c)); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, c.Name, err)
		}
	}
	return nil
}

func (r *Repo) DeletePeriod(ctx context.Context, table, period string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM "+sqlIdent(table)+" WHERE "+sqlIdent(storage.PeriodColumn)+" = @p1", period)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// maxInsertParams keeps each chunk under the 2100-parameter statement
// limit.
const maxInsertParams = 2000

func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 || len(columns) == 0 {
		return 0, nil
	}

	chunk := maxInsertParams / len(columns)
	if chunk < 1 {
		chunk = 1
	}

	var total int64
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		args := make([]any, 0, len(batch)*len(columns))
		for _, row := range batch {
			args = append(args, row...)
		}

		res, err := r.db.ExecContext(ctx, buildInsertSQL(table, columns, len(batch)), args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (r *Repo) CountPeriod(ctx context.Context, table, period string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+sqlIdent(table)+" WHERE "+sqlIdent(storage.PeriodColumn)+" = @p1", period).Scan(&n)
	return n, err
}

func (r *Repo) ensureMeta(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPipelinesSQL); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, createHistorySQL)
	return err
}

func (r *Repo) LoadPipeline(ctx context.Context, name string) ([]byte, error) {
	if err := r.ensureMeta(ctx); err != nil {
		return nil, err
	}
	var doc string
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM `+storage.PipelinesTable+` WHERE name = @p1`, name).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

func (r *Repo) SavePipeline(ctx context.Context, name string, doc []byte) error {
	if err := r.ensureMeta(ctx); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, upsertPipelineSQL, name, string(doc), time.Now().UTC())
	return err
}

func (r *Repo) RecordLoad(ctx context.Context, rec storage.LoadRecord) error {
	if err := r.ensureMeta(ctx); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, upsertHistorySQL,
		rec.Pipeline, rec.Table, rec.Period, rec.Source, rec.RowsRead, rec.RowsWritten,
		rec.MappingsVersion, rec.Status, rec.Error, rec.LoadedAt.UTC())
	return err
}

func (r *Repo) ListPipelines(ctx context.Context) ([]string, error) {
	if err := r.ensureMeta(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM `+storage.PipelinesTable+` ORDER BY name`)
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
	rows, err := r.db.QueryContext(ctx,
		`SELECT pipeline, table_name, period, source, rows_read, rows_written, mappings_version, status, error, loaded_at
		 FROM `+storage.HistoryTable+` WHERE pipeline = @p1 ORDER BY loaded_at DESC`, pipeline)
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
