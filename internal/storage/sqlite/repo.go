package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eamazon/datawarp-v3.1/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// Key design points vs Postgres:
//   - SQLite has no DATE type; dates and timestamps are stored as
//     RFC 3339 text for reliable round-trip behavior and easy debugging.
//   - The default variable limit is low, so bulk inserts are chunked.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
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
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
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
	// A missing table yields zero pragma rows, which is the "does not
	// exist" signal callers expect.
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
		"DELETE FROM "+sqlIdent(table)+" WHERE "+sqlIdent(storage.PeriodColumn)+" = ?", period)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// maxInsertParams keeps each chunk under SQLite's bound-variable limit.
const maxInsertParams = 800

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
			for _, v := range row {
				args = append(args, normalizeValue(v))
			}
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
		"SELECT COUNT(*) FROM "+sqlIdent(table)+" WHERE "+sqlIdent(storage.PeriodColumn)+" = ?", period).Scan(&n)
	return n, err
}

// normalizeValue converts values the driver cannot bind. time.Time becomes
// ISO text so dates compare lexicographically.
func normalizeValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format("2006-01-02")
	}
	return v
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
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM `+storage.PipelinesTable+` WHERE name = ?`, name).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

func (r *Repo) SavePipeline(ctx context.Context, name string, doc []byte) error {
	if err := r.ensureMeta(ctx); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, upsertPipelineSQL,
		name, string(doc), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (r *Repo) RecordLoad(ctx context.Context, rec storage.LoadRecord) error {
	if err := r.ensureMeta(ctx); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, upsertHistorySQL,
		rec.Pipeline, rec.Table, rec.Period, rec.Source, rec.RowsRead, rec.RowsWritten,
		rec.MappingsVersion, rec.Status, rec.Error, rec.LoadedAt.UTC().Format(time.RFC3339Nano))
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
		 FROM `+storage.HistoryTable+` WHERE pipeline = ? ORDER BY loaded_at DESC`, pipeline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.LoadRecord
	for rows.Next() {
		var rec storage.LoadRecord
		var loadedAt string
		if err := rows.Scan(&rec.Pipeline, &rec.Table, &rec.Period, &rec.Source,
			&rec.RowsRead, &rec.RowsWritten,
			&rec.MappingsVersion, &rec.Status, &rec.Error, &loadedAt); err != nil {
			return nil, err
		}
		rec.LoadedAt, err = time.Parse(time.RFC3339Nano, loadedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: bad loaded_at %q: %w", loadedAt, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
