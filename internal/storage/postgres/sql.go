package postgres

import (
	"strings"

	"github.com/eamazon/datawarp-v3.1/internal/storage"
)

func typeFor(logical string) string {
	switch logical {
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeDecimal:
		return "DOUBLE PRECISION"
	case storage.TypeDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

func sqlIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func buildCreateTableSQL(table string, columns []storage.ColumnDef) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(sqlIdent(storage.RowIDColumn))
	b.WriteString(" BIGSERIAL PRIMARY KEY, ")
	b.WriteString(sqlIdent(storage.PeriodColumn))
	b.WriteString(" TEXT NOT NULL, ")
	b.WriteString(sqlIdent(storage.LoadedAtColumn))
	b.WriteString(" TIMESTAMPTZ NOT NULL DEFAULT now()")
	for _, c := range columns {
		b.WriteString(", ")
		b.WriteString(sqlIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(typeFor(c.Type))
	}
	b.WriteString(")")
	return b.String()
}

// buildAddColumnSQL uses IF NOT EXISTS so concurrent loaders racing on the
// same drift do not fail.
func buildAddColumnSQL(table string, column storage.ColumnDef) string {
	return "ALTER TABLE " + sqlIdent(table) + " ADD COLUMN IF NOT EXISTS " + sqlIdent(column.Name) + " " + typeFor(column.Type)
}

const createPipelinesSQL = `CREATE TABLE IF NOT EXISTS ` + storage.PipelinesTable + ` (
	name TEXT PRIMARY KEY,
	doc JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

const createHistorySQL = `CREATE TABLE IF NOT EXISTS ` + storage.HistoryTable + ` (
	pipeline TEXT NOT NULL,
	table_name TEXT NOT NULL,
	period TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	rows_read BIGINT NOT NULL,
	rows_written BIGINT NOT NULL,
	mappings_version INT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	loaded_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (pipeline, table_name, period)
)`

const upsertPipelineSQL = `INSERT INTO ` + storage.PipelinesTable + ` (name, doc, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`

const upsertHistorySQL = `INSERT INTO ` + storage.HistoryTable + `
(pipeline, table_name, period, source, rows_read, rows_written, mappings_version, status, error, loaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (pipeline, table_name, period) DO UPDATE SET
	source = EXCLUDED.source,
	rows_read = EXCLUDED.rows_read,
	rows_written = EXCLUDED.rows_written,
	mappings_version = EXCLUDED.mappings_version,
	status = EXCLUDED.status,
	error = EXCLUDED.error,
	loaded_at = EXCLUDED.loaded_at`
