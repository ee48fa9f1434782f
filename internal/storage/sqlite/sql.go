package sqlite

import (
	"strings"

	"github.com/eamazon/datawarp-v3.1/internal/storage"
)

// typeFor maps logical column types to SQLite storage classes. SQLite has
// no date type; dates are stored as ISO text for reliable round-trips.
func typeFor(logical string) string {
	switch logical {
	case storage.TypeInteger:
		return "INTEGER"
	case storage.TypeDecimal:
		return "REAL"
	case storage.TypeDate, storage.TypeText:
		return "TEXT"
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
	b.WriteString(" INTEGER PRIMARY KEY AUTOINCREMENT, ")
	b.WriteString(sqlIdent(storage.PeriodColumn))
	b.WriteString(" TEXT NOT NULL, ")
	b.WriteString(sqlIdent(storage.LoadedAtColumn))
	b.WriteString(" TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP")
	for _, c := range columns {
		b.WriteString(", ")
		b.WriteString(sqlIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(typeFor(c.Type))
	}
	b.WriteString(")")
	return b.String()
}

func buildAddColumnSQL(table string, column storage.ColumnDef) string {
	return "ALTER TABLE " + sqlIdent(table) + " ADD COLUMN " + sqlIdent(column.Name) + " " + typeFor(column.Type)
}

func buildInsertSQL(table string, columns []string, rowCount int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES ")

	row := "(" + strings.TrimRight(strings.Repeat("?, ", len(columns)), ", ") + ")"
	for i := 0; i < rowCount; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
	}
	return b.String()
}

const createPipelinesSQL = `CREATE TABLE IF NOT EXISTS ` + storage.PipelinesTable + ` (
	name TEXT PRIMARY KEY,
	doc TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

const createHistorySQL = `CREATE TABLE IF NOT EXISTS ` + storage.HistoryTable + ` (
	pipeline TEXT NOT NULL,
	table_name TEXT NOT NULL,
	period TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	rows_read INTEGER NOT NULL,
	rows_written INTEGER NOT NULL,
	mappings_version INTEGER NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	loaded_at TEXT NOT NULL,
	PRIMARY KEY (pipeline, table_name, period)
)`

const upsertPipelineSQL = `INSERT INTO ` + storage.PipelinesTable + ` (name, doc, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`

const upsertHistorySQL = `INSERT INTO ` + storage.HistoryTable + `
(pipeline, table_name, period, source, rows_read, rows_written, mappings_version, status, error, loaded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (pipeline, table_name, period) DO UPDATE SET
	source = excluded.source,
	rows_read = excluded.rows_read,
	rows_written = excluded.rows_written,
	mappings_version = excluded.mappings_version,
	status = excluded.status,
	error = excluded.error,
	loaded_at = excluded.loaded_at`
