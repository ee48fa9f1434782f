package mssql

import (
	"strconv"
	"strings"

	"github.com/eamazon/datawarp-v3.1/internal/storage"
)

func typeFor(logical string) string {
	switch logical {
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeDecimal:
		return "FLOAT"
	case storage.TypeDate:
		return "DATE"
	default:
		return "NVARCHAR(MAX)"
	}
}

func sqlIdent(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

// buildCreateTableSQL guards with OBJECT_ID because SQL Server has no
// CREATE TABLE IF NOT EXISTS.
func buildCreateTableSQL(table string, columns []storage.ColumnDef) string {
	var b strings.Builder
	b.WriteString("IF OBJECT_ID(N'")
	b.WriteString(strings.ReplaceAll(table, "'", "''"))
	b.WriteString("', N'U') IS NULL CREATE TABLE ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(sqlIdent(storage.RowIDColumn))
	b.WriteString(" BIGINT IDENTITY(1,1) PRIMARY KEY, ")
	b.WriteString(sqlIdent(storage.PeriodColumn))
	b.WriteString(" NVARCHAR(7) NOT NULL, ")
	b.WriteString(sqlIdent(storage.LoadedAtColumn))
	b.WriteString(" DATETIMEOFFSET NOT NULL DEFAULT SYSDATETIMEOFFSET()")
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
	return "IF COL_LENGTH(N'" + strings.ReplaceAll(table, "'", "''") + "', N'" +
		strings.ReplaceAll(column.Name, "'", "''") + "') IS NULL ALTER TABLE " +
		sqlIdent(table) + " ADD " + sqlIdent(column.Name) + " " + typeFor(column.Type)
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

	p := 1
	for i := 0; i < rowCount; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(p))
			p++
		}
		b.WriteString(")")
	}
	return b.String()
}

const createPipelinesSQL = `IF OBJECT_ID(N'` + storage.PipelinesTable + `', N'U') IS NULL CREATE TABLE ` + storage.PipelinesTable + ` (
	name NVARCHAR(200) NOT NULL PRIMARY KEY,
	doc NVARCHAR(MAX) NOT NULL,
	updated_at DATETIMEOFFSET NOT NULL
)`

const createHistorySQL = `IF OBJECT_ID(N'` + storage.HistoryTable + `', N'U') IS NULL CREATE TABLE ` + storage.HistoryTable + ` (
	pipeline NVARCHAR(200) NOT NULL,
	table_name NVARCHAR(200) NOT NULL,
	period NVARCHAR(7) NOT NULL,
	source NVARCHAR(MAX) NOT NULL DEFAULT '',
	rows_read BIGINT NOT NULL,
	rows_written BIGINT NOT NULL,
	mappings_version INT NOT NULL,
	status NVARCHAR(40) NOT NULL,
	error NVARCHAR(MAX) NOT NULL DEFAULT '',
	loaded_at DATETIMEOFFSET NOT NULL,
	PRIMARY KEY (pipeline, table_name, period)
)`

// Upserts are UPDATE-then-INSERT batches. MERGE would also work but has a
// long history of concurrency surprises on SQL Server.
const upsertPipelineSQL = `UPDATE ` + storage.PipelinesTable + ` SET doc = @p2, updated_at = @p3 WHERE name = @p1;
IF @@ROWCOUNT = 0 INSERT INTO ` + storage.PipelinesTable + ` (name, doc, updated_at) VALUES (@p1, @p2, @p3);`

const upsertHistorySQL = `UPDATE ` + storage.HistoryTable + ` SET source = @p4, rows_read = @p5, rows_written = @p6, mappings_version = @p7, status = @p8, error = @p9, loaded_at = @p10
WHERE pipeline = @p1 AND table_name = @p2 AND period = @p3;
IF @@ROWCOUNT = 0 INSERT INTO ` + storage.HistoryTable + `
(pipeline, table_name, period, source, rows_read, rows_written, mappings_version, status, error, loaded_at)
VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10);`
