package sqlite

import (
	"strings"
	"testing"

	"github.com/eamazon/datawarp-v3.1/internal/storage"
)

func TestBuildCreateTableSQL(t *testing.T) {
	got := buildCreateTableSQL("workforce_stats", []storage.ColumnDef{
		{Name: "org_code", Type: storage.TypeText},
		{Name: "headcount", Type: storage.TypeInteger},
		{Name: "rate", Type: storage.TypeDecimal},
		{Name: "census_date", Type: storage.TypeDate},
	})

	want := `CREATE TABLE IF NOT EXISTS "workforce_stats" ("row_id" INTEGER PRIMARY KEY AUTOINCREMENT, "period" TEXT NOT NULL, "loaded_at" TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP, "org_code" TEXT, "headcount" INTEGER, "rate" REAL, "census_date" TEXT)`
	if got != want {
		t.Fatalf("unexpected SQL:\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildCreateTableSQL_SystemColumns(t *testing.T) {
	got := buildCreateTableSQL("t", nil)
	for _, col := range []string{storage.RowIDColumn, storage.PeriodColumn, storage.LoadedAtColumn} {
		if !strings.Contains(got, sqlIdent(col)) {
			t.Fatalf("create table missing system column %s: %s", col, got)
		}
	}
}

func TestBuildAddColumnSQL(t *testing.T) {
	got := buildAddColumnSQL("workforce_stats", storage.ColumnDef{Name: "fte", Type: storage.TypeDecimal})
	want := `ALTER TABLE "workforce_stats" ADD COLUMN "fte" REAL`
	if got != want {
		t.Fatalf("unexpected SQL: %s", got)
	}
}

func TestBuildInsertSQL(t *testing.T) {
	got := buildInsertSQL("t", []string{"period", "a", "b"}, 2)
	want := `INSERT INTO "t" ("period", "a", "b") VALUES (?, ?, ?), (?, ?, ?)`
	if got != want {
		t.Fatalf("unexpected SQL: %s", got)
	}
}

func TestSqlIdent_EscapesQuotes(t *testing.T) {
	if got := sqlIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("unexpected ident: %s", got)
	}
}

func TestUpsertStatementsTargetConflictKeys(t *testing.T) {
	if !strings.Contains(upsertPipelineSQL, "ON CONFLICT (name)") {
		t.Fatal("pipeline upsert must conflict on name")
	}
	if !strings.Contains(upsertHistorySQL, "ON CONFLICT (pipeline, table_name, period)") {
		t.Fatal("history upsert must conflict on (pipeline, table_name, period)")
	}
}
