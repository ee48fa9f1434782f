package postgres

import (
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

	want := `CREATE TABLE IF NOT EXISTS "workforce_stats" ("row_id" BIGSERIAL PRIMARY KEY, "period" TEXT NOT NULL, "loaded_at" TIMESTAMPTZ NOT NULL DEFAULT now(), "org_code" TEXT, "headcount" BIGINT, "rate" DOUBLE PRECISION, "census_date" DATE)`
	if got != want {
		t.Fatalf("unexpected SQL:\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildAddColumnSQL_IsIdempotent(t *testing.T) {
	got := buildAddColumnSQL("t", storage.ColumnDef{Name: "fte", Type: storage.TypeDecimal})
	want := `ALTER TABLE "t" ADD COLUMN IF NOT EXISTS "fte" DOUBLE PRECISION`
	if got != want {
		t.Fatalf("unexpected SQL: %s", got)
	}
}

func TestTypeFor_UnknownDefaultsToText(t *testing.T) {
	if got := typeFor("blob"); got != "TEXT" {
		t.Fatalf("expected TEXT, got %s", got)
	}
}
