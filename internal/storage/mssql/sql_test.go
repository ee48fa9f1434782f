package mssql

import (
	"testing"

	"github.com/eamazon/datawarp-v3.1/internal/storage"
)

func TestBuildCreateTableSQL(t *testing.T) {
	got := buildCreateTableSQL("workforce_stats", []storage.ColumnDef{
		{Name: "org_code", Type: storage.TypeText},
		{Name: "headcount", Type: storage.TypeInteger},
	})

	want := `IF OBJECT_ID(N'workforce_stats', N'U') IS NULL CREATE TABLE [workforce_stats] ([row_id] BIGINT IDENTITY(1,1) PRIMARY KEY, [period] NVARCHAR(7) NOT NULL, [loaded_at] DATETIMEOFFSET NOT NULL DEFAULT SYSDATETIMEOFFSET(), [org_code] NVARCHAR(MAX), [headcount] BIGINT)`
	if got != want {
		t.Fatalf("unexpected SQL:\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildAddColumnSQL_GuardsExistingColumn(t *testing.T) {
	got := buildAddColumnSQL("t", storage.ColumnDef{Name: "fte", Type: storage.TypeDecimal})
	want := `IF COL_LENGTH(N't', N'fte') IS NULL ALTER TABLE [t] ADD [fte] FLOAT`
	if got != want {
		t.Fatalf("unexpected SQL: %s", got)
	}
}

func TestBuildInsertSQL_NumbersParameters(t *testing.T) {
	got := buildInsertSQL("t", []string{"period", "a"}, 2)
	want := `INSERT INTO [t] ([period], [a]) VALUES (@p1, @p2), (@p3, @p4)`
	if got != want {
		t.Fatalf("unexpected SQL: %s", got)
	}
}

func TestSqlIdent_EscapesBrackets(t *testing.T) {
	if got := sqlIdent("we]ird"); got != "[we]]ird]" {
		t.Fatalf("unexpected ident: %s", got)
	}
}
