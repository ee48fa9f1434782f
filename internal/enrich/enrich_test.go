package enrich

import (
	"strings"
	"testing"
	"time"

	"github.com/eamazon/datawarp-v3.1/internal/mapping"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"org_code", "Org Code", "ODS code of the organisation the row describes"},
		{"headcount", "Headcount", "Number of staff, counted per person"},
		{"site_code", "Site Code", "Code identifying the Site Code"},
		{"vacancy_count", "Vacancies", "Count of Vacancies"},
		{"turnover_rate", "", "Rate expressed per reporting convention of the source table"},
		{"mystery", "", ""},
	}
	for _, tc := range tests {
		if got := Describe(tc.name, tc.header); got != tc.want {
			t.Errorf("Describe(%q, %q) = %q, want %q", tc.name, tc.header, got, tc.want)
		}
	}
}

func TestEnrich(t *testing.T) {
	m, _ := mapping.Resolve(nil, "t", []mapping.Column{
		{Name: "org_code", SourceHeader: "Org Code"},
		{Name: "mystery"},
		{Name: "site_code", SourceHeader: "Site Code"},
	})
	m.Columns[2].Description = "hand written"

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	n := Enrich(m, now)

	if n != 1 {
		t.Fatalf("expected 1 description written, got %d", n)
	}
	if !strings.Contains(m.Columns[0].Description, "ODS code") {
		t.Fatalf("unexpected description: %q", m.Columns[0].Description)
	}
	if m.Columns[1].Description != "" {
		t.Fatalf("mystery column should stay undescribed, got %q", m.Columns[1].Description)
	}
	if m.Columns[2].Description != "hand written" {
		t.Fatal("existing description was overwritten")
	}
	if !m.LastEnriched.Equal(now) {
		t.Fatalf("LastEnriched not stamped: %v", m.LastEnriched)
	}
}
