package period

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-03", "2024-03"},
		{"2024_11", "2024-11"},
		{"March 2024", "2024-03"},
		{"march-2024", "2024-03"},
		{"Sept 2023", "2023-09"},
		{"Workforce Statistics, December 2023", "2023-12"},
	}
	for _, tc := range tests {
		p, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if p.String() != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.in, p, tc.want)
		}
	}
}

func TestParse_NoPeriod(t *testing.T) {
	for _, in := range []string{"", "workforce statistics", "v2 final"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error", in)
		}
	}
}

func TestFromFilename(t *testing.T) {
	p, ok := FromFilename("NHS Workforce Statistics, November 2024 staff group.xlsx")
	if !ok {
		t.Fatal("expected a period")
	}
	if p.String() != "2024-11" {
		t.Fatalf("expected 2024-11, got %s", p)
	}

	// Month-name form wins over an ambiguous digit run.
	p, ok = FromFilename("gp-prac-2019-06-v2/data March 2024.csv")
	if !ok {
		t.Fatal("expected a period")
	}
	if p.String() != "2024-03" {
		t.Fatalf("expected 2024-03, got %s", p)
	}

	if _, ok := FromFilename("notes.xlsx"); ok {
		t.Fatal("expected no period")
	}
}

func TestOrderingHelpers(t *testing.T) {
	ps := []Period{
		{Year: 2024, Month: time.March},
		{Year: 2023, Month: time.December},
		{Year: 2024, Month: time.January},
	}

	if got := Latest(ps); got.String() != "2024-03" {
		t.Fatalf("Latest = %s, want 2024-03", got)
	}

	Sort(ps)
	if ps[0].String() != "2023-12" || ps[2].String() != "2024-03" {
		t.Fatalf("unexpected sort order: %v", ps)
	}

	if got := ps[0].Add(1); got.String() != "2024-01" {
		t.Fatalf("Add(1) = %s, want 2024-01", got)
	}
	if got := ps[0].Add(-12); got.String() != "2022-12" {
		t.Fatalf("Add(-12) = %s, want 2022-12", got)
	}
}
