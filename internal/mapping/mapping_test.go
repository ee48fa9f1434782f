package mapping

import (
	"reflect"
	"testing"
	"time"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Org Code", "org_code"},
		{"  Total FTE (Sept) ", "total_fte_sept"},
		{"£ per head", "per_head"},
		{"% change", "change"},
		{"2024 headcount", "col_2024_headcount"},
		{"Year", "year_val"},
		{"order", "order_val"},
		{"Period", "period_val"},
		{"Loaded At", "loaded_at_val"},
		{"***", "col_unnamed"},
		{"", "col_unnamed"},
	}
	for _, tc := range tests {
		if got := Identifier(tc.in); got != tc.want {
			t.Errorf("Identifier(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIdentifier_LengthLimit(t *testing.T) {
	long := ""
	for i := 0; i < 40; i++ {
		long += "abc"
	}
	got := Identifier(long)
	if len(got) > maxIdentLen {
		t.Fatalf("identifier exceeds limit: %d bytes", len(got))
	}
}

func TestUnique(t *testing.T) {
	taken := map[string]int{}
	if got := Unique("count", taken); got != "count" {
		t.Fatalf("first use: got %q", got)
	}
	if got := Unique("count", taken); got != "count_2" {
		t.Fatalf("second use: got %q", got)
	}
	if got := Unique("count", taken); got != "count_3" {
		t.Fatalf("third use: got %q", got)
	}
}

func TestResolve_FirstSighting(t *testing.T) {
	m, drift := Resolve(nil, "workforce_stats", []Column{
		{Name: "org_code", Type: "text"},
		{Name: "headcount", Type: "integer"},
	})

	if drift.Drifted() {
		t.Fatal("first sighting must not report drift")
	}
	if m.MappingsVersion != 1 {
		t.Fatalf("expected version 1, got %d", m.MappingsVersion)
	}
	if !reflect.DeepEqual(m.ActiveNames(), []string{"org_code", "headcount"}) {
		t.Fatalf("unexpected active names: %v", m.ActiveNames())
	}
}

func TestResolve_StableWhenUnchanged(t *testing.T) {
	saved, _ := Resolve(nil, "t", []Column{{Name: "a"}, {Name: "b"}})
	saved.LastEnriched = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	next, drift := Resolve(saved, "t", []Column{{Name: "a"}, {Name: "b"}})

	if drift.Drifted() {
		t.Fatalf("unexpected drift: %+v", drift)
	}
	if next.MappingsVersion != saved.MappingsVersion {
		t.Fatal("version must not change without drift")
	}
	if next.LastEnriched.IsZero() {
		t.Fatal("enrichment timestamp must survive an unchanged release")
	}
}

func TestResolve_AddAndRemove(t *testing.T) {
	saved, _ := Resolve(nil, "t", []Column{
		{Name: "org_code", Type: "text"},
		{Name: "old_measure", Type: "integer"},
	})
	saved.LastEnriched = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	next, drift := Resolve(saved, "t", []Column{
		{Name: "org_code", Type: "text"},
		{Name: "new_measure", Type: "integer"},
	})

	if !reflect.DeepEqual(drift.Added, []string{"new_measure"}) {
		t.Fatalf("unexpected added: %v", drift.Added)
	}
	if !reflect.DeepEqual(drift.Removed, []string{"old_measure"}) {
		t.Fatalf("unexpected removed: %v", drift.Removed)
	}
	if next.MappingsVersion != 2 {
		t.Fatalf("expected version bump to 2, got %d", next.MappingsVersion)
	}
	if !next.LastEnriched.IsZero() {
		t.Fatal("drift must clear the enrichment timestamp")
	}

	// Removed columns stay in the mapping, ordered before additions.
	names := make([]string, len(next.Columns))
	for i, c := range next.Columns {
		names[i] = c.Name
	}
	if !reflect.DeepEqual(names, []string{"org_code", "old_measure", "new_measure"}) {
		t.Fatalf("unexpected mapping order: %v", names)
	}
	if !reflect.DeepEqual(next.ActiveNames(), []string{"org_code", "new_measure"}) {
		t.Fatalf("unexpected active names: %v", next.ActiveNames())
	}

	// A further unchanged release must not bump again.
	final, drift := Resolve(next, "t", []Column{
		{Name: "org_code"}, {Name: "new_measure"},
	})
	if drift.Drifted() {
		t.Fatalf("unexpected drift: %+v", drift)
	}
	if final.MappingsVersion != 2 {
		t.Fatalf("version must stay 2, got %d", final.MappingsVersion)
	}
}

func TestResolve_ReturnedColumn(t *testing.T) {
	saved, _ := Resolve(nil, "t", []Column{{Name: "a"}, {Name: "b"}})
	gone, _ := Resolve(saved, "t", []Column{{Name: "a"}})
	back, drift := Resolve(gone, "t", []Column{{Name: "a"}, {Name: "b"}})

	if !reflect.DeepEqual(drift.Returned, []string{"b"}) {
		t.Fatalf("unexpected returned: %v", drift.Returned)
	}
	if back.MappingsVersion != 3 {
		t.Fatalf("expected version 3, got %d", back.MappingsVersion)
	}
	if !reflect.DeepEqual(back.ActiveNames(), []string{"a", "b"}) {
		t.Fatalf("unexpected active names: %v", back.ActiveNames())
	}
}

func TestResolve_DoesNotMutateSaved(t *testing.T) {
	saved, _ := Resolve(nil, "t", []Column{{Name: "a"}, {Name: "b"}})
	Resolve(saved, "t", []Column{{Name: "a"}})

	if saved.Columns[1].Missing {
		t.Fatal("Resolve mutated its input")
	}
	if saved.MappingsVersion != 1 {
		t.Fatalf("Resolve mutated input version: %d", saved.MappingsVersion)
	}
}
