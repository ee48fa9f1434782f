package discovery

import (
	"strings"
	"testing"
)

const listingHTML = `
<html><body>
<h1>NHS Workforce Statistics</h1>
<ul>
 <li><a href="/download/NHS%20Workforce%20Statistics%2C%20March%202024.xlsx">March 2024 tables</a></li>
 <li><a href="https://files.example.org/extracts/staff-group-2024-03.csv">Staff group extract</a></li>
 <li><a href="/download/NHS%20Workforce%20Statistics%2C%20March%202024.xlsx">Duplicate link</a></li>
 <li><a href="/about/methodology.html">Methodology</a></li>
 <li><a href="/download/archive.zip">Archive (all years)</a></li>
 <li><a href="#top">Back to top</a></li>
</ul>
</body></html>`

func TestFindDataFiles(t *testing.T) {
	files, err := FindDataFiles("https://digital.example.org/pubs/workforce/march-2024", strings.NewReader(listingHTML))
	if err != nil {
		t.Fatalf("FindDataFiles: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d: %+v", len(files), files)
	}

	first := files[0]
	if first.URL != "https://digital.example.org/download/NHS%20Workforce%20Statistics%2C%20March%202024.xlsx" {
		t.Fatalf("unexpected URL: %s", first.URL)
	}
	if first.Name != "NHS Workforce Statistics, March 2024.xlsx" {
		t.Fatalf("unexpected name: %s", first.Name)
	}
	if first.Ext != ".xlsx" {
		t.Fatalf("unexpected ext: %s", first.Ext)
	}
	if first.Period.String() != "2024-03" {
		t.Fatalf("unexpected period: %s", first.Period)
	}

	if files[1].Ext != ".csv" || files[1].Period.String() != "2024-03" {
		t.Fatalf("unexpected csv entry: %+v", files[1])
	}

	if files[2].Ext != ".zip" || !files[2].Period.IsZero() {
		t.Fatalf("unexpected zip entry: %+v", files[2])
	}
}

func TestFilter(t *testing.T) {
	files := []DataFile{
		{Name: "NHS Workforce Statistics, March 2024.xlsx"},
		{Name: "staff-group-2024-03.csv"},
		{Name: "archive.zip"},
	}

	got := Filter(files, []string{"workforce", "staff-group"})
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}

	if got := Filter(files, nil); len(got) != 3 {
		t.Fatalf("no patterns should keep everything, got %d", len(got))
	}
}

func TestMatchPattern(t *testing.T) {
	if !MatchPattern("NHS Workforce Statistics.xlsx", "workforce") {
		t.Fatal("expected case-insensitive match")
	}
	if MatchPattern("archive.zip", "workforce") {
		t.Fatal("unexpected match")
	}
	if !MatchPattern("anything", "") {
		t.Fatal("empty pattern must match")
	}
}
