// Package enrich fills human-readable column descriptions into sheet
// mappings. Descriptions come from a table of well-known column names plus
// name-fragment heuristics; no external service is involved.
package enrich

import (
	"strings"
	"time"

	"github.com/eamazon/datawarp-v3.1/internal/mapping"
)

// knownColumns describe identifiers that recur across publications.
var knownColumns = map[string]string{
	"org_code":          "ODS code of the organisation the row describes",
	"organisation_code": "ODS code of the organisation the row describes",
	"org_name":          "Name of the organisation the row describes",
	"organisation_name": "Name of the organisation the row describes",
	"practice_code":     "ODS code of the GP practice",
	"practice_name":     "Name of the GP practice",
	"region_code":       "ODS code of the commissioning region",
	"region_name":       "Name of the commissioning region",
	"icb_code":          "ODS code of the integrated care board",
	"icb_name":          "Name of the integrated care board",
	"ccg_code":          "ODS code of the clinical commissioning group",
	"headcount":         "Number of staff, counted per person",
	"fte":               "Full-time equivalent staff",
	"wte":               "Whole-time equivalent staff",
}

// fragments map name parts to description templates, checked in order
// after the known-column table.
var fragments = []struct {
	fragment string
	text     string
}{
	{"_code", "Code identifying the %s"},
	{"_name", "Name of the %s"},
	{"rate", "Rate expressed per reporting convention of the source table"},
	{"percent", "Percentage as published in the source table"},
	{"count", "Count of %s"},
	{"total", "Total of %s"},
	{"date", "Date field from the source table"},
}

// Describe derives a description for one column, or "" when nothing
// sensible applies. sourceHeader is the original header text, used
// verbatim in fragment templates.
func Describe(name, sourceHeader string) string {
	if d, ok := knownColumns[name]; ok {
		return d
	}

	subject := strings.TrimSpace(sourceHeader)
	if subject == "" {
		subject = strings.ReplaceAll(name, "_", " ")
	}

	lower := strings.ToLower(name)
	for _, f := range fragments {
		if !strings.Contains(lower, f.fragment) {
			continue
		}
		if strings.Contains(f.text, "%s") {
			return strings.ReplaceAll(f.text, "%s", subject)
		}
		return f.text
	}
	return ""
}

// Enrich fills empty descriptions in a mapping and stamps LastEnriched.
// Returns the number of descriptions written. Columns that already have a
// description are left alone, so hand-edited text survives re-runs.
func Enrich(m *mapping.SheetMapping, now time.Time) int {
	written := 0
	for i := range m.Columns {
		c := &m.Columns[i]
		if c.Description != "" {
			continue
		}
		if d := Describe(c.Name, c.SourceHeader); d != "" {
			c.Description = d
			written++
		}
	}
	m.LastEnriched = now
	return written
}
