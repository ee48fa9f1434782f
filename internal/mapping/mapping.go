// Package mapping owns column identity: the single normalization function
// that turns header text into database identifiers, and the persisted
// per-sheet mappings that keep those identities stable across monthly
// releases.
package mapping

import "time"

// ColumnMapping is the persisted identity of one output column.
type ColumnMapping struct {
	// Name is the canonical normalized identifier. Once assigned it never
	// changes; physical schema and row writes both key off it.
	Name string `json:"name"`
	// SourceHeader is the original header chain text the name was derived
	// from, kept for lineage and enrichment prompts.
	SourceHeader string `json:"source_header,omitempty"`
	// Type is the column's storage type as first observed. Later releases
	// never narrow or change it; widening happens only via new columns.
	Type string `json:"type,omitempty"`
	// Description is the enriched human explanation, if any.
	Description string `json:"description,omitempty"`
	// Missing marks a column absent from the latest release. It stays in
	// the mapping (and the physical table) so history remains queryable.
	Missing bool `json:"missing,omitempty"`
}

// SheetMapping is the persisted mapping for one sheet of one publication.
// It is the authority on table name, column order, and column identity.
type SheetMapping struct {
	TableName       string          `json:"table_name"`
	Grain           string          `json:"grain,omitempty"`
	GrainConfidence float64         `json:"grain_confidence,omitempty"`
	Columns         []ColumnMapping `json:"columns"`
	// MappingsVersion increases by exactly one on every structural drift.
	MappingsVersion int `json:"mappings_version"`
	// LastEnriched is cleared on drift so enrichment re-runs over the
	// changed shape.
	LastEnriched time.Time `json:"last_enriched,omitzero"`
}

// ActiveNames returns the canonical column names currently present in the
// source, in mapping order. This is the exact list used for both schema
// reconciliation and row writes.
func (m *SheetMapping) ActiveNames() []string {
	out := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		if !c.Missing {
			out = append(out, c.Name)
		}
	}
	return out
}

// Column looks up a mapping entry by canonical name.
func (m *SheetMapping) Column(name string) (ColumnMapping, bool) {
	for _, c := range m.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnMapping{}, false
}

// DriftReport describes how the latest release's structure differs from
// the saved mapping.
type DriftReport struct {
	// Added lists canonical names seen for the first time.
	Added []string
	// Removed lists canonical names newly absent from the source. They are
	// reported, not deleted.
	Removed []string
	// Returned lists previously missing names present again.
	Returned []string
}

// Drifted reports whether any structural change occurred.
func (d DriftReport) Drifted() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Returned) > 0
}
