package mapping

import "time"

// Column is one observed column from the latest release, already
// normalized via Identifier.
type Column struct {
	Name         string
	SourceHeader string
	Type         string
}

// Resolve reconciles the observed structure of a sheet against its saved
// mapping and returns the mapping to persist plus a drift report.
//
// The saved mapping is authoritative: existing columns keep their
// position, name, and type regardless of what the new release looks like.
// New columns append at the end; columns absent from the release are
// marked missing but never dropped. Any structural change bumps
// MappingsVersion by exactly one and clears LastEnriched.
//
// Resolve never mutates saved; pass nil for a sheet seen for the first
// time.
func Resolve(saved *SheetMapping, tableName string, observed []Column) (*SheetMapping, DriftReport) {
	if saved == nil {
		m := &SheetMapping{TableName: tableName, MappingsVersion: 1}
		for _, c := range observed {
			m.Columns = append(m.Columns, ColumnMapping{
				Name:         c.Name,
				SourceHeader: c.SourceHeader,
				Type:         c.Type,
			})
		}
		return m, DriftReport{}
	}

	next := &SheetMapping{
		TableName:       saved.TableName,
		Grain:           saved.Grain,
		GrainConfidence: saved.GrainConfidence,
		Columns:         append([]ColumnMapping(nil), saved.Columns...),
		MappingsVersion: saved.MappingsVersion,
		LastEnriched:    saved.LastEnriched,
	}

	seen := map[string]int{}
	for i, c := range next.Columns {
		seen[c.Name] = i
	}

	var drift DriftReport
	present := map[string]bool{}
	for _, c := range observed {
		present[c.Name] = true
		i, ok := seen[c.Name]
		if !ok {
			drift.Added = append(drift.Added, c.Name)
			next.Columns = append(next.Columns, ColumnMapping{
				Name:         c.Name,
				SourceHeader: c.SourceHeader,
				Type:         c.Type,
			})
			continue
		}
		if next.Columns[i].Missing {
			drift.Returned = append(drift.Returned, c.Name)
			next.Columns[i].Missing = false
		}
	}

	for i, c := range next.Columns {
		if !present[c.Name] && !c.Missing {
			drift.Removed = append(drift.Removed, c.Name)
			next.Columns[i].Missing = true
		}
	}

	if drift.Drifted() {
		next.MappingsVersion++
		next.LastEnriched = time.Time{}
	}
	return next, drift
}
