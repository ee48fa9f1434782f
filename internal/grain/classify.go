package grain

import (
	"strings"

	"github.com/eamazon/datawarp-v3.1/internal/infer"
	"github.com/eamazon/datawarp-v3.1/internal/sheet"
)

// Only the leading columns carry identity; everything to the right is
// measures. Scanning stops there so wide pivoted tables stay cheap.
const scanColumns = 10

// Match floors. Identifier-named columns tolerate more noise than the
// broad scan, which additionally demands a minimum absolute match count
// so a two-row table cannot classify off a coincidence.
const (
	identifierFloor    = 0.3
	broadFloor         = 0.5
	broadMinMatches    = 3
	keywordConfidence  = 0.5
	nationalConfidence = 0.6
)

// Classify decides the organisational grain of an inferred table.
//
// It works in two passes over the leading columns: first only columns
// whose names mark them as organisation identifiers, then all non-measure
// columns with a stricter floor. When both passes hit, the identifier
// result is preferred over a merely regional broad-scan match, because a
// region code next to finer-grained rows is an aggregation key, not the
// rows' grain. Any other combination resolves to the highest-priority,
// then highest-confidence, match across the two passes.
func Classify(t *infer.TableStructure) Result {
	cols := t.Columns
	if len(cols) > scanColumns {
		cols = cols[:scanColumns]
	}

	r1, ok1 := bestMatch(cols, true, identifierFloor, 1)
	r2, ok2 := bestMatch(cols, false, broadFloor, broadMinMatches)
	switch {
	case ok1 && ok2:
		if r2.Entity == Region && priorityOf(r1.Entity) > priorityOf(r2.Entity) {
			return r1
		}
		if outranks(r2, r1) {
			return r2
		}
		return r1
	case ok1:
		return r1
	case ok2:
		return r2
	}

	if r, ok := nameKeywordFallback(cols); ok {
		return r
	}
	if r, ok := nationalFallback(cols); ok {
		return r
	}
	return Result{Entity: Unknown}
}

func priorityOf(e Entity) int {
	for _, p := range entityPatterns {
		if p.entity == e {
			return p.priority
		}
	}
	return 0
}

// outranks reports whether a beats b on priority, then confidence. Ties go
// to b, so equal matches keep the identifier-pass result.
func outranks(a, b Result) bool {
	if pa, pb := priorityOf(a.Entity), priorityOf(b.Entity); pa != pb {
		return pa > pb
	}
	return a.Confidence > b.Confidence
}

// bestMatch scans columns for the pattern with the highest priority, then
// the highest match ratio, at or above the given floor.
func bestMatch(cols []infer.ColumnSpec, identifierOnly bool, floor float64, minMatches int) (Result, bool) {
	var best Result
	bestPriority := -1

	for _, col := range cols {
		if identifierOnly && !isIdentifierColumn(col.Name) {
			continue
		}
		if !identifierOnly && isMeasureColumn(col.Name) {
			continue
		}
		for _, p := range entityPatterns {
			matched, checked := countMatches(col.Samples, p)
			if checked == 0 || matched < minMatches {
				continue
			}
			ratio := float64(matched) / float64(checked)
			if ratio < floor {
				continue
			}
			if p.priority > bestPriority || (p.priority == bestPriority && ratio > best.Confidence) {
				best = Result{Entity: p.entity, Confidence: ratio, Column: col.Name}
				bestPriority = p.priority
			}
		}
	}

	return best, bestPriority >= 0
}

func countMatches(samples []any, p pattern) (matched, checked int) {
	for _, v := range samples {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || infer.Suppressed(s) {
			continue
		}
		checked++
		if p.re.MatchString(s) {
			matched++
		}
	}
	return matched, checked
}

func nameKeywordFallback(cols []infer.ColumnSpec) (Result, bool) {
	for _, kw := range entityNameKeywords {
		for _, col := range cols {
			if strings.Contains(col.Name, kw.keyword) {
				return Result{Entity: kw.entity, Confidence: keywordConfidence, Column: col.Name}, true
			}
		}
	}
	return Result{}, false
}

// nationalFallback recognises england-level tables by their label values.
// The table must be small; a long organisation list containing a "Total"
// row is not national.
func nationalFallback(cols []infer.ColumnSpec) (Result, bool) {
	for _, col := range cols {
		if len(col.Samples) > 5 {
			continue
		}
		for _, v := range col.Samples {
			s := strings.ToLower(strings.TrimSpace(sheet.DisplayText(v)))
			if nationalValues[s] {
				return Result{Entity: National, Confidence: nationalConfidence}, true
			}
		}
	}
	return Result{}, false
}

func isIdentifierColumn(name string) bool {
	for _, hint := range primaryIdentifierHints {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

func isMeasureColumn(name string) bool {
	for _, kw := range measureKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
