package infer

import (
	"strconv"
	"strings"
	"time"

	"github.com/eamazon/datawarp-v3.1/internal/sheet"
)

// Header fragments that force a text type even when the sampled values
// look numeric. Period labels like "2024" in a year column must stay text
// so mixed fiscal-year and calendar-year rows coexist.
var textHintFragments = []string{
	"code", "name", "period", "year", "month", "quarter", "date",
	"description", "notes", "comment",
}

// inferColumnTypes samples each column's data region and assigns the most
// specific type every non-suppressed sample satisfies. Mixed columns fall
// back to text; values are never coerced to fit a guess.
func inferColumnTypes(s *sheet.Sheet, columns []ColumnSpec, dataStart, dataEnd int) {
	for i := range columns {
		col := &columns[i]
		col.Samples = collectSamples(s, col.Ordinal, dataStart, dataEnd)
		col.Type = typeOf(col.Name, col.Samples)
	}
}

func collectSamples(s *sheet.Sheet, ordinal, dataStart, dataEnd int) []any {
	var samples []any
	for row := dataStart; row <= dataEnd && len(samples) < sampleCap; row++ {
		if v := s.Value(row, ordinal); v != nil {
			samples = append(samples, v)
		}
	}
	return samples
}

func typeOf(name string, samples []any) ColumnType {
	lower := strings.ToLower(name)
	for _, frag := range textHintFragments {
		if strings.Contains(lower, frag) {
			return TypeText
		}
	}

	var ints, decimals, dates, texts, checked int
	for _, v := range samples {
		if checked >= typeSampleCap {
			break
		}
		if str, ok := v.(string); ok && Suppressed(str) {
			continue
		}
		checked++
		switch v.(type) {
		case int64:
			ints++
		case float64:
			decimals++
		case time.Time:
			dates++
		case string:
			// Sheets read from CSV are re-parsed at the cell level, but a
			// stray thousands separator can leave numerics as strings.
			str := strings.ReplaceAll(v.(string), ",", "")
			if _, err := strconv.ParseInt(str, 10, 64); err == nil {
				ints++
			} else if _, err := strconv.ParseFloat(str, 64); err == nil {
				decimals++
			} else {
				texts++
			}
		default:
			texts++
		}
	}

	if checked == 0 || texts > 0 {
		return TypeText
	}
	switch {
	case dates == checked:
		return TypeDate
	case ints == checked:
		return TypeInteger
	case ints+decimals == checked:
		return TypeDecimal
	default:
		return TypeText
	}
}
