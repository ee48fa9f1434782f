package infer

import (
	"strings"

	"github.com/eamazon/datawarp-v3.1/internal/sheet"
)

// classifySheet decides whether a sheet holds tabular data, documentation,
// or nothing, using the sheet name plus density and row-shape analysis of
// a bounded window. Classification is computed exactly once per sheet.
//
// Ambiguous sheets classify as Unrecognised rather than guessing Tabular:
// loading a notes page as data is worse than skipping a strange table.
func classifySheet(s *sheet.Sheet) Classification {
	if s.NumRows() < 2 || s.NumCols() < 2 {
		return Empty
	}

	nameLower := strings.ToLower(s.Name)
	nameIsMeta := false
	for _, kw := range metadataSheetNames {
		if strings.Contains(nameLower, kw) {
			nameIsMeta = true
			break
		}
	}

	// Row-shape analysis: documentation sheets are dominated by rows with
	// zero or one populated cells; real tables have many multi-cell rows.
	var single, multi, totalCells int
	rowWindow := min(classifyRowWindow, s.NumRows())
	colWindow := min(classifyColWindow, s.NumCols())
	for r := 0; r < rowWindow; r++ {
		cells := 0
		for c := 0; c < colWindow; c++ {
			if s.Value(r, c) != nil {
				cells++
			}
		}
		totalCells += cells
		switch {
		case cells == 0:
			// empty row
		case cells <= 2:
			single++
		default:
			multi++
		}
	}

	density := float64(totalCells) / float64(rowWindow*colWindow)
	singleRatio := float64(single) / float64(maxInt(1, single+multi))

	if nameIsMeta && multi < 3 {
		return Metadata
	}
	if density < 0.15 || (singleRatio > 0.5 && multi < 5) {
		return Metadata
	}

	// A leading "Contents"/"Notes" cell marks documentation even when the
	// sheet name is unhelpful.
	if first := strings.ToLower(s.Text(0, 0)); first != "" && multi < 3 {
		for _, kw := range metadataSheetNames {
			if strings.Contains(first, kw) {
				return Metadata
			}
		}
	}

	if multi >= 3 {
		return Tabular
	}
	return Unrecognised
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
