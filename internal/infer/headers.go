package infer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/eamazon/datawarp-v3.1/internal/sheet"
)

var (
	calendarYearRe = regexp.MustCompile(`^(19|20)\d{2}$`)
	fiscalYearRe   = regexp.MustCompile(`^\d{4}[-/]\d{2,4}$`)
	quarterRe      = regexp.MustCompile(`^[QH][1-4]$`)
	currencyRe     = regexp.MustCompile(`^[£$€]\d+$`)
	unitLabelRe    = regexp.MustCompile(`^(%|percent(age)?|rate|number|count|total|fte|wte|000s?)$`)
	superscripts   = strings.NewReplacer("¹", "", "²", "", "³", "", "⁴", "", "⁵", "")
)

// detectHeaderRows scans from the top for the contiguous block of header
// rows. A row is a header candidate when its populated cells are
// text-dominant (or year/quarter/unit labels, which head pivoted period
// columns); candidates stop accumulating at the first numeric-dominant
// data row or at the maxHeaderRows cap.
func detectHeaderRows(s *sheet.Sheet) []int {
	// Rows opening a horizontally merged range are header rows even when
	// sparsely populated.
	mergeRows := map[int]bool{}
	for _, m := range s.Merges {
		if m.MaxCol > m.MinCol {
			mergeRows[m.MinRow] = true
		}
	}

	firstHeader := -1
	limit := min(headerRowWindow, s.NumRows())

	for row := 0; row < limit; row++ {
		cells := countCells(s, row)
		if cells < 2 && !mergeRows[row] {
			continue
		}

		// Title and commentary lines sit above the real header block.
		valA := strings.ToLower(s.Text(row, 0))
		if strings.HasPrefix(valA, "table") || strings.HasPrefix(valA, "this") || strings.HasPrefix(valA, "note") {
			continue
		}

		var numeric, text, years, periods, units int
		colLimit := min(classifyColWindow, s.NumCols())
		for col := 0; col < colLimit; col++ {
			val := s.Text(row, col)
			if val == "" || Suppressed(val) {
				continue
			}
			clean := superscripts.Replace(strings.TrimSpace(val))
			switch {
			case isUnitLabel(clean):
				units++
			case calendarYearRe.MatchString(clean) || fiscalYearRe.MatchString(clean):
				years++
			case quarterRe.MatchString(strings.ToUpper(clean)):
				periods++
			case isRealNumeric(s.Value(row, col), clean):
				numeric++
			default:
				text++
			}
		}

		isHeader := mergeRows[row] ||
			(years >= 2 && numeric == 0) ||
			periods >= 2 ||
			units >= 2 ||
			(numeric == 0 && text >= 2)

		if firstHeader < 0 {
			if isHeader {
				firstHeader = row
			}
			continue
		}
		// The header block is the maximal run of consecutive header rows.
		if !isHeader {
			return headerRange(firstHeader, row)
		}
		if row-firstHeader+1 >= maxHeaderRows {
			return headerRange(firstHeader, firstHeader+maxHeaderRows)
		}
	}

	if firstHeader >= 0 {
		return []int{firstHeader}
	}
	return nil
}

func headerRange(first, end int) []int {
	out := make([]int, 0, end-first)
	for r := first; r < end; r++ {
		out = append(out, r)
	}
	return out
}

// buildColumns reconstructs one ColumnSpec per populated source column.
//
// For multi-row headers, Sheet.Text resolves merged ranges to their anchor
// value, so a "Region" cell merged across two sub-columns contributes
// "Region" to both chains; concatenating down the header block yields
// ["Region","Code"] / ["Region","Name"] style hierarchies.
func buildColumns(s *sheet.Sheet, headerRows []int, dataStart int) []ColumnSpec {
	maxCol := findMaxColumn(s, headerRows, dataStart)
	probeEnd := min(s.NumRows(), dataStart+dataProbeWindow)

	taken := map[string]int{}
	columns := make([]ColumnSpec, 0, maxCol)

	for col := 0; col < maxCol; col++ {
		headers := make([]string, len(headerRows))
		allEmpty := true
		for i, hr := range headerRows {
			headers[i] = s.Text(hr, col)
			if headers[i] != "" {
				allEmpty = false
			}
		}

		hasData := false
		for r := dataStart; r < probeEnd; r++ {
			if s.Value(r, col) != nil {
				hasData = true
				break
			}
		}

		// Spacer columns carry neither headers nor data.
		if !hasData && allEmpty {
			continue
		}

		columns = append(columns, ColumnSpec{
			Ordinal: col,
			Name:    normalizeColumnName(headers, col, taken),
			Headers: headers,
		})
	}

	return columns
}

// findMaxColumn finds the widest populated column across the header block
// and the first few data rows.
func findMaxColumn(s *sheet.Sheet, headerRows []int, dataStart int) int {
	maxCol := 1
	check := append([]int{}, headerRows...)
	for r := dataStart; r < min(s.NumRows(), dataStart+dataProbeWindow); r++ {
		check = append(check, r)
	}
	for _, r := range check {
		if r < 0 || r >= len(s.Rows) {
			continue
		}
		for c := len(s.Rows[r]) - 1; c >= 0; c-- {
			if s.Rows[r][c] != nil {
				if c+1 > maxCol {
					maxCol = c + 1
				}
				break
			}
		}
	}
	return maxCol
}

// findDataEnd scans downward for the last data row, stopping at trailing
// footnotes or a run of empty rows.
func findDataEnd(s *sheet.Sheet, dataStart int) int {
	dataEnd := dataStart
	emptyStreak := 0
	limit := min(s.NumRows(), maxDataScanRows)
	colLimit := min(5, s.NumCols())

	for row := dataStart; row < limit; row++ {
		hasContent := false
		for col := 0; col < colLimit; col++ {
			v := s.Value(row, col)
			if v == nil {
				continue
			}
			hasContent = true
			if isFooterText(sheet.DisplayText(v)) {
				return dataEnd
			}
		}
		if hasContent {
			dataEnd = row
			emptyStreak = 0
		} else {
			emptyStreak++
			if emptyStreak >= emptyStreakStop {
				break
			}
		}
	}
	return dataEnd
}

func isFooterText(v string) bool {
	lower := strings.ToLower(strings.TrimSpace(v))
	for _, sw := range footerStopWords {
		if strings.HasPrefix(lower, sw) {
			return true
		}
	}
	// Long starred annotations are footnotes too.
	return strings.HasPrefix(lower, "*") && len(lower) > 50
}

// isDataRow reports whether a row looks like data: at least two numeric
// cells, or mostly populated with at least one numeric.
func isDataRow(s *sheet.Sheet, row int) bool {
	var numeric, total int
	colLimit := min(classifyColWindow, s.NumCols())
	for col := 0; col < colLimit; col++ {
		v := s.Value(row, col)
		if v == nil {
			continue
		}
		total++
		disp := sheet.DisplayText(v)
		if Suppressed(disp) {
			continue
		}
		if isRealNumeric(v, disp) {
			numeric++
		}
	}
	return numeric >= 2 || (total >= 3 && numeric >= 1)
}

func countCells(s *sheet.Sheet, row int) int {
	n := 0
	for col := 0; col < min(50, s.NumCols()); col++ {
		if s.Value(row, col) != nil {
			n++
		}
	}
	return n
}

func isUnitLabel(v string) bool {
	if currencyRe.MatchString(v) {
		return true
	}
	return unitLabelRe.MatchString(strings.ToLower(v))
}

// isRealNumeric reports whether a value is genuine numeric data, as
// opposed to a year, fiscal-year, or unit label masquerading as a number.
func isRealNumeric(v any, display string) bool {
	clean := superscripts.Replace(strings.TrimSpace(display))
	if calendarYearRe.MatchString(clean) || fiscalYearRe.MatchString(clean) || isUnitLabel(clean) {
		return false
	}
	switch v.(type) {
	case int64, float64:
		return true
	case time.Time:
		return false
	}
	stripped := strings.NewReplacer(",", "", "£", "", "$", "", "%", "").Replace(clean)
	_, err := strconv.ParseFloat(stripped, 64)
	return err == nil
}
