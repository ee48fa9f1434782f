// Package sheet models raw spreadsheet grids and the sources that produce
// them.
//
// A Sheet is an immutable 2-D grid of typed cell values plus the merged-range
// metadata needed to reconstruct header hierarchies. Sources (workbook files,
// delimited text) produce Sheets; everything downstream (structure inference,
// grain classification) consumes them read-only.
package sheet

import (
	"strconv"
	"strings"
	"time"
)

// Sheet is one raw sheet read from a source file.
//
// Rows hold cell values in row-major order. A value is one of:
//   - nil (empty cell)
//   - string
//   - int64
//   - float64
//   - time.Time
//
// Rows may be ragged; use Value for bounds-safe access.
type Sheet struct {
	Name   string
	Rows   [][]any
	Merges []Merge
}

// Merge is a merged cell range. Coordinates are 0-based and inclusive.
// Value is the anchor cell's display text.
type Merge struct {
	MinRow, MinCol int
	MaxRow, MaxCol int
	Value          string
}

// Source supplies raw sheet grids from one opened file.
//
// Implementations do not fetch URLs or cache across files; callers own the
// file lifecycle and must Close when done.
type Source interface {
	SheetNames() []string
	Sheet(name string) (*Sheet, error)
	Close() error
}

// NumRows returns the number of rows in the grid.
func (s *Sheet) NumRows() int { return len(s.Rows) }

// NumCols returns the widest row length observed.
func (s *Sheet) NumCols() int {
	max := 0
	for _, r := range s.Rows {
		if len(r) > max {
			max = len(r)
		}
	}
	return max
}

// Value returns the cell value at (row, col), or nil when out of range.
func (s *Sheet) Value(row, col int) any {
	if row < 0 || row >= len(s.Rows) {
		return nil
	}
	r := s.Rows[row]
	if col < 0 || col >= len(r) {
		return nil
	}
	return r[col]
}

// Text returns the cell's display text with newlines flattened, resolving
// merged ranges to their anchor value. Empty cells return "".
func (s *Sheet) Text(row, col int) string {
	for _, m := range s.Merges {
		if row >= m.MinRow && row <= m.MaxRow && col >= m.MinCol && col <= m.MaxCol {
			return m.Value
		}
	}
	return DisplayText(s.Value(row, col))
}

// MergeAt reports the merged range covering (row, col), if any.
func (s *Sheet) MergeAt(row, col int) (Merge, bool) {
	for _, m := range s.Merges {
		if row >= m.MinRow && row <= m.MaxRow && col >= m.MinCol && col <= m.MaxCol {
			return m, true
		}
	}
	return Merge{}, false
}

// DisplayText renders a cell value for header/label purposes.
func DisplayText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(strings.ReplaceAll(t, "\n", " "))
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return strings.TrimSpace(strings.ReplaceAll(stringify(t), "\n", " "))
	}
}

func stringify(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

// dateLayouts are the formats sources try when deciding whether a string
// cell is really a date. Order matters: ISO first, then UK-style.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"2 January 2006",
	"02 Jan 2006",
	"Jan 2006",
	"January 2006",
}

// ParseCell converts a raw string cell into a typed value. Integers become
// int64, other numerics float64, recognizable dates time.Time, everything
// else stays a string. Empty strings map to nil.
func ParseCell(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	// Thousands separators are common in published tables.
	if plain := strings.ReplaceAll(s, ",", ""); plain != s {
		if i, err := strconv.ParseInt(plain, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(plain, 64); err == nil {
			return f
		}
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return s
}
