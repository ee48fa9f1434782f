package infer

import (
	"github.com/eamazon/datawarp-v3.1/internal/sheet"
)

// ExtractRows materialises the data region as one value slice per output
// row, aligned with the structure's Columns.
//
// Within the region it skips fully empty rows and repeated header rows
// (sheets sometimes restate the header mid-table for print pagination).
// Suppression placeholders become nil so they load as NULL.
func ExtractRows(s *sheet.Sheet, t *TableStructure) [][]any {
	if !t.IsValid() {
		return nil
	}

	headerSig := headerSignature(s, t)
	rows := make([][]any, 0, t.DataRows())

	for row := t.DataStart; row <= t.DataEnd; row++ {
		out := make([]any, len(t.Columns))
		empty := true
		for i, col := range t.Columns {
			v := s.Value(row, col.Ordinal)
			if v == nil {
				continue
			}
			if str, ok := v.(string); ok && Suppressed(str) {
				continue
			}
			out[i] = v
			empty = false
		}
		if empty {
			continue
		}
		if headerSig != "" && rowSignature(s, t, row) == headerSig {
			continue
		}
		rows = append(rows, out)
	}

	return rows
}

// headerSignature fingerprints the final header row so restated headers
// inside the data region can be dropped.
func headerSignature(s *sheet.Sheet, t *TableStructure) string {
	if len(t.HeaderRows) == 0 {
		return ""
	}
	return rowSignature(s, t, t.HeaderRows[len(t.HeaderRows)-1])
}

func rowSignature(s *sheet.Sheet, t *TableStructure, row int) string {
	sig := ""
	for _, col := range t.Columns {
		sig += s.Text(row, col.Ordinal) + "\x1f"
	}
	return sig
}
