package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Workbook is a Source backed by an xlsx/xlsm file.
//
// Sheets are parsed lazily and cached: the same sheet is commonly read twice
// (once for structure inference, once for row extraction).
type Workbook struct {
	f      *excelize.File
	cached map[string]*Sheet
}

// OpenWorkbook opens an Excel workbook from disk.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return &Workbook{f: f, cached: map[string]*Sheet{}}, nil
}

// SheetNames lists the workbook's sheets in file order.
func (w *Workbook) SheetNames() []string {
	return w.f.GetSheetList()
}

// Sheet reads one sheet as a typed grid, including merged-range metadata.
func (w *Workbook) Sheet(name string) (*Sheet, error) {
	if s, ok := w.cached[name]; ok {
		return s, nil
	}

	raw, err := w.f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}

	rows := make([][]any, len(raw))
	for i, r := range raw {
		row := make([]any, len(r))
		for j, cell := range r {
			row[j] = ParseCell(cell)
		}
		rows[i] = row
	}

	merges, err := w.mergedRanges(name)
	if err != nil {
		return nil, err
	}

	s := &Sheet{Name: name, Rows: rows, Merges: merges}
	w.cached[name] = s
	return s, nil
}

// Close releases the underlying file handle.
func (w *Workbook) Close() error {
	w.cached = nil
	return w.f.Close()
}

func (w *Workbook) mergedRanges(name string) ([]Merge, error) {
	cells, err := w.f.GetMergeCells(name)
	if err != nil {
		return nil, fmt.Errorf("merged cells for %q: %w", name, err)
	}

	out := make([]Merge, 0, len(cells))
	for _, mc := range cells {
		sc, sr, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			continue
		}
		ec, er, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			continue
		}
		out = append(out, Merge{
			MinRow: sr - 1, MinCol: sc - 1,
			MaxRow: er - 1, MaxCol: ec - 1,
			Value: DisplayText(mc.GetCellValue()),
		})
	}
	return out, nil
}
