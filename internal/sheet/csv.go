package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// CSVFile is a Source that exposes one delimited text file as a single
// sheet, named after the file. Legacy publications are frequently encoded
// as Windows-1252 rather than UTF-8; non-UTF-8 input is transparently
// re-decoded.
type CSVFile struct {
	name  string
	sheet *Sheet
}

// OpenCSV reads a delimited file fully into memory as one Sheet.
func OpenCSV(path string) (*CSVFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s, err := ReadCSV(bytes.NewReader(b), name)
	if err != nil {
		return nil, err
	}
	return &CSVFile{name: name, sheet: s}, nil
}

// SheetNames returns the single pseudo-sheet name.
func (c *CSVFile) SheetNames() []string { return []string{c.name} }

// Sheet returns the parsed grid regardless of the name asked for; a CSV
// file only ever has one.
func (c *CSVFile) Sheet(string) (*Sheet, error) { return c.sheet, nil }

// Close is a no-op; the file is fully read at open time.
func (c *CSVFile) Close() error { return nil }

// ReadCSV parses delimited text into a typed grid. Records with mismatched
// field counts are kept as-is; structure inference deals with raggedness.
func ReadCSV(r io.Reader, name string) (*Sheet, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if !utf8.Valid(b) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), b)
		if err != nil {
			return nil, fmt.Errorf("decode csv as windows-1252: %w", err)
		}
		b = decoded
	}
	// Strip a UTF-8 BOM so the first header cell parses clean.
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})

	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]any
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		row := make([]any, len(rec))
		for i, cell := range rec {
			row[i] = ParseCell(cell)
		}
		rows = append(rows, row)
	}

	return &Sheet{Name: name, Rows: rows}, nil
}
