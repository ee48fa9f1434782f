// Package infer turns raw sheet grids into classified, header-resolved,
// typed table structures.
//
// The inferer is responsible for:
//   - Classifying a sheet (tabular data vs notes/contents vs empty)
//   - Detecting single- and multi-row header blocks, including headers
//     reconstructed from merged cells
//   - Finding where data starts and ends (footnotes, repeated headers)
//   - Inferring a conservative scalar type per column
//
// Design constraints:
//   - Inference is best-effort and must never fail the run: malformed
//     input degrades to an UNRECOGNISED structure with an error message,
//     and callers must check IsValid before proceeding.
//   - All scanning is bounded (fixed row/column windows) so a pathological
//     sheet cannot blow up memory or time.
package infer

import (
	"fmt"
	"strings"

	"github.com/eamazon/datawarp-v3.1/internal/mapping"
	"github.com/eamazon/datawarp-v3.1/internal/sheet"
)

// Classification is the coarse disposition of a sheet.
type Classification int

const (
	// Unrecognised sheets could not be parsed into a table; they are
	// skipped with an explanatory message rather than guessed at.
	Unrecognised Classification = iota
	// Tabular sheets proceed to structure inference and loading.
	Tabular
	// Metadata sheets (contents, notes, glossary) are retained only for
	// free-text context, never loaded as data.
	Metadata
	// Empty sheets have no usable content at all.
	Empty
)

func (c Classification) String() string {
	switch c {
	case Tabular:
		return "tabular"
	case Metadata:
		return "metadata"
	case Empty:
		return "empty"
	default:
		return "unrecognised"
	}
}

// ColumnType is the inferred scalar type of an output column.
type ColumnType int

const (
	// TypeText is the conservative default: mixed or ambiguous columns
	// are never silently coerced.
	TypeText ColumnType = iota
	TypeInteger
	TypeDecimal
	TypeDate
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeDecimal:
		return "decimal"
	case TypeDate:
		return "date"
	default:
		return "text"
	}
}

// ColumnSpec is one inferred output column. Immutable once inference
// completes.
type ColumnSpec struct {
	// Ordinal is the 0-based source grid column.
	Ordinal int
	// Name is the normalized identifier-safe name, unique within the
	// structure.
	Name string
	// Headers is the full chain of original header strings contributing
	// to this column, outermost first. Empty header cells are preserved
	// as "" so the chain always aligns with the header rows.
	Headers []string
	// Type is the inferred scalar type.
	Type ColumnType
	// Samples holds up to sampleCap observed data values for downstream
	// classification.
	Samples []any
}

// HeaderChain returns the non-empty, de-duplicated header path for
// display ("Region > Code").
func (c ColumnSpec) HeaderChain() []string {
	out := make([]string, 0, len(c.Headers))
	for _, h := range c.Headers {
		if h == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == h {
			continue
		}
		out = append(out, h)
	}
	return out
}

// TableStructure is the result of inference over one sheet.
type TableStructure struct {
	SheetName  string
	Class      Classification
	HeaderRows []int
	// DataStart/DataEnd are 0-based inclusive row bounds of the data
	// region. Meaningless unless IsValid.
	DataStart int
	DataEnd   int
	Columns   []ColumnSpec
	// Err carries the explanation when inference failed; inference
	// itself never returns an error.
	Err string
}

// IsValid reports whether the structure can be loaded: a tabular sheet
// with no inference error, at least one column, and at least one data row.
func (t *TableStructure) IsValid() bool {
	return t.Class == Tabular && t.Err == "" && len(t.Columns) > 0 && t.DataEnd >= t.DataStart
}

// DataRows returns the number of rows in the data region.
func (t *TableStructure) DataRows() int {
	if t.DataEnd < t.DataStart {
		return 0
	}
	return t.DataEnd - t.DataStart + 1
}

// ColumnNames returns the normalized names in column order.
func (t *TableStructure) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Scan bounds. Published sheets occasionally carry hundreds of decorative
// rows; every pass below stays inside these windows.
const (
	classifyRowWindow = 30
	classifyColWindow = 20
	headerRowWindow   = 30
	maxHeaderRows     = 5
	dataProbeWindow   = 5
	sampleCap         = 100
	typeSampleCap     = 25
	maxDataScanRows   = 10000
	emptyStreakStop   = 5
)

// metadataSheetNames mark sheets that are documentation rather than data.
var metadataSheetNames = []string{
	"contents", "notes", "glossary", "methodology", "definitions",
	"about", "cover", "title", "introduction",
}

// footerStopWords begin trailing footnote rows that end the data region.
var footerStopWords = []string{
	"note", "source", "copyright", "©", "please",
	"this worksheet", "this table",
}

// suppressedValues are statistical-disclosure placeholders. They are
// stripped before type inference and grain matching, and load as NULL.
var suppressedValues = map[string]bool{
	":": true, "..": true, ".": true, "-": true, "*": true,
	"c": true, "z": true, "x": true,
	"[c]": true, "[z]": true, "[x]": true,
	"n/a": true, "na": true, "unknown": true, "suppressed": true,
}

// Suppressed reports whether a display value is a disclosure placeholder.
func Suppressed(v string) bool {
	return suppressedValues[strings.ToLower(strings.TrimSpace(v))]
}

// Infer detects the complete table structure of one sheet.
//
// It never returns an error: unparseable sheets yield a structure with
// classification Unrecognised (or Empty/Metadata) and a populated Err.
func Infer(s *sheet.Sheet) TableStructure {
	class := classifySheet(s)
	if class != Tabular {
		return TableStructure{SheetName: s.Name, Class: class}
	}

	headerRows := detectHeaderRows(s)
	if len(headerRows) == 0 {
		return invalid(s.Name, "could not detect header rows")
	}

	dataStart := headerRows[len(headerRows)-1] + 1
	probeEnd := min(s.NumRows()-1, dataStart+dataProbeWindow)
	for dataStart <= probeEnd && !isDataRow(s, dataStart) {
		dataStart++
	}
	if dataStart >= s.NumRows() {
		return invalid(s.Name, "no data rows after header block")
	}

	columns := buildColumns(s, headerRows, dataStart)
	if len(columns) == 0 {
		return invalid(s.Name, "no data columns detected")
	}

	dataEnd := findDataEnd(s, dataStart)
	inferColumnTypes(s, columns, dataStart, dataEnd)

	return TableStructure{
		SheetName:  s.Name,
		Class:      Tabular,
		HeaderRows: headerRows,
		DataStart:  dataStart,
		DataEnd:    dataEnd,
		Columns:    columns,
	}
}

func invalid(name, msg string) TableStructure {
	return TableStructure{
		SheetName: name,
		Class:     Unrecognised,
		Err:       msg,
	}
}

// normalizeColumnName derives the unique normalized identifier for a
// column from its header chain.
func normalizeColumnName(headers []string, ordinal int, taken map[string]int) string {
	var parts []string
	for _, h := range headers {
		if h == "" {
			continue
		}
		if len(parts) > 0 && parts[len(parts)-1] == h {
			continue
		}
		parts = append(parts, h)
	}
	raw := strings.Join(parts, "_")
	if raw == "" {
		raw = fmt.Sprintf("column_%d", ordinal+1)
	}
	return mapping.Unique(mapping.Identifier(raw), taken)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
