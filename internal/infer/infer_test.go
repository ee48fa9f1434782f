package infer

import (
	"reflect"
	"testing"

	"github.com/eamazon/datawarp-v3.1/internal/sheet"
)

func trustSheet() *sheet.Sheet {
	return &sheet.Sheet{
		Name: "Table 1",
		Rows: [][]any{
			{"Region", nil, "Patients", "Vacancies"},
			{"Code", "Name", "Count", "Count"},
			{"R1A", "Alpha Trust", int64(120), int64(4)},
			{"R2B", "Beta Trust", int64(95), int64(2)},
			{"R3C", "Gamma Trust", int64(310), int64(9)},
		},
		Merges: []sheet.Merge{
			{MinRow: 0, MinCol: 0, MaxRow: 0, MaxCol: 1, Value: "Region"},
		},
	}
}

func TestInfer_MergedHeaderHierarchy(t *testing.T) {
	st := Infer(trustSheet())

	if !st.IsValid() {
		t.Fatalf("expected valid structure, got class=%s err=%q", st.Class, st.Err)
	}
	if !reflect.DeepEqual(st.HeaderRows, []int{0, 1}) {
		t.Fatalf("expected header rows [0 1], got %v", st.HeaderRows)
	}

	names := st.ColumnNames()
	want := []string{"region_code", "region_name", "patients_count", "vacancies_count"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected columns %v, got %v", want, names)
	}

	chain := st.Columns[1].HeaderChain()
	if !reflect.DeepEqual(chain, []string{"Region", "Name"}) {
		t.Fatalf("expected header chain [Region Name], got %v", chain)
	}
	if st.DataStart != 2 || st.DataEnd != 4 {
		t.Fatalf("expected data rows 2..4, got %d..%d", st.DataStart, st.DataEnd)
	}
}

func TestInfer_SkipsTitleRowsAboveHeader(t *testing.T) {
	s := &sheet.Sheet{
		Name: "Table 2a",
		Rows: [][]any{
			{"Table 2a: Workforce by organisation", nil, nil},
			{nil, nil, nil},
			{"Org Code", "Org Name", "Headcount"},
			{"R1A", "Alpha Trust", int64(120)},
			{"R2B", "Beta Trust", int64(95)},
			{"R3C", "Gamma Trust", int64(310)},
		},
	}

	st := Infer(s)
	if !st.IsValid() {
		t.Fatalf("expected valid structure, got class=%s err=%q", st.Class, st.Err)
	}
	if !reflect.DeepEqual(st.HeaderRows, []int{2}) {
		t.Fatalf("expected header row [2], got %v", st.HeaderRows)
	}
	if st.Columns[0].Name != "org_code" {
		t.Fatalf("expected first column org_code, got %q", st.Columns[0].Name)
	}
}

func TestInfer_FooterEndsDataRegion(t *testing.T) {
	s := &sheet.Sheet{
		Name: "Table 3",
		Rows: [][]any{
			{"Org Code", "Org Name", "Headcount"},
			{"R1A", "Alpha Trust", int64(120)},
			{"R2B", "Beta Trust", int64(95)},
			{nil, nil, nil},
			{"Source: NHS England workforce statistics", nil, nil},
			{"Note: counts exclude bank staff", nil, nil},
		},
	}

	st := Infer(s)
	if !st.IsValid() {
		t.Fatalf("expected valid structure, got class=%s err=%q", st.Class, st.Err)
	}
	if st.DataEnd != 2 {
		t.Fatalf("expected data to end at row 2, got %d", st.DataEnd)
	}
}

func TestClassifySheet(t *testing.T) {
	tests := []struct {
		name  string
		sheet *sheet.Sheet
		want  Classification
	}{
		{
			name:  "empty",
			sheet: &sheet.Sheet{Name: "Sheet1", Rows: [][]any{{nil}}},
			want:  Empty,
		},
		{
			name: "notes page",
			sheet: &sheet.Sheet{
				Name: "Notes",
				Rows: [][]any{
					{"Notes", nil, nil, nil},
					{"1. Figures are rounded.", nil, nil, nil},
					{"2. Suppressed values shown as *.", nil, nil, nil},
					{"3. See methodology for details.", nil, nil, nil},
				},
			},
			want: Metadata,
		},
		{
			name:  "dense table",
			sheet: trustSheet(),
			want:  Tabular,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifySheet(tc.sheet); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestInfer_MetadataSheetNotLoaded(t *testing.T) {
	s := &sheet.Sheet{
		Name: "Contents",
		Rows: [][]any{
			{"Contents", nil},
			{"Table 1", nil},
			{"Table 2", nil},
		},
	}
	st := Infer(s)
	if st.Class != Metadata {
		t.Fatalf("expected metadata classification, got %s", st.Class)
	}
	if st.IsValid() {
		t.Fatal("metadata sheet must not be valid for loading")
	}
}

func TestInferColumnTypes(t *testing.T) {
	s := &sheet.Sheet{
		Name: "Table 4",
		Rows: [][]any{
			{"Org Code", "Headcount", "Rate", "Year"},
			{"R1A", int64(120), 3.5, int64(2023)},
			{"R2B", int64(95), 4.1, int64(2024)},
			{"R3C", "*", 2.8, int64(2024)},
		},
	}

	st := Infer(s)
	if !st.IsValid() {
		t.Fatalf("expected valid structure, got class=%s err=%q", st.Class, st.Err)
	}

	got := map[string]ColumnType{}
	for _, c := range st.Columns {
		got[c.Name] = c.Type
	}
	want := map[string]ColumnType{
		"org_code":  TypeText,
		"headcount": TypeInteger,
		"rate":      TypeDecimal,
		// Name hint: period-like columns stay text even when numeric.
		"year_val": TypeText,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected types %v, got %v", want, got)
	}
}

func TestExtractRows(t *testing.T) {
	s := &sheet.Sheet{
		Name: "Table 5",
		Rows: [][]any{
			{"Org Code", "Org Name", "Headcount"},
			{"R1A", "Alpha Trust", int64(120)},
			{nil, nil, nil},
			{"Org Code", "Org Name", "Headcount"},
			{"R2B", "Beta Trust", "*"},
			{"R3C", "Gamma Trust", int64(310)},
		},
	}

	st := Infer(s)
	if !st.IsValid() {
		t.Fatalf("expected valid structure, got class=%s err=%q", st.Class, st.Err)
	}

	rows := ExtractRows(s, &st)
	want := [][]any{
		{"R1A", "Alpha Trust", int64(120)},
		{"R2B", "Beta Trust", nil},
		{"R3C", "Gamma Trust", int64(310)},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("expected rows %v, got %v", want, rows)
	}
}

func TestSuppressed(t *testing.T) {
	for _, v := range []string{"*", ":", "..", "[c]", "N/A", " z "} {
		if !Suppressed(v) {
			t.Errorf("expected %q to be suppressed", v)
		}
	}
	for _, v := range []string{"0", "R1A", "zero", ""} {
		if Suppressed(v) {
			t.Errorf("expected %q not to be suppressed", v)
		}
	}
}
