package sml

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/VantageDataChat/ooxmlcompare/errs"
	"github.com/VantageDataChat/ooxmlcompare/internal/hashutil"
	"github.com/VantageDataChat/ooxmlcompare/internal/ooxmlpkg"
)

func cellSig(col, row int, value string) *CellSignature {
	return &CellSignature{
		Address:     cellAddress(col, row),
		Row:         row,
		Col:         col,
		Value:       value,
		ContentHash: BuildCellContentHash(value, ""),
	}
}

func oneColumnSheet(name string, values map[int]string) *WorksheetSignature {
	cells := make(map[string]*CellSignature, len(values))
	rowSigs := make(map[int]uint32, len(values))
	var rows []int
	for row, v := range values {
		c := cellSig(1, row, v)
		cells[c.Address] = c
		rowSigs[row] = hashutil.Fast32(v)
		rows = append(rows, row)
	}
	return &WorksheetSignature{
		Name:          name,
		Cells:         cells,
		PopulatedRows: sortedIntKeys(intSet(rows)),
		PopulatedCols: []int{1},
		RowSignatures: rowSigs,
		ContentHash:   BuildSheetContentHash(cells),
	}
}

func intSet(vals []int) map[int]struct{} {
	out := make(map[int]struct{}, len(vals))
	for _, v := range vals {
		out[v] = struct{}{}
	}
	return out
}

func oneSheetWorkbook(ws *WorksheetSignature) *WorkbookSignature {
	return &WorkbookSignature{
		Sheets:     map[string]*WorksheetSignature{ws.Name: ws},
		SheetOrder: []string{ws.Name},
	}
}

func TestDiffIdenticalWorkbooksHasNoChanges(t *testing.T) {
	a := oneSheetWorkbook(oneColumnSheet("Sheet1", map[int]string{1: "A", 2: "B"}))
	b := oneSheetWorkbook(oneColumnSheet("Sheet1", map[int]string{1: "A", 2: "B"}))

	changes := Diff(a, b, DefaultSettings())
	if len(changes) != 0 {
		t.Fatalf("expected zero changes, got %d: %+v", len(changes), changes)
	}
}

func TestDiffValueChanged(t *testing.T) {
	a := oneSheetWorkbook(oneColumnSheet("Sheet1", map[int]string{1: "Hello"}))
	b := oneSheetWorkbook(oneColumnSheet("Sheet1", map[int]string{1: "Goodbye"}))

	changes := Diff(a, b, DefaultSettings())
	if len(changes) != 1 || changes[0].ChangeType != ValueChanged {
		t.Fatalf("expected exactly one ValueChanged, got %+v", changes)
	}
	if changes[0].OldValue != "Hello" || changes[0].NewValue != "Goodbye" {
		t.Fatalf("unexpected old/new values: %+v", changes[0])
	}
}

func TestDiffCaseInsensitiveValues(t *testing.T) {
	settings := DefaultSettings()
	settings.CaseInsensitiveValues = true

	a := oneSheetWorkbook(oneColumnSheet("Sheet1", map[int]string{1: "hello"}))
	b := oneSheetWorkbook(oneColumnSheet("Sheet1", map[int]string{1: "HELLO"}))

	changes := Diff(a, b, settings)
	if len(changes) != 0 {
		t.Fatalf("expected case-insensitive match to suppress ValueChanged, got %+v", changes)
	}
}

func TestDiffNumericTolerance(t *testing.T) {
	settings := DefaultSettings()
	settings.NumericTolerance = 0.01

	a := oneSheetWorkbook(oneColumnSheet("Sheet1", map[int]string{1: "1.0000"}))
	b := oneSheetWorkbook(oneColumnSheet("Sheet1", map[int]string{1: "1.0001"}))

	changes := Diff(a, b, settings)
	if len(changes) != 0 {
		t.Fatalf("expected value within tolerance to suppress ValueChanged, got %+v", changes)
	}

	settings.NumericTolerance = 0.00001
	changes = Diff(a, b, settings)
	if len(changes) != 1 || changes[0].ChangeType != ValueChanged {
		t.Fatalf("expected ValueChanged once tolerance is tightened, got %+v", changes)
	}
}

func TestMatchSheetsRenameByContentHash(t *testing.T) {
	oldWs := oneColumnSheet("Budget2025", map[int]string{1: "A", 2: "B"})
	newWs := oneColumnSheet("Budget2026", map[int]string{1: "A", 2: "B"})

	pairs := MatchSheets(
		map[string]*WorksheetSignature{oldWs.Name: oldWs},
		map[string]*WorksheetSignature{newWs.Name: newWs},
		[]string{oldWs.Name}, []string{newWs.Name},
		DefaultSettings(),
	)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 matched pair, got %d: %+v", len(pairs), pairs)
	}
	if !pairs[0].Renamed || pairs[0].Old == nil || pairs[0].New == nil {
		t.Fatalf("expected a renamed match, got %+v", pairs[0])
	}
}

func TestDiffRowInsertionWithAlignmentNoSpuriousValueChange(t *testing.T) {
	settings := DefaultSettings()
	settings.EnableRowAlignment = true
	settings.EnableSheetRenameDetection = false

	a := oneSheetWorkbook(oneColumnSheet("Sheet1", map[int]string{1: "A", 2: "B", 3: "C"}))
	b := oneSheetWorkbook(oneColumnSheet("Sheet1", map[int]string{1: "A", 2: "X", 3: "B", 4: "C"}))

	changes := Diff(a, b, settings)

	var inserted, valueChanged int
	for _, c := range changes {
		switch c.ChangeType {
		case RowInserted:
			inserted++
		case ValueChanged:
			valueChanged++
		}
	}
	if inserted != 1 {
		t.Fatalf("expected exactly one RowInserted, got %d: %+v", inserted, changes)
	}
	if valueChanged != 0 {
		t.Fatalf("expected no ValueChanged from the row shift, got %d: %+v", valueChanged, changes)
	}
}

func TestCanonicalizeMinimalXlsx(t *testing.T) {
	raw := buildMinimalXlsx(t)
	sig := mustCanonSml(t, raw)

	ws, ok := sig.Sheets["Sheet1"]
	if !ok {
		t.Fatalf("expected Sheet1 in signature, got %+v", sig.Sheets)
	}
	a1, ok := ws.Cells["A1"]
	if !ok || a1.Value != "Hello" {
		t.Fatalf("expected A1=Hello (shared string), got %+v", ws.Cells["A1"])
	}
	b1, ok := ws.Cells["B1"]
	if !ok || b1.Value != "42" {
		t.Fatalf("expected B1=42, got %+v", ws.Cells["B1"])
	}
	a2, ok := ws.Cells["A2"]
	if !ok || a2.Formula == "" {
		t.Fatalf("expected A2 to carry a formula, got %+v", ws.Cells["A2"])
	}
}

func TestRenderMarkedPassthroughOnZeroChanges(t *testing.T) {
	raw := buildMinimalXlsx(t)
	pkg := mustOpenSmlPkg(t, raw)

	out, err := RenderMarked(pkg, nil, nil, DefaultSettings())
	if err != nil {
		t.Fatalf("RenderMarked: %v", err)
	}
	if len(out) != len(raw) {
		t.Fatalf("expected byte-identical passthrough, got %d vs %d bytes", len(out), len(raw))
	}
}

func TestProduceMarkedAddsDiffSummarySheetAndComments(t *testing.T) {
	older := buildMinimalXlsx(t)
	newerSheet1 := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheetData>
<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1"><v>99</v></c></row>
<row r="2"><c r="A2"><f>B1*2</f><v>198</v></c></row>
</sheetData>
</worksheet>`
	newer := buildXlsxWithSheet1(t, newerSheet1)

	marked, err := ProduceMarked(older, newer, DefaultSettings())
	if err != nil {
		t.Fatalf("ProduceMarked: %v", err)
	}

	pkg, err := ooxmlpkg.Open(marked)
	if err != nil {
		t.Fatalf("ooxmlpkg.Open(marked): %v", err)
	}
	if !pkg.Exists("xl/worksheets/sheet2.xml") {
		t.Fatalf("expected a _DiffSummary worksheet to be appended")
	}
	if !pkg.Exists("xl/comments1.xml") || !pkg.Exists("xl/drawings/vmlDrawing1.vml") {
		t.Fatalf("expected a comments part and VML drawing for the changed cell")
	}

	sig, err := Canonicalize(pkg, DefaultSettings())
	if err != nil {
		t.Fatalf("Canonicalize(marked): %v", err)
	}
	if _, ok := sig.Sheets["_DiffSummary"]; !ok {
		t.Fatalf("expected _DiffSummary sheet in the rendered workbook, got %+v", sig.SheetOrder)
	}
}

func TestCompareIdenticalPackages(t *testing.T) {
	raw := buildMinimalXlsx(t)

	result, err := Compare(raw, raw, DefaultSettings())
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if result.Summary.TotalChanges != 0 {
		t.Fatalf("expected zero changes comparing a package to itself, got %+v", result.Changes)
	}

	marked, err := ProduceMarked(raw, raw, DefaultSettings())
	if err != nil {
		t.Fatalf("ProduceMarked: %v", err)
	}
	if len(marked) != len(raw) {
		t.Fatalf("expected marked output byte length %d, got %d", len(raw), len(marked))
	}
}

func TestCompareRejectsEmptyInput(t *testing.T) {
	raw := buildMinimalXlsx(t)

	if _, err := Compare(nil, raw, nil); err == nil {
		t.Fatal("expected precondition error for empty older input")
	} else if _, ok := err.(*errs.PreconditionError); !ok {
		t.Fatalf("expected *errs.PreconditionError, got %T", err)
	}
	if _, err := ProduceMarked(raw, nil, nil); err == nil {
		t.Fatal("expected precondition error for empty newer input")
	}
}

func TestSummarySumIdentity(t *testing.T) {
	a := &WorkbookSignature{
		Sheets: map[string]*WorksheetSignature{
			"Keep":   oneColumnSheet("Keep", map[int]string{1: "same", 2: "old"}),
			"Remove": oneColumnSheet("Remove", map[int]string{1: "gone"}),
		},
		SheetOrder: []string{"Keep", "Remove"},
	}
	b := &WorkbookSignature{
		Sheets: map[string]*WorksheetSignature{
			"Keep": oneColumnSheet("Keep", map[int]string{1: "same", 2: "new", 3: "extra"}),
			"Add":  oneColumnSheet("Add", map[int]string{1: "fresh"}),
		},
		SheetOrder: []string{"Keep", "Add"},
	}

	settings := DefaultSettings()
	settings.EnableSheetRenameDetection = false
	changes := Diff(a, b, settings)
	s := summarize(changes)

	sum := s.ValueChanges + s.FormulaChanges + s.FormatChanges +
		s.CellsAdded + s.CellsDeleted +
		s.SheetsAdded + s.SheetsDeleted + s.SheetsRenamed +
		s.RowsInserted + s.RowsDeleted + s.ColumnsInserted + s.ColumnsDeleted
	if sum != s.TotalChanges {
		t.Fatalf("counter sum %d != TotalChanges %d: %+v", sum, s.TotalChanges, s)
	}
	if s.SheetsAdded != 1 || s.SheetsDeleted != 1 || s.ValueChanges != 1 || s.CellsAdded != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestChangeJSONUsesEnumNames(t *testing.T) {
	c := &Change{ChangeType: ValueChanged, SheetName: "Sheet1", CellAddress: "A1", OldValue: "1", NewValue: "2"}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"ChangeType":"ValueChanged"`, `"SheetName":"Sheet1"`, `"CellAddress":"A1"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("expected JSON to contain %s, got %s", want, data)
		}
	}
}

func TestSheetRenameWithIdenticalContentEndToEnd(t *testing.T) {
	a := oneSheetWorkbook(oneColumnSheet("OldName", map[int]string{1: "Data1", 2: "Data2", 3: "Data3"}))
	b := oneSheetWorkbook(oneColumnSheet("NewName", map[int]string{1: "Data1", 2: "Data2", 3: "Data3"}))

	changes := Diff(a, b, DefaultSettings())
	if len(changes) != 1 || changes[0].ChangeType != SheetRenamed {
		t.Fatalf("expected exactly one SheetRenamed, got %+v", changes)
	}
	if changes[0].OldSheetName != "OldName" || changes[0].SheetName != "NewName" {
		t.Fatalf("unexpected rename locators: %+v", changes[0])
	}
}
