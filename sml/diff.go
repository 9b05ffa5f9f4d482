package sml

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/VantageDataChat/ooxmlcompare/internal/textnorm"
)

// Diff consumes two canonicalized workbooks and emits the ordered list of
// SmlChange records. It matches sheets, then for each
// matched or renamed pair runs row/column alignment (when enabled) and
// cell-level comparison.
func Diff(older, newer *WorkbookSignature, settings *Settings) []*Change {
	settings = resolveSettings(settings)
	var changes []*Change

	for _, sp := range MatchSheets(older.Sheets, newer.Sheets, older.SheetOrder, newer.SheetOrder, settings) {
		switch {
		case sp.Old == nil:
			changes = append(changes, &Change{ChangeType: SheetAdded, SheetName: sp.New.Name})
		case sp.New == nil:
			changes = append(changes, &Change{ChangeType: SheetDeleted, SheetName: sp.Old.Name})
		default:
			changes = append(changes, diffSheetPair(sp.Old, sp.New, sp.Renamed, settings)...)
		}
	}

	for _, c := range changes {
		if c.Description == "" {
			c.Description = describe(c.ChangeType, c)
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return changeSortKey(changes[i]) < changeSortKey(changes[j])
	})

	return changes
}

func changeSortKey(c *Change) string {
	addr := c.CellAddress
	if addr == "" {
		addr = fmt.Sprintf("%08d%08d", c.RowIndex, c.ColumnIndex)
	}
	return fmt.Sprintf("%s\x00%s\x00%03d", c.SheetName, addr, int(c.ChangeType))
}

// diffSheetPair emits the SheetRenamed change (if applicable), then row
// structural changes (gated on EnableRowAlignment and
// CompareSheetStructure), then cell-level changes, then column structural
// changes (gated on EnableColumnAlignment and CompareSheetStructure).
func diffSheetPair(old, new *WorksheetSignature, renamed bool, settings *Settings) []*Change {
	var changes []*Change

	if renamed {
		changes = append(changes, &Change{ChangeType: SheetRenamed, SheetName: new.Name, OldSheetName: old.Name})
	}

	if settings.EnableRowAlignment {
		rowMap := make(map[int]int)
		for _, ra := range AlignRows(old, new) {
			switch {
			case ra.Old != nil && ra.New != nil:
				rowMap[*ra.Old] = *ra.New
			case ra.Old != nil:
				if settings.CompareSheetStructure {
					changes = append(changes, &Change{ChangeType: RowDeleted, SheetName: new.Name, RowIndex: *ra.Old})
				}
			case ra.New != nil:
				if settings.CompareSheetStructure {
					changes = append(changes, &Change{ChangeType: RowInserted, SheetName: new.Name, RowIndex: *ra.New})
				}
			}
		}
		changes = append(changes, diffCellsAlignedRows(old, new, rowMap, settings)...)
	} else {
		changes = append(changes, diffCellsUnion(old, new, settings)...)
	}

	if settings.EnableColumnAlignment && settings.CompareSheetStructure {
		for _, ca := range AlignColumns(old, new) {
			switch {
			case ca.Old != nil && ca.New == nil:
				changes = append(changes, &Change{ChangeType: ColumnDeleted, SheetName: new.Name, ColumnIndex: *ca.Old})
			case ca.New != nil && ca.Old == nil:
				changes = append(changes, &Change{ChangeType: ColumnInserted, SheetName: new.Name, ColumnIndex: *ca.New})
			}
		}
	}

	return changes
}

// diffCellsAlignedRows compares cells within each aligned row pair, column
// by column, reporting each change at its new-side address.
func diffCellsAlignedRows(old, new *WorksheetSignature, rowMap map[int]int, settings *Settings) []*Change {
	oldCols := colsByRow(old)
	newCols := colsByRow(new)

	var changes []*Change
	for oldRow, newRow := range rowMap {
		cols := make(map[int]struct{})
		for _, c := range oldCols[oldRow] {
			cols[c] = struct{}{}
		}
		for _, c := range newCols[newRow] {
			cols[c] = struct{}{}
		}
		for col := range cols {
			oldCell := old.Cells[cellAddress(col, oldRow)]
			newAddr := cellAddress(col, newRow)
			newCell := new.Cells[newAddr]
			changes = append(changes, compareCells(oldCell, newCell, new.Name, newAddr, newRow, col, settings)...)
		}
	}
	return changes
}

// diffCellsUnion compares cells over the union of addresses on both sides,
// with no row/column alignment applied.
func diffCellsUnion(old, new *WorksheetSignature, settings *Settings) []*Change {
	union := make(map[string]struct{}, len(old.Cells)+len(new.Cells))
	for addr := range old.Cells {
		union[addr] = struct{}{}
	}
	for addr := range new.Cells {
		union[addr] = struct{}{}
	}

	var changes []*Change
	for addr := range union {
		oldCell := old.Cells[addr]
		newCell := new.Cells[addr]
		row, col := rowColOf(oldCell, newCell)
		changes = append(changes, compareCells(oldCell, newCell, new.Name, addr, row, col, settings)...)
	}
	return changes
}

func rowColOf(a, b *CellSignature) (row, col int) {
	if b != nil {
		return b.Row, b.Col
	}
	return a.Row, a.Col
}

func colsByRow(ws *WorksheetSignature) map[int][]int {
	out := make(map[int][]int)
	for _, c := range ws.Cells {
		out[c.Row] = append(out[c.Row], c.Col)
	}
	return out
}

// compareCells applies short-circuit ordering: content-hash
// early-out, then value, then formula, then format.
func compareCells(old, new *CellSignature, sheetName, addr string, row, col int, settings *Settings) []*Change {
	switch {
	case old == nil && new == nil:
		return nil
	case old == nil:
		return []*Change{{ChangeType: CellAdded, SheetName: sheetName, CellAddress: addr, RowIndex: row, ColumnIndex: col, NewValue: new.Value}}
	case new == nil:
		return []*Change{{ChangeType: CellDeleted, SheetName: sheetName, CellAddress: addr, RowIndex: row, ColumnIndex: col, OldValue: old.Value}}
	}

	formatsEqual := formatEqual(old.Format, new.Format)
	if old.ContentHash == new.ContentHash && old.Formula == new.Formula && (!settings.CompareFormatting || formatsEqual) {
		return nil
	}

	if settings.CompareValues && !valuesEqual(old.Value, new.Value, settings) {
		return []*Change{{ChangeType: ValueChanged, SheetName: sheetName, CellAddress: addr, RowIndex: row, ColumnIndex: col, OldValue: old.Value, NewValue: new.Value}}
	}

	// Raw text equality: whitespace-only formula edits still raise a change.
	if settings.CompareFormulas && old.Formula != new.Formula {
		return []*Change{{ChangeType: FormulaChanged, SheetName: sheetName, CellAddress: addr, RowIndex: row, ColumnIndex: col, OldValue: old.Formula, NewValue: new.Formula}}
	}

	if settings.CompareFormatting && !formatsEqual {
		return []*Change{{ChangeType: FormatChanged, SheetName: sheetName, CellAddress: addr, RowIndex: row, ColumnIndex: col, OldFormat: old.Format, NewFormat: new.Format}}
	}

	return nil
}

func valuesEqual(a, b string, settings *Settings) bool {
	if a == b {
		return true
	}
	if settings.CaseInsensitiveValues && textnorm.EqualFold(a, b) {
		return true
	}
	if settings.NumericTolerance > 0 {
		af, aerr := strconv.ParseFloat(a, 64)
		bf, berr := strconv.ParseFloat(b, 64)
		if aerr == nil && berr == nil {
			diff := af - bf
			if diff < 0 {
				diff = -diff
			}
			if diff <= settings.NumericTolerance {
				return true
			}
		}
	}
	return false
}

func formatEqual(a, b *CellFormatSignature) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
