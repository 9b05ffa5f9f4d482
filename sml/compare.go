package sml

import (
	"github.com/VantageDataChat/ooxmlcompare/errs"
	"github.com/VantageDataChat/ooxmlcompare/internal/ooxmlpkg"
)

// Summary holds the statistic counters exported alongside Changes. Field
// names are part of the stable JSON contract; the counters always sum to
// TotalChanges.
type Summary struct {
	TotalChanges int

	ValueChanges   int
	FormulaChanges int
	FormatChanges  int
	CellsAdded     int
	CellsDeleted   int

	SheetsAdded   int
	SheetsDeleted int
	SheetsRenamed int

	RowsInserted    int
	RowsDeleted     int
	ColumnsInserted int
	ColumnsDeleted  int
}

// Result is the outcome of Compare: the full change list plus its summary.
type Result struct {
	Summary Summary
	Changes []*Change
}

func summarize(changes []*Change) Summary {
	var s Summary
	s.TotalChanges = len(changes)
	for _, c := range changes {
		switch c.ChangeType {
		case ValueChanged:
			s.ValueChanges++
		case FormulaChanged:
			s.FormulaChanges++
		case FormatChanged:
			s.FormatChanges++
		case CellAdded:
			s.CellsAdded++
		case CellDeleted:
			s.CellsDeleted++
		case SheetAdded:
			s.SheetsAdded++
		case SheetDeleted:
			s.SheetsDeleted++
		case SheetRenamed:
			s.SheetsRenamed++
		case RowInserted:
			s.RowsInserted++
		case RowDeleted:
			s.RowsDeleted++
		case ColumnInserted:
			s.ColumnsInserted++
		case ColumnDeleted:
			s.ColumnsDeleted++
		}
	}
	return s
}

// Compare canonicalizes both packages, matches their sheets/rows, and emits
// the ordered change list.
func Compare(older, newer []byte, settings *Settings) (*Result, error) {
	if len(older) == 0 || len(newer) == 0 {
		return nil, errs.NewPrecondition("sml.Compare", "older and newer package bytes must both be non-empty")
	}
	settings = resolveSettings(settings)

	olderPkg, err := ooxmlpkg.Open(older)
	if err != nil {
		return nil, err
	}
	newerPkg, err := ooxmlpkg.Open(newer)
	if err != nil {
		return nil, err
	}

	olderSig, err := Canonicalize(olderPkg, settings)
	if err != nil {
		return nil, err
	}
	newerSig, err := Canonicalize(newerPkg, settings)
	if err != nil {
		return nil, err
	}

	changes := Diff(olderSig, newerSig, settings)
	return &Result{Summary: summarize(changes), Changes: changes}, nil
}

// ProduceMarked canonicalizes both packages once, diffs them, and renders
// the highlight overlays onto a copy of the newer package. The renderer
// consumes the already-built newer signature; it never re-canonicalizes.
// Byte-identical to newer when there are zero changes.
func ProduceMarked(older, newer []byte, settings *Settings) ([]byte, error) {
	if len(older) == 0 || len(newer) == 0 {
		return nil, errs.NewPrecondition("sml.ProduceMarked", "older and newer package bytes must both be non-empty")
	}
	settings = resolveSettings(settings)

	olderPkg, err := ooxmlpkg.Open(older)
	if err != nil {
		return nil, err
	}
	newerPkg, err := ooxmlpkg.Open(newer)
	if err != nil {
		return nil, err
	}
	olderSig, err := Canonicalize(olderPkg, settings)
	if err != nil {
		return nil, err
	}
	newerSig, err := Canonicalize(newerPkg, settings)
	if err != nil {
		return nil, err
	}

	changes := Diff(olderSig, newerSig, settings)
	return RenderMarked(newerPkg, newerSig, changes, settings)
}
