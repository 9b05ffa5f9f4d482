package pml

import (
	"github.com/VantageDataChat/ooxmlcompare/errs"
	"github.com/VantageDataChat/ooxmlcompare/internal/ooxmlpkg"
)

// Summary holds the statistic counters exported alongside Changes.
// Field names are part of the stable JSON contract.
type Summary struct {
	TotalChanges int

	SlidesInserted int
	SlidesDeleted  int
	SlidesMoved    int

	ShapesInserted int
	ShapesDeleted  int

	TextChanges       int
	FormattingChanges int
	TransformChanges  int
	ImageChanges      int
	TableChanges      int
	ChartChanges      int
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
		case SlideInserted:
			s.SlidesInserted++
		case SlideDeleted:
			s.SlidesDeleted++
		case SlideMoved:
			s.SlidesMoved++
		case ShapeInserted:
			s.ShapesInserted++
		case ShapeDeleted:
			s.ShapesDeleted++
		case TextChanged:
			s.TextChanges++
		case TextFormattingChanged:
			s.FormattingChanges++
		case ShapeMoved, ShapeResized, ShapeRotated, ShapeZOrderChanged:
			s.TransformChanges++
		case ImageReplaced:
			s.ImageChanges++
		case TableContentChanged:
			s.TableChanges++
		case ChartDataChanged:
			s.ChartChanges++
		}
	}
	return s
}

// Compare canonicalizes both packages, matches their slides/shapes, and
// emits the ordered change list.
func Compare(older, newer []byte, settings *Settings) (*Result, error) {
	if len(older) == 0 || len(newer) == 0 {
		return nil, errs.NewPrecondition("pml.Compare", "older and newer package bytes must both be non-empty")
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
// the overlays onto a copy of the newer package. The renderer consumes the
// already-built newer signature; it never re-canonicalizes. Byte-identical
// to newer when there are zero changes.
func ProduceMarked(older, newer []byte, settings *Settings) ([]byte, error) {
	if len(older) == 0 || len(newer) == 0 {
		return nil, errs.NewPrecondition("pml.ProduceMarked", "older and newer package bytes must both be non-empty")
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
