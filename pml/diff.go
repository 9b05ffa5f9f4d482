package pml

import "sort"

// Diff consumes two canonicalized presentations and emits the ordered list
// of PmlChange records. It matches slides, then matches
// shapes within each matched slide pair, applying every configured
// comparison toggle and tolerance.
func Diff(older, newer *PresentationSignature, settings *Settings) []*Change {
	settings = resolveSettings(settings)
	var changes []*Change

	if older.Cx != newer.Cx || older.Cy != newer.Cy {
		changes = append(changes, &Change{
			ChangeType: SlideSizeChanged,
			OldValue:   emuPairString(older.Cx, older.Cy),
			NewValue:   emuPairString(newer.Cx, newer.Cy),
		})
	}

	for _, sp := range MatchSlides(older.Slides, newer.Slides, settings) {
		switch {
		case sp.Old == nil:
			changes = append(changes, &Change{
				ChangeType: SlideInserted,
				SlideIndex: sp.New.Index,
				Description: describe(SlideInserted, sp.New.Index, "", "", ""),
			})
		case sp.New == nil:
			changes = append(changes, &Change{
				ChangeType:  SlideDeleted,
				SlideIndex:  sp.Old.Index,
				Description: describe(SlideDeleted, sp.Old.Index, "", "", ""),
			})
		default:
			changes = append(changes, diffMatchedSlide(sp.Old, sp.New, settings)...)
		}
	}

	for _, c := range changes {
		if c.Description == "" {
			c.Description = describe(c.ChangeType, c.SlideIndex, c.ShapeName, c.OldValue, c.NewValue)
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		a, b := changeSortKey(changes[i]), changeSortKey(changes[j])
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})

	return changes
}

func changeSortKey(c *Change) [3]int {
	idx := c.SlideIndex
	if idx == 0 {
		idx = c.OldSlideIndex
	}
	return [3]int{idx, int(c.ChangeType), int(c.ShapeID)}
}

func diffMatchedSlide(old, new *SlideSignature, settings *Settings) []*Change {
	var changes []*Change

	if old.Index != new.Index {
		changes = append(changes, &Change{
			ChangeType:    SlideMoved,
			SlideIndex:    new.Index,
			OldSlideIndex: old.Index,
			OldValue:      itoa64(int64(old.Index)),
		})
	}

	if settings.CompareSlideStructure && old.LayoutHash != new.LayoutHash {
		changes = append(changes, &Change{ChangeType: SlideLayoutChanged, SlideIndex: new.Index})
	}
	if settings.CompareSlideStructure && old.BackgroundHash != new.BackgroundHash {
		changes = append(changes, &Change{ChangeType: SlideBackgroundChanged, SlideIndex: new.Index})
	}
	if settings.CompareNotes && !notesEqual(old.Notes, new.Notes) {
		changes = append(changes, &Change{
			ChangeType: SlideNotesChanged,
			SlideIndex: new.Index,
			OldValue:   derefOr(old.Notes),
			NewValue:   derefOr(new.Notes),
		})
	}

	if settings.CompareShapeStructure {
		for _, shp := range MatchShapes(old.Shapes, new.Shapes, settings) {
			changes = append(changes, diffShapePair(shp, new.Index, settings)...)
		}
	}

	return changes
}

func notesEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func emuPairString(cx, cy int64) string {
	return itoa64(cx) + "x" + itoa64(cy)
}

func itoa64(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func diffShapePair(sp ShapePair, slideIdx int, settings *Settings) []*Change {
	switch {
	case sp.Old == nil:
		return []*Change{{
			ChangeType: ShapeInserted,
			SlideIndex: slideIdx,
			ShapeID:    sp.New.ID,
			ShapeName:  sp.New.Name,
		}}
	case sp.New == nil:
		return []*Change{{
			ChangeType: ShapeDeleted,
			SlideIndex: slideIdx,
			ShapeID:    sp.Old.ID,
			ShapeName:  sp.Old.Name,
		}}
	default:
		return diffShapeContent(sp.Old, sp.New, slideIdx, settings)
	}
}

// diffShapeContent emits transform/z-order/content changes for one matched
// shape pair, recursing into group children.
func diffShapeContent(old, new *ShapeSignature, slideIdx int, settings *Settings) []*Change {
	var changes []*Change
	tol := settings.PositionTolerance

	if settings.CompareShapeTransforms {
		if !old.Transform.PositionNear(new.Transform, tol) {
			nt, ot := new.Transform, old.Transform
			changes = append(changes, &Change{
				ChangeType: ShapeMoved, SlideIndex: slideIdx, ShapeID: new.ID, ShapeName: new.Name,
				OldTransform: &ot, NewTransform: &nt,
			})
		}
		if !old.Transform.SizeNear(new.Transform, tol) {
			nt, ot := new.Transform, old.Transform
			changes = append(changes, &Change{
				ChangeType: ShapeResized, SlideIndex: slideIdx, ShapeID: new.ID, ShapeName: new.Name,
				OldTransform: &ot, NewTransform: &nt,
			})
		}
		if old.Transform.Rotation != new.Transform.Rotation {
			changes = append(changes, &Change{ChangeType: ShapeRotated, SlideIndex: slideIdx, ShapeID: new.ID, ShapeName: new.Name})
		}
		if old.ZOrder != new.ZOrder {
			changes = append(changes, &Change{
				ChangeType: ShapeZOrderChanged, SlideIndex: slideIdx, ShapeID: new.ID, ShapeName: new.Name,
				OldZOrder: old.ZOrder, NewZOrder: new.ZOrder,
			})
		}
	}

	switch new.Type {
	case ShapeTextBox, ShapeAutoShape:
		changes = append(changes, diffTextContent(old, new, slideIdx, settings)...)
	case ShapePicture:
		if settings.CompareImageContent && old.Image != new.Image {
			changes = append(changes, &Change{ChangeType: ImageReplaced, SlideIndex: slideIdx, ShapeID: new.ID, ShapeName: new.Name})
		}
	case ShapeTable:
		if settings.CompareTables && old.Table != new.Table {
			changes = append(changes, &Change{ChangeType: TableContentChanged, SlideIndex: slideIdx, ShapeID: new.ID, ShapeName: new.Name})
		}
	case ShapeChart:
		if settings.CompareCharts && old.Chart != new.Chart {
			changes = append(changes, &Change{ChangeType: ChartDataChanged, SlideIndex: slideIdx, ShapeID: new.ID, ShapeName: new.Name})
		}
	case ShapeGroup:
		for _, cp := range MatchShapes(old.Children, new.Children, settings) {
			changes = append(changes, diffShapePair(cp, slideIdx, settings)...)
		}
	}

	return changes
}

// diffTextContent compares plain text first: equal texts fall through to
// an optional single formatting check.
func diffTextContent(old, new *ShapeSignature, slideIdx int, settings *Settings) []*Change {
	if !settings.CompareTextContent {
		return nil
	}
	oldText, newText := old.PlainText(), new.PlainText()
	if oldText != newText {
		return []*Change{{
			ChangeType: TextChanged, SlideIndex: slideIdx, ShapeID: new.ID, ShapeName: new.Name,
			OldValue: oldText, NewValue: newText,
		}}
	}
	if !settings.CompareTextFormatting || old.Text == nil || new.Text == nil {
		return nil
	}
	if textFormattingDiffers(old.Text, new.Text) {
		return []*Change{{ChangeType: TextFormattingChanged, SlideIndex: slideIdx, ShapeID: new.ID, ShapeName: new.Name}}
	}
	return nil
}

func textFormattingDiffers(a, b *TextBodySignature) bool {
	if len(a.Paragraphs) != len(b.Paragraphs) {
		return true
	}
	for i, pa := range a.Paragraphs {
		pb := b.Paragraphs[i]
		if pa.Alignment != pb.Alignment || pa.HasBullet != pb.HasBullet {
			return true
		}
		if len(pa.Runs) != len(pb.Runs) {
			return true
		}
		for j, ra := range pa.Runs {
			rb := pb.Runs[j]
			if ra.Props != rb.Props {
				return true
			}
		}
	}
	return false
}
