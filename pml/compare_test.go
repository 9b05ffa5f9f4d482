package pml

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/VantageDataChat/ooxmlcompare/errs"
	"github.com/VantageDataChat/ooxmlcompare/internal/ooxmlpkg"
)

func textShape(id uint32, name, text string, x, y, cx, cy int64, z int) *ShapeSignature {
	tb := &TextBodySignature{PlainText: text}
	s := &ShapeSignature{
		ID: id, Name: name, Type: ShapeTextBox,
		Transform: TransformSignature{X: x, Y: y, Cx: cx, Cy: cy},
		ZOrder:    z,
		Text:      tb,
	}
	s.ContentHash = BuildShapeContentHash(ShapeTextBox, text, "", "", "")
	return s
}

func oneSlidePresentation(title string, shapes []*ShapeSignature) *PresentationSignature {
	slide := &SlideSignature{Index: 1, Part: "ppt/slides/slide1.xml", Title: title, Shapes: shapes}
	slide.ContentHash = BuildSlideContentHash(title, shapes)
	slide.Fingerprint = BuildSlideFingerprint(title, shapes)
	return &PresentationSignature{Cx: 9144000, Cy: 6858000, Slides: []*SlideSignature{slide}}
}

func TestDiffIdenticalPresentationsHasNoChanges(t *testing.T) {
	shapes := []*ShapeSignature{textShape(2, "Title 1", "Hello", 100, 100, 1000, 500, 1)}
	a := oneSlidePresentation("Hello", shapes)
	b := oneSlidePresentation("Hello", []*ShapeSignature{textShape(2, "Title 1", "Hello", 100, 100, 1000, 500, 1)})

	changes := Diff(a, b, DefaultSettings())
	if len(changes) != 0 {
		t.Fatalf("expected zero changes, got %d: %+v", len(changes), changes)
	}
}

func TestDiffTextChanged(t *testing.T) {
	a := oneSlidePresentation("Title", []*ShapeSignature{textShape(2, "Box 1", "Hello", 0, 0, 1000, 500, 1)})
	b := oneSlidePresentation("Title", []*ShapeSignature{textShape(2, "Box 1", "Goodbye", 0, 0, 1000, 500, 1)})

	changes := Diff(a, b, DefaultSettings())
	if len(changes) != 1 || changes[0].ChangeType != TextChanged {
		t.Fatalf("expected exactly one TextChanged, got %+v", changes)
	}
	if changes[0].OldValue != "Hello" || changes[0].NewValue != "Goodbye" {
		t.Fatalf("unexpected old/new values: %+v", changes[0])
	}
}

func TestDiffShapeResizeOnly(t *testing.T) {
	settings := DefaultSettings()
	a := oneSlidePresentation("Title", []*ShapeSignature{textShape(2, "Box 1", "Hello", 0, 0, 1000000, 500000, 1)})
	b := oneSlidePresentation("Title", []*ShapeSignature{textShape(2, "Box 1", "Hello", 0, 0, 2000000, 500000, 1)})

	changes := Diff(a, b, settings)
	if len(changes) != 1 {
		t.Fatalf("expected exactly one change, got %d: %+v", len(changes), changes)
	}
	if changes[0].ChangeType != ShapeResized {
		t.Fatalf("expected ShapeResized, got %v", changes[0].ChangeType)
	}
}

func TestMatchSlidesExactTitleAcrossReorder(t *testing.T) {
	oldSlides := []*SlideSignature{
		{Index: 1, Title: "A", Fingerprint: "fa"},
		{Index: 2, Title: "B", Fingerprint: "fb"},
	}
	newSlides := []*SlideSignature{
		{Index: 1, Title: "B", Fingerprint: "fb"},
		{Index: 2, Title: "A", Fingerprint: "fa"},
	}

	pairs := MatchSlides(oldSlides, newSlides, DefaultSettings())
	for _, p := range pairs {
		if p.Old == nil || p.New == nil {
			t.Fatalf("expected no insert/delete pairs, got %+v", p)
		}
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 matched pairs, got %d", len(pairs))
	}
}

func TestRenderMarkedPassthroughOnZeroChanges(t *testing.T) {
	raw := buildMinimalPptx(t)
	pkg := mustOpenPkg(t, raw)
	out, err := RenderMarked(pkg, nil, nil, DefaultSettings())
	if err != nil {
		t.Fatalf("RenderMarked: %v", err)
	}
	if len(out) != len(raw) {
		t.Fatalf("expected byte-identical passthrough, got %d vs %d bytes", len(out), len(raw))
	}
}

func TestCanonicalizeMinimalPptx(t *testing.T) {
	raw := buildMinimalPptx(t)
	sig := mustCanon(t, raw)
	if len(sig.Slides) != 1 {
		t.Fatalf("expected 1 slide, got %d", len(sig.Slides))
	}
	slide := sig.Slides[0]
	if slide.Title != "Hello" {
		t.Fatalf("expected title %q, got %q", "Hello", slide.Title)
	}
	if len(slide.Shapes) != 1 {
		t.Fatalf("expected 1 shape, got %d", len(slide.Shapes))
	}
}

func TestRenderMarkedSynthesizesNotesPartWhenAbsent(t *testing.T) {
	raw := buildMinimalPptx(t)
	pkg := mustOpenPkg(t, raw)
	sig := mustCanon(t, raw)

	changes := []*Change{
		{ChangeType: TextChanged, SlideIndex: 1, ShapeID: 2, ShapeName: "Title 1", OldValue: "Hello", NewValue: "Goodbye"},
	}

	settings := DefaultSettings()
	settings.AddNotesAnnotations = true

	out, err := RenderMarked(pkg, sig, changes, settings)
	if err != nil {
		t.Fatalf("RenderMarked: %v", err)
	}

	outPkg, err := ooxmlpkg.Open(out)
	if err != nil {
		t.Fatalf("ooxmlpkg.Open(out): %v", err)
	}

	const notesPart = "ppt/notesSlides/notesSlide1.xml"
	if !outPkg.Exists(notesPart) {
		t.Fatalf("expected synthesized notes part %s to exist", notesPart)
	}
	notesXML, err := outPkg.Bytes(notesPart)
	if err != nil {
		t.Fatalf("Bytes(%s): %v", notesPart, err)
	}
	if !strings.Contains(string(notesXML), "Changes (1)") {
		t.Fatalf("expected notes part to contain change summary, got: %s", notesXML)
	}

	notesRelsPart := ooxmlpkg.RelsPathFor(notesPart)
	if !outPkg.Exists(notesRelsPart) {
		t.Fatalf("expected notes rels part %s to exist", notesRelsPart)
	}

	slideRels, err := outPkg.Relationships("ppt/slides/slide1.xml")
	if err != nil {
		t.Fatalf("Relationships(slide1): %v", err)
	}
	var found bool
	for _, r := range slideRels {
		if r.Type == relTypeNotesSlide {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected slide1 to gain a notesSlide relationship, got %+v", slideRels)
	}

	contentTypes, err := outPkg.Bytes("[Content_Types].xml")
	if err != nil {
		t.Fatalf("Bytes([Content_Types].xml): %v", err)
	}
	if !strings.Contains(string(contentTypes), "notesSlide1.xml") {
		t.Fatalf("expected content types override for notesSlide1.xml, got: %s", contentTypes)
	}
}

func TestCompareIdenticalPackages(t *testing.T) {
	raw := buildMinimalPptx(t)

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
	raw := buildMinimalPptx(t)

	if _, err := Compare(nil, raw, nil); err == nil {
		t.Fatal("expected precondition error for empty older input")
	} else if _, ok := err.(*errs.PreconditionError); !ok {
		t.Fatalf("expected *errs.PreconditionError, got %T", err)
	}
	if _, err := ProduceMarked(raw, nil, nil); err == nil {
		t.Fatal("expected precondition error for empty newer input")
	}
}

func TestChangeJSONUsesEnumNames(t *testing.T) {
	c := &Change{ChangeType: TextChanged, SlideIndex: 3, ShapeID: 7, ShapeName: "Body", OldValue: "a", NewValue: "b"}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"ChangeType":"TextChanged"`, `"SlideIndex":3`, `"ShapeName":"Body"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("expected JSON to contain %s, got %s", want, data)
		}
	}
}

func TestDiffIsDeterministicAcrossRuns(t *testing.T) {
	a := oneSlidePresentation("Title", []*ShapeSignature{
		textShape(2, "Box 1", "Hello", 0, 0, 1000, 500, 1),
		textShape(3, "Box 2", "World", 0, 600, 1000, 500, 2),
	})
	b := oneSlidePresentation("Title", []*ShapeSignature{
		textShape(2, "Box 1", "Hi", 0, 0, 1000, 500, 1),
		textShape(3, "Box 2", "Earth", 0, 600, 1000, 500, 2),
	})

	first := Diff(a, b, DefaultSettings())
	for i := 0; i < 10; i++ {
		again := Diff(a, b, DefaultSettings())
		if len(again) != len(first) {
			t.Fatalf("run %d: change count %d != %d", i, len(again), len(first))
		}
		for j := range first {
			if first[j].ChangeType != again[j].ChangeType || first[j].ShapeID != again[j].ShapeID {
				t.Fatalf("run %d: change %d differs: %+v vs %+v", i, j, first[j], again[j])
			}
		}
	}
}
