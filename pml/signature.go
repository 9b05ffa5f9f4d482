package pml

import (
	"strings"

	"github.com/VantageDataChat/ooxmlcompare/internal/hashutil"
	"github.com/VantageDataChat/ooxmlcompare/internal/textnorm"
)

// PresentationSignature is the canonical, comparison-ready projection of an
// entire presentation package. Never mutated after
// construction.
type PresentationSignature struct {
	Cx        int64
	Cy        int64
	ThemeHash string // "" when absent
	Slides    []*SlideSignature
}

// SlideSignature is the canonical projection of one slide.
type SlideSignature struct {
	Index          int // 1-based, source (slide-id-list) order
	RelKey         string
	Part           string // resolved slide part path, e.g. "ppt/slides/slide3.xml"
	LayoutHash     string
	BackgroundHash string // "" when no background element
	Shapes         []*ShapeSignature
	Notes          *string // nil unless CompareNotes is enabled
	Title          string
	ContentHash    string
	Fingerprint    string
}

// PlaceholderInfo carries a shape's semantic placeholder role.
type PlaceholderInfo struct {
	Type  string
	Index *int
}

// TransformSignature is a shape's position/size/rotation/flip state, all in
// EMU except Rotation (integer degrees).
type TransformSignature struct {
	X, Y         int64
	Cx, Cy       int64
	Rotation     int
	FlipH, FlipV bool
}

// Near reports whether two transforms are within tol EMU of each other on
// every position/size axis.
func (t TransformSignature) Near(o TransformSignature, tol int64) bool {
	return absI64(t.X-o.X) <= tol && absI64(t.Y-o.Y) <= tol &&
		absI64(t.Cx-o.Cx) <= tol && absI64(t.Cy-o.Cy) <= tol
}

// SizeNear reports whether two transforms' extents are within tol EMU.
func (t TransformSignature) SizeNear(o TransformSignature, tol int64) bool {
	return absI64(t.Cx-o.Cx) <= tol && absI64(t.Cy-o.Cy) <= tol
}

// PositionNear reports whether two transforms' offsets are within tol EMU.
func (t TransformSignature) PositionNear(o TransformSignature, tol int64) bool {
	return absI64(t.X-o.X) <= tol && absI64(t.Y-o.Y) <= tol
}

func absI64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ShapeSignature is the canonical projection of one shape-tree element.
// Identity within a slide is (ID, Name).
type ShapeSignature struct {
	ID   uint32
	Name string
	Type ShapeType

	Placeholder *PlaceholderInfo
	Transform   TransformSignature
	ZOrder      int

	GeometryHash string // "" when not a custom/preset geometry shape

	Text  *TextBodySignature
	Image string // image blob hash, "" when not a Picture or hash degraded
	Table string // table content hash
	Chart string // chart content hash

	Children []*ShapeSignature // ordered, only for Group

	ContentHash string
}

// PlainText concatenates the shape's text body plain text, or "" if none.
func (s *ShapeSignature) PlainText() string {
	if s.Text == nil {
		return ""
	}
	return s.Text.PlainText
}

// TextBodySignature is the canonical projection of a shape's text body.
type TextBodySignature struct {
	Paragraphs []*ParagraphSignature
	PlainText  string
}

// ParagraphSignature is one paragraph's runs plus paragraph-level formatting.
type ParagraphSignature struct {
	Runs      []*RunSignature
	PlainText string
	Alignment string
	HasBullet bool
}

// RunSignature is one run of text plus its resolved run properties.
type RunSignature struct {
	Text  string
	Props RunPropertiesSignature
}

// RunPropertiesSignature is the resolved formatting of a single run.
type RunPropertiesSignature struct {
	Bold, Italic, Underline, Strikethrough bool
	FontName  string
	FontSize  float64
	FontColor string
}

// BuildShapeContentHash computes the aggregate content hash
// "type|plainText|imageHash|tableHash|chartHash".
func BuildShapeContentHash(typ ShapeType, plainText, imageHash, tableHash, chartHash string) string {
	return hashutil.Join(typ.String(), textnorm.Normalize(plainText), imageHash, tableHash, chartHash)
}

// BuildSlideContentHash computes "title | (name:type:text)*".
func BuildSlideContentHash(title string, shapes []*ShapeSignature) string {
	var b strings.Builder
	b.WriteString(textnorm.Normalize(title))
	for _, sh := range shapes {
		b.WriteString("|")
		b.WriteString(sh.Name)
		b.WriteString(":")
		b.WriteString(sh.Type.String())
		b.WriteString(":")
		b.WriteString(textnorm.Normalize(sh.PlainText()))
	}
	return hashutil.ContentString(b.String())
}

// BuildSlideFingerprint computes "title | (name:type:plainText)*" with
// shapes ordered by Z-order.
func BuildSlideFingerprint(title string, shapesByZOrder []*ShapeSignature) string {
	return BuildSlideContentHash(title, shapesByZOrder)
}
