package sml

import (
	"sort"
	"strings"

	"github.com/VantageDataChat/ooxmlcompare/internal/hashutil"
	"github.com/VantageDataChat/ooxmlcompare/internal/textnorm"
)

// WorkbookSignature is the canonical, comparison-ready projection of an
// entire workbook package. Never mutated after construction.
type WorkbookSignature struct {
	Sheets       map[string]*WorksheetSignature
	DefinedNames map[string]string // name -> formula text
	SheetOrder   []string          // insertion order, not semantically significant
}

// WorksheetSignature is the canonical projection of one worksheet.
type WorksheetSignature struct {
	Name          string
	RelKey        string
	Part          string // package part name, e.g. "xl/worksheets/sheet1.xml"
	Cells         map[string]*CellSignature // address -> signature
	PopulatedRows []int                      // ascending, 1-based
	PopulatedCols []int                      // ascending, 1-based
	RowSignatures map[int]uint32             // populated iff row alignment enabled
	ColSignatures map[int]uint32             // populated iff column alignment enabled
	ContentHash   string
}

// CellSignature is the canonical projection of one populated cell.
type CellSignature struct {
	Address string
	Row     int
	Col     int
	Value   string // resolved textual value
	Formula string // raw formula text (outer whitespace trimmed only), "" when not a formula cell

	// NormalizedFormula is the formula's non-whitespace tokens, tokenized
	// with efp and rejoined. Used only as an input to ContentHash, the
	// differ's equality fast path; formula-change comparison uses Formula,
	// not this field.
	NormalizedFormula string

	Format      *CellFormatSignature
	ContentHash string
}

// CellFormatSignature is the 23 semantic style properties that together
// make up a cell's resolved format; two signatures are equal iff every field compares equal.
type CellFormatSignature struct {
	NumFmtCode string

	FontBold          bool
	FontItalic        bool
	FontUnderline     bool
	FontStrikethrough bool
	FontName          string
	FontSize          float64
	FontColor         string

	FillPattern string
	FillFgColor string
	FillBgColor string

	BorderTopStyle    string
	BorderTopColor    string
	BorderBottomStyle string
	BorderBottomColor string
	BorderLeftStyle   string
	BorderLeftColor   string
	BorderRightStyle  string
	BorderRightColor  string

	AlignHorizontal string
	AlignVertical   string
	AlignWrapText   bool
	AlignIndent     int
}

// BuildCellContentHash computes "value|formula".
func BuildCellContentHash(value, formula string) string {
	return hashutil.Join(textnorm.Normalize(value), formula)
}

// BuildSheetContentHash computes "(address:value)*" in row-major order,
// used for rename detection.
func BuildSheetContentHash(cells map[string]*CellSignature) string {
	ordered := make([]*CellSignature, 0, len(cells))
	for _, cell := range cells {
		ordered = append(ordered, cell)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Row != ordered[j].Row {
			return ordered[i].Row < ordered[j].Row
		}
		return ordered[i].Col < ordered[j].Col
	})

	var b strings.Builder
	for _, cell := range ordered {
		b.WriteString(cell.Address)
		b.WriteString(":")
		b.WriteString(textnorm.Normalize(cell.Value))
		b.WriteString("|")
	}
	return hashutil.ContentString(b.String())
}
