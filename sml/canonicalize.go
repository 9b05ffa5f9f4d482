package sml

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/efp"

	"github.com/VantageDataChat/ooxmlcompare/errs"
	"github.com/VantageDataChat/ooxmlcompare/internal/hashutil"
	"github.com/VantageDataChat/ooxmlcompare/internal/ooxmlpkg"
	"github.com/VantageDataChat/ooxmlcompare/internal/textnorm"
)

const (
	relTypeWorksheet     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet"
	relTypeSharedStrings = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings"
	relTypeStyles        = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
)

// Canonicalize reads an OOXML workbook package and produces its
// WorkbookSignature.
func Canonicalize(pkg *ooxmlpkg.Package, settings *Settings) (*WorkbookSignature, error) {
	settings = resolveSettings(settings)

	var wb xlsxWorkbook
	if err := pkg.XML("xl/workbook.xml", &wb); err != nil {
		return nil, errs.NewPackage("sml.Canonicalize", "xl/workbook.xml", err)
	}
	if len(wb.Sheets.Sheet) == 0 {
		return nil, errs.NewPackage("sml.Canonicalize", "xl/workbook.xml", fmt.Errorf("workbook has no sheets element"))
	}

	wbRels, err := pkg.Relationships("xl/workbook.xml")
	if err != nil {
		return nil, errs.NewPackage("sml.Canonicalize", "xl/_rels/workbook.xml.rels", err)
	}
	relTarget := make(map[string]string, len(wbRels))
	for _, rel := range wbRels {
		relTarget[rel.ID] = ooxmlpkg.ResolveTarget("xl/workbook.xml", rel.Target)
	}

	sharedStrings := loadSharedStrings(pkg, settings)
	styles := loadStyleTable(pkg, settings)

	sig := &WorkbookSignature{
		Sheets:       make(map[string]*WorksheetSignature, len(wb.Sheets.Sheet)),
		DefinedNames: make(map[string]string, len(wb.DefinedNames.DefinedName)),
	}
	for _, dn := range wb.DefinedNames.DefinedName {
		sig.DefinedNames[dn.Name] = strings.TrimSpace(dn.Formula)
	}

	for _, sheetRef := range wb.Sheets.Sheet {
		target, ok := relTarget[sheetRef.RID]
		if !ok || target == "" {
			// Unresolvable sheet relationship: skip the sheet, keep going.
			continue
		}
		wsSig, err := canonicalizeSheet(pkg, target, sheetRef.Name, sheetRef.RID, sharedStrings, styles, settings)
		if err != nil {
			settings.log(err)
			continue
		}
		sig.Sheets[sheetRef.Name] = wsSig
		sig.SheetOrder = append(sig.SheetOrder, sheetRef.Name)
	}

	return sig, nil
}

// --- xl/workbook.xml ---

type xlsxWorkbook struct {
	XMLName xml.Name `xml:"workbook"`
	Sheets  struct {
		Sheet []xlsxSheetRef `xml:"sheet"`
	} `xml:"sheets"`
	DefinedNames struct {
		DefinedName []xlsxDefinedName `xml:"definedName"`
	} `xml:"definedNames"`
}

type xlsxSheetRef struct {
	Name    string `xml:"name,attr"`
	SheetID int    `xml:"sheetId,attr"`
	RID     string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
}

type xlsxDefinedName struct {
	Name    string `xml:"name,attr"`
	Formula string `xml:",chardata"`
}

// --- xl/sharedStrings.xml ---

type xlsxSST struct {
	XMLName xml.Name `xml:"sst"`
	SI      []xlsxSI `xml:"si"`
}

type xlsxSI struct {
	T string  `xml:"t"`
	R []xlsxR `xml:"r"`
}

type xlsxR struct {
	T string `xml:"t"`
}

func loadSharedStrings(pkg *ooxmlpkg.Package, settings *Settings) []string {
	part := findPartByType(pkg, relTypeSharedStrings, "xl/sharedStrings.xml")
	if part == "" || !pkg.Exists(part) {
		return nil
	}
	var sst xlsxSST
	if err := pkg.XML(part, &sst); err != nil {
		settings.log(errs.NewPartParse("sml.loadSharedStrings", part, err))
		return nil
	}
	out := make([]string, len(sst.SI))
	for i, si := range sst.SI {
		if len(si.R) > 0 {
			var b strings.Builder
			for _, r := range si.R {
				b.WriteString(r.T)
			}
			out[i] = b.String()
		} else {
			out[i] = si.T
		}
	}
	return out
}

// findPartByType resolves a workbook-level relationship by its type,
// falling back to the conventional part path when no relationship declares
// one.
func findPartByType(pkg *ooxmlpkg.Package, relType, fallback string) string {
	rels, err := pkg.Relationships("xl/workbook.xml")
	if err != nil {
		return fallback
	}
	for _, r := range rels {
		if r.Type == relType {
			return ooxmlpkg.ResolveTarget("xl/workbook.xml", r.Target)
		}
	}
	return fallback
}

// --- xl/styles.xml ---

type xlsxBoolFlag struct {
	Val *string `xml:"val,attr"`
}

func (f *xlsxBoolFlag) bool() bool {
	if f == nil {
		return false
	}
	if f.Val == nil {
		return true
	}
	return *f.Val != "0" && *f.Val != "false"
}

type xlsxColorXML struct {
	RGB     string `xml:"rgb,attr"`
	Indexed *int   `xml:"indexed,attr"`
	Theme   *int   `xml:"theme,attr"`
}

type xlsxFontXML struct {
	B      *xlsxBoolFlag `xml:"b"`
	I      *xlsxBoolFlag `xml:"i"`
	U      *xlsxBoolFlag `xml:"u"`
	Strike *xlsxBoolFlag `xml:"strike"`
	Sz     struct {
		Val float64 `xml:"val,attr"`
	} `xml:"sz"`
	Color xlsxColorXML `xml:"color"`
	Name  struct {
		Val string `xml:"val,attr"`
	} `xml:"name"`
}

type xlsxFillXML struct {
	PatternFill struct {
		PatternType string       `xml:"patternType,attr"`
		FgColor     xlsxColorXML `xml:"fgColor"`
		BgColor     xlsxColorXML `xml:"bgColor"`
	} `xml:"patternFill"`
}

type xlsxBorderLineXML struct {
	Style string       `xml:"style,attr"`
	Color xlsxColorXML `xml:"color"`
}

type xlsxBorderXML struct {
	Left   xlsxBorderLineXML `xml:"left"`
	Right  xlsxBorderLineXML `xml:"right"`
	Top    xlsxBorderLineXML `xml:"top"`
	Bottom xlsxBorderLineXML `xml:"bottom"`
}

type xlsxNumFmtXML struct {
	NumFmtID   int    `xml:"numFmtId,attr"`
	FormatCode string `xml:"formatCode,attr"`
}

type xlsxXfXML struct {
	NumFmtID  int  `xml:"numFmtId,attr"`
	FontID    int  `xml:"fontId,attr"`
	FillID    int  `xml:"fillId,attr"`
	BorderID  int  `xml:"borderId,attr"`
	Alignment *struct {
		Horizontal string `xml:"horizontal,attr"`
		Vertical   string `xml:"vertical,attr"`
		WrapText   bool   `xml:"wrapText,attr"`
		Indent     int    `xml:"indent,attr"`
	} `xml:"alignment"`
}

type xlsxStyleSheet struct {
	XMLName xml.Name `xml:"styleSheet"`
	NumFmts *struct {
		NumFmt []xlsxNumFmtXML `xml:"numFmt"`
	} `xml:"numFmts"`
	Fonts struct {
		Font []xlsxFontXML `xml:"font"`
	} `xml:"fonts"`
	Fills struct {
		Fill []xlsxFillXML `xml:"fill"`
	} `xml:"fills"`
	Borders struct {
		Border []xlsxBorderXML `xml:"border"`
	} `xml:"borders"`
	CellXfs struct {
		Xf []xlsxXfXML `xml:"xf"`
	} `xml:"cellXfs"`
}

// styleTable is the expanded lookup state used to resolve a cell's style
// index into a CellFormatSignature.
type styleTable struct {
	customNumFmts map[int]string
	fonts         []xlsxFontXML
	fills         []xlsxFillXML
	borders       []xlsxBorderXML
	cellXfs       []xlsxXfXML
	cache         map[int]*CellFormatSignature
}

func loadStyleTable(pkg *ooxmlpkg.Package, settings *Settings) *styleTable {
	st := &styleTable{customNumFmts: map[int]string{}, cache: map[int]*CellFormatSignature{}}

	part := findPartByType(pkg, relTypeStyles, "xl/styles.xml")
	if part == "" || !pkg.Exists(part) {
		return st
	}
	var sheet xlsxStyleSheet
	if err := pkg.XML(part, &sheet); err != nil {
		settings.log(errs.NewPartParse("sml.loadStyleTable", part, err))
		return st
	}
	if sheet.NumFmts != nil {
		for _, nf := range sheet.NumFmts.NumFmt {
			st.customNumFmts[nf.NumFmtID] = nf.FormatCode
		}
	}
	st.fonts = sheet.Fonts.Font
	st.fills = sheet.Fills.Fill
	st.borders = sheet.Borders.Border
	st.cellXfs = sheet.CellXfs.Xf
	return st
}

func defaultFormat() *CellFormatSignature {
	return &CellFormatSignature{NumFmtCode: "General"}
}

// expand resolves a cell-xf index into a fully expanded CellFormatSignature.
// Out-of-range indices resolve to the system default.
func (st *styleTable) expand(idx int) *CellFormatSignature {
	if st == nil || idx < 0 || idx >= len(st.cellXfs) {
		return defaultFormat()
	}
	if cached, ok := st.cache[idx]; ok {
		return cached
	}

	xf := st.cellXfs[idx]
	f := &CellFormatSignature{NumFmtCode: st.numFmtCode(xf.NumFmtID)}

	if font, ok := st.font(xf.FontID); ok {
		f.FontBold = font.B.bool()
		f.FontItalic = font.I.bool()
		f.FontUnderline = font.U.bool()
		f.FontStrikethrough = font.Strike.bool()
		f.FontName = font.Name.Val
		f.FontSize = font.Sz.Val
		f.FontColor = resolveColorXML(font.Color)
	}

	if fill, ok := st.fill(xf.FillID); ok {
		f.FillPattern = fill.PatternFill.PatternType
		f.FillFgColor = resolveColorXML(fill.PatternFill.FgColor)
		f.FillBgColor = resolveColorXML(fill.PatternFill.BgColor)
	}

	if border, ok := st.border(xf.BorderID); ok {
		f.BorderTopStyle = border.Top.Style
		f.BorderTopColor = resolveColorXML(border.Top.Color)
		f.BorderBottomStyle = border.Bottom.Style
		f.BorderBottomColor = resolveColorXML(border.Bottom.Color)
		f.BorderLeftStyle = border.Left.Style
		f.BorderLeftColor = resolveColorXML(border.Left.Color)
		f.BorderRightStyle = border.Right.Style
		f.BorderRightColor = resolveColorXML(border.Right.Color)
	}

	if xf.Alignment != nil {
		f.AlignHorizontal = xf.Alignment.Horizontal
		f.AlignVertical = xf.Alignment.Vertical
		f.AlignWrapText = xf.Alignment.WrapText
		f.AlignIndent = xf.Alignment.Indent
	}

	st.cache[idx] = f
	return f
}

func (st *styleTable) numFmtCode(id int) string {
	if code, ok := st.customNumFmts[id]; ok {
		return code
	}
	return resolveBuiltinNumFmt(id)
}

func (st *styleTable) font(idx int) (*xlsxFontXML, bool) {
	if idx < 0 || idx >= len(st.fonts) {
		return nil, false
	}
	return &st.fonts[idx], true
}

func (st *styleTable) fill(idx int) (*xlsxFillXML, bool) {
	if idx < 0 || idx >= len(st.fills) {
		return nil, false
	}
	return &st.fills[idx], true
}

func (st *styleTable) border(idx int) (*xlsxBorderXML, bool) {
	if idx < 0 || idx >= len(st.borders) {
		return nil, false
	}
	return &st.borders[idx], true
}

// resolveColorXML normalizes a color element to RGB hex, falling back to
// the 64-entry indexed palette, then a theme reference.
func resolveColorXML(c xlsxColorXML) string {
	if c.RGB != "" {
		return normalizeRGB(c.RGB)
	}
	if c.Indexed != nil {
		if rgb := resolveIndexedColor(*c.Indexed); rgb != "" {
			return rgb
		}
	}
	if c.Theme != nil {
		return fmt.Sprintf("theme:%d", *c.Theme)
	}
	return ""
}

func normalizeRGB(s string) string {
	s = strings.ToUpper(s)
	if len(s) == 8 {
		return s[2:] // strip leading alpha channel (AARRGGBB -> RRGGBB)
	}
	return s
}

// --- xl/worksheets/sheetN.xml ---

type xlsxWorksheet struct {
	XMLName   xml.Name `xml:"worksheet"`
	SheetData struct {
		Row []xlsxRow `xml:"row"`
	} `xml:"sheetData"`
}

type xlsxRow struct {
	R int        `xml:"r,attr"`
	C []xlsxCell `xml:"c"`
}

type xlsxCell struct {
	R  string         `xml:"r,attr"`
	T  string         `xml:"t,attr"`
	S  int            `xml:"s,attr"`
	V  string         `xml:"v"`
	F  string         `xml:"f"`
	Is *xlsxInlineStr `xml:"is"`
}

type xlsxInlineStr struct {
	T string  `xml:"t"`
	R []xlsxR `xml:"r"`
}

func canonicalizeSheet(pkg *ooxmlpkg.Package, part, name, relKey string, sharedStrings []string, styles *styleTable, settings *Settings) (*WorksheetSignature, error) {
	data, err := pkg.Bytes(part)
	if err != nil {
		return nil, errs.NewPartParse("sml.canonicalizeSheet", part, err)
	}
	var ws xlsxWorksheet
	if err := xml.Unmarshal(data, &ws); err != nil {
		return nil, errs.NewPartParse("sml.canonicalizeSheet", part, err)
	}

	sig := &WorksheetSignature{Name: name, RelKey: relKey, Part: part, Cells: make(map[string]*CellSignature)}
	rowCells := make(map[int][]*CellSignature)
	colCells := make(map[int][]*CellSignature)
	rowSet := make(map[int]struct{})
	colSet := make(map[int]struct{})

	for _, row := range ws.SheetData.Row {
		nextCol := 1
		for _, c := range row.C {
			col, rowIdx, ok := splitAddress(c.R)
			if !ok {
				col, rowIdx = nextCol, row.R
			}
			nextCol = col + 1

			cellSig := buildCellSignature(c, col, rowIdx, sharedStrings, styles)
			sig.Cells[cellSig.Address] = cellSig
			rowCells[rowIdx] = append(rowCells[rowIdx], cellSig)
			colCells[col] = append(colCells[col], cellSig)
			rowSet[rowIdx] = struct{}{}
			colSet[col] = struct{}{}
		}
	}

	sig.PopulatedRows = sortedIntKeys(rowSet)
	sig.PopulatedCols = sortedIntKeys(colSet)

	if settings.EnableRowAlignment {
		sig.RowSignatures = buildAxisSignatures(sig.PopulatedRows, rowCells, settings.RowSignatureSampleSize, func(c *CellSignature) int { return c.Col })
	}
	if settings.EnableColumnAlignment {
		sig.ColSignatures = buildAxisSignatures(sig.PopulatedCols, colCells, settings.RowSignatureSampleSize, func(c *CellSignature) int { return c.Row })
	}

	sig.ContentHash = BuildSheetContentHash(sig.Cells)
	return sig, nil
}

func buildCellSignature(c xlsxCell, col, row int, sharedStrings []string, styles *styleTable) *CellSignature {
	addr := cellAddress(col, row)
	value := resolveCellValue(c, sharedStrings)
	rawFormula := strings.TrimSpace(c.F)
	normFormula := normalizeFormula(rawFormula)

	return &CellSignature{
		Address:           addr,
		Row:               row,
		Col:               col,
		Value:             value,
		Formula:           rawFormula,
		NormalizedFormula: normFormula,
		Format:            styles.expand(c.S),
		ContentHash:       BuildCellContentHash(value, normFormula),
	}
}

// resolveCellValue dereferences a cell's raw XML value per its @t type
// attribute.
func resolveCellValue(c xlsxCell, sharedStrings []string) string {
	switch c.T {
	case "s":
		if idx, err := strconv.Atoi(strings.TrimSpace(c.V)); err == nil && idx >= 0 && idx < len(sharedStrings) {
			return textnorm.Normalize(sharedStrings[idx])
		}
		return textnorm.Normalize(c.V)
	case "str":
		return textnorm.Normalize(c.V)
	case "b":
		if strings.TrimSpace(c.V) == "1" {
			return "TRUE"
		}
		return "FALSE"
	case "e":
		return c.V
	case "inlineStr":
		if c.Is != nil {
			if len(c.Is.R) > 0 {
				var b strings.Builder
				for _, r := range c.Is.R {
					b.WriteString(r.T)
				}
				return textnorm.Normalize(b.String())
			}
			return textnorm.Normalize(c.Is.T)
		}
		return ""
	default:
		if norm, ok := hashutil.NormalizeDecimal(c.V); ok {
			return norm
		}
		return c.V
	}
}

// normalizeFormula tokenizes the formula with efp and rejoins its non-
// whitespace tokens. This normalized form only feeds the cell content
// hash, which the differ uses as an equality fast path; row signatures,
// sheet content hashes and rename matching use cell values only, and
// formula-change detection compares the raw formula text directly. Falls back to the
// trimmed raw text when tokenization fails or yields nothing usable.
func normalizeFormula(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	tokens := safeParseFormula(trimmed)
	if len(tokens) == 0 {
		return trimmed
	}
	var b strings.Builder
	for _, tok := range tokens {
		if tok.TType == efp.TokenTypeWhitespace {
			continue
		}
		b.WriteString(tok.TValue)
	}
	out := b.String()
	if out == "" {
		return trimmed
	}
	return out
}

// safeParseFormula guards against efp panicking on malformed formula text;
// a failed tokenization degrades to "no tokens", letting the caller fall
// back to the raw string.
func safeParseFormula(formula string) (tokens []efp.Token) {
	defer func() {
		if recover() != nil {
			tokens = nil
		}
	}()
	parser := efp.ExcelParser()
	return parser.Parse(formula)
}

var addrRe = regexp.MustCompile(`^([A-Z]+)(\d+)$`)

func splitAddress(addr string) (col, row int, ok bool) {
	m := addrRe.FindStringSubmatch(addr)
	if m == nil {
		return 0, 0, false
	}
	row, _ = strconv.Atoi(m[2])
	return colLettersToNumber(m[1]), row, true
}

func cellAddress(col, row int) string {
	return numberToColLetters(col) + strconv.Itoa(row)
}

func colLettersToNumber(s string) int {
	n := 0
	for _, r := range s {
		n = n*26 + int(r-'A'+1)
	}
	return n
}

func numberToColLetters(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

func sortedIntKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// buildAxisSignatures computes, for each populated row or column index, a
// fast 32-bit hash of up to sampleSize evenly spaced cell values joined by
// "|". crossKey extracts the position along the orthogonal
// axis used to order cells within the row/column before sampling.
func buildAxisSignatures(indices []int, cellsByIndex map[int][]*CellSignature, sampleSize int, crossKey func(*CellSignature) int) map[int]uint32 {
	out := make(map[int]uint32, len(indices))
	for _, idx := range indices {
		cells := cellsByIndex[idx]
		sort.Slice(cells, func(i, j int) bool { return crossKey(cells[i]) < crossKey(cells[j]) })
		sampled := evenlySample(cells, sampleSize)

		var b strings.Builder
		for i, c := range sampled {
			if i > 0 {
				b.WriteString("|")
			}
			b.WriteString(c.Value)
		}
		out[idx] = hashutil.Fast32(b.String())
	}
	return out
}

func evenlySample(cells []*CellSignature, sampleSize int) []*CellSignature {
	if sampleSize <= 0 || len(cells) <= sampleSize {
		return cells
	}
	out := make([]*CellSignature, 0, sampleSize)
	step := float64(len(cells)-1) / float64(sampleSize-1)
	for i := 0; i < sampleSize; i++ {
		out = append(out, cells[int(float64(i)*step+0.5)])
	}
	return out
}
