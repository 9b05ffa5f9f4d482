package sml

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/VantageDataChat/ooxmlcompare/internal/ooxmlpkg"
)

// RenderMarked produces a copy of the newer package with highlight fills,
// cell comments, and a summary sheet for every change. It trusts the
// already-canonicalized newer signature and the diff result; it never
// re-canonicalizes. When changes is empty, it returns the package's
// original bytes unchanged, byte-for-byte.
func RenderMarked(pkg *ooxmlpkg.Package, newerSig *WorkbookSignature, changes []*Change, settings *Settings) ([]byte, error) {
	settings = resolveSettings(settings)
	if len(changes) == 0 {
		return pkg.Raw(), nil
	}

	overrides := make(map[string][]byte)
	var extraOrder []string

	stylesPart := "xl/styles.xml"
	stylesXML, err := pkg.Bytes(stylesPart)
	if err != nil {
		return nil, err
	}
	stylesXML, styleIndexFor := appendHighlightStyles(stylesXML, settings)
	overrides[stylesPart] = stylesXML

	sheetByName := make(map[string]*WorksheetSignature, len(newerSig.Sheets))
	for _, ws := range newerSig.Sheets {
		sheetByName[ws.Name] = ws
	}

	bySheet := make(map[string][]*Change)
	var sheetOrder []string
	for _, c := range changes {
		if c.CellAddress == "" {
			continue
		}
		if _, ok := bySheet[c.SheetName]; !ok {
			sheetOrder = append(sheetOrder, c.SheetName)
		}
		bySheet[c.SheetName] = append(bySheet[c.SheetName], c)
	}
	sort.Strings(sheetOrder)

	contentTypesPath := "[Content_Types].xml"
	contentTypes, err := pkg.Bytes(contentTypesPath)
	if err != nil {
		return nil, err
	}
	if !bytes.Contains(contentTypes, []byte(`Extension="vml"`)) {
		contentTypes = spliceBeforeClosingTag(contentTypes, "</Types>",
			`<Default Extension="vml" ContentType="application/vnd.openxmlformats-officedocument.vmlDrawing"/>`)
	}

	nextCommentsNum := nextPartNumber(pkg, commentsPartRe)
	nextVmlNum := nextPartNumber(pkg, vmlPartRe)

	for _, sheetName := range sheetOrder {
		sheetChanges := bySheet[sheetName]
		ws, ok := sheetByName[sheetName]
		if !ok || ws.Part == "" {
			continue
		}
		data, err := pkg.Bytes(ws.Part)
		if err != nil {
			settings.log(err)
			continue
		}

		var commentRefs []commentRef

		for _, c := range sheetChanges {
			kind, ok := highlightKindOf(c.ChangeType)
			if !ok {
				continue
			}
			idx, ok := styleIndexFor[kind]
			if !ok {
				continue
			}
			data, err = setCellStyle(data, c.CellAddress, c.RowIndex, c.ColumnIndex, idx)
			if err != nil {
				settings.log(err)
				continue
			}
			commentRefs = append(commentRefs, commentRef{addr: c.CellAddress, row: c.RowIndex, col: c.ColumnIndex, text: c.GetDescription()})
		}

		if len(commentRefs) == 0 {
			overrides[ws.Part] = data
			continue
		}

		sort.Slice(commentRefs, func(i, j int) bool {
			if commentRefs[i].row != commentRefs[j].row {
				return commentRefs[i].row < commentRefs[j].row
			}
			return commentRefs[i].col < commentRefs[j].col
		})

		commentsPart := fmt.Sprintf("xl/comments%d.xml", nextCommentsNum)
		vmlPart := fmt.Sprintf("xl/drawings/vmlDrawing%d.vml", nextVmlNum)
		nextCommentsNum++
		nextVmlNum++

		overrides[commentsPart] = []byte(buildCommentsXML(commentRefs, settings))
		overrides[vmlPart] = []byte(buildVmlDrawingXML(commentRefs))
		extraOrder = append(extraOrder, commentsPart, vmlPart)

		relsPart := ooxmlpkg.RelsPathFor(ws.Part)
		relsXML, err := sheetRelsBytes(pkg, relsPart)
		if err != nil {
			settings.log(err)
			overrides[ws.Part] = data
			continue
		}
		newRID := maxMatchInt(relIDSmlRe, string(relsXML), 0) + 1
		relsXML = spliceBeforeClosingTag(relsXML, "</Relationships>",
			fmt.Sprintf(`<Relationship Id="rId%d" Type="%s" Target="../comments%d.xml"/>`, newRID, relTypeComments, nextCommentsNum-1))
		relsXML = spliceBeforeClosingTag(relsXML, "</Relationships>",
			fmt.Sprintf(`<Relationship Id="rId%d" Type="%s" Target="../drawings/vmlDrawing%d.vml"/>`, newRID+1, relTypeVmlDrawing, nextVmlNum-1))
		overrides[relsPart] = relsXML

		if !bytes.Contains(data, []byte("<legacyDrawing")) {
			data = spliceBeforeClosingTag(data, "</worksheet>", fmt.Sprintf(`<legacyDrawing r:id="rId%d"/>`, newRID+1))
		}
		overrides[ws.Part] = data

		contentTypes = spliceBeforeClosingTag(contentTypes, "</Types>",
			fmt.Sprintf(`<Override PartName="/xl/comments%d.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.comments+xml"/>`, nextCommentsNum-1))
	}

	overrides[contentTypesPath] = contentTypes

	if summaryXML, wbXML, wbRelsXML, ctXML, summaryPart, ok := buildSummarySheet(pkg, overrides[contentTypesPath], changes, settings); ok {
		overrides[summaryPart] = summaryXML
		overrides["xl/workbook.xml"] = wbXML
		overrides["xl/_rels/workbook.xml.rels"] = wbRelsXML
		overrides[contentTypesPath] = ctXML
		extraOrder = append(extraOrder, summaryPart)
	}

	return ooxmlpkg.Rewrite(pkg, overrides, extraOrder)
}

const (
	relTypeComments   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/comments"
	relTypeVmlDrawing = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/vmlDrawing"
)

// highlightKindOf maps the change kinds that carry a single cell address
// onto the five cell-level highlight colors of the settings surface. Row
// and column structural changes carry no single cell locator, so they are
// never rewritten in place and their colors go unused here.
func highlightKindOf(k ChangeKind) (ChangeKind, bool) {
	switch k {
	case ValueChanged, FormulaChanged, FormatChanged, CellAdded, CellDeleted:
		return k, true
	default:
		return 0, false
	}
}

func highlightColor(k ChangeKind, s *Settings) string {
	switch k {
	case ValueChanged:
		return s.ColorValueChanged
	case FormulaChanged:
		return s.ColorFormulaChanged
	case FormatChanged:
		return s.ColorFormatChanged
	case CellAdded:
		return s.ColorCellAdded
	case CellDeleted:
		return s.ColorCellDeleted
	default:
		return s.ColorValueChanged
	}
}

var (
	fillsCountRe   = regexp.MustCompile(`<fills count="(\d+)"`)
	cellXfsCountRe = regexp.MustCompile(`<cellXfs count="(\d+)"`)
)

// appendHighlightStyles appends one fill and one cellXf per cell-level
// highlight kind to the stylesheet, returning the rewritten bytes and a map
// from change kind to its new cellXfs index. Built by string splice rather
// than a full unmarshal/marshal round trip, editing only the bytes that
// change and leaving the rest of the stylesheet untouched.
func appendHighlightStyles(data []byte, settings *Settings) ([]byte, map[ChangeKind]int) {
	kinds := []ChangeKind{ValueChanged, FormulaChanged, FormatChanged, CellAdded, CellDeleted}

	fillsMatch := fillsCountRe.FindSubmatch(data)
	fillsCount := 0
	if fillsMatch != nil {
		fillsCount, _ = strconv.Atoi(string(fillsMatch[1]))
	}
	cellXfsMatch := cellXfsCountRe.FindSubmatch(data)
	cellXfsCount := 0
	if cellXfsMatch != nil {
		cellXfsCount, _ = strconv.Atoi(string(cellXfsMatch[1]))
	}

	var newFills, newXfs strings.Builder
	styleIndexFor := make(map[ChangeKind]int, len(kinds))
	for i, k := range kinds {
		rgb := normalizeRGB(highlightColor(k, settings))
		newFills.WriteString(fmt.Sprintf(
			`<fill><patternFill patternType="solid"><fgColor rgb="FF%s"/><bgColor indexed="64"/></patternFill></fill>`,
			rgb))
		newXfs.WriteString(fmt.Sprintf(
			`<xf numFmtId="0" fontId="0" fillId="%d" borderId="0" xfId="0" applyFill="1"/>`,
			fillsCount+i))
		styleIndexFor[k] = cellXfsCount + i
	}

	data = spliceBeforeClosingTag(data, "</fills>", newFills.String())
	data = spliceBeforeClosingTag(data, "</cellXfs>", newXfs.String())

	if fillsMatch != nil {
		data = bytes.Replace(data, fillsMatch[0], []byte(fmt.Sprintf(`<fills count="%d"`, fillsCount+len(kinds))), 1)
	}
	if cellXfsMatch != nil {
		data = bytes.Replace(data, cellXfsMatch[0], []byte(fmt.Sprintf(`<cellXfs count="%d"`, cellXfsCount+len(kinds))), 1)
	}

	return data, styleIndexFor
}

var (
	rowTagRe = regexp.MustCompile(`(?s)<row r="(\d+)"[^>]*?(/>|>.*?</row>)`)
	cellSRe  = regexp.MustCompile(`\ss="\d+"`)
)

func cellTagRe(addr string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)<c r="` + regexp.QuoteMeta(addr) + `"([^>]*?)(/>|>(.*?)</c>)`)
}

// setCellStyle rewrites the target cell's style index, materializing a bare
// cell (and, if needed, its row) when the cell does not exist on the newer
// side, e.g. a CellDeleted change whose address has no counterpart to
// highlight on the newer sheet.
func setCellStyle(data []byte, addr string, row, col int, style int) ([]byte, error) {
	re := cellTagRe(addr)
	if m := re.FindSubmatch(data); m != nil {
		full := m[0]
		replaced := rewriteStyleAttr(full, style)
		return bytes.Replace(data, full, replaced, 1), nil
	}
	return materializeCell(data, addr, row, col, style), nil
}

func rewriteStyleAttr(tag []byte, style int) []byte {
	repl := []byte(fmt.Sprintf(` s="%d"`, style))
	if cellSRe.Match(tag) {
		return cellSRe.ReplaceAll(tag, repl)
	}
	rAttrRe := regexp.MustCompile(`r="[^"]*"`)
	return rAttrRe.ReplaceAll(tag, append(append([]byte{}, rAttrRe.Find(tag)...), repl...))
}

// materializeCell inserts a new empty, styled cell at addr, creating the row
// if it does not already exist. Cell and row ordering within the sheet is
// not strictly reestablished; most readers tolerate out-of-order rows and
// cells, and this path only runs for cells absent from the newer sheet.
func materializeCell(data []byte, addr string, row, col int, style int) []byte {
	cellXML := fmt.Sprintf(`<c r="%s" s="%d"/>`, addr, style)

	for _, m := range rowTagRe.FindAllSubmatch(data, -1) {
		rowNum, _ := strconv.Atoi(string(m[1]))
		if rowNum == row {
			full := m[0]
			if bytes.HasSuffix(full, []byte("/>")) {
				replaced := []byte(fmt.Sprintf(`<row r="%d">%s</row>`, row, cellXML))
				return bytes.Replace(data, full, replaced, 1)
			}
			idx := bytes.LastIndex(full, []byte("</row>"))
			replaced := append(append([]byte{}, full[:idx]...), append([]byte(cellXML), full[idx:]...)...)
			return bytes.Replace(data, full, replaced, 1)
		}
	}

	newRow := []byte(fmt.Sprintf(`<row r="%d">%s</row>`, row, cellXML))
	return spliceBeforeClosingTag(data, "</sheetData>", string(newRow))
}

// --- cell comments + VML ---

type commentRef struct {
	addr string
	row  int
	col  int
	text string
}

func buildCommentsXML(refs []commentRef, settings *Settings) string {
	author := settings.AuthorForChanges
	if author == "" {
		author = "OOXML Compare"
	}
	var list strings.Builder
	for _, r := range refs {
		list.WriteString(fmt.Sprintf(
			`<comment ref="%s" authorId="0"><text><r><t xml:space="preserve">%s</t></r></text></comment>`,
			r.addr, xmlEscapeSmlText(r.text)))
	}
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<comments xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">` +
		`<authors><author>` + xmlEscapeSmlText(author) + `</author></authors>` +
		`<commentList>` + list.String() + `</commentList></comments>`
}

func buildVmlDrawingXML(refs []commentRef) string {
	var shapes strings.Builder
	for i, r := range refs {
		id := i + 1
		shapes.WriteString(fmt.Sprintf(
			`<v:shape id="_x0000_s%d" type="#_x0000_t202" style="position:absolute;margin-left:59.25pt;margin-top:1.5pt;width:108pt;height:59.25pt;z-index:%d;visibility:hidden" fillcolor="#ffffe1" o:insetmode="auto">`+
				`<v:fill color2="#ffffe1"/><v:shadow on="t" color="black" obscured="t"/><v:path o:connecttype="none"/>`+
				`<v:textbox><div style="text-align:left"></div></v:textbox>`+
				`<x:ClientData ObjectType="Note"><x:MoveWithCells/><x:SizeWithCells/>`+
				`<x:Anchor>%d, 15, %d, 2, %d, 31, %d, 1</x:Anchor>`+
				`<x:AutoFill>False</x:AutoFill><x:Row>%d</x:Row><x:Column>%d</x:Column></x:ClientData></v:shape>`,
			id, id, r.col-1, r.row-1, r.col+1, r.row+3, r.row-1, r.col-1))
	}
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<xml xmlns:v="urn:schemas-microsoft-com:vml" xmlns:o="urn:schemas-microsoft-com:office:office" ` +
		`xmlns:x="urn:schemas-microsoft-com:office:excel" xmlns:mv="http://macVmlSchemaUri">` +
		`<o:shapelayout v:ext="edit"><o:idmap v:ext="edit" data="1"/></o:shapelayout>` +
		`<v:shapetype id="_x0000_t202" coordsize="21600,21600" o:spt="202" path="m,l,21600r21600,l21600,xe">` +
		`<v:stroke joinstyle="miter"/><v:path gradientshapeok="t" o:connecttype="rect"/></v:shapetype>` +
		shapes.String() + `</xml>`
}

func xmlEscapeSmlText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;")
	return r.Replace(s)
}

// --- sheet rels / content-types / next-part-number helpers ---

var (
	commentsPartRe = regexp.MustCompile(`xl/comments(\d+)\.xml`)
	vmlPartRe      = regexp.MustCompile(`xl/drawings/vmlDrawing(\d+)\.vml`)
	relIDSmlRe     = regexp.MustCompile(`Id="rId(\d+)"`)
	sheetTagRe     = regexp.MustCompile(`<sheet[^>]*\bsheetId="(\d+)"[^>]*/>`)
)

func nextPartNumber(pkg *ooxmlpkg.Package, re *regexp.Regexp) int {
	max := 0
	for _, name := range pkg.Names() {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

func sheetRelsBytes(pkg *ooxmlpkg.Package, relsPart string) ([]byte, error) {
	if pkg.Exists(relsPart) {
		return pkg.Bytes(relsPart)
	}
	return []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`), nil
}

func maxMatchInt(re *regexp.Regexp, s string, floor int) int {
	max := floor
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max
}

func spliceBeforeClosingTag(data []byte, closingTag, insert string) []byte {
	idx := bytes.LastIndex(data, []byte(closingTag))
	if idx < 0 {
		return data
	}
	var out bytes.Buffer
	out.Write(data[:idx])
	out.WriteString(insert)
	out.Write(data[idx:])
	return out.Bytes()
}

// buildSummarySheet appends a "_DiffSummary" worksheet listing the summary
// counters followed by a detail header and one row per change, wiring it
// into xl/workbook.xml, xl/_rels/workbook.xml.rels, and
// [Content_Types].xml with a fresh relationship id and the next unused
// sheet id.
func buildSummarySheet(pkg *ooxmlpkg.Package, contentTypes []byte, changes []*Change, settings *Settings) (sheetXML, wbXML, wbRelsXML, ctXML []byte, part string, ok bool) {
	wbPart := "xl/workbook.xml"
	wb, err := pkg.Bytes(wbPart)
	if err != nil {
		settings.log(err)
		return nil, nil, nil, nil, "", false
	}
	relsPart := "xl/_rels/workbook.xml.rels"
	rels, err := pkg.Bytes(relsPart)
	if err != nil {
		settings.log(err)
		return nil, nil, nil, nil, "", false
	}

	nextSheetNum := nextPartNumber(pkg, regexp.MustCompile(`xl/worksheets/sheet(\d+)\.xml`))
	part = fmt.Sprintf("xl/worksheets/sheet%d.xml", nextSheetNum)

	newSheetID := maxMatchInt(sheetTagRe, string(wb), 0) + 1
	newRID := fmt.Sprintf("rId%d", maxMatchInt(relIDSmlRe, string(rels), 0)+1)

	sheetXML = []byte(buildSummarySheetXML(summarize(changes), changes))
	newWB := spliceBeforeClosingTag(wb, "</sheets>",
		fmt.Sprintf(`<sheet name="_DiffSummary" sheetId="%d" r:id="%s"/>`, newSheetID, newRID))
	newRels := spliceBeforeClosingTag(rels, "</Relationships>",
		fmt.Sprintf(`<Relationship Id="%s" Type="%s" Target="worksheets/sheet%d.xml"/>`, newRID, relTypeWorksheet, nextSheetNum))
	newCT := spliceBeforeClosingTag(contentTypes, "</Types>",
		fmt.Sprintf(`<Override PartName="/xl/worksheets/sheet%d.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>`, nextSheetNum))

	return sheetXML, newWB, newRels, newCT, part, true
}

func buildSummarySheetXML(s Summary, changes []*Change) string {
	var rows strings.Builder
	writeLabelRow := func(r int, label string, value int) {
		rows.WriteString(fmt.Sprintf(
			`<row r="%d"><c r="A%d" t="inlineStr"><is><t>%s</t></is></c><c r="B%d"><v>%d</v></c></row>`,
			r, r, xmlEscapeSmlText(label), r, value))
	}
	writeLabelRow(1, "Total Changes", s.TotalChanges)
	writeLabelRow(2, "Value Changes", s.ValueChanges)
	writeLabelRow(3, "Formula Changes", s.FormulaChanges)
	writeLabelRow(4, "Format Changes", s.FormatChanges)
	writeLabelRow(5, "Cells Added", s.CellsAdded)
	writeLabelRow(6, "Cells Deleted", s.CellsDeleted)
	writeLabelRow(7, "Sheets Added", s.SheetsAdded)
	writeLabelRow(8, "Sheets Deleted", s.SheetsDeleted)
	writeLabelRow(9, "Sheets Renamed", s.SheetsRenamed)
	writeLabelRow(10, "Rows Inserted", s.RowsInserted)
	writeLabelRow(11, "Rows Deleted", s.RowsDeleted)
	writeLabelRow(12, "Columns Inserted", s.ColumnsInserted)
	writeLabelRow(13, "Columns Deleted", s.ColumnsDeleted)

	rows.WriteString(fmt.Sprintf(
		`<row r="15"><c r="A15" t="inlineStr"><is><t>Sheet</t></is></c>`+
			`<c r="B15" t="inlineStr"><is><t>Location</t></is></c>`+
			`<c r="C15" t="inlineStr"><is><t>Change</t></is></c>`+
			`<c r="D15" t="inlineStr"><is><t>Old Value</t></is></c>`+
			`<c r="E15" t="inlineStr"><is><t>New Value</t></is></c>`+
			`<c r="F15" t="inlineStr"><is><t>Description</t></is></c></row>`))

	for i, c := range changes {
		r := 16 + i
		loc := c.CellAddress
		if loc == "" && (c.RowIndex != 0 || c.ColumnIndex != 0) {
			loc = fmt.Sprintf("R%dC%d", c.RowIndex, c.ColumnIndex)
		}
		rows.WriteString(fmt.Sprintf(
			`<row r="%d">`+
				`<c r="A%d" t="inlineStr"><is><t>%s</t></is></c>`+
				`<c r="B%d" t="inlineStr"><is><t>%s</t></is></c>`+
				`<c r="C%d" t="inlineStr"><is><t>%s</t></is></c>`+
				`<c r="D%d" t="inlineStr"><is><t>%s</t></is></c>`+
				`<c r="E%d" t="inlineStr"><is><t>%s</t></is></c>`+
				`<c r="F%d" t="inlineStr"><is><t>%s</t></is></c>`+
				`</row>`,
			r,
			r, xmlEscapeSmlText(c.SheetName),
			r, xmlEscapeSmlText(loc),
			r, xmlEscapeSmlText(c.ChangeType.String()),
			r, xmlEscapeSmlText(c.OldValue),
			r, xmlEscapeSmlText(c.NewValue),
			r, xmlEscapeSmlText(c.GetDescription()),
		))
	}

	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
		`<sheetData>` + rows.String() + `</sheetData></worksheet>`
}
