package pml

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/VantageDataChat/ooxmlcompare/internal/ooxmlpkg"
	"github.com/VantageDataChat/ooxmlcompare/internal/textnorm"
)

// labelText maps the seven overlay-label change kinds to their all-caps
// marker text. Change kinds absent from this table get no
// visual overlay shape (still reported in the change list and notes).
var labelText = map[ChangeKind]string{
	ShapeInserted:       "NEW",
	ShapeMoved:          "MOVED",
	ShapeResized:        "RESIZED",
	TextChanged:         "TEXT CHANGED",
	ImageReplaced:       "IMAGE REPLACED",
	TableContentChanged: "TABLE CHANGED",
	ChartDataChanged:    "CHART CHANGED",
}

func labelColor(k ChangeKind, s *Settings) string {
	switch k {
	case ShapeInserted:
		return s.ColorInsert
	case ShapeMoved:
		return s.ColorMove
	case ShapeResized:
		return s.ColorResize
	default:
		return s.ColorModify
	}
}

// RenderMarked produces a copy of the newer package with visual overlays
// for every change. It trusts the already-canonicalized newer signature
// and the diff result. When changes is empty, it returns the package's
// original bytes unchanged, byte-for-byte.
func RenderMarked(pkg *ooxmlpkg.Package, newerSig *PresentationSignature, changes []*Change, settings *Settings) ([]byte, error) {
	settings = resolveSettings(settings)
	if len(changes) == 0 {
		return pkg.Raw(), nil
	}

	bySlide := make(map[int][]*Change)
	for _, c := range changes {
		if c.SlideIndex > 0 {
			bySlide[c.SlideIndex] = append(bySlide[c.SlideIndex], c)
		}
	}
	slideIndices := make([]int, 0, len(bySlide))
	for idx := range bySlide {
		slideIndices = append(slideIndices, idx)
	}
	sort.Ints(slideIndices)

	slideByIndex := make(map[int]*SlideSignature, len(newerSig.Slides))
	for _, s := range newerSig.Slides {
		slideByIndex[s.Index] = s
	}

	overrides := make(map[string][]byte)
	var extraOrder []string
	notesSlideSeq := 0

	for _, idx := range slideIndices {
		slideChanges := bySlide[idx]
		slide, ok := slideByIndex[idx]
		if !ok || slide.Part == "" {
			continue
		}
		data, err := pkg.Bytes(slide.Part)
		if err != nil {
			settings.log(err)
			continue
		}

		anchors := make(map[uint32]TransformSignature, len(slide.Shapes))
		indexShapeAnchors(slide.Shapes, anchors)

		maxID := maxShapeID(slide.Shapes)
		var labels strings.Builder
		for _, c := range slideChanges {
			text, ok := labelText[c.ChangeType]
			if !ok {
				continue
			}
			anchor, ok := anchors[c.ShapeID]
			if !ok {
				continue
			}
			maxID++
			labels.WriteString(buildLabelShapeXML(maxID, textnorm.Upper(text), anchor, labelColor(c.ChangeType, settings)))
		}

		if settings.AddNotesAnnotations {
			buildNotesOverride(pkg, slide, slideChanges, settings, overrides, &extraOrder, &notesSlideSeq)
		}

		if labels.Len() > 0 {
			data = spliceBeforeClosingTag(data, "</p:spTree>", labels.String())
		}

		overrides[slide.Part] = data
	}

	if settings.AddSummarySlide && len(changes) > 0 {
		addSummarySlide(pkg, changes, overrides, &extraOrder, settings)
	}

	return ooxmlpkg.Rewrite(pkg, overrides, extraOrder)
}

func indexShapeAnchors(shapes []*ShapeSignature, out map[uint32]TransformSignature) {
	for _, s := range shapes {
		out[s.ID] = s.Transform
		if len(s.Children) > 0 {
			indexShapeAnchors(s.Children, out)
		}
	}
}

func maxShapeID(shapes []*ShapeSignature) uint32 {
	var max uint32
	for _, s := range shapes {
		if s.ID > max {
			max = s.ID
		}
		if len(s.Children) > 0 {
			if c := maxShapeID(s.Children); c > max {
				max = c
			}
		}
	}
	return max
}

const (
	labelHeight int64 = 304800 // 1/3 inch, in EMU
	labelGap    int64 = 45720  // 0.05 inch
	labelCharW  int64 = 76200  // rough per-character width budget, in EMU
)

// measureLabelWidth estimates a label's on-slide width from basicfont's
// fixed-width glyph metrics, scaled from pixels to EMU.
func measureLabelWidth(text string) int64 {
	face := basicfont.Face7x13
	var width fixed.Int26_6
	for _, r := range text {
		if adv, ok := face.GlyphAdvance(r); ok {
			width += adv
			continue
		}
		width += fixed.I(7)
	}
	px := width.Ceil()
	if px <= 0 {
		px = len(text) * 7
	}
	return int64(px) * (labelCharW / 7)
}

// buildLabelShapeXML builds one overlay <p:sp> rectangle carrying text,
// positioned above the anchor shape when there is room, else below it.
// Built by string template, so unrelated parts of the slide are never
// round-tripped through encoding/xml.
func buildLabelShapeXML(id uint32, text string, anchor TransformSignature, color string) string {
	width := measureLabelWidth(text) + labelGap*4
	if width < 900000 {
		width = 900000
	}

	y := anchor.Y - labelHeight - labelGap
	if y < 0 {
		y = anchor.Y + anchor.Cy + labelGap
	}
	x := anchor.X
	if x < 0 {
		x = 0
	}

	return fmt.Sprintf(
		`<p:sp><p:nvSpPr><p:cNvPr id="%d" name="ChangeLabel%d"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>`+
			`<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
			`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom>`+
			`<a:solidFill><a:srgbClr val="%s"/></a:solidFill>`+
			`<a:ln><a:solidFill><a:srgbClr val="000000"/></a:solidFill></a:ln></p:spPr>`+
			`<p:txBody><a:bodyPr wrap="none" anchor="ctr"/><a:lstStyle/>`+
			`<a:p><a:pPr algn="ctr"/><a:r><a:rPr lang="en-US" sz="900" b="1"><a:solidFill><a:srgbClr val="FFFFFF"/></a:solidFill></a:rPr>`+
			`<a:t>%s</a:t></a:r></a:p></p:txBody></p:sp>`,
		id, id, x, y, width, labelHeight, color, xmlEscapeText(text),
	)
}

func xmlEscapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;")
	return r.Replace(s)
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

const relTypeNotesMaster = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesMaster"

var notesSlidePartRe = regexp.MustCompile(`ppt/notesSlides/notesSlide(\d+)\.xml`)
var notesMasterPartRe = regexp.MustCompile(`^ppt/notesMasters/notesMaster\d+\.xml$`)

// buildNotesOverride appends "--- Changes (N) ---" plus up to 10
// description bullet lines (and a truncation ellipsis) to the slide's notes
// part. When the slide has no notes part yet, it synthesizes one: a new
// ppt/notesSlides/notesSlideN.xml part, its content-type override, a
// relationship from the slide to it, and (when the package has any notes
// master) a relationship from the new part to that master. Any unexpected
// structure degrades to a no-op for that slide; the rest of the render is
// unaffected.
func buildNotesOverride(pkg *ooxmlpkg.Package, slide *SlideSignature, changes []*Change, settings *Settings, overrides map[string][]byte, extraOrder *[]string, notesSlideSeq *int) {
	rels, err := pkg.Relationships(slide.Part)
	if err != nil {
		settings.log(err)
		return
	}
	var notesPart string
	for _, r := range rels {
		if r.Type == relTypeNotesSlide {
			notesPart = ooxmlpkg.ResolveTarget(slide.Part, r.Target)
			break
		}
	}

	var paras strings.Builder
	for _, line := range buildNotesParagraphs(changes) {
		paras.WriteString(fmt.Sprintf(`<a:p><a:r><a:rPr lang="en-US"/><a:t>%s</a:t></a:r></a:p>`, xmlEscapeText(line)))
	}

	if notesPart != "" && pkg.Exists(notesPart) {
		notesData, err := currentBytes(pkg, overrides, notesPart)
		if err != nil {
			settings.log(err)
			return
		}
		overrides[notesPart] = spliceBeforeClosingTag(notesData, "</p:txBody>", paras.String())
		return
	}

	num := nextNotesSlideNumber(pkg) + *notesSlideSeq
	*notesSlideSeq++
	newNotesPart := fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", num)
	newNotesRelsPart := ooxmlpkg.RelsPathFor(newNotesPart)
	slideRelsPart := ooxmlpkg.RelsPathFor(slide.Part)

	slideRelsData, slideRelsExisted, err := currentBytesOrNil(pkg, overrides, slideRelsPart)
	if err != nil {
		settings.log(err)
		return
	}
	newRID := fmt.Sprintf("rId%d", maxMatchInt(relIDRe, string(slideRelsData), 0)+1)
	notesTarget := "../notesSlides/notesSlide" + strconv.Itoa(num) + ".xml"
	if slideRelsExisted {
		overrides[slideRelsPart] = spliceBeforeClosingTag(slideRelsData, "</Relationships>",
			fmt.Sprintf(`<Relationship Id="%s" Type="%s" Target="%s"/>`, newRID, relTypeNotesSlide, notesTarget))
	} else {
		overrides[slideRelsPart] = []byte(fmt.Sprintf(
			`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
				`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
				`<Relationship Id="%s" Type="%s" Target="%s"/></Relationships>`,
			newRID, relTypeNotesSlide, notesTarget))
		*extraOrder = append(*extraOrder, slideRelsPart)
	}

	var notesRelsXML string
	if masterTarget := findAnyNotesMasterTarget(pkg); masterTarget != "" {
		notesRelsXML = fmt.Sprintf(
			`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
				`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
				`<Relationship Id="rId1" Type="%s" Target="../%s"/></Relationships>`,
			relTypeNotesMaster, strings.TrimPrefix(masterTarget, "ppt/"),
		)
	} else {
		notesRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`
	}

	contentTypes, err := currentBytes(pkg, overrides, "[Content_Types].xml")
	if err != nil {
		settings.log(err)
		return
	}
	overrides["[Content_Types].xml"] = spliceBeforeClosingTag(contentTypes, "</Types>",
		fmt.Sprintf(`<Override PartName="/%s" ContentType="application/vnd.openxmlformats-officedocument.presentationml.notesSlide+xml"/>`, newNotesPart))

	overrides[newNotesPart] = []byte(buildNotesSlideXML(paras.String()))
	overrides[newNotesRelsPart] = []byte(notesRelsXML)
	*extraOrder = append(*extraOrder, newNotesPart, newNotesRelsPart)
}

// currentBytes returns name's bytes, preferring an in-flight override over
// the source package, for parts ([Content_Types].xml, a notes part already
// annotated earlier in the same render) that this render pass may have
// already rewritten once before touching them again.
func currentBytes(pkg *ooxmlpkg.Package, overrides map[string][]byte, name string) ([]byte, error) {
	if b, ok := overrides[name]; ok {
		return b, nil
	}
	return pkg.Bytes(name)
}

// currentBytesOrNil is currentBytes plus whether the part exists at all, for
// callers that must synthesize the part from scratch when it does not.
func currentBytesOrNil(pkg *ooxmlpkg.Package, overrides map[string][]byte, name string) (data []byte, existed bool, err error) {
	if b, ok := overrides[name]; ok {
		return b, true, nil
	}
	if !pkg.Exists(name) {
		return nil, false, nil
	}
	data, err = pkg.Bytes(name)
	return data, true, err
}

// nextNotesSlideNumber returns one past the highest existing
// ppt/notesSlides/notesSlideN.xml suffix in pkg (1 when there is none). Callers synthesizing more than one new notes part in the
// same render add their own running offset on top of this base.
func nextNotesSlideNumber(pkg *ooxmlpkg.Package) int {
	max := 0
	for _, name := range pkg.Names() {
		m := notesSlidePartRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

func findAnyNotesMasterTarget(pkg *ooxmlpkg.Package) string {
	for _, name := range pkg.Names() {
		if notesMasterPartRe.MatchString(name) {
			return name
		}
	}
	return ""
}

// buildNotesSlideXML builds a minimal notes slide part: a slide-image
// placeholder and a body placeholder carrying parasXML, matching the shape
// of a notes slide PowerPoint itself creates the first time a user adds
// speaker notes to a slide that had none.
func buildNotesSlideXML(parasXML string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<p:notes xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">` +
		`<p:cSld><p:spTree>` +
		`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
		`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>` +
		`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Slide Image Placeholder"/>` +
		`<p:cNvSpPr><a:spLocks noGrp="1" noRot="1" noChangeAspect="1"/></p:cNvSpPr>` +
		`<p:nvPr><p:ph type="sldImg"/></p:nvPr></p:nvSpPr><p:spPr/></p:sp>` +
		`<p:sp><p:nvSpPr><p:cNvPr id="3" name="Notes Placeholder"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>` +
		`<p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr>` +
		`<p:txBody><a:bodyPr/><a:lstStyle/>` + parasXML + `</p:txBody></p:sp>` +
		`</p:spTree></p:cSld></p:notes>`
}

// buildNotesParagraphs renders the annotation block text content for a
// slide's change set: a header line, up to 10 description bullets, and a
// truncation ellipsis when there are more.
func buildNotesParagraphs(changes []*Change) []string {
	lines := []string{fmt.Sprintf("--- Changes (%d) ---", len(changes))}
	limit := len(changes)
	truncated := false
	if limit > 10 {
		limit = 10
		truncated = true
	}
	for i := 0; i < limit; i++ {
		lines = append(lines, "- "+changes[i].GetDescription())
	}
	if truncated {
		lines = append(lines, "...")
	}
	return lines
}

var sldIDRe = regexp.MustCompile(`<p:sldId[^>]*\bid="(\d+)"`)
var relIDRe = regexp.MustCompile(`Id="rId(\d+)"`)
var slidePartRe = regexp.MustCompile(`ppt/slides/slide(\d+)\.xml`)

// addSummarySlide appends a final slide titled "Comparison Summary" with a
// body listing change counts, wiring the new part into
// [Content_Types].xml, ppt/presentation.xml, and
// ppt/_rels/presentation.xml.rels. Any unexpected structure degrades to a
// no-op (the rest of the rendered output is unaffected).
func addSummarySlide(pkg *ooxmlpkg.Package, changes []*Change, overrides map[string][]byte, extraOrder *[]string, settings *Settings) {
	presXML, err := pkg.Bytes("ppt/presentation.xml")
	if err != nil {
		settings.log(err)
		return
	}
	presRelsPath := "ppt/_rels/presentation.xml.rels"
	presRels, err := pkg.Bytes(presRelsPath)
	if err != nil {
		settings.log(err)
		return
	}
	contentTypesPath := "[Content_Types].xml"
	contentTypes, err := currentBytes(pkg, overrides, contentTypesPath)
	if err != nil {
		settings.log(err)
		return
	}

	layoutTarget := findAnySlideLayoutTarget(pkg)
	if layoutTarget == "" {
		return
	}

	nextSlideNum := nextSlidePartNumber(pkg)
	slidePart := fmt.Sprintf("ppt/slides/slide%d.xml", nextSlideNum)
	slideRelsPart := fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", nextSlideNum)

	newSldID := maxMatchInt(sldIDRe, string(presXML), 256) + 1
	newRID := fmt.Sprintf("rId%d", maxMatchInt(relIDRe, string(presRels), 0)+1)

	slideXML := buildSummarySlideXML(summarizeCounts(changes))
	slideRelsXML := fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
			`<Relationship Id="rId1" Type="%s" Target="../%s"/></Relationships>`,
		relTypeSlideLayout, strings.TrimPrefix(layoutTarget, "ppt/"),
	)

	newPresXML := spliceBeforeClosingTag(presXML, "</p:sldIdLst>",
		fmt.Sprintf(`<p:sldId id="%d" r:id="%s"/>`, newSldID, newRID))
	newPresRels := spliceBeforeClosingTag(presRels, "</Relationships>",
		fmt.Sprintf(`<Relationship Id="%s" Type="%s" Target="slides/slide%d.xml"/>`,
			newRID, relTypeSlide, nextSlideNum))
	newContentTypes := spliceBeforeClosingTag(contentTypes, "</Types>",
		fmt.Sprintf(`<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, nextSlideNum))

	overrides[slidePart] = []byte(slideXML)
	overrides[slideRelsPart] = []byte(slideRelsXML)
	overrides["ppt/presentation.xml"] = newPresXML
	overrides[presRelsPath] = newPresRels
	overrides[contentTypesPath] = newContentTypes
	*extraOrder = append(*extraOrder, slidePart, slideRelsPart)
}

func findAnySlideLayoutTarget(pkg *ooxmlpkg.Package) string {
	for _, name := range pkg.Names() {
		if !slidePartRe.MatchString(name) {
			continue
		}
		rels, err := pkg.Relationships(name)
		if err != nil {
			continue
		}
		for _, r := range rels {
			if r.Type == relTypeSlideLayout {
				return ooxmlpkg.ResolveTarget(name, r.Target)
			}
		}
	}
	return ""
}

func nextSlidePartNumber(pkg *ooxmlpkg.Package) int {
	max := 0
	for _, name := range pkg.Names() {
		m := slidePartRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max + 1
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

type changeCounts struct {
	kind  ChangeKind
	count int
}

func summarizeCounts(changes []*Change) []changeCounts {
	byKind := make(map[ChangeKind]int)
	for _, c := range changes {
		byKind[c.ChangeType]++
	}
	var out []changeCounts
	for k, n := range byKind {
		out = append(out, changeCounts{k, n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].kind < out[j].kind })
	return out
}

func buildSummarySlideXML(counts []changeCounts) string {
	var body strings.Builder
	body.WriteString(fmt.Sprintf(`<a:p><a:r><a:rPr lang="en-US" sz="1400"/><a:t>Total changes: %d</a:t></a:r></a:p>`, totalCount(counts)))
	for _, c := range counts {
		body.WriteString(fmt.Sprintf(`<a:p><a:r><a:rPr lang="en-US" sz="1200"/><a:t>%s: %d</a:t></a:r></a:p>`,
			xmlEscapeText(c.kind.String()), c.count))
	}

	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">` +
		`<p:cSld><p:spTree>` +
		`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
		`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>` +
		`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>` +
		`<p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>` +
		`<p:spPr><a:xfrm><a:off x="457200" y="274638"/><a:ext cx="8229600" cy="1143000"/></a:xfrm></p:spPr>` +
		`<p:txBody><a:bodyPr/><a:lstStyle/><a:p><a:r><a:rPr lang="en-US"/><a:t>Comparison Summary</a:t></a:r></a:p></p:txBody></p:sp>` +
		`<p:sp><p:nvSpPr><p:cNvPr id="3" name="Body"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>` +
		`<p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr>` +
		`<p:spPr><a:xfrm><a:off x="457200" y="1600200"/><a:ext cx="8229600" cy="4525963"/></a:xfrm></p:spPr>` +
		`<p:txBody><a:bodyPr/><a:lstStyle/>` + body.String() + `</p:txBody></p:sp>` +
		`</p:spTree></p:cSld><p:clrMapOvr><a:overrideClrMapping bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/></p:clrMapOvr>` +
		`</p:sld>`
}

func totalCount(counts []changeCounts) int {
	n := 0
	for _, c := range counts {
		n += c.count
	}
	return n
}
