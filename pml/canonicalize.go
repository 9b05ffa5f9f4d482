package pml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/VantageDataChat/ooxmlcompare/errs"
	"github.com/VantageDataChat/ooxmlcompare/internal/hashutil"
	"github.com/VantageDataChat/ooxmlcompare/internal/ooxmlpkg"
	"github.com/VantageDataChat/ooxmlcompare/internal/textnorm"
)

const (
	relTypeSlide       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relTypeSlideLayout = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
	relTypeImage       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relTypeChart       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/chart"
	relTypeNotesSlide  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide"
)

// Canonicalize reads an OOXML presentation package and produces its
// PresentationSignature.
func Canonicalize(pkg *ooxmlpkg.Package, settings *Settings) (*PresentationSignature, error) {
	settings = resolveSettings(settings)

	var pres xmlPresentation
	if err := pkg.XML("ppt/presentation.xml", &pres); err != nil {
		return nil, errs.NewPackage("pml.Canonicalize", "ppt/presentation.xml", err)
	}

	presRels, err := pkg.Relationships("ppt/presentation.xml")
	if err != nil {
		return nil, errs.NewPackage("pml.Canonicalize", "ppt/_rels/presentation.xml.rels", err)
	}
	relTarget := make(map[string]string, len(presRels))
	for _, rel := range presRels {
		relTarget[rel.ID] = ooxmlpkg.ResolveTarget("ppt/presentation.xml", rel.Target)
	}

	sig := &PresentationSignature{
		Cx: pres.SldSz.Cx,
		Cy: pres.SldSz.Cy,
	}
	if themeData, err := pkg.Bytes("ppt/theme/theme1.xml"); err == nil {
		sig.ThemeHash = hashutil.Content(normalizeXMLWhitespace(themeData))
	}

	idx := 0
	for _, sldID := range pres.SldIDLst.SldID {
		idx++
		target, ok := relTarget[sldID.RID]
		if !ok || target == "" {
			// Unresolvable slide relationship: skip the slide, keep the
			// index aligned to the slide-id-list position.
			continue
		}
		slideSig, err := canonicalizeSlide(pkg, target, idx, sldID.RID, settings)
		if err != nil {
			settings.log(err)
			continue
		}
		sig.Slides = append(sig.Slides, slideSig)
	}

	return sig, nil
}

// --- presentation.xml ---

type xmlPresentation struct {
	SldIDLst struct {
		SldID []struct {
			RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sldId"`
	} `xml:"sldIdLst"`
	SldSz struct {
		Cx int64 `xml:"cx,attr"`
		Cy int64 `xml:"cy,attr"`
	} `xml:"sldSz"`
}

// --- slide canonicalization ---

func canonicalizeSlide(pkg *ooxmlpkg.Package, part string, idx int, relKey string, settings *Settings) (*SlideSignature, error) {
	data, err := pkg.Bytes(part)
	if err != nil {
		return nil, errs.NewPartParse("pml.canonicalizeSlide", part, err)
	}

	var raw rawSlide
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, errs.NewPartParse("pml.canonicalizeSlide", part, err)
	}

	rels, _ := pkg.Relationships(part)
	relByID := make(map[string]rawOOXMLRel, len(rels))
	for _, r := range rels {
		relByID[r.ID] = rawOOXMLRel{Type: r.Type, Target: ooxmlpkg.ResolveTarget(part, r.Target)}
	}

	sig := &SlideSignature{Index: idx, RelKey: relKey, Part: part}

	if raw.CSld.Background != nil {
		sig.BackgroundHash = hashutil.ContentString(raw.CSld.Background.Inner)
	}

	sig.LayoutHash = canonicalizeLayoutHash(pkg, part, relByID, settings)

	z := 0
	for _, el := range raw.CSld.SpTree.Elements {
		shape, err := canonicalizeShapeElement(pkg, part, el, z+1, relByID, settings)
		if err != nil {
			settings.log(err)
			continue
		}
		if shape == nil {
			continue
		}
		z++
		sig.Shapes = append(sig.Shapes, shape)
		if shape.Placeholder != nil && (shape.Placeholder.Type == "title" || shape.Placeholder.Type == "ctrTitle") {
			sig.Title = shape.PlainText()
		}
	}

	if settings.CompareNotes {
		if notes := canonicalizeNotes(pkg, relByID); notes != "" {
			sig.Notes = &notes
		} else if _, ok := findRel(relByID, relTypeNotesSlide); ok {
			empty := ""
			sig.Notes = &empty
		}
	}

	sig.ContentHash = BuildSlideContentHash(sig.Title, sig.Shapes)
	byZ := append([]*ShapeSignature(nil), sig.Shapes...)
	sig.Fingerprint = BuildSlideFingerprint(sig.Title, byZ)

	return sig, nil
}

func findRel(relByID map[string]rawOOXMLRel, typ string) (rawOOXMLRel, bool) {
	for _, r := range relByID {
		if r.Type == typ {
			return r, true
		}
	}
	return rawOOXMLRel{}, false
}

type rawOOXMLRel struct {
	Type   string
	Target string
}

func canonicalizeLayoutHash(pkg *ooxmlpkg.Package, slidePart string, relByID map[string]rawOOXMLRel, settings *Settings) string {
	layoutRel, ok := findRel(relByID, relTypeSlideLayout)
	if !ok {
		return ""
	}
	data, err := pkg.Bytes(layoutRel.Target)
	if err != nil {
		settings.log(errs.NewResource("pml.canonicalizeLayoutHash", slidePart, layoutRel.Target, err))
		return ""
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "sldLayout" {
			for _, a := range se.Attr {
				if a.Name.Local == "type" {
					return hashutil.ContentString(a.Value)
				}
			}
			// Layout present but untyped; the ECMA default layout type is "title".
			return hashutil.ContentString("title")
		}
	}
	return ""
}

func canonicalizeNotes(pkg *ooxmlpkg.Package, relByID map[string]rawOOXMLRel) string {
	notesRel, ok := findRel(relByID, relTypeNotesSlide)
	if !ok {
		return ""
	}
	data, err := pkg.Bytes(notesRel.Target)
	if err != nil {
		return ""
	}
	return extractAllPlainText(data)
}

// extractAllPlainText walks every <a:t> text node in data, joining runs
// within a paragraph and separating paragraphs with "\n".
func extractAllPlainText(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var b strings.Builder
	first := true
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "p" {
				if !first {
					b.WriteString("\n")
				}
				first = false
			}
			if se.Name.Local == "t" {
				var t string
				_ = dec.DecodeElement(&t, &se)
				b.WriteString(t)
			}
		}
	}
	return b.String()
}

// --- shape tree structures. The signature needs are modest enough that a
// declarative struct decode is both shorter and safer than a hand-rolled
// token loop; only signature-relevant fields are captured. ---

type rawSlide struct {
	CSld struct {
		Background *rawInnerXML `xml:"bg"`
		SpTree     rawSpTree    `xml:"spTree"`
	} `xml:"cSld"`
}

type rawInnerXML struct {
	Inner string `xml:",innerxml"`
}

// rawSpTree captures the ordered top-level shape-tree children generically:
// sp/pic/cxnSp/grpSp/graphicFrame, preserving document order.
type rawSpTree struct {
	Elements []rawTreeElement `xml:",any"`
}

type rawTreeElement struct {
	XMLName xml.Name
	Inner   []byte `xml:",innerxml"`
}

func canonicalizeShapeElement(pkg *ooxmlpkg.Package, slidePart string, el rawTreeElement, z int, relByID map[string]rawOOXMLRel, settings *Settings) (*ShapeSignature, error) {
	tag := el.XMLName.Local
	switch tag {
	case "sp":
		return canonicalizeSp(el.Inner, z, relByID, settings)
	case "pic":
		return canonicalizePic(pkg, slidePart, el.Inner, z, relByID, settings)
	case "cxnSp":
		return canonicalizeCxnSp(el.Inner, z)
	case "grpSp":
		return canonicalizeGrpSp(pkg, slidePart, el.Inner, z, relByID, settings)
	case "graphicFrame":
		return canonicalizeGraphicFrame(pkg, slidePart, el.Inner, z, relByID, settings)
	default:
		return nil, nil
	}
}

// --- <p:sp> : AutoShape / TextBox ---

type rawSp struct {
	NvSpPr struct {
		CNvPr struct {
			ID   uint32 `xml:"id,attr"`
			Name string `xml:"name,attr"`
		} `xml:"cNvPr"`
		NvPr struct {
			Ph *struct {
				Type string `xml:"type,attr"`
				Idx  *int   `xml:"idx,attr"`
			} `xml:"ph"`
		} `xml:"nvPr"`
	} `xml:"nvSpPr"`
	SpPr   rawSpPr    `xml:"spPr"`
	TxBody *rawTxBody `xml:"txBody"`
}

type rawSpPr struct {
	Xfrm     *rawXfrm `xml:"xfrm"`
	PrstGeom *struct {
		Prst string `xml:"prst,attr"`
	} `xml:"prstGeom"`
	CustGeom *rawInnerXML `xml:"custGeom"`
}

type rawXfrm struct {
	Rot   int  `xml:"rot,attr"`
	FlipH bool `xml:"flipH,attr"`
	FlipV bool `xml:"flipV,attr"`
	Off   struct {
		X int64 `xml:"x,attr"`
		Y int64 `xml:"y,attr"`
	} `xml:"off"`
	Ext struct {
		Cx int64 `xml:"cx,attr"`
		Cy int64 `xml:"cy,attr"`
	} `xml:"ext"`
}

func (x *rawXfrm) toTransform() TransformSignature {
	if x == nil {
		return TransformSignature{}
	}
	return TransformSignature{
		X: x.Off.X, Y: x.Off.Y,
		Cx: x.Ext.Cx, Cy: x.Ext.Cy,
		Rotation: x.Rot / 60000,
		FlipH:    x.FlipH,
		FlipV:    x.FlipV,
	}
}

func canonicalizeSp(inner []byte, z int, relByID map[string]rawOOXMLRel, settings *Settings) (*ShapeSignature, error) {
	var sp rawSp
	if err := xml.Unmarshal(wrapElement("sp", inner), &sp); err != nil {
		return nil, fmt.Errorf("parse sp: %w", err)
	}

	text := canonicalizeTextBody(sp.TxBody)
	hasText := text != nil && text.PlainText != ""
	typ := classifyTag("sp", hasText)

	sig := &ShapeSignature{
		ID:        sp.NvSpPr.CNvPr.ID,
		Name:      sp.NvSpPr.CNvPr.Name,
		Type:      typ,
		Transform: sp.SpPr.Xfrm.toTransform(),
		ZOrder:    z,
		Text:      text,
	}
	if sp.NvSpPr.NvPr.Ph != nil {
		sig.Placeholder = &PlaceholderInfo{Type: sp.NvSpPr.NvPr.Ph.Type, Index: sp.NvSpPr.NvPr.Ph.Idx}
		if sig.Placeholder.Type == "" {
			sig.Placeholder.Type = "body"
		}
	}
	if sp.SpPr.CustGeom != nil {
		sig.GeometryHash = hashutil.ContentString(sp.SpPr.CustGeom.Inner)
	} else if sp.SpPr.PrstGeom != nil {
		sig.GeometryHash = sp.SpPr.PrstGeom.Prst
	}

	sig.ContentHash = BuildShapeContentHash(typ, sig.PlainText(), "", "", "")
	return sig, nil
}

// --- <p:cxnSp> : Connector ---

func canonicalizeCxnSp(inner []byte, z int) (*ShapeSignature, error) {
	var cxn struct {
		NvCxnSpPr struct {
			CNvPr struct {
				ID   uint32 `xml:"id,attr"`
				Name string `xml:"name,attr"`
			} `xml:"cNvPr"`
		} `xml:"nvCxnSpPr"`
		SpPr rawSpPr `xml:"spPr"`
	}
	if err := xml.Unmarshal(wrapElement("cxnSp", inner), &cxn); err != nil {
		return nil, fmt.Errorf("parse cxnSp: %w", err)
	}
	sig := &ShapeSignature{
		ID:        cxn.NvCxnSpPr.CNvPr.ID,
		Name:      cxn.NvCxnSpPr.CNvPr.Name,
		Type:      ShapeConnector,
		Transform: cxn.SpPr.Xfrm.toTransform(),
		ZOrder:    z,
	}
	if cxn.SpPr.PrstGeom != nil {
		sig.GeometryHash = cxn.SpPr.PrstGeom.Prst
	}
	sig.ContentHash = BuildShapeContentHash(ShapeConnector, "", "", "", "")
	return sig, nil
}

// --- <p:pic> : Picture ---

type rawPic struct {
	NvPicPr struct {
		CNvPr struct {
			ID   uint32 `xml:"id,attr"`
			Name string `xml:"name,attr"`
		} `xml:"cNvPr"`
	} `xml:"nvPicPr"`
	BlipFill struct {
		Blip struct {
			Embed string `xml:"embed,attr"`
		} `xml:"blip"`
	} `xml:"blipFill"`
	SpPr rawSpPr `xml:"spPr"`
}

func canonicalizePic(pkg *ooxmlpkg.Package, slidePart string, inner []byte, z int, relByID map[string]rawOOXMLRel, settings *Settings) (*ShapeSignature, error) {
	var pic rawPic
	if err := xml.Unmarshal(wrapElement("pic", inner), &pic); err != nil {
		return nil, fmt.Errorf("parse pic: %w", err)
	}
	sig := &ShapeSignature{
		ID:        pic.NvPicPr.CNvPr.ID,
		Name:      pic.NvPicPr.CNvPr.Name,
		Type:      ShapePicture,
		Transform: pic.SpPr.Xfrm.toTransform(),
		ZOrder:    z,
	}

	if settings.CompareImageContent && pic.BlipFill.Blip.Embed != "" {
		if rel, ok := relByID[pic.BlipFill.Blip.Embed]; ok {
			data, err := pkg.Bytes(rel.Target)
			if err != nil {
				settings.log(errs.NewResource("pml.canonicalizePic", slidePart, rel.Target, err))
			} else if _, _, decErr := image.Decode(bytes.NewReader(data)); decErr != nil {
				// ResourceError policy: a corrupt/unsupported image degrades
				// the hash to null rather than aborting.
				settings.log(errs.NewResource("pml.canonicalizePic", slidePart, rel.Target, decErr))
			} else {
				sig.Image = hashutil.Content(data)
			}
		}
	}

	sig.ContentHash = BuildShapeContentHash(ShapePicture, "", sig.Image, "", "")
	return sig, nil
}

// --- <p:grpSp> : Group ---

type rawGrpSp struct {
	NvGrpSpPr struct {
		CNvPr struct {
			ID   uint32 `xml:"id,attr"`
			Name string `xml:"name,attr"`
		} `xml:"cNvPr"`
	} `xml:"nvGrpSpPr"`
	GrpSpPr struct {
		Xfrm *rawXfrm `xml:"xfrm"`
	} `xml:"grpSpPr"`
	Children []rawTreeElement `xml:",any"`
}

func canonicalizeGrpSp(pkg *ooxmlpkg.Package, slidePart string, inner []byte, z int, relByID map[string]rawOOXMLRel, settings *Settings) (*ShapeSignature, error) {
	var grp rawGrpSp
	if err := xml.Unmarshal(wrapElement("grpSp", inner), &grp); err != nil {
		return nil, fmt.Errorf("parse grpSp: %w", err)
	}

	sig := &ShapeSignature{
		ID:        grp.NvGrpSpPr.CNvPr.ID,
		Name:      grp.NvGrpSpPr.CNvPr.Name,
		Type:      ShapeGroup,
		Transform: grp.GrpSpPr.Xfrm.toTransform(),
		ZOrder:    z,
	}

	childZ := 0
	var childTexts []string
	for _, child := range grp.Children {
		childSig, err := canonicalizeShapeElement(pkg, slidePart, child, childZ+1, relByID, settings)
		if err != nil {
			settings.log(err)
			continue
		}
		if childSig == nil {
			continue
		}
		childZ++
		sig.Children = append(sig.Children, childSig)
		childTexts = append(childTexts, childSig.PlainText())
	}

	sig.ContentHash = BuildShapeContentHash(ShapeGroup, strings.Join(childTexts, "\n"), "", "", "")
	return sig, nil
}

// --- <p:graphicFrame> : Table / Chart / SmartArt / OleObject ---

type rawGraphicFrame struct {
	NvGraphicFramePr struct {
		CNvPr struct {
			ID   uint32 `xml:"id,attr"`
			Name string `xml:"name,attr"`
		} `xml:"cNvPr"`
	} `xml:"nvGraphicFramePr"`
	Xfrm    *rawXfrm `xml:"xfrm"`
	Graphic struct {
		GraphicData struct {
			URI   string `xml:"uri,attr"`
			Inner []byte `xml:",innerxml"`
		} `xml:"graphicData"`
	} `xml:"graphic"`
}

func canonicalizeGraphicFrame(pkg *ooxmlpkg.Package, slidePart string, inner []byte, z int, relByID map[string]rawOOXMLRel, settings *Settings) (*ShapeSignature, error) {
	var gf rawGraphicFrame
	if err := xml.Unmarshal(wrapElement("graphicFrame", inner), &gf); err != nil {
		return nil, fmt.Errorf("parse graphicFrame: %w", err)
	}

	typ := graphicFrameType(gf.Graphic.GraphicData.URI)
	sig := &ShapeSignature{
		ID:        gf.NvGraphicFramePr.CNvPr.ID,
		Name:      gf.NvGraphicFramePr.CNvPr.Name,
		Type:      typ,
		Transform: gf.Xfrm.toTransform(),
		ZOrder:    z,
	}

	switch typ {
	case ShapeTable:
		if settings.CompareTables {
			sig.Table = hashTableXML(gf.Graphic.GraphicData.Inner)
		}
	case ShapeChart:
		if settings.CompareCharts {
			sig.Chart = hashChartPart(pkg, slidePart, gf.Graphic.GraphicData.Inner, relByID, settings)
		}
	}

	sig.ContentHash = BuildShapeContentHash(typ, "", "", sig.Table, sig.Chart)
	return sig, nil
}

// hashTableXML hashes the concatenation of cell plain texts in row-major
// order, separated by "|" within a row and "||" between rows.
func hashTableXML(tblXML []byte) string {
	var wrap struct {
		Tbl struct {
			Rows []struct {
				Cells []struct {
					TxBody rawTxBody `xml:"txBody"`
				} `xml:"tc"`
			} `xml:"tr"`
		} `xml:"tbl"`
	}
	if err := xml.Unmarshal(wrapElement("graphicData", tblXML), &wrap); err != nil {
		return ""
	}
	var rows []string
	for _, row := range wrap.Tbl.Rows {
		var cells []string
		for _, cell := range row.Cells {
			body := canonicalizeTextBody(&cell.TxBody)
			if body != nil {
				cells = append(cells, body.PlainText)
			} else {
				cells = append(cells, "")
			}
		}
		rows = append(rows, strings.Join(cells, "|"))
	}
	return hashutil.ContentString(strings.Join(rows, "||"))
}

// hashChartPart resolves the graphicFrame's chart relationship id and
// hashes the referenced chart part's normalized XML bytes. A missing or
// unreadable chart part degrades the hash to "".
func hashChartPart(pkg *ooxmlpkg.Package, slidePart string, chartRefXML []byte, relByID map[string]rawOOXMLRel, settings *Settings) string {
	var ref struct {
		Chart struct {
			RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"chart"`
	}
	if err := xml.Unmarshal(wrapElement("graphicData", chartRefXML), &ref); err != nil || ref.Chart.RID == "" {
		return ""
	}
	rel, ok := relByID[ref.Chart.RID]
	if !ok {
		return ""
	}
	data, err := pkg.Bytes(rel.Target)
	if err != nil {
		settings.log(errs.NewResource("pml.hashChartPart", slidePart, rel.Target, err))
		return ""
	}
	return hashutil.Content(normalizeXMLWhitespace(data))
}

// normalizeXMLWhitespace collapses insignificant inter-tag whitespace so
// that re-serialized chart XML that differs only in formatting does not
// register as a content change.
func normalizeXMLWhitespace(data []byte) []byte {
	s := string(data)
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, ">", "> ")), " ")
	return []byte(s)
}

// --- text body / paragraph / run ---

type rawTxBody struct {
	Paragraphs []rawParagraph `xml:"p"`
}

type rawParagraph struct {
	PPr *struct {
		Algn      string    `xml:"algn,attr"`
		BuNone    *struct{} `xml:"buNone"`
		BuChar    *struct{} `xml:"buChar"`
		BuAutoNum *struct{} `xml:"buAutoNum"`
	} `xml:"pPr"`
	Runs   []rawRun `xml:"r"`
	Fields []rawRun `xml:"fld"`
}

type rawRun struct {
	RPr *rawRPr `xml:"rPr"`
	T   string  `xml:"t"`
}

type rawRPr struct {
	B      string `xml:"b,attr"`
	I      string `xml:"i,attr"`
	U      string `xml:"u,attr"`
	Strike string `xml:"strike,attr"`
	Sz     string `xml:"sz,attr"`
	Latin  *struct {
		Typeface string `xml:"typeface,attr"`
	} `xml:"latin"`
	SolidFill *struct {
		SrgbClr *struct {
			Val string `xml:"val,attr"`
		} `xml:"srgbClr"`
		SchemeClr *struct {
			Val string `xml:"val,attr"`
		} `xml:"schemeClr"`
	} `xml:"solidFill"`
}

func canonicalizeTextBody(tx *rawTxBody) *TextBodySignature {
	if tx == nil {
		return nil
	}
	sig := &TextBodySignature{}
	var allParas []string
	for _, p := range tx.Paragraphs {
		para := &ParagraphSignature{}
		if p.PPr != nil {
			para.Alignment = p.PPr.Algn
			para.HasBullet = p.PPr.BuNone == nil && (p.PPr.BuChar != nil || p.PPr.BuAutoNum != nil)
		}
		var paraText []string
		for _, r := range append(append([]rawRun{}, p.Runs...), p.Fields...) {
			run := &RunSignature{Text: textnorm.Normalize(r.T)}
			if r.RPr != nil {
				run.Props = RunPropertiesSignature{
					Bold:          r.RPr.B == "1" || r.RPr.B == "true",
					Italic:        r.RPr.I == "1" || r.RPr.I == "true",
					Underline:     r.RPr.U != "" && r.RPr.U != "none",
					Strikethrough: r.RPr.Strike != "" && r.RPr.Strike != "noStrike",
				}
				if r.RPr.Latin != nil {
					run.Props.FontName = r.RPr.Latin.Typeface
				}
				if r.RPr.Sz != "" {
					if v, err := strconv.Atoi(r.RPr.Sz); err == nil {
						run.Props.FontSize = float64(v) / 100.0
					}
				}
				if r.RPr.SolidFill != nil {
					if r.RPr.SolidFill.SrgbClr != nil {
						run.Props.FontColor = strings.ToUpper(r.RPr.SolidFill.SrgbClr.Val)
					} else if r.RPr.SolidFill.SchemeClr != nil {
						run.Props.FontColor = "scheme:" + r.RPr.SolidFill.SchemeClr.Val
					}
				}
			}
			para.Runs = append(para.Runs, run)
			paraText = append(paraText, run.Text)
		}
		para.PlainText = strings.Join(paraText, "")
		sig.Paragraphs = append(sig.Paragraphs, para)
		allParas = append(allParas, para.PlainText)
	}
	sig.PlainText = strings.Join(allParas, "\n")
	return sig
}

// wrapElement re-wraps an element's raw inner XML with its own start/end
// tags so it can be unmarshaled standalone with xml.Unmarshal (rawTreeElement
// only captures innerxml, which excludes the wrapping tag itself).
func wrapElement(tag string, inner []byte) []byte {
	var b bytes.Buffer
	b.WriteString("<")
	b.WriteString(tag)
	b.WriteString(" xmlns:a=\"http://schemas.openxmlformats.org/drawingml/2006/main\" xmlns:p=\"http://schemas.openxmlformats.org/presentationml/2006/main\" xmlns:r=\"http://schemas.openxmlformats.org/officeDocument/2006/relationships\">")
	b.Write(inner)
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteString(">")
	return b.Bytes()
}
