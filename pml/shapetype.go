package pml

// ShapeType classifies a top-level shape-tree element.
type ShapeType int

const (
	ShapeUnknown ShapeType = iota
	ShapeTextBox
	ShapeAutoShape
	ShapePicture
	ShapeTable
	ShapeChart
	ShapeSmartArt
	ShapeGroup
	ShapeConnector
	ShapeOleObject
	ShapeMedia
)

func (t ShapeType) String() string {
	switch t {
	case ShapeTextBox:
		return "TextBox"
	case ShapeAutoShape:
		return "AutoShape"
	case ShapePicture:
		return "Picture"
	case ShapeTable:
		return "Table"
	case ShapeChart:
		return "Chart"
	case ShapeSmartArt:
		return "SmartArt"
	case ShapeGroup:
		return "Group"
	case ShapeConnector:
		return "Connector"
	case ShapeOleObject:
		return "OleObject"
	case ShapeMedia:
		return "Media"
	default:
		return "Unknown"
	}
}

// graphicFrameType dispatches on the graphicData/@uri value of a
// graphicFrame element.
func graphicFrameType(uri string) ShapeType {
	switch {
	case hasSuffixURI(uri, "drawingml/2006/table"):
		return ShapeTable
	case hasSuffixURI(uri, "drawingml/2006/chart"):
		return ShapeChart
	case hasSuffixURI(uri, "drawingml/2006/diagram"):
		return ShapeSmartArt
	default:
		return ShapeOleObject
	}
}

func hasSuffixURI(uri, suffix string) bool {
	n := len(uri)
	m := len(suffix)
	return n >= m && uri[n-m:] == suffix
}

// classifyTag maps a slide-tree element's local tag name to a ShapeType,
// deferring to hasText for the sp -> TextBox vs AutoShape distinction.
func classifyTag(tag string, hasText bool) ShapeType {
	switch tag {
	case "sp":
		if hasText {
			return ShapeTextBox
		}
		return ShapeAutoShape
	case "pic":
		return ShapePicture
	case "cxnSp":
		return ShapeConnector
	case "grpSp":
		return ShapeGroup
	default:
		return ShapeUnknown
	}
}
