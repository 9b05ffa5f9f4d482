package sml

import "github.com/VantageDataChat/ooxmlcompare/errs"

// Settings controls every comparison toggle and tolerance for the SML
// (workbook) pipeline. A nil Settings passed to Compare or
// ProduceMarked is replaced with DefaultSettings(), not treated as an error.
type Settings struct {
	CompareValues                  bool
	CompareFormulas                bool
	CompareFormatting              bool
	CompareSheetStructure          bool
	CaseInsensitiveValues          bool
	NumericTolerance               float64
	EnableRowAlignment             bool
	EnableColumnAlignment          bool
	EnableSheetRenameDetection     bool
	SheetRenameSimilarityThreshold float64
	RowSignatureSampleSize         int
	AuthorForChanges               string

	ColorValueChanged   string // RRGGBB
	ColorFormulaChanged string
	ColorFormatChanged  string
	ColorCellAdded      string
	ColorCellDeleted    string
	ColorRowChanged     string
	ColorColumnChanged  string

	// Log, when non-nil, receives every recoverable PartParseError and
	// ResourceError the pipeline swallows. Injected per call rather than
	// any global logger.
	Log errs.LogFunc
}

// DefaultSettings returns the documented default settings.
func DefaultSettings() *Settings {
	return &Settings{
		CompareValues:                  true,
		CompareFormulas:                true,
		CompareFormatting:              true,
		CompareSheetStructure:          true,
		CaseInsensitiveValues:          false,
		NumericTolerance:               0.0,
		EnableRowAlignment:             false,
		EnableColumnAlignment:          false,
		EnableSheetRenameDetection:     true,
		SheetRenameSimilarityThreshold: 0.7,
		RowSignatureSampleSize:         10,
		ColorValueChanged:              "FFFF00",
		ColorFormulaChanged:            "FFC000",
		ColorFormatChanged:             "00B0F0",
		ColorCellAdded:                 "92D050",
		ColorCellDeleted:               "FF0000",
		ColorRowChanged:                "C6E0B4",
		ColorColumnChanged:             "D9D2E9",
	}
}

func resolveSettings(s *Settings) *Settings {
	if s == nil {
		return DefaultSettings()
	}
	return s
}

func (s *Settings) log(err error) {
	if s != nil && s.Log != nil && err != nil {
		s.Log(err)
	}
}
