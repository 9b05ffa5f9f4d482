package pml

import "github.com/VantageDataChat/ooxmlcompare/errs"

// Settings controls every comparison toggle and tolerance for the PML
// (presentation) pipeline. A nil Settings passed to Compare or
// ProduceMarked is replaced with DefaultSettings(), not treated as an error.
type Settings struct {
	CompareSlideStructure    bool
	CompareShapeStructure    bool
	CompareTextContent       bool
	CompareTextFormatting    bool
	CompareShapeTransforms   bool
	CompareShapeStyles       bool
	CompareImageContent      bool
	CompareCharts            bool
	CompareTables            bool
	CompareNotes             bool
	CompareTransitions       bool
	EnableFuzzyShapeMatching bool
	SlideSimilarityThreshold float64
	ShapeSimilarityThreshold float64

	// PositionTolerance is in EMU (English Metric Units), ~914,400 per inch.
	PositionTolerance int64

	UseSlideAlignmentLCS bool
	AuthorForChanges     string
	AddSummarySlide      bool
	AddNotesAnnotations  bool

	ColorInsert string // RRGGBB
	ColorMove   string
	ColorModify string
	ColorDelete string
	ColorResize string

	// Log, when non-nil, receives every recoverable PartParseError and
	// ResourceError the pipeline swallows. Injected per call rather than
	// any global logger.
	Log errs.LogFunc
}

// DefaultSettings returns the documented default settings.
func DefaultSettings() *Settings {
	return &Settings{
		CompareSlideStructure:    true,
		CompareShapeStructure:    true,
		CompareTextContent:       true,
		CompareTextFormatting:    true,
		CompareShapeTransforms:   true,
		CompareShapeStyles:       false,
		CompareImageContent:      true,
		CompareCharts:            true,
		CompareTables:            true,
		CompareNotes:             false,
		CompareTransitions:       false,
		EnableFuzzyShapeMatching: true,
		SlideSimilarityThreshold: 0.6,
		ShapeSimilarityThreshold: 0.7,
		PositionTolerance:        91440,
		UseSlideAlignmentLCS:     true,
		AddSummarySlide:          true,
		AddNotesAnnotations:      true,
		ColorInsert:              "92D050",
		ColorMove:                "FFC000",
		ColorModify:              "00B0F0",
		ColorDelete:              "FF0000",
		ColorResize:              "7030A0",
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
