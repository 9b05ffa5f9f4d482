// Package textnorm normalizes comparison text so that presentations and
// workbooks which differ only in Unicode representation (combining marks vs
// precomposed characters) are not reported as changed, and provides
// Unicode-correct case folding for the case-insensitive comparison toggles.
package textnorm

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize applies NFC normalization to s, the canonical form used before
// hashing or comparing any run/cell text.
func Normalize(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}

// FoldCase returns a Unicode case-folded copy of s, for use when a
// case-insensitive comparison toggle (e.g. SmlSettings.CaseInsensitiveValues)
// is enabled. Unlike strings.ToLower, this correctly folds non-ASCII scripts.
func FoldCase(s string) string {
	return folder.String(s)
}

// EqualFold reports whether a and b are equal after Unicode case folding.
func EqualFold(a, b string) bool {
	return FoldCase(a) == FoldCase(b)
}

var englishCaser = cases.Upper(language.English)

// Upper returns the ALL-CAPS form of s using English case rules, used for
// overlay label text.
func Upper(s string) string {
	return englishCaser.String(s)
}
