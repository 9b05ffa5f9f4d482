package pml

import (
	"sort"

	"github.com/VantageDataChat/ooxmlcompare/internal/hashutil"
	"github.com/VantageDataChat/ooxmlcompare/internal/textnorm"
)

// SlidePair is one outcome of slide matching: a matched pair (both non-nil),
// a deletion (New nil), or an insertion (Old nil).
type SlidePair struct {
	Old *SlideSignature
	New *SlideSignature
}

// MatchSlides pairs old and new slides across four specific-to-general
// passes, each consuming only what remains unmatched from the prior pass:
//
//  1. exact non-empty title match
//  2. exact fingerprint match
//  3. when UseSlideAlignmentLCS is on: similarity matrix over the remainder,
//     greedy-picking the highest-scoring pair repeatedly while the score is
//     >= SlideSimilarityThreshold; when off, positional pairing by index
//  4. unmatched remainder: Deleted for old-only, Inserted for new-only
//
// Output is sorted by new index ascending, old index as tiebreaker.
func MatchSlides(oldSlides, newSlides []*SlideSignature, settings *Settings) []SlidePair {
	settings = resolveSettings(settings)

	oldLeft := make([]*SlideSignature, len(oldSlides))
	copy(oldLeft, oldSlides)
	newLeft := make([]*SlideSignature, len(newSlides))
	copy(newLeft, newSlides)

	var pairs []SlidePair

	// Pass 1: exact title.
	oldLeft, newLeft, matched := matchSlidesBy(oldLeft, newLeft, func(a, b *SlideSignature) bool {
		return a.Title != "" && a.Title == b.Title
	})
	pairs = append(pairs, matched...)

	// Pass 2: exact fingerprint.
	oldLeft, newLeft, matched = matchSlidesBy(oldLeft, newLeft, func(a, b *SlideSignature) bool {
		return a.Fingerprint != "" && a.Fingerprint == b.Fingerprint
	})
	pairs = append(pairs, matched...)

	// Pass 3.
	if len(oldLeft) > 0 && len(newLeft) > 0 {
		if settings.UseSlideAlignmentLCS {
			var fuzzy []SlidePair
			oldLeft, newLeft, fuzzy = matchSlidesFuzzy(oldLeft, newLeft, settings.SlideSimilarityThreshold)
			pairs = append(pairs, fuzzy...)
		} else {
			n := len(oldLeft)
			if len(newLeft) < n {
				n = len(newLeft)
			}
			for i := 0; i < n; i++ {
				pairs = append(pairs, SlidePair{Old: oldLeft[i], New: newLeft[i]})
			}
			oldLeft = oldLeft[n:]
			newLeft = newLeft[n:]
		}
	}

	// Pass 4: remainder.
	for _, o := range oldLeft {
		pairs = append(pairs, SlidePair{Old: o})
	}
	for _, n := range newLeft {
		pairs = append(pairs, SlidePair{New: n})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairSortKey(pairs[i]) < pairSortKey(pairs[j])
	})

	return pairs
}

// pairSortKey sorts by new index ascending, with old index as tiebreaker
// for deletions (no new index): a deletion sorts by its old index among
// its peers, just ahead of any insert/match sharing that nominal position.
func pairSortKey(p SlidePair) int {
	if p.New != nil {
		return p.New.Index*2 + 1
	}
	return p.Old.Index * 2
}

// matchSlidesBy greedily consumes old/new in document order, pairing the
// first unconsumed new slide satisfying equal for each unconsumed old slide.
func matchSlidesBy(old, new []*SlideSignature, equal func(a, b *SlideSignature) bool) (oldLeft, newLeft []*SlideSignature, pairs []SlidePair) {
	newUsed := make([]bool, len(new))
	oldUsed := make([]bool, len(old))
	for i, o := range old {
		for j, n := range new {
			if newUsed[j] {
				continue
			}
			if equal(o, n) {
				pairs = append(pairs, SlidePair{Old: o, New: n})
				oldUsed[i] = true
				newUsed[j] = true
				break
			}
		}
	}
	for i, o := range old {
		if !oldUsed[i] {
			oldLeft = append(oldLeft, o)
		}
	}
	for j, n := range new {
		if !newUsed[j] {
			newLeft = append(newLeft, n)
		}
	}
	return oldLeft, newLeft, pairs
}

type slideScore struct {
	oldIdx, newIdx int
	score          float64
}

// matchSlidesFuzzy builds the full similarity matrix over the remainder and
// greedily assigns the highest-scoring pair first, repeating while the best
// remaining score is still >= threshold.
func matchSlidesFuzzy(old, new []*SlideSignature, threshold float64) (oldLeft, newLeft []*SlideSignature, pairs []SlidePair) {
	var candidates []slideScore
	for i, o := range old {
		for j, n := range new {
			s := slideSimilarity(o, n)
			if s >= threshold {
				candidates = append(candidates, slideScore{i, j, s})
			}
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	oldUsed := make([]bool, len(old))
	newUsed := make([]bool, len(new))
	for _, c := range candidates {
		if oldUsed[c.oldIdx] || newUsed[c.newIdx] {
			continue
		}
		pairs = append(pairs, SlidePair{Old: old[c.oldIdx], New: new[c.newIdx]})
		oldUsed[c.oldIdx] = true
		newUsed[c.newIdx] = true
	}
	for i, o := range old {
		if !oldUsed[i] {
			oldLeft = append(oldLeft, o)
		}
	}
	for j, n := range new {
		if !newUsed[j] {
			newLeft = append(newLeft, n)
		}
	}
	return oldLeft, newLeft, pairs
}

// slideSimilarity is the weighted sum of field-level scores, normalized to
// [0, 1] by the maximum score achievable given which fields are present:
// title exact-match = 3, title non-empty partial (token Jaccard) scaled x2,
// content-hash equal = 2, shape count equal = 1 (0.5 within +-2), shape-type
// multiset equal = 1.
func slideSimilarity(a, b *SlideSignature) float64 {
	score, max := 0.0, 0.0

	if a.Title != "" && b.Title != "" {
		max += 3
		if a.Title == b.Title {
			score += 3
		} else {
			score += 2 * hashutil.JaccardTokens(textnorm.FoldCase(a.Title), textnorm.FoldCase(b.Title))
		}
	}

	max += 2
	if a.ContentHash != "" && a.ContentHash == b.ContentHash {
		score += 2
	}

	max += 1
	diff := len(a.Shapes) - len(b.Shapes)
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		score += 1
	case diff <= 2:
		score += 0.5
	}

	max += 1
	if shapeTypeMultisetEqual(a.Shapes, b.Shapes) {
		score += 1
	}

	if max == 0 {
		return 0
	}
	return score / max
}

func shapeTypeMultisetEqual(a, b []*ShapeSignature) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[ShapeType]int, len(a))
	for _, s := range a {
		counts[s.Type]++
	}
	for _, s := range b {
		counts[s.Type]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}
