package pml

import (
	"sort"

	"github.com/VantageDataChat/ooxmlcompare/internal/hashutil"
	"github.com/VantageDataChat/ooxmlcompare/internal/textnorm"
)

// ShapePair is one outcome of shape matching within a single matched slide
// pair: a matched pair, a deletion (New nil), or an insertion (Old nil).
type ShapePair struct {
	Old *ShapeSignature
	New *ShapeSignature
}

// MatchShapes pairs the shapes of one matched slide pair across four
// specific-to-general passes:
//
//  1. placeholder equality (same placeholder type, and both indices absent
//     or both present and equal)
//  2. name + type equality
//  3. name-only equality
//  4. fuzzy weighted scoring above ShapeSimilarityThreshold, greedy by
//     descending score (when EnableFuzzyShapeMatching)
//
// Anything left unmatched becomes a pure insert/delete.
func MatchShapes(old, new []*ShapeSignature, settings *Settings) []ShapePair {
	settings = resolveSettings(settings)

	oldLeft := make([]*ShapeSignature, len(old))
	copy(oldLeft, old)
	newLeft := make([]*ShapeSignature, len(new))
	copy(newLeft, new)

	var pairs []ShapePair

	oldLeft, newLeft, matched := matchShapesBy(oldLeft, newLeft, placeholderEqual)
	pairs = append(pairs, matched...)

	oldLeft, newLeft, matched = matchShapesBy(oldLeft, newLeft, func(a, b *ShapeSignature) bool {
		return a.Name != "" && a.Name == b.Name && a.Type == b.Type
	})
	pairs = append(pairs, matched...)

	oldLeft, newLeft, matched = matchShapesBy(oldLeft, newLeft, func(a, b *ShapeSignature) bool {
		return a.Name != "" && a.Name == b.Name
	})
	pairs = append(pairs, matched...)

	if settings.EnableFuzzyShapeMatching && len(oldLeft) > 0 && len(newLeft) > 0 {
		var fuzzy []ShapePair
		oldLeft, newLeft, fuzzy = matchShapesFuzzy(oldLeft, newLeft, settings.ShapeSimilarityThreshold, settings.PositionTolerance)
		pairs = append(pairs, fuzzy...)
	}

	for _, o := range oldLeft {
		pairs = append(pairs, ShapePair{Old: o})
	}
	for _, n := range newLeft {
		pairs = append(pairs, ShapePair{New: n})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return shapePairZOrder(pairs[i]) < shapePairZOrder(pairs[j])
	})

	return pairs
}

func shapePairZOrder(p ShapePair) int {
	if p.Old != nil {
		return p.Old.ZOrder
	}
	if p.New != nil {
		return p.New.ZOrder
	}
	return 0
}

func placeholderEqual(a, b *ShapeSignature) bool {
	if a.Placeholder == nil || b.Placeholder == nil {
		return false
	}
	if a.Placeholder.Type != b.Placeholder.Type {
		return false
	}
	if a.Placeholder.Index != nil && b.Placeholder.Index != nil {
		return *a.Placeholder.Index == *b.Placeholder.Index
	}
	return a.Placeholder.Index == nil && b.Placeholder.Index == nil
}

func matchShapesBy(old, new []*ShapeSignature, equal func(a, b *ShapeSignature) bool) (oldLeft, newLeft []*ShapeSignature, pairs []ShapePair) {
	oldUsed := make([]bool, len(old))
	newUsed := make([]bool, len(new))
	for i, o := range old {
		for j, n := range new {
			if newUsed[j] {
				continue
			}
			if equal(o, n) {
				pairs = append(pairs, ShapePair{Old: o, New: n})
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

type shapeScore struct {
	oldIdx, newIdx int
	score          float64
}

func matchShapesFuzzy(old, new []*ShapeSignature, threshold float64, posTol int64) (oldLeft, newLeft []*ShapeSignature, pairs []ShapePair) {
	var candidates []shapeScore
	for i, o := range old {
		for j, n := range new {
			s := shapeSimilarity(o, n, posTol)
			if s >= threshold {
				candidates = append(candidates, shapeScore{i, j, s})
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
		pairs = append(pairs, ShapePair{Old: old[c.oldIdx], New: new[c.newIdx]})
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

// shapeSimilarity is the scoring formula from pass 4: same
// type required (else 0) + 0.2 base; +0.3 if transforms are near (within
// PositionTolerance), else +0.1 if within 5x tolerance; +0.5 for exact image
// hash (Pictures), exact plain text or Levenshtein similarity scaled by 0.5
// for text shapes, exact content hash otherwise.
func shapeSimilarity(a, b *ShapeSignature, posTol int64) float64 {
	if a.Type != b.Type {
		return 0
	}
	score := 0.2

	if a.Transform.Near(b.Transform, posTol) {
		score += 0.3
	} else if a.Transform.Near(b.Transform, posTol*5) {
		score += 0.1
	}

	switch a.Type {
	case ShapePicture:
		if a.Image != "" && a.Image == b.Image {
			score += 0.5
		}
	case ShapeTextBox, ShapeAutoShape:
		at, bt := textnorm.Normalize(a.PlainText()), textnorm.Normalize(b.PlainText())
		if at == bt {
			score += 0.5
		} else {
			score += 0.5 * hashutil.StringSimilarity(at, bt)
		}
	default:
		if a.ContentHash != "" && a.ContentHash == b.ContentHash {
			score += 0.5
		}
	}

	return score
}
