package sml

import (
	"sort"
)

// SheetPair is one outcome of sheet matching: a matched or renamed pair
// (both non-nil, Renamed true iff the names differ), a deletion (New nil),
// or an addition (Old nil).
type SheetPair struct {
	Old     *WorksheetSignature
	New     *WorksheetSignature
	Renamed bool
}

// MatchSheets pairs old and new worksheets across three specific-to-general
// passes:
//
//  1. exact name intersection
//  2. exact content-hash rename (only when rename detection is enabled)
//  3. similarity rename: Jaccard over matching (address,value) pairs,
//     greedy while score >= SheetRenameSimilarityThreshold
//
// Remainder becomes Added/Deleted.
func MatchSheets(oldSheets, newSheets map[string]*WorksheetSignature, oldOrder, newOrder []string, settings *Settings) []SheetPair {
	settings = resolveSettings(settings)

	oldLeft := orderedSheets(oldSheets, oldOrder)
	newLeft := orderedSheets(newSheets, newOrder)

	var pairs []SheetPair

	// Pass 1: exact name intersection.
	oldLeft, newLeft, matched := matchSheetsBy(oldLeft, newLeft, func(a, b *WorksheetSignature) bool {
		return a.Name == b.Name
	})
	pairs = append(pairs, matched...)

	// Pass 2: exact content-hash rename.
	if settings.EnableSheetRenameDetection {
		oldLeft, newLeft, matched = matchSheetsBy(oldLeft, newLeft, func(a, b *WorksheetSignature) bool {
			return a.ContentHash != "" && a.ContentHash == b.ContentHash
		})
		for i := range matched {
			matched[i].Renamed = true
		}
		pairs = append(pairs, matched...)

		// Pass 3: similarity rename.
		var fuzzy []SheetPair
		oldLeft, newLeft, fuzzy = matchSheetsFuzzy(oldLeft, newLeft, settings.SheetRenameSimilarityThreshold)
		pairs = append(pairs, fuzzy...)
	}

	// Pass 4: remainder.
	for _, o := range oldLeft {
		pairs = append(pairs, SheetPair{Old: o})
	}
	for _, n := range newLeft {
		pairs = append(pairs, SheetPair{New: n})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return sheetPairSortKey(pairs[i]) < sheetPairSortKey(pairs[j])
	})

	return pairs
}

func sheetPairSortKey(p SheetPair) string {
	if p.New != nil {
		return p.New.Name
	}
	return p.Old.Name
}

func orderedSheets(sheets map[string]*WorksheetSignature, order []string) []*WorksheetSignature {
	out := make([]*WorksheetSignature, 0, len(sheets))
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if ws, ok := sheets[name]; ok {
			out = append(out, ws)
			seen[name] = true
		}
	}
	// Any sheet not covered by the order slice (defensive) is appended in a
	// deterministic, name-sorted tail.
	var rest []string
	for name := range sheets {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, sheets[name])
	}
	return out
}

func matchSheetsBy(old, new []*WorksheetSignature, equal func(a, b *WorksheetSignature) bool) (oldLeft, newLeft []*WorksheetSignature, pairs []SheetPair) {
	oldUsed := make([]bool, len(old))
	newUsed := make([]bool, len(new))
	for i, o := range old {
		for j, n := range new {
			if newUsed[j] {
				continue
			}
			if equal(o, n) {
				pairs = append(pairs, SheetPair{Old: o, New: n})
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

type sheetScore struct {
	oldIdx, newIdx int
	score          float64
}

func matchSheetsFuzzy(old, new []*WorksheetSignature, threshold float64) (oldLeft, newLeft []*WorksheetSignature, pairs []SheetPair) {
	var candidates []sheetScore
	for i, o := range old {
		for j, n := range new {
			s := sheetJaccard(o, n)
			if s >= threshold {
				candidates = append(candidates, sheetScore{i, j, s})
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
		pairs = append(pairs, SheetPair{Old: old[c.oldIdx], New: new[c.newIdx], Renamed: true})
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

// sheetJaccard computes the Jaccard similarity of matching (address, value)
// pairs over the union of addresses: the denominator is the full address
// union, not just the intersection of populated cells.
func sheetJaccard(a, b *WorksheetSignature) float64 {
	union := make(map[string]struct{}, len(a.Cells)+len(b.Cells))
	for addr := range a.Cells {
		union[addr] = struct{}{}
	}
	for addr := range b.Cells {
		union[addr] = struct{}{}
	}
	if len(union) == 0 {
		return 1.0
	}
	match := 0
	for addr := range union {
		ca, aok := a.Cells[addr]
		cb, bok := b.Cells[addr]
		if aok && bok && ca.Value == cb.Value {
			match++
		}
	}
	return float64(match) / float64(len(union))
}
