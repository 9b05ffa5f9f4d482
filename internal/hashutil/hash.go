// Package hashutil provides the content-hashing and similarity-scoring
// primitives shared by the pml and sml comparison pipelines: collision
// resistant content hashes, a fast 32-bit row/column hash, Levenshtein-based
// string similarity, and Jaccard overlap on sets and multisets.
package hashutil

import (
	"encoding/hex"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Content hashes a byte slice into a short hex digest. It is used for
// every content-addressed signature hash (image bytes, table text, chart
// XML, slide/shape content, cell values). blake2b-256 is fast and keyless;
// it only needs to be collision-resistant enough to tell identical content
// from different content reliably.
func Content(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ContentString is a convenience wrapper around Content for string inputs.
func ContentString(s string) string {
	return Content([]byte(s))
}

// Join hashes several fields pipe-joined into one composite digest (e.g.
// the shape aggregate content hash, or a cell's "value|formula").
func Join(parts ...string) string {
	return ContentString(strings.Join(parts, "|"))
}

// Fast32 computes a 32-bit FNV-1a hash of s. Used for row/column signatures
// where a fast, non-cryptographic 32-bit hash is all that is required.
func Fast32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// Levenshtein computes the edit distance between two strings, using the
// standard two-row DP to avoid allocating a full matrix.
func Levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

// StringSimilarity returns the normalized Levenshtein similarity between two
// strings in [0.0, 1.0], where 1.0 means identical.
func StringSimilarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return 1.0 - float64(Levenshtein(a, b))/float64(maxLen)
}

// JaccardTokens returns the Jaccard similarity of two lowercased,
// space-split token sets, used for slide-title partial matching.
func JaccardTokens(a, b string) float64 {
	as := tokenSet(a)
	bs := tokenSet(b)
	return jaccardSets(as, bs)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = struct{}{}
	}
	return set
}

func jaccardSets(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 1.0
	}
	return float64(inter) / float64(union)
}

// JaccardSet returns the Jaccard similarity of two string sets.
func JaccardSet(a, b []string) float64 {
	as := make(map[string]struct{}, len(a))
	for _, v := range a {
		as[v] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, v := range b {
		bs[v] = struct{}{}
	}
	return jaccardSets(as, bs)
}

// JaccardMultiset computes Jaccard similarity over multisets (element counts
// matter).
func JaccardMultiset(a, b []string) float64 {
	aSet := make(map[string]int, len(a))
	for _, v := range a {
		aSet[v]++
	}
	bSet := make(map[string]int, len(b))
	for _, v := range b {
		bSet[v]++
	}
	if len(aSet) == 0 && len(bSet) == 0 {
		return 1.0
	}
	var inter, union int
	for k, ac := range aSet {
		bc := bSet[k]
		if ac < bc {
			inter += ac
			union += bc
		} else {
			inter += bc
			union += ac
		}
	}
	for k, bc := range bSet {
		if _, ok := aSet[k]; !ok {
			union += bc
		}
	}
	if union == 0 {
		return 1.0
	}
	return float64(inter) / float64(union)
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// NormalizeDecimal parses s as a decimal number and re-emits it in a
// canonical form so that equal numeric quantities compare equal regardless
// of source formatting ("100" vs "100.0"). Returns s unchanged (and
// ok=false) when s does not parse as a number.
func NormalizeDecimal(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s, false
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return s, false
	}
	out := strconv.FormatFloat(f, 'f', -1, 64)
	return out, true
}

// SortedKeys returns the keys of a string set in ascending order, useful for
// deterministic iteration when building composite hashes from maps.
func SortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
