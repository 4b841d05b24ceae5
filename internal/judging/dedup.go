package judging

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// maxTraits bounds the strengths/weaknesses lists on aggregated score
// entries so verdict size stays small regardless of judge count.
const maxTraits = 3

// nearDupThreshold is the normalized edit distance below which two
// traits are considered the same observation phrased differently.
const nearDupThreshold = 0.25

// foldCaser provides Unicode case folding for trait comparison.
// cases.Fold handles international text correctly where
// strings.ToLower does not.
var foldCaser = cases.Fold()

// mergeTraits unions trait lists from multiple judges, folding
// near-duplicate phrasings, and caps the result. First occurrence
// order is preserved so output is deterministic for a fixed judge
// order.
func mergeTraits(lists ...[]string) []string {
	merged := make([]string, 0, maxTraits)
	for _, list := range lists {
		for _, trait := range list {
			trait = strings.TrimSpace(trait)
			if trait == "" {
				continue
			}
			if hasNearDuplicate(merged, trait) {
				continue
			}
			merged = append(merged, trait)
			if len(merged) == maxTraits {
				return merged
			}
		}
	}
	return merged
}

func hasNearDuplicate(existing []string, trait string) bool {
	folded := foldCaser.String(trait)
	for _, e := range existing {
		if similar(foldCaser.String(e), folded) {
			return true
		}
	}
	return false
}

// similar reports whether two case-folded strings are within the
// near-duplicate threshold of each other.
func similar(a, b string) bool {
	if a == b {
		return true
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return true
	}
	distance := levenshtein.ComputeDistance(a, b)
	return float64(distance)/float64(longest) <= nearDupThreshold
}
