package judging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeTraitsUnionsAndCaps(t *testing.T) {
	merged := mergeTraits(
		[]string{"thorough", "well organized"},
		[]string{"accurate", "concise", "cites sources"},
	)

	assert.Equal(t, []string{"thorough", "well organized", "accurate"}, merged)
}

func TestMergeTraitsFoldsNearDuplicates(t *testing.T) {
	merged := mergeTraits(
		[]string{"well organized"},
		[]string{"Well organised", "accurate"},
	)

	assert.Equal(t, []string{"well organized", "accurate"}, merged)
}

func TestMergeTraitsCaseFolds(t *testing.T) {
	merged := mergeTraits([]string{"Thorough"}, []string{"THOROUGH", "clear"})

	assert.Equal(t, []string{"Thorough", "clear"}, merged)
}

func TestMergeTraitsSkipsBlanks(t *testing.T) {
	merged := mergeTraits([]string{"", "  ", "solid"})

	assert.Equal(t, []string{"solid"}, merged)
}

func TestSimilar(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"clear", "clear", true},
		{"organized", "organised", true},
		{"clear", "wrong", false},
		{"", "", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, similar(tt.a, tt.b), "similar(%q, %q)", tt.a, tt.b)
	}
}
