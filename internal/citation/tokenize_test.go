package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeExtractsLowercaseWords(t *testing.T) {
	tokens := tokenize("Graph Neural Networks for Drug Discovery!")
	assert.Equal(t, []string{"graph", "neural", "networks", "drug", "discovery"}, tokens)
}

func TestTopTokensByFrequencyTiesBreakByFirstSeen(t *testing.T) {
	top := topTokensByFrequency("alpha beta beta gamma gamma delta", 2)
	assert.Equal(t, []string{"beta", "gamma"}, top)
}

func TestTopTokensByFrequencyCapsAtAvailable(t *testing.T) {
	top := topTokensByFrequency("alpha beta", 10)
	assert.Len(t, top, 2)
}

func TestOverlapComputesJaccardLikeRatio(t *testing.T) {
	a := tokenSet([]string{"alpha", "beta", "gamma"})
	b := tokenSet([]string{"beta", "gamma", "delta", "epsilon"})
	assert.InDelta(t, 2.0/4.0, overlap(a, b), 0.0001)
}

func TestOverlapEmptySetsIsZero(t *testing.T) {
	assert.Equal(t, 0.0, overlap(map[string]struct{}{}, tokenSet([]string{"alpha"})))
}

func TestLastNCharsAndFirstNChars(t *testing.T) {
	s := "abcdefgh"
	assert.Equal(t, "fgh", lastNChars(s, 3))
	assert.Equal(t, "abc", firstNChars(s, 3))
	assert.Equal(t, s, lastNChars(s, 100))
}

func TestClampBoundsValue(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-1, 0, 1))
	assert.Equal(t, 1.0, clamp(5, 0, 1))
	assert.Equal(t, 0.5, clamp(0.5, 0, 1))
}

func TestNormalizeWhitespaceCollapsesRuns(t *testing.T) {
	assert.Equal(t, "a b c", normalizeWhitespace("  a   b\tc \n"))
}
