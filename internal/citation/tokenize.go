package citation

import (
	"regexp"
	"sort"
	"strings"
)

const minTokenLength = 4

var tokenPattern = regexp.MustCompile(`[a-z]{4,}`)

// tokenize lowercases s and extracts ASCII word tokens of at least
// minTokenLength characters.
func tokenize(s string) []string {
	return tokenPattern.FindAllString(strings.ToLower(s), -1)
}

// topTokensByFrequency returns the n most frequent tokens in s, breaking
// frequency ties by first-seen order for determinism.
func topTokensByFrequency(s string, n int) []string {
	tokens := tokenize(s)
	freq := make(map[string]int, len(tokens))
	order := make(map[string]int, len(tokens))
	for i, t := range tokens {
		if _, seen := order[t]; !seen {
			order[t] = i
		}
		freq[t]++
	}

	unique := make([]string, 0, len(freq))
	for t := range freq {
		unique = append(unique, t)
	}
	sort.Slice(unique, func(i, j int) bool {
		if freq[unique[i]] != freq[unique[j]] {
			return freq[unique[i]] > freq[unique[j]]
		}
		return order[unique[i]] < order[unique[j]]
	})

	if n > len(unique) {
		n = len(unique)
	}
	return unique[:n]
}

// tokenSet converts a token slice into a deduplicated set.
func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// overlap computes |a∩b| / max(|a|,|b|), returning 0 when both sets are empty.
func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	return float64(intersection) / float64(denom)
}

// lastNChars returns the last n characters of s (rune-aware).
func lastNChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// firstNChars returns the first n characters of s (rune-aware).
func firstNChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// normalizeWhitespace collapses runs of whitespace to single spaces and trims.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// clamp bounds x to [lo, hi].
func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
