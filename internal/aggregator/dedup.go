package aggregator

import (
	"strings"
	"unicode"

	"github.com/scholarmcp/server/internal/domain"
)

// NormalizeName normalizes an author name for comparison: lowercases,
// reorders "Last, First" to "First Last", strips all non-letter/non-space
// characters, and collapses whitespace. Kept verbatim from the literature
// service's author-dedup normalization.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToLower(name)

	if idx := strings.Index(name, ","); idx >= 0 {
		last := strings.TrimSpace(name[:idx])
		first := strings.TrimSpace(name[idx+1:])
		if first != "" {
			name = first + " " + last
		} else {
			name = last
		}
	}

	var sb strings.Builder
	sb.Grow(len(name))
	prevSpace := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			sb.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

// hasAuthorSignal reports whether two author lists share a provider author
// id or a normalized name. Authorless lists on either side are treated as
// compatible (author signal present) per the merge-priority rule.
func hasAuthorSignal(a, b []domain.Author) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}

	idsA := make(map[string]struct{}, len(a))
	namesA := make(map[string]struct{}, len(a))
	for _, au := range a {
		if au.ProviderAuthorID != "" {
			idsA[au.ProviderAuthorID] = struct{}{}
		}
		if n := NormalizeName(au.Name); n != "" {
			namesA[n] = struct{}{}
		}
	}

	for _, au := range b {
		if au.ProviderAuthorID != "" {
			if _, ok := idsA[au.ProviderAuthorID]; ok {
				return true
			}
		}
		if n := NormalizeName(au.Name); n != "" {
			if _, ok := namesA[n]; ok {
				return true
			}
		}
	}
	return false
}

// normalizedTitleKey lowercases, strips punctuation, and collapses
// whitespace in a title for use as a dedup/lookup key.
func normalizedTitleKey(title string) string {
	lower := strings.ToLower(title)
	var sb strings.Builder
	sb.Grow(len(lower))
	prevSpace := false
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

// titleTokenSet returns the set of distinct whitespace-delimited tokens of
// a normalized title, for Jaccard similarity comparison.
func titleTokenSet(normalizedTitle string) map[string]struct{} {
	tokens := strings.Fields(normalizedTitle)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b| over two token sets; 1.0 when both empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// yearsCompatible reports whether two optional years are within the merge
// window, treating a null year on either side as compatible with anything.
func yearsCompatible(a, b *int, window int) bool {
	if a == nil || b == nil {
		return true
	}
	diff := *a - *b
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}
