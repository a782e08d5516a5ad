package providers

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/scholarmcp/server/internal/domain"
)

var doiURLPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// NormalizeDOI lowercases a DOI and strips any known URL or scheme prefix.
// Idempotent: NormalizeDOI(NormalizeDOI(x)) == NormalizeDOI(x).
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return ""
	}
	lower := strings.ToLower(doi)
	for _, prefix := range doiURLPrefixes {
		if strings.HasPrefix(lower, prefix) {
			lower = lower[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(lower)
}

var yearRegexp = regexp.MustCompile(`(19|20)\d\d`)

// ParseYear accepts an integer in [1000, 2100] or the first occurrence of a
// 4-digit 19xx/20xx year in a free-text string; returns nil otherwise.
func ParseYear(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 1000 && n <= 2100 {
		return &n
	}
	match := yearRegexp.FindString(raw)
	if match == "" {
		return nil
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &n
}

// ParseYearInt validates an already-parsed integer year against the
// accepted range, returning nil when out of bounds.
func ParseYearInt(n int) *int {
	if n < 1000 || n > 2100 {
		return nil
	}
	return &n
}

var whitespaceRunRegexp = regexp.MustCompile(`\s+`)

// CollapseWhitespace collapses runs of whitespace to a single space and
// trims the result.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRunRegexp.ReplaceAllString(s, " "))
}

// DefaultRelevance returns the provider-characteristic default relevance
// used when a source does not supply its own relevance score.
func DefaultRelevance(tag domain.ProviderTag) float64 {
	return domain.DefaultRelevance(tag)
}

// FallbackTitle returns "Untitled" for an empty title, satisfying the
// ProviderWork invariant that title is always non-empty after normalization.
func FallbackTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Untitled"
	}
	return title
}
