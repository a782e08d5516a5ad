package citation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/scholarmcp/server/internal/domain"
)

// ValidateOptions parameterizes manuscript validation; ExpectedStyle
// influences style-mismatch warnings.
type ValidateOptions struct {
	ExpectedStyle domain.Style
}

var (
	bracketChunkPattern  = regexp.MustCompile(`\[([^\[\]]*)\]`)
	numericEntryPattern  = regexp.MustCompile(`^\s*(\d{1,4})(?:-(\d{1,4}))?\s*$`)
	authorYearGroupPattern = regexp.MustCompile(`\(([^()]*\d{4}[a-z]?[^()]*)\)`)
	authorYearEntryPattern = regexp.MustCompile(`([A-Z][A-Za-z'-]+)\s*,?\s*(\d{4}[a-z]?)`)
	placeholderPatterns    = []*regexp.Regexp{
		regexp.MustCompile(`\[\s*\]`),
		regexp.MustCompile(`(?i)\[TODO\]`),
		regexp.MustCompile(`(?i)\[CITATION\]`),
	}
)

// Validate checks a manuscript's inline citations against a reference list
// for missing, uncited, and duplicate references, plus style consistency.
func (e *Engine) Validate(manuscript string, references []domain.ReferenceEntry, opts ValidateOptions) domain.ValidationDiagnostics {
	var diag domain.ValidationDiagnostics

	numericOrdinals, invalidChunks := parseNumericCitations(manuscript)
	authorSurnames := parseAuthorYearCitations(manuscript)

	hasPlaceholder := false
	var placeholderMatches []string
	for _, p := range placeholderPatterns {
		if m := p.FindAllString(manuscript, -1); len(m) > 0 {
			hasPlaceholder = true
			placeholderMatches = append(placeholderMatches, m...)
		}
	}

	diag.MissingReferences = missingNumericReferences(numericOrdinals, len(references))
	missingAuthors := missingAuthorReferences(authorSurnames, references)

	citedIndexes := make(map[int]bool, len(numericOrdinals))
	for _, n := range numericOrdinals {
		citedIndexes[n] = true
	}
	diag.UncitedReferences = uncitedReferences(references, citedIndexes, authorSurnames)
	diag.DuplicateReferences = duplicateReferenceGroups(references)
	diag.CompletenessDiagnostics = completenessDiagnostics(references)
	diag.InlineCitationCount = len(numericOrdinals) + len(authorSurnames)

	var warnings []string
	for _, author := range missingAuthors {
		warnings = append(warnings, fmt.Sprintf("cited author %q appears in no reference", author))
	}
	if hasPlaceholder {
		for _, m := range placeholderMatches {
			warnings = append(warnings, fmt.Sprintf("placeholder citation found: %s", m))
		}
	}
	for _, chunk := range invalidChunks {
		warnings = append(warnings, fmt.Sprintf("invalid bracket citation: [%s]", chunk))
	}

	hasNumeric := len(numericOrdinals) > 0
	hasAuthorYear := len(authorSurnames) > 0
	if hasNumeric && hasAuthorYear {
		warnings = append(warnings, "mixed numeric and author-year citation patterns detected")
	}

	switch opts.ExpectedStyle {
	case domain.StyleIEEE, domain.StyleVancouver:
		if hasAuthorYear {
			warnings = append(warnings, "author-year citations found but numeric style expected")
		}
	case domain.StyleAPA, domain.StyleChicago:
		if hasNumeric {
			warnings = append(warnings, "numeric citations found but author-year style expected")
		}
	}

	if opts.ExpectedStyle == domain.StyleAPA {
		missingIDCount := 0
		for _, r := range references {
			if r.DOI == "" {
				missingIDCount++
			}
		}
		if missingIDCount > 0 {
			warnings = append(warnings, fmt.Sprintf("%d reference(s) missing a persistent identifier", missingIDCount))
		}
	}

	if len(references) == 0 {
		warnings = append(warnings, "Reference list is empty.")
	}

	diag.StyleWarnings = warnings
	return diag
}

// parseNumericCitations extracts bracketed numeric citation ordinals,
// expanding ranges a-b with a <= b <= a+100, and collects unparseable
// chunk text separately.
func parseNumericCitations(manuscript string) (ordinals []int, invalidChunks []string) {
	seen := make(map[int]bool)
	for _, bracket := range bracketChunkPattern.FindAllStringSubmatch(manuscript, -1) {
		inner := bracket[1]
		if strings.TrimSpace(inner) == "" {
			continue
		}
		for _, chunk := range strings.FieldsFunc(inner, func(r rune) bool { return r == ',' || r == ';' }) {
			m := numericEntryPattern.FindStringSubmatch(chunk)
			if m == nil {
				invalidChunks = append(invalidChunks, strings.TrimSpace(chunk))
				continue
			}
			a, _ := strconv.Atoi(m[1])
			if m[2] == "" {
				if !seen[a] {
					seen[a] = true
					ordinals = append(ordinals, a)
				}
				continue
			}
			b, _ := strconv.Atoi(m[2])
			if b < a || b > a+100 {
				invalidChunks = append(invalidChunks, strings.TrimSpace(chunk))
				continue
			}
			for n := a; n <= b; n++ {
				if !seen[n] {
					seen[n] = true
					ordinals = append(ordinals, n)
				}
			}
		}
	}
	sort.Ints(ordinals)
	return ordinals, invalidChunks
}

// parseAuthorYearCitations returns the set of surnames found in
// author-year citation groups like "(Doe, 2023)" or "(Doe & Smith, 2023a)".
func parseAuthorYearCitations(manuscript string) []string {
	seen := make(map[string]bool)
	var surnames []string
	for _, group := range authorYearGroupPattern.FindAllStringSubmatch(manuscript, -1) {
		for _, m := range authorYearEntryPattern.FindAllStringSubmatch(group[1], -1) {
			name := m[1]
			if !seen[name] {
				seen[name] = true
				surnames = append(surnames, name)
			}
		}
	}
	return surnames
}

func missingNumericReferences(ordinals []int, refCount int) []int {
	var missing []int
	for _, n := range ordinals {
		if n < 1 || n > refCount {
			missing = append(missing, n)
		}
	}
	return missing
}

func missingAuthorReferences(surnames []string, references []domain.ReferenceEntry) []string {
	var missing []string
	for _, s := range surnames {
		found := false
		for _, r := range references {
			if strings.Contains(strings.ToLower(r.RawText), strings.ToLower(s)) ||
				containsSurname(r.Authors, s) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, s)
		}
	}
	return missing
}

func containsSurname(authors []string, s string) bool {
	for _, a := range authors {
		if strings.Contains(strings.ToLower(a), strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func uncitedReferences(references []domain.ReferenceEntry, citedIndexes map[int]bool, authorSurnames []string) []int {
	var uncited []int
	for i, r := range references {
		ordinal := i + 1
		if citedIndexes[ordinal] {
			continue
		}
		matchedByAuthor := false
		for _, s := range authorSurnames {
			if containsSurname(r.Authors, s) || strings.Contains(strings.ToLower(r.RawText), strings.ToLower(s)) {
				matchedByAuthor = true
				break
			}
		}
		if !matchedByAuthor {
			uncited = append(uncited, ordinal)
		}
	}
	return uncited
}

func duplicateReferenceGroups(references []domain.ReferenceEntry) [][]int {
	groups := make(map[string][]int)
	var order []string
	for i, r := range references {
		key := r.DOI
		if key == "" {
			year := 0
			if r.Year != nil {
				year = *r.Year
			}
			key = fmt.Sprintf("%s|%d", normalizeWhitespace(strings.ToLower(r.Title)), year)
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i+1)
	}

	var duplicates [][]int
	for _, key := range order {
		if len(groups[key]) > 1 {
			duplicates = append(duplicates, groups[key])
		}
	}
	return duplicates
}

func completenessDiagnostics(references []domain.ReferenceEntry) []string {
	var diagnostics []string
	for i, r := range references {
		var missing []string
		if len(r.Authors) == 0 {
			missing = append(missing, "author")
		}
		if r.Year == nil {
			missing = append(missing, "year")
		}
		if r.Title == "" {
			missing = append(missing, "title")
		}
		if r.DOI == "" && !strings.Contains(r.RawText, "http") {
			missing = append(missing, "source")
		}

		hasID := r.DOI != "" || strings.Contains(r.RawText, "http")
		if len(missing) > 0 {
			diagnostics = append(diagnostics, fmt.Sprintf("reference %d missing: %s", i+1, strings.Join(missing, ", ")))
		}
		if !hasID {
			diagnostics = append(diagnostics, fmt.Sprintf("reference %d has no persistent identifier", i+1))
		}
		if r.DOI != "" && !strings.Contains(r.RawText, "doi.org/") {
			diagnostics = append(diagnostics, fmt.Sprintf("reference %d: consider appending https://doi.org/%s", i+1, r.DOI))
		}
	}
	return diagnostics
}
