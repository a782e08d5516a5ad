// Package extraction implements pattern-based claim/method/limitation and
// dataset/metric extraction from a parsed document. It is a pure function
// package: no network calls, no external dependency beyond regexp.
package extraction

import (
	"regexp"
	"strings"

	"github.com/scholarmcp/server/internal/domain"
)

// Options controls which sections are scanned and whether references are
// echoed back in the result.
type Options struct {
	// Sections, when non-empty, restricts extraction to sections whose
	// heading matches one of these (case-insensitive). Empty means all
	// sections are scanned.
	Sections []string
	// IncludeReferences copies doc.References into the result when true.
	IncludeReferences bool
}

const (
	minSentenceLength = 20
	bucketCap         = 25
	datasetCap        = 30
	confidenceFloor   = 0.4
)

var sentenceSplitRegex = regexp.MustCompile(`(?:[.!?])\s+`)

var claimPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwe (propose|present|show|demonstrate)\b`),
	regexp.MustCompile(`(?i)\bthis paper\b`),
	regexp.MustCompile(`(?i)\bour (results|findings)\b`),
	regexp.MustCompile(`(?i)\bwe find that\b`),
}

var methodPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmethod(ology)?\b`),
	regexp.MustCompile(`(?i)\bapproach\b`),
	regexp.MustCompile(`(?i)\bmodel\b`),
	regexp.MustCompile(`(?i)\balgorithm\b`),
	regexp.MustCompile(`(?i)\bexperimental setup\b`),
}

var limitationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\blimitation\b`),
	regexp.MustCompile(`(?i)\bhowever\b`),
	regexp.MustCompile(`(?i)\bfuture work\b`),
	regexp.MustCompile(`(?i)\bchallenge\b`),
	regexp.MustCompile(`(?i)\bconstraint\b`),
}

var datasetPattern = regexp.MustCompile(`[A-Z][A-Za-z0-9\-]+ (?:dataset|corpus|benchmark)`)

var metricKeywords = []string{
	"F1", "accuracy", "precision", "recall", "AUC", "RMSE", "MAE", "BLEU", "ROUGE", "mAP",
}

var metricPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(metricKeywords, "|") + `)\b`)

// Extract runs the fixed regex-based extraction rules over doc's selected
// sections, producing claims, methods, limitations, dataset names, metric
// names, and optionally the document's reference list.
func Extract(doc *domain.ParsedDocument, opts Options) (*domain.GranularPaperDetails, error) {
	sections := selectSections(doc.Sections, opts.Sections)

	result := &domain.GranularPaperDetails{DocumentID: doc.DocumentID}

	for _, section := range sections {
		for _, sentence := range splitSentences(section.Text) {
			if len(sentence) <= minSentenceLength {
				continue
			}
			classifySentence(sentence, section.ID, doc.Confidence, result)
		}
	}

	result.Datasets = dedupCapped(datasetPattern.FindAllString(doc.FullText, -1), datasetCap)
	result.Metrics = dedupMetrics(doc.FullText)

	if opts.IncludeReferences {
		result.References = doc.References
	}

	return result, nil
}

func selectSections(sections []domain.SectionChunk, want []string) []domain.SectionChunk {
	if len(want) == 0 {
		return sections
	}
	wanted := make(map[string]bool, len(want))
	for _, w := range want {
		wanted[strings.ToLower(w)] = true
	}
	var selected []domain.SectionChunk
	for _, s := range sections {
		if wanted[strings.ToLower(s.Heading)] {
			selected = append(selected, s)
		}
	}
	if len(selected) == 0 {
		return sections
	}
	return selected
}

func splitSentences(text string) []string {
	if text == "" {
		return nil
	}
	parts := sentenceSplitRegex.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func classifySentence(sentence, sectionID string, parserConfidence float64, result *domain.GranularPaperDetails) {
	confidence := parserConfidence
	if confidence < confidenceFloor {
		confidence = confidenceFloor
	}

	if len(result.Claims) < bucketCap && matchesAny(claimPatterns, sentence) {
		result.Claims = append(result.Claims, domain.ExtractedSpan{Text: sentence, Confidence: confidence, SectionID: sectionID})
	}
	if len(result.Methods) < bucketCap && matchesAny(methodPatterns, sentence) {
		result.Methods = append(result.Methods, domain.ExtractedSpan{Text: sentence, Confidence: confidence, SectionID: sectionID})
	}
	if len(result.Limitations) < bucketCap && matchesAny(limitationPatterns, sentence) {
		result.Limitations = append(result.Limitations, domain.ExtractedSpan{Text: sentence, Confidence: confidence, SectionID: sectionID})
	}
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func dedupCapped(items []string, cap_ int) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
		if len(out) >= cap_ {
			break
		}
	}
	return out
}

func dedupMetrics(fullText string) []string {
	matches := metricPattern.FindAllString(fullText, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		upper := strings.ToUpper(m)
		if seen[upper] {
			continue
		}
		seen[upper] = true
		out = append(out, upper)
	}
	return out
}
