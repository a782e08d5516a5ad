package parsing

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/scholarmcp/server/internal/domain"
)

var headingPattern = regexp.MustCompile(`(?i)^(abstract|introduction|background|related work|method(?:s)?|materials|results|discussion|conclusion|limitations|references)\b`)

// SimpleParser extracts text locally with a lightweight PDF reader and
// applies heading-heuristic section splitting and reference-tail slicing.
type SimpleParser struct{}

// NewSimpleParser builds a SimpleParser.
func NewSimpleParser() *SimpleParser { return &SimpleParser{} }

// Name implements Parser.
func (p *SimpleParser) Name() string { return "simple" }

// Parse implements Parser.
func (p *SimpleParser) Parse(ctx context.Context, pdfPath string, pdfBytes []byte) (*domain.ParsedDocument, error) {
	rawText, err := extractText(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("simple parser: %w", err)
	}

	fullText := collapseWhitespace(rawText)
	if fullText == "" {
		return nil, fmt.Errorf("simple parser: empty full text")
	}

	lines := nonEmptyLines(rawText)
	title := ""
	if len(lines) > 0 {
		title = lines[0]
	}

	abstract := extractAbstract(lines)
	sections := splitSections(lines)
	references := extractReferences(lines)

	return &domain.ParsedDocument{
		Title:         title,
		Abstract:      abstract,
		Sections:      sections,
		References:    references,
		FullText:      fullText,
		ParserName:    p.Name(),
		ParserVersion: "1.0",
		Confidence:    0.62,
	}, nil
}

func extractText(pdfPath string) (string, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

var abstractLinePattern = regexp.MustCompile(`(?i)^abstract:?\s*$|^abstract:?\s`)

func extractAbstract(lines []string) string {
	for idx, line := range lines {
		if abstractLinePattern.MatchString(line) {
			end := idx + 6
			if end > len(lines) {
				end = len(lines)
			}
			return collapseWhitespace(strings.Join(lines[idx:end], " "))
		}
	}
	return ""
}

func splitSections(lines []string) []domain.SectionChunk {
	if len(lines) == 0 {
		return nil
	}

	var sections []domain.SectionChunk
	order := 0
	currentHeading := "Body"
	var current []string

	push := func() {
		body := collapseWhitespace(strings.Join(current, " "))
		if body == "" {
			return
		}
		sections = append(sections, domain.SectionChunk{
			ID:      fmt.Sprintf("section_%d", order),
			Heading: currentHeading,
			Text:    body,
			Order:   order,
		})
		order++
	}

	for _, line := range lines {
		if headingPattern.MatchString(line) {
			if len(current) > 0 {
				push()
			}
			currentHeading = line
			current = nil
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		push()
	}

	return sections
}

var referencesLinePattern = regexp.MustCompile(`(?i)^references\b`)

func extractReferences(lines []string) []domain.ParsedReference {
	refIdx := -1
	for i, line := range lines {
		if referencesLinePattern.MatchString(line) {
			refIdx = i
			break
		}
	}

	var source []string
	if refIdx >= 0 {
		source = lines[refIdx+1:]
	} else if len(lines) > 120 {
		source = lines[len(lines)-120:]
	} else {
		source = lines
	}

	var refs []domain.ParsedReference
	for _, line := range source {
		if len(refs) >= 60 {
			break
		}
		if len(line) < 30 {
			continue
		}
		ref := domain.ParsedReference{Index: len(refs), RawText: line}
		if m := doiInReferenceRegex.FindString(line); m != "" {
			ref.DOI = strings.ToLower(m)
		}
		if m := yearInReferenceRegex.FindString(line); m != "" {
			if y, err := strconv.Atoi(m); err == nil {
				ref.Year = &y
			}
		}
		refs = append(refs, ref)
	}
	return refs
}
