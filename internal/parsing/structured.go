package parsing

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/scholarmcp/server/internal/domain"
)

// teiDocument is the structured full-text-document service's response
// shape: a TEI-like XML document with a header and a body of section divs.
type teiDocument struct {
	Title    string      `xml:"teiHeader>fileDesc>titleStmt>title"`
	Abstract string      `xml:"teiHeader>profileDesc>abstract>div>p"`
	Sections []teiDiv    `xml:"text>body>div"`
	Refs     []teiBiblio `xml:"text>back>div>listBibl>biblStruct"`
}

type teiDiv struct {
	Head string `xml:"head"`
	Raw  string `xml:",innerxml"`
}

type teiBiblio struct {
	Raw   string `xml:",innerxml"`
	Title string `xml:"analytic>title"`
}

var (
	doiInReferenceRegex = regexp.MustCompile(`(?i)10\.\d{4,9}/[^\s<>"{}|\\^` + "`" + `\[\]]+`)
	yearInReferenceRegex = regexp.MustCompile(`(?:19|20)\d{2}`)
	xmlTagRegex           = regexp.MustCompile(`<[^>]+>`)
)

// StructuredParser posts PDFs to a remote full-text-document service and
// decodes its TEI-like XML response.
type StructuredParser struct {
	endpoint   string
	httpClient *http.Client
	version    string
}

// NewStructuredParser builds a StructuredParser targeting endpoint.
func NewStructuredParser(endpoint string, httpClient *http.Client) *StructuredParser {
	return &StructuredParser{endpoint: endpoint, httpClient: httpClient, version: "1.0"}
}

// Name implements Parser.
func (p *StructuredParser) Name() string { return "structured" }

// Parse implements Parser.
func (p *StructuredParser) Parse(ctx context.Context, pdfPath string, pdfBytes []byte) (*domain.ParsedDocument, error) {
	if p.endpoint == "" {
		return nil, fmt.Errorf("structured parser: no endpoint configured")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "document.pdf")
	if err != nil {
		return nil, fmt.Errorf("structured parser: build request: %w", err)
	}
	if _, err := part.Write(pdfBytes); err != nil {
		return nil, fmt.Errorf("structured parser: write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("structured parser: close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("structured parser: build http request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("structured parser: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("structured parser: remote service returned HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("structured parser: read response: %w", err)
	}

	var tei teiDocument
	if err := xml.Unmarshal(raw, &tei); err != nil {
		return nil, fmt.Errorf("structured parser: decode response: %w", err)
	}

	sections := make([]domain.SectionChunk, 0, len(tei.Sections))
	var fullTextParts []string
	for i, div := range tei.Sections {
		text := collapseWhitespace(stripTags(div.Raw))
		if text == "" {
			continue
		}
		heading := strings.TrimSpace(div.Head)
		if heading == "" {
			heading = "Body"
		}
		sections = append(sections, domain.SectionChunk{
			ID:      fmt.Sprintf("section_%d", i),
			Heading: heading,
			Text:    text,
			Order:   i,
		})
		fullTextParts = append(fullTextParts, text)
	}
	fullText := strings.Join(fullTextParts, " ")

	references := make([]domain.ParsedReference, 0, len(tei.Refs))
	for i, r := range tei.Refs {
		rawText := collapseWhitespace(stripTags(r.Raw))
		if rawText == "" {
			continue
		}
		ref := domain.ParsedReference{Index: i, RawText: rawText, Title: strings.TrimSpace(r.Title)}
		if m := doiInReferenceRegex.FindString(rawText); m != "" {
			ref.DOI = strings.ToLower(m)
		}
		if m := yearInReferenceRegex.FindString(rawText); m != "" {
			if y, err := strconv.Atoi(m); err == nil {
				ref.Year = &y
			}
		}
		references = append(references, ref)
	}

	confidence := 0.65
	if fullText != "" {
		confidence = 0.85
	}

	return &domain.ParsedDocument{
		Title:         strings.TrimSpace(tei.Title),
		Abstract:      collapseWhitespace(tei.Abstract),
		Sections:      sections,
		References:    references,
		FullText:      fullText,
		ParserName:    p.Name(),
		ParserVersion: p.version,
		Confidence:    confidence,
	}, nil
}

func stripTags(s string) string {
	return xmlTagRegex.ReplaceAllString(s, " ")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
