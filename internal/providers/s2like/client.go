// Package s2like implements Provider B: a JSON catalog whose abstracts
// occasionally carry HTML markup and must be stripped before storage.
package s2like

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/scholarmcp/server/internal/domain"
	"github.com/scholarmcp/server/internal/httpfetch"
	"github.com/scholarmcp/server/internal/providers"
)

// Config configures the Client.
type Config struct {
	BaseURL string
	Fields  string
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.example-providerb.org/graph/v1"
	}
	if c.Fields == "" {
		c.Fields = "paperId,title,abstract,year,venue,authors,citationCount,referenceCount,isOpenAccess,openAccessPdf,externalIds"
	}
}

// Client implements providers.Adapter for Provider B.
type Client struct {
	cfg     Config
	fetcher *httpfetch.Fetcher
	log     zerolog.Logger
}

var _ providers.Adapter = (*Client)(nil)

// New creates a Provider B client.
func New(cfg Config, fetcher *httpfetch.Fetcher, log zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{cfg: cfg, fetcher: fetcher, log: log}
}

func (c *Client) Tag() domain.ProviderTag { return domain.ProviderB }
func (c *Client) Name() string            { return "Provider B" }

type searchResponse struct {
	Data []paperResult `json:"data"`
}

type paperResult struct {
	PaperID        string       `json:"paperId"`
	Title          string       `json:"title"`
	Abstract       string       `json:"abstract"`
	Year           int          `json:"year"`
	Venue          string       `json:"venue"`
	Authors        []author     `json:"authors"`
	CitationCount  int          `json:"citationCount"`
	ReferenceCount int          `json:"referenceCount"`
	IsOpenAccess   bool         `json:"isOpenAccess"`
	OpenAccessPDF  *openAccess  `json:"openAccessPdf,omitempty"`
	ExternalIDs    *externalIDs `json:"externalIds,omitempty"`
}

type author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

type openAccess struct {
	URL string `json:"url,omitempty"`
}

type externalIDs struct {
	DOI string `json:"DOI,omitempty"`
}

// SearchWorks queries Provider B for works matching query.
func (c *Client) SearchWorks(ctx context.Context, query string, limit int) ([]domain.ProviderWork, error) {
	base, err := url.Parse(c.cfg.BaseURL + "/paper/search")
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderB, "", 0, "", err)
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", c.cfg.Fields)
	base.RawQuery = q.Encode()
	u := base.String()

	req, err := httpfetch.NewJSONRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderB, u, 0, "", err)
	}

	var resp searchResponse
	if err := c.fetcher.DoJSON(ctx, req, &resp); err != nil {
		return nil, wrapFetchErr(u, err)
	}

	out := make([]domain.ProviderWork, 0, len(resp.Data))
	for _, p := range resp.Data {
		out = append(out, paperToProviderWork(p))
	}
	return out, nil
}

func wrapFetchErr(u string, err error) error {
	if fe, ok := err.(*httpfetch.FetchError); ok {
		return domain.NewProviderError(domain.ProviderB, u, fe.HTTPStatus, fe.BodySnippet, fe.Cause)
	}
	return domain.NewProviderError(domain.ProviderB, u, 0, "", err)
}

func paperToProviderWork(p paperResult) domain.ProviderWork {
	doi := ""
	if p.ExternalIDs != nil {
		doi = providers.NormalizeDOI(p.ExternalIDs.DOI)
	}

	authors := make([]domain.Author, 0, len(p.Authors))
	for _, a := range p.Authors {
		authors = append(authors, domain.Author{Name: a.Name, ProviderAuthorID: a.AuthorID})
	}

	pdfURL := ""
	if p.OpenAccessPDF != nil {
		pdfURL = p.OpenAccessPDF.URL
	}

	return domain.ProviderWork{
		Provider:          domain.ProviderB,
		ProviderLocalID:   p.PaperID,
		Title:             providers.FallbackTitle(p.Title),
		Abstract:          stripHTML(p.Abstract),
		Year:              providers.ParseYearInt(p.Year),
		Venue:             p.Venue,
		DOI:               doi,
		CitationTotal:     p.CitationCount,
		ReferenceCount:    p.ReferenceCount,
		Authors:           authors,
		OpenAccess:        domain.OpenAccessState{IsOpen: p.IsOpenAccess, PDFURL: pdfURL},
		ExternalIDs:       map[string]string{"doi": doi, "providerB": p.PaperID},
		ProviderRelevance: providers.DefaultRelevance(domain.ProviderB),
		SourceURL:         "https://example-providerb.org/paper/" + p.PaperID,
	}
}

// stripHTML removes tag markup from an abstract and collapses whitespace,
// per Provider B's "HTML-embedded abstracts" rule.
func stripHTML(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return providers.CollapseWhitespace(raw)
	}
	return providers.CollapseWhitespace(doc.Text())
}
