// Package crossreflike implements Provider C: a structured JSON catalog
// nesting its results under message.items, with relevance taken directly
// from the API's own score field when present.
package crossreflike

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/scholarmcp/server/internal/domain"
	"github.com/scholarmcp/server/internal/httpfetch"
	"github.com/scholarmcp/server/internal/providers"
)

// Config configures the Client.
type Config struct {
	BaseURL string
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.example-providerc.org"
	}
}

// Client implements providers.Adapter for Provider C.
type Client struct {
	cfg     Config
	fetcher *httpfetch.Fetcher
	log     zerolog.Logger
}

var _ providers.Adapter = (*Client)(nil)

// New creates a Provider C client.
func New(cfg Config, fetcher *httpfetch.Fetcher, log zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{cfg: cfg, fetcher: fetcher, log: log}
}

func (c *Client) Tag() domain.ProviderTag { return domain.ProviderC }
func (c *Client) Name() string            { return "Provider C" }

type searchResponse struct {
	Message struct {
		Items []item `json:"items"`
	} `json:"message"`
}

type item struct {
	DOI            string       `json:"DOI"`
	Title          []string     `json:"title"`
	Abstract       string       `json:"abstract"`
	Published      *datePart    `json:"published"`
	ContainerTitle []string     `json:"container-title"`
	IsReferencedBy int          `json:"is-referenced-by-count"`
	ReferenceCount int          `json:"reference-count"`
	Author         []authorPart `json:"author"`
	Score          float64      `json:"score"`
	URL            string       `json:"URL"`
}

type datePart struct {
	DateParts [][]int `json:"date-parts"`
}

type authorPart struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	ORCID  string `json:"ORCID"`
}

// SearchWorks queries Provider C for works matching query.
func (c *Client) SearchWorks(ctx context.Context, query string, limit int) ([]domain.ProviderWork, error) {
	base, err := url.Parse(c.cfg.BaseURL + "/works")
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderC, "", 0, "", err)
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("rows", strconv.Itoa(limit))
	base.RawQuery = q.Encode()
	u := base.String()

	req, err := httpfetch.NewJSONRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderC, u, 0, "", err)
	}

	var resp searchResponse
	if err := c.fetcher.DoJSON(ctx, req, &resp); err != nil {
		return nil, wrapFetchErr(u, err)
	}

	out := make([]domain.ProviderWork, 0, len(resp.Message.Items))
	for _, it := range resp.Message.Items {
		out = append(out, itemToProviderWork(it))
	}
	return out, nil
}

func wrapFetchErr(u string, err error) error {
	if fe, ok := err.(*httpfetch.FetchError); ok {
		return domain.NewProviderError(domain.ProviderC, u, fe.HTTPStatus, fe.BodySnippet, fe.Cause)
	}
	return domain.NewProviderError(domain.ProviderC, u, 0, "", err)
}

func itemToProviderWork(it item) domain.ProviderWork {
	title := ""
	if len(it.Title) > 0 {
		title = it.Title[0]
	}

	var venue string
	if len(it.ContainerTitle) > 0 {
		venue = it.ContainerTitle[0]
	}

	var year *int
	if it.Published != nil && len(it.Published.DateParts) > 0 && len(it.Published.DateParts[0]) > 0 {
		year = providers.ParseYearInt(it.Published.DateParts[0][0])
	}

	authors := make([]domain.Author, 0, len(it.Author))
	for _, a := range it.Author {
		name := a.Given + " " + a.Family
		authors = append(authors, domain.Author{Name: name, ProviderAuthorID: a.ORCID})
	}

	relevance := it.Score
	if relevance > 1 {
		relevance = 1
	}
	if relevance <= 0 {
		relevance = providers.DefaultRelevance(domain.ProviderC)
	}

	doi := providers.NormalizeDOI(it.DOI)

	return domain.ProviderWork{
		Provider:          domain.ProviderC,
		ProviderLocalID:   doi,
		Title:             providers.FallbackTitle(title),
		Abstract:          providers.CollapseWhitespace(it.Abstract),
		Year:              year,
		Venue:             venue,
		DOI:               doi,
		LandingURL:        it.URL,
		CitationTotal:     it.IsReferencedBy,
		ReferenceCount:    it.ReferenceCount,
		Authors:           authors,
		ExternalIDs:       map[string]string{"doi": doi},
		ProviderRelevance: relevance,
		SourceURL:         it.URL,
	}
}
