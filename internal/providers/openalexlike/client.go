// Package openalexlike implements Provider A: a DOI-resolving catalog whose
// abstracts are served as an inverted index of token positions.
package openalexlike

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scholarmcp/server/internal/domain"
	"github.com/scholarmcp/server/internal/httpfetch"
	"github.com/scholarmcp/server/internal/providers"
)

// Config configures the Client.
type Config struct {
	BaseURL    string
	Email      string
	MaxResults int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openalex.org"
	}
	if c.MaxResults == 0 {
		c.MaxResults = 25
	}
}

// Client implements providers.Adapter and providers.DOIResolver for
// Provider A.
type Client struct {
	cfg     Config
	fetcher *httpfetch.Fetcher
	log     zerolog.Logger
}

var (
	_ providers.Adapter     = (*Client)(nil)
	_ providers.DOIResolver = (*Client)(nil)
)

// New creates a Provider A client.
func New(cfg Config, fetcher *httpfetch.Fetcher, log zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{cfg: cfg, fetcher: fetcher, log: log}
}

func (c *Client) Tag() domain.ProviderTag { return domain.ProviderA }
func (c *Client) Name() string            { return "Provider A" }

type searchResponse struct {
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	Results []work `json:"results"`
}

type work struct {
	ID              string           `json:"id"`
	DOI             string           `json:"doi"`
	Title           string           `json:"title"`
	DisplayName     string           `json:"display_name"`
	PublicationYear int              `json:"publication_year"`
	CitedByCount    int              `json:"cited_by_count"`
	IsOpenAccess    bool             `json:"is_oa"`
	OpenAccess      *openAccess      `json:"open_access"`
	Authorships     []authorship     `json:"authorships"`
	PrimaryLocation *location        `json:"primary_location"`
	IDs             ids              `json:"ids"`
	ReferencedWorks []string         `json:"referenced_works"`
	RelevanceScore  float64          `json:"relevance_score"`
	AbstractIndex   map[string][]int `json:"abstract_inverted_index"`
}

type openAccess struct {
	IsOA  bool   `json:"is_oa"`
	OAURL string `json:"oa_url"`
}

type authorship struct {
	Author authorInfo `json:"author"`
}

type authorInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type location struct {
	Source *source `json:"source"`
	PDFURL string  `json:"pdf_url"`
}

type source struct {
	DisplayName string `json:"display_name"`
}

type ids struct {
	OpenAlex string `json:"openalex"`
	DOI      string `json:"doi"`
}

// SearchWorks queries Provider A for works matching query.
func (c *Client) SearchWorks(ctx context.Context, query string, limit int) ([]domain.ProviderWork, error) {
	if limit <= 0 || limit > 200 {
		limit = c.cfg.MaxResults
	}

	u, err := c.buildSearchURL(query, limit)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderA, "", 0, "", err)
	}

	req, err := httpfetch.NewJSONRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderA, u, 0, "", err)
	}

	var resp searchResponse
	if err := c.fetcher.DoJSON(ctx, req, &resp); err != nil {
		return nil, wrapFetchErr(u, err)
	}

	out := make([]domain.ProviderWork, 0, len(resp.Results))
	for _, w := range resp.Results {
		out = append(out, workToProviderWork(w))
	}
	return out, nil
}

// GetWorkByDoi resolves a single work directly by DOI.
func (c *Client) GetWorkByDoi(ctx context.Context, doi string) (*domain.ProviderWork, error) {
	normalized := providers.NormalizeDOI(doi)
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderA, "", 0, "", err)
	}
	base.Path = "/works/https://doi.org/" + normalized
	if c.cfg.Email != "" {
		q := url.Values{}
		q.Set("mailto", c.cfg.Email)
		base.RawQuery = q.Encode()
	}

	req, err := httpfetch.NewJSONRequest(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderA, base.String(), 0, "", err)
	}

	var w work
	if err := c.fetcher.DoJSON(ctx, req, &w); err != nil {
		var fe *httpfetch.FetchError
		if ok := asFetchError(err, &fe); ok && fe.HTTPStatus == http.StatusNotFound {
			return nil, nil
		}
		return nil, wrapFetchErr(base.String(), err)
	}
	pw := workToProviderWork(w)
	return &pw, nil
}

func asFetchError(err error, target **httpfetch.FetchError) bool {
	fe, ok := err.(*httpfetch.FetchError)
	if ok {
		*target = fe
	}
	return ok
}

func wrapFetchErr(u string, err error) error {
	if fe, ok := err.(*httpfetch.FetchError); ok {
		return domain.NewProviderError(domain.ProviderA, u, fe.HTTPStatus, fe.BodySnippet, fe.Cause)
	}
	return domain.NewProviderError(domain.ProviderA, u, 0, "", err)
}

func (c *Client) buildSearchURL(query string, limit int) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	base.Path = "/works"
	q := url.Values{}
	q.Set("search", query)
	q.Set("per_page", strconv.Itoa(limit))
	if c.cfg.Email != "" {
		q.Set("mailto", c.cfg.Email)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func workToProviderWork(w work) domain.ProviderWork {
	doi := providers.NormalizeDOI(w.DOI)
	if doi == "" {
		doi = providers.NormalizeDOI(w.IDs.DOI)
	}

	title := w.DisplayName
	if title == "" {
		title = w.Title
	}
	title = providers.FallbackTitle(title)

	authors := make([]domain.Author, 0, len(w.Authorships))
	for _, a := range w.Authorships {
		authors = append(authors, domain.Author{
			Name:             a.Author.DisplayName,
			ProviderAuthorID: a.Author.ID,
		})
	}

	var venue string
	var pdfURL string
	if w.PrimaryLocation != nil {
		if w.PrimaryLocation.Source != nil {
			venue = w.PrimaryLocation.Source.DisplayName
		}
		pdfURL = w.PrimaryLocation.PDFURL
	}
	isOpen := w.IsOpenAccess
	if w.OpenAccess != nil {
		isOpen = w.OpenAccess.IsOA
		if w.OpenAccess.OAURL != "" {
			pdfURL = w.OpenAccess.OAURL
		}
	}

	relevance := w.RelevanceScore
	if relevance <= 0 {
		relevance = providers.DefaultRelevance(domain.ProviderA)
	}

	pw := domain.ProviderWork{
		Provider:          domain.ProviderA,
		ProviderLocalID:   w.ID,
		Title:             title,
		Abstract:          reconstructAbstract(w.AbstractIndex),
		Year:              providers.ParseYearInt(w.PublicationYear),
		Venue:             venue,
		DOI:               doi,
		LandingURL:        w.ID,
		CitationTotal:     w.CitedByCount,
		ReferenceCount:    len(w.ReferencedWorks),
		Authors:           authors,
		OpenAccess:        domain.OpenAccessState{IsOpen: isOpen, PDFURL: pdfURL},
		ExternalIDs:       map[string]string{"openalex": w.IDs.OpenAlex, "doi": doi},
		ProviderRelevance: relevance,
		SourceURL:         fmt.Sprintf("%s/works/%s", "https://api.openalex.org", w.ID),
	}
	return pw
}

// reconstructAbstract rebuilds abstract text from an inverted index mapping
// token -> positions. Missing positions yield empty words; whitespace runs
// collapse to a single space.
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}
	maxPos := -1
	for _, positions := range index {
		for _, p := range positions {
			if p > maxPos {
				maxPos = p
			}
		}
	}
	if maxPos < 0 {
		return ""
	}
	words := make([]string, maxPos+1)
	for token, positions := range index {
		for _, p := range positions {
			words[p] = token
		}
	}
	return providers.CollapseWhitespace(strings.Join(words, " "))
}
