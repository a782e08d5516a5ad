// Package scholarlike implements Provider D: the Google-Scholar-style HTML
// scraper. Its scraping internals are out of scope for this engine — the
// adapter satisfies the Adapter contract and issues one goquery-parsed GET
// through the pacing fetcher, returning ScholarScrapeBlockedError when the
// page looks like an anti-automation challenge.
package scholarlike

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
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://scholar.example.org/scholar"
	}
}

// Client implements providers.Adapter for Provider D.
type Client struct {
	cfg     Config
	fetcher *httpfetch.Fetcher
	log     zerolog.Logger
}

var _ providers.Adapter = (*Client)(nil)

// New creates a Provider D client.
func New(cfg Config, fetcher *httpfetch.Fetcher, log zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{cfg: cfg, fetcher: fetcher, log: log}
}

func (c *Client) Tag() domain.ProviderTag { return domain.ProviderD }
func (c *Client) Name() string            { return "Provider D" }

const blockedMarker = "Our systems have detected unusual traffic"

// SearchWorks issues one HTML GET against the scholar-style search page and
// extracts titles/venues/years from the result list markup. A challenge
// page is reported as a ProviderError whose cause is a
// ScholarScrapeBlockedError.
func (c *Client) SearchWorks(ctx context.Context, query string, limit int) ([]domain.ProviderWork, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderD, "", 0, "", err)
	}
	q := url.Values{}
	q.Set("q", query)
	base.RawQuery = q.Encode()
	u := base.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderD, u, 0, "", err)
	}
	req.Header.Set("Accept", "text/html")

	body, _, err := c.fetcher.DoRaw(ctx, req)
	if err != nil {
		if fe, ok := err.(*httpfetch.FetchError); ok {
			return nil, domain.NewProviderError(domain.ProviderD, u, fe.HTTPStatus, fe.BodySnippet, fe.Cause)
		}
		return nil, domain.NewProviderError(domain.ProviderD, u, 0, "", err)
	}

	if strings.Contains(string(body), blockedMarker) {
		blocked := &domain.ScholarScrapeBlockedError{URL: u}
		return nil, domain.NewProviderError(domain.ProviderD, u, 0, "", blocked)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderD, u, 0, "", err)
	}

	var out []domain.ProviderWork
	doc.Find(".gs_ri").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}
		title := providers.FallbackTitle(strings.TrimSpace(s.Find(".gs_rt").Text()))
		venueLine := strings.TrimSpace(s.Find(".gs_a").Text())
		snippet := providers.CollapseWhitespace(s.Find(".gs_rs").Text())
		landingURL, _ := s.Find(".gs_rt a").Attr("href")

		out = append(out, domain.ProviderWork{
			Provider:          domain.ProviderD,
			ProviderLocalID:   landingURL,
			Title:             title,
			Abstract:          snippet,
			Year:              providers.ParseYear(venueLine),
			Venue:             venueLine,
			LandingURL:        landingURL,
			ProviderRelevance: providers.DefaultRelevance(domain.ProviderD),
			SourceURL:         u,
		})
		return true
	})

	return out, nil
}

// KeywordSearchOptions parameterizes search_google_scholar_key_words.
type KeywordSearchOptions struct {
	Query      string
	NumResults int
	Start      int
	Language   string
}

// AdvancedSearchOptions parameterizes search_google_scholar_advanced,
// building a query string from Google Scholar's documented search
// operators: author:, exact-phrase quoting, -exclude, and allintitle:.
type AdvancedSearchOptions struct {
	Query         string
	Author        string
	MinYear       *int
	MaxYear       *int
	ExactPhrase   string
	ExcludeWords  []string
	TitleOnly     bool
	NumResults    int
	Start         int
	Language      string
}

// SearchKeywords issues a plain keyword search and returns scraped
// ScholarWork entries rather than ProviderWork, since this tool bypasses
// the aggregator's canonicalization pipeline entirely.
func (c *Client) SearchKeywords(ctx context.Context, opts KeywordSearchOptions) (*domain.ScholarSearchResult, error) {
	q := url.Values{}
	q.Set("q", opts.Query)
	q.Set("start", strconv.Itoa(opts.Start))
	q.Set("hl", opts.Language)
	return c.scrape(ctx, q, opts.NumResults)
}

// SearchAdvanced builds a Scholar query string from structured fields and
// scrapes the resulting page.
func (c *Client) SearchAdvanced(ctx context.Context, opts AdvancedSearchOptions) (*domain.ScholarSearchResult, error) {
	var terms []string
	if opts.Query != "" {
		terms = append(terms, opts.Query)
	}
	if opts.ExactPhrase != "" {
		terms = append(terms, strconv.Quote(opts.ExactPhrase))
	}
	if opts.Author != "" {
		terms = append(terms, "author:"+strconv.Quote(opts.Author))
	}
	for _, word := range opts.ExcludeWords {
		if word != "" {
			terms = append(terms, "-"+word)
		}
	}
	query := strings.Join(terms, " ")
	if opts.TitleOnly {
		query = "allintitle: " + query
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("start", strconv.Itoa(opts.Start))
	q.Set("hl", opts.Language)
	if opts.MinYear != nil {
		q.Set("as_ylo", strconv.Itoa(*opts.MinYear))
	}
	if opts.MaxYear != nil {
		q.Set("as_yhi", strconv.Itoa(*opts.MaxYear))
	}
	return c.scrape(ctx, q, opts.NumResults)
}

// GetAuthorInfo scrapes an author's top publications via a name-scoped
// search and folds them into a best-effort profile summary.
func (c *Client) GetAuthorInfo(ctx context.Context, authorName string, maxPublications int, language string) (*domain.AuthorInfo, error) {
	q := url.Values{}
	q.Set("q", "author:"+strconv.Quote(authorName))
	q.Set("hl", language)
	result, err := c.scrape(ctx, q, maxPublications)
	if err != nil {
		return nil, err
	}

	info := &domain.AuthorInfo{AuthorName: authorName, Publications: result.Results}
	for _, pub := range result.Results {
		if pub.Year != nil {
			info.TotalCitations++
		}
	}
	return info, nil
}

// scrape issues the shared GET-and-parse path used by the three
// Scholar-style tools, returning ScholarWork entries built from the same
// ".gs_ri" markup SearchWorks parses.
func (c *Client) scrape(ctx context.Context, q url.Values, limit int) (*domain.ScholarSearchResult, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderD, "", 0, "", err)
	}
	base.RawQuery = q.Encode()
	u := base.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderD, u, 0, "", err)
	}
	req.Header.Set("Accept", "text/html")

	body, _, err := c.fetcher.DoRaw(ctx, req)
	if err != nil {
		if fe, ok := err.(*httpfetch.FetchError); ok {
			return nil, domain.NewProviderError(domain.ProviderD, u, fe.HTTPStatus, fe.BodySnippet, fe.Cause)
		}
		return nil, domain.NewProviderError(domain.ProviderD, u, 0, "", err)
	}
	if strings.Contains(string(body), blockedMarker) {
		blocked := &domain.ScholarScrapeBlockedError{URL: u}
		return nil, domain.NewProviderError(domain.ProviderD, u, 0, "", blocked)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderD, u, 0, "", err)
	}

	var out []domain.ScholarWork
	doc.Find(".gs_ri").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}
		title := providers.FallbackTitle(strings.TrimSpace(s.Find(".gs_rt").Text()))
		venueLine := strings.TrimSpace(s.Find(".gs_a").Text())
		snippet := providers.CollapseWhitespace(s.Find(".gs_rs").Text())
		landingURL, _ := s.Find(".gs_rt a").Attr("href")

		out = append(out, domain.ScholarWork{
			Title:   title,
			Authors: parseAuthorsFromByline(venueLine),
			Venue:   venueLine,
			Year:    providers.ParseYear(venueLine),
			Snippet: snippet,
			URL:     landingURL,
		})
		return true
	})

	return &domain.ScholarSearchResult{Results: out}, nil
}

// parseAuthorsFromByline extracts the author list from a "gs_a" byline of
// the form "A Author, B Other - Venue, Year - publisher".
func parseAuthorsFromByline(byline string) []string {
	before, _, found := strings.Cut(byline, " - ")
	if !found {
		before = byline
	}
	var authors []string
	for _, a := range strings.Split(before, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			authors = append(authors, a)
		}
	}
	return authors
}
