package ingestion

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// discoverPDFURL scans a landing page's HTML for the first PDF link among,
// in order: a <meta name="citation_pdf_url">, a <meta property="og:pdf">, a
// <link type="application/pdf">, or the first anchor with an .pdf href.
// Relative links are resolved against pageURL.
func discoverPDFURL(pageURL string, html []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", false
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}

	if href, ok := doc.Find(`meta[name="citation_pdf_url"]`).Attr("content"); ok && href != "" {
		return resolveAgainst(base, href), true
	}
	if href, ok := doc.Find(`meta[property="og:pdf"]`).Attr("content"); ok && href != "" {
		return resolveAgainst(base, href), true
	}
	if href, ok := doc.Find(`link[type="application/pdf"]`).Attr("href"); ok && href != "" {
		return resolveAgainst(base, href), true
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		if strings.HasSuffix(strings.ToLower(strings.TrimSpace(href)), ".pdf") {
			found = resolveAgainst(base, href)
			return false
		}
		return true
	})
	if found != "" {
		return found, true
	}

	return "", false
}

func resolveAgainst(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
