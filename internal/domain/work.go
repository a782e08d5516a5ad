// Package domain holds the core types shared across the research engine:
// provider-normalized works, merged canonical works, ingestion jobs and
// parsed documents, citation structures, and session runtime state.
package domain

import "time"

// ProviderTag identifies one of the four federated literature catalogs.
type ProviderTag string

// The four providers the aggregator fans out to.
const (
	ProviderA ProviderTag = "A" // inverted-index abstracts, DOI-resolving
	ProviderB ProviderTag = "B" // HTML-embedded abstracts
	ProviderC ProviderTag = "C" // structured JSON catalog
	ProviderD ProviderTag = "D" // HTML scraper
)

// providerWeight is the fixed per-provider weight used in score blending.
var providerWeight = map[ProviderTag]float64{
	ProviderA: 1.0,
	ProviderB: 0.9,
	ProviderC: 1.1,
	ProviderD: 0.7,
}

// ProviderWeight returns the fixed per-provider weight used when blending a
// work's score (§4.3's "providerWeight"). Unknown tags weight 1.0.
func ProviderWeight(p ProviderTag) float64 {
	if w, ok := providerWeight[p]; ok {
		return w
	}
	return 1.0
}

// defaultRelevance is the provider-characteristic default relevance applied
// when a source does not supply one of its own.
var defaultRelevance = map[ProviderTag]float64{
	ProviderA: 0.5,
	ProviderB: 0.5,
	ProviderC: 0.7,
	ProviderD: 0.4,
}

// DefaultRelevance returns the provider-characteristic default relevance.
func DefaultRelevance(p ProviderTag) float64 {
	if r, ok := defaultRelevance[p]; ok {
		return r
	}
	return 0.5
}

// Author is one contributor to a work, as reported by a single provider.
type Author struct {
	Name             string
	ProviderAuthorID string
}

// OpenAccessState describes open-access availability for a work.
type OpenAccessState struct {
	IsOpen  bool
	PDFURL  string
	License string
}

// ProviderWork is a raw per-provider record after adapter normalization.
// Title is never empty (adapters fall back to "Untitled"); DOI, when
// present, is lowercased and stripped of any URL prefix.
type ProviderWork struct {
	Provider         ProviderTag
	ProviderLocalID  string
	Title            string
	Abstract         string
	Year             *int
	Venue            string
	DOI              string
	LandingURL       string
	CitationTotal    int
	CitationInfl     int
	ReferenceCount   int
	Authors          []Author
	OpenAccess       OpenAccessState
	ExternalIDs      map[string]string
	FieldsOfStudy    map[string]struct{}
	ProviderRelevance float64
	SourceURL        string
}

// ProvenanceEntry records one provider's contribution to a CanonicalWork.
type ProvenanceEntry struct {
	Provider   ProviderTag
	SourceURL  string
	FetchedAt  time.Time
	Confidence float64
}

// CanonicalWork is the merged cross-provider record for one publication.
type CanonicalWork struct {
	Key            string // "doi:<doi>", or "title:<normalizedTitle>|<year or null>" when DOI is absent
	Title          string
	Abstract       string
	Year           *int
	Venue          string
	DOI            string
	URL            string
	CitationTotal  int
	CitationInfl   int
	ReferenceCount int
	Authors        []Author
	OpenAccess     OpenAccessState
	ExternalIDs    map[string]string
	FieldsOfStudy  map[string]struct{}
	Provenance     []ProvenanceEntry
	Score          float64 // max blended per-provider relevance, see §4.3
	BlendedScore   float64 // final ranking scalar, computed at rank time
}

// DistinctProviders returns the number of distinct providers that
// contributed to this canonical work's provenance.
func (w *CanonicalWork) DistinctProviders() int {
	seen := make(map[ProviderTag]struct{}, len(w.Provenance))
	for _, p := range w.Provenance {
		seen[p.Provider] = struct{}{}
	}
	return len(seen)
}

// SearchResult is the aggregator's response to a federated search.
type SearchResult struct {
	Results        []*CanonicalWork
	ProviderErrors []ProviderErrorEntry
}

// ProviderErrorEntry is one entry in a SearchResult's provider error list.
type ProviderErrorEntry struct {
	Provider ProviderTag
	Message  string
}

// SearchInput parameterizes a federated search.
type SearchInput struct {
	Query         string
	Limit         int
	MinYear       *int
	MaxYear       *int
	FieldsOfStudy []string
	Sources       []ProviderTag
}
