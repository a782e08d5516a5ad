package aggregator

import (
	"strconv"
	"time"

	"github.com/scholarmcp/server/internal/domain"
)

// merger implements the canonical-work entity resolution algorithm: a
// primary map keyed by synthetic key, plus a DOI index and a
// normalized-title index, folding ProviderWorks into CanonicalWorks in the
// order the caller passes them (SearchGraph uses requested-source order).
type merger struct {
	fuzzyThreshold float64

	byKey       map[string]*domain.CanonicalWork
	order       []string
	doiIndex    map[string]string
	titleIndex  map[string]map[string]struct{} // normalizedTitle -> set of keys
	nextOrdinal int
}

func newMerger(fuzzyThreshold float64) *merger {
	return &merger{
		fuzzyThreshold: fuzzyThreshold,
		byKey:          make(map[string]*domain.CanonicalWork),
		doiIndex:       make(map[string]string),
		titleIndex:     make(map[string]map[string]struct{}),
	}
}

// fold resolves a target canonical key for w per the documented priority
// order and folds w's fields into that canonical, creating a new one if no
// match is found.
func (m *merger) fold(w domain.ProviderWork) {
	normTitle := normalizedTitleKey(w.Title)

	if key := m.resolveTargetKey(w, normTitle); key != "" {
		m.mergeInto(key, w)
		return
	}

	key := m.newKey(w, normTitle)
	m.createCanonical(key, w, normTitle)
}

func (m *merger) resolveTargetKey(w domain.ProviderWork, normTitle string) string {
	// Priority 1: indexed DOI.
	if w.DOI != "" {
		if key, ok := m.doiIndex[w.DOI]; ok {
			return key
		}
	}

	// Priority 2: equal normalized title, compatible year, author signal.
	if keys, ok := m.titleIndex[normTitle]; ok {
		for key := range keys {
			existing := m.byKey[key]
			if yearsCompatible(existing.Year, w.Year, yearCompatibilityWindow) && hasAuthorSignal(existing.Authors, w.Authors) {
				return key
			}
		}
	}

	// Priority 3: Jaccard title similarity against every existing canonical.
	wTokens := titleTokenSet(normTitle)
	bestKey := ""
	bestScore := 0.0
	for _, key := range m.order {
		existing := m.byKey[key]
		score := jaccard(wTokens, titleTokenSet(normalizedTitleKey(existing.Title)))
		if score < m.fuzzyThreshold {
			continue
		}
		if !yearsCompatible(existing.Year, w.Year, yearCompatibilityWindow) {
			continue
		}
		if !hasAuthorSignal(existing.Authors, w.Authors) {
			continue
		}
		if score > bestScore {
			bestScore = score
			bestKey = key
		}
	}
	return bestKey
}

func (m *merger) newKey(w domain.ProviderWork, normTitle string) string {
	if w.DOI != "" {
		return "doi:" + w.DOI
	}
	year := "null"
	if w.Year != nil {
		year = strconv.Itoa(*w.Year)
	}
	return "title:" + normTitle + "|" + year
}

func (m *merger) createCanonical(key string, w domain.ProviderWork, normTitle string) {
	cw := &domain.CanonicalWork{
		Key:            key,
		Title:          w.Title,
		Abstract:       w.Abstract,
		Year:           w.Year,
		Venue:          w.Venue,
		DOI:            w.DOI,
		URL:            w.LandingURL,
		CitationTotal:  w.CitationTotal,
		CitationInfl:   w.CitationInfl,
		ReferenceCount: w.ReferenceCount,
		Authors:        append([]domain.Author(nil), w.Authors...),
		OpenAccess:     w.OpenAccess,
		ExternalIDs:    copyStringMap(w.ExternalIDs),
		FieldsOfStudy:  copyStringSet(w.FieldsOfStudy),
		Score:          blendedSourceScore(w),
	}
	cw.Provenance = append(cw.Provenance, domain.ProvenanceEntry{
		Provider: w.Provider, SourceURL: w.SourceURL, FetchedAt: time.Now(), Confidence: w.ProviderRelevance,
	})

	m.byKey[key] = cw
	m.order = append(m.order, key)
	if w.DOI != "" {
		m.doiIndex[w.DOI] = key
	}
	if m.titleIndex[normTitle] == nil {
		m.titleIndex[normTitle] = make(map[string]struct{})
	}
	m.titleIndex[normTitle][key] = struct{}{}
}

// mergeInto folds w's fields into the canonical at key per the documented
// field-merge rules.
func (m *merger) mergeInto(key string, w domain.ProviderWork) {
	cw := m.byKey[key]

	if cw.Abstract == "" {
		cw.Abstract = w.Abstract
	}
	if cw.Year == nil {
		cw.Year = w.Year
	}
	if cw.Venue == "" {
		cw.Venue = w.Venue
	}
	if cw.URL == "" {
		cw.URL = w.LandingURL
	}
	if cw.DOI == "" && w.DOI != "" {
		cw.DOI = w.DOI
		m.doiIndex[w.DOI] = key
	}

	cw.CitationTotal = maxInt(cw.CitationTotal, w.CitationTotal)
	cw.CitationInfl = maxInt(cw.CitationInfl, w.CitationInfl)
	cw.ReferenceCount = maxInt(cw.ReferenceCount, w.ReferenceCount)

	if len(cw.Authors) == 0 {
		cw.Authors = append([]domain.Author(nil), w.Authors...)
	}

	if cw.FieldsOfStudy == nil {
		cw.FieldsOfStudy = make(map[string]struct{})
	}
	for f := range w.FieldsOfStudy {
		cw.FieldsOfStudy[f] = struct{}{}
	}

	if cw.ExternalIDs == nil {
		cw.ExternalIDs = make(map[string]string)
	}
	for k, v := range w.ExternalIDs {
		if _, exists := cw.ExternalIDs[k]; !exists {
			cw.ExternalIDs[k] = v
		}
	}

	cw.OpenAccess.IsOpen = cw.OpenAccess.IsOpen || w.OpenAccess.IsOpen
	if cw.OpenAccess.PDFURL == "" {
		cw.OpenAccess.PDFURL = w.OpenAccess.PDFURL
	}
	if cw.OpenAccess.License == "" {
		cw.OpenAccess.License = w.OpenAccess.License
	}

	cw.Provenance = append(cw.Provenance, domain.ProvenanceEntry{
		Provider: w.Provider, SourceURL: w.SourceURL, FetchedAt: time.Now(), Confidence: w.ProviderRelevance,
	})

	cw.Score = maxFloat(cw.Score, blendedSourceScore(w))
}

// canonicals returns canonicals in insertion order; callers re-sort by
// blended score for the final ranking pass.
func (m *merger) canonicals() []*domain.CanonicalWork {
	out := make([]*domain.CanonicalWork, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.byKey[key])
	}
	return out
}

// blendedSourceScore computes the per-provider blended relevance used both
// to seed a new canonical's score and as the candidate value in the
// max-rule on merge.
func blendedSourceScore(w domain.ProviderWork) float64 {
	citationScore := citationScoreOf(w.CitationTotal)
	providerWeight := domain.ProviderWeight(w.Provider)
	return 0.6*w.ProviderRelevance + 0.3*citationScore + 0.1*providerWeight
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
