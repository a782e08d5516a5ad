// Package aggregator fans a federated search out across provider adapters,
// resolves duplicate works across providers, ranks the merged result, and
// caches the outcome.
package aggregator

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scholarmcp/server/internal/domain"
	"github.com/scholarmcp/server/internal/providers"
)

// Config tunes the aggregator's fan-out, merge, and caching behavior.
type Config struct {
	ProviderMultiplier    float64
	FuzzyTitleThreshold   float64
	CacheTTL              time.Duration
	CacheMaxEntries       int
}

func (c *Config) applyDefaults() {
	if c.ProviderMultiplier <= 0 {
		c.ProviderMultiplier = 2
	}
	if c.FuzzyTitleThreshold <= 0 {
		c.FuzzyTitleThreshold = 0.82
	}
}

const yearCompatibilityWindow = 2

// Aggregator fans a search out across registered provider adapters, merges
// duplicate works, ranks, and caches the result.
type Aggregator struct {
	providers map[domain.ProviderTag]providers.Adapter
	cfg       Config
	cache     *searchCache
	log       zerolog.Logger
}

// New creates an Aggregator wired to the given provider adapters.
func New(cfg Config, adapters []providers.Adapter, log zerolog.Logger) *Aggregator {
	cfg.applyDefaults()
	byTag := make(map[domain.ProviderTag]providers.Adapter, len(adapters))
	for _, a := range adapters {
		byTag[a.Tag()] = a
	}
	return &Aggregator{
		providers: byTag,
		cfg:       cfg,
		cache:     newSearchCache(cfg.CacheTTL, cfg.CacheMaxEntries),
		log:       log,
	}
}

type fanOutResult struct {
	provider domain.ProviderTag
	works    []domain.ProviderWork
	err      error
}

// SearchGraph fans out to the requested providers, merges and ranks the
// results, and returns a SearchResult. Provider failures never fail the
// aggregate call.
func (a *Aggregator) SearchGraph(ctx context.Context, input domain.SearchInput) (*domain.SearchResult, error) {
	sources := input.Sources
	if len(sources) == 0 {
		sources = a.allTags()
	}

	key := cacheKey(domain.SearchInput{
		Query: input.Query, Limit: input.Limit, MinYear: input.MinYear,
		MaxYear: input.MaxYear, FieldsOfStudy: input.FieldsOfStudy, Sources: sources,
	})
	if cached, ok := a.cache.get(key); ok {
		return cached, nil
	}

	perProviderLimit := int(math.Ceil(float64(input.Limit) * a.cfg.ProviderMultiplier))
	if perProviderLimit <= 0 {
		perProviderLimit = input.Limit
	}

	resultCh := make(chan fanOutResult, len(sources))
	var wg sync.WaitGroup
	for _, tag := range sources {
		adapter, ok := a.providers[tag]
		if !ok {
			resultCh <- fanOutResult{provider: tag, err: domain.NewProviderError(tag, "", 0, "", domain.ErrProvider)}
			continue
		}
		wg.Add(1)
		go func(tag domain.ProviderTag, adapter providers.Adapter) {
			defer wg.Done()
			works, err := adapter.SearchWorks(ctx, input.Query, perProviderLimit)
			resultCh <- fanOutResult{provider: tag, works: works, err: err}
		}(tag, adapter)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	bySource := make(map[domain.ProviderTag]fanOutResult, len(sources))
	for res := range resultCh {
		bySource[res.provider] = res
	}

	// Fold in requested-source order so the order-sensitive "first non-null
	// wins" merge rules do not depend on which provider answered first.
	var providerErrors []domain.ProviderErrorEntry
	merger := newMerger(a.cfg.FuzzyTitleThreshold)
	for _, tag := range sources {
		res := bySource[tag]
		if res.err != nil {
			providerErrors = append(providerErrors, domain.ProviderErrorEntry{Provider: res.provider, Message: res.err.Error()})
			continue
		}
		for _, w := range res.works {
			if !passesFilters(w, input) {
				continue
			}
			merger.fold(w)
		}
	}

	canonicals := merger.canonicals()
	rankAndSort(canonicals, len(sources))
	if input.Limit > 0 && len(canonicals) > input.Limit {
		canonicals = canonicals[:input.Limit]
	}

	result := &domain.SearchResult{Results: canonicals, ProviderErrors: providerErrors}
	a.cache.put(key, *result)
	return result, nil
}

// ResolveByDoi resolves a work directly by DOI, attempting the DOI-resolving
// catalog first and falling back to a search-based lookup.
func (a *Aggregator) ResolveByDoi(ctx context.Context, doi string) (*domain.CanonicalWork, error) {
	normalized := providers.NormalizeDOI(doi)

	if resolver, ok := a.providers[domain.ProviderA].(providers.DOIResolver); ok {
		work, err := resolver.GetWorkByDoi(ctx, normalized)
		if err == nil && work != nil {
			merger := newMerger(a.cfg.FuzzyTitleThreshold)
			merger.fold(*work)
			canonicals := merger.canonicals()
			if len(canonicals) > 0 {
				return canonicals[0], nil
			}
		}
	}

	result, err := a.SearchGraph(ctx, domain.SearchInput{
		Query: normalized, Limit: 50,
		Sources: []domain.ProviderTag{domain.ProviderA, domain.ProviderB, domain.ProviderC},
	})
	if err != nil {
		return nil, err
	}
	for _, w := range result.Results {
		if w.DOI == normalized || w.ExternalIDs["doi"] == normalized {
			return w, nil
		}
	}
	if len(result.Results) > 0 {
		return result.Results[0], nil
	}
	return nil, nil
}

func (a *Aggregator) allTags() []domain.ProviderTag {
	tags := make([]domain.ProviderTag, 0, len(a.providers))
	for tag := range a.providers {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func passesFilters(w domain.ProviderWork, input domain.SearchInput) bool {
	if input.MinYear != nil && w.Year != nil && *w.Year < *input.MinYear {
		return false
	}
	if input.MaxYear != nil && w.Year != nil && *w.Year > *input.MaxYear {
		return false
	}
	if len(input.FieldsOfStudy) > 0 {
		matched := false
		for _, want := range input.FieldsOfStudy {
			if _, ok := w.FieldsOfStudy[want]; ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// rankAndSort computes each canonical's final blended score and sorts the
// slice descending by blended score, citation count as tiebreaker.
func rankAndSort(canonicals []*domain.CanonicalWork, requestedProviders int) {
	if requestedProviders <= 0 {
		requestedProviders = 1
	}
	currentYear := time.Now().Year()
	for _, w := range canonicals {
		diversity := float64(w.DistinctProviders()) / float64(requestedProviders)
		citationScore := citationScoreOf(w.CitationTotal)
		recency := 0.15
		if w.Year != nil {
			denom := currentYear - *w.Year + 1
			if denom < 1 {
				denom = 1
			}
			recency = 1.0 / float64(denom)
		}
		w.BlendedScore = 0.5*w.Score + 0.25*citationScore + 0.15*diversity + 0.1*math.Min(1, 2*recency)
	}
	sort.SliceStable(canonicals, func(i, j int) bool {
		if canonicals[i].BlendedScore != canonicals[j].BlendedScore {
			return canonicals[i].BlendedScore > canonicals[j].BlendedScore
		}
		return canonicals[i].CitationTotal > canonicals[j].CitationTotal
	})
}

func citationScoreOf(count int) float64 {
	return math.Min(1, math.Log10(float64(count)+1)/4)
}
