package aggregator

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/scholarmcp/server/internal/domain"
)

// searchCache is a bounded, FIFO-eviction, TTL-on-access cache for
// federated search results. Unlike a capacity-bounded LRU (used for the
// session table), eviction order here is strictly insertion order — the
// spec calls for FIFO, not recency-based eviction, so the session
// manager's hashicorp/golang-lru based approach does not fit and this
// cache is hand-rolled instead.
type searchCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxSize  int
	order    []string
	entries  map[string]cacheEntry
}

type cacheEntry struct {
	result    domain.SearchResult
	expiresAt time.Time
}

func newSearchCache(ttl time.Duration, maxSize int) *searchCache {
	return &searchCache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]cacheEntry),
	}
}

// get returns a deep copy of the cached result, or (nil, false) on a miss
// or an expired entry. An expired entry is evicted lazily on access.
func (c *searchCache) get(key string) (*domain.SearchResult, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeLocked(key)
		return nil, false
	}
	return deepCopyResult(&entry.result), true
}

// put inserts a result under key, evicting the oldest entry (insertion
// order) when at capacity.
func (c *searchCache) put(key string, result domain.SearchResult) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if c.maxSize > 0 && len(c.order) >= c.maxSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{
		result:    deepCopyResultValue(result),
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *searchCache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func deepCopyResult(r *domain.SearchResult) *domain.SearchResult {
	copied := deepCopyResultValue(*r)
	return &copied
}

func deepCopyResultValue(r domain.SearchResult) domain.SearchResult {
	results := make([]*domain.CanonicalWork, len(r.Results))
	for i, w := range r.Results {
		clone := *w
		clone.Authors = append([]domain.Author(nil), w.Authors...)
		clone.Provenance = append([]domain.ProvenanceEntry(nil), w.Provenance...)
		if w.Year != nil {
			y := *w.Year
			clone.Year = &y
		}
		clone.ExternalIDs = copyStringMap(w.ExternalIDs)
		clone.FieldsOfStudy = copyStringSet(w.FieldsOfStudy)
		results[i] = &clone
	}
	errs := append([]domain.ProviderErrorEntry(nil), r.ProviderErrors...)
	return domain.SearchResult{Results: results, ProviderErrors: errs}
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringSet(m map[string]struct{}) map[string]struct{} {
	if m == nil {
		return nil
	}
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// cacheKey builds the cache key for a search input, normalizing fields so
// equivalent requests collide regardless of slice ordering.
func cacheKey(input domain.SearchInput) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(strings.TrimSpace(input.Query)))
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(input.Limit))
	sb.WriteByte('|')
	if input.MinYear != nil {
		sb.WriteString(strconv.Itoa(*input.MinYear))
	}
	sb.WriteByte('-')
	if input.MaxYear != nil {
		sb.WriteString(strconv.Itoa(*input.MaxYear))
	}
	sb.WriteByte('|')
	sb.WriteString(sortedJoin(input.FieldsOfStudy))
	sb.WriteByte('|')

	sources := make([]string, len(input.Sources))
	for i, s := range input.Sources {
		sources[i] = string(s)
	}
	sb.WriteString(sortedJoin(sources))
	return sb.String()
}

func sortedJoin(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
