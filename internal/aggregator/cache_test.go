package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarmcp/server/internal/domain"
)

func TestSearchCache_FIFOEviction(t *testing.T) {
	c := newSearchCache(time.Minute, 2)
	c.put("a", domain.SearchResult{Results: []*domain.CanonicalWork{{Title: "A"}}})
	c.put("b", domain.SearchResult{Results: []*domain.CanonicalWork{{Title: "B"}}})
	c.put("c", domain.SearchResult{Results: []*domain.CanonicalWork{{Title: "C"}}})

	_, ok := c.get("a")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.get("b")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}

func TestSearchCache_TTLExpiresOnAccess(t *testing.T) {
	c := newSearchCache(10*time.Millisecond, 10)
	c.put("a", domain.SearchResult{Results: []*domain.CanonicalWork{{Title: "A"}}})

	time.Sleep(20 * time.Millisecond)
	_, ok := c.get("a")
	assert.False(t, ok)
}

func TestSearchCache_HitReturnsDeepCopy(t *testing.T) {
	c := newSearchCache(time.Minute, 10)
	c.put("a", domain.SearchResult{Results: []*domain.CanonicalWork{{Title: "A", Authors: []domain.Author{{Name: "x"}}}}})

	first, ok := c.get("a")
	require.True(t, ok)
	first.Results[0].Title = "mutated"
	first.Results[0].Authors[0].Name = "mutated"

	second, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, "A", second.Results[0].Title)
	assert.Equal(t, "x", second.Results[0].Authors[0].Name)
}

func TestSearchCache_TTLZeroDisablesCaching(t *testing.T) {
	c := newSearchCache(0, 10)
	c.put("a", domain.SearchResult{Results: []*domain.CanonicalWork{{Title: "A"}}})
	_, ok := c.get("a")
	assert.False(t, ok)
}
