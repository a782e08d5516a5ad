package citation

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarmcp/server/internal/aggregator"
	"github.com/scholarmcp/server/internal/domain"
	"github.com/scholarmcp/server/internal/providers"
)

type fakeAdapter struct {
	tag   domain.ProviderTag
	works []domain.ProviderWork
}

func (f *fakeAdapter) Tag() domain.ProviderTag  { return f.tag }
func (f *fakeAdapter) Name() string             { return string(f.tag) }
func (f *fakeAdapter) SearchWorks(ctx context.Context, query string, limit int) ([]domain.ProviderWork, error) {
	return f.works, nil
}

func intPtr(y int) *int { return &y }

func newTestAggregator(works ...domain.ProviderWork) *aggregator.Aggregator {
	adapter := &fakeAdapter{tag: domain.ProviderA, works: works}
	return aggregator.New(aggregator.Config{}, []providers.Adapter{adapter}, zerolog.Nop())
}

func TestSuggestRanksByContextOverlap(t *testing.T) {
	agg := newTestAggregator(
		domain.ProviderWork{Title: "Graph Neural Networks for Drug Discovery", Abstract: "graph neural networks drug discovery molecules", Year: intPtr(2022), CitationTotal: 50},
		domain.ProviderWork{Title: "Unrelated Topic About Cooking", Abstract: "recipes baking kitchen food", Year: intPtr(2022), CitationTotal: 50},
	)
	engine := New(agg, NewPlainAdapter())

	result, err := engine.Suggest(context.Background(), SuggestInput{
		ManuscriptText: "This work builds graph neural networks for drug discovery applications.",
		K:              2,
		RecencyBias:    0.5,
	})
	require.NoError(t, err)
	require.Len(t, result.Suggestions, 2)
	assert.Equal(t, "Graph Neural Networks for Drug Discovery", result.Suggestions[0].Work.Title)
	assert.Greater(t, result.Suggestions[0].Score, result.Suggestions[1].Score)
	assert.Contains(t, result.QueryUsed, "graph")
}

func TestSuggestTruncatesToK(t *testing.T) {
	works := make([]domain.ProviderWork, 0, 5)
	for i := 0; i < 5; i++ {
		works = append(works, domain.ProviderWork{Title: "Paper", Abstract: "shared text tokens repeated", Year: intPtr(2020)})
	}
	agg := newTestAggregator(works...)
	engine := New(agg, NewPlainAdapter())

	result, err := engine.Suggest(context.Background(), SuggestInput{ManuscriptText: "shared text tokens repeated", K: 2})
	require.NoError(t, err)
	assert.Len(t, result.Suggestions, 2)
}

func TestSuggestFallsBackToManuscriptPrefixWhenContextEmpty(t *testing.T) {
	agg := newTestAggregator(domain.ProviderWork{Title: "Paper", Abstract: "abstract text", Year: intPtr(2020)})
	engine := New(agg, NewPlainAdapter())

	_, err := engine.Suggest(context.Background(), SuggestInput{ManuscriptText: "", CursorContext: "", K: 3})
	require.NoError(t, err)
}

func TestMatchedContextPrefersAbstract(t *testing.T) {
	w := &domain.CanonicalWork{Title: "T", Abstract: "an abstract"}
	assert.Equal(t, "an abstract", matchedContext(w))

	w2 := &domain.CanonicalWork{Title: "Title Only"}
	assert.Equal(t, "Title Only", matchedContext(w2))
}
