// Package citation implements the citation engine: context-aware inline
// suggestions, reference-list building across citation styles, and
// manuscript/reference-list consistency validation.
package citation

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/scholarmcp/server/internal/aggregator"
	"github.com/scholarmcp/server/internal/domain"
)

const (
	contextWindowChars  = 2500
	contextFallbackChars = 200
	queryTokenCount     = 12
)

// Engine wraps the literature aggregator (for suggest's internal search
// call) and a pluggable StyleAdapter.
type Engine struct {
	aggregator *aggregator.Aggregator
	style      StyleAdapter
}

// New builds a citation Engine.
func New(agg *aggregator.Aggregator, style StyleAdapter) *Engine {
	if style == nil {
		style = NewPlainAdapter()
	}
	return &Engine{aggregator: agg, style: style}
}

// SuggestInput parameterizes a contextual citation suggestion request.
type SuggestInput struct {
	ManuscriptText string
	CursorContext  string
	K              int
	RecencyBias    float64
}

// Suggestion is one scored candidate reference for a given context.
type Suggestion struct {
	Work           *domain.CanonicalWork
	Score          float64
	MatchedContext string
}

// SuggestResult is Suggest's output: the ranked suggestions plus the query
// derived from the manuscript context and used for the internal search.
type SuggestResult struct {
	Suggestions []Suggestion
	QueryUsed   string
}

// Suggest returns the top-k canonical works most relevant to the caller's
// manuscript context, per spec.md's context-aware suggestion formula.
func (e *Engine) Suggest(ctx context.Context, input SuggestInput) (*SuggestResult, error) {
	k := input.K
	if k <= 0 {
		k = 5
	}

	window := input.CursorContext
	if window == "" {
		window = input.ManuscriptText
	}
	window = lastNChars(window, contextWindowChars)

	derivedQuery := joinTokens(topTokensByFrequency(window, queryTokenCount))
	if derivedQuery == "" {
		derivedQuery = firstNChars(input.ManuscriptText, contextFallbackChars)
	}

	limit := 3 * k
	if limit > 30 {
		limit = 30
	}
	if limit < k {
		limit = k
	}

	result, err := e.aggregator.SearchGraph(ctx, domain.SearchInput{Query: derivedQuery, Limit: limit})
	if err != nil {
		return nil, err
	}

	contextTokens := tokenSet(tokenize(window))
	currentYear := time.Now().Year()

	suggestions := make([]Suggestion, 0, len(result.Results))
	for _, w := range result.Results {
		workTokens := tokenSet(tokenize(w.Title + " " + w.Abstract))
		citationScore := math.Min(1, math.Log10(float64(w.CitationTotal)+1)/4)
		recency := 0.15
		if w.Year != nil {
			denom := currentYear - *w.Year + 1
			if denom < 1 {
				denom = 1
			}
			recency = 1.0 / float64(denom)
		}
		score := 0.55*overlap(contextTokens, workTokens) +
			0.3*math.Min(1, citationScore) +
			0.15*clamp(recency*math.Max(0, input.RecencyBias), 0, 1)

		suggestions = append(suggestions, Suggestion{
			Work:           w,
			Score:          score,
			MatchedContext: matchedContext(w),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool { return suggestions[i].Score > suggestions[j].Score })
	if len(suggestions) > k {
		suggestions = suggestions[:k]
	}
	return &SuggestResult{Suggestions: suggestions, QueryUsed: derivedQuery}, nil
}

func matchedContext(w *domain.CanonicalWork) string {
	if w.Abstract != "" {
		return firstNChars(w.Abstract, 280)
	}
	return w.Title
}

func joinTokens(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	out := tokens[0]
	for _, t := range tokens[1:] {
		out += " " + t
	}
	return out
}
