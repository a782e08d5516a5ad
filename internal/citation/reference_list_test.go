package citation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarmcp/server/internal/domain"
)

func TestBuildListDedupesByDOI(t *testing.T) {
	year := 2021
	works := []*domain.CanonicalWork{
		{Key: "10.1/a", DOI: "10.1/a", Title: "Paper A", Year: &year, Authors: []domain.Author{{Name: "Jane Doe"}}},
		{Key: "10.1/a", DOI: "10.1/a", Title: "Paper A Duplicate", Year: &year, Authors: []domain.Author{{Name: "Jane Doe"}}},
	}
	engine := New(nil, NewPlainAdapter())

	result, err := engine.BuildList(context.Background(), BuildListInput{Works: works, Styles: []domain.Style{domain.StyleAPA}})
	require.NoError(t, err)
	assert.Equal(t, 1, len(result.Export.Entries))
	assert.Contains(t, result.BibliographyText, "[1]")
	assert.NotContains(t, result.BibliographyText, "[2]")
}

func TestBuildListFallsBackToKeyWhenNoDOI(t *testing.T) {
	works := []*domain.CanonicalWork{
		{Key: "paper one|2020", Title: "Paper One"},
		{Key: "paper two|2020", Title: "Paper Two"},
	}
	engine := New(nil, NewPlainAdapter())
	result, err := engine.BuildList(context.Background(), BuildListInput{Works: works})
	require.NoError(t, err)
	assert.Equal(t, 2, len(result.Export.Entries))
}

func TestBuildListMultipleStylesProducesMultipleLines(t *testing.T) {
	works := []*domain.CanonicalWork{{Key: "k1", Title: "Solo Paper"}}
	engine := New(nil, NewPlainAdapter())
	result, err := engine.BuildList(context.Background(), BuildListInput{
		Works:  works,
		Styles: []domain.Style{domain.StyleAPA, domain.StyleIEEE},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, len(result.Export.Entries[0].Rendered))
}

func TestInlineCitationNumericStyleUsesBrackets(t *testing.T) {
	refs := []domain.ReferenceEntry{{Index: 0}, {Index: 1}, {Index: 2}, {Index: 3}}
	out := InlineCitation(domain.StyleIEEE, refs)
	assert.Equal(t, "[1], [2], [3]", out)
}

func TestInlineCitationAuthorYearStyleUsesParens(t *testing.T) {
	year := 2021
	refs := []domain.ReferenceEntry{{Index: 0, Authors: []string{"Jane Doe"}, Year: &year}}
	out := InlineCitation(domain.StyleAPA, refs)
	assert.Equal(t, "(Doe, 2021)", out)
}

func TestDedupeWorksSkipsNil(t *testing.T) {
	works := []*domain.CanonicalWork{nil, {Key: "a"}}
	out := dedupeWorks(works)
	assert.Len(t, out, 1)
}
