// Package providers defines the shared adapter contract and normalization
// helpers used by the four catalog-specific packages underneath it.
package providers

import (
	"context"

	"github.com/scholarmcp/server/internal/domain"
)

// Adapter is the capability every provider package exposes to the
// aggregator: search by free-text query, tagged with its own identity.
type Adapter interface {
	Tag() domain.ProviderTag
	Name() string
	SearchWorks(ctx context.Context, query string, limit int) ([]domain.ProviderWork, error)
}

// DOIResolver is implemented by providers that can resolve a work directly
// by DOI rather than through a free-text search. Only the DOI-resolving
// catalog (provider A) implements this.
type DOIResolver interface {
	GetWorkByDoi(ctx context.Context, doi string) (*domain.ProviderWork, error)
}
