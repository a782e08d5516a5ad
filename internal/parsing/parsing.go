// Package parsing implements the full-text parser chain: a structured
// remote parser backed by a TEI-like document service, and a simple local
// parser backed by a lightweight PDF text extractor. Both strategies share
// one output contract so downstream extraction is parser-agnostic.
package parsing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/scholarmcp/server/internal/domain"
)

// Mode selects which parser strategies the chain tries, and in what order.
type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeStructured Mode = "structured"
	ModeSimple     Mode = "simple"
)

// Parser is one full-text extraction strategy.
type Parser interface {
	// Name identifies the parser for logging and provenance.
	Name() string
	// Parse extracts a ParsedDocument from the PDF bytes at path.
	Parse(ctx context.Context, pdfPath string, pdfBytes []byte) (*domain.ParsedDocument, error)
}

// Chain tries parsers in order, falling through on failure.
type Chain struct {
	structured Parser
	simple     Parser
	logger     zerolog.Logger
}

// NewChain builds a parser chain. structured may be nil when no remote
// full-text-document service is configured; the structured strategy is
// then skipped regardless of the requested mode.
func NewChain(structured, simple Parser, logger zerolog.Logger) *Chain {
	return &Chain{structured: structured, simple: simple, logger: logger}
}

// order resolves the parser list to try for a requested mode.
func (c *Chain) order(mode Mode) []Parser {
	switch mode {
	case ModeSimple:
		return []Parser{c.simple}
	case ModeStructured, ModeAuto:
		var list []Parser
		if c.structured != nil {
			list = append(list, c.structured)
		}
		list = append(list, c.simple)
		return list
	default:
		var list []Parser
		if c.structured != nil {
			list = append(list, c.structured)
		}
		list = append(list, c.simple)
		return list
	}
}

// Parse tries each parser for mode in order, returning the first success.
// Every parser's failure is logged as a warning; if all parsers fail, the
// last error is wrapped in a domain.IngestionError.
func (c *Chain) Parse(ctx context.Context, mode Mode, pdfPath string, pdfBytes []byte) (*domain.ParsedDocument, error) {
	parsers := c.order(mode)

	var lastErr error
	for _, p := range parsers {
		if p == nil {
			continue
		}
		doc, err := p.Parse(ctx, pdfPath, pdfBytes)
		if err != nil {
			c.logger.Warn().Err(err).Str("parser", p.Name()).Msg("parser strategy failed, trying next")
			lastErr = err
			continue
		}
		return doc, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no parser strategies available for mode %q", mode)
	}
	return nil, domain.WrapIngestionError("all parser strategies failed", lastErr)
}
