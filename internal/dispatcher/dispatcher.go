package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/scholarmcp/server/internal/aggregator"
	"github.com/scholarmcp/server/internal/citation"
	"github.com/scholarmcp/server/internal/domain"
	"github.com/scholarmcp/server/internal/extraction"
	"github.com/scholarmcp/server/internal/ingestion"
	"github.com/scholarmcp/server/internal/observability"
	"github.com/scholarmcp/server/internal/providers/scholarlike"
)

// Services bundles the core components the dispatcher calls into. Any
// field may be nil in a unit test exercising a handler that doesn't use it.
type Services struct {
	Aggregator *aggregator.Aggregator
	Ingestion  *ingestion.Engine
	Citation   *citation.Engine
	Scholar    *scholarlike.Client
}

// handlerFunc is the internal per-tool handler signature: decode, apply
// defaults, validate, call the core, and return a JSON-serializable payload.
type handlerFunc func(ctx context.Context, d *Dispatcher, raw json.RawMessage) (any, error)

// Dispatcher validates and routes tool invocations per §4.9, wrapping
// every result as {content, structuredContent} and every failure as a
// ToolError. Core exceptions never escape Dispatch.
type Dispatcher struct {
	services Services
	validate *validator.Validate
	handlers map[string]handlerFunc
	log      zerolog.Logger
	metrics  *observability.Metrics
}

// New builds a Dispatcher bound to the given core services.
func New(services Services, log zerolog.Logger, metrics *observability.Metrics) *Dispatcher {
	d := &Dispatcher{
		services: services,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
		metrics:  metrics,
	}
	d.handlers = map[string]handlerFunc{
		"search_literature_graph":          handleSearchLiteratureGraph,
		"search_google_scholar_key_words":  handleSearchGoogleScholarKeyWords,
		"search_google_scholar_advanced":   handleSearchGoogleScholarAdvanced,
		"get_author_info":                  handleGetAuthorInfo,
		"ingest_paper_fulltext":            handleIngestPaperFulltext,
		"get_ingestion_status":             handleGetIngestionStatus,
		"extract_granular_paper_details":   handleExtractGranularPaperDetails,
		"suggest_contextual_citations":     handleSuggestContextualCitations,
		"build_reference_list":             handleBuildReferenceList,
		"validate_manuscript_citations":    handleValidateManuscriptCitations,
	}
	return d
}

// Names returns the fixed tool catalog, for transport registration.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	return names
}

// Dispatch validates arguments, invokes the named tool, and shapes the
// outcome. A panic inside a handler is recovered and surfaced as an
// internal ToolError rather than crashing the transport.
func (d *Dispatcher) Dispatch(ctx context.Context, toolName string, rawArgs json.RawMessage) (result *ToolResult, toolErr *ToolError) {
	started := time.Now()
	outcome := "success"
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("tool", toolName).Msg("tool handler panicked")
			toolErr = &ToolError{Kind: ErrorKindInternal, Message: "internal error"}
			result = nil
			outcome = "error"
		}
		if toolErr != nil {
			outcome = "error"
		}
		if d.metrics != nil {
			d.metrics.RecordToolInvocation(toolName, outcome, time.Since(started).Seconds())
		}
	}()

	handler, ok := d.handlers[toolName]
	if !ok {
		return nil, &ToolError{Kind: ErrorKindValidation, Message: fmt.Sprintf("unknown tool %q", toolName)}
	}

	payload, err := handler(ctx, d, rawArgs)
	if err != nil {
		if te, ok := err.(*ToolError); ok {
			return nil, te
		}
		return nil, classifyError(err)
	}

	text, err := json.Marshal(payload)
	if err != nil {
		return nil, &ToolError{Kind: ErrorKindInternal, Message: "internal error"}
	}
	return &ToolResult{Content: string(text), StructuredContent: payload}, nil
}

func decodeAndValidate(d *Dispatcher, raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &ToolError{Kind: ErrorKindValidation, Message: "invalid arguments: " + err.Error()}
	}
	if err := d.validate.Struct(dst); err != nil {
		return &ToolError{Kind: ErrorKindValidation, Message: "invalid arguments: " + err.Error()}
	}
	return nil
}

func handleSearchLiteratureGraph(ctx context.Context, d *Dispatcher, raw json.RawMessage) (any, error) {
	args := searchLiteratureGraphArgs{Limit: 10}
	if err := decodeAndValidate(d, raw, &args); err != nil {
		return nil, err
	}
	minYear, maxYear, err := normalizeYearRange(args.YearRange)
	if err != nil {
		return nil, err
	}

	sources := make([]domain.ProviderTag, 0, len(args.Sources))
	for _, s := range args.Sources {
		sources = append(sources, domain.ProviderTag(s))
	}

	result, err := d.services.Aggregator.SearchGraph(ctx, domain.SearchInput{
		Query:         args.Query,
		Limit:         args.Limit,
		MinYear:       minYear,
		MaxYear:       maxYear,
		FieldsOfStudy: args.FieldsOfStudy,
		Sources:       sources,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func handleSearchGoogleScholarKeyWords(ctx context.Context, d *Dispatcher, raw json.RawMessage) (any, error) {
	args := searchGoogleScholarKeyWordsArgs{NumResults: 5, Language: "en"}
	if err := decodeAndValidate(d, raw, &args); err != nil {
		return nil, err
	}
	result, err := d.services.Scholar.SearchKeywords(ctx, scholarlike.KeywordSearchOptions{
		Query: args.Query, NumResults: args.NumResults, Start: args.Start, Language: args.Language,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func handleSearchGoogleScholarAdvanced(ctx context.Context, d *Dispatcher, raw json.RawMessage) (any, error) {
	args := searchGoogleScholarAdvancedArgs{NumResults: 5, Language: "en"}
	if err := decodeAndValidate(d, raw, &args); err != nil {
		return nil, err
	}
	minYear, maxYear, err := normalizeYearRange(args.YearRange)
	if err != nil {
		return nil, err
	}
	result, err := d.services.Scholar.SearchAdvanced(ctx, scholarlike.AdvancedSearchOptions{
		Query:        args.Query,
		Author:       args.Author,
		MinYear:      minYear,
		MaxYear:      maxYear,
		ExactPhrase:  args.ExactPhrase,
		ExcludeWords: args.ExcludeWords,
		TitleOnly:    args.TitleOnly,
		NumResults:   args.NumResults,
		Start:        args.Start,
		Language:     args.Language,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func handleGetAuthorInfo(ctx context.Context, d *Dispatcher, raw json.RawMessage) (any, error) {
	args := getAuthorInfoArgs{MaxPublications: 5, Language: "en"}
	if err := decodeAndValidate(d, raw, &args); err != nil {
		return nil, err
	}
	info, err := d.services.Scholar.GetAuthorInfo(ctx, args.AuthorName, args.MaxPublications, args.Language)
	if err != nil {
		return nil, err
	}
	return info, nil
}

func handleIngestPaperFulltext(ctx context.Context, d *Dispatcher, raw json.RawMessage) (any, error) {
	args := ingestPaperFulltextArgs{ParseMode: "auto", OCREnabled: true}
	if err := decodeAndValidate(d, raw, &args); err != nil {
		return nil, err
	}
	if args.DOI == "" && args.PaperURL == "" && args.PDFURL == "" && args.LocalPDFPath == "" {
		return nil, &ToolError{Kind: ErrorKindValidation, Message: "at least one of doi, paper_url, pdf_url, local_pdf_path is required"}
	}

	job, err := d.services.Ingestion.Enqueue(domain.IngestionInput{
		DOI:          args.DOI,
		PaperURL:     args.PaperURL,
		PDFURL:       args.PDFURL,
		LocalPDFPath: args.LocalPDFPath,
		ParseMode:    args.ParseMode,
	})
	if err != nil {
		return nil, err
	}
	snap := job.Snapshot()
	return &snap, nil
}

func handleGetIngestionStatus(ctx context.Context, d *Dispatcher, raw json.RawMessage) (any, error) {
	var args getIngestionStatusArgs
	if err := decodeAndValidate(d, raw, &args); err != nil {
		return nil, err
	}
	job, err := d.services.Ingestion.GetJob(args.JobID)
	if err != nil {
		return nil, err
	}
	snap := job.Snapshot()

	out := map[string]any{"job": snap}
	if snap.Status == domain.JobSucceeded {
		if doc, derr := d.services.Ingestion.GetDocument(snap.DocumentID); derr == nil {
			out["document_summary"] = documentSummary(doc)
		}
	}
	return out, nil
}

func documentSummary(doc *domain.ParsedDocument) map[string]any {
	abstract := doc.Abstract
	if len(abstract) > 400 {
		abstract = abstract[:400]
	}
	return map[string]any{
		"documentId":     doc.DocumentID,
		"title":          doc.Title,
		"abstract":       abstract,
		"sectionCount":   len(doc.Sections),
		"referenceCount": len(doc.References),
		"parserName":     doc.ParserName,
		"confidence":     doc.Confidence,
	}
}

func handleExtractGranularPaperDetails(ctx context.Context, d *Dispatcher, raw json.RawMessage) (any, error) {
	trueVal := true
	args := extractGranularPaperDetailsArgs{IncludeReferences: &trueVal}
	if err := decodeAndValidate(d, raw, &args); err != nil {
		return nil, err
	}
	doc, err := d.services.Ingestion.GetDocument(args.DocumentID)
	if err != nil {
		return nil, err
	}
	details, err := extraction.Extract(doc, extraction.Options{
		Sections:          args.Sections,
		IncludeReferences: args.IncludeReferences == nil || *args.IncludeReferences,
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

func handleSuggestContextualCitations(ctx context.Context, d *Dispatcher, raw json.RawMessage) (any, error) {
	args := suggestContextualCitationsArgs{Style: "apa", K: 10, RecencyBias: 0.5}
	if err := decodeAndValidate(d, raw, &args); err != nil {
		return nil, err
	}
	result, err := d.services.Citation.Suggest(ctx, citation.SuggestInput{
		ManuscriptText: args.ManuscriptText,
		CursorContext:  args.CursorContext,
		K:              args.K,
		RecencyBias:    args.RecencyBias,
	})
	if err != nil {
		return nil, err
	}

	refs := make([]domain.ReferenceEntry, 0, len(result.Suggestions))
	for i, s := range result.Suggestions {
		authors := make([]string, 0, len(s.Work.Authors))
		for _, a := range s.Work.Authors {
			authors = append(authors, a.Name)
		}
		refs = append(refs, domain.ReferenceEntry{Index: i, Title: s.Work.Title, Year: s.Work.Year, DOI: s.Work.DOI, Authors: authors})
	}

	return map[string]any{
		"suggestions":    result.Suggestions,
		"queryUsed":      result.QueryUsed,
		"inlineCitation": citation.InlineCitation(domain.Style(args.Style), refs),
	}, nil
}

func handleBuildReferenceList(ctx context.Context, d *Dispatcher, raw json.RawMessage) (any, error) {
	args := buildReferenceListArgs{Style: "apa", Locale: "en-US"}
	if err := decodeAndValidate(d, raw, &args); err != nil {
		return nil, err
	}
	if args.ManuscriptText == "" && len(args.Works) == 0 {
		return nil, &ToolError{Kind: ErrorKindValidation, Message: "at least one of manuscript_text or works is required"}
	}

	works := make([]*domain.CanonicalWork, 0, len(args.Works))
	for _, w := range args.Works {
		authors := make([]domain.Author, 0, len(w.Authors))
		for _, a := range w.Authors {
			authors = append(authors, domain.Author{Name: a})
		}
		key := w.DOI
		if key == "" {
			key = strings.ToLower(w.Title)
		}
		works = append(works, &domain.CanonicalWork{Key: key, DOI: w.DOI, Title: w.Title, Year: w.Year, Authors: authors})
	}

	result, err := d.services.Citation.BuildList(ctx, citation.BuildListInput{
		Works:          works,
		Manuscript:     args.ManuscriptText,
		Styles:         []domain.Style{domain.Style(args.Style)},
		Locale:         args.Locale,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

var formattedYearPattern = regexp.MustCompile(`\b(1[5-9]\d{2}|20\d{2})\b`)

func parseFormattedReference(index int, in referenceEntryIn) domain.ReferenceEntry {
	entry := domain.ReferenceEntry{Index: index, RawText: in.Formatted}
	if m := formattedYearPattern.FindString(in.Formatted); m != "" {
		year := 0
		fmt.Sscanf(m, "%d", &year)
		entry.Year = &year
	}
	if idx := strings.IndexAny(in.Formatted, "(."); idx > 0 {
		entry.Authors = []string{strings.TrimSpace(in.Formatted[:idx])}
	}
	return entry
}

func handleValidateManuscriptCitations(ctx context.Context, d *Dispatcher, raw json.RawMessage) (any, error) {
	var args validateManuscriptCitationsArgs
	if err := decodeAndValidate(d, raw, &args); err != nil {
		return nil, err
	}

	references := make([]domain.ReferenceEntry, 0, len(args.References))
	for i, r := range args.References {
		references = append(references, parseFormattedReference(i, r))
	}

	diag := d.services.Citation.Validate(args.ManuscriptText, references, citation.ValidateOptions{
		ExpectedStyle: domain.Style(args.Style),
	})
	return diag, nil
}
