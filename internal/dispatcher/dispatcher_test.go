package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarmcp/server/internal/aggregator"
	"github.com/scholarmcp/server/internal/citation"
	"github.com/scholarmcp/server/internal/domain"
	"github.com/scholarmcp/server/internal/httpfetch"
	"github.com/scholarmcp/server/internal/ingestion"
	"github.com/scholarmcp/server/internal/parsing"
	"github.com/scholarmcp/server/internal/pdf"
	"github.com/scholarmcp/server/internal/providers"
	"github.com/scholarmcp/server/internal/providers/scholarlike"
)

type stubAdapter struct {
	tag   domain.ProviderTag
	works []domain.ProviderWork
}

func (s *stubAdapter) Tag() domain.ProviderTag { return s.tag }
func (s *stubAdapter) Name() string            { return string(s.tag) }
func (s *stubAdapter) SearchWorks(ctx context.Context, query string, limit int) ([]domain.ProviderWork, error) {
	return s.works, nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="gs_ri">
		  <h3 class="gs_rt"><a href="https://example.org/p.pdf">A Paper</a></h3>
		  <div class="gs_a">J Author - Venue, 2021</div>
		  <div class="gs_rs">snippet</div>
		</div></body></html>`))
	}))

	year := 2021
	adapter := &stubAdapter{tag: domain.ProviderA, works: []domain.ProviderWork{
		{Title: "Graph Neural Networks", Abstract: "graphs networks", Year: &year, CitationTotal: 10},
	}}
	agg := aggregator.New(aggregator.Config{}, []providers.Adapter{adapter}, zerolog.Nop())
	citationEngine := citation.New(agg, citation.NewPlainAdapter())

	fetcher := httpfetch.New(httpfetch.Config{}, zerolog.Nop())
	scholar := scholarlike.New(scholarlike.Config{BaseURL: server.URL}, fetcher, zerolog.Nop())

	ingestionEngine := ingestion.New(ingestion.Config{WorkerPoolSize: 1}, agg,
		parsing.NewChain(nil, parsing.NewSimpleParser(), zerolog.Nop()),
		pdf.NewDownloader(pdf.Config{}), http.DefaultClient, nil, zerolog.Nop())
	t.Cleanup(ingestionEngine.Close)

	d := New(Services{Aggregator: agg, Citation: citationEngine, Scholar: scholar, Ingestion: ingestionEngine}, zerolog.Nop(), nil)
	return d, server
}

func TestDispatchUnknownToolReturnsValidationError(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()

	_, toolErr := d.Dispatch(context.Background(), "does_not_exist", nil)
	require.NotNil(t, toolErr)
	assert.Equal(t, ErrorKindValidation, toolErr.Kind)
}

func TestDispatchSearchLiteratureGraphMissingQueryFails(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()

	_, toolErr := d.Dispatch(context.Background(), "search_literature_graph", json.RawMessage(`{}`))
	require.NotNil(t, toolErr)
	assert.Equal(t, ErrorKindValidation, toolErr.Kind)
}

func TestDispatchSearchLiteratureGraphSucceeds(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()

	result, toolErr := d.Dispatch(context.Background(), "search_literature_graph", json.RawMessage(`{"query":"graph neural networks"}`))
	require.Nil(t, toolErr)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.Content)
}

func TestDispatchSearchLiteratureGraphNormalizesYearRangeArray(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()

	result, toolErr := d.Dispatch(context.Background(), "search_literature_graph", json.RawMessage(`{"query":"graph","year_range":[2019,2023]}`))
	require.Nil(t, toolErr)
	require.NotNil(t, result)
}

func TestDispatchSearchLiteratureGraphNormalizesYearRangeObject(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()

	result, toolErr := d.Dispatch(context.Background(), "search_literature_graph", json.RawMessage(`{"query":"graph","year_range":{"start":2019,"end":2023}}`))
	require.Nil(t, toolErr)
	require.NotNil(t, result)
}

func TestDispatchSearchGoogleScholarKeyWords(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()

	result, toolErr := d.Dispatch(context.Background(), "search_google_scholar_key_words", json.RawMessage(`{"query":"graphs"}`))
	require.Nil(t, toolErr)
	require.NotNil(t, result)
}

func TestDispatchIngestPaperFulltextRequiresSource(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()

	_, toolErr := d.Dispatch(context.Background(), "ingest_paper_fulltext", json.RawMessage(`{}`))
	require.NotNil(t, toolErr)
	assert.Equal(t, ErrorKindValidation, toolErr.Kind)
}

func TestDispatchGetIngestionStatusNotFound(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()

	_, toolErr := d.Dispatch(context.Background(), "get_ingestion_status", json.RawMessage(`{"job_id":"job_missing"}`))
	require.NotNil(t, toolErr)
	assert.Equal(t, ErrorKindNotFound, toolErr.Kind)
}

func TestDispatchValidateManuscriptCitationsDefaultsWork(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()

	result, toolErr := d.Dispatch(context.Background(), "validate_manuscript_citations", json.RawMessage(`{
		"manuscript_text": "As shown in [1], this holds.",
		"references": [{"formatted": "Doe, J. (2020). A Paper."}]
	}`))
	require.Nil(t, toolErr)
	require.NotNil(t, result)
}

func TestDispatchValidateManuscriptCitationsRequiresReferences(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()

	_, toolErr := d.Dispatch(context.Background(), "validate_manuscript_citations", json.RawMessage(`{"manuscript_text":"text"}`))
	require.NotNil(t, toolErr)
	assert.Equal(t, ErrorKindValidation, toolErr.Kind)
}

func TestDispatchBuildReferenceListRequiresManuscriptOrWorks(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()

	_, toolErr := d.Dispatch(context.Background(), "build_reference_list", json.RawMessage(`{}`))
	require.NotNil(t, toolErr)
	assert.Equal(t, ErrorKindValidation, toolErr.Kind)
}

func TestDispatchBuildReferenceListWithExplicitWorks(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()

	result, toolErr := d.Dispatch(context.Background(), "build_reference_list", json.RawMessage(`{
		"works": [{"title": "A Paper", "authors": ["Jane Doe"], "year": 2020}]
	}`))
	require.Nil(t, toolErr)
	require.NotNil(t, result)
}

func TestDispatchSuggestContextualCitationsSucceeds(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()

	result, toolErr := d.Dispatch(context.Background(), "suggest_contextual_citations", json.RawMessage(`{
		"manuscript_text": "graph neural networks for molecule design"
	}`))
	require.Nil(t, toolErr)
	require.NotNil(t, result)
}

func TestDispatchRecoversFromNilServicePanic(t *testing.T) {
	d, server := newTestDispatcher(t)
	defer server.Close()
	d.services.Aggregator = nil

	_, toolErr := d.Dispatch(context.Background(), "search_literature_graph", json.RawMessage(`{"query":"x"}`))
	require.NotNil(t, toolErr)
	assert.Equal(t, ErrorKindInternal, toolErr.Kind)
}
