// Package ingestion implements the asynchronous ingestion engine: it turns
// a caller-supplied source description into a resolved, downloaded, and
// parsed full-text document, tracking progress through an in-memory job
// table.
package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scholarmcp/server/internal/aggregator"
	"github.com/scholarmcp/server/internal/domain"
	"github.com/scholarmcp/server/internal/observability"
	"github.com/scholarmcp/server/internal/parsing"
	"github.com/scholarmcp/server/internal/pdf"
)

// Config tunes the ingestion engine's worker pool and source policy.
type Config struct {
	AllowRemotePDFs bool
	AllowLocalPDFs  bool
	WorkerPoolSize  int
	QueueDepth      int
}

func (c *Config) applyDefaults() {
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = runtime.NumCPU()
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 128
	}
}

// Engine owns the in-memory job and document tables and the worker pool
// that advances jobs from queued to a terminal state.
type Engine struct {
	cfg        Config
	aggregator *aggregator.Aggregator
	chain      *parsing.Chain
	downloader *pdf.Downloader
	httpClient *http.Client
	log        zerolog.Logger
	metrics    *observability.Metrics

	jobsMu sync.RWMutex
	jobs   map[string]*domain.IngestionJob
	inputs map[string]domain.IngestionInput

	docsMu sync.RWMutex
	docs   map[string]*domain.ParsedDocument

	work chan string
	wg   sync.WaitGroup
}

// New builds an Engine and starts its worker pool. Callers should call
// Close when shutting down to let in-flight jobs drain.
func New(cfg Config, agg *aggregator.Aggregator, chain *parsing.Chain, downloader *pdf.Downloader, httpClient *http.Client, metrics *observability.Metrics, log zerolog.Logger) *Engine {
	cfg.applyDefaults()

	e := &Engine{
		cfg:        cfg,
		aggregator: agg,
		chain:      chain,
		downloader: downloader,
		httpClient: httpClient,
		log:        log,
		metrics:    metrics,
		jobs:       make(map[string]*domain.IngestionJob),
		inputs:     make(map[string]domain.IngestionInput),
		docs:       make(map[string]*domain.ParsedDocument),
		work:       make(chan string, cfg.QueueDepth),
	}

	for i := 0; i < cfg.WorkerPoolSize; i++ {
		e.wg.Add(1)
		go e.workerLoop()
	}

	return e
}

// Close stops accepting new work and waits for in-flight jobs to finish.
func (e *Engine) Close() {
	close(e.work)
	e.wg.Wait()
}

// Enqueue computes a deterministic documentId, inserts a queued job, and
// schedules it for background execution. It returns immediately; when the
// work queue already holds QueueDepth jobs it records nothing and returns an
// IngestionError.
func (e *Engine) Enqueue(input domain.IngestionInput) (*domain.IngestionJob, error) {
	if strings.TrimSpace(input.DOI) == "" && strings.TrimSpace(input.PaperURL) == "" &&
		strings.TrimSpace(input.PDFURL) == "" && strings.TrimSpace(input.LocalPDFPath) == "" {
		return nil, domain.NewValidationError("source", "at least one of doi, paper_url, pdf_url, local_pdf_path is required")
	}
	if input.ParseMode == "" {
		input.ParseMode = string(parsing.ModeAuto)
	}

	job := &domain.IngestionJob{
		ID:          newJobID(),
		Status:      domain.JobQueued,
		SourceInput: sourceLabel(input),
		DocumentID:  documentID(input),
		SubmittedAt: time.Now(),
	}

	e.jobsMu.Lock()
	e.jobs[job.ID] = job
	e.inputs[job.ID] = input
	e.jobsMu.Unlock()

	select {
	case e.work <- job.ID:
	default:
		e.jobsMu.Lock()
		delete(e.jobs, job.ID)
		delete(e.inputs, job.ID)
		e.jobsMu.Unlock()
		return nil, domain.NewIngestionError("ingestion queue is full")
	}

	if e.metrics != nil {
		e.metrics.RecordIngestionEnqueued()
	}

	snapshot := job.Snapshot()
	return &snapshot, nil
}

// GetJob returns a snapshot of the job with id, or a NotFoundError.
func (e *Engine) GetJob(id string) (*domain.IngestionJob, error) {
	e.jobsMu.RLock()
	job, ok := e.jobs[id]
	e.jobsMu.RUnlock()
	if !ok {
		return nil, domain.NewNotFoundError("ingestion job", id)
	}
	snapshot := job.Snapshot()
	return &snapshot, nil
}

// GetDocument returns the parsed document with id, or a NotFoundError.
func (e *Engine) GetDocument(id string) (*domain.ParsedDocument, error) {
	e.docsMu.RLock()
	doc, ok := e.docs[id]
	e.docsMu.RUnlock()
	if !ok {
		return nil, domain.NewNotFoundError("document", id)
	}
	clone := *doc
	return &clone, nil
}

func sourceLabel(input domain.IngestionInput) string {
	switch {
	case input.DOI != "":
		return input.DOI
	case input.PDFURL != "":
		return input.PDFURL
	case input.PaperURL != "":
		return input.PaperURL
	default:
		return input.LocalPDFPath
	}
}

func (e *Engine) workerLoop() {
	defer e.wg.Done()
	for jobID := range e.work {
		e.runJob(jobID)
	}
}

func (e *Engine) runJob(jobID string) {
	e.jobsMu.Lock()
	job, ok := e.jobs[jobID]
	input, inputOK := e.inputs[jobID]
	e.jobsMu.Unlock()
	if !ok || !inputOK {
		return
	}

	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	e.transitionRunning(job, cancel)

	logger := observability.WithJobContext(e.log, job.ID, job.DocumentID)

	resolved, err := e.resolveSource(ctx, input)
	if err != nil {
		logger.Warn().Err(err).Msg("ingestion source resolution failed")
		e.transitionFailed(job, err.Error())
		e.recordOutcome(false, time.Since(started))
		return
	}

	pdfPath, pdfBytes, err := e.acquireFile(ctx, resolved)
	if err != nil {
		logger.Warn().Err(err).Msg("ingestion pdf acquisition failed")
		e.transitionFailed(job, err.Error())
		e.recordOutcome(false, time.Since(started))
		return
	}
	if pdfPath != resolved.localPath {
		defer func() { _ = os.Remove(pdfPath) }()
	}

	mode := parsing.Mode(input.ParseMode)
	doc, err := e.chain.Parse(ctx, mode, pdfPath, pdfBytes)
	if err != nil {
		logger.Warn().Err(err).Msg("ingestion parsing failed")
		e.transitionFailed(job, err.Error())
		e.recordOutcome(false, time.Since(started))
		return
	}
	doc.DocumentID = job.DocumentID

	e.docsMu.Lock()
	e.docs[job.DocumentID] = doc
	e.docsMu.Unlock()

	e.transitionSucceeded(job, resolved.license, doc, provenanceEntry(resolved, doc))
	e.recordOutcome(true, time.Since(started))
}

// provenanceEntry records where the successfully parsed document's bytes
// came from: the resolved PDF URL when the source was remote, or a local
// marker when it was a caller-supplied path.
func provenanceEntry(resolved *resolvedSource, doc *domain.ParsedDocument) domain.ProvenanceEntry {
	sourceURL := resolved.pdfURL
	if sourceURL == "" {
		sourceURL = resolved.localPath
	}
	return domain.ProvenanceEntry{
		SourceURL:  sourceURL,
		FetchedAt:  time.Now(),
		Confidence: doc.Confidence,
	}
}

func (e *Engine) recordOutcome(success bool, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	if success {
		e.metrics.RecordIngestionSucceeded(elapsed.Seconds())
	} else {
		e.metrics.RecordIngestionFailed(elapsed.Seconds())
	}
}

func (e *Engine) transitionRunning(job *domain.IngestionJob, cancel context.CancelFunc) {
	e.jobsMu.Lock()
	defer e.jobsMu.Unlock()
	now := time.Now()
	job.Status = domain.JobRunning
	job.StartedAt = &now
	job.Cancel = cancel
}

func (e *Engine) transitionFailed(job *domain.IngestionJob, message string) {
	e.jobsMu.Lock()
	defer e.jobsMu.Unlock()
	now := time.Now()
	job.Status = domain.JobFailed
	job.Error = message
	job.FinishedAt = &now
}

func (e *Engine) transitionSucceeded(job *domain.IngestionJob, license domain.LicenseState, doc *domain.ParsedDocument, provenance domain.ProvenanceEntry) {
	e.jobsMu.Lock()
	defer e.jobsMu.Unlock()
	now := time.Now()
	job.Status = domain.JobSucceeded
	job.License = license
	job.ParserName = doc.ParserName
	job.ParserConfidence = doc.Confidence
	job.Provenance = append(job.Provenance, provenance)
	job.FinishedAt = &now
}

type resolvedSource struct {
	localPath string
	pdfURL    string
	license   domain.LicenseState
}

func (e *Engine) resolveSource(ctx context.Context, input domain.IngestionInput) (*resolvedSource, error) {
	if strings.TrimSpace(input.LocalPDFPath) != "" {
		if !e.cfg.AllowLocalPDFs {
			return nil, domain.NewIngestionError("local PDF sources are not permitted")
		}
		abs, err := filepath.Abs(input.LocalPDFPath)
		if err != nil {
			return nil, domain.WrapIngestionError("invalid local pdf path", err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, domain.WrapIngestionError("local pdf path is not readable", err)
		}
		return &resolvedSource{
			localPath: abs,
			license:   domain.LicenseState{State: domain.LicenseUserProvided, PDFURL: abs},
		}, nil
	}

	if !e.cfg.AllowRemotePDFs {
		return nil, domain.NewIngestionError("remote PDF sources are not permitted")
	}

	pdfURL := strings.TrimSpace(input.PDFURL)

	var canonical *domain.CanonicalWork
	if pdfURL == "" && strings.TrimSpace(input.DOI) != "" && e.aggregator != nil {
		var err error
		canonical, err = e.aggregator.ResolveByDoi(ctx, input.DOI)
		if err != nil {
			return nil, domain.WrapIngestionError("doi resolution failed", err)
		}
	}

	if pdfURL == "" && canonical != nil && canonical.OpenAccess.PDFURL != "" {
		pdfURL = canonical.OpenAccess.PDFURL
	}

	landingURL := strings.TrimSpace(input.PaperURL)
	if landingURL == "" && canonical != nil {
		landingURL = canonical.URL
	}

	if pdfURL == "" && landingURL != "" && strings.HasSuffix(strings.ToLower(landingURL), ".pdf") {
		pdfURL = landingURL
	}

	if pdfURL == "" && landingURL != "" {
		discovered, err := e.discoverFromLandingPage(ctx, landingURL)
		if err == nil && discovered != "" {
			pdfURL = discovered
		}
	}

	if pdfURL == "" {
		return nil, domain.NewIngestionError("Unable to resolve a downloadable PDF URL from input.")
	}

	return &resolvedSource{
		pdfURL:  pdfURL,
		license: domain.LicenseState{State: domain.LicenseOpenAccess, PDFURL: pdfURL},
	}, nil
}

func (e *Engine) discoverFromLandingPage(ctx context.Context, landingURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, landingURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ScholarMCP/1.0)")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	finalURL := resp.Request.URL.String()

	buf := make([]byte, 0)
	chunk := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if readErr != nil {
			break
		}
		if len(buf) > 2*1024*1024 {
			break
		}
	}

	pdfURL, ok := discoverPDFURL(finalURL, buf)
	if !ok {
		return "", fmt.Errorf("no pdf link discovered on landing page")
	}
	return pdfURL, nil
}

func (e *Engine) acquireFile(ctx context.Context, resolved *resolvedSource) (string, []byte, error) {
	if resolved.localPath != "" {
		content, err := os.ReadFile(resolved.localPath)
		if err != nil {
			return "", nil, domain.WrapIngestionError("unable to read local pdf", err)
		}
		return resolved.localPath, content, nil
	}

	result, err := e.downloader.Download(ctx, resolved.pdfURL)
	if err != nil {
		return "", nil, domain.WrapIngestionError("unable to download pdf", err)
	}

	tmp, err := os.CreateTemp("", "scholarmcp-ingest-*.pdf")
	if err != nil {
		return "", nil, domain.WrapIngestionError("unable to create temp file", err)
	}
	defer func() { _ = tmp.Close() }()
	if _, err := tmp.Write(result.Content); err != nil {
		_ = os.Remove(tmp.Name())
		return "", nil, domain.WrapIngestionError("unable to write temp file", err)
	}

	return tmp.Name(), result.Content, nil
}
