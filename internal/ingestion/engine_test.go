package ingestion

import (
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarmcp/server/internal/domain"
	"github.com/scholarmcp/server/internal/parsing"
	"github.com/scholarmcp/server/internal/pdf"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	chain := parsing.NewChain(nil, parsing.NewSimpleParser(), zerolog.Nop())
	downloader := pdf.NewDownloader(pdf.Config{AllowPrivateNetworks: true})
	e := New(Config{AllowRemotePDFs: true, AllowLocalPDFs: true, WorkerPoolSize: 1}, nil, chain, downloader, http.DefaultClient, nil, zerolog.Nop())
	t.Cleanup(e.Close)
	return e
}

func TestEnqueueRequiresASource(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Enqueue(domain.IngestionInput{})
	require.Error(t, err)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestEnqueueLocalNonPDFFileFailsToParse(t *testing.T) {
	e := newTestEngine(t)

	tmp, err := os.CreateTemp(t.TempDir(), "doc-*.pdf")
	require.NoError(t, err)
	_, err = tmp.WriteString("Great Paper Title\nIntroduction\nThis paper studies something interesting in depth.\n")
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	job, err := e.Enqueue(domain.IngestionInput{LocalPDFPath: tmp.Name()})
	require.NoError(t, err)
	assert.Equal(t, domain.JobQueued, job.Status)

	finalJob := waitForTerminal(t, e, job.ID)
	assert.Equal(t, domain.JobFailed, finalJob.Status, "ledongthuc/pdf cannot parse a plain-text stub; expected a parse failure not a crash")
}

func TestEnqueueLocalPDFDisallowedFails(t *testing.T) {
	e := newTestEngine(t)
	e.cfg.AllowLocalPDFs = false

	job, err := e.Enqueue(domain.IngestionInput{LocalPDFPath: "/tmp/whatever.pdf"})
	require.NoError(t, err)

	finalJob := waitForTerminal(t, e, job.ID)
	assert.Equal(t, domain.JobFailed, finalJob.Status)
	assert.Contains(t, finalJob.Error, "not permitted")
}

func TestEnqueueRemoteDisallowedFails(t *testing.T) {
	e := newTestEngine(t)
	e.cfg.AllowRemotePDFs = false

	job, err := e.Enqueue(domain.IngestionInput{PDFURL: "https://example.com/doc.pdf"})
	require.NoError(t, err)

	finalJob := waitForTerminal(t, e, job.ID)
	assert.Equal(t, domain.JobFailed, finalJob.Status)
	assert.Contains(t, finalJob.Error, "not permitted")
}

func TestGetJobNotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.GetJob("missing")
	require.Error(t, err)
	var nfe *domain.NotFoundError
	assert.ErrorAs(t, err, &nfe)
}

func TestGetDocumentNotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.GetDocument("missing")
	require.Error(t, err)
}

func TestDocumentIDIsDeterministic(t *testing.T) {
	a := documentID(domain.IngestionInput{DOI: "10.1234/ABC"})
	b := documentID(domain.IngestionInput{DOI: "10.1234/abc"})
	assert.Equal(t, a, b)

	c := documentID(domain.IngestionInput{DOI: "10.9999/xyz"})
	assert.NotEqual(t, a, c)
}

func waitForTerminal(t *testing.T, e *Engine, jobID string) *domain.IngestionJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := e.GetJob(jobID)
		require.NoError(t, err)
		if job.Status == domain.JobSucceeded || job.Status == domain.JobFailed {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state in time", jobID)
	return nil
}
