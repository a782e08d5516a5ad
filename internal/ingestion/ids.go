package ingestion

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/scholarmcp/server/internal/domain"
)

// documentID computes a deterministic identifier for an ingestion input:
// the same source seeds always hash to the same documentId, independent of
// which job submitted them.
func documentID(input domain.IngestionInput) string {
	seed := canonicalSeed(input)
	sum := xxhash.Sum64String(seed)
	return fmt.Sprintf("doc_%016x", sum)
}

// canonicalSeed builds a stable string from whichever source fields are
// present, in a fixed priority order, so equivalent inputs normalize to the
// same seed.
func canonicalSeed(input domain.IngestionInput) string {
	var parts []string
	if doi := strings.ToLower(strings.TrimSpace(input.DOI)); doi != "" {
		parts = append(parts, "doi:"+doi)
	}
	if pdf := strings.TrimSpace(input.PDFURL); pdf != "" {
		parts = append(parts, "pdfUrl:"+pdf)
	}
	if paper := strings.TrimSpace(input.PaperURL); paper != "" {
		parts = append(parts, "paperUrl:"+paper)
	}
	if local := strings.TrimSpace(input.LocalPDFPath); local != "" {
		parts = append(parts, "localPath:"+local)
	}
	return strings.Join(parts, "|")
}

// newJobID generates a unique identifier for one enqueue call, distinct
// from documentId so concurrent enqueues of the same source create distinct
// jobs.
func newJobID() string {
	return "job_" + uuid.NewString()
}
