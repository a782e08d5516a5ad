package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRecordHelpers(t *testing.T) {
	m := NewMetrics("scholarmcp_test_metrics")
	require.NotNil(t, m)

	m.RecordSearchStarted("A")
	m.RecordSearchFailed("D")
	m.RecordSearchCompleted(0.5)
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordIngestionEnqueued()
	m.RecordIngestionSucceeded(1.2)
	m.RecordIngestionFailed(0.3)
	m.RecordParserAttempt("structured", "success")
	m.RecordToolInvocation("search_literature_graph", "success", 0.1)
	m.RecordSessionCreated()
	m.RecordSessionRemoved("ttl")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesStarted.WithLabelValues("A")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesFailed.WithLabelValues("D")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestionJobsEnqueued))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.SessionsActive))
}
