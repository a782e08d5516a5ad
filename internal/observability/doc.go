// Package observability provides logging, metrics, and context propagation
// support for the research engine.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for searches, ingestion, sessions, and tool calls
//   - Context helpers for propagating request and session identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("request_id", reqID).Msg("tool invocation started")
//
// # Metrics
//
// Initialize metrics once at startup:
//
//	metrics := observability.NewMetrics("scholarmcp")
//	metrics.RecordSearchStarted("A")
//	metrics.RecordToolInvocation("search_literature_graph", "success", 0.12)
//
// # Context Helpers
//
// Store and retrieve request-scoped identifiers:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithSessionID(ctx, sessionID)
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
