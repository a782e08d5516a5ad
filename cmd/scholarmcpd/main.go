// Package main provides the scholarmcpd entry point: a cobra root command
// that loads configuration, wires the aggregator/ingestion/citation cores
// and the federated provider adapters, and serves the configured transports.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/scholarmcp/server/internal/aggregator"
	"github.com/scholarmcp/server/internal/citation"
	"github.com/scholarmcp/server/internal/config"
	"github.com/scholarmcp/server/internal/dispatcher"
	"github.com/scholarmcp/server/internal/httpfetch"
	"github.com/scholarmcp/server/internal/ingestion"
	"github.com/scholarmcp/server/internal/observability"
	"github.com/scholarmcp/server/internal/parsing"
	"github.com/scholarmcp/server/internal/pdf"
	"github.com/scholarmcp/server/internal/providers"
	"github.com/scholarmcp/server/internal/providers/crossreflike"
	"github.com/scholarmcp/server/internal/providers/openalexlike"
	"github.com/scholarmcp/server/internal/providers/s2like"
	"github.com/scholarmcp/server/internal/providers/scholarlike"
	"github.com/scholarmcp/server/internal/session"
	"github.com/scholarmcp/server/internal/transport/httpmcp"
	"github.com/scholarmcp/server/internal/transport/line"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "scholarmcpd",
	Short:   "Research-automation MCP server",
	Long:    "scholarmcpd federates literature search across provider catalogs and exposes citation, ingestion, and manuscript tools over the MCP line and HTTP transports.",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "scholarmcpd").Logger()
	logger.Info().Str("version", Version).Msg("scholarmcpd starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("scholarmcp")

	adapters := buildAdapters(cfg, logger)
	agg := aggregator.New(aggregator.Config{
		ProviderMultiplier:  cfg.Graph.ProviderResultMultiplier,
		FuzzyTitleThreshold: cfg.Graph.FuzzyTitleThreshold,
		CacheTTL:            cfg.Graph.CacheTTL,
		CacheMaxEntries:     cfg.Graph.MaxCacheEntries,
	}, adapters, logger)

	citationEngine := citation.New(agg, citation.NewPlainAdapter())

	var structuredParser *parsing.StructuredParser
	if cfg.Ingestion.StructuredParserURL != "" {
		structuredParser = parsing.NewStructuredParser(cfg.Ingestion.StructuredParserURL, &http.Client{Timeout: cfg.Ingestion.DownloadTimeout})
	}
	var chainStructured parsing.Parser
	if structuredParser != nil {
		chainStructured = structuredParser
	}
	chain := parsing.NewChain(chainStructured, parsing.NewSimpleParser(), logger)

	downloader := pdf.NewDownloader(pdf.Config{
		Timeout: cfg.Ingestion.DownloadTimeout,
		MaxSize: cfg.Ingestion.MaxPdfBytes,
	})

	ingestionEngine := ingestion.New(ingestion.Config{
		AllowRemotePDFs: cfg.Ingestion.AllowRemotePdfs,
		AllowLocalPDFs:  cfg.Ingestion.AllowLocalPdfs,
		WorkerPoolSize:  cfg.Ingestion.WorkerPoolSize,
		QueueDepth:      cfg.Ingestion.QueueDepth,
	}, agg, chain, downloader, &http.Client{Timeout: cfg.Ingestion.DownloadTimeout}, metrics, logger)
	defer ingestionEngine.Close()

	scholarClient, _ := findScholarAdapter(adapters)

	d := dispatcher.New(dispatcher.Services{
		Aggregator: agg,
		Ingestion:  ingestionEngine,
		Citation:   citationEngine,
		Scholar:    scholarClient,
	}, logger, metrics)

	sessions := session.New(session.Config{
		Mode:        session.Mode(cfg.Session.Mode),
		TTL:         cfg.Session.TTL,
		MaxSessions: cfg.Session.MaxSessions,
	}, metrics, logger)
	defer sessions.Shutdown()

	errCh := make(chan error, 3)

	var lineSrv *line.Server
	if cfg.Transport.Mode == config.TransportLine || cfg.Transport.Mode == config.TransportBoth {
		lineSrv = line.New(d, logger)
		go func() {
			logger.Info().Msg("line transport starting on stdin/stdout")
			if err := lineSrv.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("line transport error: %w", err)
			}
		}()
	}

	var httpSrv *httpmcp.Server
	if cfg.Transport.Mode == config.TransportHTTP || cfg.Transport.Mode == config.TransportBoth {
		metricsPath := ""
		if cfg.Metrics.Enabled {
			metricsPath = cfg.Metrics.Path
		}
		httpSrv = httpmcp.New(httpmcp.Config{
			Address:         cfg.Transport.Address(),
			EndpointPath:    cfg.Transport.EndpointPath,
			HealthPath:      cfg.Transport.HealthPath,
			MetricsPath:     metricsPath,
			AllowedOrigins:  cfg.Transport.AllowedOrigins,
			AllowedHosts:    cfg.Transport.AllowedHosts,
			APIKey:          cfg.Transport.APIKey,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		}, d, sessions, logger)
		go func() {
			logger.Info().Str("address", cfg.Transport.Address()).Msg("http transport starting")
			if err := httpSrv.Start(); err != nil {
				errCh <- fmt.Errorf("http transport error: %w", err)
			}
		}()
	}

	logger.Info().Msg("scholarmcpd is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down scholarmcpd")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http transport shutdown error")
		}
	}

	logger.Info().Msg("scholarmcpd shutdown complete")
	return nil
}

// buildAdapters constructs the four federated provider adapters, each
// pointed at its configured catalog base URL and each owning its own
// Fetcher so request pacing and rate limiting are scoped per host.
func buildAdapters(cfg *config.Config, logger zerolog.Logger) []providers.Adapter {
	newFetcher := func() *httpfetch.Fetcher {
		return httpfetch.New(httpfetch.Config{
			Timeout:    cfg.Fetcher.RequestTimeout,
			Retries:    cfg.Fetcher.RetryAttempts,
			RetryDelay: cfg.Fetcher.RetryDelay,
			MinSpacing: cfg.Fetcher.RequestDelay,
			UserAgent:  "ScholarMCP/1.0",
			RateLimit:  cfg.Fetcher.SustainedRate,
			BurstSize:  cfg.Fetcher.Burst,
		}, logger)
	}
	return []providers.Adapter{
		openalexlike.New(openalexlike.Config{BaseURL: cfg.Providers.A.BaseURL}, newFetcher(), logger),
		s2like.New(s2like.Config{BaseURL: cfg.Providers.B.BaseURL}, newFetcher(), logger),
		crossreflike.New(crossreflike.Config{BaseURL: cfg.Providers.C.BaseURL}, newFetcher(), logger),
		scholarlike.New(scholarlike.Config{BaseURL: cfg.Providers.D.BaseURL}, newFetcher(), logger),
	}
}

// findScholarAdapter picks the Provider D adapter out of the federated set
// for the dispatcher's Scholar-specific tools (keyword/advanced search,
// author info), which fall outside the aggregator's merged-works contract.
func findScholarAdapter(adapters []providers.Adapter) (*scholarlike.Client, bool) {
	for _, a := range adapters {
		if c, ok := a.(*scholarlike.Client); ok {
			return c, true
		}
	}
	return nil, false
}
