// Package config provides configuration management for the research engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Transport names accepted by Config.Transport.
const (
	TransportLine = "line"
	TransportHTTP = "http"
	TransportBoth = "both"
)

// Session modes accepted by Config.Session.Mode.
const (
	SessionModeStateless = "stateless"
	SessionModeStateful  = "stateful"
)

// Config holds all configuration for the research engine.
type Config struct {
	// Transport selects which transport(s) the server exposes.
	Transport TransportConfig `mapstructure:"transport"`
	// Session configures the HTTP session manager (C8).
	Session SessionConfig `mapstructure:"session"`
	// Providers configures the four provider adapters (three JSON catalogs and
	// the scraper) and their API keys.
	Providers ProvidersConfig `mapstructure:"providers"`
	// Fetcher configures the pacing HTTP fetchers (C1); each adapter gets its
	// own fetcher built from these settings.
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	// Ingestion configures the asynchronous ingestion engine (C4).
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	// Graph configures the literature aggregator (C3).
	Graph GraphConfig `mapstructure:"graph"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// TransportConfig configures the line and HTTP transports.
type TransportConfig struct {
	// Mode is one of "line", "http", "both".
	Mode string `mapstructure:"mode"`
	// Host is the HTTP bind address.
	Host string `mapstructure:"host"`
	// Port is the HTTP bind port.
	Port int `mapstructure:"port"`
	// EndpointPath is the single MCP endpoint path.
	EndpointPath string `mapstructure:"endpoint_path"`
	// HealthPath is the health-check endpoint path.
	HealthPath string `mapstructure:"health_path"`
	// AllowedOrigins is the CORS allow-list. Empty means loopback-only defaults
	// apply when the bind host is a loopback address.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// AllowedHosts is the Host-header allow-list, same loopback-default rule.
	AllowedHosts []string `mapstructure:"allowed_hosts"`
	// APIKey, when set, is compared against the Authorization: Bearer header.
	APIKey string `mapstructure:"-"`
}

// Address returns the HTTP bind address.
func (c *TransportConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionConfig configures the HTTP session manager.
type SessionConfig struct {
	// Mode is "stateless" or "stateful".
	Mode string `mapstructure:"mode"`
	// TTL closes a stateful session after this long without a request.
	TTL time.Duration `mapstructure:"ttl"`
	// MaxSessions bounds the number of concurrently open stateful sessions.
	MaxSessions int `mapstructure:"max_sessions"`
}

// ProvidersConfig configures the four federated literature catalogs.
type ProvidersConfig struct {
	A CatalogConfig `mapstructure:"a"`
	B CatalogConfig `mapstructure:"b"`
	C CatalogConfig `mapstructure:"c"`
	D CatalogConfig `mapstructure:"d"`
}

// CatalogConfig configures one provider adapter's upstream endpoint.
type CatalogConfig struct {
	// BaseURL is the catalog's API base URL (or, for the scraper, the search URL template).
	BaseURL string `mapstructure:"base_url"`
	// APIKey, when set, is attached per-adapter (env var only, never from a config file).
	APIKey string `mapstructure:"-"`
}

// FetcherConfig configures the pacing HTTP fetcher built for each adapter.
type FetcherConfig struct {
	// RequestTimeout bounds a single outbound HTTP attempt.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts int `mapstructure:"retry_attempts"`
	// RetryDelay is the fixed delay between retries (absent a Retry-After header).
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// RequestDelay is the minimum spacing between consecutive requests per adapter.
	RequestDelay time.Duration `mapstructure:"request_delay"`
	// SustainedRate is the token-bucket requests-per-second rate enforced
	// alongside RequestDelay's spacing gate.
	SustainedRate float64 `mapstructure:"sustained_rate"`
	// Burst is the token bucket's maximum burst size.
	Burst int `mapstructure:"burst"`
}

// IngestionConfig configures the asynchronous ingestion engine.
type IngestionConfig struct {
	// AllowRemotePdfs permits resolving and downloading PDFs from remote URLs.
	AllowRemotePdfs bool `mapstructure:"allow_remote_pdfs"`
	// AllowLocalPdfs permits resolving local filesystem paths as sources.
	AllowLocalPdfs bool `mapstructure:"allow_local_pdfs"`
	// StructuredParserURL is the remote full-text-document service endpoint.
	// Empty disables the structured parser stage.
	StructuredParserURL string `mapstructure:"structured_parser_url"`
	// WorkerPoolSize bounds the number of concurrent ingestion workers.
	WorkerPoolSize int `mapstructure:"worker_pool_size"`
	// QueueDepth bounds the number of jobs buffered ahead of the worker pool.
	QueueDepth int `mapstructure:"queue_depth"`
	// DownloadTimeout bounds a PDF acquisition request.
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	// MaxPdfBytes bounds the size of a downloaded PDF.
	MaxPdfBytes int64 `mapstructure:"max_pdf_bytes"`
}

// GraphConfig configures the literature aggregator's cache and merge tuning.
type GraphConfig struct {
	// CacheTTL is the search-result cache entry lifetime. <= 0 disables caching.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// MaxCacheEntries bounds the cache; oldest entries (by insertion) are evicted first.
	MaxCacheEntries int `mapstructure:"max_cache_entries"`
	// ProviderResultMultiplier scales the per-provider fan-out limit above the caller's limit.
	ProviderResultMultiplier float64 `mapstructure:"provider_result_multiplier"`
	// FuzzyTitleThreshold is the minimum Jaccard similarity for fuzzy title dedup.
	FuzzyTitleThreshold float64 `mapstructure:"fuzzy_title_threshold"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics exposure configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from a local .env file (if present), environment
// variables, and an optional config file, in that precedence order (env
// overrides file, and both are layered over defaults).
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SCHOLARMCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/scholarmcp")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates fields tagged mapstructure:"-" exclusively from
// environment variables, bypassing config files entirely.
func loadSecrets(cfg *Config, v *viper.Viper) {
	env := func(key string) string {
		return os.Getenv("SCHOLARMCP_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}
	cfg.Transport.APIKey = env("transport.api_key")
	cfg.Providers.A.APIKey = env("providers.a.api_key")
	cfg.Providers.B.APIKey = env("providers.b.api_key")
	cfg.Providers.C.APIKey = env("providers.c.api_key")
	cfg.Providers.D.APIKey = env("providers.d.api_key")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("transport.mode", TransportBoth)
	v.SetDefault("transport.host", "127.0.0.1")
	v.SetDefault("transport.port", 8080)
	v.SetDefault("transport.endpoint_path", "/mcp")
	v.SetDefault("transport.health_path", "/health")
	v.SetDefault("transport.allowed_origins", []string{})
	v.SetDefault("transport.allowed_hosts", []string{})

	v.SetDefault("session.mode", SessionModeStateful)
	v.SetDefault("session.ttl", "30m")
	v.SetDefault("session.max_sessions", 1000)

	v.SetDefault("providers.a.base_url", "https://api.providera.example/works")
	v.SetDefault("providers.b.base_url", "https://api.providerb.example/papers")
	v.SetDefault("providers.c.base_url", "https://api.providerc.example/works")
	v.SetDefault("providers.d.base_url", "https://scholar.providerd.example/scholar")

	v.SetDefault("fetcher.request_timeout", "15s")
	v.SetDefault("fetcher.retry_attempts", 2)
	v.SetDefault("fetcher.retry_delay", "500ms")
	v.SetDefault("fetcher.request_delay", "250ms")
	v.SetDefault("fetcher.sustained_rate", 10.0)
	v.SetDefault("fetcher.burst", 10)

	v.SetDefault("ingestion.allow_remote_pdfs", true)
	v.SetDefault("ingestion.allow_local_pdfs", true)
	v.SetDefault("ingestion.structured_parser_url", "")
	v.SetDefault("ingestion.worker_pool_size", 0) // 0 => runtime.NumCPU()
	v.SetDefault("ingestion.queue_depth", 128)
	v.SetDefault("ingestion.download_timeout", "60s")
	v.SetDefault("ingestion.max_pdf_bytes", 100*1024*1024)

	v.SetDefault("graph.cache_ttl", "60s")
	v.SetDefault("graph.max_cache_entries", 512)
	v.SetDefault("graph.provider_result_multiplier", 2.0)
	v.SetDefault("graph.fuzzy_title_threshold", 0.82)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Transport.Mode {
	case TransportLine, TransportHTTP, TransportBoth:
	default:
		return fmt.Errorf("invalid transport mode: %s", c.Transport.Mode)
	}

	if c.Transport.Mode != TransportLine {
		if c.Transport.Port <= 0 || c.Transport.Port > 65535 {
			return fmt.Errorf("invalid transport port: %d", c.Transport.Port)
		}
		if c.Transport.EndpointPath == "" {
			return errors.New("transport.endpoint_path must not be empty")
		}
		if c.Transport.HealthPath == "" {
			return errors.New("transport.health_path must not be empty")
		}
	}

	switch c.Session.Mode {
	case SessionModeStateless, SessionModeStateful:
	default:
		return fmt.Errorf("invalid session mode: %s", c.Session.Mode)
	}
	if c.Session.Mode == SessionModeStateful && c.Session.MaxSessions <= 0 {
		return errors.New("session.max_sessions must be positive in stateful mode")
	}

	if c.Graph.ProviderResultMultiplier <= 0 {
		return errors.New("graph.provider_result_multiplier must be positive")
	}
	if c.Graph.FuzzyTitleThreshold <= 0 || c.Graph.FuzzyTitleThreshold > 1 {
		return errors.New("graph.fuzzy_title_threshold must be in (0, 1]")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}
