package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Cache   CacheConfig
	Lookup  LookupConfig
	Observe ObserveConfig
	Rules   RulesConfig
	Server  ServerConfig
}

type ServerConfig struct {
	Port                   int `env:"SERVER_PORT, default=8080"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	OutgoingHTTPMaxIdleConns    int `env:"SERVER_OUTGOING_MAX_IDLE_CONNS, default=100"`
	OutgoingHTTPMaxConnsPerHost int `env:"SERVER_OUTGOING_MAX_CONNS_PER_HOST, default=20"`
}

// CacheConfig specifies the name store's backing blob store.
type CacheConfig struct {
	// Type selects the blob store implementation: "memory" (default) or "valkey"
	Type string `env:"CACHE_TYPE, default=memory"`

	// MaxOrigins caps the number of origins held by the in-memory store.
	MaxOrigins int `env:"CACHE_MAX_ORIGINS, default=10000"`

	// Valkey holds distributed store settings.
	Valkey ValkeyConfig
}

// ValkeyConfig specifies distributed blob store configuration.
type ValkeyConfig struct {
	// Address is the Valkey server address (host:port).
	Address string `env:"VALKEY_ADDRESS"`

	// TLS enables TLS connection to Valkey. Defaults to true so the secure option
	// is the default.
	TLS bool `env:"VALKEY_TLS, default=true"`

	// Username for Valkey authentication.
	Username string `env:"VALKEY_USERNAME"`

	// Password for Valkey authentication.
	Password string `env:"VALKEY_PASSWORD"`
}

// LookupConfig specifies how display names are fetched for a handle.
type LookupConfig struct {
	// Mode selects the lookup implementation: "scrape" (default) fetches the
	// profile page directly, "github" uses the GitHub users API.
	Mode string `env:"LOOKUP_MODE, default=scrape"`

	// TimeoutSeconds bounds a single lookup call.
	TimeoutSeconds int `env:"LOOKUP_TIMEOUT_SECS, default=10"`

	// GithubAPIURL overrides the GitHub API base URL. Internal only, used for
	// GitHub Enterprise installations and tests.
	GithubAPIURL string `env:"LOOKUP_GITHUB_API_URL"`
}

// RulesConfig locates the optional extraction rules file.
type RulesConfig struct {
	// File is a YAML file overriding the built-in extraction rules. When set,
	// the file is watched and reloaded on change.
	File string `env:"RULES_FILE"`
}

type ObserveConfig struct {
	SDKLogLevel                string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=unveil-bridge"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HTTPTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HTTPConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=true"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.Cache.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid cache configuration: %w", err)
	}

	err = cfg.Lookup.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid lookup configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the cache configuration is valid.
func (c *CacheConfig) Validate() error {
	switch c.Type {
	case "memory", "valkey":
	default:
		return fmt.Errorf("invalid cache type %q: must be either \"memory\" or \"valkey\"", c.Type)
	}

	if c.Type == "valkey" && c.Valkey.Address == "" {
		return fmt.Errorf("VALKEY_ADDRESS required when CACHE_TYPE=valkey")
	}

	return nil
}

// Validate checks that the lookup configuration is valid.
func (c *LookupConfig) Validate() error {
	switch c.Mode {
	case "scrape", "github":
	default:
		return fmt.Errorf("invalid lookup mode %q: must be either \"scrape\" or \"github\"", c.Mode)
	}

	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("LOOKUP_TIMEOUT_SECS must be positive")
	}

	return nil
}
