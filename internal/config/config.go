// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as platform credentials, store connection parameters, retry limits,
// discovery cadence, rendering limits, logging, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hexiro/csinspect/internal/sysutil"
)

// Store backends selectable via STORE_BACKEND.
const (
	StoreBackendRedis  = "redis"
	StoreBackendSQLite = "sqlite"
)

// Account filter polarities selectable via ACCOUNT_FILTER_MODE.
const (
	AccountFilterOnly    = "only"    // process only the configured account
	AccountFilterExclude = "exclude" // process everything except the configured account
)

// TwitterConfig holds the platform credentials. The bearer token drives
// app-context calls (search, stream); the OAuth1 key pair drives
// user-context calls (replies, media upload).
type TwitterConfig struct {
	BearerToken       string // TWITTER_BEARER_TOKEN
	APIKey            string // TWITTER_API_KEY
	APIKeySecret      string // TWITTER_API_KEY_SECRET
	AccessToken       string // TWITTER_ACCESS_TOKEN
	AccessTokenSecret string // TWITTER_ACCESS_TOKEN_SECRET
}

// StoreConfig defines the response-state store settings.
type StoreConfig struct {
	Backend  string        // redis|sqlite
	Addr     string        // REDIS_ADDR (host:port)
	Password string        // REDIS_PASSWORD
	DB       int           // REDIS_DB
	Path     string        // STORE_PATH (sqlite file)
	TTL      time.Duration // STORE_TTL retention window
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "csinspect")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Platform
	Twitter TwitterConfig

	// Store
	Store StoreConfig

	// Discovery
	SearchInterval   time.Duration // cadence of the recent-search loop
	SearchMaxResults int           // per-cycle result cap (10..100)

	// Processing
	MaxFailedAttempts int  // retry cap; at the cap a message is still eligible
	MaxImages         int  // per-message item cap (platform allows 4)
	DryRun            bool // suppress the reply-post step

	// Account isolation filter
	AccountFilterID   string // empty disables the filter
	AccountFilterMode string // only|exclude

	// Rendering
	RenderTimeout time.Duration // per-render request timeout
	RenderRPS     float64       // render request tokens per second
	RenderBurst   int           // render limiter bucket size

	// Ops HTTP listener
	OpsAddr string // e.g. ":9090"

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		Twitter: TwitterConfig{
			BearerToken:       getenv("TWITTER_BEARER_TOKEN", ""),
			APIKey:            getenv("TWITTER_API_KEY", ""),
			APIKeySecret:      getenv("TWITTER_API_KEY_SECRET", ""),
			AccessToken:       getenv("TWITTER_ACCESS_TOKEN", ""),
			AccessTokenSecret: getenv("TWITTER_ACCESS_TOKEN_SECRET", ""),
		},

		Store: StoreConfig{
			Backend:  strings.ToLower(getenv("STORE_BACKEND", StoreBackendRedis)),
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
			Path:     getenv("STORE_PATH", "csinspect.db"),
			TTL:      getdur("STORE_TTL", 7*24*time.Hour),
		},

		SearchInterval:   getdur("SEARCH_INTERVAL", 600*time.Second),
		SearchMaxResults: getint("SEARCH_MAX_RESULTS", 100),

		MaxFailedAttempts: getint("MAX_FAILED_ATTEMPTS", 3),
		MaxImages:         getint("MAX_IMAGES", 4),
		DryRun:            getbool("DRY_RUN", false),

		AccountFilterID:   getenv("ACCOUNT_FILTER_ID", ""),
		AccountFilterMode: strings.ToLower(getenv("ACCOUNT_FILTER_MODE", AccountFilterOnly)),

		RenderTimeout: getdur("RENDER_TIMEOUT", 300*time.Second),
		RenderRPS:     getfloat("RENDER_RPS", 2.0),
		RenderBurst:   getint("RENDER_BURST", 4),

		OpsAddr: getenv("OPS_ADDR", ":9090"),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "csinspect"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Twitter.BearerToken) == "" {
		return cfg, errors.New("TWITTER_BEARER_TOKEN must not be empty")
	}
	if !cfg.DryRun {
		if cfg.Twitter.APIKey == "" || cfg.Twitter.APIKeySecret == "" ||
			cfg.Twitter.AccessToken == "" || cfg.Twitter.AccessTokenSecret == "" {
			return cfg, errors.New("TWITTER_API_KEY/SECRET and TWITTER_ACCESS_TOKEN/SECRET are required unless DRY_RUN is set")
		}
	}
	switch cfg.Store.Backend {
	case StoreBackendRedis:
		if strings.TrimSpace(cfg.Store.Addr) == "" {
			return cfg, errors.New("REDIS_ADDR must not be empty")
		}
	case StoreBackendSQLite:
		if strings.TrimSpace(cfg.Store.Path) == "" {
			return cfg, errors.New("STORE_PATH must not be empty")
		}
	default:
		return cfg, errors.New("STORE_BACKEND must be one of: redis, sqlite")
	}
	if cfg.Store.TTL <= 0 {
		return cfg, errors.New("STORE_TTL must be a positive duration")
	}
	if cfg.SearchInterval <= 0 {
		return cfg, errors.New("SEARCH_INTERVAL must be a positive duration")
	}
	if cfg.SearchMaxResults < 10 || cfg.SearchMaxResults > 100 {
		return cfg, errors.New("SEARCH_MAX_RESULTS must be between 10 and 100")
	}
	if cfg.MaxFailedAttempts < 0 {
		return cfg, errors.New("MAX_FAILED_ATTEMPTS must be >= 0")
	}
	if cfg.MaxImages < 1 || cfg.MaxImages > 4 {
		return cfg, errors.New("MAX_IMAGES must be between 1 and 4")
	}
	switch cfg.AccountFilterMode {
	case AccountFilterOnly, AccountFilterExclude:
	default:
		return cfg, errors.New("ACCOUNT_FILTER_MODE must be one of: only, exclude")
	}
	if cfg.RenderTimeout <= 0 {
		return cfg, errors.New("RENDER_TIMEOUT must be a positive duration")
	}
	if cfg.RenderRPS <= 0 {
		return cfg, errors.New("RENDER_RPS must be > 0")
	}
	if cfg.RenderBurst < 1 {
		return cfg, errors.New("RENDER_BURST must be >= 1")
	}
	if strings.TrimSpace(cfg.OpsAddr) == "" {
		return cfg, errors.New("OPS_ADDR must not be empty")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return sysutil.IsTruthy(v)
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
