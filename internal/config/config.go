// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backends selected by the DATABASE_URL scheme.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64 // Maximum multipart upload size in bytes.

	// Database settings. postgres://... or sqlite://path (sqlite::memory: for tests).
	DatabaseURL string

	// Data server settings.
	DataServerMode string // "local" or "s3"
	DataDir        string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3Prefix       string
	S3AccessKey    string
	S3SecretKey    string
	S3PathStyle    bool

	// Remote scorer settings.
	ScorerTimeout time.Duration

	// Rate limiting of the scoring endpoints.
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	MCPEnabled bool

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string
	OTELInsecure bool

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// Every malformed variable is reported, not just the first.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var cfg Config
	var err error

	cfg.Port, err = envInt("DASHBOARD_PORT", 18080)
	collect(err)
	cfg.ReadTimeout, err = envDuration("DASHBOARD_READ_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.WriteTimeout, err = envDuration("DASHBOARD_WRITE_TIMEOUT", 10*time.Minute)
	collect(err)
	maxUpload, err := envInt("DASHBOARD_MAX_UPLOAD_BYTES", 64*1024*1024) // 64 MB default
	collect(err)
	cfg.MaxUploadBytes = int64(maxUpload)

	cfg.DatabaseURL = envStr("DATABASE_URL", "sqlite://dashboard.db")

	cfg.DataServerMode = envStr("DASHBOARD_DATA_SERVER_MODE", "local")
	cfg.DataDir = envStr("DASHBOARD_DATA_DIR", "./data")
	cfg.S3Bucket = envStr("DASHBOARD_S3_BUCKET", "")
	cfg.S3Region = envStr("DASHBOARD_S3_REGION", "us-east-1")
	cfg.S3Endpoint = envStr("DASHBOARD_S3_ENDPOINT", "")
	cfg.S3Prefix = envStr("DASHBOARD_S3_PREFIX", "")
	cfg.S3AccessKey = envStr("DASHBOARD_S3_ACCESS_KEY", "")
	cfg.S3SecretKey = envStr("DASHBOARD_S3_SECRET_KEY", "")
	cfg.S3PathStyle, err = envBool("DASHBOARD_S3_PATH_STYLE", false)
	collect(err)

	cfg.ScorerTimeout, err = envDuration("DASHBOARD_SCORER_TIMEOUT", 5*time.Minute)
	collect(err)

	cfg.RateLimitEnabled, err = envBool("DASHBOARD_RATE_LIMIT_ENABLED", true)
	collect(err)
	cfg.RateLimitRPS, err = envFloat("DASHBOARD_RATE_LIMIT_RPS", 2)
	collect(err)
	cfg.RateLimitBurst, err = envInt("DASHBOARD_RATE_LIMIT_BURST", 5)
	collect(err)

	cfg.MCPEnabled, err = envBool("DASHBOARD_MCP_ENABLED", true)
	collect(err)

	cfg.OTELEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.ServiceName = envStr("OTEL_SERVICE_NAME", "rekcurd-dashboard")
	cfg.OTELInsecure, err = envBool("DASHBOARD_OTEL_INSECURE", false)
	collect(err)

	cfg.LogLevel = envStr("DASHBOARD_LOG_LEVEL", "info")

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: DASHBOARD_PORT must be between 1 and 65535")
	}
	if _, _, err := ParseDatabaseURL(c.DatabaseURL); err != nil {
		return err
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: DASHBOARD_MAX_UPLOAD_BYTES must be positive")
	}
	switch c.DataServerMode {
	case "local":
		if c.DataDir == "" {
			return fmt.Errorf("config: DASHBOARD_DATA_DIR is required in local mode")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("config: DASHBOARD_S3_BUCKET is required in s3 mode")
		}
	default:
		return fmt.Errorf("config: DASHBOARD_DATA_SERVER_MODE must be local or s3 (got %q)", c.DataServerMode)
	}
	if c.ScorerTimeout <= 0 {
		return fmt.Errorf("config: DASHBOARD_SCORER_TIMEOUT must be positive")
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("config: DASHBOARD_RATE_LIMIT_RPS and DASHBOARD_RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// ParseDatabaseURL splits DATABASE_URL into a driver and the DSN that driver
// expects. Postgres URLs pass through unchanged.
func ParseDatabaseURL(url string) (driver, dsn string, err error) {
	switch {
	case url == "":
		return "", "", fmt.Errorf("config: DATABASE_URL is required")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url, nil
	case url == "sqlite::memory:":
		return DriverSQLite, ":memory:", nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("config: DATABASE_URL %q has no sqlite path", url)
		}
		return DriverSQLite, path, nil
	}
	return "", "", fmt.Errorf("config: DATABASE_URL must start with postgres:// or sqlite:// (got %q)", url)
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
