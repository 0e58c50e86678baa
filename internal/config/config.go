// Package config loads service configuration from environment variables.
// Defaults are applied for unset values and everything is validated on
// startup so a misconfigured service fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including draining running validations.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for API requests (default: 90s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`
}

// DatabaseConfig holds the CRM database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required).
	// DATABASE_URL and DB_URL are both accepted.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig bounds import validation runs.
type ImportConfig struct {
	// MaxFileSize is the largest accepted workbook in bytes (default: 20MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrentRuns is the number of validations allowed at once (default: 4)
	MaxConcurrentRuns int `env:"IMPORT_MAX_CONCURRENT_RUNS" default:"4"`

	// MaxWaitTime is how long a request waits for a validation slot (default: 15s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"15s"`
}

// SecurityConfig holds API authentication settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key authentication on /api routes
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP / X-Forwarded-For headers are honoured
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
