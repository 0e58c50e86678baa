package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from the process environment, applies defaults
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with an explicit variable source.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error. Only for main.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

var durationType = reflect.TypeOf(time.Duration(0))

// loadStruct populates tagged fields, recursing into nested config sections.
func loadStruct(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := envValue(lookup, envName, field.Tag.Get("envAlt"))
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// envValue returns the primary variable, falling back to the alternate name.
func envValue(lookup LookupFunc, name, alt string) string {
	if v, ok := lookup(name); ok && v != "" {
		return v
	}
	if alt != "" {
		if v, ok := lookup(alt); ok {
			return v
		}
	}
	return ""
}

// setField parses value into field according to the field's type.
func setField(field reflect.Value, value string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))

	case field.Kind() == reflect.String:
		field.SetString(value)

	case field.Kind() == reflect.Int || field.Kind() == reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "SERVER_REQUEST_TIMEOUT must be positive")
	}

	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxConcurrentRuns <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT_RUNS must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Sprintf("METRICS_PATH (%q) must start with /", c.Metrics.Path))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a representation safe for logging. The database URL and
// API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Import: {MaxFileSize: %d, MaxConcurrentRuns: %d, MaxWaitTime: %s}, ",
		c.Import.MaxFileSize, c.Import.MaxConcurrentRuns, c.Import.MaxWaitTime)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}, ", c.Logging.Level, c.Logging.Format)
	fmt.Fprintf(&b, "Metrics: {Enabled: %v, Path: %q}", c.Metrics.Enabled, c.Metrics.Path)
	b.WriteString("}")
	return b.String()
}
