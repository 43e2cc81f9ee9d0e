// Package config handles the restgen server configuration.
//
// Configuration is read from a TOML file, then overridden by RESTGEN_*
// environment variables. String values starting with "env:" are read from the
// named environment variable so secrets never live in the file:
//
//	[auth]
//	secret = "env:JWT_SECRET"
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/afex/hystrix-go/hystrix"

	"github.com/restgen/restgen/resource"
	"github.com/restgen/restgen/schema/query"
)

// Config represents the complete server configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Catalog CatalogConfig `toml:"catalog"`
	Query   QueryConfig   `toml:"query"`
	Storage StorageConfig `toml:"storage"`
	Auth    AuthConfig    `toml:"auth"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// RequestTimeout abandons requests taking longer. Zero means no timeout.
	RequestTimeout Duration `toml:"request_timeout"`
	// MetricsPath is where the Prometheus metrics are served. Empty disables
	// metrics.
	MetricsPath string `toml:"metrics_path"`
	// CORSOrigins lists the allowed origins. Empty allows all origins.
	CORSOrigins []string `toml:"cors_origins"`
}

// CatalogConfig tells where the model catalog comes from. When neither a file
// nor a database is set, the built-in demo catalog is used.
type CatalogConfig struct {
	// File is a YAML catalog file.
	File string `toml:"file"`
	// DatabaseURL is a PostgreSQL URL (supports "env:" prefix) whose schema
	// is reflected into the catalog.
	DatabaseURL string `toml:"database_url"`
	// Schema is the reflected database schema, public by default.
	Schema string `toml:"schema"`
}

// QueryConfig holds the query compiler configuration.
type QueryConfig struct {
	DefaultLimit          int    `toml:"default_limit"`
	MaxLimit              int    `toml:"max_limit"`
	FilterMode            string `toml:"filter_mode"`
	CredentialModel       string `toml:"credential_model"`
	CredentialField       string `toml:"credential_field"`
	FoldIncludeIntoSelect bool   `toml:"fold_include_into_select"`
}

// StorageConfig configures the circuit breaker wrapping storage calls.
type StorageConfig struct {
	CircuitBreaker        bool     `toml:"circuit_breaker"`
	Timeout               Duration `toml:"timeout"`
	MaxConcurrentRequests int      `toml:"max_concurrent_requests"`
	ErrorPercentThreshold int      `toml:"error_percent_threshold"`
}

// AuthConfig holds the JWT scope configuration. Scoping is disabled when no
// secret is set.
type AuthConfig struct {
	// Secret verifies HS256 tokens (supports "env:" prefix).
	Secret string `toml:"secret"`
	// Claim holds the scope value, i.e.: tenant_id.
	Claim string `toml:"claim"`
	// Field is the model field scoped on, i.e.: tenantId.
	Field string `toml:"field"`
	// Required rejects anonymous requests.
	Required bool `toml:"required"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is a zerolog level name (debug, info, warn, error).
	Level string `toml:"level"`
	// Console switches to human friendly output.
	Console bool `toml:"console"`
}

// Duration is a time.Duration decoded from strings like "1.5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        "localhost:8080",
			MetricsPath: "/metrics",
		},
		Query: QueryConfig{
			DefaultLimit:          query.DefaultConf.DefaultLimit,
			FilterMode:            query.DefaultConf.DefaultFilterMode,
			CredentialModel:       query.DefaultConf.CredentialModel,
			CredentialField:       query.DefaultConf.CredentialField,
			FoldIncludeIntoSelect: query.DefaultConf.FoldIncludeIntoSelect,
		},
		Storage: StorageConfig{
			Timeout:               Duration{time.Second},
			MaxConcurrentRequests: hystrix.DefaultMaxConcurrent,
			ErrorPercentThreshold: hystrix.DefaultErrorPercentThreshold,
		},
		Auth: AuthConfig{
			Claim: "tenant_id",
			Field: "tenantId",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads the configuration from the TOML file at path, if not empty, and
// applies the environment overrides.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	c.applyEnv()
	if err := c.resolveSecrets(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return c, nil
}

// applyEnv overrides the configuration with RESTGEN_* environment variables.
func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("RESTGEN_ADDR", c.Server.Addr)
	c.Server.RequestTimeout.Duration = getEnvDuration("RESTGEN_REQUEST_TIMEOUT", c.Server.RequestTimeout.Duration)
	c.Catalog.File = getEnv("RESTGEN_CATALOG_FILE", c.Catalog.File)
	c.Catalog.DatabaseURL = getEnv("RESTGEN_DATABASE_URL", c.Catalog.DatabaseURL)
	c.Catalog.Schema = getEnv("RESTGEN_DATABASE_SCHEMA", c.Catalog.Schema)
	c.Query.DefaultLimit = getEnvInt("RESTGEN_DEFAULT_LIMIT", c.Query.DefaultLimit)
	c.Query.MaxLimit = getEnvInt("RESTGEN_MAX_LIMIT", c.Query.MaxLimit)
	c.Query.FilterMode = getEnv("RESTGEN_FILTER_MODE", c.Query.FilterMode)
	c.Auth.Secret = getEnv("RESTGEN_JWT_SECRET", c.Auth.Secret)
	c.Auth.Required = getEnvBool("RESTGEN_JWT_REQUIRED", c.Auth.Required)
	c.Log.Level = getEnv("RESTGEN_LOG_LEVEL", c.Log.Level)
}

// resolveSecrets replaces "env:NAME" values by the NAME environment variable.
func (c *Config) resolveSecrets() error {
	for _, v := range []*string{&c.Catalog.DatabaseURL, &c.Auth.Secret} {
		name := strings.TrimPrefix(*v, "env:")
		if name == *v {
			continue
		}
		value, found := os.LookupEnv(name)
		if !found {
			return fmt.Errorf("environment variable %s is not set", name)
		}
		*v = value
	}
	return nil
}

// Validate checks the configuration consistency.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Catalog.File != "" && c.Catalog.DatabaseURL != "" {
		return fmt.Errorf("catalog.file and catalog.database_url are mutually exclusive")
	}
	if c.Query.DefaultLimit < 0 || c.Query.MaxLimit < 0 {
		return fmt.Errorf("query limits must be positive")
	}
	switch strings.ToUpper(c.Query.FilterMode) {
	case "", "AND", "OR":
	default:
		return fmt.Errorf("query.filter_mode must be AND or OR, got %q", c.Query.FilterMode)
	}
	if c.Auth.Secret != "" && (c.Auth.Claim == "" || c.Auth.Field == "") {
		return fmt.Errorf("auth.claim and auth.field are required with auth.secret")
	}
	if c.Auth.Required && c.Auth.Secret == "" {
		return fmt.Errorf("auth.required needs auth.secret")
	}
	return nil
}

// QueryConf returns the query compiler configuration.
func (c *Config) QueryConf() query.Conf {
	return query.Conf{
		DefaultLimit:          c.Query.DefaultLimit,
		MaxLimit:              c.Query.MaxLimit,
		DefaultFilterMode:     strings.ToUpper(c.Query.FilterMode),
		CredentialModel:       c.Query.CredentialModel,
		CredentialField:       c.Query.CredentialField,
		FoldIncludeIntoSelect: c.Query.FoldIncludeIntoSelect,
	}
}

// ResourceConf returns the configuration of the served resources.
func (c *Config) ResourceConf() resource.Conf {
	rc := resource.Conf{Query: c.QueryConf()}
	if c.Storage.CircuitBreaker {
		rc.CircuitBreaker = &hystrix.CommandConfig{
			Timeout:               int(c.Storage.Timeout.Milliseconds()),
			MaxConcurrentRequests: c.Storage.MaxConcurrentRequests,
			ErrorPercentThreshold: c.Storage.ErrorPercentThreshold,
		}
	}
	return rc
}

// getEnv returns an environment variable or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
