// Package config provides centralized configuration management for the
// application. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Dropbox  DropboxConfig
	Session  SessionConfig
	Load     LoadConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on; PORT is honored for PaaS runtimes
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing the response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DropboxConfig holds Dropbox access settings. The three credential values
// must be set together; with none of them set the server runs in
// upload-only mode and remote operations answer 503.
type DropboxConfig struct {
	// AppKey is the Dropbox app's client id
	AppKey string `env:"DROPBOX_APP_KEY"`

	// AppSecret is the Dropbox app's client secret
	AppSecret string `env:"DROPBOX_APP_SECRET"`

	// RefreshToken is the long-lived OAuth2 refresh token
	RefreshToken string `env:"DROPBOX_REFRESH_TOKEN"`

	// RegistryPath is the registry file offered as the default load and
	// save location (default: /id_management_file.csv)
	RegistryPath string `env:"DROPBOX_FILE_PATH" default:"/id_management_file.csv"`

	// Timeout bounds each individual storage call (default: 60s)
	Timeout time.Duration `env:"DROPBOX_TIMEOUT" default:"60s"`
}

// SessionConfig holds editing session lifecycle settings.
type SessionConfig struct {
	// TTL is how long an idle session survives; activity extends it (default: 30m)
	TTL time.Duration `env:"SESSION_TTL" default:"30m"`

	// CleanupInterval is how often expired sessions are swept (default: 10m)
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" default:"10m"`
}

// LoadConfig holds file-load settings.
type LoadConfig struct {
	// MaxFileSize is the maximum accepted file size in bytes (default: 16MB)
	MaxFileSize int64 `env:"LOAD_MAX_FILE_SIZE" default:"16777216"`

	// MaxConcurrent is the maximum number of parallel load operations (default: 4)
	MaxConcurrent int `env:"LOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a load waits for a free slot (default: 10s)
	MaxWaitTime time.Duration `env:"LOAD_MAX_WAIT_TIME" default:"10s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the general rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// LoadsPerMinute is the limit per IP for session-opening endpoints (default: 10)
	LoadsPerMinute int `env:"RATE_LIMIT_LOADS_PER_MINUTE" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Configured reports whether all Dropbox credentials are present.
func (c *DropboxConfig) Configured() bool {
	return c.AppKey != "" && c.AppSecret != "" && c.RefreshToken != ""
}

// partial reports whether some but not all credentials are present, which is
// always a misconfiguration.
func (c *DropboxConfig) partial() bool {
	any := c.AppKey != "" || c.AppSecret != "" || c.RefreshToken != ""
	return any && !c.Configured()
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
