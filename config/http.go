package config

import "time"

// APIConfig contains web API server configuration.
type APIConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"RAPO_API_ADDR" envDefault:":8760"`

	// Token is the static bearer token every API request must carry.
	// An empty token leaves the API unprotected and is only acceptable
	// behind a trusted proxy.
	Token string `env:"RAPO_API_TOKEN"`

	// OIDCIssuer, when set, makes the API also accept OIDC ID tokens
	// verified against this issuer in place of the static token.
	OIDCIssuer string `env:"RAPO_API_OIDC_ISSUER"`

	// OIDCClientID is the audience expected in accepted ID tokens.
	OIDCClientID string `env:"RAPO_API_OIDC_CLIENT_ID"`

	// MaxConnections caps concurrent TCP connections to the listener.
	MaxConnections int `env:"RAPO_API_MAX_CONNECTIONS" envDefault:"256"`

	// ReadTimeout and WriteTimeout bound request handling; revoke and
	// delete operations can run statements, so writes get more room.
	ReadTimeout  time.Duration `env:"RAPO_API_READ_TIMEOUT"  envDefault:"30s"`
	WriteTimeout time.Duration `env:"RAPO_API_WRITE_TIMEOUT" envDefault:"5m"`

	// CompressionEnabled enables gzip compression for JSON responses.
	CompressionEnabled bool `env:"RAPO_API_COMPRESSION_ENABLED" envDefault:"false"`

	// CompressionLevel is the gzip compression level (1-9).
	CompressionLevel int `env:"RAPO_API_COMPRESSION_LEVEL" envDefault:"6"`
}

// Sanitize applies guardrails to API configuration values.
func (a *APIConfig) Sanitize() {
	if a.MaxConnections < 1 {
		a.MaxConnections = 1
	}
	if a.ReadTimeout <= 0 {
		a.ReadTimeout = 30 * time.Second
	}
	if a.WriteTimeout <= 0 {
		a.WriteTimeout = 5 * time.Minute
	}
	// Clamp compression level to valid gzip range (1-9)
	if a.CompressionLevel < 1 {
		a.CompressionLevel = 1
	}
	if a.CompressionLevel > 9 {
		a.CompressionLevel = 9
	}
}
