package server

import (
	"os"
	"strconv"

	"github.com/mockforge/mockforge/pkg/validation"
)

// Environment variables read by the server.
const (
	EnvHTTPPort         = "MOCKFORGE_HTTP_PORT"
	EnvHTTPHost         = "MOCKFORGE_HTTP_HOST"
	EnvOverridesEnabled = "MOCKFORGE_OVERRIDES_ENABLED"
)

// DefaultPort is the port served when nothing is configured.
const DefaultPort = 3000

// Config holds the server's own settings; shaping and synthesis carry
// their configuration separately.
type Config struct {
	// Host to bind. Empty means all interfaces.
	Host string `json:"host" yaml:"host"`

	// Port to listen on. Defaults to 3000.
	Port int `json:"port" yaml:"port"`

	// FixtureDir is watched for fixture files. Empty disables fixtures.
	FixtureDir string `json:"fixtureDir,omitempty" yaml:"fixtureDir,omitempty"`

	// OverridesEnabled gates fixture matching.
	OverridesEnabled bool `json:"overridesEnabled" yaml:"overridesEnabled"`

	// ValidationMode selects aggregate or fail-fast error reporting.
	ValidationMode validation.Mode `json:"validationMode,omitempty" yaml:"validationMode,omitempty"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:             DefaultPort,
		OverridesEnabled: true,
		ValidationMode:   validation.ModeAggregate,
	}
}

// FromEnv layers MOCKFORGE_HTTP_* variables over the defaults.
func FromEnv() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv(EnvHTTPHost); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv(EnvHTTPPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port < 65536 {
			cfg.Port = port
		}
	}
	if v := os.Getenv(EnvOverridesEnabled); v != "" {
		cfg.OverridesEnabled = v == "1" || v == "true" || v == "TRUE" || v == "on"
	}
	return cfg
}
