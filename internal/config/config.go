// Package config provides configuration management for the translation
// server. It handles loading and parsing YAML configuration files, and
// provides structured access to application settings including server port,
// client API keys, credential location, logging behavior and generation
// defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the address the HTTP server binds to. Empty means all
	// interfaces.
	Host string `yaml:"host" json:"host"`

	// Port is the network port on which the HTTP server listens.
	Port int `yaml:"port" json:"port"`

	// APIKeys is a list of keys for authenticating clients to this server.
	// Empty means unauthenticated access is allowed.
	APIKeys []string `yaml:"api-keys" json:"api-keys"`

	// AuthFile overrides the OS-specific Antigravity credential location.
	AuthFile string `yaml:"auth-file" json:"auth-file"`

	// ProxyURL is the URL of an optional proxy server for outbound requests.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// RequestLog enables detailed request logging.
	RequestLog bool `yaml:"request-log" json:"request-log"`

	// LoggingToFile routes logs to rotated files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir is the directory rotated log files are written to.
	LogDir string `yaml:"log-dir" json:"log-dir"`

	// SystemInstruction overrides the fixed system prompt attached to
	// every upstream request.
	SystemInstruction string `yaml:"system-instruction" json:"system-instruction"`

	// Generation holds the sampling defaults applied when a request leaves
	// a knob unset.
	Generation GenerationConfig `yaml:"generation" json:"generation"`
}

// GenerationConfig holds the default sampling parameters.
type GenerationConfig struct {
	Temperature     *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	TopP            *float64 `yaml:"top-p,omitempty" json:"top-p,omitempty"`
	TopK            *int     `yaml:"top-k,omitempty" json:"top-k,omitempty"`
	MaxOutputTokens *int     `yaml:"max-output-tokens,omitempty" json:"max-output-tokens,omitempty"`
	ThinkingBudget  *int     `yaml:"thinking-budget,omitempty" json:"thinking-budget,omitempty"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Port:   8317,
		LogDir: "logs",
	}
}

// LoadConfig reads a YAML configuration file from the given path and
// unmarshals it into a Config struct.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigOptional(path, false)
}

// LoadConfigOptional behaves like LoadConfig, but when optional is true a
// missing or empty file yields the defaults instead of an error.
func LoadConfigOptional(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		if optional {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.sanitizeAPIKeys()
	return cfg, nil
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 0 and 65535", c.Port)
	}
	if c.Port == 0 {
		c.Port = DefaultConfig().Port
	}
	if g := c.Generation; g.Temperature != nil && (*g.Temperature < 0 || *g.Temperature > 2) {
		return fmt.Errorf("invalid generation.temperature %v: must be between 0 and 2", *g.Temperature)
	}
	return nil
}

// sanitizeAPIKeys trims whitespace and drops empty or duplicate entries.
func (c *Config) sanitizeAPIKeys() {
	seen := make(map[string]struct{}, len(c.APIKeys))
	out := c.APIKeys[:0]
	for _, key := range c.APIKeys {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	c.APIKeys = out
}
