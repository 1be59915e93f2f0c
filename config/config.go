// Package config carries the recognized options of §6.4, loaded the way the
// teacher composes its own transports: a plain struct with JSON/YAML tags,
// plus functional Options for programmatic construction.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viant/mcpsession"
)

// Mode gates which HTTP routes beyond /sse are exposed. Debug/inspect
// session-inspection routes are out of scope for this runtime; the field is
// retained so a caller's own routing layer can branch on it.
type Mode string

const (
	ModeSSEOnly Mode = "sse-only"
	ModeDebug   Mode = "debug"
	ModeInspect Mode = "inspect"
)

// TransportSelect names which transport adapter a process wires up.
type TransportSelect string

const (
	TransportSSE   TransportSelect = "sse"
	TransportStdio TransportSelect = "stdio"
)

// LogLevel is one of the four levels §6.4 recognizes.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config is the full set of recognized options (§6.4).
type Config struct {
	SupportedVersions []string        `json:"supportedVersions,omitempty" yaml:"supportedVersions,omitempty"`
	LogLevel          LogLevel        `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	PathPrefix        string          `json:"pathPrefix,omitempty" yaml:"pathPrefix,omitempty"`
	BindHost          string          `json:"bindHost,omitempty" yaml:"bindHost,omitempty"`
	BindPort          int             `json:"bindPort,omitempty" yaml:"bindPort,omitempty"`
	Mode              Mode            `json:"mode,omitempty" yaml:"mode,omitempty"`
	TransportSelect   TransportSelect `json:"transportSelect,omitempty" yaml:"transportSelect,omitempty"`

	// AllowedOrigins gates GET /sse's Origin-header check (SPEC_FULL.md
	// domain-stack supplement). Empty means no check is performed.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`

	// AllowToolRegistration gates tools/register (§9 Open Question 2).
	AllowToolRegistration bool `json:"allowToolRegistration,omitempty" yaml:"allowToolRegistration,omitempty"`

	// IdleTimeout bounds the sse outbound loop's inactivity window (§5,
	// default 5 minutes). Zero means no timeout. The stdio adapter never
	// consults this field - it has no idle timeout by design.
	IdleTimeout time.Duration `json:"idleTimeout,omitempty" yaml:"idleTimeout,omitempty"`

	// ReplayBufferSize bounds the per-session outbound replay ring
	// (SPEC_FULL.md supplemented feature). Zero disables replay, matching
	// the teacher's own default.
	ReplayBufferSize int `json:"replayBufferSize,omitempty" yaml:"replayBufferSize,omitempty"`
}

// Option mutates a Config under construction, composing the way the
// teacher's own `Option func(*T)` functions do across its transports.
type Option func(*Config)

// New builds a Config with the documented defaults, then applies opts.
func New(opts ...Option) *Config {
	cfg := &Config{
		SupportedVersions: []string{jsonrpc.ProtocolVersion},
		LogLevel:          LogLevelInfo,
		PathPrefix:        "",
		Mode:              ModeSSEOnly,
		TransportSelect:   TransportSSE,
		IdleTimeout:       5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func WithSupportedVersions(versions ...string) Option {
	return func(c *Config) { c.SupportedVersions = versions }
}

func WithPathPrefix(prefix string) Option {
	return func(c *Config) { c.PathPrefix = prefix }
}

func WithBind(host string, port int) Option {
	return func(c *Config) { c.BindHost = host; c.BindPort = port }
}

func WithMode(mode Mode) Option {
	return func(c *Config) { c.Mode = mode }
}

func WithTransportSelect(t TransportSelect) Option {
	return func(c *Config) { c.TransportSelect = t }
}

func WithAllowedOrigins(origins ...string) Option {
	return func(c *Config) { c.AllowedOrigins = origins }
}

func WithAllowToolRegistration(allow bool) Option {
	return func(c *Config) { c.AllowToolRegistration = allow }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) { c.IdleTimeout = d }
}

// Validate checks the invariants §6.4 states explicitly.
func (c *Config) Validate() error {
	if c.PathPrefix != "" {
		if c.PathPrefix[0] != '/' {
			return fmt.Errorf("config: path_prefix %q must start with '/'", c.PathPrefix)
		}
		if c.PathPrefix[len(c.PathPrefix)-1] == '/' {
			return fmt.Errorf("config: path_prefix %q must not end with '/'", c.PathPrefix)
		}
	}
	return nil
}

// LoadJSON decodes JSON config data on top of New()'s defaults.
func LoadJSON(data []byte) (*Config, error) {
	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode json: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadYAML decodes YAML config data on top of New()'s defaults.
func LoadYAML(data []byte) (*Config, error) {
	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
