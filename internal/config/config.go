package config

import (
	"fmt"
)

// Transport names for the backend connection.
const (
	TransportMCP  = "mcp"
	TransportREST = "rest"
)

// Config represents the main recall configuration.
type Config struct {
	// Transport selects which backend client is constructed: "mcp" or
	// "rest". Exactly one client exists per process.
	Transport string `json:"transport" mapstructure:"transport"`

	MCP  MCPConfig  `json:"mcp" mapstructure:"mcp"`
	REST RESTConfig `json:"rest" mapstructure:"rest"`

	Memory  MemoryConfig  `json:"memory" mapstructure:"memory"`
	Inject  InjectConfig  `json:"inject" mapstructure:"inject"`
	Limits  LimitsConfig  `json:"limits" mapstructure:"limits"`
	Probe   ProbeConfig   `json:"probe" mapstructure:"probe"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory, defaults to ~/.recall
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// MCPConfig holds the stateful JSON-RPC transport settings.
type MCPConfig struct {
	// BaseURL of the knowledge-graph MCP endpoint, e.g.
	// http://localhost:8000/mcp/. Empty means not configured.
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// CallTimeoutSeconds bounds each backend call. Zero uses the
	// built-in default.
	CallTimeoutSeconds int `json:"call_timeout_seconds" mapstructure:"call_timeout_seconds"`
}

// RESTConfig holds the stateless HTTP transport settings.
type RESTConfig struct {
	BaseURL            string `json:"base_url" mapstructure:"base_url"`
	CallTimeoutSeconds int    `json:"call_timeout_seconds" mapstructure:"call_timeout_seconds"`
}

// MemoryConfig controls scoping and classification.
type MemoryConfig struct {
	// GroupPrefix namespaces every group id this install writes.
	GroupPrefix string `json:"group_prefix" mapstructure:"group_prefix"`

	// UserTag identifies the user partition. Defaults to $USER.
	UserTag string `json:"user_tag" mapstructure:"user_tag"`

	// ProjectTag identifies the project partition. Empty derives it
	// from the working directory name.
	ProjectTag string `json:"project_tag" mapstructure:"project_tag"`

	// EntityTypes filter for profile node search.
	EntityTypes []string `json:"entity_types" mapstructure:"entity_types"`
}

// InjectConfig toggles the sections of the session-start context block.
type InjectConfig struct {
	Profile         bool `json:"profile" mapstructure:"profile"`
	ProjectMemories bool `json:"project_memories" mapstructure:"project_memories"`
	UserMemories    bool `json:"user_memories" mapstructure:"user_memories"`
}

// LimitsConfig bounds result set sizes.
type LimitsConfig struct {
	Search  int `json:"search" mapstructure:"search"`
	Profile int `json:"profile" mapstructure:"profile"`
}

// ProbeConfig controls the background liveness monitor.
type ProbeConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Interval string `json:"interval" mapstructure:"interval"` // cron spec, e.g. "@every 5m"
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the configuration used when no file exists.
// Backend URLs stay empty on purpose: an unconfigured transport must
// fail loudly at call time, not point at a guessed host.
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportMCP,
		Memory: MemoryConfig{
			GroupPrefix: "recall",
			EntityTypes: []string{"Preference", "Requirement"},
		},
		Inject: InjectConfig{
			Profile:         true,
			ProjectMemories: true,
			UserMemories:    true,
		},
		Limits: LimitsConfig{
			Search:  10,
			Profile: 5,
		},
		Probe: ProbeConfig{
			Enabled:  false,
			Interval: "@every 5m",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
	}
}

// Validate checks the configuration for inconsistencies. A missing
// backend URL is deliberately not an error here; it surfaces as a
// not-configured error on the first backend call.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportMCP, TransportREST:
	default:
		return fmt.Errorf("unknown transport %q (want %q or %q)", c.Transport, TransportMCP, TransportREST)
	}

	if c.Limits.Search < 0 {
		return fmt.Errorf("limits.search must not be negative, got %d", c.Limits.Search)
	}
	if c.Limits.Profile < 0 {
		return fmt.Errorf("limits.profile must not be negative, got %d", c.Limits.Profile)
	}
	if c.Memory.GroupPrefix == "" {
		return fmt.Errorf("memory.group_prefix must not be empty")
	}
	if c.Probe.Enabled && c.Probe.Interval == "" {
		return fmt.Errorf("probe.interval is required when the probe is enabled")
	}
	return nil
}

// BackendURL returns the base URL of the selected transport.
func (c *Config) BackendURL() string {
	if c.Transport == TransportREST {
		return c.REST.BaseURL
	}
	return c.MCP.BaseURL
}
