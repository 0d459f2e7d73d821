package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading.
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file, applying environment
// overrides (RECALL_*) and derived defaults.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("determining config path: home directory unavailable")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("RECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}

	// Environment can point at a backend without a config file.
	if url := v.GetString("mcp.base_url"); url != "" {
		cfg.MCP.BaseURL = url
	}
	if url := v.GetString("rest.base_url"); url != "" {
		cfg.REST.BaseURL = url
	}
	if tr := v.GetString("transport"); tr != "" {
		cfg.Transport = tr
	}

	if err := l.applyDerivedDefaults(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyDerivedDefaults fills fields whose defaults depend on the
// environment rather than constants.
func (l *Loader) applyDerivedDefaults(cfg *Config) error {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("determining data directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".recall")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "recall.log")
	}

	if cfg.Memory.UserTag == "" {
		cfg.Memory.UserTag = os.Getenv("USER")
	}

	if cfg.Memory.ProjectTag == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("deriving project tag: %w", err)
		}
		cfg.Memory.ProjectTag = filepath.Base(wd)
	}

	return nil
}

// Save writes the configuration to the config file.
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("determining config path: home directory unavailable")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("transport", cfg.Transport)
	v.Set("mcp", cfg.MCP)
	v.Set("rest", cfg.REST)
	v.Set("memory", cfg.Memory)
	v.Set("inject", cfg.Inject)
	v.Set("limits", cfg.Limits)
	v.Set("probe", cfg.Probe)
	v.Set("logging", cfg.Logging)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("writing config file: %w", err)
			}
			return nil
		}
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path.
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".recall", "recall.json")
}

// Load is a convenience function that creates a loader and loads the
// config.
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
