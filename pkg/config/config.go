package config

import "fmt"

// Config represents the main toolmap configuration
type Config struct {
	// Registry defaults applied to every session
	Registry RegistryConfig `json:"registry" mapstructure:"registry"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// RegistryConfig holds per-session registry defaults
type RegistryConfig struct {
	MaxTools           int     `json:"max_tools" mapstructure:"max_tools"`
	MaxHistorySize     int     `json:"max_history_size" mapstructure:"max_history_size"`
	MatchThreshold     float64 `json:"match_threshold" mapstructure:"match_threshold"`
	InitTimeoutSeconds int     `json:"init_timeout_seconds" mapstructure:"init_timeout_seconds"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			MaxTools:           20,
			MaxHistorySize:     50,
			MatchThreshold:     0.3,
			InitTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Registry.MaxTools <= 0 {
		return fmt.Errorf("registry.max_tools must be positive")
	}
	if c.Registry.MaxHistorySize <= 0 {
		return fmt.Errorf("registry.max_history_size must be positive")
	}
	if c.Registry.MatchThreshold < 0 || c.Registry.MatchThreshold > 1 {
		return fmt.Errorf("registry.match_threshold must be in [0, 1]")
	}
	if c.Registry.InitTimeoutSeconds <= 0 {
		return fmt.Errorf("registry.init_timeout_seconds must be positive")
	}

	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}

	return nil
}
