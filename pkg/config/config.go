package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/hsha/pkg/adapter/echo"
	"github.com/marmos91/hsha/pkg/processor"
	"github.com/spf13/viper"
)

// Config represents the complete hsha configuration.
//
// The configuration is organized into four sections:
//   - Logging: log level, format and destination
//   - Server: process-wide settings (shutdown, metrics endpoint)
//   - Adapters: network front ends (currently the echo server)
//   - Processor: the routine workers run for every framed request
//
// Configuration sources (in order of precedence, highest to lowest):
//  1. CLI flags (applied by cmd/hsha after Load)
//  2. Environment variables (HSHA_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Adapters contains the network front end configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`

	// Processor selects and configures the processing routine
	Processor ProcessorConfig `mapstructure:"processor"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains process-wide server settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for all adapters to stop
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the /metrics endpoint
	Enabled bool `mapstructure:"enabled"`

	// Port is the HTTP port serving /metrics
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// AdaptersConfig contains the per-adapter configurations.
type AdaptersConfig struct {
	// Echo is the half-sync/half-async echo server
	Echo echo.Config `mapstructure:"echo"`
}

// ProcessorConfig selects the processing routine and holds the options of
// each type.
//
// Only the map matching Type is used. Keeping one map per type lets a config
// file carry settings for several processors and switch between them by
// changing Type alone.
type ProcessorConfig struct {
	// Type selects the processor
	// Valid values: echo, upper, reverse
	Type string `mapstructure:"type" validate:"required,oneof=echo upper reverse"`

	// Echo options (delay)
	Echo map[string]any `mapstructure:"echo"`

	// Upper options (delay)
	Upper map[string]any `mapstructure:"upper"`

	// Reverse options (delay)
	Reverse map[string]any `mapstructure:"reverse"`
}

// Options returns the option map for the selected processor type.
func (c *ProcessorConfig) Options() map[string]any {
	switch c.Type {
	case processor.TypeEcho:
		return c.Echo
	case processor.TypeUpper:
		return c.Upper
	case processor.TypeReverse:
		return c.Reverse
	default:
		return nil
	}
}

// Load loads configuration from file and environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (HSHA_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the HSHA_ prefix and underscores,
	// e.g. HSHA_ADAPTERS_ECHO_POOL_SIZE=8
	v.SetEnvPrefix("HSHA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/hsha/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file: defaults and environment only
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hsha")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "hsha")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
