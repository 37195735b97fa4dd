package config

import (
	"strings"
	"time"

	"github.com/marmos91/hsha/pkg/adapter/echo"
	"github.com/marmos91/hsha/pkg/processor"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicitly set values are kept.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyAdaptersDefaults(&cfg.Adapters)
	applyProcessorDefaults(&cfg.Processor)
}

// applyLoggingDefaults sets logging defaults and normalizes the level.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server-wide defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// A config with no echo section at all (port still 0) gets the adapter
	// enabled so that a bare `hsha start` serves something. An explicit
	// enabled: false together with a port keeps it off.
	if !cfg.Echo.Enabled && cfg.Echo.Port == 0 {
		cfg.Echo.Enabled = true
	}

	applyEchoDefaults(&cfg.Echo)
}

// applyEchoDefaults sets echo adapter defaults.
//
// The adapter applies the same defaults itself; they are repeated here so
// that generated config files and schema show concrete values.
func applyEchoDefaults(cfg *echo.Config) {
	if cfg.Port == 0 {
		cfg.Port = echo.DefaultPort
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 5
	}
	if cfg.Framing == "" {
		cfg.Framing = echo.FramingLine
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = 64 * 1024
	}
	if cfg.MaxLineLength == 0 {
		cfg.MaxLineLength = 64 * 1024
	}

	// MaxConnections, Backlog, AcceptRate and Queue.MaxDepth default to 0
	// (unlimited / system default)

	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Reply.Identity == nil {
		identity := true
		cfg.Reply.Identity = &identity
	}
}

// applyProcessorDefaults selects the echo processor and makes sure every
// option map exists.
func applyProcessorDefaults(cfg *ProcessorConfig) {
	if cfg.Type == "" {
		cfg.Type = processor.TypeEcho
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Echo == nil {
		cfg.Echo = make(map[string]any)
	}
	if cfg.Upper == nil {
		cfg.Upper = make(map[string]any)
	}
	if cfg.Reverse == nil {
		cfg.Reverse = make(map[string]any)
	}

	if _, ok := cfg.Echo["delay"]; !ok {
		cfg.Echo["delay"] = "0s"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			Echo: echo.Config{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
