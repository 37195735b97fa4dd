package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for rules that cannot
// be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.Echo.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	echoCfg := cfg.Adapters.Echo
	if echoCfg.PoolSize < 1 {
		return fmt.Errorf("adapters.echo.pool_size: must be at least 1, got %d", echoCfg.PoolSize)
	}
	if echoCfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("adapters.echo.shutdown_timeout: must be positive, got %v", echoCfg.ShutdownTimeout)
	}

	if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port == echoCfg.Port {
		return fmt.Errorf("server.metrics.port: %d is already used by the echo adapter", echoCfg.Port)
	}

	// Decoding the options now surfaces typos at load time rather than at start.
	if _, err := CreateProcessor(&cfg.Processor); err != nil {
		return fmt.Errorf("processor: %w", err)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
