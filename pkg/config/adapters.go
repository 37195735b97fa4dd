package config

import (
	"fmt"

	"github.com/marmos91/hsha/pkg/adapter"
	"github.com/marmos91/hsha/pkg/adapter/echo"
	"github.com/marmos91/hsha/pkg/metrics"
	"github.com/marmos91/hsha/pkg/processor"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// Parameters:
//   - cfg: The complete hsha configuration
//   - reactorMetrics: Optional metrics collector (nil = no metrics)
//   - proc: The processor run by the adapter's workers
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config, reactorMetrics metrics.ReactorMetrics, proc processor.Processor) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.Echo.Enabled {
		adapters = append(adapters, echo.New(cfg.Adapters.Echo, reactorMetrics, proc))
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
