package config

import (
	"github.com/marmos91/hsha/pkg/metrics"
	promMetrics "github.com/marmos91/hsha/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// ReactorMetrics is the collector for the echo adapter (never nil, uses noop if disabled)
	ReactorMetrics metrics.ReactorMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			Server:         nil,
			ReactorMetrics: metrics.NewNoopReactorMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port:            cfg.Server.Metrics.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	return &MetricsResult{
		Server:         server,
		ReactorMetrics: promMetrics.NewReactorMetrics(),
	}
}
