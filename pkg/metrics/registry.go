// Package metrics provides metrics collection for hsha components.
//
// Prometheus export is optional. Until InitRegistry is called, constructors
// in the prometheus subpackage return no-op implementations, and an adapter
// still keeps its own in-process Stats.
//
// Usage:
//
//	metrics.InitRegistry()
//	metrics.RegisterBuildInfo(version, commit)
//
//	reactorMetrics := prometheus.NewReactorMetrics()
//	adapter := echo.New(config, reactorMetrics, proc)
package metrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is written once by InitRegistry and read-only afterwards.
	registry     *prometheus.Registry
	registryOnce sync.Once

	buildInfoOnce sync.Once
)

// InitRegistry creates the process-wide registry and registers the Go
// runtime and process collectors on it. Subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		r := prometheus.NewRegistry()
		r.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = r
	})
}

// GetRegistry returns the registry, or nil if InitRegistry has not been
// called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// RegisterBuildInfo exports hsha_build_info, a constant 1 labelled with the
// binary's version and commit. It does nothing when metrics are disabled, and
// only the first call has any effect.
func RegisterBuildInfo(version, commit string) {
	r := GetRegistry()
	if r == nil {
		return
	}

	buildInfoOnce.Do(func() {
		info := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hsha_build_info",
			Help: "Build information about the running hsha binary",
			ConstLabels: prometheus.Labels{
				"version":    version,
				"commit":     commit,
				"go_version": runtime.Version(),
			},
		})
		info.Set(1)
		r.MustRegister(info)
	})
}
