package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the configuration for metrics collection and export.
type Config struct {
	Enabled bool
	Address string
	Path    string
}

// NoopServer is a no-op implementation of the Server interface.
// It does nothing when started or shut down.
type NoopServer struct{}

// Start is a no-op that returns immediately.
func (n *NoopServer) Start(ctx context.Context) error {
	return nil
}

// Shutdown is a no-op that returns immediately.
func (n *NoopServer) Shutdown(ctx context.Context) error {
	return nil
}

// New creates a Collector and Server based on the provided configuration.
// When cfg.Enabled is false both are no-ops and the registry is nil.
func New(cfg Config) (Collector, Server, *prometheus.Registry) {
	if !cfg.Enabled {
		return &NoopCollector{}, &NoopServer{}, nil
	}

	reg := prometheus.NewRegistry()
	collector := NewPrometheusCollector(reg)
	return collector, NewPrometheusServer(cfg.Address, cfg.Path, reg), reg
}
