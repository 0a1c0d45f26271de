// Package metrics owns the Prometheus registry of the process and its export.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry is a Prometheus registry preloaded with the Go runtime and process
// collectors.
type Registry struct {
	*prometheus.Registry
}

// NewRegistry returns a registry with the standard collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{Registry: reg}
}

// WriteTextfile writes every metric to path in the text exposition format,
// atomically, for the node exporter textfile collector. An empty path is a
// no-op.
func (r *Registry) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}

	return nil
}
