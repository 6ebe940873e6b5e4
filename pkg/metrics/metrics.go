package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation status labels
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// NewRegistry creates a registry under DefaultNamespace
func NewRegistry() *Registry {
	return NewRegistryWithNamespace(DefaultNamespace)
}

// NewRegistryWithNamespace creates a registry whose metric names start with namespace
func NewRegistryWithNamespace(namespace string) *Registry {
	r := &Registry{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
	}
	r.initOperationMetrics()
	r.initNetworkMetrics()
	return r
}

// DefaultRegistry returns the process-wide registry. It returns nil when
// metrics were disabled through SetDefaultRegistry(nil); every Record method
// accepts a nil receiver.
func DefaultRegistry() *Registry {
	defaultMu.RLock()
	if defaultSet {
		r := defaultRegistry
		defaultMu.RUnlock()
		return r
	}
	defaultMu.RUnlock()

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if !defaultSet {
		defaultRegistry = NewRegistry()
		defaultSet = true
	}
	return defaultRegistry
}

// SetDefaultRegistry replaces the process-wide registry; nil disables recording.
func SetDefaultRegistry(r *Registry) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = r
	defaultSet = true
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// RecordOperation records the outcome and duration of one engine operation
func (r *Registry) RecordOperation(operation string, err error, duration time.Duration) {
	if r == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	r.OperationsTotal.WithLabelValues(operation, status).Inc()
	r.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRewritten counts reference values rewritten by operation
func (r *Registry) RecordRewritten(operation string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.RowsRewritten.WithLabelValues(operation).Add(float64(n))
}

// RecordDropped counts rows removed by operation
func (r *Registry) RecordDropped(operation string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.RowsDropped.WithLabelValues(operation).Add(float64(n))
}

// RecordIntegrityScan stores the dangling reference count of a scan
func (r *Registry) RecordIntegrityScan(dangling int) {
	if r == nil {
		return
	}
	r.DanglingReferences.Set(float64(dangling))
	result := "clean"
	if dangling > 0 {
		result = "dangling"
	}
	r.IntegrityScans.WithLabelValues(result).Inc()
}

// SetNetworkRows publishes the row count of each element type
func (r *Registry) SetNetworkRows(rows map[string]int) {
	if r == nil {
		return
	}
	r.NetworkRows.Reset()
	for et, n := range rows {
		r.NetworkRows.WithLabelValues(et).Set(float64(n))
	}
}
