package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "gridtopo"

// Registry holds the engine metrics
type Registry struct {
	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	RowsRewritten     *prometheus.CounterVec
	RowsDropped       *prometheus.CounterVec

	// Integrity metrics
	DanglingReferences prometheus.Gauge
	IntegrityScans     *prometheus.CounterVec

	// Network metrics
	NetworkRows *prometheus.GaugeVec

	namespace string
	registry  *prometheus.Registry
}

var (
	defaultMu       sync.RWMutex
	defaultRegistry *Registry
	defaultSet      bool
)
