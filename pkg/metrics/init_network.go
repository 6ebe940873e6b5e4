package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initNetworkMetrics() {
	r.DanglingReferences = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: r.namespace,
			Name:      "dangling_references",
			Help:      "Dangling references found by the most recent integrity scan",
		},
	)

	r.IntegrityScans = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      "integrity_scans_total",
			Help:      "Integrity scans by result",
		},
		[]string{"result"},
	)

	r.NetworkRows = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: r.namespace,
			Name:      "network_rows",
			Help:      "Rows per element type of the most recently produced network",
		},
		[]string{"type"},
	)
}
