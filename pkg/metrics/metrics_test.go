package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter != nil {
		return metric.Counter.GetValue()
	}
	if metric.Gauge != nil {
		return metric.Gauge.GetValue()
	}
	t.Fatal("metric is neither counter nor gauge")
	return 0
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.OperationsTotal == nil || r.OperationDuration == nil || r.RowsRewritten == nil ||
		r.RowsDropped == nil || r.DanglingReferences == nil || r.NetworkRows == nil {
		t.Fatal("metrics not initialized")
	}
	if r.GetPrometheusRegistry() == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestRecordOperation(t *testing.T) {
	r := NewRegistry()

	r.RecordOperation("merge", nil, 2*time.Millisecond)
	r.RecordOperation("merge", nil, 3*time.Millisecond)
	r.RecordOperation("merge", errors.New("conflict"), time.Millisecond)

	success, err := r.OperationsTotal.GetMetricWithLabelValues("merge", StatusSuccess)
	if err != nil {
		t.Fatal(err)
	}
	if got := counterValue(t, success); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	failed, _ := r.OperationsTotal.GetMetricWithLabelValues("merge", StatusError)
	if got := counterValue(t, failed); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestRecordRowsAndScans(t *testing.T) {
	r := NewRegistry()

	r.RecordRewritten("fuse_buses", 5)
	r.RecordRewritten("fuse_buses", 0)
	r.RecordDropped("drop_inactive_elements", 3)
	r.RecordIntegrityScan(4)

	c, _ := r.RowsRewritten.GetMetricWithLabelValues("fuse_buses")
	if got := counterValue(t, c); got != 5 {
		t.Errorf("rewritten = %v, want 5", got)
	}
	d, _ := r.RowsDropped.GetMetricWithLabelValues("drop_inactive_elements")
	if got := counterValue(t, d); got != 3 {
		t.Errorf("dropped = %v, want 3", got)
	}
	if got := counterValue(t, r.DanglingReferences); got != 4 {
		t.Errorf("dangling = %v, want 4", got)
	}
	scans, _ := r.IntegrityScans.GetMetricWithLabelValues("dangling")
	if got := counterValue(t, scans); got != 1 {
		t.Errorf("scans = %v, want 1", got)
	}
}

func TestSetNetworkRows(t *testing.T) {
	r := NewRegistry()
	r.SetNetworkRows(map[string]int{"bus": 4, "line": 3})
	r.SetNetworkRows(map[string]int{"bus": 6})

	families, err := r.GetPrometheusRegistry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != "gridtopo_network_rows" {
			continue
		}
		if len(mf.GetMetric()) != 1 {
			t.Errorf("stale label values kept: %d series", len(mf.GetMetric()))
		}
		if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 6 {
			t.Errorf("bus rows = %v, want 6", v)
		}
		return
	}
	t.Error("gridtopo_network_rows not gathered")
}

func TestNamespace(t *testing.T) {
	r := NewRegistryWithNamespace("grid_test")
	r.RecordOperation("select_subnet", nil, time.Millisecond)

	families, err := r.GetPrometheusRegistry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "grid_test_") {
			t.Errorf("metric %s lacks namespace", mf.GetName())
		}
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	r.RecordOperation("merge", nil, time.Millisecond)
	r.RecordRewritten("merge", 1)
	r.RecordDropped("merge", 1)
	r.RecordIntegrityScan(1)
	r.SetNetworkRows(map[string]int{"bus": 1})
}

func TestDefaultRegistry(t *testing.T) {
	r1 := DefaultRegistry()
	if r1 == nil || r1 != DefaultRegistry() {
		t.Fatal("DefaultRegistry() should return one shared instance")
	}

	SetDefaultRegistry(nil)
	if DefaultRegistry() != nil {
		t.Error("SetDefaultRegistry(nil) should disable recording")
	}
	SetDefaultRegistry(r1)
}
