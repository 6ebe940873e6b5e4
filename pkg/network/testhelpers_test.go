package network

import (
	"testing"
)

// mustAdd returns a checker for the (index, error) results of the builders.
func mustAdd(t *testing.T) func(int, error) int {
	return func(idx int, err error) int {
		t.Helper()
		if err != nil {
			t.Fatalf("builder failed: %v", err)
		}
		return idx
	}
}

// newTestNetwork builds a small meshed network:
//
//	bus 0 -- line 0 -- bus 1 -- trafo 0 -- bus 2
//	bus 1 -- switch(b) -- bus 3, load 0 at bus 2, sgen 0 at bus 3
//	switch 1 gates line 0 at bus 0, measurement on line 0, group over buses
func newTestNetwork(t *testing.T) *Network {
	t.Helper()
	must := mustAdd(t)
	n := New("test")
	for i := 0; i < 4; i++ {
		must(n.AddBus(20))
	}
	must(n.AddLine(0, 1, 1.5, LineParams{RPerKM: 0.1, XPerKM: 0.2, MaxIKA: 0.4}))
	must(n.AddTrafo(1, 2, 25))
	must(n.AddSwitch(1, 3, Bus, true))
	must(n.AddSwitch(0, 0, Line, true))
	must(n.AddLoad(2, 1.0, 0.2))
	must(n.AddSGen(3, 0.5, 0))
	must(n.AddMeasurement("i", ElementRef{Type: Line, Index: 0}, 0.1, 0.01))
	must(n.AddGroup("g", []GroupMember{{Type: Bus, Indices: []int{0, 2}}}))

	res := n.Ensure(ResultOf(Bus))
	for _, b := range n.Table(Bus).Indices() {
		r := NewRow(b).Set(ColVmPU, FloatValue(1.0+float64(b)/100))
		if err := res.Append(r); err != nil {
			t.Fatal(err)
		}
	}
	return n
}
