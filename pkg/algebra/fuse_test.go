package algebra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-gridtopo/pkg/integrity"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

func TestFuseBuses_BusBusSwitch(t *testing.T) {
	must := mustAdd(t)
	n := network.New("fuse")
	b0 := must(n.AddBus(0.4))
	b1 := must(n.AddBus(0.4))
	l0 := must(n.AddLoad(b1, 0.1, 0))
	l1 := must(n.AddLoad(b1, 0.2, 0))
	must(n.AddSwitch(b0, b1, network.Bus, true))

	require.NoError(t, FuseBuses(n, b0, []int{b1}, true))

	for _, idx := range []int{l0, l1} {
		r, _ := n.Table(network.Load).Get(idx)
		assert.Equal(t, b0, r.Buses[network.ColBus])
	}
	assert.Equal(t, 0, n.Table(network.Switch).Len())
	assert.Equal(t, []int{b0}, n.Table(network.Bus).Indices())
}

// fuseGrid has buses 0..2, a line 0-1 gated at bus 1, a line 1-2 gated at
// bus 1, a bus-bus switch 0-1, one load per bus and a voltage measurement
// at bus 1.
func fuseGrid(t *testing.T) *network.Network {
	t.Helper()
	must := mustAdd(t)
	n := network.New("fuse")
	b0 := must(n.AddBus(0.4))
	b1 := must(n.AddBus(0.4))
	b2 := must(n.AddBus(0.4))
	line0 := must(n.AddLine(b0, b1, 1, testLine))
	line1 := must(n.AddLine(b1, b2, 1, testLine))
	must(n.AddSwitch(b1, line1, network.Line, true))
	must(n.AddSwitch(b0, b1, network.Bus, true))
	must(n.AddSwitch(b1, line0, network.Line, true))
	for _, b := range []int{b0, b1, b2} {
		must(n.AddLoad(b, 0.1, 0))
	}
	must(n.AddMeasurement("v", network.ElementRef{Type: network.Bus, Index: b1}, 1.02, 0.03))
	return n
}

func loadBuses(n *network.Network) []int {
	var out []int
	for _, r := range n.Table(network.Load).Rows() {
		out = append(out, r.Buses[network.ColBus])
	}
	return out
}

func TestFuseBuses_Drop(t *testing.T) {
	n := fuseGrid(t)
	require.NoError(t, FuseBuses(n, 0, []int{1}, true))

	assert.Equal(t, []int{0, 2}, n.Table(network.Bus).Indices())
	assert.Equal(t, []int{0, 0, 2}, loadBuses(n))

	// line 0-1 collapsed onto bus 0 and took its gate switch along
	assert.Equal(t, []int{1}, n.Table(network.Line).Indices())
	line1, _ := n.Table(network.Line).Get(1)
	assert.Equal(t, map[string]int{network.ColFromBus: 0, network.ColToBus: 2}, line1.Buses)

	assert.Equal(t, []int{0}, n.Table(network.Switch).Indices())
	sw, _ := n.Table(network.Switch).Get(0)
	assert.Equal(t, 0, sw.Buses[network.ColBus])

	meas, _ := n.Table(network.Measurement).Get(0)
	assert.Equal(t, network.ElementRef{Type: network.Bus, Index: 0}, *meas.Ref)
	assert.Empty(t, integrity.FalseElmLinksLoop(n))
}

func TestFuseBuses_Keep(t *testing.T) {
	n := fuseGrid(t)
	require.NoError(t, FuseBuses(n, 0, []int{1}, false))

	assert.Equal(t, []int{0, 1, 2}, n.Table(network.Bus).Indices())
	assert.Equal(t, []int{0, 0, 2}, loadBuses(n))
	assert.Equal(t, 2, n.Table(network.Line).Len(), "self-looping line survives without drop")
	// the bus-bus switch is a self-loop now and goes regardless
	assert.Equal(t, []int{0, 2}, n.Table(network.Switch).Indices())

	for _, et := range n.Types() {
		for _, r := range n.Table(et).Rows() {
			for col, b := range r.Buses {
				assert.NotEqual(t, 1, b, "%s %d.%s", et, r.Index, col)
			}
		}
	}
}

func TestFuseBuses_Idempotent(t *testing.T) {
	n := fuseGrid(t)
	before := n.Clone()

	require.NoError(t, FuseBuses(n, 1, []int{1}, true))
	assert.True(t, integrity.NetsEqual(before, n, integrity.EqualOptions{}))

	require.NoError(t, FuseBuses(n, 0, []int{1}, false))
	once := n.Clone()
	require.NoError(t, FuseBuses(n, 0, []int{1}, false))
	assert.True(t, integrity.NetsEqual(once, n, integrity.EqualOptions{}))
}

func TestFuseBuses_Transitive(t *testing.T) {
	must := mustAdd(t)
	base := network.New("chain")
	for i := 0; i < 4; i++ {
		must(base.AddBus(10))
	}
	must(base.AddLine(0, 3, 1, testLine))
	must(base.AddLine(1, 2, 1, testLine))
	must(base.AddLine(2, 3, 1, testLine))
	must(base.AddSwitch(0, 1, network.Bus, true))
	must(base.AddLoad(0, 1, 0))
	must(base.AddLoad(1, 1, 0))
	must(base.AddMeasurement("v", network.ElementRef{Type: network.Bus, Index: 0}, 1, 0.01))
	must(base.AddGroup("all", []network.GroupMember{{Type: network.Bus, Indices: []int{0, 1, 2, 3}}}))

	stepwise := base.Clone()
	require.NoError(t, FuseBuses(stepwise, 1, []int{0}, true))
	require.NoError(t, FuseBuses(stepwise, 2, []int{1}, true))

	direct := base.Clone()
	require.NoError(t, FuseBuses(direct, 2, []int{0, 1}, true))

	assert.True(t, integrity.NetsEqual(stepwise, direct, integrity.EqualOptions{}))
	assert.Equal(t, []int{2, 3}, direct.Table(network.Bus).Indices())
	assert.Equal(t, []int{0, 2}, direct.Table(network.Line).Indices())
	g, _ := direct.Table(network.Group).Get(0)
	assert.Equal(t, []int{2, 3}, g.MemberIndices(network.Bus))
}

func TestFuseBuses_DuplicateMeasurements(t *testing.T) {
	must := mustAdd(t)
	n := network.New("meas")
	b0 := must(n.AddBus(0.4))
	b1 := must(n.AddBus(0.4))
	must(n.AddMeasurement("v", network.ElementRef{Type: network.Bus, Index: b0}, 1.01, 0.01))
	must(n.AddMeasurement("v", network.ElementRef{Type: network.Bus, Index: b1}, 1.02, 0.01))
	must(n.AddMeasurement("p", network.ElementRef{Type: network.Bus, Index: b1}, 0.5, 0.01))

	require.NoError(t, FuseBuses(n, b0, []int{b1}, true))
	assert.Equal(t, []int{0, 2}, n.Table(network.Measurement).Indices())

	withoutDrop := network.New("meas")
	must(withoutDrop.AddBus(0.4))
	must(withoutDrop.AddBus(0.4))
	must(withoutDrop.AddMeasurement("v", network.ElementRef{Type: network.Bus, Index: 0}, 1.01, 0.01))
	must(withoutDrop.AddMeasurement("v", network.ElementRef{Type: network.Bus, Index: 1}, 1.02, 0.01))
	require.NoError(t, FuseBuses(withoutDrop, 0, []int{1}, false))
	assert.Equal(t, 2, withoutDrop.Table(network.Measurement).Len())
}

func TestFuseBuses_Errors(t *testing.T) {
	n := fuseGrid(t)
	before := n.Clone()

	assert.True(t, network.IsStructural(FuseBuses(n, 7, []int{1}, true)))
	assert.True(t, network.IsStructural(FuseBuses(n, 0, []int{1, 9}, true)))
	assert.True(t, integrity.NetsEqual(before, n, integrity.EqualOptions{}))
}
