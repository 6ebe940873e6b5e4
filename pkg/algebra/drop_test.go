package algebra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-gridtopo/pkg/integrity"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

// inactiveChain builds slack bus -> bus0 (bus-bus switch, open when in
// service) -> trafo -> bus1 -> line -> bus2 with a load and an sgen, and a
// three-winding transformer from bus2. Every row takes the given service state.
func inactiveChain(t *testing.T, service bool) *network.Network {
	t.Helper()
	must := mustAdd(t)
	state := func() []network.RowOption {
		if service {
			return nil
		}
		return []network.RowOption{network.OutOfService()}
	}

	n := network.New("inactive")
	busSL := must(n.AddBus(0.4, state()...))
	must(n.AddExtGrid(busSL, 1, state()...))
	bus0 := must(n.AddBus(0.4, state()...))
	must(n.AddSwitch(busSL, bus0, network.Bus, !service))
	bus1 := must(n.AddBus(0.4, state()...))
	must(n.AddTrafo(bus0, bus1, 63, state()...))
	bus2 := must(n.AddBus(0.4, state()...))
	must(n.AddLine(bus1, bus2, 1, testLine, state()...))
	must(n.AddLoad(bus2, 0, 0, state()...))
	must(n.AddSGen(bus2, 0, 0, state()...))
	bus3 := must(n.AddBus(0.4, state()...))
	bus4 := must(n.AddBus(0.4, state()...))
	must(n.AddTrafo3W(bus2, bus3, bus4, 100))
	return n
}

func TestDropInactiveElements_Chain(t *testing.T) {
	for _, service := range []bool{false, true} {
		n := inactiveChain(t, service)
		require.NoError(t, DropInactiveElements(n, DefaultDropOptions()))

		if !service {
			assert.Equal(t, 0, n.RowCount(), "everything is out of service")
			continue
		}
		// the only in-service ext_grid and its bus survive; the open switch
		// cuts off everything else
		assert.Equal(t, 2, n.RowCount())
		assert.Equal(t, []int{0}, n.Table(network.Bus).Indices())
		assert.Equal(t, []int{0}, n.Table(network.ExtGrid).Indices())
	}
}

func TestDropInactiveElements_ClosedSwitchSupplies(t *testing.T) {
	n := inactiveChain(t, true)
	sw, _ := n.Table(network.Switch).Get(0)
	sw.Set(network.ColClosed, network.BoolValue(true))

	before := n.RowCount()
	require.NoError(t, DropInactiveElements(n, DefaultDropOptions()))
	assert.Equal(t, before, n.RowCount())

	open := inactiveChain(t, true)
	require.NoError(t, DropInactiveElements(open, DropOptions{RespectSwitches: false}))
	assert.Equal(t, before, open.RowCount(), "switch state ignored")
}

func TestDropInactiveElements_GenAtInactiveBus(t *testing.T) {
	must := mustAdd(t)
	n := network.New("gen")
	bus0 := must(n.AddBus(0.4))
	must(n.AddExtGrid(bus0, 1))
	bus1 := must(n.AddBus(0.4, network.OutOfService()))
	must(n.AddLine(bus0, bus1, 1, testLine, network.OutOfService()))
	gen0 := must(n.AddGen(bus1, 0.001, 1))

	require.NoError(t, DropInactiveElements(n, DefaultDropOptions()))
	assert.False(t, n.Table(network.Gen).Has(gen0))
	assert.Equal(t, []int{bus0}, n.Table(network.Bus).Indices())
	assert.Equal(t, 0, n.Table(network.Line).Len())
}

func TestDropInactiveElements_SlackGen(t *testing.T) {
	must := mustAdd(t)
	n := network.New("slack gen")
	b0 := must(n.AddBus(20))
	b1 := must(n.AddBus(20))
	b2 := must(n.AddBus(20))
	must(n.AddGen(b0, 1, 1, network.WithColumn(network.ColSlack, network.BoolValue(true))))
	must(n.AddLine(b0, b1, 1, testLine))
	must(n.AddLoad(b2, 1, 0))
	must(n.AddLoad(b1, 1, 0, network.OutOfService()))

	require.NoError(t, DropInactiveElements(n, DefaultDropOptions()))
	assert.Equal(t, []int{b0, b1}, n.Table(network.Bus).Indices())
	assert.Equal(t, 0, n.Table(network.Load).Len())
	assert.Empty(t, integrity.FalseElmLinksLoop(n))
}

func TestDropBuses_Cascades(t *testing.T) {
	n := switchedGrid(t)
	require.NoError(t, DropBuses(n, []int{4}))

	assert.False(t, n.Table(network.Bus).Has(4))
	assert.False(t, n.Table(network.ResultOf(network.Bus)).Has(4))
	assert.Equal(t, []int{0}, n.Table(network.Load).Indices())
	assert.Equal(t, []int{0, 1, 2, 3}, n.Table(network.Switch).Indices())
	assert.Equal(t, 0, n.Table(network.Measurement).Len(), "measured load is gone")

	g, _ := n.Table(network.Group).Get(0)
	assert.Equal(t, []int{0}, g.MemberIndices(network.Bus))
	assert.Nil(t, g.MemberIndices(network.Load))
	assert.Empty(t, integrity.FalseElmLinksLoop(n))
}

func TestDropElements_EmptiesGroups(t *testing.T) {
	must := mustAdd(t)
	n := switchedGrid(t)
	must(n.AddGroup("loads", []network.GroupMember{{Type: network.Load, Indices: []int{0}}}))

	require.NoError(t, DropElements(n, network.Load, []int{0}))
	assert.Equal(t, []int{0}, n.Table(network.Group).Indices())

	require.NoError(t, DropElements(n, network.Line, []int{0}))
	assert.Equal(t, []int{0, 3, 4}, n.Table(network.Switch).Indices())
}

func TestDropElements_Errors(t *testing.T) {
	n := switchedGrid(t)
	before := n.Clone()

	err := DropElements(n, network.Line, []int{0, 7})
	assert.True(t, network.IsStructural(err))
	err = DropElements(n, network.ResultOf(network.Bus), []int{0})
	assert.True(t, network.IsStructural(err))
	assert.True(t, integrity.NetsEqual(before, n, integrity.EqualOptions{}))
}

func TestDropElementsAtBuses(t *testing.T) {
	for _, b := range []int{0, 1, 2, 3, 4} {
		n := switchedGrid(t)
		require.NoError(t, DropElementsAtBuses(n, []int{b}))

		assert.True(t, n.Table(network.Bus).Has(b), "bus %d itself stays", b)
		for _, et := range n.Types() {
			s := network.SchemaOf(et)
			if s.Kind == network.KindMirror || !s.HasBusColumns() {
				continue
			}
			for _, r := range n.Table(et).Rows() {
				assert.NotContains(t, r.Terminals(s), b, "%s %d", et, r.Index)
				if et == network.Switch && r.Ref.Type == network.Bus {
					assert.NotEqual(t, b, r.Ref.Index)
				}
			}
		}
		assert.Empty(t, integrity.FalseElmLinksLoop(n), "bus %d", b)
	}

	n := switchedGrid(t)
	require.NoError(t, DropElementsAtBuses(n, []int{2}))
	// line 1-2 and 2-3 go, taking every gate switch on them along
	assert.Equal(t, 0, n.Table(network.Line).Len())
	assert.Equal(t, []int{0, 4}, n.Table(network.Switch).Indices())
}

func TestDropElementsAtBuses_BusMeasurements(t *testing.T) {
	must := mustAdd(t)
	n := switchedGrid(t)
	must(n.AddMeasurement("v", network.ElementRef{Type: network.Bus, Index: 2}, 1, 0.01))
	must(n.AddMeasurement("v", network.ElementRef{Type: network.Bus, Index: 0}, 1, 0.01))

	require.NoError(t, DropElementsAtBuses(n, []int{2}))
	assert.Equal(t, []int{0, 2}, n.Table(network.Measurement).Indices())
	assert.Empty(t, integrity.ScanDanglingReferences(n))
}

func TestDropInnerBranches(t *testing.T) {
	must := mustAdd(t)
	n := switchedGrid(t)
	must(n.AddTrafo3W(1, 2, 3, 10))

	lineOnly := n.Clone()
	require.NoError(t, DropInnerBranches(lineOnly, []int{0, 1}, []network.ElementType{network.Line}))
	assert.Equal(t, 2, lineOnly.Table(network.Line).Len())
	assert.Equal(t, 1, lineOnly.Table(network.Trafo).Len())

	require.NoError(t, DropInnerBranches(lineOnly, []int{1, 2}, []network.ElementType{network.Line}))
	assert.Equal(t, []int{1}, lineOnly.Table(network.Line).Indices())
	assert.Equal(t, 1, lineOnly.Table(network.Trafo).Len())

	all := n.Clone()
	require.NoError(t, DropInnerBranches(all, []int{0, 1, 2, 3}, nil))
	assert.Equal(t, 0, all.Table(network.Line).Len())
	assert.Equal(t, 0, all.Table(network.Trafo).Len())
	assert.Equal(t, 0, all.Table(network.Trafo3W).Len())
	assert.Equal(t, []int{4}, all.Table(network.Switch).Indices(), "only the bus-bus switch stays")

	err := DropInnerBranches(n.Clone(), []int{0}, []network.ElementType{network.Load})
	assert.True(t, network.IsStructural(err))
}

func TestClearResultTables(t *testing.T) {
	n := switchedGrid(t)
	assert.Equal(t, 5, ClearResultTables(n))
	assert.Equal(t, 0, n.Table(network.ResultOf(network.Bus)).Len())
	assert.Equal(t, 5, n.Table(network.Bus).Len())
	assert.Equal(t, 0, ClearResultTables(n))
}
