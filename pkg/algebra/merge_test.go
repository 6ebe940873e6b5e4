package algebra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-gridtopo/pkg/integrity"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

func mustAdd(t *testing.T) func(int, error) int {
	return func(idx int, err error) int {
		t.Helper()
		require.NoError(t, err)
		return idx
	}
}

var testLine = network.LineParams{RPerKM: 0.2, XPerKM: 0.4, CPerKM: 10, MaxIKA: 0.1}

// feeder builds buses 0..2 joined by lines 0-1 and 1-2, with a load at
// loadBus, a bus-bus switch 0-1 and a voltage measurement at bus 2.
func feeder(t *testing.T, name string, loadBus int) *network.Network {
	t.Helper()
	must := mustAdd(t)
	n := network.New(name)
	for i := 0; i < 3; i++ {
		must(n.AddBus(20, network.WithName(name)))
	}
	must(n.AddLine(0, 1, 1, testLine))
	must(n.AddLine(1, 2, 1, testLine))
	must(n.AddLoad(loadBus, 1, 0.2))
	must(n.AddSwitch(0, 1, network.Bus, true))
	must(n.AddMeasurement("v", network.ElementRef{Type: network.Bus, Index: 2}, 1, 0.01))
	return n
}

func TestMerge_RenumbersCollidingBuses(t *testing.T) {
	a := feeder(t, "a", 2)
	b := feeder(t, "b", 1)
	aBefore, bBefore := a.Clone(), b.Clone()

	merged, err := Merge(a, b, DefaultMergeOptions())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, merged.Table(network.Bus).Indices())
	for _, idx := range []int{3, 4, 5} {
		r, _ := merged.Table(network.Bus).Get(idx)
		assert.Equal(t, "b", r.Text(network.ColName))
	}

	assert.Equal(t, []int{0, 1, 2, 3}, merged.Table(network.Line).Indices())
	l2, _ := merged.Table(network.Line).Get(2)
	assert.Equal(t, map[string]int{network.ColFromBus: 3, network.ColToBus: 4}, l2.Buses)
	l3, _ := merged.Table(network.Line).Get(3)
	assert.Equal(t, map[string]int{network.ColFromBus: 4, network.ColToBus: 5}, l3.Buses)

	load, _ := merged.Table(network.Load).Get(1)
	assert.Equal(t, 4, load.Buses[network.ColBus])

	sw, _ := merged.Table(network.Switch).Get(1)
	assert.Equal(t, 3, sw.Buses[network.ColBus])
	assert.Equal(t, network.ElementRef{Type: network.Bus, Index: 4}, *sw.Ref)

	meas, _ := merged.Table(network.Measurement).Get(1)
	assert.Equal(t, network.ElementRef{Type: network.Bus, Index: 5}, *meas.Ref)

	assert.Empty(t, integrity.FalseElmLinksLoop(merged))
	assert.True(t, integrity.NetsEqual(a, aBefore, integrity.EqualOptions{}), "a must not change")
	assert.True(t, integrity.NetsEqual(b, bBefore, integrity.EqualOptions{}), "b must not change")
}

func TestMerge_KeepsNonCollidingIndices(t *testing.T) {
	must := mustAdd(t)
	a := network.New("a")
	must(a.AddBus(20, network.WithIndex(0)))
	must(a.AddBus(20, network.WithIndex(3)))
	must(a.AddLoad(0, 1, 0))
	must(a.AddLoad(3, 1, 0))
	must(a.AddPwlCost(network.ElementRef{Type: network.Load, Index: 0}, "p"))
	must(a.AddPwlCost(network.ElementRef{Type: network.Load, Index: 1}, "p"))

	b := network.New("b")
	must(b.AddBus(20, network.WithIndex(1)))
	must(b.AddBus(20, network.WithIndex(3)))
	must(b.AddBus(20, network.WithIndex(4)))
	must(b.AddLoad(3, 1, 0))
	must(b.AddSGen(4, 1, 0))
	must(b.AddPwlCost(network.ElementRef{Type: network.Load, Index: 0}, "p", network.WithIndex(5)))
	must(b.AddPwlCost(network.ElementRef{Type: network.SGen, Index: 0}, "p"))

	merged, err := Merge(a, b, DefaultMergeOptions())
	require.NoError(t, err)

	// only bus 3 collides; it moves above the largest index of either side
	assert.Equal(t, []int{0, 3, 1, 5, 4}, merged.Table(network.Bus).Indices())
	bLoad, _ := merged.Table(network.Load).Get(2)
	assert.Equal(t, 5, bLoad.Buses[network.ColBus])

	assert.Equal(t, []int{0, 1, 5, 6}, merged.Table(network.PwlCost).Indices())
	var targets []network.ElementRef
	for _, r := range merged.Table(network.PwlCost).Rows() {
		targets = append(targets, *r.Ref)
	}
	assert.Equal(t, []network.ElementRef{
		{Type: network.Load, Index: 0},
		{Type: network.Load, Index: 1},
		{Type: network.Load, Index: 2},
		{Type: network.SGen, Index: 0},
	}, targets)
}

func TestMerge_Groups(t *testing.T) {
	must := mustAdd(t)
	a := feeder(t, "a", 2)
	must(a.AddGroup("group of a", []network.GroupMember{{Type: network.Bus, Indices: []int{0, 2}}}))

	b := feeder(t, "b", 0)
	must(b.AddGroup("group1 of b", []network.GroupMember{
		{Type: network.Bus, Indices: []int{1}},
		{Type: network.Load, Indices: []int{0}},
	}))
	must(b.AddGroup("group2 of b", []network.GroupMember{{Type: network.Line, Indices: []int{1}}}, network.WithIndex(4)))

	merged, err := Merge(a, b, DefaultMergeOptions())
	require.NoError(t, err)

	groups := merged.Table(network.Group)
	assert.ElementsMatch(t, []int{0, 5, 4}, groups.Indices())

	g0, _ := groups.Get(0)
	assert.Equal(t, []int{0, 2}, g0.MemberIndices(network.Bus))
	g5, _ := groups.Get(5)
	assert.Equal(t, []int{4}, g5.MemberIndices(network.Bus))
	assert.Equal(t, []int{1}, g5.MemberIndices(network.Load))
	g4, _ := groups.Get(4)
	assert.Equal(t, []int{3}, g4.MemberIndices(network.Line))
}

func TestMerge_Identity(t *testing.T) {
	a := feeder(t, "a", 2)

	merged, err := Merge(a, network.New("empty"), DefaultMergeOptions())
	require.NoError(t, err)
	assert.True(t, integrity.NetsEqual(a, merged, integrity.EqualOptions{}))

	merged, err = Merge(network.New("empty"), a, DefaultMergeOptions())
	require.NoError(t, err)
	assert.True(t, integrity.NetsEqual(a, merged, integrity.EqualOptions{}))
}

func TestMerge_SelectRecoversInputs(t *testing.T) {
	a := feeder(t, "a", 2)
	b := feeder(t, "b", 1)

	merged, err := Merge(a, b, DefaultMergeOptions())
	require.NoError(t, err)

	left, err := SelectSubnet(merged, a.Table(network.Bus).Indices(), SelectOptions{})
	require.NoError(t, err)
	assert.True(t, integrity.NetsEqual(a, left, integrity.EqualOptions{}))

	right, err := SelectSubnet(merged, []int{3, 4, 5}, SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, right.Table(network.Bus).Len())
	assert.Equal(t, 2, right.Table(network.Line).Len())
	assert.Equal(t, 1, right.Table(network.Switch).Len())
	assert.Empty(t, integrity.FalseElmLinksLoop(right))
}

func TestMerge_ValidateReportsDanglingReferences(t *testing.T) {
	must := mustAdd(t)
	a := feeder(t, "a", 2)

	b := network.New("b")
	must(b.AddBus(20, network.WithIndex(10)))
	must(b.AddSGen(10, 1, 0))
	b.Table(network.Bus).Remove(10)

	_, err := Merge(a, b, MergeOptions{Validate: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrDanglingReference)

	merged, err := Merge(a, b, DefaultMergeOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{0}, integrity.FalseElmLinks(merged, network.SGen))
}

func TestMerge_MirrorsFollowRenumbering(t *testing.T) {
	a := feeder(t, "a", 2)
	b := feeder(t, "b", 1)
	res := b.Ensure(network.ResultOf(network.Bus))
	for i := 0; i < 3; i++ {
		require.NoError(t, res.Append(network.NewRow(i).Set(network.ColVmPU, network.FloatValue(1+float64(i)/100))))
	}

	merged, err := Merge(a, b, DefaultMergeOptions())
	require.NoError(t, err)

	resBus := merged.Table(network.ResultOf(network.Bus))
	assert.Equal(t, []int{3, 4, 5}, resBus.Indices())
	r, _ := resBus.Get(5)
	assert.InDelta(t, 1.02, r.FloatOr(network.ColVmPU, 0), 1e-12)
}

func TestMerge_ValidateReportsMisplacedGateSwitch(t *testing.T) {
	a := feeder(t, "a", 2)
	b := feeder(t, "b", 1)
	sw := network.NewRow(b.Table(network.Switch).NextIndex())
	sw.Buses[network.ColBus] = 2
	sw.Ref = &network.ElementRef{Type: network.Line, Index: 0}
	sw.Set(network.ColClosed, network.BoolValue(true))
	require.NoError(t, b.Table(network.Switch).Append(sw))

	_, err := Merge(a, b, MergeOptions{Validate: true})
	require.Error(t, err)
	assert.True(t, network.IsInvalidTopology(err))

	_, err = Merge(a, feeder(t, "c", 0), MergeOptions{Validate: true})
	assert.NoError(t, err)
}

func TestMerge_RejectsOrphanMirrorRows(t *testing.T) {
	a := feeder(t, "a", 2)
	require.NoError(t, a.Ensure(network.ResultOf(network.Line)).Append(network.NewRow(5)))
	b := feeder(t, "b", 1)
	require.NoError(t, b.Ensure(network.ResultOf(network.Line)).Append(network.NewRow(5)))
	before := b.Clone()

	_, err := Merge(a, b, DefaultMergeOptions())
	require.Error(t, err)
	assert.True(t, network.IsStructural(err))
	assert.False(t, network.IsConflict(err))
	var nerr *network.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, network.ResultOf(network.Line), nerr.Type)
	assert.Equal(t, []int{5}, nerr.Indices)
	assert.True(t, integrity.NetsEqual(before, b, integrity.EqualOptions{}))

	_, err = Merge(b, a, DefaultMergeOptions())
	assert.True(t, network.IsStructural(err), "orphans of the second network are rejected")
}
