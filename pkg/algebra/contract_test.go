package algebra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-gridtopo/pkg/integrity"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

func TestMergeParallelLine(t *testing.T) {
	must := mustAdd(t)
	n := network.New("parallel")
	b0 := must(n.AddBus(20))
	b1 := must(n.AddBus(20))
	double := testLine
	double.Parallel = 2
	l0 := must(n.AddLine(b0, b1, 2, double))
	l1 := must(n.AddLine(b1, b0, 2, testLine))
	l2 := must(n.AddLine(b0, b1, 3, testLine))
	must(n.AddSwitch(b0, l1, network.Line, true))

	require.NoError(t, MergeParallelLine(n, l0))

	assert.Equal(t, []int{l0, l2}, n.Table(network.Line).Indices())
	assert.Equal(t, 0, n.Table(network.Switch).Len(), "switch of the folded line is dropped")

	r, _ := n.Table(network.Line).Get(l0)
	assert.InDelta(t, 0.2/3, r.FloatOr(network.ColROhmPerKM, 0), 1e-12)
	assert.InDelta(t, 0.4/3, r.FloatOr(network.ColXOhmPerKM, 0), 1e-12)
	assert.InDelta(t, 30, r.FloatOr(network.ColCNFPerKM, 0), 1e-9)
	assert.InDelta(t, 0.3, r.FloatOr(network.ColMaxIKA, 0), 1e-12)
	assert.Equal(t, 1.0, r.FloatOr(network.ColParallel, 0))
	assert.Equal(t, 2.0, r.FloatOr(network.ColLengthKM, 0))

	untouched, _ := n.Table(network.Line).Get(l2)
	assert.Equal(t, 0.2, untouched.FloatOr(network.ColROhmPerKM, 0))
}

func TestMergeParallelLine_Single(t *testing.T) {
	must := mustAdd(t)
	n := network.New("single")
	must(n.AddBus(20))
	must(n.AddBus(20))
	l0 := must(n.AddLine(0, 1, 1, testLine))
	must(n.AddLine(0, 1, 1, testLine, network.OutOfService()))
	before := n.Clone()

	require.NoError(t, MergeParallelLine(n, l0))
	assert.True(t, integrity.NetsEqual(before, n, integrity.EqualOptions{}), "service state differs")

	assert.True(t, network.IsStructural(MergeParallelLine(n, 5)))
}

// plants builds an ext_grid, a gen and an sgen at bus 0, two sgens at bus 1
// and a lone gen at bus 2.
func plants(t *testing.T) *network.Network {
	t.Helper()
	must := mustAdd(t)
	n := network.New("plants")
	for i := 0; i < 3; i++ {
		must(n.AddBus(110))
	}
	must(n.AddExtGrid(0, 1.0, network.WithColumn(network.ColPDispMW, network.FloatValue(10))))
	gen0 := must(n.AddGen(0, 20, 1.0, network.WithColumn(network.ColMaxPMW, network.FloatValue(30))))
	must(n.AddGen(2, 7, 1.0))
	must(n.AddSGen(0, 5, 1))
	must(n.AddSGen(1, 1, 2, network.WithColumn(network.ColMaxQMVar, network.FloatValue(3))))
	sgen2 := must(n.AddSGen(1, 2, 4))

	must(n.AddMeasurement("p", network.ElementRef{Type: network.SGen, Index: sgen2}, 2, 0.1))
	must(n.AddPolyCost(network.ElementRef{Type: network.Gen, Index: gen0}, 30))
	must(n.AddPolyCost(network.ElementRef{Type: network.ExtGrid, Index: 0}, 50))
	return n
}

func TestMergeSameBusGenerationPlants(t *testing.T) {
	n := plants(t)

	merged, err := MergeSameBusGenerationPlants(n, PlantMergeOptions{AddInfo: true})
	require.NoError(t, err)
	require.True(t, merged)

	assert.Equal(t, []int{0}, n.Table(network.ExtGrid).Indices())
	assert.Equal(t, []int{1}, n.Table(network.Gen).Indices())
	assert.Equal(t, []int{1}, n.Table(network.SGen).Indices())

	ext, _ := n.Table(network.ExtGrid).Get(0)
	assert.Equal(t, 35.0, ext.FloatOr(network.ColPDispMW, 0))
	assert.Equal(t, 30.0, ext.FloatOr(network.ColMaxPMW, 0))
	_, hasQ := ext.Get(network.ColQMVar)
	assert.False(t, hasQ, "reactive power is only summed across sgens")
	assert.True(t, ext.Flag(ColIncludesOtherPlants, false))

	sgen, _ := n.Table(network.SGen).Get(1)
	assert.Equal(t, 3.0, sgen.FloatOr(network.ColPMW, 0))
	assert.Equal(t, 6.0, sgen.FloatOr(network.ColQMVar, 0))
	assert.Equal(t, 3.0, sgen.FloatOr(network.ColMaxQMVar, 0))
	_, hasMinQ := sgen.Get(network.ColMinQMVar)
	assert.False(t, hasMinQ)

	lone, _ := n.Table(network.Gen).Get(1)
	assert.False(t, lone.Flag(ColIncludesOtherPlants, false))

	meas, _ := n.Table(network.Measurement).Get(0)
	assert.Equal(t, network.ElementRef{Type: network.SGen, Index: 1}, *meas.Ref)
	assert.Equal(t, []int{1}, n.Table(network.PolyCost).Indices(), "cost of the absorbed gen is dropped")
	assert.Empty(t, integrity.FalseElmLinksLoop(n))

	again, err := MergeSameBusGenerationPlants(n, PlantMergeOptions{})
	require.NoError(t, err)
	assert.False(t, again)
}

func TestMergeSameBusGenerationPlants_RequireAll(t *testing.T) {
	n := plants(t)

	merged, err := MergeSameBusGenerationPlants(n, PlantMergeOptions{Policy: RequireAll})
	require.NoError(t, err)
	require.True(t, merged)

	ext, _ := n.Table(network.ExtGrid).Get(0)
	assert.Equal(t, 35.0, ext.FloatOr(network.ColPDispMW, 0))
	_, hasMax := ext.Get(network.ColMaxPMW)
	assert.False(t, hasMax, "only the gen carried max_p_mw")
	_, flagged := ext.Get(ColIncludesOtherPlants)
	assert.False(t, flagged)

	sgen, _ := n.Table(network.SGen).Get(1)
	_, hasMaxQ := sgen.Get(network.ColMaxQMVar)
	assert.False(t, hasMaxQ)
	assert.Equal(t, 6.0, sgen.FloatOr(network.ColQMVar, 0))
}

func TestParseMergePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    MergePolicy
		wantErr bool
	}{
		{"", SumAvailable, false},
		{"sum_available", SumAvailable, false},
		{"require_all", RequireAll, false},
		{"sum", SumAvailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMergePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			back, err := ParseMergePolicy(got.String())
			require.NoError(t, err)
			assert.Equal(t, got, back)
		})
	}
	assert.Equal(t, "unknown", MergePolicy(9).String())
}
