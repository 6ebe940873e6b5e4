package algebra

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/cluso-gridtopo/pkg/integrity"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

func pick(rng *rand.Rand, xs []int) (int, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	return xs[rng.Intn(len(xs))], true
}

func subset(rng *rand.Rand, xs []int) []int {
	var out []int
	for _, x := range xs {
		if rng.Intn(2) == 0 {
			out = append(out, x)
		}
	}
	return out
}

// randomOp applies one randomly chosen algebra operation and returns the
// resulting network. Failed operations leave n as it was.
func randomOp(t *testing.T, n *network.Network, rng *rand.Rand) *network.Network {
	buses := n.Table(network.Bus).Indices()
	switch rng.Intn(11) {
	case 0:
		if b, ok := pick(rng, buses); ok {
			_ = DropBuses(n, []int{b})
		}
	case 1:
		keep, ok := pick(rng, buses)
		other, _ := pick(rng, buses)
		if ok {
			_ = FuseBuses(n, keep, []int{other}, rng.Intn(2) == 0)
		}
	case 2:
		_ = DropElementsAtBuses(n, subset(rng, buses))
	case 3:
		_ = DropInactiveElements(n, DropOptions{RespectSwitches: rng.Intn(2) == 0})
	case 4:
		if l, ok := pick(rng, n.Table(network.Line).Indices()); ok {
			_ = MergeParallelLine(n, l)
		}
	case 5:
		_, _ = ReplacePQElmtype(n, network.Load, network.SGen, ReplaceOptions{})
	case 6:
		opts := DefaultZeroBranchOptions()
		opts.DropAffected = rng.Intn(2) == 0
		_, _ = ReplaceZeroBranchesWithSwitches(n, opts)
	case 7:
		_, _ = MergeSameBusGenerationPlants(n, PlantMergeOptions{Policy: MergePolicy(rng.Intn(2))})
	case 8:
		if merged, err := Merge(n, feeder(t, "extra", rng.Intn(3)), DefaultMergeOptions()); err == nil {
			return merged
		}
	case 9:
		if sub, err := SelectSubnet(n, subset(rng, buses), SelectOptions{IncludeResults: true}); err == nil {
			return sub
		}
	case 10:
		_ = DropInnerBranches(n, subset(rng, buses), nil)
	}
	return n
}

func TestOperationsPreserveIntegrity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("no operation leaves a dangling reference", prop.ForAll(
		func(seed int64, steps int) bool {
			rng := rand.New(rand.NewSource(seed))
			n := switchedGrid(t)
			for i := 0; i < steps; i++ {
				n = randomOp(t, n, rng)
				if len(integrity.FalseElmLinksLoop(n)) > 0 {
					t.Logf("seed %d step %d: %v", seed, i, integrity.FalseElmLinksLoop(n))
					return false
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(1, 8),
	))

	properties.Property("selecting the left buses of a merge recovers the left network", prop.ForAll(
		func(seedA, seedB int64) bool {
			a := feeder(t, "a", 2)
			rngA := rand.New(rand.NewSource(seedA))
			for i := 0; i < 3; i++ {
				a = randomOp(t, a, rngA)
			}
			b := feeder(t, "b", 0)
			rngB := rand.New(rand.NewSource(seedB))
			for i := 0; i < 3; i++ {
				b = randomOp(t, b, rngB)
			}

			merged, err := Merge(a, b, DefaultMergeOptions())
			if err != nil {
				return false
			}
			left, err := SelectSubnet(merged, a.Table(network.Bus).Indices(), SelectOptions{IncludeResults: true})
			if err != nil {
				return false
			}
			return integrity.NetsEqual(a, left, integrity.EqualOptions{})
		},
		gen.Int64(),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
