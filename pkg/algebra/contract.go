package algebra

import (
	"fmt"
	"math"

	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

const paramTolerance = 1e-12

var lineParamColumns = []string{
	network.ColROhmPerKM, network.ColXOhmPerKM, network.ColCNFPerKM, network.ColGUSPerKM, network.ColMaxIKA,
}

// MergeParallelLine folds every line parallel to line into it. Lines are
// parallel when they share both terminals, std_type, length, per-km
// parameters and service state. With P the summed multiplicity, the kept
// line gets r,x / P, c,g * P, max_i_ka * P and parallel = 1; folded lines
// are dropped with their switches. Mutates net.
func MergeParallelLine(net *network.Network, line int) error {
	const name = "merge_parallel_line"
	op := begin(name, net, logging.Index(line))
	lines := net.Table(network.Line)
	target, ok := lines.Get(line)
	if !ok {
		return op.done(network.StructuralError(name, network.Line, line))
	}

	total := multiplicity(target)
	var peers []int
	for _, r := range lines.Rows() {
		if r.Index != line && parallelTo(target, r) {
			peers = append(peers, r.Index)
			total += multiplicity(r)
		}
	}
	if total == 1 {
		return op.done(nil)
	}

	err := network.Apply(net, func(w *network.Network) error {
		r, _ := w.Table(network.Line).Get(line)
		p := float64(total)
		scale := func(col string, factor float64) {
			if v, ok := r.Float(col); ok {
				r.Set(col, network.FloatValue(v*factor))
			}
		}
		scale(network.ColROhmPerKM, 1/p)
		scale(network.ColXOhmPerKM, 1/p)
		scale(network.ColCNFPerKM, p)
		scale(network.ColGUSPerKM, p)
		scale(network.ColMaxIKA, p)
		r.Set(network.ColParallel, network.IntValue(1))
		op.drop(cascade(w, network.Line, peers))
		return nil
	})
	return op.done(err, logging.Int("parallel", total), logging.Indices(peers))
}

func multiplicity(r *network.Row) int {
	p := int(r.FloatOr(network.ColParallel, 1))
	if p < 1 {
		return 1
	}
	return p
}

func parallelTo(a, b *network.Row) bool {
	s := network.SchemaOf(network.Line)
	ta, tb := network.SortedUnique(a.Terminals(s)), network.SortedUnique(b.Terminals(s))
	if len(ta) != len(tb) {
		return false
	}
	for i := range ta {
		if ta[i] != tb[i] {
			return false
		}
	}
	if a.Text(network.ColStdType) != b.Text(network.ColStdType) || a.InService() != b.InService() {
		return false
	}
	for _, col := range append([]string{network.ColLengthKM}, lineParamColumns...) {
		va, oka := a.Float(col)
		vb, okb := b.Float(col)
		if oka != okb || (oka && math.Abs(va-vb) > paramTolerance) {
			return false
		}
	}
	return true
}

// MergePolicy decides how plant merging treats columns some members lack.
type MergePolicy int

const (
	// SumAvailable sums the members that carry a value; the column is
	// omitted only when no member has it.
	SumAvailable MergePolicy = iota
	// RequireAll sums only when every member has a value and omits the
	// column otherwise.
	RequireAll
)

// String returns the string representation of a merge policy
func (p MergePolicy) String() string {
	switch p {
	case SumAvailable:
		return "sum_available"
	case RequireAll:
		return "require_all"
	default:
		return "unknown"
	}
}

// ParseMergePolicy parses the string form of a merge policy.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch s {
	case "", "sum_available":
		return SumAvailable, nil
	case "require_all":
		return RequireAll, nil
	default:
		return SumAvailable, fmt.Errorf("unknown plant merge policy %q", s)
	}
}

// PlantMergeOptions configures MergeSameBusGenerationPlants.
type PlantMergeOptions struct {
	Policy  MergePolicy
	AddInfo bool // flag kept rows with includes_other_plants=true
}

// ColIncludesOtherPlants marks plants that absorbed others.
const ColIncludesOtherPlants = "includes_other_plants"

var (
	plantPriority = []network.ElementType{network.ExtGrid, network.Gen, network.SGen}
	limitColumns  = []string{network.ColMaxPMW, network.ColMinPMW, network.ColMaxQMVar, network.ColMinQMVar}
)

type plant struct {
	et  network.ElementType
	row *network.Row
}

func powerColumn(et network.ElementType) string {
	if et == network.ExtGrid {
		return network.ColPDispMW
	}
	return network.ColPMW
}

// MergeSameBusGenerationPlants collapses ext_grid, gen and sgen rows sharing
// a bus into the first row of the highest-priority table (ext_grid, then gen,
// then sgen). Active power and power limits are summed, reactive power only
// when every member is an sgen. Costs of absorbed rows are dropped, other
// references move to the kept row. It reports whether anything merged.
// Mutates net.
func MergeSameBusGenerationPlants(net *network.Network, opts PlantMergeOptions) (bool, error) {
	op := begin("merge_same_bus_generation_plants", net, logging.String("policy", opts.Policy.String()))

	byBus := make(map[int][]plant)
	var busOrder []int
	for _, et := range plantPriority {
		for _, r := range net.Table(et).Rows() {
			b, ok := r.Bus(network.ColBus)
			if !ok {
				continue
			}
			if _, seen := byBus[b]; !seen {
				busOrder = append(busOrder, b)
			}
			byBus[b] = append(byBus[b], plant{et: et, row: r})
		}
	}

	var groups [][]plant
	for _, b := range busOrder {
		if len(byBus[b]) > 1 {
			groups = append(groups, byBus[b])
		}
	}
	if len(groups) == 0 {
		return false, op.done(nil)
	}

	err := network.Apply(net, func(w *network.Network) error {
		for _, g := range groups {
			op.dropped += mergePlants(w, g, opts)
		}
		return nil
	})
	if err != nil {
		return false, op.done(err)
	}
	return true, op.done(nil, logging.Count(len(groups)))
}

// mergePlants folds the plants of one bus group into the first member and
// returns the number of removed rows. Rows are looked up again in w since
// the group was collected on the caller's network.
func mergePlants(w *network.Network, g []plant, opts PlantMergeOptions) int {
	keepEt := g[0].et
	keep, _ := w.Table(keepEt).Get(g[0].row.Index)

	members := make([]plant, len(g))
	allSGen := true
	for i, p := range g {
		r, _ := w.Table(p.et).Get(p.row.Index)
		members[i] = plant{et: p.et, row: r}
		if p.et != network.SGen {
			allSGen = false
		}
	}

	sumInto(keep, powerColumn(keepEt), members, powerColumn, opts.Policy)
	for _, col := range limitColumns {
		col := col
		sumInto(keep, col, members, func(network.ElementType) string { return col }, opts.Policy)
	}
	if allSGen {
		sumInto(keep, network.ColQMVar, members, func(network.ElementType) string { return network.ColQMVar }, opts.Policy)
	}
	if opts.AddInfo {
		keep.Set(ColIncludesOtherPlants, network.BoolValue(true))
	}

	removed := 0
	for _, p := range members[1:] {
		var costs []pending
		for _, ct := range []network.ElementType{network.PolyCost, network.PwlCost} {
			var hit []int
			for _, r := range w.Table(ct).Rows() {
				if r.Ref != nil && r.Ref.Type == p.et && r.Ref.Index == p.row.Index {
					hit = append(hit, r.Index)
				}
			}
			if len(hit) > 0 {
				costs = append(costs, pending{et: ct, indices: hit})
			}
		}
		for _, c := range costs {
			for _, n := range cascade(w, c.et, c.indices) {
				removed += n
			}
		}
		network.RetargetReferences(w, p.et, keepEt, map[int]int{p.row.Index: keep.Index})
		for _, n := range cascade(w, p.et, []int{p.row.Index}) {
			removed += n
		}
	}
	return removed
}

// sumInto stores the sum of the members' values of col (named per member
// type by colOf) under target col of keep, following policy.
func sumInto(keep *network.Row, col string, members []plant, colOf func(network.ElementType) string, policy MergePolicy) {
	sum, present, missing := 0.0, 0, 0
	for _, m := range members {
		if v, ok := m.row.Float(colOf(m.et)); ok {
			sum += v
			present++
		} else {
			missing++
		}
	}
	switch {
	case present == 0:
		delete(keep.Columns, col)
	case missing > 0 && policy == RequireAll:
		delete(keep.Columns, col)
	default:
		keep.Set(col, network.FloatValue(sum))
	}
}
