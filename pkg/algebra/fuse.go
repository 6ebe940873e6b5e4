package algebra

import (
	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

// FuseBuses redirects every reference to the buses in merge onto keep.
// Bus-bus switches that became self-loops are removed. With drop the merged
// buses are removed as well, together with branches now looping on keep and
// bus measurements duplicating one already present at keep. Mutates net.
func FuseBuses(net *network.Network, keep int, merge []int, drop bool) error {
	const name = "fuse_buses"
	op := begin(name, net, logging.Int("keep", keep), logging.Indices(merge), logging.Bool("drop", drop))
	if err := requireIndices(name, net, network.Bus, append([]int{keep}, merge...)); err != nil {
		return op.done(err)
	}

	mapping := make(map[int]int, len(merge))
	for _, b := range merge {
		if b != keep {
			mapping[b] = keep
		}
	}
	if len(mapping) == 0 {
		return op.done(nil)
	}
	merged := network.NewIndexSet(keys(mapping)...)

	err := network.Apply(net, func(w *network.Network) error {
		moved := measurementsAt(w, merged)
		op.rewritten = network.RedirectReferences(w, network.Bus, mapping)

		var loops []int
		for _, sw := range w.Table(network.Switch).Rows() {
			if b, ok := sw.Bus(network.ColBus); ok && sw.Ref != nil && sw.Ref.Type == network.Bus && sw.Ref.Index == b {
				loops = append(loops, sw.Index)
			}
		}
		op.drop(cascade(w, network.Switch, loops))

		if drop {
			for _, et := range network.TypesOfKind(network.KindBranch) {
				s := network.SchemaOf(et)
				var selfLoops []int
				for _, r := range w.Table(et).Rows() {
					if terms := network.SortedUnique(r.Terminals(s)); len(terms) == 1 && terms[0] == keep {
						selfLoops = append(selfLoops, r.Index)
					}
				}
				op.drop(cascade(w, et, selfLoops))
			}
			op.drop(cascade(w, network.Measurement, duplicateMeasurements(w, keep, moved)))
			op.drop(cascade(w, network.Bus, merged.Sorted()))
		}
		dedupeGroupBuses(w)
		return nil
	})
	return op.done(err)
}

// measurementsAt returns the measurements placed on any of buses.
func measurementsAt(net *network.Network, buses network.IndexSet) network.IndexSet {
	out := network.NewIndexSet()
	for _, r := range net.Table(network.Measurement).Rows() {
		if r.Ref != nil && r.Ref.Type == network.Bus && buses.Has(r.Ref.Index) {
			out.Add(r.Index)
		}
	}
	return out
}

type measKey struct {
	kind string
	side string
}

// duplicateMeasurements returns the moved measurements at bus whose type and
// side are already measured there.
func duplicateMeasurements(net *network.Network, bus int, moved network.IndexSet) []int {
	seen := make(map[measKey]bool)
	var at []*network.Row
	for _, r := range net.Table(network.Measurement).Rows() {
		if r.Ref == nil || r.Ref.Type != network.Bus || r.Ref.Index != bus {
			continue
		}
		if !moved.Has(r.Index) {
			seen[measKey{r.Text(network.ColMeasType), r.Text(network.ColSide)}] = true
			continue
		}
		at = append(at, r)
	}
	var dup []int
	for _, r := range at {
		k := measKey{r.Text(network.ColMeasType), r.Text(network.ColSide)}
		if seen[k] {
			dup = append(dup, r.Index)
			continue
		}
		seen[k] = true
	}
	return dup
}

func dedupeGroupBuses(net *network.Network) {
	for _, r := range net.Table(network.Group).Rows() {
		for i := range r.Members {
			if r.Members[i].Type != network.Bus {
				continue
			}
			seen := network.NewIndexSet()
			unique := r.Members[i].Indices[:0]
			for _, b := range r.Members[i].Indices {
				if !seen.Has(b) {
					seen.Add(b)
					unique = append(unique, b)
				}
			}
			r.Members[i].Indices = unique
		}
	}
}

func keys(m map[int]int) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
