package topology

import (
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

// ConnectedBuses returns the buses reachable from seeds over one or more
// hops, excluding the seeds, sorted ascending.
func ConnectedBuses(n *network.Network, seeds []int, opts Options) []int {
	return Build(n, opts).ConnectedBuses(seeds)
}

// ConnectedBuses is the graph form of the package-level query.
func (g *Graph) ConnectedBuses(seeds []int) []int {
	return withoutSeeds(g.Reachable(seeds), seeds)
}

// AdjacentBuses returns the buses exactly one hop from any seed, excluding
// the seeds, sorted ascending.
func AdjacentBuses(n *network.Network, seeds []int, opts Options) []int {
	return Build(n, opts).AdjacentBuses(seeds)
}

// AdjacentBuses is the graph form of the package-level query.
func (g *Graph) AdjacentBuses(seeds []int) []int {
	var out []int
	for _, s := range seeds {
		if !g.buses[s] {
			continue
		}
		out = append(out, g.Neighbors(s)...)
	}
	return withoutSeeds(network.SortedUnique(out), seeds)
}

// Islands returns the connected components of the live buses of n.
func Islands(n *network.Network, opts Options) [][]int {
	return Build(n, opts).Components()
}

func withoutSeeds(buses, seeds []int) []int {
	skip := network.NewIndexSet(seeds...)
	out := make([]int, 0, len(buses))
	for _, b := range buses {
		if !skip.Has(b) {
			out = append(out, b)
		}
	}
	return out
}

// ConnectedElements returns the elements of type et that touch one of the
// seed buses directly. Branch terminals behind an open switch do not count
// when switches are respected, and out-of-service rows are skipped when
// service state is respected. Measurements match when they measure a seed
// bus; switches match by their bus column or, for bus-bus switches, by
// either end.
func ConnectedElements(n *network.Network, et network.ElementType, seeds []int, opts Options) ([]int, error) {
	s := network.SchemaOf(et)
	if !s.HasBusColumns() && et != network.Measurement {
		return nil, network.NewError("connected_elements").Element(et).
			Context("element type has no bus reference").Cause(network.ErrStructural).Err()
	}

	seed := network.NewIndexSet(seeds...)
	open := openGates(n, opts)
	out := make([]int, 0)

	for _, r := range n.Table(et).Rows() {
		if opts.RespectInService && !r.InService() {
			continue
		}
		if touches(r, s, seed, open) {
			out = append(out, r.Index)
		}
	}
	sort.Ints(out)
	return out, nil
}

func touches(r *network.Row, s network.Schema, seed network.IndexSet, open map[gate]bool) bool {
	switch s.Kind {
	case network.KindElementRef:
		return r.Ref != nil && r.Ref.Type == network.Bus && seed.Has(r.Ref.Index)
	case network.KindSwitch:
		if b, ok := r.Buses[network.ColBus]; ok && seed.Has(b) {
			return true
		}
		return r.Ref != nil && r.Ref.Type == network.Bus && seed.Has(r.Ref.Index)
	case network.KindBranch:
		for _, col := range s.BusColumns {
			b, ok := r.Buses[col]
			if ok && seed.Has(b) && !open[gate{bus: b, et: s.Type, element: r.Index}] {
				return true
			}
		}
		return false
	default:
		for _, col := range s.BusColumns {
			if b, ok := r.Buses[col]; ok && seed.Has(b) {
				return true
			}
		}
		return false
	}
}

// ConnectedElementsDict runs ConnectedElements for every table of n with bus
// references (and measurements) and adds the adjacent buses under the bus
// key. Types without a match are omitted.
func ConnectedElementsDict(n *network.Network, seeds []int, opts Options) map[network.ElementType][]int {
	out := make(map[network.ElementType][]int)
	for _, et := range n.Types() {
		s := network.SchemaOf(et)
		if s.Kind == network.KindMirror || (!s.HasBusColumns() && et != network.Measurement) {
			continue
		}
		elements, err := ConnectedElements(n, et, seeds, opts)
		if err != nil || len(elements) == 0 {
			continue
		}
		out[et] = elements
	}
	if buses := AdjacentBuses(n, seeds, opts); len(buses) > 0 {
		out[network.Bus] = buses
	}
	return out
}

// NextBus returns the terminal of a two-terminal element opposite fromBus.
func NextBus(n *network.Network, fromBus, element int, et network.ElementType) (int, error) {
	const op = "next_bus"

	var a, b int
	switch et {
	case network.Line, network.Impedance, network.DCLine, network.Trafo, network.Switch:
	default:
		return 0, network.InvalidTopologyError(op, et, element, "not a two-terminal element type")
	}

	r, ok := n.Table(et).Get(element)
	if !ok {
		return 0, network.StructuralError(op, et, element)
	}

	switch et {
	case network.Line, network.Impedance, network.DCLine:
		a, b = r.Buses[network.ColFromBus], r.Buses[network.ColToBus]
	case network.Trafo:
		a, b = r.Buses[network.ColHVBus], r.Buses[network.ColLVBus]
	case network.Switch:
		if r.Ref == nil || r.Ref.Type != network.Bus {
			return 0, network.InvalidTopologyError(op, et, element, "switch does not connect two buses")
		}
		a, b = r.Buses[network.ColBus], r.Ref.Index
	}

	switch fromBus {
	case a:
		return b, nil
	case b:
		return a, nil
	default:
		return 0, network.InvalidTopologyError(op, et, element,
			fmt.Sprintf("bus %d is not a terminal", fromBus))
	}
}
