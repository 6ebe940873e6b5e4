package topology

import (
	"container/list"
	"sort"

	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

// Options selects which state filters apply while building the bus graph.
type Options struct {
	RespectSwitches  bool // open switches break connections
	RespectInService bool // out-of-service elements and buses are ignored
}

// DefaultOptions respects both switch and service state.
func DefaultOptions() Options {
	return Options{RespectSwitches: true, RespectInService: true}
}

// Edge is one adjacency between two buses contributed by a branch element
// or a bus-bus switch.
type Edge struct {
	From int
	To   int
	Via  network.ElementRef
}

type gate struct {
	bus     int
	et      network.ElementType
	element int
}

// Graph is an undirected adjacency view over the buses of one network.
type Graph struct {
	opts  Options
	buses map[int]bool // live buses
	adj   map[int][]Edge
}

// Build constructs the bus graph of n under opts.
func Build(n *network.Network, opts Options) *Graph {
	g := &Graph{
		opts:  opts,
		buses: make(map[int]bool),
		adj:   make(map[int][]Edge),
	}

	for _, r := range n.Table(network.Bus).Rows() {
		if opts.RespectInService && !r.InService() {
			continue
		}
		g.buses[r.Index] = true
	}

	open := openGates(n, opts)

	for _, et := range network.TypesOfKind(network.KindBranch) {
		s := network.SchemaOf(et)
		for _, r := range n.Table(et).Rows() {
			if opts.RespectInService && !r.InService() {
				continue
			}
			var live []int
			for _, col := range s.BusColumns {
				b, ok := r.Buses[col]
				if !ok || !g.buses[b] || open[gate{bus: b, et: et, element: r.Index}] {
					continue
				}
				live = append(live, b)
			}
			via := network.ElementRef{Type: et, Index: r.Index}
			for i := 0; i < len(live); i++ {
				for j := i + 1; j < len(live); j++ {
					g.addEdge(live[i], live[j], via)
				}
			}
		}
	}

	for _, r := range n.Table(network.Switch).Rows() {
		if r.Ref == nil || r.Ref.Type != network.Bus {
			continue
		}
		if opts.RespectSwitches && !r.Closed() {
			continue
		}
		if opts.RespectInService && !r.InService() {
			continue
		}
		b, ok := r.Buses[network.ColBus]
		if !ok || !g.buses[b] || !g.buses[r.Ref.Index] {
			continue
		}
		g.addEdge(b, r.Ref.Index, network.ElementRef{Type: network.Switch, Index: r.Index})
	}
	return g
}

// openGates collects the (bus, element) terminals disconnected by an open
// switch. Any open switch at a terminal disconnects it.
func openGates(n *network.Network, opts Options) map[gate]bool {
	open := make(map[gate]bool)
	if !opts.RespectSwitches {
		return open
	}
	for _, r := range n.Table(network.Switch).Rows() {
		if r.Ref == nil || r.Ref.Type == network.Bus || r.Closed() {
			continue
		}
		b, ok := r.Buses[network.ColBus]
		if !ok {
			continue
		}
		open[gate{bus: b, et: r.Ref.Type, element: r.Ref.Index}] = true
	}
	return open
}

func (g *Graph) addEdge(a, b int, via network.ElementRef) {
	if a == b {
		return
	}
	g.adj[a] = append(g.adj[a], Edge{From: a, To: b, Via: via})
	g.adj[b] = append(g.adj[b], Edge{From: b, To: a, Via: via})
}

// Options returns the filters the graph was built with.
func (g *Graph) Options() Options {
	return g.opts
}

// HasBus reports whether bus is a live node of the graph.
func (g *Graph) HasBus(bus int) bool {
	return g.buses[bus]
}

// Buses returns the live buses in ascending order.
func (g *Graph) Buses() []int {
	out := make([]int, 0, len(g.buses))
	for b := range g.buses {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}

// Edges returns the edges incident to bus.
func (g *Graph) Edges(bus int) []Edge {
	return g.adj[bus]
}

// Neighbors returns the buses one hop away from bus, sorted.
func (g *Graph) Neighbors(bus int) []int {
	out := make([]int, 0, len(g.adj[bus]))
	for _, e := range g.adj[bus] {
		out = append(out, e.To)
	}
	return network.SortedUnique(out)
}

// Reachable returns every bus reachable from the live seeds, seeds included,
// in ascending order.
func (g *Graph) Reachable(seeds []int) []int {
	visited := make(map[int]bool)
	queue := list.New()
	for _, s := range seeds {
		if g.buses[s] && !visited[s] {
			visited[s] = true
			queue.PushBack(s)
		}
	}

	for queue.Len() > 0 {
		bus, ok := queue.Remove(queue.Front()).(int)
		if !ok {
			continue
		}
		for _, e := range g.adj[bus] {
			if !visited[e.To] {
				visited[e.To] = true
				queue.PushBack(e.To)
			}
		}
	}

	out := make([]int, 0, len(visited))
	for b := range visited {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}

// Components returns the connected components of the live buses. Each
// component is sorted and components are ordered by their smallest bus.
func (g *Graph) Components() [][]int {
	visited := make(map[int]bool)
	components := make([][]int, 0)
	for _, start := range g.Buses() {
		if visited[start] {
			continue
		}
		component := g.Reachable([]int{start})
		for _, b := range component {
			visited[b] = true
		}
		components = append(components, component)
	}
	return components
}
