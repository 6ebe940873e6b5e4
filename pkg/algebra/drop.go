package algebra

import (
	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
	"github.com/dd0wney/cluso-gridtopo/pkg/topology"
)

type pending struct {
	et      network.ElementType
	indices []int
}

// cascade removes rows of et together with every row depending on them:
// mirror rows, rows terminating at removed buses, rows whose element
// reference points at a removed row, and groups left without members. It
// returns the number of removed rows per element type, mirrors excluded.
func cascade(n *network.Network, et network.ElementType, indices []int) map[network.ElementType]int {
	removed := make(map[network.ElementType]int)
	work := []pending{{et: et, indices: indices}}

	for len(work) > 0 {
		p := work[0]
		work = work[1:]

		t, ok := n.Lookup(p.et)
		if !ok {
			continue
		}
		gone := network.NewIndexSet()
		for _, idx := range p.indices {
			if t.Has(idx) {
				gone.Add(idx)
			}
		}
		if gone.Len() == 0 {
			continue
		}
		sorted := gone.Sorted()
		removed[p.et] += t.Remove(sorted...)
		for _, m := range n.Mirrors(p.et) {
			m.Remove(sorted...)
		}

		for _, tt := range n.Types() {
			if network.SchemaOf(tt).Kind == network.KindMirror {
				continue
			}
			var deps []int
			for _, r := range n.Table(tt).Rows() {
				if dependsOn(r, p.et, gone) {
					deps = append(deps, r.Index)
				}
			}
			if len(deps) > 0 {
				work = append(work, pending{et: tt, indices: deps})
			}
		}
		if emptied := removeMembers(n, p.et, gone); len(emptied) > 0 {
			work = append(work, pending{et: network.Group, indices: emptied})
		}
	}
	return removed
}

func dependsOn(r *network.Row, et network.ElementType, gone network.IndexSet) bool {
	if et == network.Bus {
		for _, b := range r.Buses {
			if gone.Has(b) {
				return true
			}
		}
	}
	return r.Ref != nil && r.Ref.Type == et && gone.Has(r.Ref.Index)
}

// removeMembers strips gone indices of et from every group and returns the
// groups it left empty.
func removeMembers(n *network.Network, et network.ElementType, gone network.IndexSet) []int {
	var emptied []int
	for _, r := range n.Table(network.Group).Rows() {
		changed := false
		members := make([]network.GroupMember, 0, len(r.Members))
		for _, m := range r.Members {
			if m.Type != et {
				members = append(members, m)
				continue
			}
			kept := make([]int, 0, len(m.Indices))
			for _, idx := range m.Indices {
				if gone.Has(idx) {
					changed = true
					continue
				}
				kept = append(kept, idx)
			}
			if len(kept) > 0 {
				members = append(members, network.GroupMember{Type: m.Type, Indices: kept})
			}
		}
		if !changed {
			continue
		}
		r.Members = members
		if len(members) == 0 {
			emptied = append(emptied, r.Index)
		}
	}
	return emptied
}

// DropElements removes rows of et and everything depending on them.
// Mutates net.
func DropElements(net *network.Network, et network.ElementType, indices []int) error {
	return dropChecked("drop_elements", net, et, indices)
}

// DropBuses removes buses and every element attached to them. Mutates net.
func DropBuses(net *network.Network, buses []int) error {
	return dropChecked("drop_buses", net, network.Bus, buses)
}

func dropChecked(name string, net *network.Network, et network.ElementType, indices []int) error {
	op := begin(name, net, logging.ElementType(et), logging.Indices(indices))
	if err := requireIndices(name, net, et, indices); err != nil {
		return op.done(err)
	}
	op.drop(cascade(net, et, indices))
	return op.done(nil)
}

// DropElementsAtBuses removes every element with a terminal in buses, every
// switch whose bus or bus-bus element is in buses and every measurement taken
// at one of the buses. The buses themselves stay. Mutates net.
func DropElementsAtBuses(net *network.Network, buses []int) error {
	const name = "drop_elements_at_buses"
	op := begin(name, net, logging.Indices(buses))
	if err := requireIndices(name, net, network.Bus, buses); err != nil {
		return op.done(err)
	}

	at := network.NewIndexSet(buses...)
	var plan []pending
	for _, et := range net.Types() {
		s := network.SchemaOf(et)
		atBus := et == network.Measurement || s.Kind == network.KindSwitch
		if s.Kind == network.KindMirror || (!s.HasBusColumns() && !atBus) {
			continue
		}
		var hit []int
		for _, r := range net.Table(et).Rows() {
			if at.ContainsAny(r.Terminals(s)) ||
				(atBus && r.Ref != nil && r.Ref.Type == network.Bus && at.Has(r.Ref.Index)) {
				hit = append(hit, r.Index)
			}
		}
		if len(hit) > 0 {
			plan = append(plan, pending{et: et, indices: hit})
		}
	}
	for _, p := range plan {
		op.drop(cascade(net, p.et, p.indices))
	}
	return op.done(nil)
}

// DropInnerBranches removes branches of the given types whose terminals all
// lie in buses. A nil types slice means every branch type. Mutates net.
func DropInnerBranches(net *network.Network, buses []int, types []network.ElementType) error {
	const name = "drop_inner_branches"
	op := begin(name, net, logging.Indices(buses))
	if err := requireIndices(name, net, network.Bus, buses); err != nil {
		return op.done(err)
	}
	if types == nil {
		types = network.TypesOfKind(network.KindBranch)
	}
	for _, et := range types {
		if network.SchemaOf(et).Kind != network.KindBranch {
			return op.done(network.NewError(name).Element(et).
				Context("not a branch element type").Cause(network.ErrStructural).Err())
		}
	}

	inside := network.NewIndexSet(buses...)
	var plan []pending
	for _, et := range types {
		s := network.SchemaOf(et)
		var hit []int
		for _, r := range net.Table(et).Rows() {
			if terms := r.Terminals(s); len(terms) > 0 && inside.ContainsAll(terms) {
				hit = append(hit, r.Index)
			}
		}
		if len(hit) > 0 {
			plan = append(plan, pending{et: et, indices: hit})
		}
	}
	for _, p := range plan {
		op.drop(cascade(net, p.et, p.indices))
	}
	return op.done(nil)
}

// ClearResultTables empties every power-flow result table and returns the
// number of removed result rows. Mutates net.
func ClearResultTables(net *network.Network) int {
	op := begin("clear_result_tables", net)
	cleared := 0
	for _, et := range net.Types() {
		if !et.IsResult() {
			continue
		}
		cleared += net.Table(et).Retain(func(*network.Row) bool { return false })
	}
	op.dropped = cleared
	_ = op.done(nil)
	return cleared
}

// DropOptions configures DropInactiveElements.
type DropOptions struct {
	RespectSwitches bool // open switches isolate buses from the slack
}

// DefaultDropOptions respects switch state.
func DefaultDropOptions() DropOptions {
	return DropOptions{RespectSwitches: true}
}

// DropInactiveElements removes buses that are out of service or not supplied
// by any in-service slack (ext_grid, or gen with slack=true), everything
// attached to them, and every row flagged out of service. When exactly one
// ext_grid is in service, it and its bus are always retained. Mutates net.
func DropInactiveElements(net *network.Network, opts DropOptions) error {
	op := begin("drop_inactive_elements", net, logging.Bool("respect_switches", opts.RespectSwitches))

	var protected *network.Row
	var live []*network.Row
	for _, r := range net.Table(network.ExtGrid).Rows() {
		if r.InService() {
			live = append(live, r)
		}
	}
	if len(live) == 1 {
		protected = live[0]
	}
	protectedBus, hasProtectedBus := -1, false
	if protected != nil {
		protectedBus, hasProtectedBus = protected.Bus(network.ColBus)
	}

	var slacks []int
	for _, r := range live {
		if b, ok := r.Bus(network.ColBus); ok {
			slacks = append(slacks, b)
		}
	}
	for _, r := range net.Table(network.Gen).Rows() {
		if r.InService() && r.Flag(network.ColSlack, false) {
			if b, ok := r.Bus(network.ColBus); ok {
				slacks = append(slacks, b)
			}
		}
	}

	g := topology.Build(net, topology.Options{RespectSwitches: opts.RespectSwitches, RespectInService: true})
	supplied := network.NewIndexSet(g.Reachable(slacks)...)

	var deadBuses []int
	for _, r := range net.Table(network.Bus).Rows() {
		if hasProtectedBus && r.Index == protectedBus {
			continue
		}
		if !r.InService() || !supplied.Has(r.Index) {
			deadBuses = append(deadBuses, r.Index)
		}
	}
	op.drop(cascade(net, network.Bus, deadBuses))

	for _, et := range net.Types() {
		s := network.SchemaOf(et)
		if s.Kind == network.KindMirror || s.Kind == network.KindAuxiliary || et == network.Bus {
			continue
		}
		var inactive []int
		for _, r := range net.Table(et).Rows() {
			if r.InService() || r == protected {
				continue
			}
			inactive = append(inactive, r.Index)
		}
		if len(inactive) > 0 {
			op.drop(cascade(net, et, inactive))
		}
	}

	op.log.Debug("inactive elements dropped",
		logging.Count(len(deadBuses)), logging.Int("slack_buses", len(slacks)))
	return op.done(nil)
}
