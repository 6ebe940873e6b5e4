package algebra

import (
	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
	"github.com/dd0wney/cluso-gridtopo/pkg/validation"
)

// SelectOptions configures SelectSubnet.
type SelectOptions struct {
	IncludeResults     bool // copy res_* rows of kept elements
	KeepEverythingElse bool // copy tables without references unchanged
	IncludeSwitchBuses bool // widen the bus set with WidenBySwitchBuses first
}

// SelectSubnet returns the subnetwork induced by buses. Elements are kept
// when all their terminals are kept; bus-bus switches need both ends, gate
// switches need their bus and their element. Measurements, costs and
// controllers follow their target, groups keep their surviving members and
// vanish when none survive. Geodata always follows its source table.
func SelectSubnet(net *network.Network, buses []int, opts SelectOptions) (*network.Network, error) {
	const name = "select_subnet"
	op := begin(name, net, logging.Count(len(buses)))
	if err := validation.ValidateIndices("buses", buses); err != nil {
		return nil, op.done(network.NewError(name).Element(network.Bus).
			Context(err.Error()).Cause(network.ErrStructural).Err())
	}
	if err := requireIndices(name, net, network.Bus, buses); err != nil {
		return nil, op.done(err)
	}
	if opts.IncludeSwitchBuses {
		buses = WidenBySwitchBuses(net, buses)
	}

	kept := keptIndices(net, network.NewIndexSet(buses...))

	out := network.New(net.Name)
	copyNetworkAttributes(out, net)
	for _, et := range net.Types() {
		s := network.SchemaOf(et)
		switch s.Kind {
		case network.KindAuxiliary:
			if opts.KeepEverythingElse {
				out.SetTable(net.Table(et).Clone())
			}
			continue
		case network.KindMirror:
			if et.IsResult() && !opts.IncludeResults {
				continue
			}
		}

		keep := kept[et]
		if s.Kind == network.KindMirror {
			keep = kept[s.Source]
		}
		t := network.NewTable(et)
		for _, r := range net.Table(et).Rows() {
			if !keep.Has(r.Index) {
				continue
			}
			c := r.Clone()
			if s.Kind == network.KindGroup {
				c.Members = survivingMembers(c.Members, kept)
			}
			if err := t.Append(c); err != nil {
				return nil, op.done(err)
			}
		}
		out.SetTable(t)
	}

	op.net = out
	return out, op.done(nil, logging.Int("rows", out.RowCount()))
}

// keptIndices decides which rows of each registered table survive selection
// of inside.
func keptIndices(net *network.Network, inside network.IndexSet) map[network.ElementType]network.IndexSet {
	kept := map[network.ElementType]network.IndexSet{network.Bus: network.NewIndexSet()}
	for _, b := range net.Table(network.Bus).Indices() {
		if inside.Has(b) {
			kept[network.Bus].Add(b)
		}
	}

	pass := func(kinds []network.Kind, keep func(network.Schema, *network.Row) bool) {
		for _, et := range network.TypesOfKind(kinds...) {
			s := network.SchemaOf(et)
			set := network.NewIndexSet()
			for _, r := range net.Table(et).Rows() {
				if keep(s, r) {
					set.Add(r.Index)
				}
			}
			kept[et] = set
		}
	}

	pass([]network.Kind{network.KindBranch, network.KindBusElement}, func(s network.Schema, r *network.Row) bool {
		terms := r.Terminals(s)
		return len(terms) > 0 && inside.ContainsAll(terms)
	})
	pass([]network.Kind{network.KindSwitch}, func(_ network.Schema, r *network.Row) bool {
		b, ok := r.Bus(network.ColBus)
		if !ok || !inside.Has(b) || r.Ref == nil {
			return false
		}
		return kept[r.Ref.Type].Has(r.Ref.Index)
	})
	refs := func(_ network.Schema, r *network.Row) bool {
		return r.Ref != nil && kept[r.Ref.Type].Has(r.Ref.Index)
	}
	pass([]network.Kind{network.KindElementRef}, refs)
	pass([]network.Kind{network.KindGroup}, func(_ network.Schema, r *network.Row) bool {
		return len(survivingMembers(r.Members, kept)) > 0
	})
	// again for references to groups
	pass([]network.Kind{network.KindElementRef}, refs)
	return kept
}

func survivingMembers(members []network.GroupMember, kept map[network.ElementType]network.IndexSet) []network.GroupMember {
	out := make([]network.GroupMember, 0, len(members))
	for _, m := range members {
		var idx []int
		for _, i := range m.Indices {
			if kept[m.Type].Has(i) {
				idx = append(idx, i)
			}
		}
		if len(idx) > 0 {
			out = append(out, network.GroupMember{Type: m.Type, Indices: idx})
		}
	}
	return out
}

// WidenBySwitchBuses adds the far terminal of every two-terminal switched
// branch whose near terminal is selected: when a gate switch sits at one end
// of a line or transformer and the other end is in buses, the switch side is
// added. Switches are visited in table order and see earlier additions.
func WidenBySwitchBuses(net *network.Network, buses []int) []int {
	set := network.NewIndexSet(buses...)
	for _, sw := range net.Table(network.Switch).Rows() {
		if sw.Ref == nil || (sw.Ref.Type != network.Line && sw.Ref.Type != network.Trafo) {
			continue
		}
		at, ok := sw.Bus(network.ColBus)
		if !ok {
			continue
		}
		branch, ok := net.Resolve(*sw.Ref)
		if !ok {
			continue
		}
		terms := branch.Terminals(network.SchemaOf(sw.Ref.Type))
		if len(terms) != 2 {
			continue
		}
		a, b := terms[0], terms[1]
		if set.Has(a) && at != a {
			set.Add(b)
		}
		if set.Has(b) && at != b {
			set.Add(a)
		}
	}
	return set.Sorted()
}
