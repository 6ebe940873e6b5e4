package algebra

import (
	"slices"

	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
	"github.com/dd0wney/cluso-gridtopo/pkg/validation"
)

// NodeColumnOptions selects the rows that receive a bus column.
type NodeColumnOptions struct {
	// Elements defaults to every branch, bus element and switch table.
	Elements []network.ElementType `validate:"omitempty,dive,elementtype"`
	// BranchBus lists the terminal read for rows without a bus column, the
	// first one the table has wins. Defaults to from_bus, hv_bus.
	BranchBus []string `validate:"omitempty,len=2,dive,oneof=from_bus to_bus hv_bus mv_bus lv_bus"`
}

var defaultBranchBus = []string{network.ColFromBus, network.ColHVBus}

// AddColumnFromNodeToElements copies column from the bus of every selected
// row: the bus column where the table has one, otherwise the first
// BranchBus terminal it has. Rows already holding a non-null value keep it
// unless replace is set; buses without the column leave their rows alone.
// It returns the number of rows written. Mutates net.
func AddColumnFromNodeToElements(net *network.Network, column string, replace bool, opts NodeColumnOptions) (int, error) {
	const name = "add_column_from_node_to_elements"
	op := begin(name, net, logging.String("column", column))
	if err := checkColumnOptions(name, column, &opts); err != nil {
		return 0, op.done(err)
	}
	branchBus := opts.BranchBus
	if branchBus == nil {
		branchBus = defaultBranchBus
	}
	elements := opts.Elements
	if elements == nil {
		elements = network.TypesOfKind(network.KindBranch, network.KindBusElement, network.KindSwitch)
	}

	written := 0
	for _, et := range elements {
		t, ok := net.Lookup(et)
		if !ok {
			continue
		}
		s := network.SchemaOf(et)
		for _, r := range t.Rows() {
			bus, ok := sourceBus(r, s, branchBus)
			if ok && copyFromBus(net, r, bus, column, column, replace) {
				written++
			}
		}
	}
	op.rewritten = written
	return written, op.done(nil, logging.Count(written))
}

// AddColumnFromElementToElements copies column from the row each switch,
// measurement, cost or controller points at. elements narrows the tables
// (default: switches and element-reference tables). Existing non-null values
// are kept unless replace is set. It returns the number of rows written.
// Mutates net.
func AddColumnFromElementToElements(net *network.Network, column string, replace bool, elements ...network.ElementType) (int, error) {
	const name = "add_column_from_element_to_elements"
	op := begin(name, net, logging.String("column", column))
	if err := checkColumnOptions(name, column, &NodeColumnOptions{Elements: elements}); err != nil {
		return 0, op.done(err)
	}
	if len(elements) == 0 {
		elements = network.TypesOfKind(network.KindSwitch, network.KindElementRef)
	}

	written := 0
	for _, et := range elements {
		t, ok := net.Lookup(et)
		if !ok {
			continue
		}
		for _, r := range t.Rows() {
			if r.Ref == nil {
				continue
			}
			target, ok := net.Resolve(*r.Ref)
			if !ok {
				continue
			}
			if v, ok := target.Get(column); ok && setColumn(r, column, v, replace) {
				written++
			}
		}
	}
	op.rewritten = written
	return written, op.done(nil, logging.Count(written))
}

// AddZonesToElements copies the bus zone onto the selected rows (default:
// line, trafo, ext_grid, switch). Branches take zone from their first
// terminal and to_zone from their last one.
func AddZonesToElements(net *network.Network, replace bool, elements ...network.ElementType) (int, error) {
	const name = "add_zones_to_elements"
	op := begin(name, net)
	if err := checkColumnOptions(name, network.ColZone, &NodeColumnOptions{Elements: elements}); err != nil {
		return 0, op.done(err)
	}
	if len(elements) == 0 {
		elements = []network.ElementType{network.Line, network.Trafo, network.ExtGrid, network.Switch}
	}

	written := 0
	for _, et := range elements {
		t, ok := net.Lookup(et)
		if !ok {
			continue
		}
		s := network.SchemaOf(et)
		if !s.HasBusColumns() {
			continue
		}
		first, last := s.BusColumns[0], s.BusColumns[len(s.BusColumns)-1]
		for _, r := range t.Rows() {
			if b, ok := r.Bus(first); ok && copyFromBus(net, r, b, network.ColZone, network.ColZone, replace) {
				written++
			}
			if s.Kind != network.KindBranch {
				continue
			}
			if b, ok := r.Bus(last); ok && copyFromBus(net, r, b, network.ColZone, network.ColToZone, replace) {
				written++
			}
		}
	}
	op.rewritten = written
	return written, op.done(nil, logging.Count(written))
}

func checkColumnOptions(name, column string, opts *NodeColumnOptions) error {
	if err := validation.ValidateColumnName(column); err != nil {
		return network.NewError(name).Column(column).Context(err.Error()).Cause(network.ErrStructural).Err()
	}
	if err := validation.Struct(opts); err != nil {
		return network.NewError(name).Context(err.Error()).Cause(network.ErrStructural).Err()
	}
	return nil
}

func sourceBus(r *network.Row, s network.Schema, branchBus []string) (int, bool) {
	if b, ok := r.Bus(network.ColBus); ok {
		return b, true
	}
	for _, col := range branchBus {
		if slices.Contains(s.BusColumns, col) {
			return r.Bus(col)
		}
	}
	return 0, false
}

func copyFromBus(net *network.Network, r *network.Row, bus int, from, to string, replace bool) bool {
	b, ok := net.Table(network.Bus).Get(bus)
	if !ok {
		return false
	}
	v, ok := b.Get(from)
	if !ok {
		return false
	}
	return setColumn(r, to, v, replace)
}

// setColumn writes v unless r already holds a non-null value and replace is
// false. Null sources are never written.
func setColumn(r *network.Row, col string, v network.Value, replace bool) bool {
	if v.IsNull() {
		return false
	}
	if cur, ok := r.Get(col); ok && !cur.IsNull() && !replace {
		return false
	}
	r.Set(col, v.Clone())
	return true
}
