package algebra

import (
	"fmt"

	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

// InternalElements lists the rows created when wards are resolved, position i
// belonging to the i-th replaced ward. Buses, Gens and Impedances stay empty
// for plain wards.
type InternalElements struct {
	Loads      []int
	Shunts     []int
	Buses      []int
	Gens       []int
	Impedances []int
}

// ReplaceWardByInternalElements resolves wards (nil means all) into a load for
// the constant power part and a shunt for the constant impedance part at the
// ward bus. Both take over name and in_service. res_ward rows are split into
// res_load and res_shunt. References and group membership move to the load.
// Mutates net.
func ReplaceWardByInternalElements(net *network.Network, wards []int) (*InternalElements, error) {
	const name = "replace_ward_by_internal_elements"
	op := begin(name, net)
	if wards == nil {
		wards = net.Table(network.Ward).Indices()
	}
	if err := requireIndices(name, net, network.Ward, wards); err != nil {
		return nil, op.done(err)
	}
	if len(network.SortedUnique(wards)) != len(wards) {
		return nil, op.done(network.NewError(name).Element(network.Ward, wards...).
			Context("index listed twice").Cause(network.ErrStructural).Err())
	}

	out := &InternalElements{}
	err := network.Apply(net, func(w *network.Network) error {
		loads, err := resolveWards(w, network.Ward, wards, out)
		if err != nil {
			return err
		}
		res := w.Table(network.ResultOf(network.Ward))
		for i, idx := range wards {
			r, ok := res.Get(idx)
			if !ok {
				continue
			}
			if err := splitWardResult(w, r, loads[i], out.Shunts[i]); err != nil {
				return err
			}
		}
		op.rewritten = finishWards(w, network.Ward, wards, out.Loads)
		return nil
	})
	if err != nil {
		return nil, op.done(err)
	}
	op.dropped = len(wards)
	return out, op.done(nil, logging.Indices(out.Loads))
}

// ReplaceXWardByInternalElements resolves extended wards (nil means all) like
// ReplaceWardByInternalElements and adds the voltage source behind the
// internal impedance: an auxiliary bus at the rated voltage of the ward bus,
// a generator there holding vm_pu and an impedance from the ward bus to it
// with r_ohm and x_ohm in per unit of the network's sn_mva. Results are not
// carried. Mutates net.
func ReplaceXWardByInternalElements(net *network.Network, xwards []int) (*InternalElements, error) {
	const name = "replace_xward_by_internal_elements"
	op := begin(name, net)
	if xwards == nil {
		xwards = net.Table(network.XWard).Indices()
	}
	if err := requireIndices(name, net, network.XWard, xwards); err != nil {
		return nil, op.done(err)
	}
	if len(network.SortedUnique(xwards)) != len(xwards) {
		return nil, op.done(network.NewError(name).Element(network.XWard, xwards...).
			Context("index listed twice").Cause(network.ErrStructural).Err())
	}
	if net.SnMVA <= 0 {
		return nil, op.done(network.NewError(name).Element(network.XWard, xwards...).
			Context("network sn_mva must be positive").Cause(network.ErrStructural).Err())
	}

	out := &InternalElements{}
	err := network.Apply(net, func(w *network.Network) error {
		if _, err := resolveWards(w, network.XWard, xwards, out); err != nil {
			return err
		}
		src := w.Table(network.XWard)
		for _, idx := range xwards {
			x, _ := src.Get(idx)
			wardBus, _ := x.Bus(network.ColBus)
			bus, ok := w.Table(network.Bus).Get(wardBus)
			if !ok {
				return network.InvalidTopologyError(name, network.XWard, idx, "ward bus is missing")
			}
			vn := bus.FloatOr(network.ColVnKV, 0)
			if vn <= 0 {
				return network.InvalidTopologyError(name, network.XWard, idx, "ward bus has no rated voltage")
			}

			busOpts := []network.RowOption{network.WithName(fmt.Sprintf("xward %d bus", idx))}
			if !bus.InService() {
				busOpts = append(busOpts, network.OutOfService())
			}
			aux, err := w.AddBus(vn, busOpts...)
			if err != nil {
				return err
			}
			opts := inheritedOptions(x)
			gen, err := w.AddGen(aux, 0, x.FloatOr(network.ColVmPU, 1.0), opts...)
			if err != nil {
				return err
			}
			zBase := vn * vn / w.SnMVA
			imp, err := w.AddImpedance(wardBus, aux,
				x.FloatOr(network.ColROhm, 0)/zBase, x.FloatOr(network.ColXOhm, 0)/zBase, w.SnMVA, opts...)
			if err != nil {
				return err
			}
			out.Buses = append(out.Buses, aux)
			out.Gens = append(out.Gens, gen)
			out.Impedances = append(out.Impedances, imp)
		}
		op.rewritten = finishWards(w, network.XWard, xwards, out.Loads)
		return nil
	})
	if err != nil {
		return nil, op.done(err)
	}
	op.dropped = len(xwards)
	return out, op.done(nil, logging.Indices(out.Loads))
}

// resolveWards adds the load and shunt of every ward and returns the loads.
func resolveWards(w *network.Network, et network.ElementType, wards []int, out *InternalElements) ([]int, error) {
	src := w.Table(et)
	for _, idx := range wards {
		r, _ := src.Get(idx)
		bus, _ := r.Bus(network.ColBus)
		opts := inheritedOptions(r)
		load, err := w.AddLoad(bus, r.FloatOr(network.ColPsMW, 0), r.FloatOr(network.ColQsMVar, 0), opts...)
		if err != nil {
			return nil, err
		}
		shunt, err := w.AddShunt(bus, r.FloatOr(network.ColPzMW, 0), r.FloatOr(network.ColQzMVar, 0), opts...)
		if err != nil {
			return nil, err
		}
		out.Loads = append(out.Loads, load)
		out.Shunts = append(out.Shunts, shunt)
	}
	return out.Loads, nil
}

// splitWardResult books the constant power share of a ward result on the
// load and the remainder on the shunt.
func splitWardResult(w *network.Network, res *network.Row, load, shunt int) error {
	lr, _ := w.Table(network.Load).Get(load)
	svc := 0.0
	if lr.InService() {
		svc = 1.0
	}
	p := lr.FloatOr(network.ColPMW, 0) * svc
	q := lr.FloatOr(network.ColQMVar, 0) * svc

	resLoad := network.NewRow(load)
	resLoad.Set(network.ColPMW, network.FloatValue(p)).Set(network.ColQMVar, network.FloatValue(q))
	resShunt := network.NewRow(shunt)
	resShunt.Set(network.ColPMW, network.FloatValue(res.FloatOr(network.ColPMW, 0)-p)).
		Set(network.ColQMVar, network.FloatValue(res.FloatOr(network.ColQMVar, 0)-q))
	if vm, ok := res.Get(network.ColVmPU); ok {
		resShunt.Set(network.ColVmPU, vm.Clone())
	}
	if err := w.Ensure(network.ResultOf(network.Load)).Append(resLoad); err != nil {
		return err
	}
	return w.Ensure(network.ResultOf(network.Shunt)).Append(resShunt)
}

// finishWards moves references from the wards to their loads and removes the
// ward rows with their mirrors.
func finishWards(w *network.Network, et network.ElementType, wards, loads []int) int {
	mapping := make(map[int]int, len(wards))
	for i, idx := range wards {
		mapping[idx] = loads[i]
	}
	rewritten := network.RetargetReferences(w, et, network.Load, mapping)
	w.Table(et).Remove(wards...)
	for _, m := range w.Mirrors(et) {
		m.Remove(wards...)
	}
	return rewritten
}

func inheritedOptions(r *network.Row) []network.RowOption {
	var opts []network.RowOption
	if v, ok := r.Get(network.ColName); ok && !v.IsNull() {
		opts = append(opts, network.WithColumn(network.ColName, v.Clone()))
	}
	if !r.InService() {
		opts = append(opts, network.OutOfService())
	}
	return opts
}
