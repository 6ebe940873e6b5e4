package algebra

import (
	"math"

	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

// ReplaceImpedanceByLine turns impedances into 1 km lines with the same
// series impedance: r and x in ohm are the per-unit values scaled by
// vn_kv(from bus)^2 / sn_mva of the impedance. The lines carry no shunt
// admittance and maxIKA as thermal limit. With opts.Indices nil, impedances
// whose parameters depend on the direction are skipped; listing one
// explicitly is an InvalidTopologyError. Results, references and group
// membership move to the new lines. Mutates net.
func ReplaceImpedanceByLine(net *network.Network, maxIKA float64, opts ReplaceOptions) ([]int, error) {
	const name = "replace_impedance_by_line"
	if maxIKA < 0 || math.IsNaN(maxIKA) {
		return nil, begin(name, net).done(network.NewError(name).Element(network.Impedance).
			Context("max_i_ka must be non-negative").Cause(network.ErrStructural).Err())
	}

	indices, err := replaceableBranches(name, net, network.Impedance, opts.Indices, func(r *network.Row) string {
		if r.FloatOr(network.ColRFTPU, 0) != r.FloatOr(network.ColRTFPU, 0) ||
			r.FloatOr(network.ColXFTPU, 0) != r.FloatOr(network.ColXTFPU, 0) {
			return "impedance parameters depend on the direction"
		}
		if baseImpedance(net, r, r.FloatOr(network.ColSnMVA, net.SnMVA)) <= 0 {
			return "no base impedance (rated voltage or power missing)"
		}
		return ""
	})
	if err != nil {
		return nil, begin(name, net).done(err)
	}
	opts.Indices = indices

	return replaceElements(net, replacement{
		name: name,
		from: network.Impedance,
		to:   network.Line,
		base: []string{network.ColInService, network.ColName},
		fill: func(w *network.Network, old, row *network.Row) {
			zBase := baseImpedance(w, old, old.FloatOr(network.ColSnMVA, w.SnMVA))
			row.Set(network.ColLengthKM, network.FloatValue(1)).
				Set(network.ColROhmPerKM, network.FloatValue(old.FloatOr(network.ColRFTPU, 0)*zBase)).
				Set(network.ColXOhmPerKM, network.FloatValue(old.FloatOr(network.ColXFTPU, 0)*zBase)).
				Set(network.ColCNFPerKM, network.FloatValue(0)).
				Set(network.ColGUSPerKM, network.FloatValue(0)).
				Set(network.ColMaxIKA, network.FloatValue(maxIKA)).
				Set(network.ColParallel, network.IntValue(1))
		},
	}, opts)
}

// ReplaceLineByImpedance turns lines into impedances of the same series
// impedance in per unit of snMVA (the network's sn_mva when zero). Lines with
// shunt admittance cannot be represented: with opts.Indices nil they are
// skipped, listing one explicitly is an InvalidTopologyError. Gate switches
// of replaced lines are removed; a line behind an open switch becomes an
// out-of-service impedance. Mutates net.
func ReplaceLineByImpedance(net *network.Network, snMVA float64, opts ReplaceOptions) ([]int, error) {
	const name = "replace_line_by_impedance"
	if snMVA == 0 {
		snMVA = net.SnMVA
	}
	if snMVA <= 0 || math.IsNaN(snMVA) {
		return nil, begin(name, net).done(network.NewError(name).Element(network.Line).
			Context("sn_mva must be positive").Cause(network.ErrStructural).Err())
	}

	indices, err := replaceableBranches(name, net, network.Line, opts.Indices, func(r *network.Row) string {
		if r.FloatOr(network.ColCNFPerKM, 0) != 0 || r.FloatOr(network.ColGUSPerKM, 0) != 0 {
			return "line has shunt admittance"
		}
		if baseImpedance(net, r, snMVA) <= 0 {
			return "from bus has no rated voltage"
		}
		return ""
	})
	if err != nil {
		return nil, begin(name, net).done(err)
	}
	opts.Indices = indices

	replaced := network.NewIndexSet(indices...)
	var gates []int
	open := make(map[int]bool)
	for _, sw := range net.Table(network.Switch).Rows() {
		if sw.Ref == nil || sw.Ref.Type != network.Line || !replaced.Has(sw.Ref.Index) {
			continue
		}
		gates = append(gates, sw.Index)
		if !sw.Closed() {
			open[sw.Ref.Index] = true
		}
	}

	return replaceElements(net, replacement{
		name: name,
		from: network.Line,
		to:   network.Impedance,
		base: []string{network.ColInService, network.ColName},
		prepare: func(w *network.Network) int {
			removed := 0
			for _, c := range cascade(w, network.Switch, gates) {
				removed += c
			}
			return removed
		},
		fill: func(w *network.Network, old, row *network.Row) {
			zBase := baseImpedance(w, old, snMVA)
			scale := old.FloatOr(network.ColLengthKM, 0) / float64(parallelOf(old)) / zBase
			rPU := old.FloatOr(network.ColROhmPerKM, 0) * scale
			xPU := old.FloatOr(network.ColXOhmPerKM, 0) * scale
			row.Set(network.ColRFTPU, network.FloatValue(rPU)).
				Set(network.ColXFTPU, network.FloatValue(xPU)).
				Set(network.ColRTFPU, network.FloatValue(rPU)).
				Set(network.ColXTFPU, network.FloatValue(xPU)).
				Set(network.ColSnMVA, network.FloatValue(snMVA))
			if open[old.Index] {
				row.Set(network.ColInService, network.BoolValue(false))
			}
		},
	}, opts)
}

// replaceableBranches returns the rows of et that pass reason (empty reason
// means replaceable). Explicitly given rows must all pass.
func replaceableBranches(name string, net *network.Network, et network.ElementType, given []int, reason func(*network.Row) string) ([]int, error) {
	if given != nil {
		if err := requireIndices(name, net, et, given); err != nil {
			return nil, err
		}
		for _, idx := range given {
			r, _ := net.Table(et).Get(idx)
			if why := reason(r); why != "" {
				return nil, network.InvalidTopologyError(name, et, idx, why)
			}
		}
		return given, nil
	}

	out := make([]int, 0)
	for _, r := range net.Table(et).Rows() {
		if why := reason(r); why != "" {
			logging.DefaultLogger().With(logging.Component("algebra")).Debug("branch kept",
				logging.Operation(name), logging.ElementType(et), logging.Index(r.Index), logging.String("reason", why))
			continue
		}
		out = append(out, r.Index)
	}
	return out, nil
}

// baseImpedance is vn_kv^2 / snMVA at the from bus of a branch, or 0 when
// either is missing.
func baseImpedance(n *network.Network, branch *network.Row, snMVA float64) float64 {
	b, ok := branch.Bus(network.ColFromBus)
	if !ok || snMVA <= 0 {
		return 0
	}
	bus, ok := n.Table(network.Bus).Get(b)
	if !ok {
		return 0
	}
	vn := bus.FloatOr(network.ColVnKV, 0)
	return vn * vn / snMVA
}

func parallelOf(line *network.Row) int {
	if p, ok := line.Float(network.ColParallel); ok && p >= 1 {
		return int(p)
	}
	return 1
}
