package algebra

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
	"github.com/dd0wney/cluso-gridtopo/pkg/validation"
)

// ErrDegenerateParameters is returned by ReplToLine when no parallel line
// can realize the requested parameters.
var ErrDegenerateParameters = errors.New("degenerate line parameters")

// ZeroBranchOptions configures ReplaceZeroBranchesWithSwitches.
type ZeroBranchOptions struct {
	// Elements lists the branch types to inspect: line and/or impedance.
	Elements []network.ElementType `validate:"dive,elementtype,oneof=line impedance"`
	// ZeroLength selects lines no longer than MinLengthKM.
	ZeroLength bool
	// ZeroImpedance selects lines with r, x and c at or below the minimum
	// per-km values and impedances with all four per-unit values at or below
	// the minimum per-unit values.
	ZeroImpedance bool
	// InServiceOnly skips branches that are out of service.
	InServiceOnly bool
	// DropAffected removes replaced branches instead of taking them out of
	// service.
	DropAffected bool

	MinLengthKM  float64 `validate:"gte=0"`
	MinROhmPerKM float64 `validate:"gte=0"`
	MinXOhmPerKM float64 `validate:"gte=0"`
	MinCNFPerKM  float64 `validate:"gte=0"`
	MinRFTPU     float64 `validate:"gte=0"`
	MinXFTPU     float64 `validate:"gte=0"`
	MinRTFPU     float64 `validate:"gte=0"`
	MinXTFPU     float64 `validate:"gte=0"`
}

// DefaultZeroBranchOptions inspects in-service lines and impedances for zero
// length and zero impedance.
func DefaultZeroBranchOptions() ZeroBranchOptions {
	return ZeroBranchOptions{
		Elements:      []network.ElementType{network.Line, network.Impedance},
		ZeroLength:    true,
		ZeroImpedance: true,
		InServiceOnly: true,
	}
}

// ReplaceZeroBranchesWithSwitches creates a replacement switch for every
// branch matching the zero-length or zero-impedance predicates and then takes
// the branch out of service or, with DropAffected, drops it. It returns the
// created switches. Mutates net.
func ReplaceZeroBranchesWithSwitches(net *network.Network, opts ZeroBranchOptions) ([]int, error) {
	const name = "replace_zero_branches_with_switches"
	op := begin(name, net, logging.Bool("drop_affected", opts.DropAffected))
	if err := validation.Struct(&opts); err != nil {
		return nil, op.done(network.NewError(name).Context(err.Error()).Cause(network.ErrStructural).Err())
	}

	var created []int
	err := network.Apply(net, func(w *network.Network) error {
		for _, et := range opts.Elements {
			var affected []int
			for _, r := range w.Table(et).Rows() {
				if opts.InServiceOnly && !r.InService() {
					continue
				}
				if !zeroBranch(et, r, opts) {
					continue
				}
				sw, err := addReplacementSwitch(w, et, r)
				if err != nil {
					return err
				}
				created = append(created, sw)
				affected = append(affected, r.Index)
			}
			if opts.DropAffected {
				op.drop(cascade(w, et, affected))
				continue
			}
			for _, idx := range affected {
				r, _ := w.Table(et).Get(idx)
				r.Set(network.ColInService, network.BoolValue(false))
			}
		}
		return nil
	})
	if err != nil {
		return nil, op.done(err)
	}
	return created, op.done(nil, logging.Indices(created))
}

func zeroBranch(et network.ElementType, r *network.Row, opts ZeroBranchOptions) bool {
	at := func(col string, limit float64) bool {
		v, ok := r.Float(col)
		return ok && v <= limit
	}
	switch et {
	case network.Line:
		if opts.ZeroLength && at(network.ColLengthKM, opts.MinLengthKM) {
			return true
		}
		return opts.ZeroImpedance &&
			at(network.ColROhmPerKM, opts.MinROhmPerKM) &&
			at(network.ColXOhmPerKM, opts.MinXOhmPerKM) &&
			at(network.ColCNFPerKM, opts.MinCNFPerKM)
	case network.Impedance:
		return opts.ZeroImpedance &&
			at(network.ColRFTPU, opts.MinRFTPU) &&
			at(network.ColXFTPU, opts.MinXFTPU) &&
			at(network.ColRTFPU, opts.MinRTFPU) &&
			at(network.ColXTFPU, opts.MinXTFPU)
	}
	return false
}

// ReplacementSwitchName is the name given to the switch standing in for a branch.
func ReplacementSwitchName(et network.ElementType, index int) string {
	return fmt.Sprintf("REPLACEMENT_%s_%d", et, index)
}

// CreateReplacementSwitchForBranch adds a bus-bus switch between the two
// terminals of a branch, closed exactly when the branch is in service. The
// branch itself is left as is. Mutates net.
func CreateReplacementSwitchForBranch(net *network.Network, et network.ElementType, index int) (int, error) {
	const name = "create_replacement_switch_for_branch"
	op := begin(name, net, logging.ElementType(et), logging.Index(index))
	r, ok := net.Table(et).Get(index)
	if !ok {
		return 0, op.done(network.StructuralError(name, et, index))
	}
	sw, err := addReplacementSwitch(net, et, r)
	if err != nil {
		return 0, op.done(err)
	}
	return sw, op.done(nil, logging.Int("switch", sw))
}

func addReplacementSwitch(n *network.Network, et network.ElementType, r *network.Row) (int, error) {
	const op = "create_replacement_switch_for_branch"
	terms := r.Terminals(network.SchemaOf(et))
	if len(terms) != 2 {
		return 0, network.InvalidTopologyError(op, et, r.Index, "not a two-terminal branch")
	}
	if terms[0] == terms[1] {
		return 0, network.InvalidTopologyError(op, et, r.Index, "branch connects a bus to itself")
	}
	return n.AddSwitch(terms[0], terms[1], network.Bus, r.InService(),
		network.WithName(ReplacementSwitchName(et, r.Index)))
}

// ReplToLine adds a line parallel to line such that both together behave
// like a single line of the same length with the per-km parameters p: series
// and shunt admittances of the new line are the difference between the
// requested and the existing ones. Open switches at the old line are
// replicated at the new one. It returns the new line. Mutates net.
func ReplToLine(net *network.Network, line int, p network.LineParams, inService bool) (int, error) {
	const name = "repl_to_line"
	op := begin(name, net, logging.Index(line), logging.String("std_type", p.StdType))
	if err := validation.Struct(&p); err != nil {
		return 0, op.done(network.NewError(name).Element(network.Line, line).
			Context(err.Error()).Cause(ErrDegenerateParameters).Err())
	}
	old, ok := net.Table(network.Line).Get(line)
	if !ok {
		return 0, op.done(network.StructuralError(name, network.Line, line))
	}

	params, err := parallelComplement(old, p, net.FHz)
	if err != nil {
		return 0, op.done(network.NewError(name).Element(network.Line, line).
			Context(err.Error()).Cause(ErrDegenerateParameters).Err())
	}

	var added int
	err = network.Apply(net, func(w *network.Network) error {
		opts := []network.RowOption{network.WithName(old.Text(network.ColName) + "_repl")}
		if !inService {
			opts = append(opts, network.OutOfService())
		}
		from, _ := old.Bus(network.ColFromBus)
		to, _ := old.Bus(network.ColToBus)
		idx, err := w.AddLine(from, to, old.FloatOr(network.ColLengthKM, 0), params, opts...)
		if err != nil {
			return err
		}
		added = idx
		for _, sw := range w.Table(network.Switch).Rows() {
			if sw.Ref == nil || *sw.Ref != (network.ElementRef{Type: network.Line, Index: line}) || sw.Closed() {
				continue
			}
			bus, _ := sw.Bus(network.ColBus)
			if _, err := w.AddSwitch(bus, idx, network.Line, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, op.done(err)
	}
	return added, op.done(nil, logging.Int("line", added))
}

// parallelComplement computes the per-km parameters of a line that, in
// parallel with old, yields a line with parameters want.
func parallelComplement(old *network.Row, want network.LineParams, fHz float64) (network.LineParams, error) {
	parallel := float64(multiplicity(old))
	omega := 2 * math.Pi * fHz * 1e-3 // nF to uS

	zOld := complex(old.FloatOr(network.ColROhmPerKM, 0), old.FloatOr(network.ColXOhmPerKM, 0)) / complex(parallel, 0)
	yOld := complex(old.FloatOr(network.ColGUSPerKM, 0), omega*old.FloatOr(network.ColCNFPerKM, 0)) * complex(parallel, 0)
	iOld := old.FloatOr(network.ColMaxIKA, 0) * parallel

	zWant := complex(want.RPerKM, want.XPerKM)
	if zOld == 0 || zWant == 0 {
		return network.LineParams{}, fmt.Errorf("zero series impedance")
	}
	yNewSeries := 1/zWant - 1/zOld
	if cmplx.Abs(yNewSeries) < paramTolerance {
		return network.LineParams{}, fmt.Errorf("requested impedance equals the existing line")
	}
	zNew := 1 / yNewSeries
	yNew := complex(want.GPerKM, omega*want.CPerKM) - yOld

	return network.LineParams{
		StdType:  want.StdType,
		RPerKM:   real(zNew),
		XPerKM:   imag(zNew),
		GPerKM:   real(yNew),
		CPerKM:   imag(yNew) / omega,
		MaxIKA:   want.MaxIKA - iOld,
		Parallel: 1,
	}, nil
}

// CloseSwitchAtLineWithTwoOpenSwitches closes the first switch of every line
// that has at least two switches, all of them open. It returns the closed
// switches. Mutates net.
func CloseSwitchAtLineWithTwoOpenSwitches(net *network.Network) []int {
	op := begin("close_switch_at_line_with_two_open_switches", net)

	byLine := make(map[int][]*network.Row)
	var order []int
	for _, sw := range net.Table(network.Switch).Rows() {
		if sw.Ref == nil || sw.Ref.Type != network.Line {
			continue
		}
		if _, seen := byLine[sw.Ref.Index]; !seen {
			order = append(order, sw.Ref.Index)
		}
		byLine[sw.Ref.Index] = append(byLine[sw.Ref.Index], sw)
	}

	closed := make([]int, 0)
	for _, line := range order {
		switches := byLine[line]
		if len(switches) < 2 {
			continue
		}
		allOpen := true
		for _, sw := range switches {
			if sw.Closed() {
				allOpen = false
				break
			}
		}
		if allOpen {
			switches[0].Set(network.ColClosed, network.BoolValue(true))
			closed = append(closed, switches[0].Index)
		}
	}
	op.rewritten = len(closed)
	_ = op.done(nil, logging.Indices(closed))
	return closed
}
