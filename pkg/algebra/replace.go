package algebra

import (
	"fmt"

	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
	"github.com/dd0wney/cluso-gridtopo/pkg/validation"
)

// ReplaceOptions selects the rows to move and the columns carried along.
type ReplaceOptions struct {
	// Indices lists the rows to move; nil moves every row.
	Indices []int
	// NewIndices are the indices in the target table; nil allocates
	// consecutive indices above the largest existing one.
	NewIndices []int
	// ColsToKeep replaces the default optional columns; nil keeps the
	// defaults (power limits).
	ColsToKeep []string `validate:"omitempty,dive,column"`
	// AddColsToKeep are carried in addition.
	AddColsToKeep []string `validate:"omitempty,dive,column"`
}

var (
	defaultOptionalColumns = []string{network.ColMaxPMW, network.ColMinPMW, network.ColMaxQMVar, network.ColMinQMVar}
	pqElementTypes         = map[network.ElementType]bool{network.Load: true, network.SGen: true, network.Storage: true}
)

// replacement describes one element-type move.
type replacement struct {
	name string
	from network.ElementType
	to   network.ElementType
	base []string
	// optional are carried when ReplaceOptions.ColsToKeep is nil.
	optional []string
	// prepare runs on the working copy before any row moves and returns the
	// number of rows it removed.
	prepare func(w *network.Network) int
	// fill sets target-type columns derived from the source row and results.
	fill func(w *network.Network, old, row *network.Row)
}

// ReplacePQElmtype moves load, sgen or storage rows to another of these
// tables. Active and reactive power and their limits change sign when the
// two tables count power in opposite directions. It returns the new indices.
// Mutates net.
func ReplacePQElmtype(net *network.Network, from, to network.ElementType, opts ReplaceOptions) ([]int, error) {
	if !pqElementTypes[from] || !pqElementTypes[to] || from == to {
		err := network.NewError("replace_pq_elmtype").Element(from).
			Context(fmt.Sprintf("cannot replace %s by %s", from, to)).Cause(network.ErrStructural).Err()
		return nil, begin("replace_pq_elmtype", net).done(err)
	}
	return replaceElements(net, replacement{
		name:     "replace_pq_elmtype",
		from:     from,
		to:       to,
		base:     []string{network.ColPMW, network.ColQMVar, network.ColInService, network.ColName, network.ColControllable},
		optional: defaultOptionalColumns,
	}, opts)
}

// ReplaceGenBySGen turns generators into static generators. Reactive power is
// taken from res_gen where available. Mutates net.
func ReplaceGenBySGen(net *network.Network, opts ReplaceOptions) ([]int, error) {
	return replaceElements(net, replacement{
		name:     "replace_gen_by_sgen",
		from:     network.Gen,
		to:       network.SGen,
		base:     []string{network.ColPMW, network.ColInService, network.ColName, network.ColControllable},
		optional: defaultOptionalColumns,
		fill: func(w *network.Network, old, row *network.Row) {
			q := 0.0
			if res, ok := w.Table(network.ResultOf(network.Gen)).Get(old.Index); ok {
				q = res.FloatOr(network.ColQMVar, 0)
			}
			row.Set(network.ColQMVar, network.FloatValue(q))
		},
	}, opts)
}

// ReplaceSGenByGen turns static generators into voltage-controlled
// generators. The voltage setpoint is taken from res_bus where available.
// Mutates net.
func ReplaceSGenByGen(net *network.Network, opts ReplaceOptions) ([]int, error) {
	return replaceElements(net, replacement{
		name:     "replace_sgen_by_gen",
		from:     network.SGen,
		to:       network.Gen,
		base:     []string{network.ColPMW, network.ColInService, network.ColName, network.ColControllable},
		optional: defaultOptionalColumns,
		fill: func(w *network.Network, old, row *network.Row) {
			row.Set(network.ColVmPU, network.FloatValue(busResult(w, old, network.ColVmPU, 1.0))).
				Set(network.ColSlack, network.BoolValue(false))
		},
	}, opts)
}

// ReplaceExtGridByGen turns external grids into generators keeping their
// voltage setpoint. Active power is taken from res_ext_grid where available.
// Mutates net.
func ReplaceExtGridByGen(net *network.Network, opts ReplaceOptions) ([]int, error) {
	return replaceElements(net, replacement{
		name:     "replace_ext_grid_by_gen",
		from:     network.ExtGrid,
		to:       network.Gen,
		base:     []string{network.ColVmPU, network.ColInService, network.ColName},
		optional: defaultOptionalColumns,
		fill: func(w *network.Network, old, row *network.Row) {
			p := 0.0
			if res, ok := w.Table(network.ResultOf(network.ExtGrid)).Get(old.Index); ok {
				p = res.FloatOr(network.ColPMW, 0)
			}
			row.Set(network.ColPMW, network.FloatValue(p)).
				Set(network.ColSlack, network.BoolValue(false))
		},
	}, opts)
}

// ReplaceGenByExtGrid turns generators into external grids keeping their
// voltage setpoint. The angle is taken from res_bus where available.
// Mutates net.
func ReplaceGenByExtGrid(net *network.Network, opts ReplaceOptions) ([]int, error) {
	return replaceElements(net, replacement{
		name:     "replace_gen_by_ext_grid",
		from:     network.Gen,
		to:       network.ExtGrid,
		base:     []string{network.ColVmPU, network.ColInService, network.ColName},
		optional: defaultOptionalColumns,
		fill: func(w *network.Network, old, row *network.Row) {
			row.Set(network.ColVaDegree, network.FloatValue(busResult(w, old, network.ColVaDegree, 0)))
		},
	}, opts)
}

func busResult(w *network.Network, r *network.Row, col string, def float64) float64 {
	b, ok := r.Bus(network.ColBus)
	if !ok {
		return def
	}
	res, ok := w.Table(network.ResultOf(network.Bus)).Get(b)
	if !ok {
		return def
	}
	return res.FloatOr(col, def)
}

func replaceElements(net *network.Network, rep replacement, opts ReplaceOptions) ([]int, error) {
	op := begin(rep.name, net, logging.String("from", string(rep.from)), logging.String("to", string(rep.to)))
	if err := validation.Struct(&opts); err != nil {
		return nil, op.done(network.NewError(rep.name).Element(rep.from).
			Context(err.Error()).Cause(network.ErrStructural).Err())
	}

	indices := opts.Indices
	if indices == nil {
		indices = net.Table(rep.from).Indices()
	}
	if err := requireIndices(rep.name, net, rep.from, indices); err != nil {
		return nil, op.done(err)
	}
	if len(network.SortedUnique(indices)) != len(indices) {
		return nil, op.done(network.NewError(rep.name).Element(rep.from, indices...).
			Context("index listed twice").Cause(network.ErrStructural).Err())
	}
	if len(indices) == 0 {
		return []int{}, op.done(nil)
	}

	newIndices, err := targetIndices(rep, net.Table(rep.to), len(indices), opts.NewIndices)
	if err != nil {
		return nil, op.done(err)
	}

	flip := false
	if a, errA := network.SigningSystemValue(rep.from); errA == nil {
		if b, errB := network.SigningSystemValue(rep.to); errB == nil {
			flip = a != b
		}
	}

	carry := append([]string{}, rep.base...)
	if opts.ColsToKeep != nil {
		carry = append(carry, opts.ColsToKeep...)
	} else {
		carry = append(carry, rep.optional...)
	}
	carry = append(carry, opts.AddColsToKeep...)

	mapping := make(map[int]int, len(indices))
	err = network.Apply(net, func(w *network.Network) error {
		if rep.prepare != nil {
			op.dropped += rep.prepare(w)
		}
		src := w.Table(rep.from)
		dst := w.Ensure(rep.to)
		resSrc := w.Table(network.ResultOf(rep.from))

		for i, old := range indices {
			r, _ := src.Get(old)
			row := network.NewRow(newIndices[i])
			for col, b := range r.Buses {
				row.Buses[col] = b
			}
			for _, col := range carry {
				if v, ok := r.Get(col); ok {
					row.Set(col, v.Clone())
				}
			}
			if flip {
				flipSigns(row)
			}
			if rep.fill != nil {
				rep.fill(w, r, row)
			}
			if err := dst.Append(row); err != nil {
				return err
			}

			if res, ok := resSrc.Get(old); ok {
				moved := res.Clone()
				moved.Index = newIndices[i]
				if flip {
					negate(moved, network.ColPMW, network.ColQMVar)
				}
				if err := w.Ensure(network.ResultOf(rep.to)).Append(moved); err != nil {
					return err
				}
			}
			mapping[old] = newIndices[i]
		}

		src.Remove(indices...)
		for _, m := range w.Mirrors(rep.from) {
			m.Remove(indices...)
		}
		op.rewritten = network.RetargetReferences(w, rep.from, rep.to, mapping)
		return nil
	})
	if err != nil {
		return nil, op.done(err)
	}
	op.dropped += len(indices)
	return newIndices, op.done(nil, logging.Indices(newIndices))
}

// targetIndices validates caller-given indices against dst or allocates
// consecutive ones.
func targetIndices(rep replacement, dst *network.Table, count int, given []int) ([]int, error) {
	if given == nil {
		out := make([]int, count)
		next := dst.NextIndex()
		for i := range out {
			out[i] = next + i
		}
		return out, nil
	}
	if len(given) != count {
		return nil, network.NewError(rep.name).Element(rep.to).
			Context(fmt.Sprintf("%d new indices for %d rows", len(given), count)).Cause(network.ErrStructural).Err()
	}
	if err := validation.ValidateIndices("new indices", given); err != nil {
		return nil, network.NewError(rep.name).Element(rep.to).Context(err.Error()).Cause(network.ErrStructural).Err()
	}
	seen := network.NewIndexSet()
	for _, idx := range given {
		if seen.Has(idx) || dst.Has(idx) {
			return nil, network.ConflictError(rep.name, rep.to, idx)
		}
		seen.Add(idx)
	}
	return append([]int(nil), given...), nil
}

// flipSigns negates power and swaps the negated limits.
func flipSigns(r *network.Row) {
	negate(r, network.ColPMW, network.ColQMVar)
	swapNegated(r, network.ColMaxPMW, network.ColMinPMW)
	swapNegated(r, network.ColMaxQMVar, network.ColMinQMVar)
}

func negate(r *network.Row, cols ...string) {
	for _, col := range cols {
		if v, ok := r.Float(col); ok {
			r.Set(col, network.FloatValue(-v))
		}
	}
}

func swapNegated(r *network.Row, maxCol, minCol string) {
	maxV, hasMax := r.Get(maxCol)
	minV, hasMin := r.Get(minCol)
	delete(r.Columns, maxCol)
	delete(r.Columns, minCol)
	if hasMin {
		r.Set(maxCol, minV)
		negate(r, maxCol)
	}
	if hasMax {
		r.Set(minCol, maxV)
		negate(r, minCol)
	}
}
