package algebra

import (
	"fmt"

	"github.com/dd0wney/cluso-gridtopo/pkg/integrity"
	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

// MergeOptions configures Merge.
type MergeOptions struct {
	// Validate runs the default integrity validator on the result and fails
	// on the first Error-severity violation.
	Validate bool
	// ReindexLogLevel is the level of the per-type renumbering log lines.
	ReindexLogLevel logging.Level
}

// DefaultMergeOptions logs renumbering at debug level without validation.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{ReindexLogLevel: logging.DebugLevel}
}

// Merge returns the disjoint union of a and b. For every element type, rows
// of b whose index already exists in a are renumbered, in b's table order, to
// the block starting above the largest index of either network; other
// indices are kept. References inside b follow the renumbering. Neither input
// is mutated and the result carries the attributes of a.
func Merge(a, b *network.Network, opts MergeOptions) (*network.Network, error) {
	op := begin("merge", a, logging.String("other", b.ID.String()))

	if err := rejectOrphanMirrors(b); err != nil {
		return nil, op.done(err)
	}
	out := a.Clone()
	other := b.Clone()

	for _, et := range other.Types() {
		if network.SchemaOf(et).Kind == network.KindMirror {
			continue
		}
		mapping := collisionMapping(out, other, et)
		if len(mapping) == 0 {
			continue
		}
		if err := network.Reindex(other, et, mapping); err != nil {
			return nil, op.done(err)
		}
		op.rewritten += len(mapping)
		op.log.Log(opts.ReindexLogLevel, "renumbered colliding rows of merged network",
			logging.ElementType(et), logging.Count(len(mapping)))
	}

	for _, et := range other.Types() {
		t := out.Ensure(et)
		for _, r := range other.Table(et).Rows() {
			if err := t.Append(r); err != nil {
				return nil, op.done(err)
			}
		}
	}

	if opts.Validate {
		result, err := integrity.DefaultValidator().Validate(out)
		if err != nil {
			return nil, op.done(err)
		}
		if err := result.Err("merge"); err != nil {
			return nil, op.done(err)
		}
	}

	op.net = out
	return out, op.done(nil, logging.Int("rows", out.RowCount()))
}

// rejectOrphanMirrors fails when a result or geodata table of n holds rows
// its source table lacks. Such rows follow no renumbering.
func rejectOrphanMirrors(n *network.Network) error {
	for _, et := range n.Types() {
		s := network.SchemaOf(et)
		if s.Kind != network.KindMirror {
			continue
		}
		src := n.Table(s.Source)
		var orphans []int
		for _, idx := range n.Table(et).Indices() {
			if !src.Has(idx) {
				orphans = append(orphans, idx)
			}
		}
		if len(orphans) > 0 {
			return network.NewError("merge").Element(et, orphans...).
				Context(fmt.Sprintf("orphan mirror rows of %s in merged network %s", s.Source, n.Name)).
				Cause(network.ErrStructural).Err()
		}
	}
	return nil
}

// collisionMapping renumbers the indices of other's et table that exist in
// out's table or its mirrors. Targets start above every index of both
// networks, mirrors included.
func collisionMapping(out, other *network.Network, et network.ElementType) map[int]int {
	taken := network.NewIndexSet()
	highest := -1
	note := func(t *network.Table) {
		for _, idx := range t.Indices() {
			if idx > highest {
				highest = idx
			}
		}
	}

	if t, ok := out.Lookup(et); ok {
		taken.Add(t.Indices()...)
		note(t)
	}
	for _, m := range out.Mirrors(et) {
		taken.Add(m.Indices()...)
		note(m)
	}
	if taken.Len() == 0 {
		return nil
	}
	note(other.Table(et))
	for _, m := range other.Mirrors(et) {
		note(m)
	}

	mapping := make(map[int]int)
	next := highest + 1
	for _, idx := range other.Table(et).Indices() {
		if taken.Has(idx) {
			mapping[idx] = next
			next++
		}
	}
	return mapping
}
