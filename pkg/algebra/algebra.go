// Package algebra implements structural operations over networks: disjoint
// union, induced subnetworks, pruning, bus fusion, parallel-line and plant
// contraction, element-type replacement and zero-impedance branch collapsing.
//
// Operations documented as "mutates net" edit the caller's network in place
// and are all-or-nothing: a plan is computed and checked first, and the edits
// are committed only when every check passed. Every other operation returns a
// new network and leaves its inputs untouched.
package algebra

import (
	"time"

	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/metrics"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

// operation instruments one algebra entry point.
type operation struct {
	name      string
	log       logging.Logger
	timer     *logging.TimedOperation
	start     time.Time
	net       *network.Network
	dropped   int
	rewritten int
}

func begin(name string, n *network.Network, fields ...logging.Field) *operation {
	log := logging.DefaultLogger().With(logging.Component("algebra"))
	if n != nil {
		fields = append(fields, logging.NetworkID(n.ID))
	}
	log.Debug(name+" started", append([]logging.Field{logging.Operation(name)}, fields...)...)
	return &operation{
		name:  name,
		log:   log,
		timer: logging.StartTimer(log, name, fields...),
		start: time.Now(),
		net:   n,
	}
}

// drop adds the per-type removal counts of a cascade.
func (op *operation) drop(counts map[network.ElementType]int) {
	for _, c := range counts {
		op.dropped += c
	}
}

// done records metrics and the summary log line and passes err through.
func (op *operation) done(err error, fields ...logging.Field) error {
	reg := metrics.DefaultRegistry()
	reg.RecordOperation(op.name, err, time.Since(op.start))
	if err != nil {
		op.timer.EndError(err)
		return err
	}
	reg.RecordDropped(op.name, op.dropped)
	reg.RecordRewritten(op.name, op.rewritten)
	if op.net != nil {
		reg.SetNetworkRows(rowCounts(op.net))
	}
	fields = append(fields, logging.Int("dropped", op.dropped), logging.Int("rewritten", op.rewritten))
	op.timer.End(fields...)
	return nil
}

func rowCounts(n *network.Network) map[string]int {
	out := make(map[string]int)
	for _, et := range n.Types() {
		if network.SchemaOf(et).Kind == network.KindMirror {
			continue
		}
		out[string(et)] = n.Table(et).Len()
	}
	return out
}

// requireIndices fails with a StructuralError when et is a mirror table or
// any of indices is absent from it.
func requireIndices(opName string, n *network.Network, et network.ElementType, indices []int) error {
	if s := network.SchemaOf(et); s.Kind == network.KindMirror {
		return network.NewError(opName).Element(et).
			Context("mirror tables follow " + string(s.Source)).Cause(network.ErrStructural).Err()
	}
	t := n.Table(et)
	var missing []int
	for _, idx := range indices {
		if !t.Has(idx) {
			missing = append(missing, idx)
		}
	}
	if len(missing) > 0 {
		return network.StructuralError(opName, et, network.SortedUnique(missing)...)
	}
	return nil
}

// copyNetworkAttributes carries the scalar attributes of src to dst.
func copyNetworkAttributes(dst, src *network.Network) {
	dst.Name = src.Name
	dst.SnMVA = src.SnMVA
	dst.FHz = src.FHz
}
