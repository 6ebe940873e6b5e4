package integrity

import (
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/metrics"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

// danglingIn returns one error per reference of r that does not resolve.
func danglingIn(net NetworkReader, et network.ElementType, r *network.Row) []*network.NetworkError {
	var out []*network.NetworkError
	buses := net.Table(network.Bus)

	cols := make([]string, 0, len(r.Buses))
	for col := range r.Buses {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		b := r.Buses[col]
		if !buses.Has(b) {
			out = append(out, network.DanglingReferenceError(et, r.Index, col,
				network.ElementRef{Type: network.Bus, Index: b}))
		}
	}
	if r.Ref != nil {
		if _, ok := net.Resolve(*r.Ref); !ok {
			out = append(out, network.DanglingReferenceError(et, r.Index, "element", *r.Ref))
		}
	}
	for _, m := range r.Members {
		t := net.Table(m.Type)
		for _, idx := range m.Indices {
			if !t.Has(idx) {
				out = append(out, network.DanglingReferenceError(et, r.Index, "members",
					network.ElementRef{Type: m.Type, Index: idx}))
			}
		}
	}
	return out
}

// FalseElmLinks returns, sorted, the rows of et holding at least one
// reference to a bus or element that does not exist.
func FalseElmLinks(net NetworkReader, et network.ElementType) []int {
	out := make([]int, 0)
	if network.SchemaOf(et).Kind == network.KindMirror {
		return out
	}
	for _, r := range net.Table(et).Rows() {
		if len(danglingIn(net, et, r)) > 0 {
			out = append(out, r.Index)
		}
	}
	sort.Ints(out)
	return out
}

// FalseElmLinksLoop runs FalseElmLinks for every table of net and omits
// types without dangling references.
func FalseElmLinksLoop(net NetworkReader) map[network.ElementType][]int {
	out := make(map[network.ElementType][]int)
	for _, et := range net.Types() {
		if bad := FalseElmLinks(net, et); len(bad) > 0 {
			out[et] = bad
		}
	}
	return out
}

// ScanDanglingReferences reports every unresolved reference of net as data.
// It never fails; use it on possibly inconsistent networks.
func ScanDanglingReferences(net NetworkReader) []*network.NetworkError {
	out := make([]*network.NetworkError, 0)
	for _, et := range net.Types() {
		if network.SchemaOf(et).Kind == network.KindMirror {
			continue
		}
		for _, r := range net.Table(et).Rows() {
			out = append(out, danglingIn(net, et, r)...)
		}
	}
	metrics.DefaultRegistry().RecordIntegrityScan(len(out))
	if len(out) > 0 {
		logging.DefaultLogger().With(logging.Component("integrity")).
			Warn("dangling references found", logging.Count(len(out)))
	}
	return out
}

// DanglingReferenceConstraint reports rows whose references do not resolve.
type DanglingReferenceConstraint struct{}

// Name returns the constraint name
func (c *DanglingReferenceConstraint) Name() string {
	return "DanglingReference"
}

// Validate checks every reference of every row
func (c *DanglingReferenceConstraint) Validate(net NetworkReader) ([]Violation, error) {
	violations := make([]Violation, 0)
	for _, e := range ScanDanglingReferences(net) {
		index := 0
		if len(e.Indices) > 0 {
			index = e.Indices[0]
		}
		violations = append(violations, Violation{
			Type:       DanglingReference,
			Severity:   Error,
			Element:    network.ElementRef{Type: e.Type, Index: index},
			Constraint: c.Name(),
			Message:    e.Error(),
			Details: map[string]any{
				"column": e.Column,
				"target": e.Target.String(),
			},
		})
	}
	return violations, nil
}

// MirrorOrphanConstraint reports result and geodata rows without a row of
// the same index in their source table.
type MirrorOrphanConstraint struct {
	// ResultsOnly restricts the check to res_* tables
	ResultsOnly bool
}

// Name returns the constraint name
func (c *MirrorOrphanConstraint) Name() string {
	if c.ResultsOnly {
		return "MirrorOrphan(results)"
	}
	return "MirrorOrphan"
}

// Validate checks every mirror table against its source
func (c *MirrorOrphanConstraint) Validate(net NetworkReader) ([]Violation, error) {
	violations := make([]Violation, 0)
	for _, et := range net.Types() {
		s := network.SchemaOf(et)
		if s.Kind != network.KindMirror || (c.ResultsOnly && !et.IsResult()) {
			continue
		}
		source := net.Table(s.Source)
		for _, r := range net.Table(et).Rows() {
			if source.Has(r.Index) {
				continue
			}
			violations = append(violations, Violation{
				Type:       OrphanMirrorRow,
				Severity:   Warning,
				Element:    network.ElementRef{Type: et, Index: r.Index},
				Constraint: c.Name(),
				Message:    fmt.Sprintf("%s row %d has no %s row", et, r.Index, s.Source),
				Details: map[string]any{
					"source": string(s.Source),
				},
			})
		}
	}
	return violations, nil
}
