package integrity

import (
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
	"github.com/dd0wney/cluso-gridtopo/pkg/validation"
)

// EqualOptions configures NetsEqual and Compare.
type EqualOptions struct {
	// ExcludeTypes are left out of the comparison
	ExcludeTypes []network.ElementType `validate:"dive,required"`
	// Atol is the absolute tolerance for numeric columns
	Atol float64 `validate:"gte=0"`
}

// IndexMismatch lists the rows of one table present on only one side.
type IndexMismatch struct {
	Type      network.ElementType
	OnlyLeft  []int
	OnlyRight []int
}

// Difference is one cell that compares unequal.
type Difference struct {
	Element network.ElementRef
	Column  string
	Left    string
	Right   string
}

// Report collects everything that keeps two networks from being equal.
type Report struct {
	Indices     []IndexMismatch
	Mismatches  []*network.NetworkError // column-set mismatches
	Differences []Difference
}

// Equal reports whether the comparison found nothing.
func (r *Report) Equal() bool {
	return len(r.Indices) == 0 && len(r.Mismatches) == 0 && len(r.Differences) == 0
}

// NetsEqual reports whether a and b hold the same tables, indices and values.
func NetsEqual(a, b NetworkReader, opts EqualOptions) bool {
	return Compare(a, b, opts).Equal()
}

// Compare lists the differences between a and b. A missing table and an empty
// one are equivalent and row order is ignored. Swapping a and b swaps the
// sides of every finding.
func Compare(a, b NetworkReader, opts EqualOptions) *Report {
	report := &Report{}
	if err := validation.Struct(&opts); err != nil {
		report.Mismatches = append(report.Mismatches,
			network.NewError("compare").Context(err.Error()).Cause(network.ErrStructural).Build())
		return report
	}

	excluded := make(map[network.ElementType]bool, len(opts.ExcludeTypes))
	for _, et := range opts.ExcludeTypes {
		excluded[et] = true
	}

	for _, et := range unionTypes(a, b) {
		if excluded[et] {
			continue
		}
		compareTable(report, et, a.Table(et), b.Table(et), opts.Atol)
	}

	if !report.Equal() {
		logging.DefaultLogger().With(logging.Component("integrity")).Debug("networks differ",
			logging.Int("index_mismatches", len(report.Indices)),
			logging.Int("column_mismatches", len(report.Mismatches)),
			logging.Count(len(report.Differences)))
	}
	return report
}

func unionTypes(a, b NetworkReader) []network.ElementType {
	seen := make(map[network.ElementType]struct{})
	for _, et := range a.Types() {
		seen[et] = struct{}{}
	}
	for _, et := range b.Types() {
		seen[et] = struct{}{}
	}
	out := make([]network.ElementType, 0, len(seen))
	for et := range seen {
		out = append(out, et)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// tableColumns is the union of the column names over every row.
func tableColumns(t *network.Table) []string {
	seen := make(map[string]struct{})
	for _, r := range t.Rows() {
		for _, c := range r.ColumnNames() {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func setDifference(xs, ys []string) []string {
	in := make(map[string]bool, len(ys))
	for _, y := range ys {
		in[y] = true
	}
	var out []string
	for _, x := range xs {
		if !in[x] {
			out = append(out, x)
		}
	}
	return out
}

func compareTable(report *Report, et network.ElementType, left, right *network.Table, atol float64) {
	if left.Len() == 0 && right.Len() == 0 {
		return
	}

	var onlyLeft, onlyRight []int
	for _, idx := range left.Indices() {
		if !right.Has(idx) {
			onlyLeft = append(onlyLeft, idx)
		}
	}
	for _, idx := range right.Indices() {
		if !left.Has(idx) {
			onlyRight = append(onlyRight, idx)
		}
	}
	if len(onlyLeft) > 0 || len(onlyRight) > 0 {
		sort.Ints(onlyLeft)
		sort.Ints(onlyRight)
		report.Indices = append(report.Indices, IndexMismatch{Type: et, OnlyLeft: onlyLeft, OnlyRight: onlyRight})
	}

	lc, rc := tableColumns(left), tableColumns(right)
	if ol, or := setDifference(lc, rc), setDifference(rc, lc); len(ol) > 0 || len(or) > 0 {
		report.Mismatches = append(report.Mismatches, network.ColumnMismatchError(et, ol, or))
	}

	shared := make([]int, 0, left.Len())
	for _, idx := range left.Indices() {
		if right.Has(idx) {
			shared = append(shared, idx)
		}
	}
	sort.Ints(shared)
	for _, idx := range shared {
		l, _ := left.Get(idx)
		r, _ := right.Get(idx)
		report.Differences = append(report.Differences, compareRows(et, l, r, atol)...)
	}
}

func compareRows(et network.ElementType, l, r *network.Row, atol float64) []Difference {
	var out []Difference
	at := network.ElementRef{Type: et, Index: l.Index}
	differ := func(col, left, right string) {
		out = append(out, Difference{Element: at, Column: col, Left: left, Right: right})
	}

	for _, col := range unionKeys(l.Buses, r.Buses) {
		lb, lok := l.Buses[col]
		rb, rok := r.Buses[col]
		if lok != rok || lb != rb {
			differ(col, busText(lb, lok), busText(rb, rok))
		}
	}

	if refText(l.Ref) != refText(r.Ref) {
		differ("element", refText(l.Ref), refText(r.Ref))
	}

	if lm, rm := membersText(l.Members), membersText(r.Members); lm != rm {
		differ("members", lm, rm)
	}

	for _, col := range unionKeys(l.Columns, r.Columns) {
		lv, ok := l.Columns[col]
		if !ok {
			lv = network.Null()
		}
		rv, ok := r.Columns[col]
		if !ok {
			rv = network.Null()
		}
		if !lv.Equal(rv, atol) {
			differ(col, lv.String(), rv.String())
		}
	}
	return out
}

func unionKeys[V any](a, b map[string]V) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func busText(b int, ok bool) string {
	if !ok {
		return "null"
	}
	return fmt.Sprint(b)
}

func refText(ref *network.ElementRef) string {
	if ref == nil {
		return "null"
	}
	return ref.String()
}

// membersText renders group membership independent of member order.
func membersText(members []network.GroupMember) string {
	if members == nil {
		return "null"
	}
	parts := make([]string, 0, len(members))
	for _, m := range members {
		if len(m.Indices) == 0 {
			continue
		}
		idx := append([]int(nil), m.Indices...)
		sort.Ints(idx)
		parts = append(parts, fmt.Sprintf("%s%v", m.Type, idx))
	}
	sort.Strings(parts)
	return fmt.Sprint(parts)
}
