package network

import (
	"fmt"
	"sort"
)

// Well-known column names
const (
	ColInService = "in_service"
	ColClosed    = "closed"
	ColName      = "name"
)

// ElementRef is a tagged reference to one row of another table.
type ElementRef struct {
	Type  ElementType
	Index int
}

// String renders the reference as type[index].
func (r ElementRef) String() string {
	return fmt.Sprintf("%s[%d]", r.Type, r.Index)
}

// GroupMember lists the member indices of one element type within a group.
type GroupMember struct {
	Type    ElementType
	Indices []int
}

// Row is one record of a table. Bus foreign keys live in Buses, the tagged
// element reference of switches, measurements, costs and controllers lives in
// Ref, group membership in Members and every other column in Columns.
type Row struct {
	Index   int
	Buses   map[string]int
	Ref     *ElementRef
	Members []GroupMember
	Columns map[string]Value
}

// NewRow creates an empty row with the given index.
func NewRow(index int) *Row {
	return &Row{
		Index:   index,
		Buses:   make(map[string]int),
		Columns: make(map[string]Value),
	}
}

// Clone creates a deep copy of a row
func (r *Row) Clone() *Row {
	clone := &Row{
		Index:   r.Index,
		Buses:   make(map[string]int, len(r.Buses)),
		Columns: make(map[string]Value, len(r.Columns)),
	}
	for k, v := range r.Buses {
		clone.Buses[k] = v
	}
	for k, v := range r.Columns {
		clone.Columns[k] = v.Clone()
	}
	if r.Ref != nil {
		ref := *r.Ref
		clone.Ref = &ref
	}
	if r.Members != nil {
		clone.Members = make([]GroupMember, len(r.Members))
		for i, m := range r.Members {
			clone.Members[i] = GroupMember{Type: m.Type, Indices: append([]int(nil), m.Indices...)}
		}
	}
	return clone
}

// Get gets a column value
func (r *Row) Get(col string) (Value, bool) {
	v, ok := r.Columns[col]
	return v, ok
}

// Set sets a column value and returns the row for chaining.
func (r *Row) Set(col string, v Value) *Row {
	if r.Columns == nil {
		r.Columns = make(map[string]Value)
	}
	r.Columns[col] = v
	return r
}

// Float returns a numeric column as float64. Missing and null values report false.
func (r *Row) Float(col string) (float64, bool) {
	v, ok := r.Columns[col]
	if !ok || v.IsNull() {
		return 0, false
	}
	return v.Number()
}

// FloatOr returns a numeric column or def when it is missing or null.
func (r *Row) FloatOr(col string, def float64) float64 {
	if f, ok := r.Float(col); ok {
		return f
	}
	return def
}

// Text returns a string column; missing or non-string values yield "".
func (r *Row) Text(col string) string {
	v, ok := r.Columns[col]
	if !ok {
		return ""
	}
	s, err := v.AsString()
	if err != nil {
		return ""
	}
	return s
}

// Flag returns a bool column, or def when it is missing or not a bool.
func (r *Row) Flag(col string, def bool) bool {
	v, ok := r.Columns[col]
	if !ok {
		return def
	}
	b, err := v.AsBool()
	if err != nil {
		return def
	}
	return b
}

// InService reports the in_service flag; rows without it are in service.
func (r *Row) InService() bool {
	return r.Flag(ColInService, true)
}

// Closed reports the closed flag of a switch; rows without it are closed.
func (r *Row) Closed() bool {
	return r.Flag(ColClosed, true)
}

// Bus returns the bus referenced by col.
func (r *Row) Bus(col string) (int, bool) {
	b, ok := r.Buses[col]
	return b, ok
}

// Terminals returns the buses referenced by the row in schema column order.
func (r *Row) Terminals(s Schema) []int {
	out := make([]int, 0, len(s.BusColumns))
	for _, col := range s.BusColumns {
		if b, ok := r.Buses[col]; ok {
			out = append(out, b)
		}
	}
	return out
}

// MemberIndices returns the member indices of et in a group row.
func (r *Row) MemberIndices(et ElementType) []int {
	for _, m := range r.Members {
		if m.Type == et {
			return m.Indices
		}
	}
	return nil
}

// ColumnNames returns every column name of the row, including bus columns,
// the element reference and group membership, sorted.
func (r *Row) ColumnNames() []string {
	names := make([]string, 0, len(r.Columns)+len(r.Buses)+2)
	for k := range r.Columns {
		names = append(names, k)
	}
	for k := range r.Buses {
		names = append(names, k)
	}
	if r.Ref != nil {
		names = append(names, "element", "et")
	}
	if r.Members != nil {
		names = append(names, "members")
	}
	sort.Strings(names)
	return names
}

// SwitchCode returns the et code a switch uses for a target element type.
func SwitchCode(et ElementType) (string, error) {
	switch et {
	case Bus:
		return "b", nil
	case Line:
		return "l", nil
	case Trafo:
		return "t", nil
	case Trafo3W:
		return "t3", nil
	default:
		return "", fmt.Errorf("element type %q cannot be switched", et)
	}
}

// ParseSwitchCode maps a switch et code to its target element type.
func ParseSwitchCode(code string) (ElementType, error) {
	switch code {
	case "b":
		return Bus, nil
	case "l":
		return Line, nil
	case "t":
		return Trafo, nil
	case "t3":
		return Trafo3W, nil
	default:
		return "", fmt.Errorf("unknown switch element code %q", code)
	}
}
