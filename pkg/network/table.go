package network

import (
	"sort"
)

// Table is an ordered set of rows keyed by a unique index.
type Table struct {
	Type ElementType
	rows []*Row
	pos  map[int]int // index -> position in rows
}

// NewTable creates an empty table for et.
func NewTable(et ElementType) *Table {
	return &Table{
		Type: et,
		rows: make([]*Row, 0),
		pos:  make(map[int]int),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Indices returns the row indices in table order.
func (t *Table) Indices() []int {
	out := make([]int, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Index
	}
	return out
}

// Rows returns the live rows in table order. Callers may edit columns and
// references but must not change Index; use Reindex for that.
func (t *Table) Rows() []*Row {
	return t.rows
}

// Get returns the row with the given index.
func (t *Table) Get(index int) (*Row, bool) {
	p, ok := t.pos[index]
	if !ok {
		return nil, false
	}
	return t.rows[p], true
}

// Has reports whether index exists in the table.
func (t *Table) Has(index int) bool {
	_, ok := t.pos[index]
	return ok
}

// Append adds a row at the end of the table.
func (t *Table) Append(r *Row) error {
	if r.Index < 0 {
		return StructuralError("append", t.Type, r.Index)
	}
	if _, exists := t.pos[r.Index]; exists {
		return ConflictError("append", t.Type, r.Index)
	}
	t.pos[r.Index] = len(t.rows)
	t.rows = append(t.rows, r)
	return nil
}

// Remove deletes the rows with the given indices and returns how many were removed.
func (t *Table) Remove(indices ...int) int {
	drop := NewIndexSet(indices...)
	return t.Retain(func(r *Row) bool { return !drop.Has(r.Index) })
}

// Retain keeps the rows for which keep returns true and returns how many
// rows were removed.
func (t *Table) Retain(keep func(*Row) bool) int {
	kept := t.rows[:0]
	for _, r := range t.rows {
		if keep(r) {
			kept = append(kept, r)
		}
	}
	removed := len(t.rows) - len(kept)
	for i := len(kept); i < len(t.rows); i++ {
		t.rows[i] = nil
	}
	t.rows = kept
	t.reindexPositions()
	return removed
}

// MaxIndex returns the largest index in the table.
func (t *Table) MaxIndex() (int, bool) {
	if len(t.rows) == 0 {
		return 0, false
	}
	max := t.rows[0].Index
	for _, r := range t.rows[1:] {
		if r.Index > max {
			max = r.Index
		}
	}
	return max, true
}

// NextIndex returns the first index above every existing index.
func (t *Table) NextIndex() int {
	if max, ok := t.MaxIndex(); ok {
		return max + 1
	}
	return 0
}

// Columns returns the union of value column names over all rows, sorted.
func (t *Table) Columns() []string {
	seen := make(map[string]struct{})
	for _, r := range t.rows {
		for k := range r.Columns {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HasColumn reports whether any row carries col.
func (t *Table) HasColumn(col string) bool {
	for _, r := range t.rows {
		if _, ok := r.Columns[col]; ok {
			return true
		}
	}
	return false
}

// DropColumn removes col from every row.
func (t *Table) DropColumn(col string) {
	for _, r := range t.rows {
		delete(r.Columns, col)
	}
}

// Clone creates a deep copy of the table
func (t *Table) Clone() *Table {
	clone := &Table{
		Type: t.Type,
		rows: make([]*Row, len(t.rows)),
		pos:  make(map[int]int, len(t.pos)),
	}
	for i, r := range t.rows {
		clone.rows[i] = r.Clone()
		clone.pos[r.Index] = i
	}
	return clone
}

// finalIndices applies mapping to every row index and returns the resulting
// index of each row in table order, failing when two rows would alias.
func (t *Table) finalIndices(op string, mapping map[int]int) ([]int, error) {
	final := make([]int, len(t.rows))
	owner := make(map[int]int, len(t.rows))
	for i, r := range t.rows {
		n := r.Index
		if m, ok := mapping[r.Index]; ok {
			n = m
		}
		if n < 0 {
			return nil, NewError(op).Element(t.Type, r.Index).
				Context("negative target index").Cause(ErrStructural).Err()
		}
		if prev, dup := owner[n]; dup {
			return nil, NewError(op).Element(t.Type, prev, r.Index).
				Context("both rows would map to the same index").Cause(ErrConflict).Err()
		}
		owner[n] = r.Index
		final[i] = n
	}
	return final, nil
}

// renumber assigns the precomputed final indices to the rows.
func (t *Table) renumber(final []int) {
	for i, r := range t.rows {
		r.Index = final[i]
	}
	t.reindexPositions()
}

func (t *Table) reindexPositions() {
	t.pos = make(map[int]int, len(t.rows))
	for i, r := range t.rows {
		t.pos[r.Index] = i
	}
}
