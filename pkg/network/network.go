package network

import (
	"github.com/google/uuid"
)

// Network is an ordered mapping from element type to table.
//
// A Network is not safe for concurrent mutation. Read-only queries against
// one snapshot may run concurrently; independent networks share no state.
type Network struct {
	ID    uuid.UUID // identity only; never part of structural equality
	Name  string
	SnMVA float64
	FHz   float64

	tables map[ElementType]*Table
	order  []ElementType
}

// New creates an empty network.
func New(name string) *Network {
	return &Network{
		ID:     uuid.New(),
		Name:   name,
		SnMVA:  1,
		FHz:    50,
		tables: make(map[ElementType]*Table),
		order:  make([]ElementType, 0),
	}
}

// Lookup returns the table for et if the network holds one.
func (n *Network) Lookup(et ElementType) (*Table, bool) {
	t, ok := n.tables[et]
	return t, ok
}

// Table returns the table for et for reading. A missing table yields a
// detached empty table, so rows appended to it are not kept; use Ensure
// when writing.
func (n *Network) Table(et ElementType) *Table {
	if t, ok := n.tables[et]; ok {
		return t
	}
	return NewTable(et)
}

// Ensure returns the table for et, creating it when missing.
func (n *Network) Ensure(et ElementType) *Table {
	if t, ok := n.tables[et]; ok {
		return t
	}
	t := NewTable(et)
	n.tables[et] = t
	n.order = append(n.order, et)
	return t
}

// SetTable stores t under its element type, replacing any previous table.
func (n *Network) SetTable(t *Table) {
	if _, ok := n.tables[t.Type]; !ok {
		n.order = append(n.order, t.Type)
	}
	n.tables[t.Type] = t
}

// RemoveTable deletes the table for et.
func (n *Network) RemoveTable(et ElementType) {
	if _, ok := n.tables[et]; !ok {
		return
	}
	delete(n.tables, et)
	for i, t := range n.order {
		if t == et {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// Types returns the element types held by the network in insertion order.
func (n *Network) Types() []ElementType {
	return append([]ElementType(nil), n.order...)
}

// Mirrors returns the held tables that mirror the index space of et.
func (n *Network) Mirrors(et ElementType) []*Table {
	var out []*Table
	for _, t := range n.order {
		s := SchemaOf(t)
		if s.Kind == KindMirror && s.Source == et {
			out = append(out, n.tables[t])
		}
	}
	return out
}

// RowCount returns the number of rows over all non-mirror tables.
func (n *Network) RowCount() int {
	total := 0
	for _, et := range n.order {
		if SchemaOf(et).Kind != KindMirror {
			total += n.tables[et].Len()
		}
	}
	return total
}

// Clone creates a deep copy of the network with a fresh identity.
func (n *Network) Clone() *Network {
	clone := &Network{
		ID:     uuid.New(),
		Name:   n.Name,
		SnMVA:  n.SnMVA,
		FHz:    n.FHz,
		tables: make(map[ElementType]*Table, len(n.tables)),
		order:  append([]ElementType(nil), n.order...),
	}
	for et, t := range n.tables {
		clone.tables[et] = t.Clone()
	}
	return clone
}

// Resolve reports whether ref points at an existing row.
func (n *Network) Resolve(ref ElementRef) (*Row, bool) {
	t, ok := n.tables[ref.Type]
	if !ok {
		return nil, false
	}
	return t.Get(ref.Index)
}
