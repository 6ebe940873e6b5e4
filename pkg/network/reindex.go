package network

import (
	"fmt"
)

// Reindex renumbers the rows of et according to oldToNew and rewrites every
// reference to et across the network: bus columns when et is the bus table,
// element references whose type is et, group members of type et, and the
// index of every mirror table of et. Indices absent from the mapping keep
// their value.
//
// The mapping is validated against the table and every mirror before any
// row is touched, so a failing call leaves the network unchanged.
func Reindex(n *Network, et ElementType, oldToNew map[int]int) error {
	const op = "reindex"

	mapping := make(map[int]int, len(oldToNew))
	for old, nw := range oldToNew {
		if old != nw {
			mapping[old] = nw
		}
	}

	s := SchemaOf(et)
	if s.Kind == KindMirror {
		return NewError(op).Element(et).
			Context(fmt.Sprintf("mirror tables follow %s", s.Source)).Cause(ErrStructural).Err()
	}
	t, ok := n.Lookup(et)
	if !ok {
		if len(mapping) == 0 {
			return nil
		}
		return StructuralError(op, et, SortedUnique(keys(mapping))...)
	}

	var missing []int
	for old := range mapping {
		if !t.Has(old) {
			missing = append(missing, old)
		}
	}
	if len(missing) > 0 {
		return NewError(op).Element(et, SortedUnique(missing)...).
			Context("indices not in table").Cause(ErrStructural).Err()
	}
	if len(mapping) == 0 {
		return nil
	}

	final, err := t.finalIndices(op, mapping)
	if err != nil {
		return err
	}
	mirrors := n.Mirrors(et)
	mirrorFinal := make([][]int, len(mirrors))
	for i, m := range mirrors {
		mf, err := m.finalIndices(op, mapping)
		if err != nil {
			return err
		}
		mirrorFinal[i] = mf
	}

	// commit
	t.renumber(final)
	for i, m := range mirrors {
		m.renumber(mirrorFinal[i])
	}
	RedirectReferences(n, et, mapping)
	return nil
}

// ReindexElements is the positional form of Reindex: oldIndices[i] becomes
// newIndices[i]. A nil oldIndices means every index of the table in table
// order.
func ReindexElements(n *Network, et ElementType, newIndices, oldIndices []int) error {
	const op = "reindex_elements"

	if oldIndices == nil {
		oldIndices = n.Table(et).Indices()
	}
	if len(newIndices) != len(oldIndices) {
		return NewError(op).Element(et).
			Context(fmt.Sprintf("%d new indices for %d old indices", len(newIndices), len(oldIndices))).
			Cause(ErrStructural).Err()
	}
	mapping := make(map[int]int, len(oldIndices))
	for i, old := range oldIndices {
		if prev, dup := mapping[old]; dup && prev != newIndices[i] {
			return NewError(op).Element(et, old).
				Context("index mapped twice").Cause(ErrConflict).Err()
		}
		mapping[old] = newIndices[i]
	}
	return Reindex(n, et, mapping)
}

// RenumberContiguous maps the indices of et, in table order, onto
// start, start+1, ... and returns the mapping that was applied.
func RenumberContiguous(n *Network, et ElementType, start int) (map[int]int, error) {
	if start < 0 {
		return nil, NewError("renumber").Element(et, start).
			Context("negative start index").Cause(ErrStructural).Err()
	}
	indices := n.Table(et).Indices()
	mapping := make(map[int]int, len(indices))
	for i, old := range indices {
		mapping[old] = start + i
	}
	if err := Reindex(n, et, mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

// RenumberAllContiguous renumbers the bus table first and then every other
// registered table held by the network.
func RenumberAllContiguous(n *Network, start int) (map[ElementType]map[int]int, error) {
	out := make(map[ElementType]map[int]int)
	order := []ElementType{Bus}
	for _, et := range Types() {
		if et != Bus {
			order = append(order, et)
		}
	}
	for _, et := range order {
		if _, ok := n.Lookup(et); !ok {
			continue
		}
		m, err := RenumberContiguous(n, et, start)
		if err != nil {
			return out, err
		}
		out[et] = m
	}
	return out, nil
}

// RedirectReferences rewrites every reference to et through mapping without
// touching the rows of et itself. The mapping need not be injective, which
// makes it the building block for fusing rows. It returns the number of
// rewritten reference values.
func RedirectReferences(n *Network, et ElementType, mapping map[int]int) int {
	if len(mapping) == 0 {
		return 0
	}
	rewritten := 0
	for _, tt := range n.order {
		if SchemaOf(tt).Kind == KindMirror {
			continue
		}
		for _, r := range n.tables[tt].rows {
			if et == Bus {
				for col, b := range r.Buses {
					if nb, ok := mapping[b]; ok {
						r.Buses[col] = nb
						rewritten++
					}
				}
			}
			if r.Ref != nil && r.Ref.Type == et {
				if ni, ok := mapping[r.Ref.Index]; ok {
					r.Ref.Index = ni
					rewritten++
				}
			}
			for mi := range r.Members {
				if r.Members[mi].Type != et {
					continue
				}
				for k, idx := range r.Members[mi].Indices {
					if ni, ok := mapping[idx]; ok {
						r.Members[mi].Indices[k] = ni
						rewritten++
					}
				}
			}
		}
	}
	return rewritten
}

// RetargetReferences moves references to rows of from onto rows of to:
// element references and group members pointing at from[old] are rewritten
// to to[mapping[old]]. It returns the number of rewritten references.
func RetargetReferences(n *Network, from, to ElementType, mapping map[int]int) int {
	if len(mapping) == 0 {
		return 0
	}
	rewritten := 0
	for _, tt := range n.order {
		if SchemaOf(tt).Kind == KindMirror {
			continue
		}
		for _, r := range n.tables[tt].rows {
			if r.Ref != nil && r.Ref.Type == from {
				if ni, ok := mapping[r.Ref.Index]; ok {
					r.Ref = &ElementRef{Type: to, Index: ni}
					rewritten++
				}
			}
			if r.Members == nil {
				continue
			}
			var moved []int
			members := r.Members[:0]
			for _, m := range r.Members {
				if m.Type != from {
					members = append(members, m)
					continue
				}
				var kept []int
				for _, idx := range m.Indices {
					if ni, ok := mapping[idx]; ok {
						moved = append(moved, ni)
						rewritten++
					} else {
						kept = append(kept, idx)
					}
				}
				if len(kept) > 0 {
					members = append(members, GroupMember{Type: from, Indices: kept})
				}
			}
			r.Members = members
			if len(moved) > 0 {
				r.Members = addMembers(r.Members, to, moved)
			}
		}
	}
	return rewritten
}

func addMembers(members []GroupMember, et ElementType, indices []int) []GroupMember {
	for i := range members {
		if members[i].Type == et {
			members[i].Indices = SortedUnique(append(members[i].Indices, indices...))
			return members
		}
	}
	return append(members, GroupMember{Type: et, Indices: SortedUnique(indices)})
}

func keys(m map[int]int) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
