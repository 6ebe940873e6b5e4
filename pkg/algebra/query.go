package algebra

import (
	"fmt"
	"strings"

	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

// GetElementIndices looks rows of et up by name. With exact, it returns the
// first row named like each entry of names, in the order of names, and fails
// for a name without a match. Otherwise it returns, in table order, every row
// whose name contains any of names.
func GetElementIndices(net *network.Network, et network.ElementType, names []string, exact bool) ([]int, error) {
	const name = "get_element_indices"
	t, ok := net.Lookup(et)
	if !ok {
		return nil, network.StructuralError(name, et)
	}

	out := make([]int, 0, len(names))
	if exact {
		first := make(map[string]int, t.Len())
		for _, r := range t.Rows() {
			n := r.Text(network.ColName)
			if _, seen := first[n]; !seen {
				first[n] = r.Index
			}
		}
		for _, n := range names {
			idx, ok := first[n]
			if !ok {
				return nil, network.NewError(name).Element(et).
					Context("no element named " + n).Cause(network.ErrStructural).Err()
			}
			out = append(out, idx)
		}
		return out, nil
	}

	for _, r := range t.Rows() {
		n := r.Text(network.ColName)
		for _, part := range names {
			if strings.Contains(n, part) {
				out = append(out, r.Index)
				break
			}
		}
	}
	return out, nil
}

// GetElementIndicesByTypes looks names up in every table of types and returns
// one result per type, in the order of types.
func GetElementIndicesByTypes(net *network.Network, types []network.ElementType, names []string, exact bool) ([][]int, error) {
	out := make([][]int, 0, len(types))
	for _, et := range types {
		idx, err := GetElementIndices(net, et, names, exact)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

// GetElementIndicesPairs looks names[i] up exactly in the table of types[i]
// and returns the first match of every pair.
func GetElementIndicesPairs(net *network.Network, types []network.ElementType, names []string) ([]int, error) {
	if len(types) != len(names) {
		return nil, network.NewError("get_element_indices").
			Context(fmt.Sprintf("%d element types for %d names", len(types), len(names))).
			Cause(network.ErrStructural).Err()
	}
	out := make([]int, len(names))
	for i, et := range types {
		idx, err := GetElementIndices(net, et, names[i:i+1], true)
		if err != nil {
			return nil, err
		}
		out[i] = idx[0]
	}
	return out, nil
}
