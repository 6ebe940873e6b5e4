package integrity

import (
	"fmt"

	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

// ColumnConstraint validates one value column of a table
type ColumnConstraint struct {
	Element  network.ElementType // Table to apply the constraint to
	Column   string              // Name of the column
	Required bool                // Whether every row must carry the column
	Min      *float64            // Minimum value (numeric columns)
	Max      *float64            // Maximum value (numeric columns)
}

// Name returns the constraint name
func (cc *ColumnConstraint) Name() string {
	return fmt.Sprintf("ColumnConstraint(%s.%s)", cc.Element, cc.Column)
}

// Validate checks the column constraint against every row of the table
func (cc *ColumnConstraint) Validate(net NetworkReader) ([]Violation, error) {
	violations := make([]Violation, 0)

	for _, r := range net.Table(cc.Element).Rows() {
		v, exists := r.Get(cc.Column)
		if !exists || v.IsNull() {
			if cc.Required {
				violations = append(violations, Violation{
					Type:       MissingColumn,
					Severity:   Error,
					Element:    network.ElementRef{Type: cc.Element, Index: r.Index},
					Constraint: cc.Name(),
					Message:    fmt.Sprintf("%s %d missing required column '%s'", cc.Element, r.Index, cc.Column),
					Details: map[string]any{
						"column": cc.Column,
					},
				})
			}
			continue
		}

		if cc.Min == nil && cc.Max == nil {
			continue
		}
		value, ok := v.Number()
		if !ok {
			violations = append(violations, Violation{
				Type:       InvalidStructure,
				Severity:   Error,
				Element:    network.ElementRef{Type: cc.Element, Index: r.Index},
				Constraint: cc.Name(),
				Message:    fmt.Sprintf("%s %d column '%s' is not numeric", cc.Element, r.Index, cc.Column),
				Details: map[string]any{
					"column": cc.Column,
					"value":  v.String(),
				},
			})
			continue
		}
		if cc.Min != nil && value < *cc.Min {
			violations = append(violations, cc.outOfRange(r.Index, value, "min", *cc.Min))
		}
		if cc.Max != nil && value > *cc.Max {
			violations = append(violations, cc.outOfRange(r.Index, value, "max", *cc.Max))
		}
	}

	return violations, nil
}

func (cc *ColumnConstraint) outOfRange(index int, value float64, bound string, limit float64) Violation {
	word := "below minimum"
	if bound == "max" {
		word = "above maximum"
	}
	return Violation{
		Type:       OutOfRange,
		Severity:   Error,
		Element:    network.ElementRef{Type: cc.Element, Index: index},
		Constraint: cc.Name(),
		Message: fmt.Sprintf("%s %d column '%s' value %g is %s %g",
			cc.Element, index, cc.Column, value, word, limit),
		Details: map[string]any{
			"column": cc.Column,
			"value":  value,
			bound:    limit,
		},
	}
}

// UniqueColumnConstraint ensures a column value is unique within a table.
// Rows without the column are not checked.
type UniqueColumnConstraint struct {
	Element network.ElementType
	Column  string
}

// Name returns the constraint name
func (uc *UniqueColumnConstraint) Name() string {
	return fmt.Sprintf("UniqueColumnConstraint(%s.%s)", uc.Element, uc.Column)
}

// Validate checks the uniqueness constraint
func (uc *UniqueColumnConstraint) Validate(net NetworkReader) ([]Violation, error) {
	violations := make([]Violation, 0)
	firstSeen := make(map[string]int)

	for _, r := range net.Table(uc.Element).Rows() {
		v, ok := r.Get(uc.Column)
		if !ok || v.IsNull() {
			continue
		}
		key := v.String()
		first, dup := firstSeen[key]
		if !dup {
			firstSeen[key] = r.Index
			continue
		}
		violations = append(violations, Violation{
			Type:       UniquenessViolation,
			Severity:   Error,
			Element:    network.ElementRef{Type: uc.Element, Index: r.Index},
			Constraint: uc.Name(),
			Message: fmt.Sprintf("%s %d column '%s' value %s duplicates %s %d",
				uc.Element, r.Index, uc.Column, key, uc.Element, first),
			Details: map[string]any{
				"column":    uc.Column,
				"value":     key,
				"duplicate": first,
			},
		})
	}

	return violations, nil
}

// SwitchGateConstraint reports element switches whose bus is not a terminal
// of the branch they gate.
type SwitchGateConstraint struct{}

// Name returns the constraint name
func (sc *SwitchGateConstraint) Name() string {
	return "SwitchGate"
}

// Validate checks every switch with a branch as its element
func (sc *SwitchGateConstraint) Validate(net NetworkReader) ([]Violation, error) {
	violations := make([]Violation, 0)

	for _, sw := range net.Table(network.Switch).Rows() {
		if sw.Ref == nil || sw.Ref.Type == network.Bus {
			continue
		}
		target, ok := net.Resolve(*sw.Ref)
		if !ok {
			continue // reported as a dangling reference
		}
		bus, _ := sw.Bus(network.ColBus)
		atTerminal := false
		for _, b := range target.Buses {
			if b == bus {
				atTerminal = true
				break
			}
		}
		if atTerminal {
			continue
		}
		violations = append(violations, Violation{
			Type:       InvalidStructure,
			Severity:   Error,
			Element:    network.ElementRef{Type: network.Switch, Index: sw.Index},
			Constraint: sc.Name(),
			Message:    fmt.Sprintf("switch %d bus %d is not a terminal of %s", sw.Index, bus, sw.Ref),
			Details: map[string]any{
				"bus":     bus,
				"element": sw.Ref.String(),
			},
		})
	}

	return violations, nil
}
