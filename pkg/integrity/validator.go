package integrity

import (
	"fmt"
	"time"

	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

// ValidationResult collects the violations of one validator run. Valid is
// false as soon as one violation has Error severity.
type ValidationResult struct {
	Valid      bool
	Violations []Violation
	CheckedAt  time.Time
}

// BySeverity returns the violations of the given severity.
func (vr *ValidationResult) BySeverity(severity Severity) []Violation {
	return vr.filter(func(v Violation) bool { return v.Severity == severity })
}

// ByType returns the violations of the given type.
func (vr *ValidationResult) ByType(vt ViolationType) []Violation {
	return vr.filter(func(v Violation) bool { return v.Type == vt })
}

func (vr *ValidationResult) filter(keep func(Violation) bool) []Violation {
	out := make([]Violation, 0)
	for _, v := range vr.Violations {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Err turns the first Error-severity violation into a *network.NetworkError
// for op, or returns nil when the result is valid. Dangling references map
// to ErrDanglingReference, structural violations such as misplaced gate
// switches to ErrInvalidTopology and everything else to ErrStructural.
func (vr *ValidationResult) Err(op string) error {
	errs := vr.BySeverity(Error)
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	cause := network.ErrStructural
	switch first.Type {
	case DanglingReference:
		cause = network.ErrDanglingReference
	case InvalidStructure:
		cause = network.ErrInvalidTopology
	}
	return network.NewError(op).Element(first.Element.Type, first.Element.Index).
		Context(fmt.Sprintf("%d violations, first: %s", len(errs), first.Message)).
		Cause(cause).Err()
}

// Validator runs a fixed list of constraints.
type Validator struct {
	constraints []Constraint
}

// NewValidator creates a validator over constraints.
func NewValidator(constraints ...Constraint) *Validator {
	return &Validator{constraints: append([]Constraint(nil), constraints...)}
}

// DefaultValidator checks referential soundness: dangling references, orphan
// mirror rows and gate switches placed away from their element.
func DefaultValidator() *Validator {
	return NewValidator(&DanglingReferenceConstraint{}, &MirrorOrphanConstraint{}, &SwitchGateConstraint{})
}

// Add appends constraints.
func (v *Validator) Add(constraints ...Constraint) {
	v.constraints = append(v.constraints, constraints...)
}

// Len returns the number of constraints.
func (v *Validator) Len() int {
	return len(v.constraints)
}

// Validate runs every constraint against net. A constraint error aborts the
// run.
func (v *Validator) Validate(net NetworkReader) (*ValidationResult, error) {
	result := &ValidationResult{Valid: true, Violations: make([]Violation, 0), CheckedAt: time.Now()}
	for _, c := range v.constraints {
		violations, err := c.Validate(net)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name(), err)
		}
		for _, violation := range violations {
			if violation.Severity == Error {
				result.Valid = false
			}
		}
		result.Violations = append(result.Violations, violations...)
	}
	return result, nil
}
