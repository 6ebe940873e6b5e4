package integrity

import (
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

// NetworkReader defines the read-only operations needed for integrity checks.
// *network.Network implements it; tests may substitute partial views.
type NetworkReader interface {
	Types() []network.ElementType
	Table(et network.ElementType) *network.Table
	Lookup(et network.ElementType) (*network.Table, bool)
	Resolve(ref network.ElementRef) (*network.Row, bool)
}

// Severity indicates the importance of a violation
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "Info"
	case Warning:
		return "Warning"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// ViolationType categorizes the type of integrity violation
type ViolationType int

const (
	DanglingReference ViolationType = iota
	OrphanMirrorRow
	MissingColumn
	OutOfRange
	InvalidStructure
	UniquenessViolation
)

func (vt ViolationType) String() string {
	switch vt {
	case DanglingReference:
		return "DanglingReference"
	case OrphanMirrorRow:
		return "OrphanMirrorRow"
	case MissingColumn:
		return "MissingColumn"
	case OutOfRange:
		return "OutOfRange"
	case InvalidStructure:
		return "InvalidStructure"
	case UniquenessViolation:
		return "UniquenessViolation"
	default:
		return "Unknown"
	}
}

// Violation represents one integrity finding
type Violation struct {
	Type       ViolationType
	Severity   Severity
	Element    network.ElementRef // offending row
	Constraint string
	Message    string
	Details    map[string]any
}

// Constraint is the interface that all integrity checks implement.
type Constraint interface {
	// Validate checks the constraint against the network and returns the
	// violations found (empty if valid)
	Validate(net NetworkReader) ([]Violation, error)

	// Name returns a human-readable name for the constraint
	Name() string
}
