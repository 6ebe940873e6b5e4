package network

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ElementType names one table of a network (bus, line, switch, ...).
type ElementType string

// Registered element types
const (
	Bus            ElementType = "bus"
	Line           ElementType = "line"
	Trafo          ElementType = "trafo"
	Trafo3W        ElementType = "trafo3w"
	Impedance      ElementType = "impedance"
	DCLine         ElementType = "dcline"
	Switch         ElementType = "switch"
	Load           ElementType = "load"
	SGen           ElementType = "sgen"
	Gen            ElementType = "gen"
	ExtGrid        ElementType = "ext_grid"
	Storage        ElementType = "storage"
	Shunt          ElementType = "shunt"
	Ward           ElementType = "ward"
	XWard          ElementType = "xward"
	Motor          ElementType = "motor"
	AsymmetricLoad ElementType = "asymmetric_load"
	AsymmetricSGen ElementType = "asymmetric_sgen"
	Measurement    ElementType = "measurement"
	PolyCost       ElementType = "poly_cost"
	PwlCost        ElementType = "pwl_cost"
	Controller     ElementType = "controller"
	Group          ElementType = "group"
)

// Bus reference column names
const (
	ColBus     = "bus"
	ColFromBus = "from_bus"
	ColToBus   = "to_bus"
	ColHVBus   = "hv_bus"
	ColMVBus   = "mv_bus"
	ColLVBus   = "lv_bus"
)

const (
	resultPrefix  = "res_"
	geodataSuffix = "_geodata"
)

// ResultOf returns the result table mirroring et.
func ResultOf(et ElementType) ElementType {
	return ElementType(resultPrefix + string(et))
}

// GeodataOf returns the geodata table mirroring et.
func GeodataOf(et ElementType) ElementType {
	return ElementType(string(et) + geodataSuffix)
}

// IsResult reports whether et is a power-flow result table.
func (et ElementType) IsResult() bool {
	return strings.HasPrefix(string(et), resultPrefix)
}

// Kind classifies how the rows of a table reference other tables.
type Kind int

const (
	// KindAuxiliary tables are unregistered and reference nothing
	KindAuxiliary Kind = iota
	// KindBus is the bus table itself
	KindBus
	// KindBranch elements connect two or three buses
	KindBranch
	// KindBusElement elements sit on a single bus
	KindBusElement
	// KindSwitch rows connect a bus to a bus or to a branch terminal
	KindSwitch
	// KindElementRef rows point at one row of a runtime-selected table
	KindElementRef
	// KindGroup rows hold member lists per element type
	KindGroup
	// KindMirror tables share the index space of a source table
	KindMirror
)

// String returns the string representation of a kind
func (k Kind) String() string {
	switch k {
	case KindAuxiliary:
		return "auxiliary"
	case KindBus:
		return "bus"
	case KindBranch:
		return "branch"
	case KindBusElement:
		return "bus_element"
	case KindSwitch:
		return "switch"
	case KindElementRef:
		return "element_ref"
	case KindGroup:
		return "group"
	case KindMirror:
		return "mirror"
	default:
		return "unknown"
	}
}

// Schema declares the reference layout of one element type.
type Schema struct {
	Type       ElementType
	Kind       Kind
	BusColumns []string
	Source     ElementType // mirror tables only
}

// HasBusColumns reports whether rows of this type carry bus references.
func (s Schema) HasBusColumns() bool {
	return len(s.BusColumns) > 0
}

type registry struct {
	mu      sync.RWMutex
	order   []ElementType
	schemas map[ElementType]Schema
}

var defaultRegistry = newRegistry()

func newRegistry() *registry {
	r := &registry{schemas: make(map[ElementType]Schema)}
	single := []string{ColBus}
	for _, s := range []Schema{
		{Type: Bus, Kind: KindBus},
		{Type: Line, Kind: KindBranch, BusColumns: []string{ColFromBus, ColToBus}},
		{Type: Trafo, Kind: KindBranch, BusColumns: []string{ColHVBus, ColLVBus}},
		{Type: Trafo3W, Kind: KindBranch, BusColumns: []string{ColHVBus, ColMVBus, ColLVBus}},
		{Type: Impedance, Kind: KindBranch, BusColumns: []string{ColFromBus, ColToBus}},
		{Type: DCLine, Kind: KindBranch, BusColumns: []string{ColFromBus, ColToBus}},
		{Type: Switch, Kind: KindSwitch, BusColumns: single},
		{Type: Load, Kind: KindBusElement, BusColumns: single},
		{Type: SGen, Kind: KindBusElement, BusColumns: single},
		{Type: Gen, Kind: KindBusElement, BusColumns: single},
		{Type: ExtGrid, Kind: KindBusElement, BusColumns: single},
		{Type: Storage, Kind: KindBusElement, BusColumns: single},
		{Type: Shunt, Kind: KindBusElement, BusColumns: single},
		{Type: Ward, Kind: KindBusElement, BusColumns: single},
		{Type: XWard, Kind: KindBusElement, BusColumns: single},
		{Type: Motor, Kind: KindBusElement, BusColumns: single},
		{Type: AsymmetricLoad, Kind: KindBusElement, BusColumns: single},
		{Type: AsymmetricSGen, Kind: KindBusElement, BusColumns: single},
		{Type: Measurement, Kind: KindElementRef},
		{Type: PolyCost, Kind: KindElementRef},
		{Type: PwlCost, Kind: KindElementRef},
		{Type: Controller, Kind: KindElementRef},
		{Type: Group, Kind: KindGroup},
	} {
		r.order = append(r.order, s.Type)
		r.schemas[s.Type] = s
	}
	return r
}

// Register adds a custom element type to the registry. Registering an
// existing type or a mirror-style name fails.
func Register(s Schema) error {
	if s.Type == "" {
		return fmt.Errorf("register schema: empty element type")
	}
	if s.Kind == KindMirror || s.Kind == KindAuxiliary {
		return fmt.Errorf("register schema %s: kind %s is derived, not registered", s.Type, s.Kind)
	}
	if s.Type.IsResult() || strings.HasSuffix(string(s.Type), geodataSuffix) {
		return fmt.Errorf("register schema %s: name is reserved for mirror tables", s.Type)
	}

	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()

	if _, exists := defaultRegistry.schemas[s.Type]; exists {
		return ConflictError("register", s.Type)
	}
	s.BusColumns = append([]string(nil), s.BusColumns...)
	defaultRegistry.order = append(defaultRegistry.order, s.Type)
	defaultRegistry.schemas[s.Type] = s
	return nil
}

// SchemaOf returns the schema for et. Result and geodata tables of a
// registered type resolve to KindMirror; unknown names resolve to
// KindAuxiliary.
func SchemaOf(et ElementType) Schema {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()

	if s, ok := defaultRegistry.schemas[et]; ok {
		return s
	}
	name := string(et)
	if strings.HasPrefix(name, resultPrefix) {
		src := ElementType(strings.TrimPrefix(name, resultPrefix))
		if _, ok := defaultRegistry.schemas[src]; ok {
			return Schema{Type: et, Kind: KindMirror, Source: src}
		}
	}
	if strings.HasSuffix(name, geodataSuffix) {
		src := ElementType(strings.TrimSuffix(name, geodataSuffix))
		if _, ok := defaultRegistry.schemas[src]; ok {
			return Schema{Type: et, Kind: KindMirror, Source: src}
		}
	}
	return Schema{Type: et, Kind: KindAuxiliary}
}

// Types returns every registered element type in registry order.
func Types() []ElementType {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	return append([]ElementType(nil), defaultRegistry.order...)
}

// TypesOfKind returns the registered element types of the given kinds.
func TypesOfKind(kinds ...Kind) []ElementType {
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []ElementType
	for _, et := range Types() {
		if want[SchemaOf(et).Kind] {
			out = append(out, et)
		}
	}
	return out
}

// BusTuple pairs an element type with one of its bus reference columns.
type BusTuple struct {
	Type   ElementType
	Column string
}

// ElementBusTuples lists (element type, bus column) pairs of bus elements
// (including switches) and/or branch elements.
func ElementBusTuples(busElements, branchElements bool) []BusTuple {
	var out []BusTuple
	for _, et := range Types() {
		s := SchemaOf(et)
		switch {
		case busElements && (s.Kind == KindBusElement || s.Kind == KindSwitch):
		case branchElements && s.Kind == KindBranch:
		default:
			continue
		}
		for _, col := range s.BusColumns {
			out = append(out, BusTuple{Type: et, Column: col})
		}
	}
	return out
}

// BranchElementBusDict maps each branch type to its bus columns.
func BranchElementBusDict(includeSwitch bool) map[ElementType][]string {
	out := make(map[ElementType][]string)
	for _, et := range TypesOfKind(KindBranch) {
		out[et] = append([]string(nil), SchemaOf(et).BusColumns...)
	}
	if includeSwitch {
		out[Switch] = []string{ColBus, "element"}
	}
	return out
}

// ElementFilter selects families of element types for Elements.
type ElementFilter struct {
	Bus            bool
	BusElements    bool
	BranchElements bool
	OtherElements  bool // switch, measurement, costs, controller, group
}

// Elements returns the registered element types selected by f, sorted by name.
func Elements(f ElementFilter) []ElementType {
	var out []ElementType
	for _, et := range Types() {
		switch SchemaOf(et).Kind {
		case KindBus:
			if !f.Bus {
				continue
			}
		case KindBusElement:
			if !f.BusElements {
				continue
			}
		case KindBranch:
			if !f.BranchElements {
				continue
			}
		default:
			if !f.OtherElements {
				continue
			}
		}
		out = append(out, et)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SigningSystemValue returns +1 for elements counted in the consumer
// reference system and -1 for generating elements.
func SigningSystemValue(et ElementType) (int, error) {
	switch et {
	case Load, Storage, Shunt, Ward, XWard, Motor, AsymmetricLoad:
		return 1, nil
	case SGen, Gen, ExtGrid, AsymmetricSGen:
		return -1, nil
	default:
		return 0, fmt.Errorf("signing system value is undefined for element type %q", et)
	}
}
