package network

import (
	"fmt"
)

// Electrical column names used by builders and algebra
const (
	ColVnKV         = "vn_kv"
	ColPMW          = "p_mw"
	ColQMVar        = "q_mvar"
	ColSnMVA        = "sn_mva"
	ColVmPU         = "vm_pu"
	ColVaDegree     = "va_degree"
	ColSlack        = "slack"
	ColControllable = "controllable"
	ColMaxPMW       = "max_p_mw"
	ColMinPMW       = "min_p_mw"
	ColMaxQMVar     = "max_q_mvar"
	ColMinQMVar     = "min_q_mvar"
	ColPDispMW      = "p_disp_mw"
	ColLengthKM     = "length_km"
	ColROhmPerKM    = "r_ohm_per_km"
	ColXOhmPerKM    = "x_ohm_per_km"
	ColCNFPerKM     = "c_nf_per_km"
	ColGUSPerKM     = "g_us_per_km"
	ColMaxIKA       = "max_i_ka"
	ColParallel     = "parallel"
	ColStdType      = "std_type"
	ColRFTPU        = "rft_pu"
	ColXFTPU        = "xft_pu"
	ColRTFPU        = "rtf_pu"
	ColXTFPU        = "xtf_pu"
	ColMeasType     = "measurement_type"
	ColValue        = "value"
	ColStdDev       = "std_dev"
	ColSide         = "side"
	ColCP1          = "cp1_eur_per_mw"
	ColPowerType    = "power_type"
	ColType         = "type"
	ColObject       = "object"
	ColPsMW         = "ps_mw"
	ColQsMVar       = "qs_mvar"
	ColPzMW         = "pz_mw"
	ColQzMVar       = "qz_mvar"
	ColROhm         = "r_ohm"
	ColXOhm         = "x_ohm"
	ColZone         = "zone"
	ColToZone       = "to_zone"
)

// LineParams are the per-km parameters of a line.
type LineParams struct {
	StdType  string
	RPerKM   float64 `validate:"gte=0"`
	XPerKM   float64 `validate:"gte=0"`
	CPerKM   float64 `validate:"gte=0"` // nF per km
	GPerKM   float64 `validate:"gte=0"` // uS per km
	MaxIKA   float64 `validate:"gte=0"`
	Parallel int     `validate:"gte=0"`
}

type rowBuild struct {
	row      *Row
	indexSet bool
}

// RowOption customizes a row created by the Add* builders.
type RowOption func(*rowBuild)

// WithIndex creates the row under a caller-chosen index.
func WithIndex(index int) RowOption {
	return func(b *rowBuild) {
		b.row.Index = index
		b.indexSet = true
	}
}

// WithName sets the name column.
func WithName(name string) RowOption {
	return WithColumn(ColName, StringValue(name))
}

// WithColumn sets an arbitrary column.
func WithColumn(col string, v Value) RowOption {
	return func(b *rowBuild) {
		b.row.Set(col, v)
	}
}

// OutOfService creates the row with in_service=false.
func OutOfService() RowOption {
	return WithColumn(ColInService, BoolValue(false))
}

// AddRow appends row to the table of et after checking that every bus,
// element and group reference resolves.
func (n *Network) AddRow(et ElementType, row *Row) (int, error) {
	if err := n.checkReferences(et, row); err != nil {
		return 0, err
	}
	if err := n.Ensure(et).Append(row); err != nil {
		return 0, err
	}
	return row.Index, nil
}

func (n *Network) checkReferences(et ElementType, row *Row) error {
	buses := n.Table(Bus)
	for col, b := range row.Buses {
		if !buses.Has(b) {
			return NewError("create").Element(et, row.Index).Column(col).
				Target(ElementRef{Type: Bus, Index: b}).Cause(ErrStructural).Err()
		}
	}
	if row.Ref != nil {
		if _, ok := n.Resolve(*row.Ref); !ok {
			return NewError("create").Element(et, row.Index).Column("element").
				Target(*row.Ref).Cause(ErrStructural).Err()
		}
	}
	for _, m := range row.Members {
		t := n.Table(m.Type)
		for _, idx := range m.Indices {
			if !t.Has(idx) {
				return NewError("create").Element(et, row.Index).Column("members").
					Target(ElementRef{Type: m.Type, Index: idx}).Cause(ErrStructural).Err()
			}
		}
	}
	return nil
}

func (n *Network) add(et ElementType, row *Row, opts []RowOption) (int, error) {
	b := &rowBuild{row: row}
	row.Set(ColInService, BoolValue(true))
	for _, opt := range opts {
		opt(b)
	}
	if !b.indexSet {
		row.Index = n.Table(et).NextIndex()
	}
	return n.AddRow(et, row)
}

// AddBus creates a bus.
func (n *Network) AddBus(vnKV float64, opts ...RowOption) (int, error) {
	r := NewRow(0).Set(ColVnKV, FloatValue(vnKV))
	return n.add(Bus, r, opts)
}

// AddBuses creates count buses and returns their indices.
func (n *Network) AddBuses(count int, vnKV float64) ([]int, error) {
	out := make([]int, 0, count)
	for i := 0; i < count; i++ {
		idx, err := n.AddBus(vnKV)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

// AddLine creates a line between two buses.
func (n *Network) AddLine(from, to int, lengthKM float64, p LineParams, opts ...RowOption) (int, error) {
	parallel := p.Parallel
	if parallel == 0 {
		parallel = 1
	}
	r := NewRow(0)
	r.Buses[ColFromBus] = from
	r.Buses[ColToBus] = to
	r.Set(ColLengthKM, FloatValue(lengthKM)).
		Set(ColROhmPerKM, FloatValue(p.RPerKM)).
		Set(ColXOhmPerKM, FloatValue(p.XPerKM)).
		Set(ColCNFPerKM, FloatValue(p.CPerKM)).
		Set(ColGUSPerKM, FloatValue(p.GPerKM)).
		Set(ColMaxIKA, FloatValue(p.MaxIKA)).
		Set(ColParallel, IntValue(int64(parallel)))
	if p.StdType != "" {
		r.Set(ColStdType, StringValue(p.StdType))
	}
	return n.add(Line, r, opts)
}

// AddTrafo creates a two-winding transformer.
func (n *Network) AddTrafo(hv, lv int, snMVA float64, opts ...RowOption) (int, error) {
	r := NewRow(0)
	r.Buses[ColHVBus] = hv
	r.Buses[ColLVBus] = lv
	r.Set(ColSnMVA, FloatValue(snMVA))
	return n.add(Trafo, r, opts)
}

// AddTrafo3W creates a three-winding transformer.
func (n *Network) AddTrafo3W(hv, mv, lv int, snMVA float64, opts ...RowOption) (int, error) {
	r := NewRow(0)
	r.Buses[ColHVBus] = hv
	r.Buses[ColMVBus] = mv
	r.Buses[ColLVBus] = lv
	r.Set(ColSnMVA, FloatValue(snMVA))
	return n.add(Trafo3W, r, opts)
}

// AddImpedance creates a per-unit impedance branch.
func (n *Network) AddImpedance(from, to int, rft, xft, snMVA float64, opts ...RowOption) (int, error) {
	r := NewRow(0)
	r.Buses[ColFromBus] = from
	r.Buses[ColToBus] = to
	r.Set(ColRFTPU, FloatValue(rft)).
		Set(ColXFTPU, FloatValue(xft)).
		Set(ColRTFPU, FloatValue(rft)).
		Set(ColXTFPU, FloatValue(xft)).
		Set(ColSnMVA, FloatValue(snMVA))
	return n.add(Impedance, r, opts)
}

// AddDCLine creates a DC line transferring pMW from the from bus.
func (n *Network) AddDCLine(from, to int, pMW float64, opts ...RowOption) (int, error) {
	r := NewRow(0)
	r.Buses[ColFromBus] = from
	r.Buses[ColToBus] = to
	r.Set(ColPMW, FloatValue(pMW))
	return n.add(DCLine, r, opts)
}

// AddSwitch creates a switch at bus gating element of type et. Bus-bus
// switches use et=Bus.
func (n *Network) AddSwitch(bus, element int, et ElementType, closed bool, opts ...RowOption) (int, error) {
	if _, err := SwitchCode(et); err != nil {
		return 0, NewError("create").Element(Switch).Context(err.Error()).Cause(ErrStructural).Err()
	}
	r := NewRow(0)
	r.Buses[ColBus] = bus
	r.Ref = &ElementRef{Type: et, Index: element}
	r.Set(ColClosed, BoolValue(closed))
	if et != Bus {
		if target, ok := n.Resolve(*r.Ref); ok {
			atTerminal := false
			for _, b := range target.Buses {
				if b == bus {
					atTerminal = true
				}
			}
			if !atTerminal {
				return 0, InvalidTopologyError("create", Switch, element,
					fmt.Sprintf("bus %d is not a terminal of %s", bus, r.Ref))
			}
		}
	}
	return n.add(Switch, r, opts)
}

func (n *Network) addInjection(et ElementType, bus int, pMW, qMVar float64, opts []RowOption) (int, error) {
	r := NewRow(0)
	r.Buses[ColBus] = bus
	r.Set(ColPMW, FloatValue(pMW)).Set(ColQMVar, FloatValue(qMVar))
	return n.add(et, r, opts)
}

// AddLoad creates a load.
func (n *Network) AddLoad(bus int, pMW, qMVar float64, opts ...RowOption) (int, error) {
	return n.addInjection(Load, bus, pMW, qMVar, opts)
}

// AddSGen creates a static generator.
func (n *Network) AddSGen(bus int, pMW, qMVar float64, opts ...RowOption) (int, error) {
	return n.addInjection(SGen, bus, pMW, qMVar, opts)
}

// AddStorage creates a storage unit.
func (n *Network) AddStorage(bus int, pMW float64, opts ...RowOption) (int, error) {
	return n.addInjection(Storage, bus, pMW, 0, opts)
}

// AddShunt creates a shunt.
func (n *Network) AddShunt(bus int, pMW, qMVar float64, opts ...RowOption) (int, error) {
	return n.addInjection(Shunt, bus, pMW, qMVar, opts)
}

// AddWard creates a ward equivalent: a constant power demand psMW/qsMVar
// and a constant impedance demand pzMW/qzMVar at rated voltage.
func (n *Network) AddWard(bus int, psMW, qsMVar, pzMW, qzMVar float64, opts ...RowOption) (int, error) {
	r := wardRow(bus, psMW, qsMVar, pzMW, qzMVar)
	return n.add(Ward, r, opts)
}

// AddXWard creates an extended ward: a ward plus a voltage source behind
// rOhm+jxOhm holding vmPU.
func (n *Network) AddXWard(bus int, psMW, qsMVar, pzMW, qzMVar, rOhm, xOhm, vmPU float64, opts ...RowOption) (int, error) {
	r := wardRow(bus, psMW, qsMVar, pzMW, qzMVar)
	r.Set(ColROhm, FloatValue(rOhm)).
		Set(ColXOhm, FloatValue(xOhm)).
		Set(ColVmPU, FloatValue(vmPU))
	return n.add(XWard, r, opts)
}

func wardRow(bus int, psMW, qsMVar, pzMW, qzMVar float64) *Row {
	r := NewRow(0)
	r.Buses[ColBus] = bus
	r.Set(ColPsMW, FloatValue(psMW)).
		Set(ColQsMVar, FloatValue(qsMVar)).
		Set(ColPzMW, FloatValue(pzMW)).
		Set(ColQzMVar, FloatValue(qzMVar))
	return r
}

// AddGen creates a voltage-controlled generator.
func (n *Network) AddGen(bus int, pMW, vmPU float64, opts ...RowOption) (int, error) {
	r := NewRow(0)
	r.Buses[ColBus] = bus
	r.Set(ColPMW, FloatValue(pMW)).
		Set(ColVmPU, FloatValue(vmPU)).
		Set(ColSlack, BoolValue(false))
	return n.add(Gen, r, opts)
}

// AddExtGrid creates an external grid connection (slack).
func (n *Network) AddExtGrid(bus int, vmPU float64, opts ...RowOption) (int, error) {
	r := NewRow(0)
	r.Buses[ColBus] = bus
	r.Set(ColVmPU, FloatValue(vmPU)).Set(ColVaDegree, FloatValue(0))
	return n.add(ExtGrid, r, opts)
}

// AddMeasurement creates a measurement of measType on target.
func (n *Network) AddMeasurement(measType string, target ElementRef, value, stdDev float64, opts ...RowOption) (int, error) {
	r := NewRow(0)
	r.Ref = &target
	r.Set(ColMeasType, StringValue(measType)).
		Set(ColValue, FloatValue(value)).
		Set(ColStdDev, FloatValue(stdDev))
	return n.addAuxiliary(Measurement, r, opts)
}

// AddPolyCost creates a polynomial cost entry for target.
func (n *Network) AddPolyCost(target ElementRef, cp1 float64, opts ...RowOption) (int, error) {
	r := NewRow(0)
	r.Ref = &target
	r.Set(ColCP1, FloatValue(cp1))
	return n.addAuxiliary(PolyCost, r, opts)
}

// AddPwlCost creates a piecewise-linear cost entry for target.
func (n *Network) AddPwlCost(target ElementRef, powerType string, opts ...RowOption) (int, error) {
	r := NewRow(0)
	r.Ref = &target
	r.Set(ColPowerType, StringValue(powerType))
	return n.addAuxiliary(PwlCost, r, opts)
}

// AddController attaches a controller object acting on target.
func (n *Network) AddController(ctrl Object, target ElementRef, opts ...RowOption) (int, error) {
	r := NewRow(0)
	r.Ref = &target
	r.Set(ColObject, ObjectValue(ctrl)).Set(ColInService, BoolValue(true))
	return n.addAuxiliary(Controller, r, opts)
}

// AddGroup creates a group holding the given members.
func (n *Network) AddGroup(name string, members []GroupMember, opts ...RowOption) (int, error) {
	r := NewRow(0)
	r.Members = make([]GroupMember, 0, len(members))
	for _, m := range members {
		r.Members = append(r.Members, GroupMember{Type: m.Type, Indices: append([]int(nil), m.Indices...)})
	}
	r.Set(ColName, StringValue(name))
	return n.addAuxiliary(Group, r, opts)
}

func (n *Network) addAuxiliary(et ElementType, r *Row, opts []RowOption) (int, error) {
	b := &rowBuild{row: r}
	for _, opt := range opts {
		opt(b)
	}
	if !b.indexSet {
		r.Index = n.Table(et).NextIndex()
	}
	return n.AddRow(et, r)
}
