package network

import (
	"fmt"
	"math"
	"strconv"
)

// ValueType represents the type of a column value
type ValueType uint8

const (
	TypeNull ValueType = iota
	TypeInt
	TypeFloat
	TypeString
	TypeBool
	TypeObject // stateful attachment such as a controller
)

// String returns the string representation of a value type
func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeObject:
		return "object"
	default:
		return "unknown"
	}
}

// Object is a stateful value attached to a row. Implementations compare by
// value: two distinct instances with the same state are Equal.
type Object interface {
	Equal(other Object) bool
	Clone() Object
}

// Value represents a typed column value
type Value struct {
	Type ValueType
	i    int64
	f    float64
	s    string
	b    bool
	o    Object
}

// Helper functions to create typed values
func Null() Value {
	return Value{Type: TypeNull}
}

func IntValue(i int64) Value {
	return Value{Type: TypeInt, i: i}
}

func FloatValue(f float64) Value {
	return Value{Type: TypeFloat, f: f}
}

func StringValue(s string) Value {
	return Value{Type: TypeString, s: s}
}

func BoolValue(b bool) Value {
	return Value{Type: TypeBool, b: b}
}

func ObjectValue(o Object) Value {
	if o == nil {
		return Null()
	}
	return Value{Type: TypeObject, o: o}
}

// Decode methods
func (v Value) AsInt() (int64, error) {
	if v.Type != TypeInt {
		return 0, fmt.Errorf("value is not an int")
	}
	return v.i, nil
}

func (v Value) AsFloat() (float64, error) {
	if v.Type != TypeFloat {
		return 0, fmt.Errorf("value is not a float")
	}
	return v.f, nil
}

func (v Value) AsString() (string, error) {
	if v.Type != TypeString {
		return "", fmt.Errorf("value is not a string")
	}
	return v.s, nil
}

func (v Value) AsBool() (bool, error) {
	if v.Type != TypeBool {
		return false, fmt.Errorf("value is not a bool")
	}
	return v.b, nil
}

func (v Value) AsObject() (Object, error) {
	if v.Type != TypeObject {
		return nil, fmt.Errorf("value is not an object")
	}
	return v.o, nil
}

// IsNull reports whether v carries no data. A NaN float counts as null.
func (v Value) IsNull() bool {
	return v.Type == TypeNull || (v.Type == TypeFloat && math.IsNaN(v.f))
}

// IsNumeric reports whether v is an int or a float.
func (v Value) IsNumeric() bool {
	return v.Type == TypeInt || v.Type == TypeFloat
}

// Number returns v as float64 for numeric values.
func (v Value) Number() (float64, bool) {
	switch v.Type {
	case TypeInt:
		return float64(v.i), true
	case TypeFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Clone returns a copy of v; objects are cloned through their own contract.
func (v Value) Clone() Value {
	if v.Type == TypeObject && v.o != nil {
		return Value{Type: TypeObject, o: v.o.Clone()}
	}
	return v
}

// Equal compares two values. Numbers compare within atol (NaN equals NaN and
// ints compare numerically with floats), objects by their Equal contract and
// everything else exactly.
func (v Value) Equal(other Value, atol float64) bool {
	if v.IsNull() || other.IsNull() {
		return v.IsNull() && other.IsNull()
	}
	if v.IsNumeric() && other.IsNumeric() {
		if v.Type == TypeInt && other.Type == TypeInt && atol == 0 {
			return v.i == other.i
		}
		a, _ := v.Number()
		b, _ := other.Number()
		if math.IsInf(a, 0) || math.IsInf(b, 0) {
			return a == b
		}
		return math.Abs(a-b) <= atol
	}
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case TypeString:
		return v.s == other.s
	case TypeBool:
		return v.b == other.b
	case TypeObject:
		return v.o.Equal(other.o)
	}
	return false
}

// String renders v for logs and error messages.
func (v Value) String() string {
	switch v.Type {
	case TypeNull:
		return "null"
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeString:
		return strconv.Quote(v.s)
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeObject:
		return fmt.Sprintf("object(%T)", v.o)
	default:
		return "unknown"
	}
}
