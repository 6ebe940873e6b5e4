package network

import (
	"math"

	"github.com/google/uuid"
)

// ControllerObject is the stateful object attached to a controller row.
// The ID tracks one instance across clones and never takes part in equality.
type ControllerObject struct {
	ID     uuid.UUID
	Kind   string
	Params map[string]float64
}

// NewControllerObject creates a controller with a fresh identity.
func NewControllerObject(kind string, params map[string]float64) *ControllerObject {
	p := make(map[string]float64, len(params))
	for k, v := range params {
		p[k] = v
	}
	return &ControllerObject{ID: uuid.New(), Kind: kind, Params: p}
}

// Equal compares kind and parameters.
func (c *ControllerObject) Equal(other Object) bool {
	o, ok := other.(*ControllerObject)
	if !ok || c == nil || o == nil {
		return ok && c == nil && o == nil
	}
	if c.Kind != o.Kind || len(c.Params) != len(o.Params) {
		return false
	}
	for k, v := range c.Params {
		w, exists := o.Params[k]
		if !exists {
			return false
		}
		if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
			return false
		}
	}
	return true
}

// Clone copies the controller and keeps its identity.
func (c *ControllerObject) Clone() Object {
	clone := NewControllerObject(c.Kind, c.Params)
	clone.ID = c.ID
	return clone
}
