// Package state provides the factory that turns raw input maps into typed,
// coerced state objects that flow through operation pipelines.
package state

import (
	"encoding/json"
	"sort"

	"github.com/operon-dev/operon/pkg/schema"
)

// Object is a mutable state container. It exposes named fields, carries the
// error collector that validation writes into, and serializes to JSON.
// An Object belongs to one in-flight call and is not safe for concurrent use.
//
// The engine threads the same Object reference as both current and original
// state, so in-place mutation by one step is visible to every later step
// through both references. This is intentional; callers that need isolation
// must return a fresh Object from their step.
type Object struct {
	order  []string
	fields map[string]any
	errs   *schema.ErrorCollector
}

// New creates an empty Object.
func New() *Object {
	return &Object{
		fields: make(map[string]any),
		errs:   schema.NewErrorCollector(),
	}
}

// FromMap creates an Object carrying the given fields. Keys are ordered
// lexically so serialization and iteration are deterministic.
func FromMap(m map[string]any) *Object {
	o := New()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.Set(k, m[k])
	}
	return o
}

// Set assigns a field value, tracking first-assignment order.
func (o *Object) Set(name string, value any) {
	if _, seen := o.fields[name]; !seen {
		o.order = append(o.order, name)
	}
	o.fields[name] = value
}

// Get returns a field value, or nil when unset.
func (o *Object) Get(name string) any {
	return o.fields[name]
}

// Field implements schema.Fielder.
func (o *Object) Field(name string) (any, bool) {
	v, ok := o.fields[name]
	return v, ok
}

// Names returns the field names in first-assignment order.
func (o *Object) Names() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// Map returns a shallow copy of the fields, used as an expression scope.
func (o *Object) Map() map[string]any {
	out := make(map[string]any, len(o.fields))
	for k, v := range o.fields {
		out[k] = v
	}
	return out
}

// Errors implements schema.Validatable.
func (o *Object) Errors() *schema.ErrorCollector {
	return o.errs
}

// AsJSON implements schema.JSONer.
func (o *Object) AsJSON() ([]byte, error) {
	return json.Marshal(o.fields)
}

// MarshalJSON serializes the fields as a JSON object.
func (o *Object) MarshalJSON() ([]byte, error) {
	return o.AsJSON()
}

var (
	_ schema.Fielder     = (*Object)(nil)
	_ schema.Validatable = (*Object)(nil)
	_ schema.Mapper      = (*Object)(nil)
	_ schema.JSONer      = (*Object)(nil)
)
