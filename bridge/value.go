package bridge

import (
	"fmt"
	"sort"

	"github.com/wippyai/xplat/errors"
	"github.com/wippyai/xplat/model"
)

// Value is a by-value object copied across the bridge. Property access is
// synchronous and local; a Value has no connection back to a native instance.
// Properties holding by-reference classes keep their *Proxy, never a copy.
type Value struct {
	class  *model.ClassDescriptor
	fields map[string]any
	name   string
	kind   model.MarshalKind
}

// NewDetachedValue creates a value without a model, as native hosts do when
// building event payloads or results.
func NewDetachedValue(class string, kind model.MarshalKind, fields map[string]any) *Value {
	v := &Value{name: class, kind: kind, fields: make(map[string]any, len(fields))}
	for k, f := range fields {
		v.fields[k] = f
	}
	return v
}

func newValue(class *model.ClassDescriptor, fields map[string]any) *Value {
	v := NewDetachedValue(class.FullName(), class.Kind, fields)
	v.class = class
	return v
}

// Class returns the canonical class name.
func (v *Value) Class() string {
	return v.name
}

// Kind returns the marshal kind of the value.
func (v *Value) Kind() model.MarshalKind {
	return v.kind
}

// Get returns a property value.
func (v *Value) Get(name string) (any, error) {
	if v.class != nil {
		p := v.class.Property(name)
		if p == nil {
			return nil, errors.NotFound(errors.PhaseBridge, "property", v.name+"."+name)
		}
	}
	return v.fields[name], nil
}

// Set assigns a property value. Only value-two-way objects are settable.
func (v *Value) Set(name string, value any) error {
	if !v.kind.Settable() {
		return errors.New(errors.PhaseBridge, errors.KindUnsupported).
			Path(v.name, name).
			Detail("%s objects are read-only", v.kind).
			Build()
	}
	if v.class != nil {
		p := v.class.Property(name)
		if p == nil {
			return errors.NotFound(errors.PhaseBridge, "property", v.name+"."+name)
		}
		if !p.Settable() {
			return errors.New(errors.PhaseBridge, errors.KindUnsupported).
				Path(v.name, name).
				Detail("property has no setter").
				Build()
		}
	}
	v.fields[name] = value
	return nil
}

// Fields returns a copy of the property values.
func (v *Value) Fields() map[string]any {
	out := make(map[string]any, len(v.fields))
	for k, f := range v.fields {
		out[k] = f
	}
	return out
}

// Names returns the property names present, sorted.
func (v *Value) Names() []string {
	out := make([]string, 0, len(v.fields))
	for k := range v.fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (v *Value) String() string {
	return fmt.Sprintf("%s%v", v.name, v.fields)
}
