package bridge

import (
	"fmt"
	"math"

	"github.com/wippyai/xplat/errors"
	"github.com/wippyai/xplat/model"
)

// codec converts between Go values and wire arguments. The two sides of the
// bridge differ only in how handles and values are resolved.
type codec struct {
	// handleOf maps a side-specific object to its handle.
	handleOf func(v any) (uint32, bool)
	// fromHandle maps a handle back to the side-specific object.
	fromHandle func(h uint32) (any, error)
	// value builds a Value for a decoded class.
	value func(class string, kind model.MarshalKind, fields map[string]any) *Value
}

func (c *codec) encodeAll(vs []any) ([]Arg, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	out := make([]Arg, len(vs))
	for i, v := range vs {
		a, err := c.encode(v)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func (c *codec) encode(v any) (Arg, error) {
	switch x := v.(type) {
	case nil:
		return Arg{Kind: ArgNil}, nil
	case bool, string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return Arg{Kind: ArgPrimitive, Prim: x}, nil
	case *Value:
		fields := make(map[string]Arg, len(x.fields))
		for k, f := range x.fields {
			a, err := c.encode(f)
			if err != nil {
				return Arg{}, err
			}
			fields[k] = a
		}
		return Arg{Kind: ArgValue, Class: x.name, Fields: fields, Mode: uint8(x.kind)}, nil
	case []any:
		items, err := c.encodeAll(x)
		if err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgList, Items: items}, nil
	}
	if c.handleOf != nil {
		if h, ok := c.handleOf(v); ok {
			return Arg{Kind: ArgHandle, Handle: h}, nil
		}
	}
	return Arg{}, errors.Unsupported(errors.PhaseBridge, fmt.Sprintf("cannot marshal %T across the bridge", v))
}

func (c *codec) decodeAll(args []Arg) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		v, err := c.decode(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *codec) decode(a Arg) (any, error) {
	switch a.Kind {
	case ArgNil:
		return nil, nil
	case ArgPrimitive:
		return normalize(a.Prim), nil
	case ArgHandle:
		if c.fromHandle == nil {
			return nil, errors.InvalidHandle(a.Handle, "")
		}
		return c.fromHandle(a.Handle)
	case ArgValue:
		fields := make(map[string]any, len(a.Fields))
		for k, f := range a.Fields {
			v, err := c.decode(f)
			if err != nil {
				return nil, err
			}
			fields[k] = v
		}
		kind := model.MarshalKind(a.Mode)
		if c.value != nil {
			return c.value(a.Class, kind, fields), nil
		}
		return NewDetachedValue(a.Class, kind, fields), nil
	case ArgList:
		return c.decodeAll(a.Items)
	}
	return nil, errors.InvalidData(errors.PhaseBridge, nil, fmt.Sprintf("unknown argument kind %d", a.Kind))
}

// normalize folds decoded CBOR integers to int64 where they fit.
func normalize(v any) any {
	switch x := v.(type) {
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
	}
	return v
}
