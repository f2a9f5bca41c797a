package descriptor

import (
	"strings"

	"github.com/wippyai/xplat"
)

// Stream is the descriptor set for one platform.
type Stream struct {
	Platform xplat.Platform `json:"platform" cbor:"platform"`
	Types    []TypeDecl     `json:"types" cbor:"types"`
}

// TypeDecl describes one native class.
type TypeDecl struct {
	// NativeName is the fully qualified native type name,
	// e.g. "com.contoso.widgets.Widget" or "ABCWidget".
	NativeName string `json:"native_name" cbor:"native_name"`
	// NativeNamespace is the package or namespace. Empty for Objective-C types.
	NativeNamespace string `json:"native_namespace,omitempty" cbor:"native_namespace,omitempty"`
	// Name is the canonical class name. Derived from NativeName when empty.
	Name string `json:"name,omitempty" cbor:"name,omitempty"`

	MarshalOverride string       `json:"marshal,omitempty" cbor:"marshal,omitempty"`
	Members         []MemberDecl `json:"members,omitempty" cbor:"members,omitempty"`
}

// SimpleName returns the last segment of the native type name.
func (t TypeDecl) SimpleName() string {
	name := t.NativeName
	if i := strings.LastIndexAny(name, ".:"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// MemberKind tags a member declaration.
type MemberKind string

const (
	Constructor MemberKind = "constructor"
	Property    MemberKind = "property"
	Method      MemberKind = "method"
	Event       MemberKind = "event"
)

// Valid reports whether k is one of the four member kinds.
func (k MemberKind) Valid() bool {
	switch k {
	case Constructor, Property, Method, Event:
		return true
	}
	return false
}

// MemberDecl describes one member of a native class.
//
// Params and Returns apply to constructors and methods. Type is the property
// value type or the event payload type. Get and Set apply to properties.
type MemberDecl struct {
	Kind    MemberKind `json:"kind" cbor:"kind"`
	Name    string     `json:"name" cbor:"name"`
	Static  bool       `json:"static,omitempty" cbor:"static,omitempty"`
	Params  []Shape    `json:"params,omitempty" cbor:"params,omitempty"`
	Returns *Shape     `json:"returns,omitempty" cbor:"returns,omitempty"`
	Type    *Shape     `json:"type,omitempty" cbor:"type,omitempty"`
	Get     bool       `json:"get,omitempty" cbor:"get,omitempty"`
	Set     bool       `json:"set,omitempty" cbor:"set,omitempty"`
}

// ShapeKind categorizes a native type reference.
type ShapeKind string

const (
	ShapeVoid       ShapeKind = "void"
	ShapePrimitive  ShapeKind = "primitive"
	ShapeCollection ShapeKind = "collection"
	ShapeReference  ShapeKind = "reference"
)

// Shape is a native parameter, return, or property type.
// For primitives Name is the primitive name; for references it is the native
// type name of the referenced class.
type Shape struct {
	Kind     ShapeKind `json:"kind" cbor:"kind"`
	Name     string    `json:"name,omitempty" cbor:"name,omitempty"`
	Elem     *Shape    `json:"elem,omitempty" cbor:"elem,omitempty"`
	Nullable bool      `json:"nullable,omitempty" cbor:"nullable,omitempty"`
}

// Primitive returns a primitive shape.
func Primitive(name string) Shape {
	return Shape{Kind: ShapePrimitive, Name: name}
}

// Ref returns a reference shape to a native type.
func Ref(nativeName string) Shape {
	return Shape{Kind: ShapeReference, Name: nativeName}
}

// ListOf returns a collection shape.
func ListOf(elem Shape) Shape {
	return Shape{Kind: ShapeCollection, Elem: &elem}
}

var primitiveAliases = map[string]string{
	"bool": "bool", "boolean": "bool", "BOOL": "bool", "Boolean": "bool",
	"byte": "int8", "sbyte": "int8", "int8": "int8", "int8_t": "int8",
	"short": "int16", "int16": "int16", "int16_t": "int16", "Int16": "int16",
	"int": "int32", "int32": "int32", "int32_t": "int32", "Int32": "int32", "Integer": "int32",
	"long": "int64", "int64": "int64", "int64_t": "int64", "Int64": "int64", "NSInteger": "int64",
	"uint8": "uint8", "uint8_t": "uint8", "Byte": "uint8",
	"uint16": "uint16", "ushort": "uint16",
	"uint32": "uint32", "uint": "uint32", "UInt32": "uint32",
	"uint64": "uint64", "ulong": "uint64", "UInt64": "uint64", "NSUInteger": "uint64",
	"float": "float32", "float32": "float32", "Single": "float32", "Float": "float32",
	"double": "float64", "float64": "float64", "Double": "float64", "CGFloat": "float64",
	"char": "char", "Character": "char", "unichar": "char",
	"string": "string", "String": "string", "java.lang.String": "string",
	"NSString": "string", "NSString*": "string", "System.String": "string", "HSTRING": "string",
	"date": "date", "Date": "date", "java.util.Date": "date", "NSDate": "date",
	"NSDate*": "date", "DateTimeOffset": "date", "System.DateTimeOffset": "date",
}

// CanonicalPrimitive maps a native primitive spelling to its canonical name.
// Unknown spellings are returned unchanged so they still compare by name.
func CanonicalPrimitive(name string) string {
	if c, ok := primitiveAliases[strings.TrimSpace(name)]; ok {
		return c
	}
	return strings.TrimSpace(name)
}
