package model

import "strings"

// ShapeCategory is the coarse category of a type shape.
type ShapeCategory uint8

const (
	Void ShapeCategory = iota
	Primitive
	Collection
	Reference
)

func (c ShapeCategory) String() string {
	switch c {
	case Void:
		return "void"
	case Primitive:
		return "primitive"
	case Collection:
		return "collection"
	case Reference:
		return "reference"
	}
	return "unknown"
}

// TypeShape is a canonical, platform-independent type description.
type TypeShape struct {
	Elem      *TypeShape
	Primitive string
	// Class is the canonical full name of a referenced class.
	Class string
	// Native is the native name of a reference that did not resolve.
	Native   string
	Category ShapeCategory
	Nullable bool
}

// Unresolved reports whether the shape, or any element of it, references a
// native type outside the model.
func (s TypeShape) Unresolved() bool {
	if s.Category == Reference && s.Class == "" {
		return true
	}
	if s.Elem != nil {
		return s.Elem.Unresolved()
	}
	return false
}

// ReferencedClass returns the class referenced directly or through collections.
func (s TypeShape) ReferencedClass() string {
	for cur := &s; cur != nil; cur = cur.Elem {
		if cur.Category == Reference {
			return cur.Class
		}
	}
	return ""
}

// Signature renders the canonical comparison key: "string", "list<int32>",
// "ref<Contoso.Widget>?".
func (s TypeShape) Signature() string {
	var b strings.Builder
	s.writeSignature(&b, true)
	return b.String()
}

// BaseSignature is Signature without nullability markers.
func (s TypeShape) BaseSignature() string {
	var b strings.Builder
	s.writeSignature(&b, false)
	return b.String()
}

func (s TypeShape) writeSignature(b *strings.Builder, nullable bool) {
	switch s.Category {
	case Void:
		b.WriteString("void")
	case Primitive:
		b.WriteString(s.Primitive)
	case Collection:
		b.WriteString("list<")
		if s.Elem != nil {
			s.Elem.writeSignature(b, nullable)
		}
		b.WriteByte('>')
	case Reference:
		b.WriteString("ref<")
		if s.Class != "" {
			b.WriteString(s.Class)
		} else {
			b.WriteString("?")
			b.WriteString(s.Native)
		}
		b.WriteByte('>')
	}
	if nullable && s.Nullable {
		b.WriteByte('?')
	}
}

// MemberShape is the per-platform shape of one member.
type MemberShape struct {
	Params []TypeShape
	Return TypeShape
	// Type is the property value type or the event payload type.
	Type   TypeShape
	Static bool
	Get    bool
	Set    bool
}

// Signature renders the parts of the shape that must agree across platforms.
// Setter availability is not part of it; partial setters are reported separately.
func (m MemberShape) Signature(kind MemberKind) string {
	return m.signature(kind, true)
}

// BaseSignature is Signature without nullability markers. Platforms differ in
// how precisely they annotate nullability, so only this form must agree.
func (m MemberShape) BaseSignature(kind MemberKind) string {
	return m.signature(kind, false)
}

func (m MemberShape) signature(kind MemberKind, nullable bool) string {
	var b strings.Builder
	if m.Static {
		b.WriteString("static ")
	}
	switch kind {
	case Constructor, Method:
		b.WriteByte('(')
		for i, p := range m.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			p.writeSignature(&b, nullable)
		}
		b.WriteByte(')')
		if kind == Method {
			b.WriteString(" -> ")
			m.Return.writeSignature(&b, nullable)
		}
	case Property, Event:
		m.Type.writeSignature(&b, nullable)
	}
	return b.String()
}
