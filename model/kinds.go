package model

import "strings"

// MarshalKind is how instances of a class cross the bridge.
type MarshalKind uint8

const (
	// ByReference keeps the instance native-side; script holds a handle.
	ByReference MarshalKind = iota
	// ByValueOneWay copies get-only data out of native code.
	ByValueOneWay
	// ByValueTwoWay copies gettable and settable data in both directions.
	ByValueTwoWay
)

var marshalKindNames = [...]string{
	ByReference:   "reference",
	ByValueOneWay: "value-one-way",
	ByValueTwoWay: "value-two-way",
}

func (k MarshalKind) String() string {
	if int(k) < len(marshalKindNames) {
		return marshalKindNames[k]
	}
	return "unknown"
}

// ByValue reports whether instances are copied across the bridge.
func (k MarshalKind) ByValue() bool {
	return k == ByValueOneWay || k == ByValueTwoWay
}

// Settable reports whether script code may set properties on a copy.
func (k MarshalKind) Settable() bool {
	return k == ByValueTwoWay
}

// ScriptConstructible reports whether script code may create instances.
func (k MarshalKind) ScriptConstructible() bool {
	return k != ByValueOneWay
}

// ParseMarshalKind accepts the string forms and a few common spellings.
func ParseMarshalKind(s string) (MarshalKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reference", "by-reference", "byreference", "ref":
		return ByReference, true
	case "value-one-way", "by-value-one-way", "byvalueoneway", "one-way":
		return ByValueOneWay, true
	case "value-two-way", "by-value-two-way", "byvaluetwoway", "two-way", "value":
		return ByValueTwoWay, true
	}
	return 0, false
}

// MemberKind tags the member variant.
type MemberKind uint8

const (
	Constructor MemberKind = iota
	Property
	Method
	Event
)

var memberKindNames = [...]string{
	Constructor: "constructor",
	Property:    "property",
	Method:      "method",
	Event:       "event",
}

func (k MemberKind) String() string {
	if int(k) < len(memberKindNames) {
		return memberKindNames[k]
	}
	return "unknown"
}

// Overloadable reports whether members of this kind match on arity.
func (k MemberKind) Overloadable() bool {
	return k == Constructor || k == Method
}
