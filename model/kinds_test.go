package model

import "testing"

func TestParseMarshalKind(t *testing.T) {
	tests := []struct {
		in   string
		want MarshalKind
		ok   bool
	}{
		{"reference", ByReference, true},
		{"ByReference", ByReference, true},
		{"value-one-way", ByValueOneWay, true},
		{" one-way ", ByValueOneWay, true},
		{"value-two-way", ByValueTwoWay, true},
		{"value", ByValueTwoWay, true},
		{"copy", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseMarshalKind(tt.in)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("ParseMarshalKind(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMarshalKindCapabilities(t *testing.T) {
	if ByReference.ByValue() || !ByValueOneWay.ByValue() || !ByValueTwoWay.ByValue() {
		t.Error("ByValue() mismatch")
	}
	if ByValueOneWay.Settable() || !ByValueTwoWay.Settable() {
		t.Error("Settable() mismatch")
	}
	if ByValueOneWay.ScriptConstructible() || !ByValueTwoWay.ScriptConstructible() {
		t.Error("ScriptConstructible() mismatch")
	}
	if ByValueTwoWay.String() != "value-two-way" {
		t.Errorf("String() = %q", ByValueTwoWay.String())
	}
}

func TestMemberShapeSignature(t *testing.T) {
	str := TypeShape{Category: Primitive, Primitive: "string"}
	ref := TypeShape{Category: Reference, Class: "Contoso.Color", Nullable: true}

	tests := []struct {
		name  string
		kind  MemberKind
		shape MemberShape
		want  string
	}{
		{"method", Method, MemberShape{Params: []TypeShape{str, ref}, Return: TypeShape{Category: Void}}, "(string, ref<Contoso.Color>?) -> void"},
		{"static property", Property, MemberShape{Static: true, Type: str, Get: true, Set: true}, "static string"},
		{"setter ignored", Property, MemberShape{Type: str, Get: true}, "string"},
		{"constructor", Constructor, MemberShape{}, "()"},
		{"unresolved", Event, MemberShape{Type: TypeShape{Category: Reference, Native: "NSView"}}, "ref<?NSView>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.shape.Signature(tt.kind); got != tt.want {
				t.Errorf("Signature() = %q, want %q", got, tt.want)
			}
		})
	}
}
