package classify

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/descriptor"
	"github.com/wippyai/xplat/errors"
	"github.com/wippyai/xplat/model"
)

func prop(name string, get, set bool) descriptor.MemberDecl {
	s := descriptor.Primitive("string")
	return descriptor.MemberDecl{Kind: descriptor.Property, Name: name, Type: &s, Get: get, Set: set}
}

func refProp(name, target string) descriptor.MemberDecl {
	s := descriptor.Ref(target)
	return descriptor.MemberDecl{Kind: descriptor.Property, Name: name, Type: &s, Get: true, Set: true}
}

func ctor() descriptor.MemberDecl {
	return descriptor.MemberDecl{Kind: descriptor.Constructor}
}

func method(name string) descriptor.MemberDecl {
	return descriptor.MemberDecl{Kind: descriptor.Method, Name: name}
}

type decl struct {
	platform xplat.Platform
	td       descriptor.TypeDecl
}

func build(t *testing.T, decls ...decl) *model.ApiModel {
	t.Helper()
	b := model.NewBuilder(xplat.Android, xplat.IOS)
	for _, d := range decls {
		b.Add(d.platform, model.ResolvedType{Namespace: "Contoso", Decl: d.td})
	}
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

func both(name string, members ...descriptor.MemberDecl) []decl {
	return []decl{
		{xplat.Android, descriptor.TypeDecl{NativeName: "com.contoso." + name, Name: name, Members: members}},
		{xplat.IOS, descriptor.TypeDecl{NativeName: "CTS" + name, Name: name, Members: members}},
	}
}

func TestMissingConstructorFallsBackToReference(t *testing.T) {
	m := build(t,
		decl{xplat.Android, descriptor.TypeDecl{NativeName: "com.contoso.Widget", Name: "Widget",
			Members: []descriptor.MemberDecl{prop("Name", true, true)}}},
		decl{xplat.IOS, descriptor.TypeDecl{NativeName: "CTSWidget", Name: "Widget",
			Members: []descriptor.MemberDecl{ctor(), prop("Name", true, true)}}},
	)
	if _, err := Classify(m, Options{InferValueKinds: true}); err != nil {
		t.Fatal(err)
	}
	c := m.Class("Contoso.Widget")
	if c.Kind != model.ByReference {
		t.Errorf("Kind = %v, want reference", c.Kind)
	}
	e := Eligible(c)
	if e.TwoWay || e.OneWay {
		t.Errorf("eligibility = %+v, want neither", e)
	}
}

func TestInferValueKinds(t *testing.T) {
	tests := []struct {
		name     string
		members  []descriptor.MemberDecl
		infer    bool
		want     model.MarshalKind
		required bool
	}{
		{"get-only data", []descriptor.MemberDecl{prop("X", true, false)}, true, model.ByValueOneWay, false},
		{"settable data with ctor", []descriptor.MemberDecl{ctor(), prop("X", true, true)}, true, model.ByValueTwoWay, false},
		{"ctor and get-only", []descriptor.MemberDecl{ctor(), prop("X", true, false)}, true, model.ByReference, true},
		{"methods", []descriptor.MemberDecl{prop("X", true, false), method("Do")}, true, model.ByReference, false},
		{"inference off", []descriptor.MemberDecl{prop("X", true, false)}, false, model.ByReference, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := build(t, both("Point", tt.members...)...)
			if _, err := Classify(m, Options{InferValueKinds: tt.infer}); err != nil {
				t.Fatal(err)
			}
			c := m.Class("Contoso.Point")
			if c.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", c.Kind, tt.want)
			}
			if c.ValueKindRequired != tt.required {
				t.Errorf("ValueKindRequired = %v, want %v", c.ValueKindRequired, tt.required)
			}
		})
	}
}

func TestConfiguredOverrides(t *testing.T) {
	m := build(t, append(both("Point", ctor(), prop("X", true, true)),
		both("Service", method("Run"))...)...)

	_, err := Classify(m, Options{Overrides: map[string]model.MarshalKind{
		"Contoso.Point":   model.ByValueTwoWay,
		"Contoso.Service": model.ByValueOneWay,
	}})
	var cfg *errors.ConfigErrors
	if !stderrors.As(err, &cfg) || cfg.Len() != 1 {
		t.Fatalf("expected one invalid override, got %v", err)
	}
	if cfg.Errors[0].Kind != errors.KindInvalidOverride || cfg.Errors[0].Path[0] != "Contoso.Service" {
		t.Errorf("unexpected error %v", cfg.Errors[0])
	}
	if got := m.Class("Contoso.Point").Kind; got != model.ByValueTwoWay {
		t.Errorf("Point kind = %v, want value-two-way", got)
	}
	if got := m.Class("Contoso.Service").Kind; got != model.ByReference {
		t.Errorf("Service kind = %v, want reference", got)
	}
}

func TestEventPayloadAlwaysOneWay(t *testing.T) {
	payload := descriptor.Ref("com.contoso.Args")
	m := build(t,
		decl{xplat.Android, descriptor.TypeDecl{NativeName: "com.contoso.Args", Name: "Args",
			Members: []descriptor.MemberDecl{ctor(), prop("Value", true, true)}}},
		decl{xplat.Android, descriptor.TypeDecl{NativeName: "com.contoso.Button", Name: "Button",
			Members: []descriptor.MemberDecl{{Kind: descriptor.Event, Name: "Clicked", Type: &payload}}}},
	)

	res, err := Classify(m, Options{Overrides: map[string]model.MarshalKind{
		"Contoso.Args":    model.ByValueTwoWay,
		"Contoso.Missing": model.ByReference,
	}})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidOverride}) {
		t.Fatalf("expected invalid override, got %v", err)
	}
	args := m.Class("Contoso.Args")
	if args.Kind != model.ByValueOneWay {
		t.Errorf("Args kind = %v, want value-one-way", args.Kind)
	}
	if len(res.UnusedOverrides) != 1 || res.UnusedOverrides[0] != "Contoso.Missing" {
		t.Errorf("UnusedOverrides = %v", res.UnusedOverrides)
	}
}

func TestOneWayProjectionHidesConstructorsAndSetters(t *testing.T) {
	payload := descriptor.Ref("com.contoso.Args")
	m := build(t,
		decl{xplat.Android, descriptor.TypeDecl{NativeName: "com.contoso.Args", Name: "Args",
			Members: []descriptor.MemberDecl{ctor(), prop("Value", true, true), method("Touch")}}},
		decl{xplat.Android, descriptor.TypeDecl{NativeName: "com.contoso.Button", Name: "Button",
			Members: []descriptor.MemberDecl{{Kind: descriptor.Event, Name: "Clicked", Type: &payload}}}},
	)
	if _, err := Classify(m, Options{}); err != nil {
		t.Fatal(err)
	}

	for _, c := range m.Classes() {
		if c.Kind != model.ByValueOneWay {
			continue
		}
		if c.ParameterlessConstructor() != nil {
			t.Errorf("%s exposes a parameterless constructor", c.FullName())
		}
		for _, mem := range c.Members {
			if mem.Kind != model.Property {
				t.Errorf("%s exposes %s %s", c.FullName(), mem.Kind, mem.Name)
			}
			if mem.AnySetter() {
				t.Errorf("%s.%s exposes a setter", c.FullName(), mem.Name)
			}
		}
	}
	if got := len(m.Class("Contoso.Args").Suppressed); got != 2 {
		t.Errorf("Suppressed = %d, want 2", got)
	}
}

func TestTwoWayExposesConstructorAndSetters(t *testing.T) {
	m := build(t, append(both("Point", ctor(), prop("X", true, true), refProp("Owner", "com.contoso.Service")),
		decl{xplat.Android, descriptor.TypeDecl{NativeName: "com.contoso.Service", Name: "Service",
			Members: []descriptor.MemberDecl{method("Run")}}})...)
	// ios has no Service, so Owner is unresolved there
	if _, err := Classify(m, Options{Overrides: map[string]model.MarshalKind{"Contoso.Point": model.ByValueTwoWay}}); err != nil {
		t.Fatal(err)
	}

	c := m.Class("Contoso.Point")
	if c.Kind != model.ByValueTwoWay {
		t.Fatalf("Kind = %v", c.Kind)
	}
	if c.ParameterlessConstructor() == nil {
		t.Error("two-way class must expose a parameterless constructor")
	}
	for _, p := range c.MembersOf(model.Property) {
		if !p.Settable() || !p.Gettable() {
			t.Errorf("%s must be gettable and settable", p.Name)
		}
	}
	if !c.Property("Owner").ByReferenceMember {
		t.Error("Owner references a by-reference class and must stay a reference")
	}
	if c.Property("X").ByReferenceMember {
		t.Error("X is a primitive")
	}
}

func TestDescriptorOverrides(t *testing.T) {
	agree := both("Point", prop("X", true, false))
	for i := range agree {
		agree[i].td.MarshalOverride = "value-one-way"
	}
	disagree := both("Size", prop("W", true, false))
	disagree[0].td.MarshalOverride = "value-one-way"
	disagree[1].td.MarshalOverride = "reference"

	m := build(t, append(agree, disagree...)...)
	if _, err := Classify(m, Options{}); err != nil {
		t.Fatal(err)
	}
	if got := m.Class("Contoso.Point").Kind; got != model.ByValueOneWay {
		t.Errorf("Point = %v, want value-one-way", got)
	}
	if got := m.Class("Contoso.Size").Kind; got != model.ByReference {
		t.Errorf("Size = %v, want reference on disagreement", got)
	}
}
