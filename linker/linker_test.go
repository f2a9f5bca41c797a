package linker

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/descriptor"
	"github.com/wippyai/xplat/detect"
	"github.com/wippyai/xplat/errors"
	"github.com/wippyai/xplat/model"
)

func testMappings(t *testing.T) *MappingSet {
	t.Helper()
	s, err := NewMappingSet([]NamespaceMapping{
		{Platform: xplat.Android, Key: "com.contoso", Namespace: "Contoso"},
		{Platform: xplat.IOS, Key: "ABC", Namespace: "NsX"},
		{Platform: xplat.IOS, Key: "ABCD", Namespace: "NsY"},
		{Platform: xplat.IOS, Key: "CTS", Namespace: "Contoso"},
	}, MappingOptions{})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func str() *descriptor.Shape {
	s := descriptor.Primitive("string")
	return &s
}

func TestLinkLongestPrefixWins(t *testing.T) {
	ios := &descriptor.Stream{Platform: xplat.IOS, Types: []descriptor.TypeDecl{
		{NativeName: "ABCWidget"},
		{NativeName: "ABCDWidget"},
	}}
	l := New(testMappings(t), Options{Platforms: []xplat.Platform{xplat.IOS}})
	res, err := l.Link(context.Background(), ios)
	if err != nil {
		t.Fatal(err)
	}
	if res.Model.Class("NsX.Widget") == nil {
		t.Error("ABCWidget should link as NsX.Widget")
	}
	if res.Model.Class("NsY.Widget") == nil {
		t.Error("ABCDWidget should link as NsY.Widget")
	}
	if res.Model.Len() != 2 {
		t.Errorf("Len() = %d, want 2", res.Model.Len())
	}
}

func TestLinkPipeline(t *testing.T) {
	android := &descriptor.Stream{Platform: xplat.Android, Types: []descriptor.TypeDecl{
		{NativeName: "com.contoso.Widget", Members: []descriptor.MemberDecl{
			{Kind: descriptor.Property, Name: "Name", Type: str(), Get: true, Set: true},
		}},
		{NativeName: "com.contoso.internal.Helper"},
		{NativeName: "com.contoso.TestProbe"},
		{NativeName: "org.other.Thing"},
	}}
	ios := &descriptor.Stream{Platform: xplat.IOS, Types: []descriptor.TypeDecl{
		{NativeName: "CTSWidget", Members: []descriptor.MemberDecl{
			{Kind: descriptor.Constructor},
			{Kind: descriptor.Property, Name: "Name", Type: str(), Get: true, Set: true},
		}},
	}}

	l := New(testMappings(t), Options{
		Platforms:       []xplat.Platform{xplat.Android, xplat.IOS},
		Exclude:         []string{"com.contoso.*Probe", "**.internal.*"},
		Overrides:       map[string]model.MarshalKind{"Contoso.Gone": model.ByReference},
		InferValueKinds: true,
	})
	res, err := l.Link(context.Background(), android, ios)
	if err != nil {
		t.Fatal(err)
	}

	if !res.Model.Frozen() {
		t.Error("result model must be frozen")
	}
	if len(res.Excluded) != 2 {
		t.Errorf("Excluded = %v, want 2 entries", res.Excluded)
	}
	if len(res.Unmapped) != 1 || res.Unmapped[0].NativeName != "org.other.Thing" {
		t.Errorf("Unmapped = %v", res.Unmapped)
	}
	w := res.Model.Class("Contoso.Widget")
	if w == nil || w.Kind != model.ByReference {
		t.Fatalf("Contoso.Widget = %+v, want by-reference", w)
	}
	if !res.Generatable() {
		t.Errorf("warnings only should be generatable: %v", res.Conflicts)
	}

	var partial, unused bool
	for _, c := range res.Conflicts {
		switch c.Code {
		case detect.CodePartialMember:
			partial = c.Subject == "Contoso.Widget.new/0"
		case detect.CodeUnusedOverride:
			unused = c.Subject == "Contoso.Gone"
		}
	}
	if !partial || !unused {
		t.Errorf("missing expected warnings: %v", res.Conflicts)
	}
}

func TestLinkBlocksOnErrors(t *testing.T) {
	android := &descriptor.Stream{Platform: xplat.Android, Types: []descriptor.TypeDecl{
		{NativeName: "com.contoso.Widget", MarshalOverride: "reference"},
	}}
	ios := &descriptor.Stream{Platform: xplat.IOS, Types: []descriptor.TypeDecl{
		{NativeName: "CTSWidget", MarshalOverride: "value-one-way"},
	}}
	res, err := New(testMappings(t), Options{}).Link(context.Background(), android, ios)
	if err != nil {
		t.Fatal(err)
	}
	if res.Generatable() {
		t.Error("marshal kind disagreement must block generation")
	}
}

func TestLinkConfigErrors(t *testing.T) {
	android := &descriptor.Stream{Platform: xplat.Android, Types: []descriptor.TypeDecl{
		{NativeName: "com.contoso.Service", Members: []descriptor.MemberDecl{{Kind: descriptor.Method, Name: "Run"}}},
	}}

	tests := []struct {
		name string
		opts Options
		kind errors.Kind
	}{
		{"bad glob", Options{Exclude: []string{"com.[contoso"}}, errors.KindInvalidConfig},
		{"ineligible override", Options{Overrides: map[string]model.MarshalKind{"Contoso.Service": model.ByValueOneWay}}, errors.KindInvalidOverride},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(testMappings(t), tt.opts).Link(context.Background(), android)
			var le *LinkError
			if !stderrors.As(err, &le) {
				t.Fatalf("expected LinkError, got %v", err)
			}
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: tt.kind}) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
			if cs := detect.FromConfigErrors(err); len(cs) != 1 {
				t.Errorf("FromConfigErrors = %v", cs)
			}
		})
	}
}

func TestLinkCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(testMappings(t), Options{}).Link(ctx, &descriptor.Stream{Platform: xplat.Android})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLinkErrorMessage(t *testing.T) {
	err := linkError("build", xplat.IOS, "bad input", stderrors.New("boom"))
	want := "link failed at build (ios): bad input: boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
