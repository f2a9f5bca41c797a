package linker

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/descriptor"
	"github.com/wippyai/xplat/errors"
)

func TestNewMappingSetRejectsAmbiguity(t *testing.T) {
	_, err := NewMappingSet([]NamespaceMapping{
		{Platform: xplat.Android, Key: "com.contoso.widgets", Namespace: "Contoso.Widgets"},
		{Platform: xplat.Android, Key: "com.contoso.widgets", Namespace: "Contoso.Controls"},
		{Platform: xplat.IOS, Key: "CTS", Namespace: "Contoso.Widgets"},
		{Platform: xplat.IOS, Key: "CTS", Namespace: "Contoso.Other"},
		{Platform: xplat.IOS, Key: "TOOLONG", Namespace: "Contoso.Widgets"},
		{Platform: xplat.Windows, Key: "", Namespace: "Contoso"},
	}, MappingOptions{})

	var cfg *errors.ConfigErrors
	if !stderrors.As(err, &cfg) {
		t.Fatalf("expected ConfigErrors, got %v", err)
	}
	if cfg.Len() != 4 {
		t.Fatalf("expected every problem reported, got %d: %v", cfg.Len(), err)
	}

	var ambiguous int
	for _, e := range cfg.Errors {
		if e.Kind == errors.KindAmbiguousMapping {
			ambiguous++
		}
	}
	if ambiguous != 2 {
		t.Errorf("ambiguous = %d, want 2", ambiguous)
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidMapping}) {
		t.Error("expected invalid_mapping among the errors")
	}
}

func TestNewMappingSetToleratesDuplicates(t *testing.T) {
	s, err := NewMappingSet([]NamespaceMapping{
		{Platform: xplat.Android, Key: "com.contoso", Namespace: "Contoso"},
		{Platform: xplat.Android, Key: "com.contoso", Namespace: "Contoso"},
		{Platform: xplat.Windows, Key: "com.contoso", Namespace: "Other"},
	}, MappingOptions{})
	if err != nil {
		t.Fatalf("identical duplicates should be accepted: %v", err)
	}
	if ns, ok := s.Resolve(xplat.Windows, "com.contoso"); !ok || ns != "Other" {
		t.Errorf("keys are scoped per platform, got %q %v", ns, ok)
	}
}

func TestResolveLongestPrefixWins(t *testing.T) {
	s, err := NewMappingSet([]NamespaceMapping{
		{Platform: xplat.IOS, Key: "ABC", Namespace: "NsX"},
		{Platform: xplat.IOS, Key: "ABCD", Namespace: "NsY"},
	}, MappingOptions{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		native string
		want   string
		ok     bool
	}{
		{"ABCWidget", "NsX", true},
		{"ABCDWidget", "NsY", true},
		{"ABWidget", "", false},
		{"XYZWidget", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			ns, ok := s.Resolve(xplat.IOS, tt.native)
			if ok != tt.ok || ns != tt.want {
				t.Errorf("Resolve(%q) = %q, %v; want %q, %v", tt.native, ns, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestResolveType(t *testing.T) {
	s, err := NewMappingSet([]NamespaceMapping{
		{Platform: xplat.Android, Key: "com.contoso.widgets", Namespace: "Contoso.Widgets"},
		{Platform: xplat.IOS, Key: "CTSW", Namespace: "Contoso.Widgets"},
		{Platform: xplat.Windows, Key: "Contoso.Widgets", Namespace: "Contoso.Widgets"},
	}, MappingOptions{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		platform xplat.Platform
		decl     descriptor.TypeDecl
		wantNs   string
		wantName string
		ok       bool
	}{
		{"java package", xplat.Android, descriptor.TypeDecl{NativeName: "com.contoso.widgets.Widget"}, "Contoso.Widgets", "Widget", true},
		{"explicit namespace", xplat.Android, descriptor.TypeDecl{NativeName: "Widget", NativeNamespace: "com.contoso.widgets"}, "Contoso.Widgets", "Widget", true},
		{"objc prefix stripped", xplat.IOS, descriptor.TypeDecl{NativeName: "CTSWWidget"}, "Contoso.Widgets", "Widget", true},
		{"objc explicit name", xplat.IOS, descriptor.TypeDecl{NativeName: "CTSWThing", Name: "Widget"}, "Contoso.Widgets", "Widget", true},
		{"cpp namespace", xplat.Windows, descriptor.TypeDecl{NativeName: "Contoso::Widgets::Widget"}, "Contoso.Widgets", "Widget", true},
		{"unmapped package", xplat.Android, descriptor.TypeDecl{NativeName: "com.other.Widget"}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns, name, ok := s.ResolveType(tt.platform, tt.decl)
			if ok != tt.ok || ns != tt.wantNs || name != tt.wantName {
				t.Errorf("ResolveType() = %q, %q, %v; want %q, %q, %v", ns, name, ok, tt.wantNs, tt.wantName, tt.ok)
			}
		})
	}
}

func TestMappingStrategies(t *testing.T) {
	s, err := NewMappingSet([]NamespaceMapping{
		{Platform: "web", Key: "CT", Namespace: "Contoso"},
	}, MappingOptions{
		Strategies:    map[xplat.Platform]xplat.MatchStrategy{"web": xplat.MatchPrefix},
		PrefixLengths: []int{2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.Strategy("web") != xplat.MatchPrefix || s.Strategy(xplat.Android) != xplat.MatchExact {
		t.Error("unexpected strategies")
	}
	if ns, ok := s.Resolve("web", "CTButton"); !ok || ns != "Contoso" {
		t.Errorf("Resolve = %q, %v", ns, ok)
	}
	if got := len(s.Mappings()); got != 1 {
		t.Errorf("Mappings() len = %d", got)
	}
}
