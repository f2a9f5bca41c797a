package descriptor

import (
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/xplat"
)

func strPtr(s string) *string { return &s }

func TestShapeFromWIT(t *testing.T) {
	point := &wit.TypeDef{
		Name: strPtr("point"),
		Kind: &wit.Record{Fields: []wit.Field{{Name: "x", Type: wit.S32{}}}},
	}
	tests := []struct {
		name string
		in   wit.Type
		want string
	}{
		{"string", wit.String{}, "primitive:string"},
		{"u64", wit.U64{}, "primitive:uint64"},
		{"record ref", point, "reference:point"},
		{"list of u8", &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}, "collection"},
		{"option", &wit.TypeDef{Kind: &wit.Option{Type: wit.U32{}}}, "primitive:uint32?"},
		{"enum", &wit.TypeDef{Kind: &wit.Enum{Cases: []wit.EnumCase{{Name: "a"}}}}, "primitive:int32"},
		{"own", &wit.TypeDef{Kind: &wit.Own{Type: &wit.TypeDef{Name: strPtr("blob"), Kind: &wit.Resource{}}}}, "reference:blob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh, err := ShapeFromWIT(tt.in)
			if err != nil {
				t.Fatalf("ShapeFromWIT failed: %v", err)
			}
			got := string(sh.Kind)
			if sh.Name != "" {
				got += ":" + sh.Name
			}
			if sh.Nullable {
				got += "?"
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShapeFromWIT_Unsupported(t *testing.T) {
	tuple := &wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.U8{}, wit.U8{}}}}
	if _, err := ShapeFromWIT(tuple); err == nil {
		t.Error("tuples have no cross-platform shape")
	}
	anon := &wit.TypeDef{Kind: &wit.Record{}}
	if _, err := ShapeFromWIT(anon); err == nil {
		t.Error("anonymous records cannot be referenced")
	}
}

func TestFromWIT(t *testing.T) {
	blob := &wit.TypeDef{Name: strPtr("blob-store"), Kind: &wit.Resource{}}
	entry := &wit.TypeDef{
		Name: strPtr("entry"),
		Kind: &wit.Record{Fields: []wit.Field{
			{Name: "key-name", Type: wit.String{}},
			{Name: "store", Type: &wit.TypeDef{Kind: &wit.Borrow{Type: blob}}},
		}},
	}
	flags := &wit.TypeDef{Name: strPtr("mode"), Kind: &wit.Flags{}}

	s, err := FromWIT("contoso:store/types", []*wit.TypeDef{blob, entry, flags})
	if err != nil {
		t.Fatalf("FromWIT failed: %v", err)
	}
	if s.Platform != xplat.Wasm {
		t.Errorf("Platform = %q", s.Platform)
	}
	if len(s.Types) != 2 {
		t.Fatalf("expected record and resource only, got %d types", len(s.Types))
	}

	res := s.Types[0]
	if res.Name != "BlobStore" || res.MarshalOverride != "reference" {
		t.Errorf("resource decl = %+v", res)
	}

	rec := s.Types[1]
	if rec.NativeName != "contoso:store/types#entry" {
		t.Errorf("NativeName = %q", rec.NativeName)
	}
	if len(rec.Members) != 3 || rec.Members[0].Kind != Constructor {
		t.Fatalf("record members = %+v", rec.Members)
	}
	if rec.Members[1].Name != "KeyName" || !rec.Members[1].Set {
		t.Errorf("field member = %+v", rec.Members[1])
	}
	if got := rec.Members[2].Type.Name; got != "contoso:store/types#blob-store" {
		t.Errorf("reference not qualified: %q", got)
	}
}
