package descriptor

import (
	"fmt"
	"io"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/errors"
)

// ShapeFromWIT maps a WIT type to a descriptor shape.
// Records and resources become references to their type name; lists become
// collections; options become nullable shapes. Tuples, results and variants
// have no cross-platform projection and are rejected.
func ShapeFromWIT(t wit.Type) (Shape, error) {
	switch t := t.(type) {
	case nil:
		return Shape{Kind: ShapeVoid}, nil
	case wit.Bool:
		return Primitive("bool"), nil
	case wit.U8:
		return Primitive("uint8"), nil
	case wit.S8:
		return Primitive("int8"), nil
	case wit.U16:
		return Primitive("uint16"), nil
	case wit.S16:
		return Primitive("int16"), nil
	case wit.U32:
		return Primitive("uint32"), nil
	case wit.S32:
		return Primitive("int32"), nil
	case wit.U64:
		return Primitive("uint64"), nil
	case wit.S64:
		return Primitive("int64"), nil
	case wit.F32:
		return Primitive("float32"), nil
	case wit.F64:
		return Primitive("float64"), nil
	case wit.Char:
		return Primitive("char"), nil
	case wit.String:
		return Primitive("string"), nil
	case *wit.TypeDef:
		return shapeFromTypeDef(t)
	}
	return Shape{}, errors.Unsupported(errors.PhaseLoad, fmt.Sprintf("wit type %T", t))
}

func shapeFromTypeDef(td *wit.TypeDef) (Shape, error) {
	switch kind := td.Kind.(type) {
	case *wit.Record, *wit.Resource:
		name := typeDefName(td)
		if name == "" {
			return Shape{}, errors.InvalidData(errors.PhaseLoad, nil, "anonymous record or resource")
		}
		return Ref(name), nil
	case *wit.Own:
		return shapeFromHandle(kind.Type)
	case *wit.Borrow:
		return shapeFromHandle(kind.Type)
	case *wit.List:
		elem, err := ShapeFromWIT(kind.Type)
		if err != nil {
			return Shape{}, err
		}
		return ListOf(elem), nil
	case *wit.Option:
		inner, err := ShapeFromWIT(kind.Type)
		if err != nil {
			return Shape{}, err
		}
		inner.Nullable = true
		return inner, nil
	case *wit.Enum:
		return Primitive("int32"), nil
	case *wit.Flags:
		return Primitive("uint32"), nil
	case wit.Type:
		// type alias: type foo = bar
		return ShapeFromWIT(kind)
	}
	return Shape{}, errors.Unsupported(errors.PhaseLoad, fmt.Sprintf("wit type definition %T", td.Kind))
}

func shapeFromHandle(td *wit.TypeDef) (Shape, error) {
	if td == nil {
		return Shape{}, errors.InvalidData(errors.PhaseLoad, nil, "handle without resource type")
	}
	return shapeFromTypeDef(td)
}

func typeDefName(td *wit.TypeDef) string {
	if td.Name == nil {
		return ""
	}
	return *td.Name
}

// ClassFromWIT converts a named record or resource definition to a TypeDecl.
// Records become value-like classes: a parameterless constructor plus a
// gettable and settable property per field. Resources carry no members here;
// their methods are described by the component's functions.
func ClassFromWIT(nativeNamespace string, td *wit.TypeDef) (TypeDecl, error) {
	name := typeDefName(td)
	if name == "" {
		return TypeDecl{}, errors.InvalidData(errors.PhaseLoad, nil, "anonymous type definition")
	}

	decl := TypeDecl{
		NativeName:      nativeNamespace + "#" + name,
		NativeNamespace: nativeNamespace,
		Name:            witClassName(name),
	}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		decl.Members = append(decl.Members, MemberDecl{Kind: Constructor})
		for _, f := range kind.Fields {
			sh, err := ShapeFromWIT(f.Type)
			if err != nil {
				return TypeDecl{}, fmt.Errorf("descriptor: field %s.%s: %w", name, f.Name, err)
			}
			decl.Members = append(decl.Members, MemberDecl{
				Kind: Property,
				Name: witClassName(f.Name),
				Type: &sh,
				Get:  true,
				Set:  true,
			})
		}
	case *wit.Resource:
		decl.MarshalOverride = "reference"
	default:
		return TypeDecl{}, errors.Unsupported(errors.PhaseLoad, fmt.Sprintf("wit class from %T", td.Kind))
	}
	return decl, nil
}

// FromWIT builds a wasm platform stream from named WIT type definitions.
// Reference shapes inside the stream are rewritten to the qualified native names
// produced by ClassFromWIT so the builder can resolve them.
func FromWIT(nativeNamespace string, defs []*wit.TypeDef) (*Stream, error) {
	s := &Stream{Platform: xplat.Wasm}
	for _, td := range defs {
		switch td.Kind.(type) {
		case *wit.Record, *wit.Resource:
		default:
			continue
		}
		decl, err := ClassFromWIT(nativeNamespace, td)
		if err != nil {
			return nil, err
		}
		for i := range decl.Members {
			qualifyRefs(decl.Members[i].Type, nativeNamespace)
		}
		s.Types = append(s.Types, decl)
	}
	return s, nil
}

func qualifyRefs(s *Shape, ns string) {
	for s != nil {
		if s.Kind == ShapeReference {
			s.Name = ns + "#" + s.Name
		}
		s = s.Elem
	}
}

// witClassName turns "http-request" into "HttpRequest".
func witClassName(kebab string) string {
	out := make([]byte, 0, len(kebab))
	upper := true
	for i := 0; i < len(kebab); i++ {
		c := kebab[i]
		if c == '-' || c == '_' {
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}

// decodeWIT reads a resolved WIT package in JSON form. The native namespace is
// the "namespace:package" of the last package, which is the one the document
// was generated for.
func decodeWIT(r io.Reader) (*Stream, error) {
	res, err := wit.DecodeJSON(r)
	if err != nil {
		return nil, errors.Load("decode wit json", err)
	}
	if len(res.Packages) == 0 {
		return nil, errors.InvalidData(errors.PhaseLoad, nil, "wit document has no packages")
	}
	pkg := res.Packages[len(res.Packages)-1]
	return FromWIT(pkg.Name.Namespace+":"+pkg.Name.Package, res.TypeDefs)
}
