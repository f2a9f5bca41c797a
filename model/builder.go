package model

import (
	"fmt"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/descriptor"
	"github.com/wippyai/xplat/errors"
)

// ResolvedType is a native type with its canonical identity assigned.
type ResolvedType struct {
	Namespace string
	// Name is the canonical class name. Falls back to Decl.Name, then to the
	// native simple name.
	Name string
	Decl descriptor.TypeDecl
}

// ClassName returns the canonical class name for t.
func (t ResolvedType) ClassName() string {
	switch {
	case t.Name != "":
		return t.Name
	case t.Decl.Name != "":
		return t.Decl.Name
	}
	return t.Decl.SimpleName()
}

type pending struct {
	class *ClassDescriptor
	decl  descriptor.TypeDecl
}

// Builder aggregates resolved types from every platform into one ApiModel.
type Builder struct {
	types     map[xplat.Platform][]ResolvedType
	platforms []xplat.Platform
}

// NewBuilder creates a builder linking the given platforms in order.
func NewBuilder(platforms ...xplat.Platform) *Builder {
	return &Builder{
		platforms: platforms,
		types:     make(map[xplat.Platform][]ResolvedType),
	}
}

// Add queues a resolved type for platform p. Platforms not passed to
// NewBuilder are appended to the link order on first use.
func (b *Builder) Add(p xplat.Platform, t ResolvedType) {
	if _, ok := b.types[p]; !ok && !b.known(p) {
		b.platforms = append(b.platforms, p)
	}
	b.types[p] = append(b.types[p], t)
}

func (b *Builder) known(p xplat.Platform) bool {
	for _, q := range b.platforms {
		if q == p {
			return true
		}
	}
	return false
}

// Build runs both passes and returns the model. Classes are created first so
// that member shapes can resolve references to any class on the same platform.
// Invalid descriptor overrides are returned together as *errors.ConfigErrors.
func (b *Builder) Build() (*ApiModel, error) {
	m := newModel(b.platforms)
	cfgErrs := &errors.ConfigErrors{}

	// native name -> canonical full name, per platform
	natives := make(map[xplat.Platform]map[string]string, len(b.platforms))
	work := make(map[xplat.Platform][]pending, len(b.platforms))

	for _, p := range b.platforms {
		natives[p] = make(map[string]string)
		for _, t := range b.types[p] {
			c, _ := m.addClass(t.Namespace, t.ClassName())
			if prev, ok := c.Native[p]; ok {
				m.issues = append(m.issues, BuildIssue{
					Code:     IssueDuplicateNativeType,
					Platform: p,
					Subject:  c.FullName(),
					Detail:   fmt.Sprintf("native types %s and %s both map to %s", prev, t.Decl.NativeName, c.FullName()),
					Fatal:    true,
				})
				continue
			}
			c.Native[p] = t.Decl.NativeName
			natives[p][t.Decl.NativeName] = c.FullName()

			if t.Decl.MarshalOverride != "" {
				kind, ok := ParseMarshalKind(t.Decl.MarshalOverride)
				if !ok {
					err := errors.InvalidOverride(c.FullName(), t.Decl.MarshalOverride, "unknown marshal kind")
					err.Platform = string(p)
					cfgErrs.Add(err)
				} else {
					c.Overrides[p] = kind
				}
			}
			work[p] = append(work[p], pending{class: c, decl: t.Decl})
		}
	}

	for _, p := range b.platforms {
		for _, w := range work[p] {
			b.addMembers(m, p, w, natives[p])
		}
	}

	for _, c := range m.classes {
		for _, mem := range c.Members {
			if mem.Kind != Event {
				continue
			}
			for _, s := range mem.Shapes {
				if name := s.Type.ReferencedClass(); name != "" {
					if target := m.classes[name]; target != nil {
						target.EventPayload = true
					}
				}
			}
		}
	}

	if err := cfgErrs.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func (b *Builder) addMembers(m *ApiModel, p xplat.Platform, w pending, natives map[string]string) {
	c := w.class
	seen := make(map[memberKey]bool, len(w.decl.Members))

	for _, decl := range w.decl.Members {
		kind := memberKindOf(decl.Kind)
		name := decl.Name
		if kind == Constructor {
			name = ConstructorName
		}
		shape := MemberShape{
			Static: decl.Static,
			Get:    decl.Get,
			Set:    decl.Set,
		}
		for _, ps := range decl.Params {
			shape.Params = append(shape.Params, b.convert(m, p, c, ps, natives))
		}
		if decl.Returns != nil {
			shape.Return = b.convert(m, p, c, *decl.Returns, natives)
		}
		if decl.Type != nil {
			shape.Type = b.convert(m, p, c, *decl.Type, natives)
		}

		arity := len(decl.Params)
		key := keyFor(kind, name, decl.Static, arity)
		if seen[key] {
			code, detail := IssueDuplicateMember, fmt.Sprintf("%s %s declared twice", kind, name)
			if kind.Overloadable() {
				code, detail = IssueAmbiguousOverload, fmt.Sprintf("two %s overloads of %s with arity %d", kind, name, arity)
			}
			m.issues = append(m.issues, BuildIssue{
				Code:     code,
				Platform: p,
				Subject:  c.FullName() + "." + name,
				Detail:   detail,
				Fatal:    true,
			})
			continue
		}
		seen[key] = true

		mem := c.index[key]
		if mem == nil {
			mem = &MemberDescriptor{
				Name:   name,
				Kind:   kind,
				Static: decl.Static,
				Shapes: make(map[xplat.Platform]MemberShape),
			}
			if kind.Overloadable() {
				mem.OverloadGroup = name
				mem.Arity = arity
			}
			c.addMember(mem)
		}
		mem.Shapes[p] = shape
	}
}

func (b *Builder) convert(m *ApiModel, p xplat.Platform, c *ClassDescriptor, s descriptor.Shape, natives map[string]string) TypeShape {
	out := TypeShape{Nullable: s.Nullable}
	switch s.Kind {
	case descriptor.ShapeVoid, "":
		out.Category = Void
	case descriptor.ShapePrimitive:
		out.Category = Primitive
		out.Primitive = descriptor.CanonicalPrimitive(s.Name)
	case descriptor.ShapeCollection:
		out.Category = Collection
		if s.Elem != nil {
			elem := b.convert(m, p, c, *s.Elem, natives)
			out.Elem = &elem
		}
	case descriptor.ShapeReference:
		out.Category = Reference
		if full, ok := natives[s.Name]; ok {
			out.Class = full
		} else {
			out.Native = s.Name
			m.issues = append(m.issues, BuildIssue{
				Code:     IssueUnresolvedReference,
				Platform: p,
				Subject:  c.FullName(),
				Detail:   fmt.Sprintf("reference to %s, which is not part of the model", s.Name),
			})
		}
	}
	return out
}

func memberKindOf(k descriptor.MemberKind) MemberKind {
	switch k {
	case descriptor.Constructor:
		return Constructor
	case descriptor.Method:
		return Method
	case descriptor.Event:
		return Event
	}
	return Property
}
