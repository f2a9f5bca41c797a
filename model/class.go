package model

import (
	"strconv"

	"github.com/wippyai/xplat"
)

// MemberDescriptor is one canonical member. Shapes holds one entry per platform
// that defines the member; its keys are the presence set.
type MemberDescriptor struct {
	Shapes        map[xplat.Platform]MemberShape
	Name          string
	OverloadGroup string
	Kind          MemberKind
	Arity         int
	Static        bool
	// ByReferenceMember marks a property of a by-value class whose value is a
	// by-reference class; copies carry the handle, not a deep copy.
	ByReferenceMember bool
}

// Defines reports whether platform p declares the member.
func (m *MemberDescriptor) Defines(p xplat.Platform) bool {
	_, ok := m.Shapes[p]
	return ok
}

// Platforms returns the platforms declaring the member, sorted.
func (m *MemberDescriptor) Platforms() []xplat.Platform {
	out := make([]xplat.Platform, 0, len(m.Shapes))
	for p := range m.Shapes {
		out = append(out, p)
	}
	return xplat.SortPlatforms(out)
}

// Settable reports whether the property has a setter on every defining platform.
func (m *MemberDescriptor) Settable() bool {
	if m.Kind != Property || len(m.Shapes) == 0 {
		return false
	}
	for _, s := range m.Shapes {
		if !s.Set {
			return false
		}
	}
	return true
}

// Gettable reports whether the property has a getter on every defining platform.
func (m *MemberDescriptor) Gettable() bool {
	if m.Kind != Property || len(m.Shapes) == 0 {
		return false
	}
	for _, s := range m.Shapes {
		if !s.Get {
			return false
		}
	}
	return true
}

// AnySetter reports whether any platform exposes a setter.
func (m *MemberDescriptor) AnySetter() bool {
	for _, s := range m.Shapes {
		if s.Set {
			return true
		}
	}
	return false
}

// Shape returns the shape for the first defining platform in link order.
func (m *MemberDescriptor) Shape(order []xplat.Platform) (MemberShape, bool) {
	for _, p := range order {
		if s, ok := m.Shapes[p]; ok {
			return s, true
		}
	}
	return MemberShape{}, false
}

// DisplayName is "Name", "Name/2" for overloads, or "new/0" for constructors.
func (m *MemberDescriptor) DisplayName() string {
	if m.Kind.Overloadable() {
		return m.Name + "/" + strconv.Itoa(m.Arity)
	}
	return m.Name
}

type memberKey struct {
	name   string
	kind   MemberKind
	arity  int
	static bool
}

func keyFor(kind MemberKind, name string, static bool, arity int) memberKey {
	if !kind.Overloadable() {
		return memberKey{kind: kind, name: name}
	}
	return memberKey{kind: kind, name: name, static: static, arity: arity}
}

// ClassDescriptor is one canonical class aggregated across platforms.
type ClassDescriptor struct {
	// Native maps each defining platform to its native type name.
	Native map[xplat.Platform]string
	// Overrides are marshal kinds declared by the descriptor streams.
	Overrides  map[xplat.Platform]MarshalKind
	index      map[memberKey]*MemberDescriptor
	Name       string
	Namespace  string
	Members    []*MemberDescriptor
	Suppressed []*MemberDescriptor
	Kind       MarshalKind
	// EventPayload is set when any event carries this class as its payload.
	EventPayload bool
	// ValueKindRequired is set when the class shape fits both value kinds and
	// an explicit override is needed to choose.
	ValueKindRequired bool
}

func newClass(namespace, name string) *ClassDescriptor {
	return &ClassDescriptor{
		Name:      name,
		Namespace: namespace,
		Native:    make(map[xplat.Platform]string),
		Overrides: make(map[xplat.Platform]MarshalKind),
		index:     make(map[memberKey]*MemberDescriptor),
	}
}

// FullName returns "Namespace.Name".
func (c *ClassDescriptor) FullName() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "." + c.Name
}

// Defines reports whether platform p declares the class.
func (c *ClassDescriptor) Defines(p xplat.Platform) bool {
	_, ok := c.Native[p]
	return ok
}

// Platforms returns the platforms declaring the class, sorted.
func (c *ClassDescriptor) Platforms() []xplat.Platform {
	out := make([]xplat.Platform, 0, len(c.Native))
	for p := range c.Native {
		out = append(out, p)
	}
	return xplat.SortPlatforms(out)
}

// Member looks up a member by its matching key.
func (c *ClassDescriptor) Member(kind MemberKind, name string, static bool, arity int) *MemberDescriptor {
	return c.index[keyFor(kind, name, static, arity)]
}

// Property looks up a property by name.
func (c *ClassDescriptor) Property(name string) *MemberDescriptor {
	return c.index[keyFor(Property, name, false, 0)]
}

// MembersOf returns the visible members of one kind in declaration order.
func (c *ClassDescriptor) MembersOf(kind MemberKind) []*MemberDescriptor {
	var out []*MemberDescriptor
	for _, m := range c.Members {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// MethodsNamed returns the overload group for a method name.
func (c *ClassDescriptor) MethodsNamed(name string) []*MemberDescriptor {
	var out []*MemberDescriptor
	for _, m := range c.Members {
		if m.Kind == Method && m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// ParameterlessConstructor returns the public instance constructor with no
// parameters, or nil.
func (c *ClassDescriptor) ParameterlessConstructor() *MemberDescriptor {
	return c.index[keyFor(Constructor, ConstructorName, false, 0)]
}

// Suppress hides a member from the canonical view while keeping it on record.
func (c *ClassDescriptor) Suppress(m *MemberDescriptor) {
	for i, cur := range c.Members {
		if cur == m {
			c.Members = append(c.Members[:i:i], c.Members[i+1:]...)
			c.Suppressed = append(c.Suppressed, m)
			delete(c.index, keyFor(m.Kind, m.Name, m.Static, m.Arity))
			return
		}
	}
}

// DeclaredOverride returns the descriptor override shared by all platforms that
// declared one. ok is false when none declared; agree is false on disagreement.
func (c *ClassDescriptor) DeclaredOverride() (kind MarshalKind, ok, agree bool) {
	agree = true
	for _, k := range c.Overrides {
		if !ok {
			kind, ok = k, true
			continue
		}
		if k != kind {
			agree = false
		}
	}
	return kind, ok, agree
}

func (c *ClassDescriptor) addMember(m *MemberDescriptor) {
	c.Members = append(c.Members, m)
	c.index[keyFor(m.Kind, m.Name, m.Static, m.Arity)] = m
}

// ConstructorName is the canonical name given to constructors.
const ConstructorName = "new"
