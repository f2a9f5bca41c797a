package model

import (
	"sort"
	"sync"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/errors"
)

// IssueCode identifies a descriptor problem found while building.
type IssueCode string

const (
	IssueDuplicateNativeType IssueCode = "duplicate_native_type"
	IssueAmbiguousOverload   IssueCode = "ambiguous_overload"
	IssueDuplicateMember     IssueCode = "duplicate_member"
	IssueUnresolvedReference IssueCode = "unresolved_reference"
)

// BuildIssue is a descriptor problem the model cannot represent.
// Fatal issues surface as Error conflicts, the rest as Warnings.
type BuildIssue struct {
	Code     IssueCode
	Platform xplat.Platform
	Subject  string
	Detail   string
	Fatal    bool
}

// ApiModel is the canonical cross-platform model produced by one link pass.
// It is owned by the pass and threaded through each stage; Freeze seals it.
type ApiModel struct {
	Root      *Namespace
	classes   map[string]*ClassDescriptor
	platforms []xplat.Platform
	issues    []BuildIssue
	mu        sync.RWMutex
	frozen    bool
}

func newModel(platforms []xplat.Platform) *ApiModel {
	return &ApiModel{
		Root:      NewNamespace(),
		classes:   make(map[string]*ClassDescriptor),
		platforms: append([]xplat.Platform(nil), platforms...),
	}
}

// Platforms returns the linked platforms in link order.
func (m *ApiModel) Platforms() []xplat.Platform {
	return append([]xplat.Platform(nil), m.platforms...)
}

// Class returns a class by full canonical name, or nil.
func (m *ApiModel) Class(fullName string) *ClassDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.classes[fullName]
}

// Classes returns every class sorted by full name.
func (m *ApiModel) Classes() []*ClassDescriptor {
	m.mu.RLock()
	out := make([]*ClassDescriptor, 0, len(m.classes))
	for _, c := range m.classes {
		out = append(out, c)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out
}

// Len returns the number of classes.
func (m *ApiModel) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.classes)
}

// Issues returns the build issues in the order they were found.
func (m *ApiModel) Issues() []BuildIssue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]BuildIssue(nil), m.issues...)
}

// Partial reports whether c is missing on any linked platform.
func (m *ApiModel) Partial(c *ClassDescriptor) bool {
	return len(m.Missing(c.Platforms(), m.platforms)) > 0
}

// Missing returns the platforms in all that are not in have, in link order.
func (m *ApiModel) Missing(have, all []xplat.Platform) []xplat.Platform {
	set := make(map[xplat.Platform]bool, len(have))
	for _, p := range have {
		set[p] = true
	}
	var out []xplat.Platform
	for _, p := range all {
		if !set[p] {
			out = append(out, p)
		}
	}
	return out
}

// Freeze seals the model. Later mutations fail with a frozen error.
func (m *ApiModel) Freeze() {
	m.mu.Lock()
	m.frozen = true
	m.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (m *ApiModel) Frozen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frozen
}

func (m *ApiModel) checkMutable(what string) error {
	if m.frozen {
		return errors.New(errors.PhaseClassify, errors.KindFrozen).
			Detail("model is frozen: cannot %s", what).
			Build()
	}
	return nil
}

// SetKind assigns the marshal kind of a class.
func (m *ApiModel) SetKind(c *ClassDescriptor, kind MarshalKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("set marshal kind of " + c.FullName()); err != nil {
		return err
	}
	c.Kind = kind
	return nil
}

// MarkValueKindRequired flags a class whose value kind must be configured.
func (m *ApiModel) MarkValueKindRequired(c *ClassDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("flag " + c.FullName()); err != nil {
		return err
	}
	c.ValueKindRequired = true
	return nil
}

// Suppress hides a member of c from the canonical view.
func (m *ApiModel) Suppress(c *ClassDescriptor, member *MemberDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("suppress " + c.FullName() + "." + member.Name); err != nil {
		return err
	}
	c.Suppress(member)
	return nil
}

// HideSetters clears setter availability on every shape of a property.
func (m *ApiModel) HideSetters(c *ClassDescriptor, member *MemberDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("hide setter of " + c.FullName() + "." + member.Name); err != nil {
		return err
	}
	for p, s := range member.Shapes {
		s.Set = false
		member.Shapes[p] = s
	}
	return nil
}

// MarkByReferenceMember flags a property holding a by-reference class.
func (m *ApiModel) MarkByReferenceMember(c *ClassDescriptor, member *MemberDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("flag " + c.FullName() + "." + member.Name); err != nil {
		return err
	}
	member.ByReferenceMember = true
	return nil
}

// AddIssue records a build issue.
func (m *ApiModel) AddIssue(issue BuildIssue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("add issue"); err != nil {
		return err
	}
	m.issues = append(m.issues, issue)
	return nil
}

func (m *ApiModel) addClass(namespace, name string) (*ClassDescriptor, bool) {
	c, created := m.Root.Ensure(namespace).getOrAddClass(name)
	if created {
		m.classes[c.FullName()] = c
	}
	return c, created
}
