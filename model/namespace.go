package model

import (
	"sort"
	"strings"
	"sync"
)

// Namespace represents a hierarchical canonical namespace node.
// Paths are dot-separated: "Contoso.Widgets".
type Namespace struct {
	classes  map[string]*ClassDescriptor
	children map[string]*Namespace
	parent   *Namespace
	name     string
	mu       sync.RWMutex
}

// NewNamespace creates a root namespace
func NewNamespace() *Namespace {
	return &Namespace{
		classes:  make(map[string]*ClassDescriptor),
		children: make(map[string]*Namespace),
	}
}

// Name returns the namespace segment name
func (ns *Namespace) Name() string {
	return ns.name
}

// FullPath returns the full namespace path like "Contoso.Widgets"
func (ns *Namespace) FullPath() string {
	if ns.parent == nil {
		return ns.name
	}
	parentPath := ns.parent.FullPath()
	if parentPath == "" {
		return ns.name
	}
	return parentPath + "." + ns.name
}

// Child returns or creates a child namespace with the given segment name.
func (ns *Namespace) Child(name string) *Namespace {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if child, ok := ns.children[name]; ok {
		return child
	}
	child := &Namespace{
		name:     name,
		classes:  make(map[string]*ClassDescriptor),
		children: make(map[string]*Namespace),
		parent:   ns,
	}
	ns.children[name] = child
	return child
}

// Ensure returns or creates the namespace at a dotted path.
func (ns *Namespace) Ensure(path string) *Namespace {
	current := ns
	for _, seg := range splitPath(path) {
		current = current.Child(seg)
	}
	return current
}

// Lookup finds the namespace at a dotted path, or nil.
func (ns *Namespace) Lookup(path string) *Namespace {
	current := ns
	for _, seg := range splitPath(path) {
		current.mu.RLock()
		next, ok := current.children[seg]
		current.mu.RUnlock()
		if !ok {
			return nil
		}
		current = next
	}
	return current
}

// GetClass returns a class by simple name, or nil if not found
func (ns *Namespace) GetClass(name string) *ClassDescriptor {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.classes[name]
}

func (ns *Namespace) getOrAddClass(name string) (*ClassDescriptor, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if c, ok := ns.classes[name]; ok {
		return c, false
	}
	c := newClass(ns.FullPath(), name)
	ns.classes[name] = c
	return c, true
}

// Classes returns the classes directly in this namespace, sorted by name
func (ns *Namespace) Classes() []*ClassDescriptor {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	out := make([]*ClassDescriptor, 0, len(ns.classes))
	for _, c := range ns.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AllChildren returns all child namespaces
func (ns *Namespace) AllChildren() map[string]*Namespace {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	result := make(map[string]*Namespace, len(ns.children))
	for k, v := range ns.children {
		result[k] = v
	}
	return result
}

// Walk visits this namespace and its descendants in path order.
func (ns *Namespace) Walk(fn func(*Namespace) bool) bool {
	if !fn(ns) {
		return false
	}
	children := ns.AllChildren()
	names := make([]string, 0, len(children))
	for n := range children {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if !children[n].Walk(fn) {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	var segs []string
	for _, part := range strings.Split(path, ".") {
		if part != "" {
			segs = append(segs, part)
		}
	}
	return segs
}
