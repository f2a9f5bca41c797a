package linker

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/descriptor"
	"github.com/wippyai/xplat/errors"
)

// DefaultPrefixLengths are the accepted Objective-C prefix lengths.
var DefaultPrefixLengths = []int{3, 4}

// NamespaceMapping assigns a canonical namespace to a native key on one platform.
// Key is a package name, a native namespace, or an Objective-C class prefix.
type NamespaceMapping struct {
	Platform  xplat.Platform
	Key       string
	Namespace string
}

// MappingOptions configures mapping validation and matching.
type MappingOptions struct {
	// Strategies overrides xplat.DefaultStrategy per platform.
	Strategies map[xplat.Platform]xplat.MatchStrategy
	// PrefixLengths lists the allowed prefix key lengths. Defaults to 3 and 4.
	PrefixLengths []int
}

type prefixEntry struct {
	key       string
	namespace string
}

// MappingSet is a validated, immutable set of namespace mappings.
// Safe for concurrent use.
type MappingSet struct {
	exact      map[xplat.Platform]map[string]string
	prefixes   map[xplat.Platform][]prefixEntry
	strategies map[xplat.Platform]xplat.MatchStrategy
	mappings   []NamespaceMapping
}

// NewMappingSet validates every mapping and builds the lookup tables.
// All problems are reported together as *errors.ConfigErrors.
func NewMappingSet(mappings []NamespaceMapping, opts MappingOptions) (*MappingSet, error) {
	lengths := opts.PrefixLengths
	if len(lengths) == 0 {
		lengths = DefaultPrefixLengths
	}
	allowed := make(map[int]bool, len(lengths))
	for _, n := range lengths {
		allowed[n] = true
	}

	s := &MappingSet{
		exact:      make(map[xplat.Platform]map[string]string),
		prefixes:   make(map[xplat.Platform][]prefixEntry),
		strategies: make(map[xplat.Platform]xplat.MatchStrategy),
	}
	for p, st := range opts.Strategies {
		s.strategies[p] = st
	}

	cfgErrs := &errors.ConfigErrors{}
	type target struct {
		platform xplat.Platform
		key      string
	}
	targets := make(map[target][]string)
	var order []target

	for _, m := range mappings {
		key := strings.TrimSpace(m.Key)
		ns := strings.TrimSpace(m.Namespace)
		p := m.Platform
		switch {
		case p == "":
			cfgErrs.Add(errors.InvalidMapping("", key, "platform is required"))
			continue
		case key == "":
			cfgErrs.Add(errors.InvalidMapping(string(p), "<empty>", "native key is required"))
			continue
		case ns == "":
			cfgErrs.Add(errors.InvalidMapping(string(p), key, "canonical namespace is required"))
			continue
		case !validNamespace(ns):
			cfgErrs.Add(errors.InvalidMapping(string(p), key, fmt.Sprintf("invalid canonical namespace %q", ns)))
			continue
		}
		if s.Strategy(p) == xplat.MatchPrefix && !allowed[utf8.RuneCountInString(key)] {
			cfgErrs.Add(errors.InvalidMapping(string(p), key,
				fmt.Sprintf("prefix length %d not in %v", utf8.RuneCountInString(key), lengths)))
			continue
		}

		t := target{platform: p, key: key}
		prev, seen := targets[t]
		if !seen {
			order = append(order, t)
		}
		if !contains(prev, ns) {
			targets[t] = append(prev, ns)
		}
		s.mappings = append(s.mappings, NamespaceMapping{Platform: p, Key: key, Namespace: ns})
	}

	for _, t := range order {
		nss := targets[t]
		if len(nss) > 1 {
			cfgErrs.Add(errors.AmbiguousMapping(string(t.platform), t.key, nss))
			continue
		}
		if s.Strategy(t.platform) == xplat.MatchPrefix {
			s.prefixes[t.platform] = append(s.prefixes[t.platform], prefixEntry{key: t.key, namespace: nss[0]})
			continue
		}
		if s.exact[t.platform] == nil {
			s.exact[t.platform] = make(map[string]string)
		}
		s.exact[t.platform][t.key] = nss[0]
	}

	if err := cfgErrs.Err(); err != nil {
		return nil, err
	}

	// longest prefix first, then lexical for stable output
	for _, entries := range s.prefixes {
		sort.Slice(entries, func(i, j int) bool {
			if len(entries[i].key) != len(entries[j].key) {
				return len(entries[i].key) > len(entries[j].key)
			}
			return entries[i].key < entries[j].key
		})
	}

	Logger().Debug("namespace mappings validated")
	return s, nil
}

// Strategy returns the match strategy used for platform p.
func (s *MappingSet) Strategy(p xplat.Platform) xplat.MatchStrategy {
	if st, ok := s.strategies[p]; ok {
		return st
	}
	return xplat.DefaultStrategy(p)
}

// Mappings returns the accepted mappings in declaration order.
func (s *MappingSet) Mappings() []NamespaceMapping {
	return append([]NamespaceMapping(nil), s.mappings...)
}

// Resolve maps a native identity to its canonical namespace.
// For exact platforms identity is the package or namespace string; for prefix
// platforms it is the native type name and the longest matching prefix wins.
func (s *MappingSet) Resolve(p xplat.Platform, identity string) (string, bool) {
	ns, _, ok := s.resolve(p, identity)
	return ns, ok
}

func (s *MappingSet) resolve(p xplat.Platform, identity string) (ns, key string, ok bool) {
	if s.Strategy(p) == xplat.MatchPrefix {
		for _, e := range s.prefixes[p] {
			if strings.HasPrefix(identity, e.key) {
				return e.namespace, e.key, true
			}
		}
		return "", "", false
	}
	ns, ok = s.exact[p][identity]
	return ns, identity, ok
}

// ResolveType assigns the canonical namespace and class name to a native type.
// On prefix platforms the matched prefix is stripped from the class name.
func (s *MappingSet) ResolveType(p xplat.Platform, td descriptor.TypeDecl) (namespace, name string, ok bool) {
	if s.Strategy(p) == xplat.MatchPrefix {
		simple := td.SimpleName()
		ns, key, ok := s.resolve(p, simple)
		if !ok {
			return "", "", false
		}
		name = td.Name
		if name == "" {
			name = strings.TrimPrefix(simple, key)
			if name == "" {
				name = simple
			}
		}
		return ns, name, true
	}

	identity := td.NativeNamespace
	if identity == "" {
		identity = nativePackage(td.NativeName)
	}
	namespace, _, ok = s.resolve(p, identity)
	if !ok {
		return "", "", false
	}
	name = td.Name
	if name == "" {
		name = td.SimpleName()
	}
	return namespace, name, true
}

// nativePackage returns everything before the last '.' or "::" separator.
func nativePackage(nativeName string) string {
	if i := strings.LastIndex(nativeName, "::"); i >= 0 {
		return strings.ReplaceAll(nativeName[:i], "::", ".")
	}
	if i := strings.LastIndexByte(nativeName, '.'); i >= 0 {
		return nativeName[:i]
	}
	return ""
}

func validNamespace(ns string) bool {
	for _, seg := range strings.Split(ns, ".") {
		if seg == "" {
			return false
		}
		for i, r := range seg {
			letter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
			if !letter && (i == 0 || r < '0' || r > '9') {
				return false
			}
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
