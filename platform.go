package xplat

import (
	"sort"
	"strings"
)

// Platform identifies a native platform taking part in a link pass.
type Platform string

const (
	Android Platform = "android"
	IOS     Platform = "ios"
	Windows Platform = "windows"
	Wasm    Platform = "wasm"
)

// MatchStrategy selects how native identities are matched against namespace keys.
type MatchStrategy string

const (
	// MatchExact compares the native package or namespace string as a whole.
	MatchExact MatchStrategy = "exact"
	// MatchPrefix compares the leading characters of the native type name.
	MatchPrefix MatchStrategy = "prefix"
)

// DefaultPlatforms returns the platforms linked when nothing else is configured.
func DefaultPlatforms() []Platform {
	return []Platform{Android, IOS, Windows}
}

// DefaultStrategy returns the built-in match strategy for p.
// Objective-C has no namespaces, so iOS types are matched by name prefix.
func DefaultStrategy(p Platform) MatchStrategy {
	if p == IOS {
		return MatchPrefix
	}
	return MatchExact
}

// ParsePlatform normalizes a platform name.
func ParsePlatform(s string) (Platform, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return "", false
		}
	}
	return Platform(s), true
}

// ParseStrategy parses "exact" or "prefix".
func ParseStrategy(s string) (MatchStrategy, bool) {
	switch MatchStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case MatchExact:
		return MatchExact, true
	case MatchPrefix:
		return MatchPrefix, true
	}
	return "", false
}

// SortPlatforms sorts platforms by name in place and returns the slice.
func SortPlatforms(ps []Platform) []Platform {
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}

// JoinPlatforms renders platforms as "android, ios".
func JoinPlatforms(ps []Platform) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}
