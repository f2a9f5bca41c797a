// Package config loads the TOML plugin manifest that drives a link pass.
package config

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/linker"
	"github.com/wippyai/xplat/model"
)

// Report formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Config is a plugin manifest.
type Config struct {
	Platforms  map[string]PlatformConfig `toml:"platforms"`
	Link       LinkConfig                `toml:"link"`
	Exclude    ExcludeConfig             `toml:"exclude"`
	Report     ReportConfig              `toml:"report"`
	Log        LogConfig                 `toml:"log"`
	Namespaces []NamespaceEntry          `toml:"namespaces"`
	Overrides  []OverrideEntry           `toml:"overrides"`
	Watch      WatchConfig               `toml:"watch"`

	// path is the manifest file; relative paths resolve against its directory.
	path string
}

// LinkConfig selects what is linked.
type LinkConfig struct {
	// Platforms fixes the link order. Defaults to android, ios, windows.
	Platforms []string `toml:"platforms"`
	// Descriptors lists descriptor files: .json, .cbor, or .wit.json.
	Descriptors         []string `toml:"descriptors"`
	InferValueKinds     bool     `toml:"infer_value_kinds"`
	SkipPartialWarnings bool     `toml:"skip_partial_warnings"`
}

// PlatformConfig overrides matching for one platform.
type PlatformConfig struct {
	Match         string `toml:"match"`
	PrefixLengths []int  `toml:"prefix_lengths"`
}

// NamespaceEntry is one [[namespaces]] mapping.
type NamespaceEntry struct {
	Platform  string `toml:"platform"`
	Key       string `toml:"key"`
	Namespace string `toml:"namespace"`
}

// OverrideEntry is one [[overrides]] marshal kind assignment.
type OverrideEntry struct {
	Class string `toml:"class"`
	Kind  string `toml:"kind"`
}

// ExcludeConfig holds native type name globs left out of the model.
type ExcludeConfig struct {
	Types []string `toml:"types"`
}

// ReportConfig controls conflict report output.
type ReportConfig struct {
	Format string `toml:"format"`
	// Output is a file path; empty writes to stdout.
	Output string `toml:"output"`
	// Store is an SQLite database recording link runs. Empty disables history.
	Store string `toml:"store"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// WatchConfig configures relinking on file changes.
type WatchConfig struct {
	Debounce time.Duration `toml:"debounce"`
	// Patterns are globs over base names that trigger a relink.
	Patterns []string `toml:"patterns"`
}

// Path returns the manifest file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// LinkPlatforms returns the configured link order.
func (c *Config) LinkPlatforms() []xplat.Platform {
	out := make([]xplat.Platform, 0, len(c.Link.Platforms))
	for _, name := range c.Link.Platforms {
		if p, ok := xplat.ParsePlatform(name); ok {
			out = append(out, p)
		}
	}
	return out
}

// Mappings returns the namespace mappings in manifest order.
func (c *Config) Mappings() []linker.NamespaceMapping {
	out := make([]linker.NamespaceMapping, 0, len(c.Namespaces))
	for _, n := range c.Namespaces {
		p, _ := xplat.ParsePlatform(n.Platform)
		out = append(out, linker.NamespaceMapping{Platform: p, Key: n.Key, Namespace: n.Namespace})
	}
	return out
}

// MappingOptions returns per-platform match strategies and prefix lengths.
// The prefix lengths of every prefix platform are merged.
func (c *Config) MappingOptions() linker.MappingOptions {
	opts := linker.MappingOptions{Strategies: make(map[xplat.Platform]xplat.MatchStrategy)}
	seen := make(map[int]bool)
	for name, pc := range c.Platforms {
		p, ok := xplat.ParsePlatform(name)
		if !ok {
			continue
		}
		if st, ok := xplat.ParseStrategy(pc.Match); ok {
			opts.Strategies[p] = st
		}
		for _, n := range pc.PrefixLengths {
			if !seen[n] {
				seen[n] = true
				opts.PrefixLengths = append(opts.PrefixLengths, n)
			}
		}
	}
	return opts
}

// MarshalOverrides returns configured marshal kinds keyed by canonical class name.
func (c *Config) MarshalOverrides() map[string]model.MarshalKind {
	out := make(map[string]model.MarshalKind, len(c.Overrides))
	for _, o := range c.Overrides {
		if k, ok := model.ParseMarshalKind(o.Kind); ok {
			out[o.Class] = k
		}
	}
	return out
}

// LinkOptions returns the options for a link pass.
func (c *Config) LinkOptions() linker.Options {
	return linker.Options{
		Overrides:           c.MarshalOverrides(),
		Platforms:           c.LinkPlatforms(),
		Exclude:             append([]string(nil), c.Exclude.Types...),
		InferValueKinds:     c.Link.InferValueKinds,
		SkipPartialWarnings: c.Link.SkipPartialWarnings,
	}
}

// Linker validates the mappings and creates a linker for this manifest.
func (c *Config) Linker() (*linker.Linker, error) {
	set, err := linker.NewMappingSet(c.Mappings(), c.MappingOptions())
	if err != nil {
		return nil, err
	}
	return linker.New(set, c.LinkOptions()), nil
}

// ZapConfig builds the logger configuration from the [log] table.
func (c *Config) ZapConfig() zap.Config {
	cfg := zap.NewProductionConfig()
	if c.Log.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg
}
