package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/errors"
	"github.com/wippyai/xplat/model"
)

// DefaultDebounce is the relink delay after a file change.
const DefaultDebounce = 200 * time.Millisecond

// Load reads and validates a manifest. Validation problems are returned
// together as *errors.ConfigErrors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, err
	}
	cfg.path = path
	resolvePaths(cfg, filepath.Dir(path))
	return cfg, nil
}

// Parse decodes and validates manifest text, then applies XPLAT_*
// environment overrides. Paths are left as written.
func Parse(data string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, errors.Load("decode manifest", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	normalize(&cfg)

	cfgErrs := &errors.ConfigErrors{}
	for _, key := range md.Undecoded() {
		cfgErrs.Add(errors.InvalidConfig(key.String(), "unknown key"))
	}
	validateLink(&cfg, cfgErrs)
	validatePlatforms(&cfg, cfgErrs)
	validateNamespaces(&cfg, cfgErrs)
	validateOverrides(&cfg, cfgErrs)
	validateExclude(&cfg, cfgErrs)
	validateReport(&cfg, cfgErrs)
	validateWatch(&cfg, cfgErrs)
	if err := cfgErrs.Err(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration of an empty manifest, ignoring the
// environment.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if len(cfg.Link.Platforms) == 0 {
		for _, p := range xplat.DefaultPlatforms() {
			cfg.Link.Platforms = append(cfg.Link.Platforms, string(p))
		}
	}
	if strings.TrimSpace(cfg.Report.Format) == "" {
		cfg.Report.Format = FormatText
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
	if len(cfg.Watch.Patterns) == 0 {
		cfg.Watch.Patterns = []string{"*.toml", "*.json", "*.cbor"}
	}
}

func normalize(cfg *Config) {
	for i, p := range cfg.Link.Platforms {
		cfg.Link.Platforms[i] = strings.ToLower(strings.TrimSpace(p))
	}
	for i := range cfg.Namespaces {
		n := &cfg.Namespaces[i]
		n.Platform = strings.ToLower(strings.TrimSpace(n.Platform))
		n.Key = strings.TrimSpace(n.Key)
		n.Namespace = strings.TrimSpace(n.Namespace)
	}
	for i := range cfg.Overrides {
		o := &cfg.Overrides[i]
		o.Class = strings.TrimSpace(o.Class)
		o.Kind = strings.TrimSpace(o.Kind)
	}
	if len(cfg.Platforms) > 0 {
		platforms := make(map[string]PlatformConfig, len(cfg.Platforms))
		for name, pc := range cfg.Platforms {
			pc.Match = strings.ToLower(strings.TrimSpace(pc.Match))
			platforms[strings.ToLower(strings.TrimSpace(name))] = pc
		}
		cfg.Platforms = platforms
	}
	cfg.Report.Format = strings.ToLower(strings.TrimSpace(cfg.Report.Format))
	if cfg.Report.Format == "md" {
		cfg.Report.Format = FormatMarkdown
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
}

func resolvePaths(cfg *Config, dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i, d := range cfg.Link.Descriptors {
		cfg.Link.Descriptors[i] = abs(d)
	}
	cfg.Report.Output = abs(cfg.Report.Output)
	cfg.Report.Store = abs(cfg.Report.Store)
}

func validateLink(cfg *Config, errs *errors.ConfigErrors) {
	seen := make(map[string]bool, len(cfg.Link.Platforms))
	for i, name := range cfg.Link.Platforms {
		field := fmt.Sprintf("link.platforms[%d]", i)
		if _, ok := xplat.ParsePlatform(name); !ok {
			errs.Add(errors.InvalidConfig(field, fmt.Sprintf("invalid platform name %q", name)))
			continue
		}
		if seen[name] {
			errs.Add(errors.InvalidConfig(field, fmt.Sprintf("platform %q listed twice", name)))
		}
		seen[name] = true
	}
}

func validatePlatforms(cfg *Config, errs *errors.ConfigErrors) {
	for name, pc := range cfg.Platforms {
		field := "platforms." + name
		if _, ok := xplat.ParsePlatform(name); !ok {
			errs.Add(errors.InvalidConfig(field, "invalid platform name"))
			continue
		}
		if pc.Match != "" {
			if _, ok := xplat.ParseStrategy(pc.Match); !ok {
				errs.Add(errors.InvalidConfig(field+".match", fmt.Sprintf("must be exact or prefix, got %q", pc.Match)))
			}
		}
		for _, n := range pc.PrefixLengths {
			if n < 1 {
				errs.Add(errors.InvalidConfig(field+".prefix_lengths", fmt.Sprintf("length must be positive, got %d", n)))
			}
		}
	}
}

func validateNamespaces(cfg *Config, errs *errors.ConfigErrors) {
	for i, n := range cfg.Namespaces {
		field := fmt.Sprintf("namespaces[%d]", i)
		if _, ok := xplat.ParsePlatform(n.Platform); !ok {
			errs.Add(errors.InvalidConfig(field+".platform", fmt.Sprintf("invalid platform name %q", n.Platform)))
		}
		if n.Key == "" {
			errs.Add(errors.InvalidConfig(field+".key", "must not be empty"))
		}
		if n.Namespace == "" {
			errs.Add(errors.InvalidConfig(field+".namespace", "must not be empty"))
		}
	}
}

func validateOverrides(cfg *Config, errs *errors.ConfigErrors) {
	seen := make(map[string]string, len(cfg.Overrides))
	for i, o := range cfg.Overrides {
		field := fmt.Sprintf("overrides[%d]", i)
		if o.Class == "" {
			errs.Add(errors.InvalidConfig(field+".class", "must not be empty"))
			continue
		}
		if _, ok := model.ParseMarshalKind(o.Kind); !ok {
			errs.Add(errors.InvalidOverride(o.Class, o.Kind, "unknown marshal kind"))
			continue
		}
		if prev, dup := seen[o.Class]; dup && prev != o.Kind {
			errs.Add(errors.InvalidOverride(o.Class, o.Kind, fmt.Sprintf("class already configured as %s", prev)))
		}
		seen[o.Class] = o.Kind
	}
}

func validateExclude(cfg *Config, errs *errors.ConfigErrors) {
	for i, pattern := range cfg.Exclude.Types {
		if _, err := glob.Compile(pattern, '.'); err != nil {
			errs.Add(errors.InvalidConfig(fmt.Sprintf("exclude.types[%d]", i), err.Error()))
		}
	}
}

func validateReport(cfg *Config, errs *errors.ConfigErrors) {
	switch cfg.Report.Format {
	case FormatText, FormatMarkdown, FormatJSON:
	default:
		errs.Add(errors.InvalidConfig("report.format", fmt.Sprintf("must be one of: text, markdown, json; got %q", cfg.Report.Format)))
	}
}

func validateWatch(cfg *Config, errs *errors.ConfigErrors) {
	for i, pattern := range cfg.Watch.Patterns {
		if _, err := glob.Compile(pattern); err != nil {
			errs.Add(errors.InvalidConfig(fmt.Sprintf("watch.patterns[%d]", i), err.Error()))
		}
	}
}
