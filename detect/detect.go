package detect

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/errors"
	"github.com/wippyai/xplat/model"
)

// Options tunes which warnings are emitted.
type Options struct {
	// Expected lists platforms every class should exist on. Defaults to the
	// model's linked platforms.
	Expected []xplat.Platform
	// SkipPartialWarnings drops partial_class and partial_member warnings.
	SkipPartialWarnings bool
}

// Detect walks every class and member of m and returns the complete, ordered
// conflict list. It does not modify m; calling it twice yields equal results.
func Detect(m *model.ApiModel, opts Options) []Conflict {
	expected := opts.Expected
	if len(expected) == 0 {
		expected = m.Platforms()
	}

	var out []Conflict
	for _, issue := range m.Issues() {
		sev := Warning
		if issue.Fatal {
			sev = Error
		}
		var ps []xplat.Platform
		if issue.Platform != "" {
			ps = []xplat.Platform{issue.Platform}
		}
		out = append(out, newConflict(sev, Code(issue.Code), issue.Subject, ps, "%s", issue.Detail))
	}

	for _, c := range m.Classes() {
		out = append(out, classConflicts(m, c, expected, opts)...)
	}
	Sort(out)
	return out
}

func classConflicts(m *model.ApiModel, c *model.ClassDescriptor, expected []xplat.Platform, opts Options) []Conflict {
	var out []Conflict
	name := c.FullName()
	defined := c.Platforms()

	if _, ok, agree := c.DeclaredOverride(); ok && !agree {
		var parts []string
		for _, p := range defined {
			if k, ok := c.Overrides[p]; ok {
				parts = append(parts, fmt.Sprintf("%s=%s", p, k))
			}
		}
		out = append(out, newConflict(Error, CodeMarshalKindMismatch, name, overridePlatforms(c),
			"declared marshal kinds disagree: %s", strings.Join(parts, ", ")))
	}

	if c.ValueKindRequired {
		out = append(out, newConflict(Error, CodeValueKindRequired, name, defined,
			"class has a parameterless constructor and only get-only properties; configure value-one-way, value-two-way or reference"))
	}

	if missing := m.Missing(defined, expected); len(missing) > 0 && !opts.SkipPartialWarnings {
		out = append(out, newConflict(Warning, CodePartialClass, name, missing,
			"class is not defined on %s", xplat.JoinPlatforms(missing)))
	}

	for _, mem := range c.Members {
		out = append(out, memberConflicts(m, c, mem, defined, opts)...)
	}
	// hidden members still have to agree in shape
	hidden := opts
	hidden.SkipPartialWarnings = true
	for _, mem := range c.Suppressed {
		out = append(out, memberConflicts(m, c, mem, defined, hidden)...)
	}
	return out
}

func memberConflicts(m *model.ApiModel, c *model.ClassDescriptor, mem *model.MemberDescriptor, defined []xplat.Platform, opts Options) []Conflict {
	var out []Conflict
	subject := c.FullName() + "." + mem.DisplayName()
	present := mem.Platforms()

	if missing := m.Missing(present, defined); len(missing) > 0 && !opts.SkipPartialWarnings {
		out = append(out, newConflict(Warning, CodePartialMember, subject, missing,
			"%s is not defined on %s", mem.Kind, xplat.JoinPlatforms(missing)))
	}

	// Types must agree; nullability annotations only warn.
	if parts, ok := groupShapes(mem, present, model.MemberShape.BaseSignature); !ok {
		out = append(out, newConflict(Error, CodeShapeMismatch, subject, present,
			"%s shapes differ: %s", mem.Kind, parts))
	} else if parts, ok := groupShapes(mem, present, model.MemberShape.Signature); !ok {
		out = append(out, newConflict(Warning, CodeNullabilityMismatch, subject, present,
			"%s nullability differs: %s", mem.Kind, parts))
	}

	if mem.Kind == model.Property && c.Kind == model.ByReference {
		var with, without []xplat.Platform
		for _, p := range present {
			if mem.Shapes[p].Set {
				with = append(with, p)
			} else {
				without = append(without, p)
			}
		}
		if len(with) > 0 && len(without) > 0 {
			out = append(out, newConflict(Warning, CodePartialSetter, subject, without,
				"property is settable on %s only", xplat.JoinPlatforms(with)))
		}
	}
	return out
}

// groupShapes reports whether all present platforms render the same signature,
// and otherwise describes each distinct signature with its platforms.
func groupShapes(mem *model.MemberDescriptor, present []xplat.Platform, sigOf func(model.MemberShape, model.MemberKind) string) (string, bool) {
	bySig := make(map[string][]xplat.Platform)
	var sigs []string
	for _, p := range present {
		sig := sigOf(mem.Shapes[p], mem.Kind)
		if _, ok := bySig[sig]; !ok {
			sigs = append(sigs, sig)
		}
		bySig[sig] = append(bySig[sig], p)
	}
	if len(sigs) <= 1 {
		return "", true
	}
	parts := make([]string, len(sigs))
	for i, sig := range sigs {
		parts[i] = fmt.Sprintf("%s on %s", sig, xplat.JoinPlatforms(bySig[sig]))
	}
	return strings.Join(parts, "; "), false
}

func overridePlatforms(c *model.ClassDescriptor) []xplat.Platform {
	out := make([]xplat.Platform, 0, len(c.Overrides))
	for p := range c.Overrides {
		out = append(out, p)
	}
	return out
}

func asConfig(err error, target **errors.ConfigErrors) bool {
	return err != nil && stderrors.As(err, target)
}

func asError(err error, target **errors.Error) bool {
	return err != nil && stderrors.As(err, target)
}
