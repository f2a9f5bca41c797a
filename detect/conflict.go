package detect

import (
	"fmt"
	"sort"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/errors"
)

// Severity ranks a conflict. Error conflicts block code generation.
type Severity uint8

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "error":
		*s = Error
	case "warning":
		*s = Warning
	default:
		return fmt.Errorf("detect: unknown severity %q", b)
	}
	return nil
}

// Code identifies the kind of divergence.
type Code string

const (
	CodeMarshalKindMismatch Code = "marshal_kind_mismatch"
	CodeShapeMismatch       Code = "shape_mismatch"
	CodeNullabilityMismatch Code = "nullability_mismatch"
	CodePartialClass        Code = "partial_class"
	CodePartialMember       Code = "partial_member"
	CodePartialSetter       Code = "partial_setter"
	CodeAmbiguousMapping    Code = "ambiguous_mapping"
	CodeInvalidMapping      Code = "invalid_mapping"
	CodeInvalidOverride     Code = "invalid_override"
	CodeInvalidConfig       Code = "invalid_config"
	CodeDuplicateNativeType Code = "duplicate_native_type"
	CodeAmbiguousOverload   Code = "ambiguous_overload"
	CodeDuplicateMember     Code = "duplicate_member"
	CodeUnresolvedReference Code = "unresolved_reference"
	CodeValueKindRequired   Code = "value_kind_required"
	CodeUnusedOverride      Code = "unused_override"
)

// Conflict is one divergence found at link time. Values are never mutated
// after Detect returns them.
type Conflict struct {
	Severity    Severity         `json:"severity"`
	Code        Code             `json:"code"`
	Subject     string           `json:"subject"`
	Platforms   []xplat.Platform `json:"platforms,omitempty"`
	Description string           `json:"description"`
}

func (c Conflict) String() string {
	s := fmt.Sprintf("%s %s %s", c.Severity, c.Code, c.Subject)
	if len(c.Platforms) > 0 {
		s += " [" + xplat.JoinPlatforms(c.Platforms) + "]"
	}
	return s + ": " + c.Description
}

func newConflict(sev Severity, code Code, subject string, platforms []xplat.Platform, format string, args ...any) Conflict {
	ps := append([]xplat.Platform(nil), platforms...)
	return Conflict{
		Severity:    sev,
		Code:        code,
		Subject:     subject,
		Platforms:   xplat.SortPlatforms(ps),
		Description: fmt.Sprintf(format, args...),
	}
}

// Sort orders conflicts by severity (errors first), subject, code, then description.
func Sort(cs []Conflict) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Description != b.Description {
			return a.Description < b.Description
		}
		return xplat.JoinPlatforms(a.Platforms) < xplat.JoinPlatforms(b.Platforms)
	})
}

// HasErrors reports whether any conflict blocks generation.
func HasErrors(cs []Conflict) bool {
	for _, c := range cs {
		if c.Severity == Error {
			return true
		}
	}
	return false
}

// Count returns the number of conflicts per severity.
func Count(cs []Conflict) (errs, warnings int) {
	for _, c := range cs {
		if c.Severity == Error {
			errs++
		} else {
			warnings++
		}
	}
	return errs, warnings
}

// FromConfigErrors converts a batch of configuration errors into Error
// conflicts so they can be reported alongside structural ones.
func FromConfigErrors(err error) []Conflict {
	var batch []*errors.Error
	var cfg *errors.ConfigErrors
	var single *errors.Error
	switch {
	case asConfig(err, &cfg):
		batch = cfg.Errors
	case asError(err, &single):
		batch = []*errors.Error{single}
	default:
		return nil
	}

	out := make([]Conflict, 0, len(batch))
	for _, e := range batch {
		subject := ""
		if len(e.Path) > 0 {
			subject = e.Path[0]
		}
		var platforms []xplat.Platform
		if e.Platform != "" {
			platforms = []xplat.Platform{xplat.Platform(e.Platform)}
		}
		code := CodeInvalidConfig
		switch e.Kind {
		case errors.KindAmbiguousMapping:
			code = CodeAmbiguousMapping
		case errors.KindInvalidMapping:
			code = CodeInvalidMapping
		case errors.KindInvalidOverride:
			code = CodeInvalidOverride
		}
		out = append(out, newConflict(Error, code, subject, platforms, "%s", e.Detail))
	}
	Sort(out)
	return out
}
