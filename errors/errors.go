package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseConfig   Phase = "config"   // manifest and mapping validation
	PhaseResolve  Phase = "resolve"  // namespace resolution
	PhaseBuild    Phase = "build"    // canonical model building
	PhaseClassify Phase = "classify" // marshal kind classification
	PhaseDetect   Phase = "detect"   // conflict detection
	PhaseBridge   Phase = "bridge"   // runtime bridge calls
	PhaseLoad     Phase = "load"     // descriptor loading
)

// Kind categorizes the error
type Kind string

const (
	KindAmbiguousMapping  Kind = "ambiguous_mapping"
	KindInvalidMapping    Kind = "invalid_mapping"
	KindInvalidOverride   Kind = "invalid_override"
	KindInvalidConfig     Kind = "invalid_config"
	KindProtocolViolation Kind = "protocol_violation"
	KindInvalidHandle     Kind = "invalid_handle"
	KindNativeFailure     Kind = "native_failure"
	KindNotFound          Kind = "not_found"
	KindInvalidData       Kind = "invalid_data"
	KindUnsupported       Kind = "unsupported"
	KindFrozen            Kind = "frozen"
	KindClosed            Kind = "closed"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Platform string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Platform != "" {
		b.WriteString(" (")
		b.WriteString(e.Platform)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the identity path (namespace, class, member)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Platform sets the platform involved
func (b *Builder) Platform(p string) *Builder {
	b.err.Platform = p
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// AmbiguousMapping creates an error for a native key mapped to more than one namespace
func AmbiguousMapping(platform, key string, namespaces []string) *Error {
	return &Error{
		Phase:    PhaseConfig,
		Kind:     KindAmbiguousMapping,
		Platform: platform,
		Path:     []string{key},
		Detail:   fmt.Sprintf("native key maps to %s", strings.Join(namespaces, " and ")),
		Value:    key,
	}
}

// InvalidMapping creates an error for a malformed namespace mapping
func InvalidMapping(platform, key, detail string) *Error {
	return &Error{
		Phase:    PhaseConfig,
		Kind:     KindInvalidMapping,
		Platform: platform,
		Path:     []string{key},
		Detail:   detail,
	}
}

// InvalidOverride creates an error for a marshal kind override that cannot apply
func InvalidOverride(class, kind, detail string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidOverride,
		Path:   []string{class},
		Detail: fmt.Sprintf("cannot marshal as %s: %s", kind, detail),
		Value:  kind,
	}
}

// InvalidConfig creates a generic configuration error
func InvalidConfig(field, detail string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidConfig,
		Path:   []string{field},
		Detail: detail,
	}
}

// ProtocolViolation creates a bridge lifetime error (release below zero, etc.)
func ProtocolViolation(handle uint32, detail string) *Error {
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindProtocolViolation,
		Detail: fmt.Sprintf("handle %d: %s", handle, detail),
		Value:  handle,
	}
}

// InvalidHandle creates an error for a call on a released or unknown handle
func InvalidHandle(handle uint32, member string) *Error {
	e := &Error{
		Phase:  PhaseBridge,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("handle %d is not live", handle),
		Value:  handle,
	}
	if member != "" {
		e.Path = []string{member}
	}
	return e
}

// NativeFailure creates an error carrying only the message text of a native exception
func NativeFailure(member, message string) *Error {
	e := &Error{
		Phase:  PhaseBridge,
		Kind:   KindNativeFailure,
		Detail: message,
	}
	if member != "" {
		e.Path = []string{member}
	}
	return e
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Load creates a descriptor loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// IsProtocolViolation reports whether err is a bridge lifetime error rather
// than an application-level failure.
func IsProtocolViolation(err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Kind == KindProtocolViolation || e.Kind == KindInvalidHandle
}

// IsNativeFailure reports whether err carries a native exception.
func IsNativeFailure(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == KindNativeFailure
}

// ConfigErrors is returned when a link pass is rejected before model building.
// It holds every configuration problem found, not just the first one.
type ConfigErrors struct {
	Errors []*Error
}

// Add appends an error to the batch.
func (c *ConfigErrors) Add(err *Error) {
	c.Errors = append(c.Errors, err)
}

// Len returns the number of collected errors.
func (c *ConfigErrors) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Errors)
}

// Err returns c as an error, or nil when nothing was collected.
func (c *ConfigErrors) Err() error {
	if c.Len() == 0 {
		return nil
	}
	return c
}

func (c *ConfigErrors) Error() string {
	if len(c.Errors) == 0 {
		return "[config] invalid_config: no errors specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d configuration error(s):\n", len(c.Errors))

	// Group by platform for cleaner output
	byPlatform := make(map[string][]*Error)
	var order []string
	for _, e := range c.Errors {
		key := e.Platform
		if key == "" {
			key = "manifest"
		}
		if _, exists := byPlatform[key]; !exists {
			order = append(order, key)
		}
		byPlatform[key] = append(byPlatform[key], e)
	}
	sort.Strings(order)

	for _, p := range order {
		b.WriteString("\n  ")
		b.WriteString(p)
		b.WriteString(":\n")
		for _, e := range byPlatform[p] {
			b.WriteString("    - ")
			b.WriteString(string(e.Kind))
			if len(e.Path) > 0 {
				b.WriteByte(' ')
				b.WriteString(strings.Join(e.Path, "."))
			}
			if e.Detail != "" {
				b.WriteString(": ")
				b.WriteString(e.Detail)
			}
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type or any collected error
func (c *ConfigErrors) Is(target error) bool {
	if _, ok := target.(*ConfigErrors); ok {
		return true
	}
	for _, e := range c.Errors {
		if e.Is(target) {
			return true
		}
	}
	return false
}
