package linker

import (
	"strings"

	"github.com/wippyai/xplat"
)

// LinkError provides context when a link pass stops before producing a result.
type LinkError struct {
	Cause    error
	Stage    string
	Platform xplat.Platform
	Reason   string
}

func (e *LinkError) Error() string {
	var b strings.Builder
	b.WriteString("link failed")

	if e.Stage != "" {
		b.WriteString(" at ")
		b.WriteString(e.Stage)
	}

	if e.Platform != "" {
		b.WriteString(" (")
		b.WriteString(string(e.Platform))
		b.WriteByte(')')
	}

	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *LinkError) Unwrap() error {
	return e.Cause
}

// linkError creates a LinkError with the given parameters
func linkError(stage string, p xplat.Platform, reason string, cause error) *LinkError {
	return &LinkError{
		Stage:    stage,
		Platform: p,
		Reason:   reason,
		Cause:    cause,
	}
}
