// Package report renders link results and keeps a history of link runs.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/detect"
	"github.com/wippyai/xplat/linker"
	"github.com/wippyai/xplat/model"
)

// Report is the serializable summary of one link pass.
type Report struct {
	Generated   time.Time         `json:"generated"`
	Kinds       map[string]int    `json:"kinds,omitempty"`
	Manifest    string            `json:"manifest,omitempty"`
	Platforms   []xplat.Platform  `json:"platforms"`
	Conflicts   []detect.Conflict `json:"conflicts"`
	Excluded    []linker.TypeRef  `json:"excluded,omitempty"`
	Unmapped    []linker.TypeRef  `json:"unmapped,omitempty"`
	Classes     int               `json:"classes"`
	Errors      int               `json:"errors"`
	Warnings    int               `json:"warnings"`
	Generatable bool              `json:"generatable"`
}

// FromResult summarizes a link result. res may carry only conflicts when the
// pass stopped on configuration errors.
func FromResult(res *linker.Result) Report {
	r := Report{
		Generated:   time.Now().UTC(),
		Conflicts:   append([]detect.Conflict{}, res.Conflicts...),
		Excluded:    res.Excluded,
		Unmapped:    res.Unmapped,
		Generatable: res.Generatable(),
	}
	if res.Model != nil {
		r.Platforms = res.Model.Platforms()
		r.Classes = res.Model.Len()
	}
	if len(res.Kinds) > 0 {
		r.Kinds = make(map[string]int, len(res.Kinds))
		for k, n := range res.Kinds {
			r.Kinds[k.String()] = n
		}
	}
	r.Errors, r.Warnings = detect.Count(r.Conflicts)
	return r
}

// FromConfigError builds a failed report for a pass aborted by configuration
// errors.
func FromConfigError(err error) Report {
	r := Report{
		Generated: time.Now().UTC(),
		Conflicts: detect.FromConfigErrors(err),
	}
	r.Errors, r.Warnings = detect.Count(r.Conflicts)
	return r
}

// Summary renders the one-line outcome, e.g. "12 classes, 1 error, 3 warnings".
func (r Report) Summary() string {
	return fmt.Sprintf("%d %s, %d %s, %d %s",
		r.Classes, plural(r.Classes, "class", "classes"),
		r.Errors, plural(r.Errors, "error", "errors"),
		r.Warnings, plural(r.Warnings, "warning", "warnings"))
}

// Write renders r in the named format: text, markdown, or json.
func Write(w io.Writer, format string, r Report, opts TextOptions) error {
	switch format {
	case "", "text":
		return WriteText(w, r, opts)
	case "markdown", "md":
		return WriteMarkdown(w, r)
	case "json":
		return WriteJSON(w, r)
	}
	return fmt.Errorf("report: unknown format %q", format)
}

// TextOptions configures plain text output.
type TextOptions struct {
	// Color styles severities for a terminal.
	Color bool
	// Verbose lists excluded and unmapped types.
	Verbose bool
}

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// WriteText renders a human-readable report.
func WriteText(w io.Writer, r Report, opts TextOptions) error {
	style := func(s lipgloss.Style, text string) string {
		if !opts.Color {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "linked %s: %s\n", platformList(r.Platforms), r.Summary())
	if len(r.Kinds) > 0 {
		fmt.Fprintf(&b, "  kinds: %s\n", kindList(r.Kinds))
	}
	for _, c := range r.Conflicts {
		sev := style(warningStyle, "warning")
		if c.Severity == detect.Error {
			sev = style(errorStyle, "error  ")
		}
		fmt.Fprintf(&b, "%s %s %s", sev, c.Code, c.Subject)
		if len(c.Platforms) > 0 {
			fmt.Fprintf(&b, " [%s]", xplat.JoinPlatforms(c.Platforms))
		}
		fmt.Fprintf(&b, "\n        %s\n", c.Description)
	}
	if opts.Verbose {
		for _, t := range r.Excluded {
			b.WriteString(style(dimStyle, fmt.Sprintf("excluded %s %s (%s)", t.Platform, t.NativeName, t.Rule)))
			b.WriteByte('\n')
		}
		for _, t := range r.Unmapped {
			b.WriteString(style(dimStyle, fmt.Sprintf("unmapped %s %s", t.Platform, t.NativeName)))
			b.WriteByte('\n')
		}
	}
	if r.Generatable {
		b.WriteString(style(okStyle, "ready for generation"))
	} else {
		b.WriteString(style(errorStyle, "generation blocked"))
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteMarkdown renders the report as a markdown document.
func WriteMarkdown(w io.Writer, r Report) error {
	var b strings.Builder
	b.WriteString("# Link report\n\n")
	fmt.Fprintf(&b, "- Platforms: %s\n", platformList(r.Platforms))
	fmt.Fprintf(&b, "- Result: %s\n", r.Summary())
	if len(r.Kinds) > 0 {
		fmt.Fprintf(&b, "- Marshal kinds: %s\n", kindList(r.Kinds))
	}
	status := "ready"
	if !r.Generatable {
		status = "blocked"
	}
	fmt.Fprintf(&b, "- Generation: %s\n", status)

	if len(r.Conflicts) > 0 {
		b.WriteString("\n## Conflicts\n\n")
		b.WriteString("| Severity | Code | Subject | Platforms | Description |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, c := range r.Conflicts {
			fmt.Fprintf(&b, "| %s | `%s` | `%s` | %s | %s |\n",
				c.Severity, c.Code, c.Subject, xplat.JoinPlatforms(c.Platforms), escapeCell(c.Description))
		}
	}
	if len(r.Excluded)+len(r.Unmapped) > 0 {
		b.WriteString("\n## Dropped types\n\n")
		for _, t := range r.Excluded {
			fmt.Fprintf(&b, "- `%s` on %s, excluded by `%s`\n", t.NativeName, t.Platform, t.Rule)
		}
		for _, t := range r.Unmapped {
			fmt.Fprintf(&b, "- `%s` on %s, no namespace mapping\n", t.NativeName, t.Platform)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON renders the report as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ReadJSON parses a report written by WriteJSON.
func ReadJSON(rd io.Reader) (Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return Report{}, fmt.Errorf("report: unmarshal report: %w", err)
	}
	return r, nil
}

func platformList(ps []xplat.Platform) string {
	if len(ps) == 0 {
		return "no platforms"
	}
	return xplat.JoinPlatforms(ps)
}

func kindList(kinds map[string]int) string {
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return kindRank(names[i]) < kindRank(names[j]) })
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s %d", k, kinds[k])
	}
	return strings.Join(parts, ", ")
}

func kindRank(name string) int {
	for _, k := range []model.MarshalKind{model.ByReference, model.ByValueOneWay, model.ByValueTwoWay} {
		if k.String() == name {
			return int(k)
		}
	}
	return 1 << 8
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
