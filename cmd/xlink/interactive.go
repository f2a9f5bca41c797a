package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/detect"
	"github.com/wippyai/xplat/report"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	codeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD866"))

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const pageSize = 15

type browserState int

const (
	stateList browserState = iota
	stateFilter
	stateDetail
)

type browserModel struct {
	rep      report.Report
	filter   textinput.Model
	visible  []detect.Conflict
	selected int
	offset   int
	state    browserState
	errsOnly bool
}

func newBrowserModel(rep report.Report) *browserModel {
	ti := textinput.New()
	ti.Placeholder = "subject or code"
	ti.Prompt = "filter: "
	ti.Width = 40

	m := &browserModel{rep: rep, filter: ti, state: stateList}
	m.apply()
	return m
}

func (m *browserModel) Init() tea.Cmd {
	return nil
}

// apply recomputes the visible conflicts from the filter text.
func (m *browserModel) apply() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	for _, c := range m.rep.Conflicts {
		if m.errsOnly && c.Severity != detect.Error {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(c.Subject), q) && !strings.Contains(string(c.Code), q) {
			continue
		}
		m.visible = append(m.visible, c)
	}
	if m.selected >= len(m.visible) {
		m.selected = max(0, len(m.visible)-1)
	}
	m.scroll()
}

func (m *browserModel) scroll() {
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+pageSize {
		m.offset = m.selected - pageSize + 1
	}
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.state == stateFilter {
		switch key.String() {
		case "enter", "esc":
			m.filter.Blur()
			m.state = stateList
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.apply()
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.state == stateList && m.selected > 0 {
			m.selected--
			m.scroll()
		}

	case "down", "j":
		if m.state == stateList && m.selected < len(m.visible)-1 {
			m.selected++
			m.scroll()
		}

	case "/":
		if m.state == stateList {
			m.state = stateFilter
			return m, m.filter.Focus()
		}

	case "e":
		if m.state == stateList {
			m.errsOnly = !m.errsOnly
			m.apply()
		}

	case "enter":
		switch m.state {
		case stateList:
			if len(m.visible) > 0 {
				m.state = stateDetail
			}
		case stateDetail:
			m.state = stateList
		}

	case "esc":
		if m.state == stateDetail {
			m.state = stateList
		}
	}
	return m, nil
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("xlink"))
	b.WriteString(" ")
	b.WriteString(m.rep.Summary())
	b.WriteString("  ")
	if m.rep.Generatable {
		b.WriteString(okStyle.Render("ready"))
	} else {
		b.WriteString(errorStyle.Render("blocked"))
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateList, stateFilter:
		if m.state == stateFilter || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
			b.WriteString("\n\n")
		}
		if len(m.visible) == 0 {
			b.WriteString("no conflicts\n")
		}
		end := min(len(m.visible), m.offset+pageSize)
		for i := m.offset; i < end; i++ {
			line := formatConflict(m.visible[i])
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter details • / filter • e errors only • q quit"))

	case stateDetail:
		c := m.visible[m.selected]
		fmt.Fprintf(&b, "%s %s\n\n", severity(c.Severity), codeStyle.Render(string(c.Code)))
		fmt.Fprintf(&b, "subject:   %s\n", c.Subject)
		if len(c.Platforms) > 0 {
			fmt.Fprintf(&b, "platforms: %s\n", xplat.JoinPlatforms(c.Platforms))
		}
		fmt.Fprintf(&b, "\n%s\n\n", c.Description)
		b.WriteString(helpStyle.Render("enter back • q quit"))
	}

	return b.String()
}

func formatConflict(c detect.Conflict) string {
	return fmt.Sprintf("%s %s %s", severity(c.Severity), codeStyle.Render(string(c.Code)), c.Subject)
}

func severity(s detect.Severity) string {
	if s == detect.Error {
		return errorStyle.Render("error  ")
	}
	return warningStyle.Render("warning")
}

func runInteractive(rep report.Report) error {
	p := tea.NewProgram(newBrowserModel(rep), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
