package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/cellbuf"

	"github.com/marcus/shelf/internal/optimistic"
	"github.com/marcus/shelf/internal/output"
)

// View renders the list, or the open form.
func (m Model[T]) View() string {
	if m.form != nil {
		return m.renderForm()
	}

	var sb strings.Builder
	sb.WriteString(m.renderTitle())
	sb.WriteString("\n\n")
	sb.WriteString(m.renderRows())
	sb.WriteString("\n\n")
	if status := m.renderStatus(); status != "" {
		sb.WriteString(status)
		sb.WriteString("\n")
	}

	keys := m.keys
	keys.setRowActions(m.selectedSettled())
	sb.WriteString(m.help.View(keys))
	return sb.String()
}

func (m Model[T]) renderTitle() string {
	title := panelTitleStyle.Render(m.title)
	count := subtleStyle.Render(fmt.Sprintf("%d", len(m.rows)))
	switch {
	case m.ctrl.State() == optimistic.StatePending:
		return fmt.Sprintf("%s %s %s", title, count, m.spinner.View()+subtleStyle.Render(fmt.Sprintf(" saving %d", m.ctrl.InFlight())))
	case m.loading:
		return fmt.Sprintf("%s %s", title, subtleStyle.Render("loading…"))
	}
	return fmt.Sprintf("%s %s", title, count)
}

func (m Model[T]) renderRows() string {
	if m.err != nil && len(m.rows) == 0 {
		return errorStyle.Render("Error: " + m.err.Error())
	}
	if len(m.rows) == 0 {
		if m.loading {
			return ""
		}
		return subtleStyle.Render(fmt.Sprintf("No %s yet. Press n to add one.", strings.ToLower(m.title)))
	}

	table := make([][]string, 0, len(m.rows)+1)
	table = append(table, m.columns)
	for _, r := range m.rows {
		table = append(table, m.row(r))
	}
	lines := output.AlignRows(table)

	width := max(m.width-2, 10)
	out := make([]string, len(lines))
	out[0] = "  " + headerStyle.Render(ansi.Truncate(lines[0], width, "…"))
	for i, line := range lines[1:] {
		line = ansi.Truncate(line, width, "…")
		style := output.RowStyle(m.rows[i].EntityID())
		if i == m.cursor {
			out[i+1] = "> " + selectedRowStyle.Inherit(style).Render(line)
		} else {
			out[i+1] = "  " + style.Render(line)
		}
	}
	return strings.Join(out, "\n")
}

func (m Model[T]) renderStatus() string {
	n := m.status.notice
	if n.Title == "" {
		return ""
	}
	text := n.Title
	if n.Description != "" {
		text += ": " + n.Description
	}
	text = ansi.Truncate(text, max(m.width, 10), "…")
	if n.Variant == optimistic.VariantDestructive {
		return errorStyle.Render(text)
	}
	return successStyle.Render(text)
}

func (m Model[T]) renderForm() string {
	var parts []string
	if m.form.Err != "" {
		parts = append(parts, errorStyle.Render(cellbuf.Wrap(m.form.Err, m.formWidth(), " -")))
	}
	parts = append(parts, m.form.Form.View())
	parts = append(parts, subtleStyle.Render("esc cancel"))
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
