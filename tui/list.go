package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	colDir  = 5
	colType = 16
	colTime = 12
)

var dirColor = map[string]lipgloss.Color{
	"send": "6",
	"recv": "3",
}

func (m Model) renderList(maxRows int) string {
	innerWidth := max(m.width-4, 20)
	colSummary := max(innerWidth-colDir-colType-colTime-6, 10)

	title := fmt.Sprintf(" oophm-bridge (%d/%d events) ", len(m.visible), len(m.events))

	border := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Width(innerWidth)

	dataRows := max(maxRows-1, 1)
	start := 0
	if len(m.visible) > dataRows {
		start = max(m.cursor-dataRows/2, 0)
		if start+dataRows > len(m.visible) {
			start = len(m.visible) - dataRows
		}
	}
	end := min(start+dataRows, len(m.visible))

	header := fmt.Sprintf("  %-*s %-*s %-*s %s",
		colDir, "dir", colType, "type", colTime, "time", "summary")

	rows := []string{lipgloss.NewStyle().Bold(true).Render(header)}
	for i := start; i < end; i++ {
		ev := m.events[m.visible[i]]
		rows = append(rows, m.renderRow(ev, i == m.cursor, colSummary))
	}

	box := border.Render(strings.Join(rows, "\n"))
	lines := strings.Split(box, "\n")
	if len(lines) > 0 {
		borderFg := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
		dashes := max(innerWidth-len([]rune(title)), 0)
		lines[0] = borderFg.Render("╭") + lipgloss.NewStyle().Bold(true).Render(title) +
			borderFg.Render(strings.Repeat("─", dashes) + "╮")
		box = strings.Join(lines, "\n")
	}
	return box
}

func (m Model) renderRow(ev displayEvent, isCursor bool, colSummary int) string {
	marker := "  "
	if isCursor {
		marker = "▶ "
	}

	dir := lipgloss.NewStyle().Foreground(dirColor[ev.Direction]).Render(fmt.Sprintf("%-*s", colDir, ev.Direction))
	typ := fmt.Sprintf("%-*s", colType, truncate(ev.TypeName, colType))
	ts := fmt.Sprintf("%-*s", colTime, truncate(ev.At, colTime))
	summary := truncate(ev.Summary, colSummary)

	line := marker + dir + " " + typ + " " + ts + " " + summary
	if isCursor {
		return lipgloss.NewStyle().Bold(true).Render(line)
	}
	return line
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
