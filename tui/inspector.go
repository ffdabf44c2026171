package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mickamy/oophm-bridge/jsni"
)

// renderInspector shows the full detail of the event at the cursor,
// syntax-highlighting the summary when it carries JSNI source or a
// RemoteException payload (mirroring tui/model.go's viewInspect).
func (m Model) renderInspector() string {
	ev := m.cursorEvent()
	if ev == nil {
		return "no event selected"
	}

	body := ev.Summary
	switch {
	case ev.TypeName == "LoadJsni":
		body = jsni.Source(body)
	case strings.Contains(ev.TypeName, "Return") && strings.HasPrefix(body, "throw "):
		body = jsni.Exception(body)
	}

	lines := strings.Split(body, "\n")
	if m.inspectScroll > 0 && m.inspectScroll < len(lines) {
		lines = lines[m.inspectScroll:]
	}
	visible := strings.Join(lines, "\n")

	header := lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("session %s  %s %s  %s", ev.SessionID, ev.Direction, ev.TypeName, ev.At))

	footer := "  q/esc: back  j/k: scroll  c: copy"

	return strings.Join([]string{header, "", visible, "", footer}, "\n")
}
