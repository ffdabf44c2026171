// Package tui implements the inspector's Bubble Tea front end: it dials
// the daemon's SSE feed instead of the teacher's gRPC Watch stream and
// renders a scrollable, filterable list of BridgeEvents, grounded on
// tui/model.go and tui/list.go.
package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mickamy/oophm-bridge/clipboard"
	"github.com/mickamy/oophm-bridge/jsni"
)

type viewMode int

const (
	viewList viewMode = iota
	viewInspect
)

// displayEvent is the JSON shape web.Server writes to /api/events.
type displayEvent struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Direction string `json:"direction"`
	Type      byte   `json:"type"`
	TypeName  string `json:"type_name"`
	Summary   string `json:"summary"`
	At        string `json:"at"`
}

// Model is the Bubble Tea model for the inspector.
type Model struct {
	target string
	stream chan tea.Msg

	events []displayEvent
	cursor int
	follow bool
	width  int
	height int
	err    error
	view   viewMode

	searchMode   bool
	searchQuery  string
	searchCursor int
	filterMode   bool
	filterQuery  string
	filterCursor int

	visible []int // indices into events passing the active filter/search

	inspectScroll int
}

type eventMsg struct{ ev displayEvent }
type errMsg struct{ err error }
type linesMsg struct{ ch chan tea.Msg }

// New creates a Model that will dial target's SSE endpoint.
func New(target string) Model {
	return Model{target: target, follow: true}
}

func (m Model) Init() tea.Cmd {
	return connect(m.target)
}

func connect(target string) tea.Cmd {
	return func() tea.Msg {
		url := strings.TrimRight(target, "/") + "/api/events"
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
		if err != nil {
			return errMsg{err: fmt.Errorf("build request: %w", err)}
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return errMsg{err: fmt.Errorf("dial %s: %w", url, err)}
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return errMsg{err: fmt.Errorf("dial %s: status %s", url, resp.Status)}
		}

		ch := make(chan tea.Msg, 64)
		go pumpSSE(resp.Body, ch)
		return linesMsg{ch: ch}
	}
}

func pumpSSE(body io.ReadCloser, ch chan tea.Msg) {
	defer body.Close()
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev displayEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		ch <- eventMsg{ev: ev}
	}
	close(ch)
}

func recvFrom(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return errMsg{err: fmt.Errorf("event stream closed")}
		}
		return msg
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case linesMsg:
		m.stream = msg.ch
		return m, recvFrom(msg.ch)

	case eventMsg:
		m.events = append(m.events, msg.ev)
		m.rebuildVisible()
		if m.follow {
			m.cursor = max(len(m.visible)-1, 0)
		}
		return m, recvFrom(m.stream)

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case viewInspect:
			return m.updateInspect(msg)
		case viewList:
			return m.updateList(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

func (m *Model) rebuildVisible() {
	var conds []filterCondition
	if m.filterQuery != "" {
		conds = parseFilter(m.filterQuery)
	}
	search := strings.ToLower(m.searchQuery)

	m.visible = m.visible[:0]
	for i, ev := range m.events {
		if len(conds) > 0 && !matchAllConditions(ev, conds) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(ev.Summary), search) {
			continue
		}
		m.visible = append(m.visible, i)
	}
}

func (m Model) cursorEvent() *displayEvent {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return nil
	}
	return &m.events[m.visible[m.cursor]]
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchMode {
		return m.updateSearch(msg)
	}
	if m.filterMode {
		return m.updateFilter(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		if len(m.visible) > 0 {
			m.view = viewInspect
			m.inspectScroll = 0
		}
		return m, nil
	case "c":
		return m.copySummary(), nil
	case "/":
		m.searchMode = true
		m.searchQuery = ""
		m.searchCursor = 0
		return m, nil
	case "f":
		m.filterMode = true
		m.filterQuery = ""
		m.filterCursor = 0
		return m, nil
	case "esc":
		return m.clearFilter(), nil
	case "j", "down":
		return m.navigateCursor(msg.String()), nil
	case "k", "up":
		return m.navigateCursor(msg.String()), nil
	}
	return m, nil
}

func (m Model) updateInspect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.view = viewList
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "j", "down":
		m.inspectScroll++
		return m, nil
	case "k", "up":
		if m.inspectScroll > 0 {
			m.inspectScroll--
		}
		return m, nil
	case "c":
		return m.copySummary(), nil
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.searchMode = false
		if msg.String() == "esc" {
			m.searchQuery = ""
		}
		m.rebuildVisible()
		m.cursor = min(m.cursor, max(len(m.visible)-1, 0))
		return m, nil
	case "backspace":
		if m.searchCursor > 0 {
			runes := []rune(m.searchQuery)
			m.searchQuery = string(runes[:m.searchCursor-1]) + string(runes[m.searchCursor:])
			m.searchCursor--
			m.rebuildVisible()
		}
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	if r := msg.Runes; len(r) > 0 {
		runes := []rune(m.searchQuery)
		m.searchQuery = string(runes[:m.searchCursor]) + string(r) + string(runes[m.searchCursor:])
		m.searchCursor += len(r)
		m.rebuildVisible()
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.filterMode = false
		if msg.String() == "esc" {
			m.filterQuery = ""
		}
		m.rebuildVisible()
		m.cursor = min(m.cursor, max(len(m.visible)-1, 0))
		return m, nil
	case "backspace":
		if m.filterCursor > 0 {
			runes := []rune(m.filterQuery)
			m.filterQuery = string(runes[:m.filterCursor-1]) + string(runes[m.filterCursor:])
			m.filterCursor--
			m.rebuildVisible()
		}
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	if r := msg.Runes; len(r) > 0 {
		runes := []rune(m.filterQuery)
		m.filterQuery = string(runes[:m.filterCursor]) + string(r) + string(runes[m.filterCursor:])
		m.filterCursor += len(r)
		m.rebuildVisible()
	}
	return m, nil
}

func (m Model) navigateCursor(key string) Model {
	switch key {
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
			m.follow = false
		}
	case "j", "down":
		if len(m.visible) > 0 && m.cursor < len(m.visible)-1 {
			m.cursor++
		}
		if len(m.visible) > 0 && m.cursor == len(m.visible)-1 {
			m.follow = true
		}
	}
	return m
}

func (m Model) clearFilter() Model {
	if m.searchQuery == "" && m.filterQuery == "" {
		return m
	}
	m.searchQuery = ""
	m.filterQuery = ""
	m.rebuildVisible()
	m.cursor = min(m.cursor, max(len(m.visible)-1, 0))
	return m
}

func (m Model) copySummary() Model {
	ev := m.cursorEvent()
	if ev == nil {
		return m
	}
	text := ev.Summary
	if ev.TypeName == "LoadJsni" {
		text = jsni.Source(text)
	}
	_ = clipboard.Copy(context.Background(), text)
	return m
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	if m.err != nil {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.err.Error())
	}
	if len(m.events) == 0 {
		return "waiting for bridge events..."
	}

	switch m.view {
	case viewInspect:
		return m.renderInspector()
	}

	var footer string
	switch {
	case m.searchMode:
		footer = "  / " + m.searchQuery
	case m.filterMode:
		footer = "  filter: " + m.filterQuery
	default:
		footer = "  q: quit  j/k: navigate  enter: inspect  c: copy  /: search  f: filter  esc: clear"
	}

	return strings.Join([]string{m.renderList(max(m.height-4, 3)), footer}, "\n")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
