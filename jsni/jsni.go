// Package jsni renders JSNI/JavaScript source and remote exception
// traces for the inspector TUI, the way highlight.go renders SQL and
// EXPLAIN output for the teacher's tap.
package jsni

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
)

func init() {
	lexer = lexers.Get("javascript")
	formatter = formatters.Get("terminal256")
	style = styles.Get("monokai")
}

// Source returns s (a LoadJsni payload) with ANSI terminal syntax
// highlighting applied. On error or empty input, s is returned
// unchanged.
func Source(s string) string {
	if s == "" {
		return s
	}

	iterator, err := lexer.Tokenise(nil, s)
	if err != nil {
		return s
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return s
	}

	return strings.TrimRight(buf.String(), "\n")
}

var (
	frameRe = regexp.MustCompile(`(?m)^\s*at\s+\S+`)
	headRe  = regexp.MustCompile(`(?m)^\S.*(?:Error|Exception):.*$`)

	boldStyle = lipgloss.NewStyle().Bold(true)
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// Exception returns the string payload of a RemoteException value with
// highlighting applied: the leading "TypeError: ..." style header line
// is bold and "at func (file.js:line)" stack frames are dim. The
// file:line portion of a frame gets no styling of its own beyond the
// frame line's dimming.
func Exception(s string) string {
	if s == "" {
		return s
	}

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if headRe.MatchString(line) {
			lines[i] = boldStyle.Render(line)
			continue
		}
		if frameRe.MatchString(line) {
			lines[i] = dimStyle.Render(line)
		}
	}

	return strings.Join(lines, "\n")
}
