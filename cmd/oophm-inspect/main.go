// Command oophm-inspect is the inspector TUI entry point: it dials a
// running oophmd's -inspect address and renders its live event feed,
// grounded on the teacher's bare main.go.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mickamy/oophm-bridge/tui"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("oophm-inspect", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "oophm-inspect — watch bridge traffic in real time\n\nUsage:\n  oophm-inspect [flags] <addr>\n\nFlags:\n")
		fs.PrintDefaults()
	}

	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("oophm-inspect %s\n", version)
		return
	}

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	monitor(fs.Arg(0))
}

func monitor(addr string) {
	target := addr
	switch {
	case strings.Contains(target, "://"):
	case strings.HasPrefix(target, ":"):
		target = "http://localhost" + target
	default:
		target = "http://" + target
	}

	p := tea.NewProgram(tui.New(target), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "oophm-inspect: %v\n", err)
		os.Exit(1)
	}
}
