package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	clrBrand  = lipgloss.Color("39")
	clrGreen  = lipgloss.Color("114")
	clrRed    = lipgloss.Color("203")
	clrYellow = lipgloss.Color("220")
	clrDim    = lipgloss.Color("245")
	clrWhite  = lipgloss.Color("255")
)

// styles wraps lipgloss renderers. Styling is disabled when the writer is
// not a terminal or JSON output was requested.
type styles struct {
	enabled bool

	Brand   lipgloss.Style
	Dim     lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Prompt  lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
}

func newStyles(w io.Writer, jsonMode bool) styles {
	enabled := false
	if !jsonMode {
		if f, ok := w.(*os.File); ok {
			enabled = term.IsTerminal(int(f.Fd()))
		}
	}

	s := styles{enabled: enabled}
	if !enabled {
		return s
	}

	s.Brand = lipgloss.NewStyle().Bold(true).Foreground(clrBrand)
	s.Dim = lipgloss.NewStyle().Foreground(clrDim)
	s.Key = lipgloss.NewStyle().Foreground(clrDim)
	s.Value = lipgloss.NewStyle().Foreground(clrWhite)
	s.Prompt = lipgloss.NewStyle().Bold(true).Foreground(clrGreen)
	s.Warning = lipgloss.NewStyle().Foreground(clrYellow).Bold(true)
	s.Error = lipgloss.NewStyle().Foreground(clrRed).Bold(true)
	s.Success = lipgloss.NewStyle().Foreground(clrGreen)
	return s
}

func (s styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

func (s styles) banner() string { return s.render(s.Brand, "Smart Info Agent") }

// kv formats a key-value pair like "  Key:  value".
func (s styles) kv(key, value string) string {
	if !s.enabled {
		return fmt.Sprintf("  %-12s %s", key+":", value)
	}
	return fmt.Sprintf("  %s %s", s.Key.Render(fmt.Sprintf("%-12s", key+":")), s.Value.Render(value))
}

func (s styles) dim(text string) string     { return s.render(s.Dim, text) }
func (s styles) prompt(text string) string  { return s.render(s.Prompt, text) }
func (s styles) success(text string) string { return s.render(s.Success, text) }
func (s styles) errPrefix() string          { return s.render(s.Error, "ERROR:") }
func (s styles) warnPrefix() string         { return s.render(s.Warning, "WARNING:") }

// separator returns a thin horizontal rule.
func (s styles) separator(width int) string {
	if width <= 0 {
		width = 40
	}
	return s.render(s.Dim, strings.Repeat("─", width))
}
