package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#444466"))
)

// Header renders a bold underlined title followed by dimmed key=value
// details, used above every table the CLI prints.
func Header(title string, details ...string) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(title))
	if len(details) > 0 {
		b.WriteString("\n")
		b.WriteString(dim.Render(strings.Join(details, "  ")))
	}
	return b.String()
}

// KV renders a label and value pair.
func KV(label, value string) string {
	return dim.Render(label+":") + " " + cyan.Render(value)
}

func Warn(s string) string { return yellow.Render(s) }
