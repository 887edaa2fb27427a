package ui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Green = lipgloss.Color("10") // success, current selection
	Red   = lipgloss.Color("9")  // errors
	Grey  = lipgloss.Color("8")  // muted text
	Blue  = lipgloss.Color("4")  // prompts, borders
	White = lipgloss.Color("15") // titles
)

// Status indicators
const (
	CurrentIcon = "●"
	OtherIcon   = "○"
	FailIcon    = "✗"
)

// Styles returns styled text helpers bound to a renderer
type Styles struct {
	renderer *lipgloss.Renderer

	Title     lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Prompt    lipgloss.Style
	Banner    lipgloss.Style
}

// NewStyles creates a new Styles instance for the given output. Colors are
// dropped automatically when the output is not a terminal.
func NewStyles(output io.Writer) *Styles {
	r := lipgloss.NewRenderer(output)

	return &Styles{
		renderer: r,

		Title: r.NewStyle().
			Bold(true).
			Foreground(White),

		Muted: r.NewStyle().
			Foreground(Grey),

		Error: r.NewStyle().
			Foreground(Red),

		Highlight: r.NewStyle().
			Bold(true).
			Foreground(Green),

		Prompt: r.NewStyle().
			Bold(true).
			Foreground(Blue),

		Banner: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Red).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles for stderr
func DefaultStyles() *Styles {
	return NewStyles(os.Stderr)
}

// ErrorBanner renders msg in a bordered box headed by a failure marker.
func (s *Styles) ErrorBanner(msg string) string {
	title := s.Error.Bold(true).Render(FailIcon + " Error")
	return s.Banner.Render(title + "\n" + strings.TrimRight(msg, "\n"))
}

// FormatChoice renders a list entry, highlighting the current one.
func (s *Styles) FormatChoice(current bool, label, detail string) string {
	line := s.Muted.Render(OtherIcon) + " " + label
	if current {
		line = s.Highlight.Render(CurrentIcon + " " + label)
	}
	if detail != "" {
		line += "  " + s.Muted.Render(detail)
	}
	return line
}

// Truncate shortens a string to maxLen runes with ellipsis
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
