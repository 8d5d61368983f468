package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used for text output.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
}

// NewStyles builds styles for a lipgloss renderer. A renderer with the ASCII
// profile produces plain text.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1: r.NewStyle().Bold(true).Foreground(lipgloss.Color("62")),
		Header2: r.NewStyle().Bold(true).Foreground(lipgloss.Color("111")),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("240")),
		Success: r.NewStyle().Foreground(lipgloss.Color("#04B575")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("214")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
		Info:    r.NewStyle().Foreground(lipgloss.Color("39")),
	}
}

// FormatHeader returns a markdown header.
func FormatHeader(level int, text string) string {
	level = max(1, min(level, 6))
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue returns a markdown bold key followed by its value.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("**%s:** %s", key, value)
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
