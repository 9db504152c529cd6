package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	mutedStyleColor   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	warningStyleColor = lipgloss.AdaptiveColor{Light: "#FFA500", Dark: "#FFA500"}
)

func Muted(text string) string {
	return lipgloss.NewStyle().Foreground(mutedStyleColor).Render(text)
}

func Warning(text string) string {
	return lipgloss.NewStyle().Foreground(warningStyleColor).Render(text)
}

// MaxWidth truncates text to width cells, ending it with an ellipsis.
func MaxWidth(text string, width int) string {
	if width < 4 || lipgloss.Width(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
