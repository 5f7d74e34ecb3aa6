// Package toast renders live notifications as a stack of coloured boxes.
package toast

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tradebot/dashboard/internal/notify"
	"github.com/tradebot/dashboard/internal/theme"
)

// MaxVisible caps how many toasts are drawn; the newest win.
const MaxVisible = 4

const toastWidth = 44

// View renders items oldest first, right-aligned within width.
func View(items []notify.Notification, width int) string {
	if len(items) == 0 {
		return ""
	}
	if len(items) > MaxVisible {
		items = items[len(items)-MaxVisible:]
	}

	boxes := make([]string, 0, len(items))
	for _, n := range items {
		color := theme.SeverityColor(string(n.Severity))
		boxes = append(boxes, lipgloss.NewStyle().
			Width(toastWidth).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(color).
			Foreground(color).
			Render(n.Message))
	}
	stack := lipgloss.JoinVertical(lipgloss.Right, boxes...)
	if width <= 0 {
		return stack
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, stack)
}
