package status

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tradebot/dashboard/internal/nav"
	"github.com/tradebot/dashboard/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	User      string
	FeedState string
	Current   nav.View
	Retrying  bool
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{FeedState: "idle", Current: nav.Login}
}

// View renders the status bar: tabs on the left, user and feed state on
// the right.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var tabs []string
	if m.User == "" {
		tabs = append(tabs, theme.StyleHeader.Render("Trading Bot"))
	} else {
		for _, v := range nav.Authenticated {
			style := theme.StyleDimmed
			if v == m.Current {
				style = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorAccent)
			}
			tabs = append(tabs, style.Render(v.Title()))
		}
	}
	left := strings.Join(tabs, "  ")

	feed := lipgloss.NewStyle().Foreground(theme.FeedColor(m.FeedState)).
		Render(theme.FeedGlyph(m.FeedState) + " feed " + m.FeedState)
	if m.Retrying {
		feed += theme.StyleDimmed.Render(" (retrying)")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	right := feed
	if m.User != "" {
		right = theme.StyleDimmed.Render(m.User) + sep + feed
	}

	gap := width - 4 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	content := left + strings.Repeat(" ", gap) + right

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
