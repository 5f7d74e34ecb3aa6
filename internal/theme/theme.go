// Package theme provides the Lip Gloss color palette and reusable styles
// for the trading dashboard. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Severity colors for toasts.
var (
	ColorInfo    = lipgloss.Color("#3b82f6")
	ColorSuccess = lipgloss.Color("#16a34a")
	ColorError   = lipgloss.Color("#dc2626")
)

// Profit/loss colors.
var (
	ColorProfit = lipgloss.Color("#22c55e")
	ColorLoss   = lipgloss.Color("#ef4444")
)

// Risk level colors.
var (
	ColorRiskNormal   = lipgloss.Color("#22c55e")
	ColorRiskHigh     = lipgloss.Color("#d97706")
	ColorRiskVeryHigh = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorDefault = lipgloss.Color("#9ca3af")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#a855f7")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// SeverityColor returns the toast color for a severity name.
func SeverityColor(sev string) lipgloss.Color {
	switch sev {
	case "success":
		return ColorSuccess
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// PLColor colors an amount by sign; zero counts as profit.
func PLColor(v float64) lipgloss.Color {
	if v < 0 {
		return ColorLoss
	}
	return ColorProfit
}

// RiskColor returns the color for a signal risk level.
func RiskColor(level string) lipgloss.Color {
	switch level {
	case "Normal":
		return ColorRiskNormal
	case "High":
		return ColorRiskHigh
	case "Very High":
		return ColorRiskVeryHigh
	default:
		return ColorDefault
	}
}

// FeedColor returns the color for a feed state name.
func FeedColor(state string) lipgloss.Color {
	switch state {
	case "open":
		return ColorHealthy
	case "connecting":
		return ColorWarning
	case "closed":
		return ColorDanger
	default:
		return ColorDimmed
	}
}

// FeedGlyph returns a glyph for a feed state name.
func FeedGlyph(state string) string {
	switch state {
	case "open":
		return "●"
	case "connecting":
		return "◌"
	case "closed":
		return "✗"
	default:
		return "○"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)

	StyleSuccess = lipgloss.NewStyle().
			Foreground(ColorHealthy)

	StyleCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 2)
)
