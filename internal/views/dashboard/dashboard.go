// Package dashboard renders the account summary as a row of metric cards.
package dashboard

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tradebot/dashboard/internal/client"
	"github.com/tradebot/dashboard/internal/format"
	"github.com/tradebot/dashboard/internal/theme"
)

const loadErrorText = "Could not load dashboard data. Please try again later."

// SummaryLoadedMsg is returned after fetching the summary.
type SummaryLoadedMsg struct {
	Summary *client.DashboardSummary
	Err     error
}

// Failed returns the request error, if any.
func (m SummaryLoadedMsg) Failed() error { return m.Err }

// Model holds the dashboard state.
type Model struct {
	ctx  context.Context
	http *client.HTTPClient

	Width   int
	summary *client.DashboardSummary
	loading bool
	err     string
}

// New creates a dashboard model in the loading state.
func New(ctx context.Context, http *client.HTTPClient) Model {
	return Model{ctx: ctx, http: http, loading: true}
}

// Refresh fetches the summary.
func (m *Model) Refresh() tea.Cmd {
	m.loading = true
	m.err = ""
	ctx, h := m.ctx, m.http
	return func() tea.Msg {
		s, err := h.GetDashboardSummary(ctx)
		return SummaryLoadedMsg{Summary: s, Err: err}
	}
}

// Update handles messages for the dashboard.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(SummaryLoadedMsg); ok {
		m.loading = false
		if msg.Err != nil {
			m.err = loadErrorText
			return m, nil
		}
		m.summary = msg.Summary
	}
	return m, nil
}

// Card is one rendered metric.
type Card struct {
	Title       string
	Value       string
	Description string
	Color       lipgloss.Color
}

// Cards returns the four metric cards for s.
func Cards(s client.DashboardSummary) []Card {
	portfolio := Card{
		Title: "Current Portfolio Value",
		Value: format.CurrencyPtr(s.CurrentPortfolioValue),
		Color: theme.ColorBright,
	}
	if s.PortfolioError != nil {
		portfolio.Description = *s.PortfolioError
	}
	return []Card{
		portfolio,
		{
			Title:       "Total Net Profit/Loss",
			Value:       arrow(s.TotalNetPL) + format.Currency(s.TotalNetPL),
			Description: fmt.Sprintf("From %d closed trades", s.TotalTradesClosed),
			Color:       theme.PLColor(s.TotalNetPL),
		},
		{
			Title:       "Win Rate",
			Value:       format.Percent(s.WinRate),
			Description: fmt.Sprintf("%d wins / %d losses", s.WinningTrades, s.LosingTrades),
			Color:       theme.ColorBright,
		},
		{
			Title: "Total Trades Closed",
			Value: fmt.Sprintf("%d", s.TotalTradesClosed),
			Color: theme.ColorBright,
		},
	}
}

func arrow(v float64) string {
	switch {
	case v > 0:
		return "▲ "
	case v < 0:
		return "▼ "
	}
	return "= "
}

// View renders the cards, wrapping to two rows on narrow terminals.
func (m Model) View() string {
	if m.loading {
		return theme.StyleDimmed.Render("  Loading dashboard...")
	}
	if m.err != "" {
		return theme.StyleError.Render("  " + m.err)
	}
	if m.summary == nil {
		return ""
	}

	width := m.Width
	if width < 40 {
		width = 40
	}
	perRow := 4
	if width < 120 {
		perRow = 2
	}
	cardW := width/perRow - 4

	var rendered []string
	for _, c := range Cards(*m.summary) {
		rendered = append(rendered, renderCard(c, cardW))
	}

	var rows []string
	for i := 0; i < len(rendered); i += perRow {
		end := i + perRow
		if end > len(rendered) {
			end = len(rendered)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, rendered[i:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCard(c Card, width int) string {
	lines := []string{
		theme.StyleDimmed.Render(c.Title),
		lipgloss.NewStyle().Bold(true).Foreground(c.Color).Render(c.Value),
	}
	if c.Description != "" {
		lines = append(lines, theme.StyleDimmed.Render(c.Description))
	}
	return theme.StyleCard.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
