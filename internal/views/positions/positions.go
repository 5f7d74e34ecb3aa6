// Package positions shows active positions and trade history in a table,
// with manual close for active positions.
package positions

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tradebot/dashboard/internal/client"
	"github.com/tradebot/dashboard/internal/format"
	"github.com/tradebot/dashboard/internal/theme"
)

// Tab selects which positions are listed.
type Tab int

const (
	TabActive Tab = iota
	TabHistory
)

func (t Tab) String() string {
	if t == TabHistory {
		return "Trade History"
	}
	return "Active Positions"
}

const (
	loadErrText  = "Could not load trades."
	closeErrText = "Failed to close the trade."
)

// LoadedMsg is returned after fetching positions for a tab.
type LoadedMsg struct {
	Tab    Tab
	Trades []client.Trade
	Err    error
}

// Failed returns the request error, if any.
func (m LoadedMsg) Failed() error { return m.Err }

// ClosedMsg is returned after a manual close.
type ClosedMsg struct {
	TradeID string
	Err     error
}

// Failed returns the request error, if any.
func (m ClosedMsg) Failed() error { return m.Err }

// KeyMap holds the positions key bindings.
type KeyMap struct {
	Tab     key.Binding
	Close   key.Binding
	Confirm key.Binding
	Cancel  key.Binding
	Refresh key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Tab:     key.NewBinding(key.WithKeys("h", "l", "left", "right"), key.WithHelp("h/l", "switch tab")),
		Close:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "close position")),
		Confirm: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
		Refresh: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "reload")),
	}
}

// Model is the positions view.
type Model struct {
	ctx  context.Context
	http *client.HTTPClient
	keys KeyMap

	tab        Tab
	trades     []client.Trade
	table      table.Model
	loading    bool
	err        string
	confirming string
	status     string

	width  int
	height int
}

// New creates the view on the active tab.
func New(ctx context.Context, http *client.HTTPClient) Model {
	t := table.New(table.WithFocused(true), table.WithHeight(10))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.Foreground(theme.ColorBright).Background(theme.ColorAccent)
	t.SetStyles(styles)

	m := Model{ctx: ctx, http: http, keys: DefaultKeyMap(), table: t, loading: true}
	m.table.SetColumns(columns(TabActive))
	return m
}

// SetSize updates the available rendering area.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if h := height - 8; h > 3 {
		m.table.SetHeight(h)
	}
}

// Tab returns the visible tab.
func (m Model) Tab() Tab { return m.tab }

// Refresh fetches positions for the visible tab.
func (m *Model) Refresh() tea.Cmd {
	m.loading = true
	m.err = ""
	ctx, h, tab := m.ctx, m.http, m.tab
	return func() tea.Msg {
		trades, err := h.ListPositions(ctx, tab == TabHistory)
		return LoadedMsg{Tab: tab, Trades: trades, Err: err}
	}
}

// Update handles messages for the view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if msg.Tab != m.tab {
			return m, nil
		}
		m.loading = false
		if msg.Err != nil {
			m.err = loadErrText
			return m, nil
		}
		m.trades = msg.Trades
		m.table.SetRows(rows(m.tab, m.trades))
		return m, nil

	case ClosedMsg:
		if msg.Err != nil {
			m.status = client.Message(msg.Err, closeErrText)
			return m, nil
		}
		m.status = "Position closed."
		cmd := m.Refresh()
		return m, cmd

	case tea.KeyMsg:
		if m.confirming != "" {
			return m.handleConfirm(msg)
		}
		m.status = ""
		switch {
		case key.Matches(msg, m.keys.Tab):
			m.tab = (m.tab + 1) % 2
			m.trades = nil
			m.table.SetRows(nil)
			m.table.SetColumns(columns(m.tab))
			cmd := m.Refresh()
			return m, cmd

		case key.Matches(msg, m.keys.Refresh):
			cmd := m.Refresh()
			return m, cmd

		case key.Matches(msg, m.keys.Close):
			if m.tab != TabActive {
				return m, nil
			}
			if tr, ok := m.selected(); ok {
				m.confirming = tr.ID
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// Confirming reports whether a close confirmation is pending.
func (m Model) Confirming() bool { return m.confirming != "" }

func (m Model) handleConfirm(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		id := m.confirming
		m.confirming = ""
		m.status = "Closing..."
		ctx, h := m.ctx, m.http
		return m, func() tea.Msg {
			return ClosedMsg{TradeID: id, Err: h.CloseTradeManual(ctx, id)}
		}
	case key.Matches(msg, m.keys.Cancel):
		m.confirming = ""
	}
	return m, nil
}

func (m Model) selected() (client.Trade, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.trades) {
		return client.Trade{}, false
	}
	return m.trades[i], true
}

func columns(tab Tab) []table.Column {
	if tab == TabHistory {
		return []table.Column{
			{Title: "Symbol", Width: 12},
			{Title: "Status", Width: 14},
			{Title: "Entry Price", Width: 14},
			{Title: "Quantity", Width: 12},
			{Title: "Exit Price", Width: 14},
			{Title: "Net P/L", Width: 14},
		}
	}
	return []table.Column{
		{Title: "Symbol", Width: 12},
		{Title: "Status", Width: 14},
		{Title: "Entry Price", Width: 14},
		{Title: "Quantity", Width: 12},
		{Title: "Opened At", Width: 20},
	}
}

func rows(tab Tab, trades []client.Trade) []table.Row {
	out := make([]table.Row, 0, len(trades))
	for _, t := range trades {
		status := t.Status
		if status == "" {
			status = "UNKNOWN"
		}
		r := table.Row{t.Symbol, status, format.CurrencyPtr(t.EntryPrice), quantity(t.Quantity)}
		if tab == TabHistory {
			pl := "Pending"
			if t.NetProfitLoss != nil {
				pl = format.Currency(*t.NetProfitLoss)
			}
			r = append(r, format.CurrencyPtr(t.ExitPrice), pl)
		} else {
			r = append(r, format.Date(t.OpenedAt.Time))
		}
		out = append(out, r)
	}
	return out
}

func quantity(q *float64) string {
	if q == nil {
		return format.NotAvailable
	}
	return strconv.FormatFloat(*q, 'f', -1, 64)
}

// View renders the tabs, table and status line.
func (m Model) View() string {
	tabs := ""
	for _, t := range []Tab{TabActive, TabHistory} {
		style := theme.StyleDimmed.Padding(0, 2)
		if t == m.tab {
			style = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorAccent).Underline(true).Padding(0, 2)
		}
		tabs += style.Render(t.String())
	}

	var body string
	switch {
	case m.loading:
		body = theme.StyleDimmed.Render("  Loading positions...")
	case m.err != "":
		body = theme.StyleError.Render("  " + m.err)
	case len(m.trades) == 0:
		body = theme.StyleDimmed.Render("  No positions found.")
	default:
		body = m.table.View()
	}

	sections := []string{tabs, "", body}
	if m.confirming != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(
			fmt.Sprintf("  Manually close %s? This cannot be undone. (y/n)", m.symbolOf(m.confirming))))
	} else if m.status != "" {
		sections = append(sections, theme.StyleDimmed.Render("  "+m.status))
	}
	help := "  h/l: tab  j/k: move  ctrl+l: reload"
	if m.tab == TabActive {
		help += "  c: close position"
	}
	sections = append(sections, theme.StyleDimmed.Render(help))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) symbolOf(id string) string {
	for _, t := range m.trades {
		if t.ID == id {
			return t.Symbol
		}
	}
	return id
}
