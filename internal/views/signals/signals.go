// Package signals lists trade signals with a debounced search box, a risk
// filter and an expandable markdown detail pane.
package signals

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/tradebot/dashboard/internal/client"
	"github.com/tradebot/dashboard/internal/format"
	"github.com/tradebot/dashboard/internal/theme"
)

// RiskLevels is the filter cycle; "" means all levels.
var RiskLevels = []string{"", "Normal", "High", "Very High"}

const (
	activatingText = "Activating..."
	activatedText  = "Monitoring Activated!"
	unknownErrText = "An unknown error occurred."
	loadErrText    = "Could not load signals."
)

// LoadedMsg is returned after fetching signals.
type LoadedMsg struct {
	Signals []client.Signal
	Err     error
}

// Failed returns the request error, if any.
func (m LoadedMsg) Failed() error { return m.Err }

// ActivateResultMsg is returned after activating a signal.
type ActivateResultMsg struct {
	SignalID string
	Err      error
}

// Failed returns the request error, if any.
func (m ActivateResultMsg) Failed() error { return m.Err }

// debounceMsg fires after the search box has been idle; only the latest
// tag triggers a fetch.
type debounceMsg struct{ tag int }

type activation struct {
	pending bool
	message string
	failed  bool
}

// KeyMap holds the signals key bindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Expand   key.Binding
	Activate key.Binding
	Risk     key.Binding
	Search   key.Binding
	Blur     key.Binding
	Refresh  key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "prev")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "next")),
		Expand:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Activate: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "activate")),
		Risk:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "risk filter")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Blur:     key.NewBinding(key.WithKeys("esc", "enter"), key.WithHelp("esc", "done")),
		Refresh:  key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "reload")),
	}
}

// Model is the signals view.
type Model struct {
	ctx      context.Context
	http     *client.HTTPClient
	keys     KeyMap
	now      func() time.Time
	debounce time.Duration

	search  textinput.Model
	riskIdx int
	tag     int

	signals     []client.Signal
	selected    int
	expanded    string
	activations map[string]activation
	loading     bool
	err         string

	width  int
	height int
}

// New creates the view. debounce is the search idle time before fetching.
func New(ctx context.Context, http *client.HTTPClient, debounce time.Duration) Model {
	search := textinput.New()
	search.Prompt = "Search: "
	search.Placeholder = "coin pair (e.g. BTC)"
	search.CharLimit = 32

	return Model{
		ctx:         ctx,
		http:        http,
		keys:        DefaultKeyMap(),
		now:         time.Now,
		debounce:    debounce,
		search:      search,
		activations: make(map[string]activation),
	}
}

// SetSize updates the available rendering area.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Typing reports whether the search box has focus, so global keys should
// pass through.
func (m Model) Typing() bool { return m.search.Focused() }

// Filter returns the active query.
func (m Model) Filter() client.SignalFilter {
	return client.SignalFilter{
		RiskLevel: RiskLevels[m.riskIdx],
		Search:    strings.TrimSpace(m.search.Value()),
	}
}

// Refresh fetches signals for the current filter.
func (m *Model) Refresh() tea.Cmd {
	m.loading = true
	m.err = ""
	ctx, h, f := m.ctx, m.http, m.Filter()
	return func() tea.Msg {
		sigs, err := h.ListSignals(ctx, f)
		return LoadedMsg{Signals: sigs, Err: err}
	}
}

// Update handles messages for the view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = client.Message(msg.Err, loadErrText)
			return m, nil
		}
		m.signals = msg.Signals
		sort.SliceStable(m.signals, func(i, j int) bool {
			return m.signals[i].Timestamp.After(m.signals[j].Timestamp.Time)
		})
		if m.selected >= len(m.signals) {
			m.selected = max(len(m.signals)-1, 0)
		}
		return m, nil

	case debounceMsg:
		if msg.tag != m.tag {
			return m, nil
		}
		cmd := m.Refresh()
		return m, cmd

	case ActivateResultMsg:
		if msg.Err != nil {
			m.activations[msg.SignalID] = activation{message: client.Message(msg.Err, unknownErrText), failed: true}
		} else {
			m.activations[msg.SignalID] = activation{message: activatedText}
		}
		return m, nil

	case tea.KeyMsg:
		if m.search.Focused() {
			return m.updateSearch(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Blur) {
		m.search.Blur()
		return m, nil
	}
	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() == before {
		return m, cmd
	}
	m.tag++
	tag := m.tag
	return m, tea.Batch(cmd, tea.Tick(m.debounce, func(time.Time) tea.Msg {
		return debounceMsg{tag: tag}
	}))
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Search):
		cmd := m.search.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Risk):
		m.riskIdx = (m.riskIdx + 1) % len(RiskLevels)
		cmd := m.Refresh()
		return m, cmd

	case key.Matches(msg, m.keys.Refresh):
		cmd := m.Refresh()
		return m, cmd

	case key.Matches(msg, m.keys.Down):
		if len(m.signals) > 0 {
			m.selected = (m.selected + 1) % len(m.signals)
		}

	case key.Matches(msg, m.keys.Up):
		if len(m.signals) > 0 {
			m.selected = (m.selected - 1 + len(m.signals)) % len(m.signals)
		}

	case key.Matches(msg, m.keys.Expand):
		if s, ok := m.current(); ok {
			if m.expanded == s.ID {
				m.expanded = ""
			} else {
				m.expanded = s.ID
			}
		}

	case key.Matches(msg, m.keys.Activate):
		s, ok := m.current()
		if !ok {
			break
		}
		if a := m.activations[s.ID]; a.pending || (a.message != "" && !a.failed) {
			break
		}
		m.activations[s.ID] = activation{pending: true, message: activatingText}
		ctx, h, id := m.ctx, m.http, s.ID
		return m, func() tea.Msg {
			return ActivateResultMsg{SignalID: id, Err: h.ActivateSignal(ctx, id)}
		}
	}
	return m, nil
}

func (m Model) current() (client.Signal, bool) {
	if m.selected < 0 || m.selected >= len(m.signals) {
		return client.Signal{}, false
	}
	return m.signals[m.selected], true
}

// View renders the filter bar, the list and the detail pane.
func (m Model) View() string {
	risk := RiskLevels[m.riskIdx]
	if risk == "" {
		risk = "All Risk Levels"
	}
	bar := m.search.View() + theme.StyleDimmed.Render("   risk: ") +
		lipgloss.NewStyle().Foreground(theme.RiskColor(risk)).Render(risk)

	sections := []string{bar, ""}
	switch {
	case m.loading && len(m.signals) == 0:
		sections = append(sections, theme.StyleDimmed.Render("  Loading signals..."))
	case m.err != "":
		sections = append(sections, theme.StyleError.Render("  "+m.err))
	case len(m.signals) == 0:
		sections = append(sections, theme.StyleDimmed.Render("  No signals found."))
	default:
		sections = append(sections, m.renderList())
	}

	if s, ok := m.current(); ok && m.expanded == s.ID {
		sections = append(sections, "", m.renderDetail(s))
	}
	sections = append(sections, theme.StyleDimmed.Render("  /: search  f: risk  j/k: move  enter: details  a: activate"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderList() string {
	now := m.now()
	var lines []string
	for i, s := range m.signals {
		prefix := "  "
		style := lipgloss.NewStyle()
		if i == m.selected {
			prefix = "> "
			style = theme.StyleSelected
		}
		risk := s.Risk()
		if risk == "" {
			risk = format.NotAvailable
		}
		line := fmt.Sprintf("%s%-12s %s  entry %s  %s",
			prefix,
			style.Render(s.CoinPair),
			lipgloss.NewStyle().Foreground(theme.RiskColor(s.Risk())).Render(fmt.Sprintf("%-14s", risk+" Risk")),
			priceOrNA(s.EntryPrice),
			theme.StyleDimmed.Render(format.TimeAgo(s.Timestamp.Time, now)),
		)
		if a, ok := m.activations[s.ID]; ok {
			st := theme.StyleSuccess
			if a.failed {
				st = theme.StyleError
			} else if a.pending {
				st = theme.StyleDimmed
			}
			line += "  " + st.Render(a.message)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetail(s client.Signal) string {
	md := DetailMarkdown(s, m.now())
	width := m.width - 4
	if width < 40 {
		width = 40
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// DetailMarkdown renders a signal's targets and stop losses as markdown.
func DetailMarkdown(s client.Signal, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", s.CoinPair)
	risk := s.Risk()
	if risk == "" {
		risk = format.NotAvailable
	}
	fmt.Fprintf(&b, "**Risk:** %s · **Entry:** %s · %s\n\n", risk, priceOrNA(s.EntryPrice), format.TimeAgo(s.Timestamp.Time, now))

	writeLevels(&b, "Targets", "Target", s.Targets)
	writeLevels(&b, "Stop Losses", "SL", s.StopLosses)
	return b.String()
}

func writeLevels(b *strings.Builder, heading, label string, levels []map[string]any) {
	fmt.Fprintf(b, "### %s\n\n", heading)
	if len(levels) == 0 {
		b.WriteString("_none_\n\n")
		return
	}
	b.WriteString("| Level | Price |\n|---|---|\n")
	for _, l := range levels {
		fmt.Fprintf(b, "| %s %v | $%v |\n", label, l["level"], l["price"])
	}
	b.WriteString("\n")
}

func priceOrNA(p *float64) string {
	if p == nil {
		return format.NotAvailable
	}
	return "$" + format.Price(*p, 4)
}
