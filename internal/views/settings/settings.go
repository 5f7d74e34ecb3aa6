// Package settings edits the bot configuration and the exchange API keys.
package settings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tradebot/dashboard/internal/client"
	"github.com/tradebot/dashboard/internal/theme"
)

// Section is the focused form.
type Section int

const (
	SectionConfig Section = iota
	SectionKeys
)

// Status lines clear after this long.
const statusTTL = 3 * time.Second

const (
	loadErrText      = "Could not load your configuration. Please try again later."
	saveErrText      = "Failed to save configuration."
	savedText        = "Configuration saved successfully!"
	noChangesText    = "No changes to save."
	keysSavedText    = "Binance API keys saved successfully!"
	keysSaveErrText  = "Failed to save keys."
	keysTooShortText = "API key and secret must be at least %d characters."
)

// ConfigLoadedMsg is returned after fetching the configuration.
type ConfigLoadedMsg struct {
	Config *client.Configuration
	Err    error
}

// Failed returns the request error, if any.
func (m ConfigLoadedMsg) Failed() error { return m.Err }

// ConfigSavedMsg is returned after saving the configuration.
type ConfigSavedMsg struct {
	Config *client.Configuration
	Err    error
}

// Failed returns the request error, if any.
func (m ConfigSavedMsg) Failed() error { return m.Err }

// KeysSavedMsg is returned after saving the API keys.
type KeysSavedMsg struct{ Err error }

// Failed returns the request error, if any.
func (m KeysSavedMsg) Failed() error { return m.Err }

type clearStatusMsg struct{ seq int }

// KeyMap holds the settings key bindings.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Section key.Binding
	Edit    key.Binding
	Cancel  key.Binding
	Save    key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "prev")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "next")),
		Section: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "switch form")),
		Edit:    key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "edit/toggle")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Save:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
	}
}

// Model is the settings view.
type Model struct {
	ctx  context.Context
	http *client.HTTPClient
	keys KeyMap

	section Section

	saved   client.Configuration
	draft   client.Configuration
	loaded  bool
	cursor  int
	editing bool
	input   textinput.Model

	apiKey    textinput.Model
	apiSecret textinput.Model

	saving    bool
	status    string
	statusErr bool
	statusSeq int
	loadErr   string
}

// New creates the view.
func New(ctx context.Context, http *client.HTTPClient) Model {
	in := textinput.New()
	in.CharLimit = 16

	apiKey := textinput.New()
	apiKey.Prompt = "API Key     "
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	apiSecret := textinput.New()
	apiSecret.Prompt = "API Secret  "
	apiSecret.EchoMode = textinput.EchoPassword
	apiSecret.EchoCharacter = '•'

	return Model{ctx: ctx, http: http, keys: DefaultKeyMap(), input: in, apiKey: apiKey, apiSecret: apiSecret}
}

// Typing reports whether a text field has focus, so global keys should
// pass through.
func (m Model) Typing() bool {
	return m.editing || m.section == SectionKeys
}

// Draft returns the configuration being edited.
func (m Model) Draft() client.Configuration { return m.draft }

// Refresh fetches the stored configuration.
func (m *Model) Refresh() tea.Cmd {
	m.loadErr = ""
	ctx, h := m.ctx, m.http
	return func() tea.Msg {
		cfg, err := h.GetConfiguration(ctx)
		return ConfigLoadedMsg{Config: cfg, Err: err}
	}
}

// Update handles messages for the view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ConfigLoadedMsg:
		if msg.Err != nil {
			m.loadErr = loadErrText
			return m, nil
		}
		m.loaded = true
		m.saved = *msg.Config
		m.draft = *msg.Config
		return m, nil

	case ConfigSavedMsg:
		m.saving = false
		if msg.Err != nil {
			return m.setStatus(client.Message(msg.Err, saveErrText), true)
		}
		m.saved = *msg.Config
		m.draft = *msg.Config
		return m.setStatus(savedText, false)

	case KeysSavedMsg:
		m.saving = false
		if msg.Err != nil {
			return m.setStatus(client.Message(msg.Err, keysSaveErrText), true)
		}
		m.apiKey.Reset()
		m.apiSecret.Reset()
		return m.setStatus(keysSavedText, false)

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Section) && !m.editing {
			return m.switchSection()
		}
		if m.section == SectionKeys {
			return m.updateKeys(msg)
		}
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateConfig(msg)
	}
	return m, nil
}

func (m Model) setStatus(text string, isErr bool) (Model, tea.Cmd) {
	m.status = text
	m.statusErr = isErr
	m.statusSeq++
	seq := m.statusSeq
	return m, tea.Tick(statusTTL, func(time.Time) tea.Msg { return clearStatusMsg{seq: seq} })
}

func (m Model) switchSection() (Model, tea.Cmd) {
	if m.section == SectionConfig {
		m.section = SectionKeys
		cmd := m.apiKey.Focus()
		return m, cmd
	}
	m.section = SectionConfig
	m.apiKey.Blur()
	m.apiSecret.Blur()
	return m, nil
}

func (m Model) updateConfig(msg tea.KeyMsg) (Model, tea.Cmd) {
	if !m.loaded {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Down):
		m.cursor = (m.cursor + 1) % len(client.ConfigFields)
	case key.Matches(msg, m.keys.Up):
		m.cursor = (m.cursor - 1 + len(client.ConfigFields)) % len(client.ConfigFields)
	case key.Matches(msg, m.keys.Edit):
		f := client.ConfigFields[m.cursor]
		if f.Kind == client.KindBool {
			next := "true"
			if client.FieldValue(m.draft, f.Key) == "true" {
				next = "false"
			}
			_ = client.SetField(&m.draft, f.Key, next)
			return m, nil
		}
		m.editing = true
		m.input.SetValue(client.FieldValue(m.draft, f.Key))
		m.input.CursorEnd()
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Save):
		return m.saveConfig()
	}
	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.editing = false
		m.input.Blur()
		return m, nil
	case msg.Type == tea.KeyEnter:
		f := client.ConfigFields[m.cursor]
		if err := client.SetField(&m.draft, f.Key, m.input.Value()); err != nil {
			return m.setStatus(err.Error(), true)
		}
		m.editing = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) saveConfig() (Model, tea.Cmd) {
	if m.saving {
		return m, nil
	}
	changes := client.Diff(m.saved, m.draft)
	if len(changes) == 0 {
		return m.setStatus(noChangesText, false)
	}
	m.saving = true
	ctx, h := m.ctx, m.http
	return m, func() tea.Msg {
		cfg, err := h.UpdateConfiguration(ctx, changes)
		return ConfigSavedMsg{Config: cfg, Err: err}
	}
}

func (m Model) updateKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyTab || msg.Type == tea.KeyUp || msg.Type == tea.KeyDown:
		if m.apiKey.Focused() {
			m.apiKey.Blur()
			cmd := m.apiSecret.Focus()
			return m, cmd
		}
		m.apiSecret.Blur()
		cmd := m.apiKey.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Save) || msg.Type == tea.KeyEnter:
		if m.saving {
			return m, nil
		}
		k, s := strings.TrimSpace(m.apiKey.Value()), strings.TrimSpace(m.apiSecret.Value())
		if len(k) < client.MinBinanceKeyLen || len(s) < client.MinBinanceKeyLen {
			return m.setStatus(fmt.Sprintf(keysTooShortText, client.MinBinanceKeyLen), true)
		}
		m.saving = true
		ctx, h := m.ctx, m.http
		return m, func() tea.Msg {
			return KeysSavedMsg{Err: h.UpdateBinanceKeys(ctx, k, s)}
		}

	case key.Matches(msg, m.keys.Cancel):
		return m.switchSection()
	}

	var cmd tea.Cmd
	if m.apiKey.Focused() {
		m.apiKey, cmd = m.apiKey.Update(msg)
	} else {
		m.apiSecret, cmd = m.apiSecret.Update(msg)
	}
	return m, cmd
}

// View renders both forms.
func (m Model) View() string {
	heading := func(s string, active bool) string {
		if active {
			return lipgloss.NewStyle().Bold(true).Foreground(theme.ColorAccent).Render(s)
		}
		return theme.StyleHeader.Render(s)
	}

	sections := []string{heading("Bot Configuration", m.section == SectionConfig)}
	switch {
	case m.loadErr != "":
		sections = append(sections, theme.StyleError.Render("  "+m.loadErr))
	case !m.loaded:
		sections = append(sections, theme.StyleDimmed.Render("  Loading configuration..."))
	default:
		sections = append(sections, m.renderConfig())
	}

	sections = append(sections, "", heading("Binance API Keys", m.section == SectionKeys),
		theme.StyleDimmed.Render("  Keys are encrypted before being stored."),
		"  "+m.apiKey.View(), "  "+m.apiSecret.View(), "")

	switch {
	case m.saving:
		sections = append(sections, theme.StyleDimmed.Render("  Saving..."))
	case m.status != "" && m.statusErr:
		sections = append(sections, theme.StyleError.Render("  "+m.status))
	case m.status != "":
		sections = append(sections, theme.StyleSuccess.Render("  "+m.status))
	}

	help := "  j/k: move  enter: edit/toggle  ctrl+s: save  shift+tab: api keys"
	if m.section == SectionKeys {
		help = "  tab: next field  enter: save keys  esc/shift+tab: back"
	}
	sections = append(sections, theme.StyleDimmed.Render(help))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderConfig() string {
	var lines []string
	for i, f := range client.ConfigFields {
		prefix := "  "
		label := lipgloss.NewStyle().Width(26).Render(f.Label)
		if i == m.cursor && m.section == SectionConfig {
			prefix = "> "
			label = theme.StyleSelected.Width(26).Render(f.Label)
		}
		var value string
		switch {
		case i == m.cursor && m.editing:
			value = m.input.View()
		case f.Kind == client.KindBool:
			value = toggle(client.FieldValue(m.draft, f.Key) == "true")
		default:
			value = client.FieldValue(m.draft, f.Key)
			if value == "" {
				value = theme.StyleDimmed.Render("not set")
			}
		}
		if client.FieldValue(m.draft, f.Key) != client.FieldValue(m.saved, f.Key) {
			value += lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(" *")
		}
		lines = append(lines, prefix+label+value)
	}
	return strings.Join(lines, "\n")
}

func toggle(on bool) string {
	if on {
		return lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("[on ]")
	}
	return theme.StyleDimmed.Render("[off]")
}
