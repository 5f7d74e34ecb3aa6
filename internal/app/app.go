package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/tradebot/dashboard/internal/client"
	"github.com/tradebot/dashboard/internal/config"
	"github.com/tradebot/dashboard/internal/nav"
	"github.com/tradebot/dashboard/internal/notify"
	"github.com/tradebot/dashboard/internal/session"
	"github.com/tradebot/dashboard/internal/theme"
	"github.com/tradebot/dashboard/internal/views/dashboard"
	"github.com/tradebot/dashboard/internal/views/feedlog"
	"github.com/tradebot/dashboard/internal/views/login"
	"github.com/tradebot/dashboard/internal/views/positions"
	"github.com/tradebot/dashboard/internal/views/register"
	"github.com/tradebot/dashboard/internal/views/settings"
	"github.com/tradebot/dashboard/internal/views/signals"
	"github.com/tradebot/dashboard/internal/views/status"
	"github.com/tradebot/dashboard/internal/views/toast"
)

// Deps are the collaborators the root model drives. The caller builds them
// so they can be shared with the CLI and replaced in tests.
type Deps struct {
	Config  *config.Config
	Session *session.Manager
	Router  *nav.Router
	Feed    *client.FeedClient
	HTTP    *client.HTTPClient
	Queue   *notify.Queue
	Now     func() time.Time
}

// Err returns why the model cannot run, if anything.
func (d Deps) Err() error {
	switch {
	case d.Config == nil:
		return errors.New("app: missing config")
	case d.Session == nil, d.Router == nil:
		return errors.New("app: missing session or router")
	case d.Feed == nil, d.HTTP == nil, d.Queue == nil:
		return errors.New("app: missing client or queue")
	}
	return nil
}

// failure is implemented by view result messages that carry a REST error.
type failure interface {
	Failed() error
}

// reconnectMsg fires when the backoff for a dropped connection elapses.
type reconnectMsg struct{ gen uint64 }

// Model is the root Bubble Tea model.
type Model struct {
	cfg    *config.Config
	sess   *session.Manager
	router *nav.Router
	feed   *client.FeedClient
	http   *client.HTTPClient
	queue  *notify.Queue
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	// Views.
	statusBar status.Model
	login     login.Model
	register  register.Model
	dashboard dashboard.Model
	signals   signals.Model
	positions positions.Model
	settings  settings.Model
	feedLog   feedlog.Model

	showFeedLog      bool
	reconnectAttempt int
	retrying         bool
}

// New creates the root model and subscribes the feed to session changes:
// every login opens a fresh connection and every logout closes it.
func New(d Deps) Model {
	if d.Now == nil {
		d.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())

	feed := d.Feed
	sess := d.Session
	sess.OnChange(func(s session.Session) {
		feed.Close()
		if s.Authenticated {
			feed.Open(sess.Credential())
		}
	})

	debounce := d.Config.UI.SearchDebounce
	return Model{
		cfg:       d.Config,
		sess:      sess,
		router:    d.Router,
		feed:      feed,
		http:      d.HTTP,
		queue:     d.Queue,
		now:       d.Now,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		statusBar: status.New(),
		login:     login.New(ctx, d.HTTP),
		register:  register.New(ctx, d.HTTP),
		dashboard: dashboard.New(ctx, d.HTTP),
		signals:   signals.New(ctx, d.HTTP, debounce),
		positions: positions.New(ctx, d.HTTP),
		settings:  settings.New(ctx, d.HTTP),
		feedLog:   feedlog.New(),
	}
}

// Init restores a persisted session and starts listening to the feed.
func (m Model) Init() tea.Cmd {
	s := m.sess.RestoreFromStorage()
	if s.Authenticated {
		m.router.Navigate(nav.Dashboard)
		return tea.Batch(m.feed.Next(m.ctx), m.dashboard.Refresh())
	}
	m.router.Navigate(nav.Login)
	return m.feed.Next(m.ctx)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.dashboard.Width = msg.Width
		m.login.SetWidth(msg.Width)
		m.register.SetWidth(msg.Width)
		body := m.bodyHeight()
		m.signals.SetSize(msg.Width, body)
		m.positions.SetSize(msg.Width, body)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case nav.NavigateMsg:
		return m.navigate(msg.View)

	case login.ResultMsg:
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		if msg.Err != nil {
			log.Info().Err(msg.Err).Msg("app: login failed")
			return m, cmd
		}
		before := m.router.Current()
		if err := m.sess.Login(msg.Token); err != nil {
			log.Warn().Err(err).Msg("app: server issued an unusable credential")
			m.login.SetError(login.FailedText)
			return m, cmd
		}
		m.reconnectAttempt = 0
		enter := m.afterTransition(before)
		return m, tea.Batch(cmd, enter)

	case notify.ExpireMsg:
		m.queue.Prune(m.now())
		return m, nil

	case reconnectMsg:
		return m.handleReconnect(msg)

	case client.FeedOpenedMsg:
		if !m.feed.IsCurrent(msg.Gen) {
			return m, m.feed.Next(m.ctx)
		}
		m.feedLog.Add(feedlog.KindLifecycle, msg.Gen, "connected")
		m.reconnectAttempt = 0
		m.retrying = false
		return m, tea.Batch(m.feed.Next(m.ctx), m.queue.PushCmd(notify.MsgFeedConnected, notify.Success))

	case client.FeedEventMsg:
		if !m.feed.IsCurrent(msg.Gen) {
			return m, m.feed.Next(m.ctx)
		}
		text, sev, ok := notify.Classify(msg.Event)
		if !ok {
			m.feedLog.Add(feedlog.KindDropped, msg.Gen, fmt.Sprintf("unclassified event %T", msg.Event))
			return m, m.feed.Next(m.ctx)
		}
		m.feedLog.Add(feedlog.KindEvent, msg.Gen, text)
		return m, tea.Batch(m.feed.Next(m.ctx), m.queue.PushCmd(text, sev))

	case client.FeedDiagnosticMsg:
		if m.feed.IsCurrent(msg.Gen) {
			m.feedLog.Add(feedlog.KindDropped, msg.Gen, msg.Text)
		}
		return m, m.feed.Next(m.ctx)

	case client.FeedErrorMsg:
		if !m.feed.IsCurrent(msg.Gen) {
			return m, m.feed.Next(m.ctx)
		}
		m.feedLog.Add(feedlog.KindError, msg.Gen, msg.Err.Error())
		return m, tea.Batch(m.feed.Next(m.ctx), m.queue.PushCmd(notify.MsgFeedError, notify.Error))

	case client.FeedClosedMsg:
		return m.handleFeedClosed(msg)
	}

	if f, ok := msg.(failure); ok && client.IsUnauthorized(f.Failed()) {
		log.Warn().Err(f.Failed()).Msg("app: credential rejected, logging out")
		return m.forceLogout()
	}
	return m.broadcast(msg)
}

func (m Model) handleFeedClosed(msg client.FeedClosedMsg) (tea.Model, tea.Cmd) {
	next := m.feed.Next(m.ctx)
	if !m.feed.IsCurrent(msg.Gen) {
		return m, next
	}
	text := "closed"
	if msg.Err != nil {
		text = "closed: " + msg.Err.Error()
	}
	m.feedLog.Add(feedlog.KindLifecycle, msg.Gen, text)

	if client.IsRejected(msg.Err) {
		log.Warn().Uint64("gen", msg.Gen).Msg("app: feed rejected credential, logging out")
		model, cmd := m.forceLogout()
		return model, tea.Batch(next, cmd)
	}
	if !m.cfg.Feed.Reconnect || !m.sess.IsAuthenticated() {
		return m, next
	}

	delay := client.ReconnectDelay(m.reconnectAttempt, m.cfg.Feed.ReconnectBaseDelay, m.cfg.Feed.ReconnectMaxDelay)
	m.reconnectAttempt++
	m.retrying = true
	gen := msg.Gen
	log.Info().Dur("delay", delay).Int("attempt", m.reconnectAttempt).Msg("app: scheduling feed reconnect")
	return m, tea.Batch(next, tea.Tick(delay, func(time.Time) tea.Msg {
		return reconnectMsg{gen: gen}
	}))
}

func (m Model) handleReconnect(msg reconnectMsg) (tea.Model, tea.Cmd) {
	// A newer connection or a logout since scheduling wins.
	if !m.feed.IsCurrent(msg.gen) || !m.sess.IsAuthenticated() {
		m.retrying = false
		return m, nil
	}
	m.reconnect()
	return m, nil
}

func (m *Model) reconnect() {
	if !m.sess.IsAuthenticated() {
		return
	}
	if m.feed.Open(m.sess.Credential()) {
		m.feedLog.Add(feedlog.KindLifecycle, m.feed.Generation(), "reconnecting")
	}
}

// forceLogout handles the CredentialInvalid path.
func (m Model) forceLogout() (tea.Model, tea.Cmd) {
	before := m.router.Current()
	m.sess.Logout()
	m.login.Reset()
	m.retrying = false
	m.reconnectAttempt = 0
	cmd := m.afterTransition(before)
	return m, cmd
}

// afterTransition refreshes the view the session manager navigated to.
func (m *Model) afterTransition(before nav.View) tea.Cmd {
	if m.router.Current() == before {
		return nil
	}
	return m.enterView(m.router.Current())
}

// navigate switches views, keeping unauthenticated users on public views
// and authenticated users off them.
func (m Model) navigate(v nav.View) (tea.Model, tea.Cmd) {
	authed := m.sess.IsAuthenticated()
	switch {
	case !authed && !v.Public():
		v = nav.Login
	case authed && v.Public():
		v = nav.Dashboard
	}
	if v == m.router.Current() {
		return m, nil
	}
	m.router.Navigate(v)
	cmd := m.enterView(v)
	return m, cmd
}

// enterView prepares v after it becomes current.
func (m *Model) enterView(v nav.View) tea.Cmd {
	m.showFeedLog = false
	switch v {
	case nav.Login:
		m.login.Reset()
	case nav.Register:
		m.register = register.New(m.ctx, m.http)
		m.register.SetWidth(m.width)
	case nav.Dashboard:
		return m.dashboard.Refresh()
	case nav.Signals:
		return m.signals.Refresh()
	case nav.Positions:
		return m.positions.Refresh()
	case nav.Settings:
		return m.settings.Refresh()
	}
	return nil
}

// broadcast forwards a non-key message to every view; each view ignores
// what it does not own.
func (m Model) broadcast(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmds := make([]tea.Cmd, 0, 6)
	var cmd tea.Cmd
	m.login, cmd = m.login.Update(msg)
	cmds = append(cmds, cmd)
	m.register, cmd = m.register.Update(msg)
	cmds = append(cmds, cmd)
	m.dashboard, cmd = m.dashboard.Update(msg)
	cmds = append(cmds, cmd)
	m.signals, cmd = m.signals.Update(msg)
	cmds = append(cmds, cmd)
	m.positions, cmd = m.positions.Update(msg)
	cmds = append(cmds, cmd)
	m.settings, cmd = m.settings.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// typing reports whether the current view has a text field or prompt that
// should receive plain keys.
func (m Model) typing() bool {
	switch m.router.Current() {
	case nav.Login, nav.Register:
		return true
	case nav.Signals:
		return m.signals.Typing()
	case nav.Positions:
		return m.positions.Confirming()
	case nav.Settings:
		return m.settings.Typing()
	}
	return false
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m.quit()
	}

	if m.showFeedLog {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.FeedLog):
			m.showFeedLog = false
		case key.Matches(msg, m.keys.Up):
			m.feedLog.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.feedLog.ScrollDown(1)
		}
		return m, nil
	}

	if !m.typing() {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		case key.Matches(msg, m.keys.Dismiss):
			if n, ok := m.queue.Newest(); ok {
				m.queue.Dismiss(n.ID)
			}
			return m, nil
		case key.Matches(msg, m.keys.FeedLog):
			m.showFeedLog = true
			return m, nil
		}

		if m.sess.IsAuthenticated() {
			switch {
			case key.Matches(msg, m.keys.NextView):
				return m.navigate(m.router.Next())
			case key.Matches(msg, m.keys.View1):
				return m.navigate(nav.Dashboard)
			case key.Matches(msg, m.keys.View2):
				return m.navigate(nav.Signals)
			case key.Matches(msg, m.keys.View3):
				return m.navigate(nav.Positions)
			case key.Matches(msg, m.keys.View4):
				return m.navigate(nav.Settings)
			case key.Matches(msg, m.keys.Logout):
				before := m.router.Current()
				m.sess.Logout()
				m.retrying = false
				cmd := m.afterTransition(before)
				return m, cmd
			case key.Matches(msg, m.keys.Reconnect):
				m.reconnectAttempt = 0
				m.reconnect()
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	switch m.router.Current() {
	case nav.Login:
		m.login, cmd = m.login.Update(msg)
	case nav.Register:
		m.register, cmd = m.register.Update(msg)
	case nav.Dashboard:
		m.dashboard, cmd = m.dashboard.Update(msg)
	case nav.Signals:
		m.signals, cmd = m.signals.Update(msg)
	case nav.Positions:
		m.positions, cmd = m.positions.Update(msg)
	case nav.Settings:
		m.settings, cmd = m.settings.Update(msg)
	}
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.feed.Close()
	m.cancel()
	return m, tea.Quit
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	m.statusBar.Current = m.router.Current()
	m.statusBar.User = m.sess.CurrentSession().Subject
	m.statusBar.FeedState = m.feed.State().String()
	m.statusBar.Retrying = m.retrying

	var body string
	if m.showFeedLog {
		body = m.feedLog.View(m.width, m.bodyHeight())
	} else {
		body = m.viewBody()
	}

	sections := []string{m.statusBar.View(), body}
	if t := toast.View(m.queue.List(), m.width); t != "" {
		sections = append(sections, t)
	}
	sections = append(sections, theme.StyleDimmed.Render(m.helpLine()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) viewBody() string {
	switch m.router.Current() {
	case nav.Register:
		return m.register.View()
	case nav.Dashboard:
		return m.dashboard.View()
	case nav.Signals:
		return m.signals.View()
	case nav.Positions:
		return m.positions.View()
	case nav.Settings:
		return m.settings.View()
	default:
		return m.login.View()
	}
}

func (m Model) helpLine() string {
	if !m.sess.IsAuthenticated() {
		return "  ctrl+c:quit"
	}
	return "  tab/1-4:view  x:dismiss  d:feed log  r:reconnect  L:logout  q:quit"
}

// bodyHeight is the space left for a view below the status bar and above
// the help line.
func (m Model) bodyHeight() int {
	return max(m.height-5, 5)
}
