// Package nav names the dashboard's views and tracks which one is shown.
package nav

import tea "github.com/charmbracelet/bubbletea"

// View identifies a top-level screen.
type View string

const (
	Login     View = "login"
	Register  View = "register"
	Dashboard View = "dashboard"
	Signals   View = "signals"
	Positions View = "positions"
	Settings  View = "settings"
)

// Authenticated lists the views reachable after login, in tab order.
var Authenticated = []View{Dashboard, Signals, Positions, Settings}

// Public reports whether v is reachable without a session.
func (v View) Public() bool {
	return v == Login || v == Register
}

// Title returns the header label for v.
func (v View) Title() string {
	switch v {
	case Login:
		return "Login"
	case Register:
		return "Register"
	case Dashboard:
		return "Dashboard"
	case Signals:
		return "Signals"
	case Positions:
		return "Positions"
	case Settings:
		return "Settings"
	}
	return string(v)
}

// Router holds the current view. It starts on the login view.
type Router struct {
	current View
}

func NewRouter() *Router {
	return &Router{current: Login}
}

// Navigate switches to v.
func (r *Router) Navigate(v View) {
	r.current = v
}

// Current returns the view being shown.
func (r *Router) Current() View {
	return r.current
}

// Next returns the authenticated view after the current one, wrapping.
func (r *Router) Next() View {
	for i, v := range Authenticated {
		if v == r.current {
			return Authenticated[(i+1)%len(Authenticated)]
		}
	}
	return Dashboard
}

// NavigateMsg asks the app to switch views.
type NavigateMsg struct{ View View }

// To returns a command that requests a switch to v.
func To(v View) tea.Cmd {
	return func() tea.Msg { return NavigateMsg{View: v} }
}
