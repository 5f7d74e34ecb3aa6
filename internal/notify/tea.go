package notify

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ExpireMsg is delivered when a notification's display time is up.
type ExpireMsg struct{ ID int64 }

// Schedule returns a command that fires ExpireMsg for id after the queue's
// TTL. Handle it with Prune so a dismissed entry is not removed twice.
func (q *Queue) Schedule(id int64) tea.Cmd {
	return tea.Tick(q.ttl, func(time.Time) tea.Msg {
		return ExpireMsg{ID: id}
	})
}

// PushCmd pushes a notification and returns its expiry command.
func (q *Queue) PushCmd(message string, sev Severity) tea.Cmd {
	return q.Schedule(q.Push(message, sev))
}
