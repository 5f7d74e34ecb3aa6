// Package notify holds the short-lived toast notifications shown over the
// dashboard and the classifier that turns feed events into them.
package notify

import (
	"container/heap"
	"time"
)

// TTL is how long a notification stays visible.
const TTL = 5 * time.Second

// Severity selects a notification's colour.
type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Error   Severity = "error"
)

// Notification is one toast.
type Notification struct {
	ID        int64
	Message   string
	Severity  Severity
	CreatedAt time.Time
}

// Queue keeps live notifications in push order and removes each exactly
// once, by Dismiss or when its deadline passes. It is not safe for
// concurrent use; the UI loop owns it.
type Queue struct {
	ttl   time.Duration
	now   func() time.Time
	items []Notification
	live  map[int64]struct{}
	due   deadlines
	last  int64
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithTTL overrides the display duration.
func WithTTL(d time.Duration) Option {
	return func(q *Queue) { q.ttl = d }
}

// NewQueue creates an empty queue.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{ttl: TTL, now: time.Now, live: make(map[int64]struct{})}
	for _, o := range opts {
		o(q)
	}
	return q
}

// TTL returns the display duration.
func (q *Queue) TTL() time.Duration { return q.ttl }

// Push appends a notification and returns its id. Ids are the push time in
// milliseconds, bumped when needed to stay strictly increasing.
func (q *Queue) Push(message string, sev Severity) int64 {
	now := q.now()
	id := now.UnixMilli()
	if id <= q.last {
		id = q.last + 1
	}
	q.last = id

	q.items = append(q.items, Notification{ID: id, Message: message, Severity: sev, CreatedAt: now})
	q.live[id] = struct{}{}
	heap.Push(&q.due, deadline{id: id, at: now.Add(q.ttl)})
	return id
}

// Dismiss removes id if it is still live. It reports whether anything was
// removed; repeated calls are no-ops.
func (q *Queue) Dismiss(id int64) bool {
	if _, ok := q.live[id]; !ok {
		return false
	}
	delete(q.live, id)
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	// The heap entry stays behind and is skipped by Prune.
	return true
}

// Prune removes every notification whose deadline is at or before now and
// returns their ids.
func (q *Queue) Prune(now time.Time) []int64 {
	var removed []int64
	for q.due.Len() > 0 && !q.due[0].at.After(now) {
		d := heap.Pop(&q.due).(deadline)
		if q.Dismiss(d.id) {
			removed = append(removed, d.id)
		}
	}
	return removed
}

// NextExpiry returns the earliest pending deadline of a live entry.
func (q *Queue) NextExpiry() (time.Time, bool) {
	for q.due.Len() > 0 {
		if _, ok := q.live[q.due[0].id]; ok {
			return q.due[0].at, true
		}
		heap.Pop(&q.due)
	}
	return time.Time{}, false
}

// List returns a copy of the live notifications in push order.
func (q *Queue) List() []Notification {
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of live notifications.
func (q *Queue) Len() int { return len(q.items) }

// Newest returns the most recently pushed live notification.
func (q *Queue) Newest() (Notification, bool) {
	if len(q.items) == 0 {
		return Notification{}, false
	}
	return q.items[len(q.items)-1], true
}

// Clear drops every notification.
func (q *Queue) Clear() {
	q.items = nil
	q.live = make(map[int64]struct{})
	q.due = nil
}

type deadline struct {
	id int64
	at time.Time
}

// deadlines is a min-heap ordered by time, then id.
type deadlines []deadline

func (d deadlines) Len() int { return len(d) }
func (d deadlines) Less(i, j int) bool {
	if d[i].at.Equal(d[j].at) {
		return d[i].id < d[j].id
	}
	return d[i].at.Before(d[j].at)
}
func (d deadlines) Swap(i, j int) { d[i], d[j] = d[j], d[i] }
func (d *deadlines) Push(x any)   { *d = append(*d, x.(deadline)) }
func (d *deadlines) Pop() any {
	old := *d
	n := len(old)
	x := old[n-1]
	*d = old[:n-1]
	return x
}
