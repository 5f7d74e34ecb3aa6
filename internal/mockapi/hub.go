package mockapi

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tradebot/dashboard/internal/client"
)

const (
	writeWait   = 10 * time.Second
	sendBufSize = 64
)

// ErrTooManyConnections is returned by Add when a user already holds the
// maximum number of feed connections.
var ErrTooManyConnections = errors.New("too many feed connections")

type feedConn struct {
	conn *websocket.Conn
	user string
	hub  *Hub
	send chan []byte
	once sync.Once
}

func (c *feedConn) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.Remove(c)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.hub.Remove(c)
				return
			}
		}
	}
}

func (c *feedConn) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans feed envelopes out to each user's open connections.
type Hub struct {
	mu           sync.RWMutex
	conns        map[string]map[*feedConn]struct{}
	maxPerUser   int
	pingInterval time.Duration
}

// NewHub creates a hub. maxPerUser <= 0 means unlimited.
func NewHub(maxPerUser int, pingInterval time.Duration) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Hub{
		conns:        make(map[string]map[*feedConn]struct{}),
		maxPerUser:   maxPerUser,
		pingInterval: pingInterval,
	}
}

// Add registers conn for user and starts its write pump.
func (h *Hub) Add(user string, conn *websocket.Conn) (*feedConn, error) {
	h.mu.Lock()
	set := h.conns[user]
	if h.maxPerUser > 0 && len(set) >= h.maxPerUser {
		h.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	if set == nil {
		set = make(map[*feedConn]struct{})
		h.conns[user] = set
	}
	c := &feedConn{conn: conn, user: user, hub: h, send: make(chan []byte, sendBufSize)}
	set[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump(h.pingInterval)
	log.Debug().Str("user", user).Msg("feed: client connected")
	return c, nil
}

// Remove unregisters c. It is safe to call more than once.
func (h *Hub) Remove(c *feedConn) {
	h.mu.Lock()
	if set, ok := h.conns[c.user]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			c.close()
			log.Debug().Str("user", c.user).Msg("feed: client disconnected")
		}
		if len(set) == 0 {
			delete(h.conns, c.user)
		}
	}
	h.mu.Unlock()
}

// Send delivers an event to every connection of user and returns how many
// connections it was queued on.
func (h *Hub) Send(user string, typ client.MessageType, data any) int {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("feed: marshal event")
		return 0
	}
	frame, err := json.Marshal(client.Envelope{Type: typ, Data: payload})
	if err != nil {
		log.Error().Err(err).Msg("feed: marshal envelope")
		return 0
	}
	return h.SendRaw(user, frame)
}

// SendRaw queues an already encoded frame for user.
func (h *Hub) SendRaw(user string, frame []byte) int {
	h.mu.RLock()
	targets := make([]*feedConn, 0, len(h.conns[user]))
	for c := range h.conns[user] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		select {
		case c.send <- frame:
			sent++
		default:
			log.Warn().Str("user", user).Msg("feed: client too slow, disconnecting")
			h.Remove(c)
		}
	}
	return sent
}

// Users returns the users with at least one open connection.
func (h *Hub) Users() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]string, 0, len(h.conns))
	for u := range h.conns {
		users = append(users, u)
	}
	return users
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}

// CloseAll disconnects every client with a going-away close frame.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := h.conns
	h.conns = make(map[string]map[*feedConn]struct{})
	h.mu.Unlock()
	for _, set := range all {
		for c := range set {
			c.close()
		}
	}
}
