package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 60 * time.Second
	writeTimeout        = 10 * time.Second
	inboxSize           = 64
)

// FeedState is the lifecycle state of the feed connection.
type FeedState int

const (
	FeedIdle FeedState = iota
	FeedConnecting
	FeedOpen
	FeedClosed
)

func (s FeedState) String() string {
	switch s {
	case FeedConnecting:
		return "connecting"
	case FeedOpen:
		return "open"
	case FeedClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Conn is the subset of *websocket.Conn the feed uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// DialFunc opens a feed connection to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// DefaultDial dials with gorilla's default dialer.
func DefaultDial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// FeedOptions configures a FeedClient. Zero values pick defaults.
type FeedOptions struct {
	URL          string
	PingInterval time.Duration
	PongTimeout  time.Duration
	Dial         DialFunc
}

// --- Bubble Tea messages ---
//
// Every message carries the generation of the connection that produced it.
// Messages from a generation other than the current one must be ignored.

// FeedOpenedMsg is sent once the connection is established.
type FeedOpenedMsg struct{ Gen uint64 }

// FeedEventMsg delivers a decoded, recognised feed event.
type FeedEventMsg struct {
	Gen   uint64
	Event FeedEvent
}

// FeedErrorMsg reports a connection-level error.
type FeedErrorMsg struct {
	Gen uint64
	Err error
}

// FeedClosedMsg is sent when the connection ends for any reason other
// than Close.
type FeedClosedMsg struct {
	Gen uint64
	Err error
}

// FeedDiagnosticMsg reports a frame that was dropped: undecodable or of an
// unknown type.
type FeedDiagnosticMsg struct {
	Gen  uint64
	Text string
}

type generational interface{ generation() uint64 }

func (m FeedOpenedMsg) generation() uint64     { return m.Gen }
func (m FeedEventMsg) generation() uint64      { return m.Gen }
func (m FeedErrorMsg) generation() uint64      { return m.Gen }
func (m FeedClosedMsg) generation() uint64     { return m.Gen }
func (m FeedDiagnosticMsg) generation() uint64 { return m.Gen }

// FeedClient holds at most one live connection to the user feed. Each Open
// starts a new generation; Close bumps the generation before releasing the
// connection so nothing the old connection produces is delivered.
type FeedClient struct {
	opts  FeedOptions
	inbox chan tea.Msg

	mu     sync.Mutex
	gen    uint64
	state  FeedState
	conn   Conn
	cancel context.CancelFunc
}

// NewFeedClient creates an idle feed client.
func NewFeedClient(opts FeedOptions) *FeedClient {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = defaultPongTimeout
	}
	if opts.Dial == nil {
		opts.Dial = DefaultDial
	}
	return &FeedClient{opts: opts, inbox: make(chan tea.Msg, inboxSize)}
}

// Open starts connecting with the given credential. It returns false and
// does nothing when a connection is already connecting or open.
func (c *FeedClient) Open(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == FeedConnecting || c.state == FeedOpen {
		log.Warn().Uint64("gen", c.gen).Str("state", c.state.String()).Msg("feed: open ignored, already active")
		return false
	}

	target, err := withToken(c.opts.URL, token)
	if err != nil {
		log.Error().Err(err).Msg("feed: bad url")
		return false
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	c.state = FeedConnecting
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx, c.gen, target)
	return true
}

// Close tears down the current connection, if any. After Close returns no
// message from that connection reaches Next, including messages queued
// before the connection dropped on its own.
func (c *FeedClient) Close() {
	c.mu.Lock()
	if c.state == FeedIdle {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.state = FeedClosed
	conn := c.conn
	c.conn = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "logout")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		conn.Close()
	}
	log.Info().Msg("feed: closed")
}

// State returns the current lifecycle state.
func (c *FeedClient) State() FeedState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Generation returns the current connection generation.
func (c *FeedClient) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// IsCurrent reports whether gen is the current generation.
func (c *FeedClient) IsCurrent(gen uint64) bool {
	return c.Generation() == gen
}

// Next returns a command that waits for the next message from the current
// connection. Keep exactly one Next outstanding and reissue it after each
// feed message is handled.
func (c *FeedClient) Next(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg := <-c.inbox:
				if g, ok := msg.(generational); ok && !c.IsCurrent(g.generation()) {
					continue
				}
				return msg
			}
		}
	}
}

func (c *FeedClient) run(ctx context.Context, gen uint64, target string) {
	conn, err := c.opts.Dial(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Uint64("gen", gen).Msg("feed: dial failed")
		c.finish(gen)
		c.emit(ctx, gen, FeedErrorMsg{Gen: gen, Err: err})
		c.emit(ctx, gen, FeedClosedMsg{Gen: gen, Err: err})
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.state = FeedOpen
	c.mu.Unlock()

	log.Info().Uint64("gen", gen).Msg("feed: connected")
	c.emit(ctx, gen, FeedOpenedMsg{Gen: gen})

	go c.pingLoop(ctx, conn)
	c.readLoop(ctx, gen, conn)
}

func (c *FeedClient) readLoop(ctx context.Context, gen uint64, conn Conn) {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.finish(gen)
			conn.Close()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info().Uint64("gen", gen).Msg("feed: closed by server")
				c.emit(ctx, gen, FeedClosedMsg{Gen: gen})
				return
			}
			log.Warn().Err(err).Uint64("gen", gen).Msg("feed: connection lost")
			c.emit(ctx, gen, FeedErrorMsg{Gen: gen, Err: err})
			c.emit(ctx, gen, FeedClosedMsg{Gen: gen, Err: err})
			return
		}

		ev, err := DecodeFrame(data)
		switch {
		case err != nil:
			log.Warn().Err(err).Uint64("gen", gen).Int("bytes", len(data)).Msg("feed: dropping frame")
			c.emit(ctx, gen, FeedDiagnosticMsg{Gen: gen, Text: err.Error()})
		case ev == nil:
			log.Debug().Uint64("gen", gen).Msg("feed: ignoring unknown event type")
			c.emit(ctx, gen, FeedDiagnosticMsg{Gen: gen, Text: "unknown event type: " + frameType(data)})
		default:
			c.emit(ctx, gen, FeedEventMsg{Gen: gen, Event: ev})
		}
	}
}

// pingLoop sends periodic pings on conn until ctx is cancelled or a write
// fails.
func (c *FeedClient) pingLoop(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// finish marks generation gen closed if it is still current.
func (c *FeedClient) finish(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.state = FeedClosed
	c.conn = nil
}

// emit queues msg for Next unless gen has been superseded.
func (c *FeedClient) emit(ctx context.Context, gen uint64, msg tea.Msg) {
	if !c.IsCurrent(gen) {
		return
	}
	select {
	case c.inbox <- msg:
	case <-ctx.Done():
	}
}

// IsRejected reports whether the server closed the feed because it did not
// accept the credential.
func IsRejected(err error) bool {
	return websocket.IsCloseError(err, websocket.ClosePolicyViolation)
}

// DecodeFrame decodes one feed envelope. Unknown event types yield a nil
// event and no error; malformed frames wrap ErrDecode.
func DecodeFrame(data []byte) (FeedEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrDecode)
	}

	switch env.Type {
	case MsgTradeOpened:
		var ev TradeOpened
		if err := decodeData(env.Data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case MsgTradeClosed:
		var ev TradeClosed
		if err := decodeData(env.Data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	}
	return nil, nil
}

func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrDecode)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func frameType(data []byte) string {
	var env Envelope
	_ = json.Unmarshal(data, &env)
	return string(env.Type)
}

// withToken appends the credential as the token query parameter.
func withToken(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ReconnectDelay returns the backoff before reconnect attempt n (0-based):
// base doubled n times, capped at max.
func ReconnectDelay(n int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < n; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
