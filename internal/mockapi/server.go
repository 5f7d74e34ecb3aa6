// Package mockapi is an in-memory stand-in for the trading bot backend:
// the REST API under /api/v1, the per-user realtime feed and a scheduler
// that simulates trades.
package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/tradebot/dashboard/internal/client"
)

const (
	minPasswordLen = 8
	minKeyLen      = 10
)

// Options configures a Server. Zero values pick defaults.
type Options struct {
	Secret   []byte
	TokenTTL time.Duration
	Now      func() time.Time
	// Rand drives simulated exit prices for manual closes.
	Rand *rand.Rand
}

// Server serves the mock API.
type Server struct {
	echo     *echo.Echo
	store    *Store
	hub      *Hub
	opts     Options
	rng      *lockedRand
	upgrader websocket.Upgrader
}

// New wires the routes.
func New(store *Store, hub *Hub, opts Options) *Server {
	if len(opts.Secret) == 0 {
		opts.Secret = []byte("mock-backend-secret")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	s := &Server{echo: e, store: store, hub: hub, opts: opts, rng: &lockedRand{r: opts.Rand}}
	s.routes()
	return s
}

func (s *Server) now() time.Time { return s.opts.Now() }

// Handler returns the HTTP handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("mock backend listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes feed connections and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	return s.echo.Shutdown(ctx)
}

func (s *Server) routes() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	}))

	api := s.echo.Group("/api/v1")
	api.POST("/auth/login", s.login)
	api.POST("/auth/register", s.register)
	api.GET("/ws/user-feed", s.feed)

	authed := api.Group("", s.requireAuth)
	authed.GET("/configurations", s.getConfiguration)
	authed.PUT("/configurations", s.updateConfiguration)
	authed.GET("/dashboard/summary", s.summary)
	authed.GET("/trades", s.listTrades)
	authed.POST("/trades/activate", s.activate)
	authed.POST("/trades/:id/close-manual", s.closeManual)
	authed.GET("/signals", s.listSignals)
	authed.PUT("/users/me/binance-keys", s.binanceKeys)
}

// errorHandler renders every error as {"detail": ...}.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var detail any = "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		detail = he.Message
	} else {
		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	}
	if err := c.JSON(code, map[string]any{"detail": detail}); err != nil {
		log.Error().Err(err).Msg("writing error response")
	}
}

// validationError mimics a field validation failure: a list of {loc, msg}.
func validationError(field, msg string) error {
	return echo.NewHTTPError(http.StatusUnprocessableEntity, []map[string]any{
		{"loc": []string{"body", field}, "msg": msg, "type": "value_error"},
	})
}

func (s *Server) login(c echo.Context) error {
	email, err := s.store.Authenticate(c.FormValue("username"), c.FormValue("password"))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
	}
	tok, err := s.issue(email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, client.Token{AccessToken: tok, TokenType: "bearer"})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Email == "" {
		return validationError("email", "field required")
	}
	if len(req.Password) < minPasswordLen {
		return validationError("password", "Password must be at least 8 characters long")
	}
	if err := s.store.Register(req.Email, req.Password); err != nil {
		if errors.Is(err, ErrUserExists) {
			return echo.NewHTTPError(http.StatusBadRequest, "Email already registered")
		}
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"email": req.Email})
}

func (s *Server) getConfiguration(c echo.Context) error {
	cfg, err := s.store.Configuration(currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) updateConfiguration(c echo.Context) error {
	user := currentUser(c)
	cfg, err := s.store.Configuration(user)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	// Unmarshalling onto the stored copy applies only the keys present.
	if err := json.Unmarshal(body, &cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid configuration")
	}
	if cfg.UsdtPerTrade != nil && *cfg.UsdtPerTrade < 1 {
		return validationError("usdt_per_trade", "must be at least 1")
	}
	saved, err := s.store.UpdateConfiguration(user, cfg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) summary(c echo.Context) error {
	sum, err := s.store.Summary(currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}

func (s *Server) listTrades(c echo.Context) error {
	trades := s.store.Trades(currentUser(c), c.QueryParam("status"))
	if trades == nil {
		trades = []client.Trade{}
	}
	return c.JSON(http.StatusOK, trades)
}

type activateRequest struct {
	SignalID string `json:"signal_id"`
}

func (s *Server) activate(c echo.Context) error {
	var req activateRequest
	if err := c.Bind(&req); err != nil || req.SignalID == "" {
		return validationError("signal_id", "field required")
	}
	sig, err := s.store.Signal(req.SignalID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Signal not found")
	}
	entry := 1.0
	if sig.EntryPrice != nil {
		entry = *sig.EntryPrice
	}
	user := currentUser(c)
	tr, err := s.store.OpenTrade(user, sig.ID, sig.CoinPair, entry)
	if err != nil {
		return err
	}
	s.hub.Send(user, client.MsgTradeOpened, client.TradeOpened{Symbol: tr.Symbol, EntryPrice: entry})
	return c.JSON(http.StatusOK, map[string]string{"message": "Signal activated", "trade_id": tr.ID})
}

func (s *Server) closeManual(c echo.Context) error {
	user := currentUser(c)
	id := c.Param("id")
	var entry float64
	for _, t := range s.store.Trades(user, client.StatusActive) {
		if t.ID == id && t.EntryPrice != nil {
			entry = *t.EntryPrice
		}
	}
	tr, err := s.store.CloseTrade(user, id, drift(s.rng, entry), client.StatusClosedManual)
	switch {
	case errors.Is(err, ErrTradeNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Trade not found")
	case errors.Is(err, ErrTradeNotActive):
		return echo.NewHTTPError(http.StatusBadRequest, "Trade is not active")
	case err != nil:
		return err
	}
	s.hub.Send(user, client.MsgTradeClosed, client.TradeClosed{Symbol: tr.Symbol, NetProfitLoss: *tr.NetProfitLoss})
	return c.JSON(http.StatusOK, tr)
}

func (s *Server) listSignals(c echo.Context) error {
	sigs := s.store.Signals(client.SignalFilter{
		RiskLevel: c.QueryParam("risk_level"),
		Search:    c.QueryParam("search"),
	})
	if sigs == nil {
		sigs = []client.Signal{}
	}
	return c.JSON(http.StatusOK, sigs)
}

type keysRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

func (s *Server) binanceKeys(c echo.Context) error {
	var req keysRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if len(req.APIKey) < minKeyLen {
		return validationError("api_key", "ensure this value has at least 10 characters")
	}
	if len(req.APISecret) < minKeyLen {
		return validationError("api_secret", "ensure this value has at least 10 characters")
	}
	if err := s.store.SetBinanceKeys(currentUser(c), req.APIKey, req.APISecret); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Binance API keys updated"})
}

// feed upgrades first so a bad credential can be refused with a policy
// violation close code the client can tell apart from a network failure.
func (s *Server) feed(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warn().Err(err).Msg("feed: upgrade failed")
		return nil
	}

	user, err := s.verify(c.QueryParam("token"))
	if err != nil {
		log.Info().Err(err).Msg("feed: rejecting connection")
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
		return nil
	}

	fc, err := s.hub.Add(user, conn)
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
		return nil
	}
	defer s.hub.Remove(fc)

	// The client never sends data; reading services pings and notices close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
