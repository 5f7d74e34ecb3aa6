package mockapi

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradebot/dashboard/internal/client"
	"github.com/tradebot/dashboard/internal/credential"
)

const (
	testEmail    = "trader@example.com"
	testPassword = "hunter2hunter2"
)

type tokenHolder struct {
	mu  sync.Mutex
	tok string
}

func (h *tokenHolder) Credential() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tok
}

func (h *tokenHolder) set(tok string) {
	h.mu.Lock()
	h.tok = tok
	h.mu.Unlock()
}

type fixture struct {
	srv   *httptest.Server
	store *Store
	hub   *Hub
	api   *client.HTTPClient
	creds *tokenHolder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewStore(nil)
	hub := NewHub(2, time.Hour)
	s := New(store, hub, Options{Secret: []byte("test-secret"), Rand: rand.New(rand.NewSource(1))})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	creds := &tokenHolder{}
	return &fixture{
		srv:   srv,
		store: store,
		hub:   hub,
		api:   client.NewHTTPClient(srv.URL+"/api/v1", creds, 2*time.Second, 0),
		creds: creds,
	}
}

// signIn registers the test user and stores its credential.
func (f *fixture) signIn(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	if err := f.api.Register(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("register: %v", err)
	}
	tok, err := f.api.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	f.creds.set(tok)
	return tok
}

func (f *fixture) dialFeed(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/ws/user-feed?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *fixture) waitConnected(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d connections, want %d", f.hub.Count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) client.FeedEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read feed: %v", err)
	}
	ev, err := client.DecodeFrame(data)
	if err != nil || ev == nil {
		t.Fatalf("decode %s: ev=%v err=%v", data, ev, err)
	}
	return ev
}

func TestRegisterAndLoginIssueCredential(t *testing.T) {
	f := newFixture(t)
	tok := f.signIn(t)

	claims, err := credential.Validate(tok, time.Now())
	if err != nil {
		t.Fatalf("issued credential invalid: %v", err)
	}
	if claims.Subject != testEmail {
		t.Errorf("subject = %q, want %q", claims.Subject, testEmail)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	err := f.api.Register(context.Background(), testEmail, testPassword)
	if err == nil {
		t.Fatal("expected an error for a duplicate email")
	}
	if got := client.Message(err, "fallback"); got != "Email already registered" {
		t.Errorf("message = %q", got)
	}
}

func TestRegisterShortPasswordReturnsValidationList(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Post(f.srv.URL+"/api/v1/auth/register", "application/json",
		strings.NewReader(`{"email":"a@b.c","password":"short"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	_, err := f.api.Login(context.Background(), testEmail, "wrong-password")
	if !client.IsUnauthorized(err) {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestProtectedRoutesNeedCredential(t *testing.T) {
	f := newFixture(t)
	_, err := f.api.GetConfiguration(context.Background())
	if !client.IsUnauthorized(err) {
		t.Errorf("expected 401 without a credential, got %v", err)
	}

	f.creds.set("not-a-jwt")
	_, err = f.api.GetDashboardSummary(context.Background())
	if !client.IsUnauthorized(err) {
		t.Errorf("expected 401 for a bad credential, got %v", err)
	}
}

func TestUpdateConfigurationAppliesOnlyChanges(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	before, err := f.api.GetConfiguration(ctx)
	if err != nil {
		t.Fatal(err)
	}
	after, err := f.api.UpdateConfiguration(ctx, map[string]any{
		"usdt_per_trade":          50.0,
		"signal_validity_minutes": nil,
	})
	if err != nil {
		t.Fatal(err)
	}
	if after.UsdtPerTrade == nil || *after.UsdtPerTrade != 50 {
		t.Errorf("usdt_per_trade = %v", after.UsdtPerTrade)
	}
	if after.SignalValidityMinutes != nil {
		t.Error("null should clear signal_validity_minutes")
	}
	if *after.MinTrailingTPLevel != *before.MinTrailingTPLevel {
		t.Error("untouched fields must keep their values")
	}
	if after.UpdatedAt == nil {
		t.Error("saved configuration should be stamped")
	}
}

func TestSignalsFilter(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	high, err := f.api.ListSignals(ctx, client.SignalFilter{RiskLevel: "High"})
	if err != nil {
		t.Fatal(err)
	}
	if len(high) == 0 {
		t.Fatal("expected high risk signals")
	}
	for _, s := range high {
		if s.Risk() != "High" {
			t.Errorf("%s has risk %q", s.CoinPair, s.Risk())
		}
	}

	btc, err := f.api.ListSignals(ctx, client.SignalFilter{Search: "btc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(btc) != 1 || btc[0].CoinPair != "BTCUSDT" {
		t.Errorf("search btc = %+v", btc)
	}
}

func TestActivateThenCloseManual(t *testing.T) {
	f := newFixture(t)
	tok := f.signIn(t)
	ctx := context.Background()
	conn := f.dialFeed(t, tok)
	f.waitConnected(t, 1)

	sigs, err := f.api.ListSignals(ctx, client.SignalFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.api.ActivateSignal(ctx, sigs[0].ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := readEvent(t, conn).(client.TradeOpened); !ok {
		t.Error("activation should push TRADE_OPENED")
	}

	active, err := f.api.ListPositions(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active trade, got %d", len(active))
	}

	if err := f.api.CloseTradeManual(ctx, active[0].ID); err != nil {
		t.Fatal(err)
	}
	closed, ok := readEvent(t, conn).(client.TradeClosed)
	if !ok {
		t.Fatal("manual close should push TRADE_CLOSED")
	}
	if closed.Symbol != active[0].Symbol {
		t.Errorf("closed symbol = %s, want %s", closed.Symbol, active[0].Symbol)
	}

	history, err := f.api.ListPositions(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Status != client.StatusClosedManual {
		t.Errorf("history = %+v", history)
	}

	err = f.api.CloseTradeManual(ctx, active[0].ID)
	if got := client.Message(err, ""); got != "Trade is not active" {
		t.Errorf("second close message = %q", got)
	}
}

func TestActivateUnknownSignal(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	err := f.api.ActivateSignal(context.Background(), "missing")
	if got := client.Message(err, ""); got != "Signal not found" {
		t.Errorf("message = %q", got)
	}
}

func TestSummaryNeedsBinanceKeysForPortfolio(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	sum, err := f.api.GetDashboardSummary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.PortfolioError == nil || sum.CurrentPortfolioValue != nil {
		t.Errorf("without keys: %+v", sum)
	}

	if err := f.api.UpdateBinanceKeys(ctx, "abcdefghij", "0123456789"); err != nil {
		t.Fatal(err)
	}
	sum, err = f.api.GetDashboardSummary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.CurrentPortfolioValue == nil {
		t.Error("portfolio value should be reported once keys are set")
	}
}

func TestFeedRejectsBadToken(t *testing.T) {
	f := newFixture(t)
	conn := f.dialFeed(t, "bogus")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !client.IsRejected(err) {
		t.Errorf("expected a policy violation close, got %v", err)
	}
}

func TestFeedConnectionLimit(t *testing.T) {
	f := newFixture(t)
	tok := f.signIn(t)
	f.dialFeed(t, tok)
	f.dialFeed(t, tok)
	f.waitConnected(t, 2)

	third := f.dialFeed(t, tok)
	_ = third.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := third.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Errorf("expected try-again-later close, got %v", err)
	}
	if f.hub.Count() != 2 {
		t.Errorf("hub count = %d, want 2", f.hub.Count())
	}
}

func TestSimulatorOpensThenCloses(t *testing.T) {
	f := newFixture(t)
	tok := f.signIn(t)
	conn := f.dialFeed(t, tok)
	f.waitConnected(t, 1)

	sim := NewSimulator(f.store, f.hub, "", rand.New(rand.NewSource(7)))
	sim.Step()
	if _, ok := readEvent(t, conn).(client.TradeOpened); !ok {
		t.Fatal("first step with no open trades should open one")
	}

	for i := 0; i < maxOpenPerUser; i++ {
		sim.Step()
		readEvent(t, conn)
	}
	if n := len(f.store.Trades(testEmail, client.StatusActive)); n > maxOpenPerUser {
		t.Errorf("%d open trades exceed the cap", n)
	}
}

func TestSimulatorSkipsDisconnectedUsers(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	NewSimulator(f.store, f.hub, "", nil).Step()
	if n := len(f.store.Trades(testEmail, "")); n != 0 {
		t.Errorf("simulated %d trades for an offline user", n)
	}
}

func TestSettleChargesFeesBothWays(t *testing.T) {
	net, sellFee := settle(100, 110, 1, 0.1)
	if sellFee != 0.11 {
		t.Errorf("sell fee = %v, want 0.11", sellFee)
	}
	if net != 9.79 {
		t.Errorf("net = %v, want 9.79", net)
	}
}
