package mockapi

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradebot/dashboard/internal/client"
)

var (
	ErrUserExists     = errors.New("email already registered")
	ErrUnknownUser    = errors.New("unknown user")
	ErrBadCredentials = errors.New("incorrect username or password")
	ErrTradeNotFound  = errors.New("trade not found")
	ErrTradeNotActive = errors.New("trade is not active")
	ErrSignalNotFound = errors.New("signal not found")
)

// Starting balance used for the simulated portfolio value.
var startingBalance = decimal.NewFromInt(1000)

// feeRate is charged on both legs of a trade.
var feeRate = decimal.RequireFromString("0.001")

type account struct {
	email     string
	hash      []byte
	config    client.Configuration
	apiKey    string
	apiSecret string
}

// Store is the mock backend's in-memory state.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[string]*account
	signals  []client.Signal
	trades   map[string][]*client.Trade
}

// NewStore creates a store seeded with demo signals.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:      now,
		accounts: make(map[string]*account),
		signals:  seedSignals(now()),
		trades:   make(map[string][]*client.Trade),
	}
}

func defaultConfiguration(email string) client.Configuration {
	usdt, trigger := 20.0, 1.5
	minTP, stuckHours, validity := 2, 48, 30
	off, on := false, true
	return client.Configuration{
		UserID:                    email,
		UsdtPerTrade:              &usdt,
		TrailingEnabled:           &off,
		MinTrailingTPLevel:        &minTP,
		TrailingTriggerPercentage: &trigger,
		StuckTradeEnabled:         &off,
		StuckTradeDurationHours:   &stuckHours,
		PrioritizeNormalRisk:      &on,
		FilterOldSignalsEnabled:   &on,
		SignalValidityMinutes:     &validity,
	}
}

// Register creates an account.
func (s *Store) Register(email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[email]; ok {
		return ErrUserExists
	}
	s.accounts[email] = &account{email: email, hash: hash, config: defaultConfiguration(email)}
	return nil
}

// Authenticate checks a password and returns the canonical email.
func (s *Store) Authenticate(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	acc, ok := s.accounts[email]
	s.mu.Unlock()
	if !ok {
		return "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	return email, nil
}

// Exists reports whether email has an account.
func (s *Store) Exists(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[email]
	return ok
}

// Configuration returns a copy of the user's configuration.
func (s *Store) Configuration(email string) (client.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[email]
	if !ok {
		return client.Configuration{}, ErrUnknownUser
	}
	return acc.config, nil
}

// UpdateConfiguration stores cfg for the user and stamps it.
func (s *Store) UpdateConfiguration(email string, cfg client.Configuration) (client.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[email]
	if !ok {
		return client.Configuration{}, ErrUnknownUser
	}
	cfg.UserID = email
	cfg.UpdatedAt = &client.Timestamp{Time: s.now()}
	acc.config = cfg
	return cfg, nil
}

// SetBinanceKeys stores the exchange credentials.
func (s *Store) SetBinanceKeys(email, key, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[email]
	if !ok {
		return ErrUnknownUser
	}
	acc.apiKey, acc.apiSecret = key, secret
	return nil
}

// Signals returns seeded signals matching the filter, newest first.
func (s *Store) Signals(f client.SignalFilter) []client.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	search := strings.ToLower(f.Search)
	var out []client.Signal
	for _, sig := range s.signals {
		if f.RiskLevel != "" && !strings.EqualFold(sig.Risk(), f.RiskLevel) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(sig.CoinPair), search) {
			continue
		}
		out = append(out, sig)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp.Time) })
	return out
}

// Signal looks up one signal.
func (s *Store) Signal(id string) (client.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range s.signals {
		if sig.ID == id {
			return sig, nil
		}
	}
	return client.Signal{}, ErrSignalNotFound
}

// AnySignal returns the signal at index i modulo the number of signals.
func (s *Store) AnySignal(i int) client.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 {
		i = -i
	}
	return s.signals[i%len(s.signals)]
}

// Trades returns the user's trades, filtered by status when set.
func (s *Store) Trades(email, status string) []client.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []client.Trade
	for _, t := range s.trades[email] {
		if status == "" || t.Status == status {
			out = append(out, *t)
		}
	}
	return out
}

// OpenTrade opens a position sized from the user's usdt_per_trade.
func (s *Store) OpenTrade(email, signalID, symbol string, entry float64) (client.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[email]
	if !ok {
		return client.Trade{}, ErrUnknownUser
	}
	usdt := decimal.NewFromInt(20)
	if acc.config.UsdtPerTrade != nil {
		usdt = decimal.NewFromFloat(*acc.config.UsdtPerTrade)
	}
	price := decimal.NewFromFloat(entry)
	qty := usdt.DivRound(price, 8)
	buyFee := usdt.Mul(feeRate).Round(8)

	t := &client.Trade{
		ID:         uuid.NewString(),
		UserID:     email,
		SignalID:   signalID,
		Symbol:     symbol,
		Status:     client.StatusActive,
		EntryPrice: ptr(entry),
		Quantity:   ptr(qty.InexactFloat64()),
		BuyFee:     ptr(buyFee.InexactFloat64()),
		OpenedAt:   client.Timestamp{Time: s.now()},
	}
	s.trades[email] = append(s.trades[email], t)
	return *t, nil
}

// CloseTrade exits an active position at exit with the given closed
// status and books its net P/L.
func (s *Store) CloseTrade(email, id string, exit float64, status string) (client.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trades[email] {
		if t.ID != id {
			continue
		}
		if t.Status != client.StatusActive {
			return client.Trade{}, ErrTradeNotActive
		}
		net, sellFee := settle(*t.EntryPrice, exit, *t.Quantity, *t.BuyFee)
		now := client.Timestamp{Time: s.now()}
		t.Status = status
		t.ExitPrice = ptr(exit)
		t.SellFee = ptr(sellFee)
		t.NetProfitLoss = ptr(net)
		t.ClosedAt = &now
		return *t, nil
	}
	return client.Trade{}, ErrTradeNotFound
}

// settle computes net P/L after fees and the sell-side fee.
func settle(entry, exit, qty, buyFee float64) (net, sellFee float64) {
	q := decimal.NewFromFloat(qty)
	proceeds := decimal.NewFromFloat(exit).Mul(q)
	cost := decimal.NewFromFloat(entry).Mul(q)
	fee := proceeds.Mul(feeRate)
	pl := proceeds.Sub(cost).Sub(fee).Sub(decimal.NewFromFloat(buyFee))
	return pl.Round(8).InexactFloat64(), fee.Round(8).InexactFloat64()
}

// Summary aggregates closed trades into the dashboard summary.
func (s *Store) Summary(email string) (client.DashboardSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[email]
	if !ok {
		return client.DashboardSummary{}, ErrUnknownUser
	}

	total := decimal.Zero
	var out client.DashboardSummary
	for _, t := range s.trades[email] {
		if t.Status == client.StatusActive || t.NetProfitLoss == nil {
			continue
		}
		pl := decimal.NewFromFloat(*t.NetProfitLoss)
		total = total.Add(pl)
		out.TotalTradesClosed++
		if pl.IsPositive() {
			out.WinningTrades++
		} else {
			out.LosingTrades++
		}
	}
	out.TotalNetPL = total.Round(2).InexactFloat64()
	if out.TotalTradesClosed > 0 {
		out.WinRate = decimal.NewFromInt(int64(out.WinningTrades)).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(int64(out.TotalTradesClosed)), 2).
			InexactFloat64()
	}
	if acc.apiKey == "" {
		msg := "Binance API keys not configured"
		out.PortfolioError = &msg
	} else {
		out.CurrentPortfolioValue = ptr(startingBalance.Add(total).Round(2).InexactFloat64())
	}
	return out, nil
}

func ptr[T any](v T) *T { return &v }

func seedSignals(now time.Time) []client.Signal {
	type seed struct {
		pair  string
		risk  string
		entry float64
		age   time.Duration
	}
	seeds := []seed{
		{"BTCUSDT", "Normal", 64250.5, 5 * time.Minute},
		{"ETHUSDT", "Normal", 3150.25, 20 * time.Minute},
		{"SOLUSDT", "High", 142.5, 45 * time.Minute},
		{"DOGEUSDT", "Very High", 0.1625, 2 * time.Hour},
		{"ADAUSDT", "High", 0.4531, 6 * time.Hour},
		{"XRPUSDT", "Normal", 0.5912, 26 * time.Hour},
	}
	out := make([]client.Signal, 0, len(seeds))
	for _, sd := range seeds {
		risk := sd.risk
		e := decimal.NewFromFloat(sd.entry)
		level := func(pct string) float64 {
			return e.Mul(decimal.RequireFromString(pct)).Round(6).InexactFloat64()
		}
		out = append(out, client.Signal{
			ID:         uuid.NewString(),
			CoinPair:   sd.pair,
			RiskLevel:  &risk,
			EntryPrice: ptr(sd.entry),
			Targets: []map[string]any{
				{"level": 1, "price": level("1.01")},
				{"level": 2, "price": level("1.025")},
				{"level": 3, "price": level("1.05")},
			},
			StopLosses: []map[string]any{
				{"level": 1, "price": level("0.97")},
			},
			Timestamp: client.Timestamp{Time: now.Add(-sd.age)},
		})
	}
	return out
}
