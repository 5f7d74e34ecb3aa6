// Package client provides the REST client and the realtime feed client for
// the trading bot backend. Types mirror the backend wire format.
package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MessageType identifies the kind of feed envelope.
type MessageType string

const (
	MsgTradeOpened MessageType = "TRADE_OPENED"
	MsgTradeClosed MessageType = "TRADE_CLOSED"
)

// Envelope wraps every frame on the feed.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// FeedEvent is one of TradeOpened or TradeClosed.
type FeedEvent interface {
	feedEvent()
}

// TradeOpened is sent when the bot enters a position.
type TradeOpened struct {
	Symbol     string  `json:"symbol"`
	EntryPrice float64 `json:"entry_price"`
}

// TradeClosed is sent when a position is exited.
type TradeClosed struct {
	Symbol        string  `json:"symbol"`
	NetProfitLoss float64 `json:"net_profit_loss"`
}

func (TradeOpened) feedEvent() {}
func (TradeClosed) feedEvent() {}

// --- REST types ---

// Token is returned by POST /auth/login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Configuration is the bot configuration. Every field is optional on the
// wire; nil means "not set".
type Configuration struct {
	UserID                    string     `json:"user_id,omitempty"`
	UpdatedAt                 *Timestamp `json:"updated_at,omitempty"`
	UsdtPerTrade              *float64   `json:"usdt_per_trade"`
	TrailingEnabled           *bool      `json:"trailing_enabled"`
	MinTrailingTPLevel        *int       `json:"min_trailing_tp_level"`
	TrailingTriggerPercentage *float64   `json:"trailing_trigger_percentage"`
	StuckTradeEnabled         *bool      `json:"stuck_trade_enabled"`
	StuckTradeDurationHours   *int       `json:"stuck_trade_duration_hours"`
	PrioritizeNormalRisk      *bool      `json:"prioritize_normal_risk"`
	FilterOldSignalsEnabled   *bool      `json:"filter_old_signals_enabled"`
	SignalValidityMinutes     *int       `json:"signal_validity_minutes"`
}

// DashboardSummary is returned by GET /dashboard/summary.
type DashboardSummary struct {
	TotalNetPL            float64  `json:"total_net_pl"`
	TotalTradesClosed     int      `json:"total_trades_closed"`
	WinningTrades         int      `json:"winning_trades"`
	LosingTrades          int      `json:"losing_trades"`
	WinRate               float64  `json:"win_rate"`
	CurrentPortfolioValue *float64 `json:"current_portfolio_value"`
	PortfolioError        *string  `json:"portfolio_error"`
}

// Trade statuses.
const (
	StatusActive       = "ACTIVE"
	StatusClosedTP     = "CLOSED_TP"
	StatusClosedSL     = "CLOSED_SL"
	StatusClosedManual = "CLOSED_MANUAL"
)

// HistoryStatuses are the statuses shown on the history tab.
var HistoryStatuses = []string{StatusClosedTP, StatusClosedSL, StatusClosedManual}

// Trade is a position opened by the bot.
type Trade struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	SignalID      string     `json:"signal_id"`
	Symbol        string     `json:"symbol"`
	Status        string     `json:"status"`
	EntryPrice    *float64   `json:"entry_price"`
	ExitPrice     *float64   `json:"exit_price"`
	Quantity      *float64   `json:"quantity"`
	BuyFee        *float64   `json:"buy_fee"`
	SellFee       *float64   `json:"sell_fee"`
	NetProfitLoss *float64   `json:"net_profit_loss"`
	OpenedAt      Timestamp  `json:"opened_at"`
	ClosedAt      *Timestamp `json:"closed_at,omitempty"`
}

// UnmarshalJSON accepts both "id" and the backend's "_id" alias.
func (t *Trade) UnmarshalJSON(data []byte) error {
	type Alias Trade
	aux := &struct {
		MongoID string `json:"_id"`
		*Alias
	}{Alias: (*Alias)(t)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = aux.MongoID
	}
	return nil
}

// Signal is a trade idea parsed from a signal channel.
type Signal struct {
	ID         string           `json:"id"`
	CoinPair   string           `json:"coin_pair"`
	RiskLevel  *string          `json:"risk_level"`
	EntryPrice *float64         `json:"entry_price"`
	Targets    []map[string]any `json:"targets"`
	StopLosses []map[string]any `json:"stop_losses"`
	Timestamp  Timestamp        `json:"timestamp"`
}

// UnmarshalJSON accepts both "id" and the backend's "_id" alias.
func (s *Signal) UnmarshalJSON(data []byte) error {
	type Alias Signal
	aux := &struct {
		MongoID string `json:"_id"`
		*Alias
	}{Alias: (*Alias)(s)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = aux.MongoID
	}
	return nil
}

// Risk returns the risk level or "" when unset.
func (s Signal) Risk() string {
	if s.RiskLevel == nil {
		return ""
	}
	return *s.RiskLevel
}

// SignalFilter narrows GET /signals.
type SignalFilter struct {
	RiskLevel string
	Search    string
}

// Timestamp parses RFC 3339 as well as the zone-less ISO 8601 the backend
// emits, which is taken as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}
