package notify

import (
	"github.com/tradebot/dashboard/internal/client"
	"github.com/tradebot/dashboard/internal/format"
)

// Connectivity toasts.
const (
	MsgFeedConnected = "Connected to real-time feed!"
	MsgFeedError     = "Real-time feed error"
)

// Classify maps a feed event to the toast it should raise. ok is false for
// events that produce no toast.
func Classify(ev client.FeedEvent) (message string, sev Severity, ok bool) {
	switch e := ev.(type) {
	case client.TradeOpened:
		return "Trade Opened: " + e.Symbol + " @ " + format.Price(e.EntryPrice, 4), Info, true
	case client.TradeClosed:
		sev := Success
		if e.NetProfitLoss < 0 {
			sev = Error
		}
		return "Trade Closed: " + e.Symbol + " | P/L: " + format.Currency(e.NetProfitLoss), sev, true
	}
	return "", "", false
}
