// Package format renders money, prices and times the way the dashboard
// shows them.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NotAvailable is shown for missing values.
const NotAvailable = "N/A"

// Currency formats v as US dollars: 1234.5 → "$1,234.50", -12.34 → "-$12.34".
// A loss that rounds to zero keeps its sign: -0.001 → "-$0.00".
func Currency(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
	}
	s := decimal.NewFromFloat(v).Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	return sign + "$" + group(whole) + "." + frac
}

// CurrencyPtr formats an optional amount.
func CurrencyPtr(v *float64) string {
	if v == nil {
		return NotAvailable
	}
	return Currency(*v)
}

// Price formats v with a fixed number of decimals: Price(43210.5, 4) → "43210.5000".
// Ties round on the exact binary value, so 1.00005 → "1.0000".
func Price(v float64, places int32) string {
	return strconv.FormatFloat(v, 'f', int(places), 64)
}

// Percent formats an already-scaled percentage: 62.5 → "62.50%".
func Percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// Date formats t as "04 May 2026, 09:30"; zero times render as N/A.
func Date(t time.Time) string {
	if t.IsZero() {
		return NotAvailable
	}
	return t.Local().Format("02 Jan 2006, 15:04")
}

// TimeAgo renders the coarse age of t relative to now ("3 hours ago").
func TimeAgo(t, now time.Time) string {
	secs := now.Sub(t).Seconds()
	units := []struct {
		name string
		size float64
	}{
		{"years", 31536000},
		{"months", 2592000},
		{"days", 86400},
		{"hours", 3600},
		{"minutes", 60},
	}
	for _, u := range units {
		if n := secs / u.size; n > 1 {
			return fmt.Sprintf("%d %s ago", int(n), u.name)
		}
	}
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d seconds ago", int(secs))
}

// group inserts thousands separators into a string of digits.
func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
