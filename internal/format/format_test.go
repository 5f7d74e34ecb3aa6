package format

import (
	"testing"
	"time"
)

func TestCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{-12.34, "-$12.34"},
		{12.345, "$12.35"},
		{1234.5, "$1,234.50"},
		{-1234567.891, "-$1,234,567.89"},
		{999.999, "$1,000.00"},
		{-0.001, "-$0.00"},
		{-0.005, "-$0.01"},
	}
	for _, tt := range tests {
		if got := Currency(tt.in); got != tt.want {
			t.Errorf("Currency(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCurrencyPtr(t *testing.T) {
	if got := CurrencyPtr(nil); got != NotAvailable {
		t.Errorf("CurrencyPtr(nil) = %q", got)
	}
	v := 5.0
	if got := CurrencyPtr(&v); got != "$5.00" {
		t.Errorf("CurrencyPtr(5) = %q", got)
	}
}

func TestPrice(t *testing.T) {
	if got := Price(43210.5, 4); got != "43210.5000" {
		t.Errorf("Price = %q", got)
	}
	if got := Price(0.00012345, 4); got != "0.0001" {
		t.Errorf("Price small = %q", got)
	}
	if got := Price(1.00005, 4); got != "1.0000" {
		t.Errorf("Price tie = %q", got)
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(62.5); got != "62.50%" {
		t.Errorf("Percent = %q", got)
	}
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "30 seconds ago"},
		{5 * time.Minute, "5 minutes ago"},
		{3 * time.Hour, "3 hours ago"},
		{50 * time.Hour, "2 days ago"},
		{-time.Minute, "0 seconds ago"},
	}
	for _, tt := range tests {
		if got := TimeAgo(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("TimeAgo(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestDateZero(t *testing.T) {
	if got := Date(time.Time{}); got != NotAvailable {
		t.Errorf("Date(zero) = %q", got)
	}
}
