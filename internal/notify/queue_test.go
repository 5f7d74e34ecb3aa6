package notify

import (
	"testing"
	"time"

	"github.com/tradebot/dashboard/internal/client"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestQueue() (*Queue, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	return NewQueue(WithClock(clk.Now)), clk
}

func TestPush_ExpiresAfterTTL(t *testing.T) {
	q, clk := newTestQueue()
	q.Push("Trade Opened: BTCUSDT @ 43210.5000", Info)

	list := q.List()
	if len(list) != 1 || list[0].Message != "Trade Opened: BTCUSDT @ 43210.5000" || list[0].Severity != Info {
		t.Fatalf("list = %+v", list)
	}

	clk.Advance(4999 * time.Millisecond)
	if removed := q.Prune(clk.Now()); len(removed) != 0 {
		t.Errorf("pruned early: %v", removed)
	}
	clk.Advance(time.Millisecond)
	q.Prune(clk.Now())
	if q.Len() != 0 {
		t.Errorf("after 5000ms len = %d, want 0", q.Len())
	}
}

func TestList_PushOrder(t *testing.T) {
	q, clk := newTestQueue()
	var ids []int64
	for _, m := range []string{"a", "b", "c", "d"} {
		ids = append(ids, q.Push(m, Info))
		clk.Advance(time.Second)
	}

	got := q.List()
	for i, m := range []string{"a", "b", "c", "d"} {
		if got[i].Message != m || got[i].ID != ids[i] {
			t.Errorf("list[%d] = %+v", i, got[i])
		}
	}

	// "a" pushed at t0 expires at t0+5s; "b" at t0+6s.
	clk.Advance(time.Second) // t0+5s
	if removed := q.Prune(clk.Now()); len(removed) != 1 || removed[0] != ids[0] {
		t.Errorf("removed = %v", removed)
	}
	if q.List()[0].Message != "b" {
		t.Errorf("head = %q", q.List()[0].Message)
	}
}

func TestIDs_UniqueWithinSameMillisecond(t *testing.T) {
	q, _ := newTestQueue()
	a := q.Push("a", Info)
	b := q.Push("b", Info)
	c := q.Push("c", Info)
	if !(a < b && b < c) {
		t.Errorf("ids not increasing: %d %d %d", a, b, c)
	}
}

func TestDismiss_ExactlyOnce(t *testing.T) {
	q, clk := newTestQueue()
	a := q.Push("a", Info)
	b := q.Push("b", Success)

	if !q.Dismiss(a) {
		t.Fatal("first Dismiss returned false")
	}
	if q.Dismiss(a) {
		t.Error("second Dismiss returned true")
	}
	if q.Len() != 1 || q.List()[0].ID != b {
		t.Fatalf("unrelated entry affected: %+v", q.List())
	}

	// The TTL firing for a dismissed id must not touch anything else.
	clk.Advance(TTL)
	removed := q.Prune(clk.Now())
	if len(removed) != 1 || removed[0] != b {
		t.Errorf("removed = %v, want [%d]", removed, b)
	}
	if q.Dismiss(b) {
		t.Error("Dismiss after expiry returned true")
	}
}

func TestNextExpiry_SkipsDismissed(t *testing.T) {
	q, clk := newTestQueue()
	start := clk.Now()
	a := q.Push("a", Info)
	clk.Advance(time.Second)
	q.Push("b", Info)

	q.Dismiss(a)
	at, ok := q.NextExpiry()
	if !ok || !at.Equal(start.Add(time.Second+TTL)) {
		t.Errorf("NextExpiry = %v %v", at, ok)
	}

	q.Clear()
	if _, ok := q.NextExpiry(); ok {
		t.Error("NextExpiry on empty queue")
	}
}

func TestList_IsCopy(t *testing.T) {
	q, _ := newTestQueue()
	q.Push("a", Info)
	l := q.List()
	l[0].Message = "mutated"
	if q.List()[0].Message != "a" {
		t.Error("List exposed internal storage")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		ev      client.FeedEvent
		msg     string
		sev     Severity
		produce bool
	}{
		{"opened", client.TradeOpened{Symbol: "BTCUSDT", EntryPrice: 43210.5}, "Trade Opened: BTCUSDT @ 43210.5000", Info, true},
		{"closed loss", client.TradeClosed{Symbol: "ETHUSDT", NetProfitLoss: -12.34}, "Trade Closed: ETHUSDT | P/L: -$12.34", Error, true},
		{"closed gain", client.TradeClosed{Symbol: "SOLUSDT", NetProfitLoss: 1500}, "Trade Closed: SOLUSDT | P/L: $1,500.00", Success, true},
		{"closed flat", client.TradeClosed{Symbol: "XRPUSDT", NetProfitLoss: 0}, "Trade Closed: XRPUSDT | P/L: $0.00", Success, true},
		{"closed tiny loss", client.TradeClosed{Symbol: "ADAUSDT", NetProfitLoss: -0.001}, "Trade Closed: ADAUSDT | P/L: -$0.00", Error, true},
		{"opened tie", client.TradeOpened{Symbol: "DOGEUSDT", EntryPrice: 1.00005}, "Trade Opened: DOGEUSDT @ 1.0000", Info, true},
		{"nil", nil, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, sev, ok := Classify(tt.ev)
			if ok != tt.produce || msg != tt.msg || sev != tt.sev {
				t.Errorf("Classify = (%q, %q, %v), want (%q, %q, %v)", msg, sev, ok, tt.msg, tt.sev, tt.produce)
			}
		})
	}
}

func TestSchedule_FiresExpireMsg(t *testing.T) {
	q := NewQueue(WithTTL(10 * time.Millisecond))
	id := q.Push("x", Info)
	msg := q.Schedule(id)()
	if em, ok := msg.(ExpireMsg); !ok || em.ID != id {
		t.Errorf("msg = %#v", msg)
	}
}
