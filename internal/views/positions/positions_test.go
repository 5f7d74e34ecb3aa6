package positions

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tradebot/dashboard/internal/client"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func ptr[T any](v T) *T { return &v }

func activeTrades() []client.Trade {
	return []client.Trade{
		{ID: "t1", Symbol: "BTCUSDT", Status: client.StatusActive, EntryPrice: ptr(100.0), Quantity: ptr(0.5),
			OpenedAt: client.Timestamp{Time: time.Date(2026, 5, 4, 9, 30, 0, 0, time.Local)}},
		{ID: "t2", Symbol: "ETHUSDT", EntryPrice: ptr(10.0)},
	}
}

func TestRowsActive(t *testing.T) {
	r := rows(TabActive, activeTrades())
	if len(r) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(r))
	}
	want := []string{"BTCUSDT", "ACTIVE", "$100.00", "0.5", "04 May 2026, 09:30"}
	for i, w := range want {
		if r[0][i] != w {
			t.Errorf("column %d: expected %q, got %q", i, w, r[0][i])
		}
	}
	if r[1][1] != "UNKNOWN" || r[1][3] != "N/A" || r[1][4] != "N/A" {
		t.Errorf("missing values row = %v", r[1])
	}
	if len(r[0]) != len(columns(TabActive)) {
		t.Errorf("row width %d does not match columns %d", len(r[0]), len(columns(TabActive)))
	}
}

func TestRowsHistory(t *testing.T) {
	r := rows(TabHistory, []client.Trade{
		{Symbol: "BTCUSDT", Status: client.StatusClosedTP, EntryPrice: ptr(100.0), ExitPrice: ptr(110.0), NetProfitLoss: ptr(9.79)},
		{Symbol: "ETHUSDT", Status: client.StatusClosedManual},
	})
	if r[0][4] != "$110.00" || r[0][5] != "$9.79" {
		t.Errorf("closed row = %v", r[0])
	}
	if r[1][5] != "Pending" {
		t.Errorf("expected Pending P/L, got %q", r[1][5])
	}
	if len(r[0]) != len(columns(TabHistory)) {
		t.Errorf("row width %d does not match columns %d", len(r[0]), len(columns(TabHistory)))
	}
}

func TestSwitchTab(t *testing.T) {
	m := New(nil, nil)
	m, _ = m.Update(LoadedMsg{Tab: TabActive, Trades: activeTrades()})

	m, cmd := m.Update(runes("l"))
	if cmd == nil {
		t.Fatal("expected a refresh command")
	}
	if m.Tab() != TabHistory {
		t.Fatalf("expected history tab, got %v", m.Tab())
	}

	// A late response for the previous tab is ignored.
	m, _ = m.Update(LoadedMsg{Tab: TabActive, Trades: activeTrades()})
	if len(m.trades) != 0 {
		t.Errorf("expected stale load to be dropped, got %d trades", len(m.trades))
	}
	if !strings.Contains(m.View(), "Loading positions...") {
		t.Errorf("expected loading view, got %q", m.View())
	}
}

func TestCloseConfirmation(t *testing.T) {
	m := New(nil, nil)
	m, _ = m.Update(LoadedMsg{Tab: TabActive, Trades: activeTrades()})

	m, _ = m.Update(runes("c"))
	if !m.Confirming() {
		t.Fatal("expected a pending confirmation")
	}
	if !strings.Contains(m.View(), "Manually close BTCUSDT?") {
		t.Errorf("expected confirmation prompt, got %q", m.View())
	}

	cancelled, cmd := m.Update(runes("n"))
	if cancelled.Confirming() || cmd != nil {
		t.Error("n should cancel without a request")
	}

	confirmed, cmd := m.Update(runes("y"))
	if confirmed.Confirming() {
		t.Error("y should clear the confirmation")
	}
	if cmd == nil {
		t.Fatal("expected a close command")
	}
	if confirmed.status != "Closing..." {
		t.Errorf("status = %q", confirmed.status)
	}
}

func TestCloseOnlyOnActiveTab(t *testing.T) {
	m := New(nil, nil)
	m, _ = m.Update(runes("l"))
	m, _ = m.Update(LoadedMsg{Tab: TabHistory, Trades: activeTrades()})
	m, _ = m.Update(runes("c"))
	if m.Confirming() {
		t.Error("history rows cannot be closed")
	}
}

func TestClosedResult(t *testing.T) {
	m := New(nil, nil)
	failed, _ := m.Update(ClosedMsg{TradeID: "t1", Err: &client.RequestError{Status: 400, Detail: "Trade is not active"}})
	if failed.status != "Trade is not active" {
		t.Errorf("status = %q", failed.status)
	}

	generic, _ := m.Update(ClosedMsg{TradeID: "t1", Err: errors.New("network")})
	if generic.status != closeErrText {
		t.Errorf("status = %q", generic.status)
	}

	ok, cmd := m.Update(ClosedMsg{TradeID: "t1"})
	if ok.status != "Position closed." || cmd == nil {
		t.Errorf("expected success status and a refresh, got %q", ok.status)
	}
}

func TestEmptyAndErrorViews(t *testing.T) {
	m := New(nil, nil)
	empty, _ := m.Update(LoadedMsg{Tab: TabActive})
	if !strings.Contains(empty.View(), "No positions found.") {
		t.Errorf("view = %q", empty.View())
	}
	failed, _ := m.Update(LoadedMsg{Tab: TabActive, Err: errors.New("boom")})
	if !strings.Contains(failed.View(), loadErrText) {
		t.Errorf("view = %q", failed.View())
	}
}
