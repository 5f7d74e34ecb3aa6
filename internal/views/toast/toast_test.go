package toast

import (
	"fmt"
	"strings"
	"testing"

	"github.com/tradebot/dashboard/internal/notify"
)

func TestViewEmpty(t *testing.T) {
	if got := View(nil, 80); got != "" {
		t.Errorf("expected empty view, got %q", got)
	}
}

func TestViewKeepsNewest(t *testing.T) {
	var items []notify.Notification
	for i := 1; i <= MaxVisible+2; i++ {
		items = append(items, notify.Notification{ID: int64(i), Message: fmt.Sprintf("toast-%d", i), Severity: notify.Info})
	}
	out := View(items, 100)
	for _, gone := range []string{"toast-1", "toast-2"} {
		if strings.Contains(out, gone) {
			t.Errorf("expected %q to be dropped", gone)
		}
	}
	if !strings.Contains(out, fmt.Sprintf("toast-%d", MaxVisible+2)) {
		t.Error("expected the newest toast")
	}
}

func TestViewOrder(t *testing.T) {
	out := View([]notify.Notification{
		{ID: 1, Message: "first", Severity: notify.Success},
		{ID: 2, Message: "second", Severity: notify.Error},
	}, 0)
	if strings.Index(out, "first") > strings.Index(out, "second") {
		t.Errorf("expected oldest first:\n%s", out)
	}
}
