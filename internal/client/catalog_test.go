package client

import "testing"

func TestSetField_RoundTrip(t *testing.T) {
	var cfg Configuration
	for _, f := range ConfigFields {
		var v string
		switch f.Kind {
		case KindBool:
			v = "true"
		case KindInt:
			v = "3"
		case KindFloat:
			v = "12.5"
		}
		if err := SetField(&cfg, f.Key, v); err != nil {
			t.Fatalf("SetField(%s): %v", f.Key, err)
		}
		if got := FieldValue(cfg, f.Key); got != v {
			t.Errorf("FieldValue(%s) = %q, want %q", f.Key, got, v)
		}
	}
}

func TestSetField_Validation(t *testing.T) {
	var cfg Configuration
	cases := []struct{ key, value string }{
		{"usdt_per_trade", "abc"},
		{"usdt_per_trade", "0.5"},
		{"signal_validity_minutes", "1.5"},
		{"signal_validity_minutes", "0"},
		{"trailing_enabled", "maybe"},
		{"no_such_key", "1"},
	}
	for _, c := range cases {
		if err := SetField(&cfg, c.key, c.value); err == nil {
			t.Errorf("SetField(%s, %q) accepted", c.key, c.value)
		}
	}
}

func TestSetField_EmptyClears(t *testing.T) {
	var cfg Configuration
	SetField(&cfg, "stuck_trade_duration_hours", "4")
	if err := SetField(&cfg, "stuck_trade_duration_hours", " "); err != nil {
		t.Fatal(err)
	}
	if cfg.StuckTradeDurationHours != nil {
		t.Error("field not cleared")
	}
}

func TestDiff(t *testing.T) {
	var a Configuration
	SetField(&a, "usdt_per_trade", "10")
	SetField(&a, "stuck_trade_enabled", "false")
	b := a
	if d := Diff(a, b); len(d) != 0 {
		t.Fatalf("Diff of equal configs = %v", d)
	}

	SetField(&b, "stuck_trade_enabled", "true")
	SetField(&b, "min_trailing_tp_level", "2")
	d := Diff(a, b)
	if len(d) != 2 || d["stuck_trade_enabled"] != true || d["min_trailing_tp_level"] != 2 {
		t.Errorf("Diff = %#v", d)
	}
}
