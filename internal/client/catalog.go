package client

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldKind is the value type of a configuration field.
type FieldKind int

const (
	KindFloat FieldKind = iota
	KindInt
	KindBool
)

// ConfigField describes one editable bot configuration setting.
type ConfigField struct {
	Key   string
	Label string
	Kind  FieldKind
	Min   float64
}

// ConfigFields lists the configuration settings in display order.
var ConfigFields = []ConfigField{
	{Key: "usdt_per_trade", Label: "USDT per trade", Kind: KindFloat, Min: 1},
	{Key: "trailing_enabled", Label: "Trailing take-profit", Kind: KindBool},
	{Key: "min_trailing_tp_level", Label: "Min trailing TP level", Kind: KindInt, Min: 1},
	{Key: "trailing_trigger_percentage", Label: "Trailing trigger %", Kind: KindFloat, Min: 0},
	{Key: "stuck_trade_enabled", Label: "Close stuck trades", Kind: KindBool},
	{Key: "stuck_trade_duration_hours", Label: "Stuck after (hours)", Kind: KindInt, Min: 1},
	{Key: "prioritize_normal_risk", Label: "Prioritize normal risk", Kind: KindBool},
	{Key: "filter_old_signals_enabled", Label: "Filter old signals", Kind: KindBool},
	{Key: "signal_validity_minutes", Label: "Signal validity (min)", Kind: KindInt, Min: 1},
}

// FieldValue renders the current value of key, or "" when unset.
func FieldValue(cfg Configuration, key string) string {
	switch key {
	case "usdt_per_trade":
		return fmtFloat(cfg.UsdtPerTrade)
	case "trailing_enabled":
		return fmtBool(cfg.TrailingEnabled)
	case "min_trailing_tp_level":
		return fmtInt(cfg.MinTrailingTPLevel)
	case "trailing_trigger_percentage":
		return fmtFloat(cfg.TrailingTriggerPercentage)
	case "stuck_trade_enabled":
		return fmtBool(cfg.StuckTradeEnabled)
	case "stuck_trade_duration_hours":
		return fmtInt(cfg.StuckTradeDurationHours)
	case "prioritize_normal_risk":
		return fmtBool(cfg.PrioritizeNormalRisk)
	case "filter_old_signals_enabled":
		return fmtBool(cfg.FilterOldSignalsEnabled)
	case "signal_validity_minutes":
		return fmtInt(cfg.SignalValidityMinutes)
	}
	return ""
}

// SetField parses value and stores it under key. An empty value clears the
// field.
func SetField(cfg *Configuration, key, value string) error {
	f, ok := lookupField(key)
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	value = strings.TrimSpace(value)

	switch f.Kind {
	case KindBool:
		var p *bool
		if value != "" {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("%s: expected true or false", f.Label)
			}
			p = &b
		}
		switch key {
		case "trailing_enabled":
			cfg.TrailingEnabled = p
		case "stuck_trade_enabled":
			cfg.StuckTradeEnabled = p
		case "prioritize_normal_risk":
			cfg.PrioritizeNormalRisk = p
		case "filter_old_signals_enabled":
			cfg.FilterOldSignalsEnabled = p
		}

	case KindInt:
		var p *int
		if value != "" {
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%s: expected a whole number", f.Label)
			}
			if float64(n) < f.Min {
				return fmt.Errorf("%s: must be at least %g", f.Label, f.Min)
			}
			p = &n
		}
		switch key {
		case "min_trailing_tp_level":
			cfg.MinTrailingTPLevel = p
		case "stuck_trade_duration_hours":
			cfg.StuckTradeDurationHours = p
		case "signal_validity_minutes":
			cfg.SignalValidityMinutes = p
		}

	case KindFloat:
		var p *float64
		if value != "" {
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("%s: expected a number", f.Label)
			}
			if v < f.Min {
				return fmt.Errorf("%s: must be at least %g", f.Label, f.Min)
			}
			p = &v
		}
		switch key {
		case "usdt_per_trade":
			cfg.UsdtPerTrade = p
		case "trailing_trigger_percentage":
			cfg.TrailingTriggerPercentage = p
		}
	}
	return nil
}

// Diff returns the fields whose value differs between before and after,
// keyed by wire name. Cleared fields map to nil.
func Diff(before, after Configuration) map[string]any {
	changes := make(map[string]any)
	for _, f := range ConfigFields {
		if FieldValue(before, f.Key) == FieldValue(after, f.Key) {
			continue
		}
		changes[f.Key] = fieldRaw(after, f.Key)
	}
	return changes
}

func fieldRaw(cfg Configuration, key string) any {
	deref := func(v string, kind FieldKind) any {
		if v == "" {
			return nil
		}
		switch kind {
		case KindBool:
			b, _ := strconv.ParseBool(v)
			return b
		case KindInt:
			n, _ := strconv.Atoi(v)
			return n
		}
		x, _ := strconv.ParseFloat(v, 64)
		return x
	}
	f, _ := lookupField(key)
	return deref(FieldValue(cfg, key), f.Kind)
}

func lookupField(key string) (ConfigField, bool) {
	for _, f := range ConfigFields {
		if f.Key == key {
			return f, true
		}
	}
	return ConfigField{}, false
}

func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func fmtInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func fmtBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
