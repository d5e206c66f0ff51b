package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrder_Valid(t *testing.T) {
	valid := Order{
		Symbol: "BTC/USDT",
		Side:   SideBuy,
		Type:   TypeMarket,
		Amount: decimal.RequireFromString("0.05"),
	}
	if !valid.Valid() {
		t.Error("expected order to be valid")
	}

	tests := []struct {
		name   string
		mutate func(*Order)
	}{
		{"empty_symbol", func(o *Order) { o.Symbol = "" }},
		{"zero_amount", func(o *Order) { o.Amount = decimal.Zero }},
		{"negative_amount", func(o *Order) { o.Amount = decimal.NewFromInt(-1) }},
		{"bad_side", func(o *Order) { o.Side = "hold" }},
		{"limit_type", func(o *Order) { o.Type = "limit" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid
			tt.mutate(&o)
			if o.Valid() {
				t.Error("expected order to be invalid")
			}
		})
	}
}

func TestInventory(t *testing.T) {
	inv := NewInventory()
	inv.Set("USDT", decimal.NewFromInt(1000))
	inv.Update("USDT", decimal.NewFromInt(-250))
	inv.Update("BTC", decimal.RequireFromString("0.05"))

	if !inv.Available("USDT").Equal(decimal.NewFromInt(750)) {
		t.Errorf("expected 750 USDT, got %s", inv.Available("USDT"))
	}
	if !inv.Available("ETH").IsZero() {
		t.Errorf("expected zero for unknown asset, got %s", inv.Available("ETH"))
	}

	snap := inv.Snapshot()
	if len(snap) != 2 {
		t.Errorf("expected 2 assets in snapshot, got %d", len(snap))
	}
}
