package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Exchange.Venue != "binance" {
		t.Errorf("expected default venue binance, got %s", cfg.Exchange.Venue)
	}
	if !cfg.Exchange.PaperMode {
		t.Error("expected paper mode on by default")
	}
	if cfg.Trading.Quote != "USDT" {
		t.Errorf("expected default quote USDT, got %s", cfg.Trading.Quote)
	}
	if got := cfg.Trading.BaseSymbols(); len(got) != 3 {
		t.Errorf("expected 3 default bases, got %v", got)
	}
	if cfg.Trading.EvalInterval != 250*time.Millisecond {
		t.Errorf("expected 250ms eval interval, got %s", cfg.Trading.EvalInterval)
	}
	if cfg.Binance.PingInterval != 20*time.Second {
		t.Errorf("expected 20s ping interval, got %s", cfg.Binance.PingInterval)
	}
}

func TestTradingConfig_FeeTable(t *testing.T) {
	c := TradingConfig{FeeTableJSON: `{"binance":{"taker":0.0004,"maker":0.0002}}`}

	table, err := c.FeeTable()
	if err != nil {
		t.Fatalf("FeeTable failed: %v", err)
	}
	if !table["binance"]["taker"].Equal(decimal.NewFromFloat(0.0004)) {
		t.Errorf("unexpected taker fee: %s", table["binance"]["taker"])
	}
}

func TestTradingConfig_FeeTable_Invalid(t *testing.T) {
	c := TradingConfig{FeeTableJSON: `{not json`}
	if _, err := c.FeeTable(); err == nil {
		t.Fatal("expected error for invalid fee_table_json")
	}
}

func TestBinanceConfig_WSURLs(t *testing.T) {
	c := BinanceConfig{
		WSBaseURL: "wss://stream.binance.com:9443/",
		WSAltURLs: "wss://stream.binance.us:9443, wss://stream.binance.com:9443",
	}

	urls := c.WSURLs()
	want := []string{"wss://stream.binance.com:9443", "wss://stream.binance.us:9443"}
	if len(urls) != len(want) {
		t.Fatalf("expected %v, got %v", want, urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, urls)
		}
	}
}

func TestBinanceConfig_WSURLs_Empty(t *testing.T) {
	var c BinanceConfig
	urls := c.WSURLs()
	if len(urls) != 1 || urls[0] != "wss://stream.binance.com:9443" {
		t.Errorf("expected fallback default endpoint, got %v", urls)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Exchange: ExchangeConfig{Venue: "binance", PaperMode: true},
			Trading: TradingConfig{
				Quote:               "USDT",
				TriSymbols:          "BTC,ETH",
				TopLevels:           5,
				TargetNotionalQuote: 10_000,
				FeeTableJSON:        `{"binance":{"taker":0.0004}}`,
			},
			Risk: RiskConfig{MaxLegNotionalQuote: 20_000, MaxOpenCycles: 1},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty_quote", func(c *Config) { c.Trading.Quote = "" }},
		{"empty_bases", func(c *Config) { c.Trading.TriSymbols = " , " }},
		{"zero_top_levels", func(c *Config) { c.Trading.TopLevels = 0 }},
		{"zero_notional", func(c *Config) { c.Trading.TargetNotionalQuote = 0 }},
		{"zero_max_leg", func(c *Config) { c.Risk.MaxLegNotionalQuote = 0 }},
		{"zero_open_cycles", func(c *Config) { c.Risk.MaxOpenCycles = 0 }},
		{"bad_fee_table", func(c *Config) { c.Trading.FeeTableJSON = "{" }},
		{"live_without_keys", func(c *Config) { c.Exchange.PaperMode = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
