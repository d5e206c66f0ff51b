package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/arbitrage/domain"
	mddomain "github.com/fd1az/triarb-bot/business/marketdata/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (nopLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (nopLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (nopLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (nopLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (nopLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (nopLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (nopLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

func btcEthTriangle() domain.Triangle {
	return domain.Triangle{Legs: [3]domain.TriangleLeg{
		{Symbol: "BTC/USDT", FromAsset: "USDT", ToAsset: "BTC"},
		{Symbol: "ETH/BTC", FromAsset: "BTC", ToAsset: "ETH"},
		{Symbol: "ETH/USDT", FromAsset: "ETH", ToAsset: "USDT"},
	}}
}

func lvl(price, qty string) mddomain.Level {
	return mddomain.Level{
		Price: decimal.RequireFromString(price),
		Qty:   decimal.RequireFromString(qty),
	}
}

// populateProfitableBooks sets up books where 1000 USDT converts to
// 1050 USDT: buy 0.05 BTC at 20000, buy 0.8333 ETH at 0.06, sell at
// 1260 USDT.
func populateProfitableBooks(store *mddomain.Store) {
	store.Upsert("BTC/USDT",
		[]mddomain.Level{lvl("19999", "5")},
		[]mddomain.Level{lvl("20000", "5")})
	store.Upsert("ETH/BTC",
		[]mddomain.Level{lvl("0.0599", "100")},
		[]mddomain.Level{lvl("0.06", "100")})
	store.Upsert("ETH/USDT",
		[]mddomain.Level{lvl("1260", "50")},
		[]mddomain.Level{lvl("1261", "50")})
}

func signalConfig() SignalConfig {
	return SignalConfig{
		Quote:           "USDT",
		Venue:           "binance",
		TargetNotional:  decimal.NewFromInt(1000),
		MinGrossEdgeBps: decimal.NewFromInt(40),
		MinNetEdgeBps:   decimal.NewFromInt(10),
		SlippageBps:     decimal.Zero,
		MaxLegNotional:  decimal.NewFromInt(20_000),
		FeeTable:        domain.FeeTable{"binance": {"taker": decimal.Zero}},
	}
}

func TestSignalEngine_ProfitableCycle(t *testing.T) {
	store := mddomain.NewStore()
	populateProfitableBooks(store)

	engine := NewSignalEngine([]domain.Triangle{btcEthTriangle()}, store, signalConfig(), nopLogger{})

	opps := engine.Evaluate(context.Background())
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}

	opp := opps[0]
	// 1000 -> 0.05 BTC -> 0.83333... ETH -> 1050 USDT: gross edge 500 bps.
	if !opp.GrossBps.Round(6).Equal(decimal.NewFromInt(500).Round(6)) {
		t.Errorf("expected gross 500 bps, got %s", opp.GrossBps)
	}
	if !opp.NetBps.Equal(opp.GrossBps) {
		t.Errorf("expected net == gross at zero slippage, got %s", opp.NetBps)
	}
	if !opp.NotionalQuote.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected notional min(20000, 1000) = 1000, got %s", opp.NotionalQuote)
	}
}

func TestSignalEngine_NetEdgeReservesThreeLegsOfSlippage(t *testing.T) {
	store := mddomain.NewStore()
	populateProfitableBooks(store)

	cfg := signalConfig()
	cfg.SlippageBps = decimal.NewFromInt(5)

	engine := NewSignalEngine([]domain.Triangle{btcEthTriangle()}, store, cfg, nopLogger{})

	opps := engine.Evaluate(context.Background())
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}

	// The slippage reserve is deducted per leg inside the product AND again
	// as 3x slippage off the gross edge.
	want := opps[0].GrossBps.Sub(decimal.NewFromInt(15))
	if !opps[0].NetBps.Equal(want) {
		t.Errorf("expected net = gross - 15 bps, got gross %s net %s",
			opps[0].GrossBps, opps[0].NetBps)
	}
	if opps[0].GrossBps.GreaterThanOrEqual(decimal.NewFromInt(500)) {
		t.Errorf("expected per-leg slippage to shave the gross edge below 500, got %s", opps[0].GrossBps)
	}
}

func TestSignalEngine_EmptyStore(t *testing.T) {
	engine := NewSignalEngine([]domain.Triangle{btcEthTriangle()}, mddomain.NewStore(), signalConfig(), nopLogger{})

	if opps := engine.Evaluate(context.Background()); len(opps) != 0 {
		t.Errorf("expected no opportunities on empty store, got %d", len(opps))
	}
}

func TestSignalEngine_MissingLegSide(t *testing.T) {
	store := mddomain.NewStore()
	populateProfitableBooks(store)
	// Empty out the ETH/USDT bid side.
	store.Upsert("ETH/USDT", nil, []mddomain.Level{lvl("1261", "50")})

	engine := NewSignalEngine([]domain.Triangle{btcEthTriangle()}, store, signalConfig(), nopLogger{})

	if opps := engine.Evaluate(context.Background()); len(opps) != 0 {
		t.Errorf("expected no opportunities with a missing book side, got %d", len(opps))
	}
}

func TestSignalEngine_CrossedBookIsMissingData(t *testing.T) {
	store := mddomain.NewStore()
	populateProfitableBooks(store)
	store.Upsert("ETH/USDT",
		[]mddomain.Level{lvl("1262", "50")},
		[]mddomain.Level{lvl("1261", "50")})

	engine := NewSignalEngine([]domain.Triangle{btcEthTriangle()}, store, signalConfig(), nopLogger{})

	if opps := engine.Evaluate(context.Background()); len(opps) != 0 {
		t.Errorf("expected crossed book to be treated as missing data, got %d opportunities", len(opps))
	}
}

func TestSignalEngine_ThresholdGating(t *testing.T) {
	store := mddomain.NewStore()
	populateProfitableBooks(store)

	tests := []struct {
		name     string
		mutate   func(*SignalConfig)
		wantOpps int
	}{
		{"gross_below_min", func(c *SignalConfig) { c.MinGrossEdgeBps = decimal.NewFromInt(600) }, 0},
		{"net_below_min", func(c *SignalConfig) {
			c.SlippageBps = decimal.NewFromInt(100) // gross ~188 bps, net = gross - 300 ~ -112
			c.MinGrossEdgeBps = decimal.Zero
			c.MinNetEdgeBps = decimal.NewFromInt(10)
		}, 0},
		{"both_clear", func(c *SignalConfig) {}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := signalConfig()
			tt.mutate(&cfg)
			engine := NewSignalEngine([]domain.Triangle{btcEthTriangle()}, store, cfg, nopLogger{})
			if opps := engine.Evaluate(context.Background()); len(opps) != tt.wantOpps {
				t.Errorf("expected %d opportunities, got %d", tt.wantOpps, len(opps))
			}
		})
	}
}

func TestSignalEngine_AssetFlowMismatchSkips(t *testing.T) {
	store := mddomain.NewStore()
	populateProfitableBooks(store)

	// Second leg converts from an asset the cycle is not holding.
	broken := domain.Triangle{Legs: [3]domain.TriangleLeg{
		{Symbol: "BTC/USDT", FromAsset: "USDT", ToAsset: "BTC"},
		{Symbol: "ETH/USDT", FromAsset: "ETH", ToAsset: "USDT"},
		{Symbol: "ETH/BTC", FromAsset: "BTC", ToAsset: "ETH"},
	}}

	engine := NewSignalEngine([]domain.Triangle{broken}, store, signalConfig(), nopLogger{})

	if opps := engine.Evaluate(context.Background()); len(opps) != 0 {
		t.Errorf("expected mismatched cycle to be skipped, got %d opportunities", len(opps))
	}
}

func TestSignalEngine_Deterministic(t *testing.T) {
	store := mddomain.NewStore()
	populateProfitableBooks(store)

	// Two structurally distinct cycles over the same books.
	reverse := domain.Triangle{Legs: [3]domain.TriangleLeg{
		{Symbol: "ETH/USDT", FromAsset: "USDT", ToAsset: "ETH"},
		{Symbol: "ETH/BTC", FromAsset: "ETH", ToAsset: "BTC"},
		{Symbol: "BTC/USDT", FromAsset: "BTC", ToAsset: "USDT"},
	}}

	cfg := signalConfig()
	cfg.MinGrossEdgeBps = decimal.NewFromInt(-10_000)
	cfg.MinNetEdgeBps = decimal.NewFromInt(-10_000)

	engine := NewSignalEngine([]domain.Triangle{btcEthTriangle(), reverse}, store, cfg, nopLogger{})

	first := engine.Evaluate(context.Background())
	second := engine.Evaluate(context.Background())

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected both passes to emit 2 opportunities, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Triangle.Hash() != second[i].Triangle.Hash() {
			t.Errorf("evaluation order diverged at %d", i)
		}
		if !first[i].GrossBps.Equal(second[i].GrossBps) {
			t.Errorf("gross edge diverged at %d: %s vs %s", i, first[i].GrossBps, second[i].GrossBps)
		}
	}
}

func TestSignalEngine_NotionalCappedByMaxLeg(t *testing.T) {
	store := mddomain.NewStore()
	populateProfitableBooks(store)

	cfg := signalConfig()
	cfg.TargetNotional = decimal.NewFromInt(50_000)
	cfg.MaxLegNotional = decimal.NewFromInt(20_000)

	engine := NewSignalEngine([]domain.Triangle{btcEthTriangle()}, store, cfg, nopLogger{})

	opps := engine.Evaluate(context.Background())
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	if !opps[0].NotionalQuote.Equal(decimal.NewFromInt(20_000)) {
		t.Errorf("expected notional capped at 20000, got %s", opps[0].NotionalQuote)
	}
}
