package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	arbApp "github.com/fd1az/triarb-bot/business/arbitrage/app"
	arbDomain "github.com/fd1az/triarb-bot/business/arbitrage/domain"
	exchangeDomain "github.com/fd1az/triarb-bot/business/exchange/domain"
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

// fakeAdapter records submissions and optionally fails them.
type fakeAdapter struct {
	mu        sync.Mutex
	submitted [][]exchangeDomain.Order
	failNext  atomic.Bool
	block     chan struct{} // when set, CreateBulkOrders waits on it
}

func (f *fakeAdapter) FetchBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	return map[string]decimal.Decimal{"USDT": decimal.NewFromInt(1_000_000)}, nil
}

func (f *fakeAdapter) CreateBulkOrders(ctx context.Context, orders []exchangeDomain.Order) ([]exchangeDomain.OrderResult, error) {
	if f.block != nil {
		<-f.block
	}
	if f.failNext.Load() {
		return nil, errors.New("venue rejected order")
	}

	f.mu.Lock()
	f.submitted = append(f.submitted, orders)
	f.mu.Unlock()

	results := make([]exchangeDomain.OrderResult, len(orders))
	for i, o := range orders {
		results[i] = exchangeDomain.OrderResult{
			OrderID: "x",
			Symbol:  o.Symbol,
			Side:    o.Side,
			Amount:  o.Amount,
			Status:  "FILLED",
		}
	}
	return results, nil
}

func (f *fakeAdapter) FeeRate(symbol string) decimal.Decimal {
	return decimal.Zero
}

func (f *fakeAdapter) submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func triangle() arbDomain.Triangle {
	return arbDomain.Triangle{Legs: [3]arbDomain.TriangleLeg{
		{Symbol: "BTC/USDT", FromAsset: "USDT", ToAsset: "BTC"},
		{Symbol: "ETH/BTC", FromAsset: "BTC", ToAsset: "ETH"},
		{Symbol: "ETH/USDT", FromAsset: "ETH", ToAsset: "USDT"},
	}}
}

func opportunity(notional int64) arbDomain.Opportunity {
	return arbDomain.Opportunity{
		Triangle:      triangle(),
		GrossBps:      decimal.NewFromInt(500),
		NetBps:        decimal.NewFromInt(485),
		NotionalQuote: decimal.NewFromInt(notional),
	}
}

func lvl(price, qty string) mddomain.Level {
	return mddomain.Level{
		Price: decimal.RequireFromString(price),
		Qty:   decimal.RequireFromString(qty),
	}
}

func populateBooks(store *mddomain.Store) {
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

func newExecutor(adapter *fakeAdapter, store *mddomain.Store, maxOpen int) (*Executor, *arbApp.RiskManager) {
	risk := arbApp.NewRiskManager(arbApp.RiskConfig{
		MaxOpenCycles:  maxOpen,
		MaxLegNotional: decimal.NewFromInt(20_000),
	}, nopLogger{})

	exec := NewExecutor(adapter, store, risk, arbApp.NewLogRecorder(nopLogger{}), ExecutorConfig{
		Quote:       "USDT",
		SlippageBps: decimal.NewFromInt(5),
	}, nopLogger{})

	return exec, risk
}

func TestExecutor_SubmitsThreeOrders(t *testing.T) {
	store := mddomain.NewStore()
	populateBooks(store)
	adapter := &fakeAdapter{}
	exec, risk := newExecutor(adapter, store, 1)

	if err := exec.Execute(context.Background(), opportunity(1000)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if adapter.submissions() != 1 {
		t.Fatalf("expected 1 bulk submission, got %d", adapter.submissions())
	}
	orders := adapter.submitted[0]
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}

	// Leg 1: buy BTC with 1000 USDT at ask 20000 buffered by 5 bps.
	if orders[0].Side != exchangeDomain.SideBuy || orders[0].Symbol != "BTC/USDT" {
		t.Errorf("unexpected first order: %+v", orders[0])
	}
	buyPrice := decimal.RequireFromString("20000").Mul(decimal.RequireFromString("1.0005"))
	wantQty := decimal.NewFromInt(1000).Div(buyPrice)
	if !orders[0].Amount.Equal(wantQty) {
		t.Errorf("expected first leg amount %s, got %s", wantQty, orders[0].Amount)
	}

	// Leg 3: sell ETH for USDT.
	if orders[2].Side != exchangeDomain.SideSell || orders[2].Symbol != "ETH/USDT" {
		t.Errorf("unexpected third order: %+v", orders[2])
	}

	if risk.OpenCycles() != 0 {
		t.Errorf("expected reservation settled, got %d open", risk.OpenCycles())
	}
}

func TestExecutor_SkipsWithoutBooks(t *testing.T) {
	store := mddomain.NewStore() // empty
	adapter := &fakeAdapter{}
	exec, risk := newExecutor(adapter, store, 1)

	err := exec.Execute(context.Background(), opportunity(1000))
	if err == nil {
		t.Fatal("expected build error with empty store")
	}

	if adapter.submissions() != 0 {
		t.Errorf("expected no submissions, got %d", adapter.submissions())
	}
	if risk.OpenCycles() != 0 {
		t.Errorf("build failure must release the reservation, got %d open", risk.OpenCycles())
	}
	if risk.BreakerTripped() {
		t.Error("build failure must not count toward the breaker")
	}
}

func TestExecutor_RiskDenialIsSideEffectFree(t *testing.T) {
	store := mddomain.NewStore()
	populateBooks(store)
	adapter := &fakeAdapter{block: make(chan struct{})}
	exec, risk := newExecutor(adapter, store, 1)

	// First cycle parks in submission, holding the only slot.
	done := make(chan struct{})
	go func() {
		exec.Execute(context.Background(), opportunity(1000))
		close(done)
	}()

	waitFor(t, func() bool { return risk.OpenCycles() == 1 })

	// Second concurrent execute returns immediately without submitting.
	if err := exec.Execute(context.Background(), opportunity(1000)); err != nil {
		t.Fatalf("denied execute must not error: %v", err)
	}
	if adapter.submissions() != 0 {
		t.Errorf("expected no submissions while first cycle in flight, got %d", adapter.submissions())
	}

	close(adapter.block)
	<-done

	if risk.OpenCycles() != 0 {
		t.Errorf("expected reservation settled after first cycle, got %d", risk.OpenCycles())
	}
}

func TestExecutor_SubmitFailureTripsBreakerAfterFive(t *testing.T) {
	store := mddomain.NewStore()
	populateBooks(store)
	adapter := &fakeAdapter{}
	adapter.failNext.Store(true)
	exec, risk := newExecutor(adapter, store, 10)

	for i := 0; i < 5; i++ {
		if err := exec.Execute(context.Background(), opportunity(1000)); err == nil {
			t.Fatalf("expected submission %d to fail", i)
		}
	}

	if !risk.BreakerTripped() {
		t.Fatal("expected breaker tripped after five failures")
	}
	if risk.OpenCycles() != 0 {
		t.Errorf("every failure must settle its reservation, got %d open", risk.OpenCycles())
	}

	// Sixth opportunity is rejected at admission: no build, no submission.
	adapter.failNext.Store(false)
	if err := exec.Execute(context.Background(), opportunity(1000)); err != nil {
		t.Fatalf("admission rejection must not error: %v", err)
	}
	if adapter.submissions() != 0 {
		t.Errorf("expected no submission while breaker open, got %d", adapter.submissions())
	}
}

func TestExecutor_AssetMismatchReleasesReservation(t *testing.T) {
	store := mddomain.NewStore()
	populateBooks(store)
	adapter := &fakeAdapter{}
	exec, risk := newExecutor(adapter, store, 1)

	opp := opportunity(1000)
	// Break the chain: second leg starts from an asset not held.
	opp.Triangle.Legs[1] = arbDomain.TriangleLeg{Symbol: "ETH/USDT", FromAsset: "ETH", ToAsset: "USDT"}

	err := exec.Execute(context.Background(), opp)
	if err == nil {
		t.Fatal("expected asset-flow mismatch error")
	}

	if adapter.submissions() != 0 {
		t.Errorf("expected no submissions, got %d", adapter.submissions())
	}
	if risk.OpenCycles() != 0 {
		t.Errorf("mismatch must release the reservation, got %d open", risk.OpenCycles())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never satisfied")
}
