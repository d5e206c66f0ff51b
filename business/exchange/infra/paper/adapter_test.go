package paper

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/exchange/domain"
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

func TestPaperAdapter_SyntheticAcks(t *testing.T) {
	adapter := NewAdapter("USDT", decimal.NewFromFloat(0.0004), nopLogger{})

	orders := []domain.Order{
		{Symbol: "BTC/USDT", Side: domain.SideBuy, Type: domain.TypeMarket, Amount: decimal.RequireFromString("0.05")},
		{Symbol: "ETH/BTC", Side: domain.SideBuy, Type: domain.TypeMarket, Amount: decimal.RequireFromString("0.8")},
		{Symbol: "ETH/USDT", Side: domain.SideSell, Type: domain.TypeMarket, Amount: decimal.RequireFromString("0.8")},
	}

	results, err := adapter.CreateBulkOrders(context.Background(), orders)
	if err != nil {
		t.Fatalf("CreateBulkOrders failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 acks, got %d", len(results))
	}
	for i, res := range results {
		if res.Status != "FILLED" {
			t.Errorf("ack %d not filled: %+v", i, res)
		}
		if res.OrderID == "" {
			t.Errorf("ack %d missing order id", i)
		}
	}
}

func TestPaperAdapter_Balances(t *testing.T) {
	adapter := NewAdapter("USDT", decimal.NewFromFloat(0.0004), nopLogger{})

	balances, err := adapter.FetchBalances(context.Background())
	if err != nil {
		t.Fatalf("FetchBalances failed: %v", err)
	}
	if !balances["USDT"].Equal(decimal.NewFromInt(1_000_000)) {
		t.Errorf("expected 1,000,000 USDT, got %s", balances["USDT"])
	}
}

func TestPaperAdapter_RejectsInvalidOrder(t *testing.T) {
	adapter := NewAdapter("USDT", decimal.Zero, nopLogger{})

	_, err := adapter.CreateBulkOrders(context.Background(), []domain.Order{
		{Symbol: "BTC/USDT", Side: domain.SideBuy, Type: domain.TypeMarket, Amount: decimal.Zero},
	})
	if err == nil {
		t.Fatal("expected error for non-positive amount")
	}
}

func TestPaperAdapter_FeeRate(t *testing.T) {
	adapter := NewAdapter("USDT", decimal.NewFromFloat(0.0004), nopLogger{})
	if !adapter.FeeRate("BTC/USDT").Equal(decimal.NewFromFloat(0.0004)) {
		t.Errorf("unexpected fee rate: %s", adapter.FeeRate("BTC/USDT"))
	}
}
