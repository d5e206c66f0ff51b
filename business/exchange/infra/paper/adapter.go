// Package paper implements a non-trading exchange adapter that returns
// synthetic acknowledgements without side effects.
package paper

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	exchangeApp "github.com/fd1az/triarb-bot/business/exchange/app"
	"github.com/fd1az/triarb-bot/business/exchange/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
	"github.com/fd1az/triarb-bot/internal/logger"
)

// Ensure interface compliance
var _ exchangeApp.Adapter = (*Adapter)(nil)

// Adapter simulates order acknowledgements for paper trading.
type Adapter struct {
	quote     string
	takerFee  decimal.Decimal
	inventory *domain.Inventory
	logger    logger.LoggerInterface

	seq atomic.Int64
}

// NewAdapter creates a paper adapter funded with one million units of the
// quote asset.
func NewAdapter(quote string, takerFee decimal.Decimal, log logger.LoggerInterface) *Adapter {
	inv := domain.NewInventory()
	inv.Set(quote, decimal.NewFromInt(1_000_000))

	return &Adapter{
		quote:     quote,
		takerFee:  takerFee,
		inventory: inv,
		logger:    log,
	}
}

// FetchBalances returns the simulated ledger.
func (a *Adapter) FetchBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	return a.inventory.Snapshot(), nil
}

// CreateBulkOrders acknowledges every order without venue interaction.
func (a *Adapter) CreateBulkOrders(ctx context.Context, orders []domain.Order) ([]domain.OrderResult, error) {
	results := make([]domain.OrderResult, 0, len(orders))
	for _, order := range orders {
		if !order.Valid() {
			return nil, apperror.New(apperror.CodeInvalidInstruction,
				apperror.WithContext(fmt.Sprintf("%s %s %s", order.Side, order.Amount, order.Symbol)))
		}

		results = append(results, domain.OrderResult{
			OrderID:       fmt.Sprintf("paper-%d", a.seq.Add(1)),
			ClientOrderID: fmt.Sprintf("paper-client-%d", a.seq.Load()),
			Symbol:        order.Symbol,
			Side:          order.Side,
			Amount:        order.Amount,
			Status:        "FILLED",
			SubmittedAt:   time.Now(),
		})

		a.logger.Debug(ctx, "paper order acknowledged",
			"symbol", order.Symbol,
			"side", order.Side,
			"amount", order.Amount.String(),
		)
	}
	return results, nil
}

// FeeRate returns the configured taker fee.
func (a *Adapter) FeeRate(symbol string) decimal.Decimal {
	return a.takerFee
}

// Inventory exposes the simulated ledger.
func (a *Adapter) Inventory() *domain.Inventory {
	return a.inventory
}
