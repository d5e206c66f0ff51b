// Package app defines the exchange capability set consumed by the executor.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/exchange/domain"
)

// Adapter abstracts order submission for one venue. Implementations must be
// safe for concurrent submission.
type Adapter interface {
	// FetchBalances returns the free balance per asset.
	FetchBalances(ctx context.Context) (map[string]decimal.Decimal, error)

	// CreateBulkOrders submits all orders; implementations may submit
	// concurrently. The result order matches the input order.
	CreateBulkOrders(ctx context.Context, orders []domain.Order) ([]domain.OrderResult, error)

	// FeeRate returns the taker fee ratio applied to the symbol.
	FeeRate(symbol string) decimal.Decimal
}
