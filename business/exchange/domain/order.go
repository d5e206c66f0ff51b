// Package domain contains the exchange-context types: order instructions,
// submission results, and the balance ledger.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the taker direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType is the order type. The engine only places market orders.
type OrderType string

const TypeMarket OrderType = "market"

// Order is a single executable instruction. Symbol is canonical
// "BASE/QUOTE"; Amount is expressed in the base asset and must be positive.
type Order struct {
	Symbol string
	Side   Side
	Type   OrderType
	Amount decimal.Decimal
}

// Valid reports whether the instruction is well-formed.
func (o Order) Valid() bool {
	if o.Symbol == "" || o.Type != TypeMarket {
		return false
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return false
	}
	return o.Amount.IsPositive()
}

// OrderResult is the venue's acknowledgement of one submitted order.
type OrderResult struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          Side
	Amount        decimal.Decimal
	Status        string
	SubmittedAt   time.Time
}
