// Package domain contains the core market-data types: price levels, order
// books, and the concurrent order-book store.
package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Level is a single price level on one side of a book.
type Level struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// OrderBook holds the top-of-book snapshot for one symbol. Bids are sorted
// descending by price, asks ascending. Only the top level of each side is
// semantically required; deeper levels are retained for depth queries.
type OrderBook struct {
	Symbol    string
	Bids      []Level
	Asks      []Level
	UpdatedAt time.Time
}

// Update replaces both sides with the provided levels, sorting bids
// descending and asks ascending.
func (b *OrderBook) Update(bids, asks []Level) {
	sorted := make([]Level, len(bids))
	copy(sorted, bids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Price.GreaterThan(sorted[j].Price)
	})
	b.Bids = sorted

	sorted = make([]Level, len(asks))
	copy(sorted, asks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Price.LessThan(sorted[j].Price)
	})
	b.Asks = sorted

	b.UpdatedAt = time.Now()
}

// BestBidAsk returns the top level of each side. Either side may be nil if
// never populated or emptied by an update.
func (b *OrderBook) BestBidAsk() (bid, ask *Level) {
	if len(b.Bids) > 0 {
		bid = &b.Bids[0]
	}
	if len(b.Asks) > 0 {
		ask = &b.Asks[0]
	}
	return bid, ask
}

// Side selects one side of a book for depth queries.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// CumulativeDepth sums qty over the first k levels on the given side.
func (b *OrderBook) CumulativeDepth(side Side, k int) decimal.Decimal {
	levels := b.Bids
	if side == SideAsk {
		levels = b.Asks
	}
	if k > len(levels) {
		k = len(levels)
	}

	total := decimal.Zero
	for _, lvl := range levels[:k] {
		total = total.Add(lvl.Qty)
	}
	return total
}
