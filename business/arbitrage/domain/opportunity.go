package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity is a cycle whose simulated edge cleared the configured
// thresholds. Created by the signal engine, consumed once by the executor,
// never mutated.
type Opportunity struct {
	Triangle      Triangle
	GrossBps      decimal.Decimal
	NetBps        decimal.Decimal
	NotionalQuote decimal.Decimal
	DetectedAt    time.Time
}

// TriangleHash is the persisted index key of the opportunity's cycle.
func (o Opportunity) TriangleHash() string {
	return o.Triangle.Hash()
}
