package domain

import "github.com/shopspring/decimal"

// DefaultTakerFee is used when a venue is missing from the fee table (10 bps).
var DefaultTakerFee = decimal.NewFromFloat(0.001)

// FeeTable maps venue -> {"taker": ratio, "maker": ratio}.
type FeeTable map[string]map[string]decimal.Decimal

// TakerFee returns the venue's taker fee ratio, or DefaultTakerFee when the
// venue is not configured.
func (t FeeTable) TakerFee(venue string) decimal.Decimal {
	if fees, ok := t[venue]; ok {
		if taker, ok := fees["taker"]; ok {
			return taker
		}
	}
	return DefaultTakerFee
}

// MakerFee returns the venue's maker fee ratio, falling back to the taker
// fee when unset.
func (t FeeTable) MakerFee(venue string) decimal.Decimal {
	if fees, ok := t[venue]; ok {
		if maker, ok := fees["maker"]; ok {
			return maker
		}
	}
	return t.TakerFee(venue)
}

// BpsToRatio converts basis points to a ratio (x / 10_000).
func BpsToRatio(bps decimal.Decimal) decimal.Decimal {
	return bps.Div(decimal.NewFromInt(10_000))
}
