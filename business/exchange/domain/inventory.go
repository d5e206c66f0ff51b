package domain

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Inventory is a simple asset -> balance ledger: Update applies a delta,
// Set replaces a balance.
type Inventory struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
}

// NewInventory creates an empty ledger.
func NewInventory() *Inventory {
	return &Inventory{balances: make(map[string]decimal.Decimal)}
}

// Update adds delta (possibly negative) to the asset's balance.
func (i *Inventory) Update(asset string, delta decimal.Decimal) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.balances[asset] = i.balances[asset].Add(delta)
}

// Set replaces the asset's balance.
func (i *Inventory) Set(asset string, balance decimal.Decimal) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.balances[asset] = balance
}

// Available returns the asset's balance, zero when unknown.
func (i *Inventory) Available(asset string) decimal.Decimal {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.balances[asset]
}

// Snapshot returns a copy of all balances.
func (i *Inventory) Snapshot() map[string]decimal.Decimal {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(i.balances))
	for asset, bal := range i.balances {
		out[asset] = bal
	}
	return out
}
