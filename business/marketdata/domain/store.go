package domain

import (
	"sync"

	"github.com/shopspring/decimal"
)

// bookShard pairs one book with its own lock so writers for one symbol
// never contend with readers of another.
type bookShard struct {
	mu   sync.RWMutex
	book OrderBook
}

// Store maps symbols to order books. It is written exclusively by the
// market-data feed and read concurrently by the signal engine and executor.
// Entries are created on first update and overwritten thereafter; there is
// no deletion.
type Store struct {
	mu     sync.RWMutex
	shards map[string]*bookShard
}

// NewStore creates an empty order-book store.
func NewStore() *Store {
	return &Store{shards: make(map[string]*bookShard)}
}

// Upsert replaces both sides of the symbol's book atomically. Concurrent
// readers observe either the previous book or the new one, never a
// half-updated state.
func (s *Store) Upsert(symbol string, bids, asks []Level) {
	shard := s.shard(symbol)

	shard.mu.Lock()
	shard.book.Update(bids, asks)
	shard.mu.Unlock()
}

// BestBidAsk returns copies of the top level of each side. Either side may
// be nil. Unknown symbols return empty levels rather than failing.
func (s *Store) BestBidAsk(symbol string) (bid, ask *Level) {
	s.mu.RLock()
	shard, ok := s.shards[symbol]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	shard.mu.RLock()
	defer shard.mu.RUnlock()

	b, a := shard.book.BestBidAsk()
	if b != nil {
		cp := *b
		bid = &cp
	}
	if a != nil {
		cp := *a
		ask = &cp
	}
	return bid, ask
}

// CumulativeDepth sums qty over the first k levels on the given side.
// Returns zero for unknown symbols.
func (s *Store) CumulativeDepth(symbol string, side Side, k int) decimal.Decimal {
	s.mu.RLock()
	shard, ok := s.shards[symbol]
	s.mu.RUnlock()
	if !ok {
		return decimal.Zero
	}

	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return shard.book.CumulativeDepth(side, k)
}

// Symbols returns the symbols currently present in the store.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.shards))
	for sym := range s.shards {
		out = append(out, sym)
	}
	return out
}

func (s *Store) shard(symbol string) *bookShard {
	s.mu.RLock()
	shard, ok := s.shards[symbol]
	s.mu.RUnlock()
	if ok {
		return shard
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if shard, ok = s.shards[symbol]; ok {
		return shard
	}
	shard = &bookShard{book: OrderBook{Symbol: symbol}}
	s.shards[symbol] = shard
	return shard
}
