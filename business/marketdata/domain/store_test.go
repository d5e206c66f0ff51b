package domain

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func lvl(price, qty string) Level {
	return Level{
		Price: decimal.RequireFromString(price),
		Qty:   decimal.RequireFromString(qty),
	}
}

func TestStore_BestBidAsk(t *testing.T) {
	store := NewStore()
	store.Upsert("BTC/USDT", []Level{lvl("100", "1")}, []Level{lvl("101", "2")})

	bid, ask := store.BestBidAsk("BTC/USDT")
	if bid == nil || ask == nil {
		t.Fatal("expected both sides populated")
	}
	if !bid.Price.Equal(decimal.RequireFromString("100")) {
		t.Errorf("expected bid 100, got %s", bid.Price)
	}
	if !ask.Price.Equal(decimal.RequireFromString("101")) {
		t.Errorf("expected ask 101, got %s", ask.Price)
	}
}

func TestStore_Upsert_SortsSides(t *testing.T) {
	store := NewStore()

	// Deliberately unsorted input: best levels must surface regardless of
	// wire ordering.
	store.Upsert("ETH/USDT",
		[]Level{lvl("1258", "1"), lvl("1260", "2"), lvl("1259", "3")},
		[]Level{lvl("1263", "1"), lvl("1261", "2"), lvl("1262", "3")},
	)

	bid, ask := store.BestBidAsk("ETH/USDT")
	if !bid.Price.Equal(decimal.RequireFromString("1260")) {
		t.Errorf("expected best bid 1260 (max), got %s", bid.Price)
	}
	if !ask.Price.Equal(decimal.RequireFromString("1261")) {
		t.Errorf("expected best ask 1261 (min), got %s", ask.Price)
	}
}

func TestStore_Upsert_Overwrites(t *testing.T) {
	store := NewStore()
	store.Upsert("BTC/USDT", []Level{lvl("100", "1")}, []Level{lvl("101", "1")})
	store.Upsert("BTC/USDT", []Level{lvl("99", "1")}, nil)

	bid, ask := store.BestBidAsk("BTC/USDT")
	if !bid.Price.Equal(decimal.RequireFromString("99")) {
		t.Errorf("expected bid 99 after overwrite, got %s", bid.Price)
	}
	if ask != nil {
		t.Errorf("expected empty ask side after overwrite, got %s", ask.Price)
	}
}

func TestStore_UnknownSymbol(t *testing.T) {
	store := NewStore()

	bid, ask := store.BestBidAsk("DOGE/USDT")
	if bid != nil || ask != nil {
		t.Error("expected empty levels for unknown symbol")
	}
	if !store.CumulativeDepth("DOGE/USDT", SideBid, 5).IsZero() {
		t.Error("expected zero depth for unknown symbol")
	}
}

func TestStore_CumulativeDepth(t *testing.T) {
	store := NewStore()
	store.Upsert("BTC/USDT",
		[]Level{lvl("100", "1"), lvl("99", "2"), lvl("98", "4")},
		[]Level{lvl("101", "8")},
	)

	tests := []struct {
		name string
		side Side
		k    int
		want string
	}{
		{"top_two_bids", SideBid, 2, "3"},
		{"all_bids", SideBid, 3, "7"},
		{"k_beyond_depth", SideBid, 10, "7"},
		{"asks", SideAsk, 1, "8"},
		{"zero_levels", SideBid, 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := store.CumulativeDepth("BTC/USDT", tt.side, tt.k)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("expected depth %s, got %s", tt.want, got)
			}
		})
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				store.Upsert("BTC/USDT", []Level{lvl("100", "1")}, []Level{lvl("101", "1")})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				bid, ask := store.BestBidAsk("BTC/USDT")
				if bid != nil && ask != nil && bid.Price.GreaterThanOrEqual(ask.Price) {
					t.Error("observed crossed book during concurrent access")
					return
				}
			}
		}()
	}
	wg.Wait()
}
