// Package domain contains the core domain types for the arbitrage context:
// triangles, fee tables, and opportunities.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// TriangleLeg is one conversion step of a cycle. The {FromAsset, ToAsset}
// pair always equals the unordered {base, quote} pair of Symbol; the
// direction selects bid vs. ask at evaluation time.
type TriangleLeg struct {
	Symbol    string
	FromAsset string
	ToAsset   string
}

func (l TriangleLeg) String() string {
	return fmt.Sprintf("%s:%s->%s", l.Symbol, l.FromAsset, l.ToAsset)
}

// Triangle is an ordered three-leg cycle starting and ending in the quote
// asset. Frozen after construction; equality by leg tuple.
type Triangle struct {
	Legs [3]TriangleLeg
}

// Symbols returns the three leg symbols in order.
func (t Triangle) Symbols() []string {
	return []string{t.Legs[0].Symbol, t.Legs[1].Symbol, t.Legs[2].Symbol}
}

// Hash returns the canonical ordered signature of the cycle, used for
// dedup during discovery and as the persisted opportunity index key.
func (t Triangle) Hash() string {
	return fmt.Sprintf("%s|%s|%s", t.Legs[0], t.Legs[1], t.Legs[2])
}

// IsClosed reports whether the legs chain correctly and return to quote.
func (t Triangle) IsClosed(quote string) bool {
	if t.Legs[0].FromAsset != quote || t.Legs[2].ToAsset != quote {
		return false
	}
	for i := 0; i < 3; i++ {
		if t.Legs[i].ToAsset != t.Legs[(i+1)%3].FromAsset {
			return false
		}
	}
	return true
}

// CanonicalPair names the tradable symbol for two assets the way the
// exchange does: the asset ranking higher in the quote-asset priority list
// becomes the quote side. Assets absent from the list are always base.
func CanonicalPair(a, b string, quoteAssets []string) string {
	rank := func(asset string) int {
		for i, q := range quoteAssets {
			if q == asset {
				return i
			}
		}
		return len(quoteAssets)
	}
	if rank(b) < rank(a) {
		return a + "/" + b
	}
	return b + "/" + a
}

// BuildTriangles produces, for quote Q and bases B, the cycle
// [(a/Q, Q->a), (b/a, a->b), (b/Q, b->Q)] for every ordered pair (a, b)
// with a != b. Leg symbols are normalized to the exchange's canonical
// naming so that order-book lookups resolve.
func BuildTriangles(quote string, bases []string, quoteAssets []string) []Triangle {
	quote = strings.ToUpper(quote)

	triangles := make([]Triangle, 0, len(bases)*(len(bases)-1))
	for _, a := range bases {
		for _, b := range bases {
			if a == b {
				continue
			}
			triangles = append(triangles, Triangle{Legs: [3]TriangleLeg{
				{Symbol: CanonicalPair(a, quote, quoteAssets), FromAsset: quote, ToAsset: a},
				{Symbol: CanonicalPair(b, a, quoteAssets), FromAsset: a, ToAsset: b},
				{Symbol: CanonicalPair(b, quote, quoteAssets), FromAsset: b, ToAsset: quote},
			}})
		}
	}
	return triangles
}

// Market describes one tradable symbol of the exchange's market map.
type Market struct {
	Symbol string
	Base   string
	Quote  string
}

// edge is one traversable direction of a market.
type edge struct {
	symbol string
	from   string
	to     string
}

// DiscoverTriangles enumerates every three-leg cycle over the full market
// map that starts and ends at quote, visits no asset twice except the
// terminal return, and uses three pairwise-distinct symbols. Duplicate
// paths are suppressed by their ordered signature.
func DiscoverTriangles(markets []Market, quote string) []Triangle {
	quote = strings.ToUpper(quote)

	adjacency := make(map[string][]edge)
	for _, m := range markets {
		if m.Symbol == "" || m.Base == "" || m.Quote == "" {
			continue
		}
		adjacency[m.Base] = append(adjacency[m.Base], edge{symbol: m.Symbol, from: m.Base, to: m.Quote})
		adjacency[m.Quote] = append(adjacency[m.Quote], edge{symbol: m.Symbol, from: m.Quote, to: m.Base})
	}

	var triangles []Triangle
	seen := make(map[string]struct{})

	for _, leg1 := range adjacency[quote] {
		asset1 := leg1.to
		if asset1 == quote {
			continue
		}

		for _, leg2 := range adjacency[asset1] {
			if leg2.symbol == leg1.symbol {
				continue
			}
			asset2 := leg2.to
			if asset2 == quote || asset2 == asset1 {
				continue
			}

			for _, leg3 := range adjacency[asset2] {
				if leg3.to != quote {
					continue
				}
				if leg3.symbol == leg1.symbol || leg3.symbol == leg2.symbol {
					continue
				}

				t := Triangle{Legs: [3]TriangleLeg{
					{Symbol: leg1.symbol, FromAsset: leg1.from, ToAsset: leg1.to},
					{Symbol: leg2.symbol, FromAsset: leg2.from, ToAsset: leg2.to},
					{Symbol: leg3.symbol, FromAsset: leg3.from, ToAsset: leg3.to},
				}}

				sig := t.Hash()
				if _, dup := seen[sig]; dup {
					continue
				}
				seen[sig] = struct{}{}
				triangles = append(triangles, t)
			}
		}
	}

	return triangles
}

// SymbolUniverse returns the sorted unique symbols a triangle set trades.
func SymbolUniverse(triangles []Triangle) []string {
	seen := make(map[string]struct{})
	for _, t := range triangles {
		for _, s := range t.Symbols() {
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
