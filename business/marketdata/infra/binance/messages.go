// Package binance implements the streaming market-data feed for Binance.
package binance

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/marketdata/domain"
)

// WebSocket request/response messages

// WSRequest is a WebSocket subscription request.
type WSRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params,omitempty"`
	ID     int64    `json:"id"`
}

// WSResponse is a WebSocket subscription response.
type WSResponse struct {
	Result json.RawMessage `json:"result"`
	ID     int64           `json:"id"`
}

// StreamEvent is the combined-stream envelope for all messages.
type StreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// DepthEvent is a partial book depth snapshot.
// Stream: <symbol>@depth5@100ms (top-N levels, full replace per message)
type DepthEvent struct {
	Symbol       string     `json:"s"` // Exchange symbol
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"b"` // Bids [price, qty]
	Asks         [][]string `json:"a"` // Asks [price, qty]
}

// BookTickerEvent is a best bid/ask update (top-of-book only).
// Stream: <symbol>@bookTicker
type BookTickerEvent struct {
	UpdateID int64  `json:"u"` // Order book updateId
	Symbol   string `json:"s"` // Symbol
	BidPrice string `json:"b"` // Best bid price
	BidQty   string `json:"B"` // Best bid qty
	AskPrice string `json:"a"` // Best ask price
	AskQty   string `json:"A"` // Best ask qty
}

// BidLevel parses the best bid as a Level.
func (e *BookTickerEvent) BidLevel() (domain.Level, error) {
	return parseLevel(e.BidPrice, e.BidQty)
}

// AskLevel parses the best ask as a Level.
func (e *BookTickerEvent) AskLevel() (domain.Level, error) {
	return parseLevel(e.AskPrice, e.AskQty)
}

func parseLevel(price, qty string) (domain.Level, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Level{}, err
	}
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return domain.Level{}, err
	}
	return domain.Level{Price: p, Qty: q}, nil
}

// ParseLevels parses raw [price, qty] string pairs from the wire. Zero
// quantity levels are dropped (they mark removal from the book).
func ParseLevels(raw [][]string) ([]domain.Level, error) {
	levels := make([]domain.Level, 0, len(raw))
	for _, r := range raw {
		if len(r) < 2 {
			continue
		}
		lvl, err := parseLevel(r[0], r[1])
		if err != nil {
			return nil, err
		}
		if lvl.Qty.IsZero() {
			continue
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

// Stream name helpers

// DepthStream returns the partial depth stream name for a canonical symbol.
func DepthStream(symbol string, speedMs int) string {
	return domain.StreamSymbol(symbol) + "@depth5@" + strconv.Itoa(speedMs) + "ms"
}

// BookTickerStream returns the bookTicker stream name for a canonical symbol.
func BookTickerStream(symbol string) string {
	return domain.StreamSymbol(symbol) + "@bookTicker"
}
