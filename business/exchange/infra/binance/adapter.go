// Package binance implements the exchange adapter for Binance spot.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	exchangeApp "github.com/fd1az/triarb-bot/business/exchange/app"
	"github.com/fd1az/triarb-bot/business/exchange/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
	"github.com/fd1az/triarb-bot/internal/httpclient"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/ratelimit"
)

// Ensure interface compliance
var _ exchangeApp.Adapter = (*Adapter)(nil)

const (
	DefaultRESTURL = "https://api.binance.com"

	// Binance spot order endpoints allow ~50 orders per 10s per account.
	orderRequestsPerSecond = 5
	orderBurst             = 5
)

// AdapterConfig holds configuration for the Binance adapter.
type AdapterConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Venue     string // fee-table key, normally "binance"
	FeeTable  map[string]map[string]decimal.Decimal
}

// Adapter places market orders on Binance spot. Market metadata is loaded
// once at construction; every call gates on the load having completed.
type Adapter struct {
	config AdapterConfig
	client *httpclient.InstrumentedClient
	logger logger.LoggerInterface

	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker[*httpclient.Response]

	// ready is closed once market metadata has loaded; loadErr is only
	// valid after that.
	ready   chan struct{}
	markets map[string]MarketInfo // keyed by exchange symbol, e.g. "ETHUSDT"
	loadErr error
}

// MarketInfo describes one tradable symbol from exchange metadata.
type MarketInfo struct {
	Symbol       string
	Base         string
	Quote        string
	QtyPrecision int32
}

// NewAdapter creates the adapter and starts the one-shot market metadata
// load in the background.
func NewAdapter(cfg AdapterConfig, log logger.LoggerInterface) (*Adapter, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRESTURL
	}
	if cfg.Venue == "" {
		cfg.Venue = "binance"
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithProviderName("binance"),
		httpclient.WithTimeout(10*time.Second),
		httpclient.WithDefaultHeaders(map[string]string{
			"X-MBX-APIKEY": cfg.APIKey,
		}),
	)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeExchangeConnectionFailed, "create http client")
	}

	// The breaker protects the venue from being hammered during an outage.
	// It is transport-level protection, separate from the risk manager's
	// failure window.
	breaker := gobreaker.NewCircuitBreaker[*httpclient.Response](gobreaker.Settings{
		Name:        "binance-rest",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 8
		},
	})

	a := &Adapter{
		config:  cfg,
		client:  client,
		logger:  log,
		limiter: ratelimit.NewWithBurst(orderRequestsPerSecond, orderBurst),
		breaker: breaker,
		ready:   make(chan struct{}),
	}

	go a.loadMarkets(context.Background())

	return a, nil
}

// awaitReady blocks until market metadata has loaded.
func (a *Adapter) awaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.ready:
		return a.loadErr
	}
}

// loadMarkets fetches exchangeInfo once and indexes tradable symbols.
func (a *Adapter) loadMarkets(ctx context.Context) {
	defer close(a.ready)

	var info exchangeInfoResponse
	resp, err := a.client.NewRequest().
		SetResult(&info).
		Get(ctx, "/api/v3/exchangeInfo")
	if err != nil {
		a.loadErr = apperror.New(apperror.CodeMarketMetadataFailed, apperror.WithCause(err))
		return
	}
	if resp.IsError() {
		a.loadErr = apperror.New(apperror.CodeMarketMetadataFailed,
			apperror.WithContext(fmt.Sprintf("exchangeInfo returned %d", resp.StatusCode)))
		return
	}

	markets := make(map[string]MarketInfo, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		markets[s.Symbol] = MarketInfo{
			Symbol:       s.Symbol,
			Base:         s.BaseAsset,
			Quote:        s.QuoteAsset,
			QtyPrecision: s.BaseAssetPrecision,
		}
	}
	a.markets = markets

	a.logger.Info(ctx, "market metadata loaded", "symbols", len(markets))
}

// Markets returns the tradable market map, for discovery-mode enumeration.
func (a *Adapter) Markets(ctx context.Context) (map[string]MarketInfo, error) {
	if err := a.awaitReady(ctx); err != nil {
		return nil, err
	}
	return a.markets, nil
}

// FetchBalances returns the free balance per asset.
func (a *Adapter) FetchBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	if err := a.awaitReady(ctx); err != nil {
		return nil, err
	}

	var account accountResponse
	query := a.sign(url.Values{
		"timestamp": {strconv.FormatInt(time.Now().UnixMilli(), 10)},
	})

	resp, err := a.client.NewRequest().
		SetRawQuery(query).
		SetResult(&account).
		Get(ctx, "/api/v3/account")
	if err != nil {
		return nil, apperror.New(apperror.CodeExchangeAPIError, apperror.WithCause(err),
			apperror.WithContext("fetch balances"))
	}
	if resp.IsError() {
		return nil, a.apiError(resp, "fetch balances")
	}

	balances := make(map[string]decimal.Decimal, len(account.Balances))
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			continue
		}
		if free.IsPositive() {
			balances[b.Asset] = free
		}
	}
	return balances, nil
}

// CreateBulkOrders submits all orders concurrently. The returned slice is
// positionally aligned with the input; a single failed leg fails the call.
func (a *Adapter) CreateBulkOrders(ctx context.Context, orders []domain.Order) ([]domain.OrderResult, error) {
	if err := a.awaitReady(ctx); err != nil {
		return nil, err
	}

	results := make([]domain.OrderResult, len(orders))

	g, ctx := errgroup.WithContext(ctx)
	for i, order := range orders {
		g.Go(func() error {
			res, err := a.createOrder(ctx, order)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// createOrder submits one market order.
func (a *Adapter) createOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	if !order.Valid() {
		return domain.OrderResult{}, apperror.New(apperror.CodeInvalidInstruction,
			apperror.WithContext(fmt.Sprintf("%s %s %s", order.Side, order.Amount, order.Symbol)))
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return domain.OrderResult{}, err
	}

	symbol := exchangeSymbol(order.Symbol)
	clientOrderID := uuid.NewString()

	params := url.Values{
		"symbol":           {symbol},
		"side":             {strings.ToUpper(string(order.Side))},
		"type":             {"MARKET"},
		"quantity":         {a.formatQty(symbol, order.Amount)},
		"newClientOrderId": {clientOrderID},
		"timestamp":        {strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}

	var ack orderAckResponse
	resp, err := a.breaker.Execute(func() (*httpclient.Response, error) {
		resp, err := a.client.NewRequest().
			SetRawQuery(a.sign(params)).
			SetResult(&ack).
			Post(ctx, "/api/v3/order")
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, fmt.Errorf("binance returned %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return domain.OrderResult{}, apperror.New(apperror.CodeOrderSubmitFailed,
				apperror.WithCause(err),
				apperror.WithContext("venue breaker open"))
		}
		return domain.OrderResult{}, apperror.New(apperror.CodeOrderSubmitFailed,
			apperror.WithCause(err),
			apperror.WithContext(symbol))
	}
	if resp.IsError() {
		return domain.OrderResult{}, a.apiError(resp, "create order "+symbol)
	}

	return domain.OrderResult{
		OrderID:       strconv.FormatInt(ack.OrderID, 10),
		ClientOrderID: clientOrderID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		Amount:        order.Amount,
		Status:        ack.Status,
		SubmittedAt:   time.Now(),
	}, nil
}

// FeeRate returns the venue taker fee from the configured table, with the
// 10 bps default for unknown venues.
func (a *Adapter) FeeRate(symbol string) decimal.Decimal {
	if fees, ok := a.config.FeeTable[a.config.Venue]; ok {
		if taker, ok := fees["taker"]; ok {
			return taker
		}
	}
	return decimal.NewFromFloat(0.001)
}

// sign appends the HMAC-SHA256 signature Binance requires on signed
// endpoints. The signature covers the exact encoded query string.
func (a *Adapter) sign(params url.Values) string {
	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(a.config.APISecret))
	mac.Write([]byte(query))
	return query + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}

func (a *Adapter) formatQty(symbol string, qty decimal.Decimal) string {
	precision := int32(8)
	if m, ok := a.markets[symbol]; ok && m.QtyPrecision > 0 {
		precision = m.QtyPrecision
	}
	return qty.RoundDown(precision).String()
}

func (a *Adapter) apiError(resp *httpclient.Response, context string) error {
	code := apperror.CodeExchangeAPIError
	if resp.StatusCode == 429 || resp.StatusCode == 418 {
		code = apperror.CodeExchangeRateLimited
	}
	return apperror.New(code,
		apperror.WithContext(fmt.Sprintf("%s: %d %s", context, resp.StatusCode, resp.String())))
}

// exchangeSymbol converts canonical "BASE/QUOTE" to the venue's "BASEQUOTE".
func exchangeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}
