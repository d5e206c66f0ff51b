package binance

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/triarb-bot/business/marketdata/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/wsconn"
)

const (
	tracerName = "binance-feed"
	meterName  = "binance-feed"

	// Binance WebSocket endpoints
	BaseWSURL     = "wss://stream.binance.com:9443"
	DataStreamURL = "wss://data-stream.binance.vision"
	// Binance US endpoint (for users in USA)
	BaseWSURLUS = "wss://stream.binance.us:9443"
)

// FeedConfig holds configuration for the market-data feed.
type FeedConfig struct {
	// BaseURLs is the ordered endpoint list; alternates are used for
	// geographic-block failover.
	BaseURLs []string
	// Symbols are canonical "BASE/QUOTE" symbols to subscribe.
	Symbols []string
	// QuoteAssets drive wire-symbol canonicalization (longest suffix wins).
	QuoteAssets  []string
	DepthSpeedMs int // Depth update speed (100 or 1000)
	PingInterval time.Duration
}

// DefaultFeedConfig returns sensible defaults.
func DefaultFeedConfig(symbols []string) FeedConfig {
	return FeedConfig{
		BaseURLs:     []string{BaseWSURL},
		Symbols:      symbols,
		QuoteAssets:  []string{"USDT", "BTC", "ETH", "BNB"},
		DepthSpeedMs: 100,
		PingInterval: 20 * time.Second,
	}
}

// feedMetrics holds OTEL metric instruments.
type feedMetrics struct {
	messagesReceived metric.Int64Counter
	depthUpdates     metric.Int64Counter
	tickerUpdates    metric.Int64Counter
	parseErrors      metric.Int64Counter
}

// Feed maintains a multiplexed depth subscription over the configured
// symbols and writes every update into the order-book store. Upserts are
// fire-and-forget: the feed never blocks on evaluation.
type Feed struct {
	config FeedConfig
	store  *domain.Store
	logger logger.LoggerInterface

	conn *wsconn.Client

	nextID atomic.Int64

	tracer  trace.Tracer
	metrics *feedMetrics
}

// NewFeed creates a market-data feed writing into store.
func NewFeed(cfg FeedConfig, store *domain.Store, log logger.LoggerInterface) (*Feed, error) {
	if len(cfg.Symbols) == 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no symbols configured"))
	}
	if len(cfg.BaseURLs) == 0 {
		cfg.BaseURLs = []string{BaseWSURL}
	}

	f := &Feed{
		config: cfg,
		store:  store,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}

	if err := f.initMetrics(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternalError, "init feed metrics")
	}

	wsCfg := wsconn.DefaultConfig(f.streamURLs(), "binance-md")
	if cfg.PingInterval > 0 {
		wsCfg.PingInterval = cfg.PingInterval
	}

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, apperror.New(apperror.CodeExchangeConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to create wsconn"))
	}
	conn.OnMessage(f.handleMessage)

	f.conn = conn
	return f, nil
}

func (f *Feed) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	f.metrics = &feedMetrics{}

	f.metrics.messagesReceived, err = meter.Int64Counter(
		"binance_md_messages_total",
		metric.WithDescription("Total market-data messages received"),
	)
	if err != nil {
		return err
	}

	f.metrics.depthUpdates, err = meter.Int64Counter(
		"binance_md_depth_updates_total",
		metric.WithDescription("Total depth updates applied to the store"),
	)
	if err != nil {
		return err
	}

	f.metrics.tickerUpdates, err = meter.Int64Counter(
		"binance_md_ticker_updates_total",
		metric.WithDescription("Total bookTicker updates applied to the store"),
	)
	if err != nil {
		return err
	}

	f.metrics.parseErrors, err = meter.Int64Counter(
		"binance_md_parse_errors_total",
		metric.WithDescription("Market-data message parse errors"),
	)
	if err != nil {
		return err
	}

	return nil
}

// streamURLs builds the combined-streams URL for every configured endpoint:
// <base>/stream?streams=<s1>/<s2>/...
func (f *Feed) streamURLs() []string {
	streams := make([]string, 0, len(f.config.Symbols))
	for _, sym := range f.config.Symbols {
		streams = append(streams, DepthStream(sym, f.config.DepthSpeedMs))
	}
	query := "streams=" + strings.Join(streams, "/")

	urls := make([]string, 0, len(f.config.BaseURLs))
	for _, base := range f.config.BaseURLs {
		u, err := url.Parse(base)
		if err != nil {
			f.logger.Warn(context.Background(), "skipping invalid ws base url",
				"url", base, "error", err)
			continue
		}
		u.Path = "/stream"
		u.RawQuery = query
		urls = append(urls, u.String())
	}
	return urls
}

// Run connects and pumps messages into the store until ctx is cancelled.
// The websocket is closed on every exit path.
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info(ctx, "market-data feed starting",
		"symbols", f.config.Symbols,
		"endpoints", len(f.config.BaseURLs),
	)
	defer f.conn.Close()

	return f.conn.Run(ctx)
}

// Close terminates the feed connection.
func (f *Feed) Close() error {
	return f.conn.Close()
}

// IsConnected reports whether the underlying websocket is connected.
func (f *Feed) IsConnected() bool {
	return f.conn.IsConnected()
}

// Subscribe adds streams to the live subscription.
func (f *Feed) Subscribe(ctx context.Context, streams ...string) error {
	req := WSRequest{Method: "SUBSCRIBE", Params: streams, ID: f.nextID.Add(1)}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := f.conn.Send(ctx, data); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext("failed to subscribe"))
	}
	return nil
}

// Unsubscribe removes streams from the live subscription.
func (f *Feed) Unsubscribe(ctx context.Context, streams ...string) error {
	req := WSRequest{Method: "UNSUBSCRIBE", Params: streams, ID: f.nextID.Add(1)}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := f.conn.Send(ctx, data); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext("failed to unsubscribe"))
	}
	return nil
}

// handleMessage parses one combined-stream message and upserts the store.
// Malformed messages are skipped without state change.
func (f *Feed) handleMessage(ctx context.Context, data []byte) {
	f.metrics.messagesReceived.Add(ctx, 1)

	var event StreamEvent
	if err := json.Unmarshal(data, &event); err != nil || event.Stream == "" {
		// Might be a subscription response
		var resp WSResponse
		if json.Unmarshal(data, &resp) == nil && resp.ID != 0 {
			f.logger.Debug(ctx, "subscription response received", "id", resp.ID)
			return
		}
		f.metrics.parseErrors.Add(ctx, 1)
		return
	}

	switch {
	case strings.HasSuffix(event.Stream, "@bookTicker"):
		f.applyBookTicker(ctx, &event)
	case strings.Contains(event.Stream, "@depth"):
		f.applyDepth(ctx, &event)
	}
}

func (f *Feed) applyDepth(ctx context.Context, event *StreamEvent) {
	var depth DepthEvent
	if err := json.Unmarshal(event.Data, &depth); err != nil {
		f.metrics.parseErrors.Add(ctx, 1)
		f.logger.Debug(ctx, "failed to parse depth event", "error", err)
		return
	}

	raw := depth.Symbol
	if raw == "" {
		raw = symbolFromStream(event.Stream)
	}
	if raw == "" {
		f.metrics.parseErrors.Add(ctx, 1)
		return
	}

	bids, err := ParseLevels(depth.Bids)
	if err != nil {
		f.metrics.parseErrors.Add(ctx, 1)
		return
	}
	asks, err := ParseLevels(depth.Asks)
	if err != nil {
		f.metrics.parseErrors.Add(ctx, 1)
		return
	}

	symbol := domain.CanonicalSymbol(raw, f.config.QuoteAssets)
	f.store.Upsert(symbol, bids, asks)
	f.metrics.depthUpdates.Add(ctx, 1,
		metric.WithAttributes(attribute.String("symbol", symbol)))
}

func (f *Feed) applyBookTicker(ctx context.Context, event *StreamEvent) {
	var ticker BookTickerEvent
	if err := json.Unmarshal(event.Data, &ticker); err != nil || ticker.Symbol == "" {
		f.metrics.parseErrors.Add(ctx, 1)
		return
	}

	bid, err := ticker.BidLevel()
	if err != nil {
		f.metrics.parseErrors.Add(ctx, 1)
		return
	}
	ask, err := ticker.AskLevel()
	if err != nil {
		f.metrics.parseErrors.Add(ctx, 1)
		return
	}

	symbol := domain.CanonicalSymbol(ticker.Symbol, f.config.QuoteAssets)
	f.store.Upsert(symbol, []domain.Level{bid}, []domain.Level{ask})
	f.metrics.tickerUpdates.Add(ctx, 1,
		metric.WithAttributes(attribute.String("symbol", symbol)))
}

// symbolFromStream extracts the wire symbol from a stream name.
// Example: "ethusdt@depth5@100ms" -> "ETHUSDT"
func symbolFromStream(stream string) string {
	idx := strings.Index(stream, "@")
	if idx <= 0 {
		return ""
	}
	return strings.ToUpper(stream[:idx])
}
