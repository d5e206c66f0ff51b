// Package wsconn provides a production-grade WebSocket client with endpoint
// failover, exponential backoff reconnection, and OTEL instrumentation.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/fd1az/triarb-bot/internal/wsconn"
	meterName  = "github.com/fd1az/triarb-bot/internal/wsconn"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Config holds WebSocket client configuration.
type Config struct {
	// URLs is the ordered endpoint list. The client connects to the first
	// entry and advances round-robin when an endpoint answers the upgrade
	// handshake with HTTP 451.
	URLs           []string
	Name           string // Identifier for metrics/tracing
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64 // Max message size in bytes (0 = no limit)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(urls []string, name string) Config {
	return Config{
		URLs:           urls,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		PingInterval:   20 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 10 * 1024 * 1024, // 10MB
	}
}

// MessageHandler is called for every message received.
type MessageHandler func(ctx context.Context, msg []byte)

// StateChangeHandler is called when connection state changes.
type StateChangeHandler func(state State, err error)

// clientMetrics holds OTEL metric instruments.
type clientMetrics struct {
	connectionState   metric.Int64Gauge
	messagesReceived  metric.Int64Counter
	messagesSent      metric.Int64Counter
	bytesReceived     metric.Int64Counter
	reconnectsTotal   metric.Int64Counter
	endpointFailovers metric.Int64Counter
	pingsTotal        metric.Int64Counter
	pingsFailed       metric.Int64Counter
}

// Client is a reconnecting WebSocket client. Run owns the connection
// lifecycle; the zero value is not usable, construct with New.
type Client struct {
	config Config

	conn   *websocket.Conn
	connMu sync.RWMutex

	state   State
	stateMu sync.RWMutex

	// endpoint is the index into config.URLs of the endpoint the next
	// dial will target.
	endpoint   int
	endpointMu sync.Mutex

	closed atomic.Bool
	done   chan struct{}

	handlersMu    sync.RWMutex
	onMessage     MessageHandler
	onStateChange StateChangeHandler

	tracer  trace.Tracer
	metrics *clientMetrics
}

// New creates a new WebSocket client.
func New(config Config) (*Client, error) {
	if len(config.URLs) == 0 {
		return nil, errors.New("wsconn: at least one endpoint URL is required")
	}

	c := &Client{
		config: config,
		state:  StateDisconnected,
		done:   make(chan struct{}),
		tracer: otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)

	var err error

	c.metrics = &clientMetrics{}

	c.metrics.connectionState, err = meter.Int64Gauge(
		"ws_connection_state",
		metric.WithDescription("WebSocket connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=closed)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	c.metrics.messagesReceived, err = meter.Int64Counter(
		"ws_messages_received_total",
		metric.WithDescription("Total number of WebSocket messages received"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return err
	}

	c.metrics.messagesSent, err = meter.Int64Counter(
		"ws_messages_sent_total",
		metric.WithDescription("Total number of WebSocket messages sent"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return err
	}

	c.metrics.bytesReceived, err = meter.Int64Counter(
		"ws_bytes_received_total",
		metric.WithDescription("Total bytes received over WebSocket"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	c.metrics.reconnectsTotal, err = meter.Int64Counter(
		"ws_reconnects_total",
		metric.WithDescription("Total number of WebSocket reconnection attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return err
	}

	c.metrics.endpointFailovers, err = meter.Int64Counter(
		"ws_endpoint_failovers_total",
		metric.WithDescription("Total number of endpoint advances after a geographic block"),
		metric.WithUnit("{failover}"),
	)
	if err != nil {
		return err
	}

	c.metrics.pingsTotal, err = meter.Int64Counter(
		"ws_pings_total",
		metric.WithDescription("Total WebSocket ping attempts"),
		metric.WithUnit("{ping}"),
	)
	if err != nil {
		return err
	}

	c.metrics.pingsFailed, err = meter.Int64Counter(
		"ws_pings_failed_total",
		metric.WithDescription("Total WebSocket ping failures"),
		metric.WithUnit("{ping}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// OnMessage sets the message handler.
func (c *Client) OnMessage(handler MessageHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onMessage = handler
}

// OnStateChange sets the state change handler.
func (c *Client) OnStateChange(handler StateChangeHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onStateChange = handler
}

// Run connects and reads messages until ctx is cancelled or Close is called.
// Lost connections are re-established with exponential backoff starting at
// InitialBackoff, doubling up to MaxBackoff. The backoff resets to
// InitialBackoff on every successfully delivered message, not merely on
// connect. An endpoint answering the upgrade handshake with HTTP 451
// advances the client to the next endpoint in round-robin order; all other
// dial errors retry the current endpoint.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.config.InitialBackoff
	attrs := metric.WithAttributes(attribute.String("ws.name", c.config.Name))

	for {
		select {
		case <-ctx.Done():
			c.setState(StateClosed)
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.metrics.reconnectsTotal.Add(ctx, 1, attrs)
			if !c.sleep(ctx, backoff) {
				c.setState(StateClosed)
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, c.config.MaxBackoff)
			continue
		}

		stopPing := make(chan struct{})
		go c.pingLoop(ctx, conn, stopPing)

		readErr := c.readLoop(ctx, conn, &backoff)
		close(stopPing)

		conn.Close(websocket.StatusGoingAway, "reconnecting")
		c.clearConn(conn)

		if c.closed.Load() {
			return nil
		}
		if ctx.Err() != nil {
			c.setState(StateClosed)
			return ctx.Err()
		}

		c.setStateErr(StateReconnecting, readErr)
		c.metrics.reconnectsTotal.Add(ctx, 1, attrs)

		if !c.sleep(ctx, backoff) {
			c.setState(StateClosed)
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, c.config.MaxBackoff)
	}
}

// dial attempts the upgrade handshake against the current endpoint.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	url := c.CurrentURL()

	ctx, span := c.tracer.Start(ctx, "ws.connect",
		trace.WithAttributes(
			attribute.String("ws.url", url),
			attribute.String("ws.name", c.config.Name),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	c.setState(StateConnecting)

	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		span.RecordError(err)
		c.setState(StateDisconnected)

		if resp != nil && resp.StatusCode == http.StatusUnavailableForLegalReasons {
			advanced := c.advanceEndpoint()
			span.SetStatus(codes.Error, "endpoint geographically blocked")
			span.AddEvent("endpoint failover",
				trace.WithAttributes(attribute.String("ws.next_url", c.CurrentURL())))
			if advanced {
				c.metrics.endpointFailovers.Add(ctx, 1,
					metric.WithAttributes(attribute.String("ws.name", c.config.Name)))
			}
			return nil, fmt.Errorf("endpoint blocked (451): %s: %w", url, err)
		}

		span.SetStatus(codes.Error, "connection failed")
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateConnected)
	span.SetStatus(codes.Ok, "connected")

	return conn, nil
}

// readLoop reads until the connection fails, resetting the reconnect backoff
// on every delivered message.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, backoff *time.Duration) error {
	attrs := metric.WithAttributes(attribute.String("ws.name", c.config.Name))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if msgType != websocket.MessageText && msgType != websocket.MessageBinary {
			continue
		}

		*backoff = c.config.InitialBackoff

		c.metrics.messagesReceived.Add(ctx, 1, attrs)
		c.metrics.bytesReceived.Add(ctx, int64(len(data)), attrs)

		c.handlersMu.RLock()
		handler := c.onMessage
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(ctx, data)
		}
	}
}

// pingLoop sends periodic pings to detect half-open connections. A failed
// ping closes the connection, which unblocks the read loop.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	if c.config.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	attrs := metric.WithAttributes(attribute.String("ws.name", c.config.Name))

	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, c.config.PingInterval)
			err := conn.Ping(pingCtx)
			cancel()

			if err != nil {
				c.metrics.pingsFailed.Add(ctx, 1, attrs)
				conn.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
			c.metrics.pingsTotal.Add(ctx, 1, attrs)
		}
	}
}

// Send sends a message through the WebSocket.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return errors.New("not connected")
	}

	writeCtx := ctx
	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	if err := conn.Write(writeCtx, websocket.MessageText, msg); err != nil {
		return fmt.Errorf("websocket write failed: %w", err)
	}

	c.metrics.messagesSent.Add(ctx, 1,
		metric.WithAttributes(attribute.String("ws.name", c.config.Name)))
	return nil
}

// CurrentURL returns the endpoint the next dial will target.
func (c *Client) CurrentURL() string {
	c.endpointMu.Lock()
	defer c.endpointMu.Unlock()
	return c.config.URLs[c.endpoint]
}

// advanceEndpoint moves to the next endpoint in round-robin order.
// Returns false when there is no alternate to advance to.
func (c *Client) advanceEndpoint() bool {
	c.endpointMu.Lock()
	defer c.endpointMu.Unlock()
	if len(c.config.URLs) <= 1 {
		return false
	}
	c.endpoint = (c.endpoint + 1) % len(c.config.URLs)
	return true
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close terminates the client. Run returns after the in-flight read
// observes the closed connection.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	c.setState(StateClosed)

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	return nil
}

func (c *Client) clearConn(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
}

// sleep waits for d or until the client is cancelled. Returns false when
// cancelled.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.done:
		return true
	case <-time.After(d):
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

func (c *Client) setState(state State) {
	c.setStateErr(state, nil)
}

func (c *Client) setStateErr(state State, err error) {
	c.stateMu.Lock()
	oldState := c.state
	c.state = state
	c.stateMu.Unlock()

	if oldState == state {
		return
	}

	var stateValue int64
	switch state {
	case StateDisconnected:
		stateValue = 0
	case StateConnecting:
		stateValue = 1
	case StateConnected:
		stateValue = 2
	case StateReconnecting:
		stateValue = 3
	case StateClosed:
		stateValue = 4
	}

	c.metrics.connectionState.Record(context.Background(), stateValue,
		metric.WithAttributes(attribute.String("ws.name", c.config.Name)),
	)

	c.handlersMu.RLock()
	stateHandler := c.onStateChange
	c.handlersMu.RUnlock()
	if stateHandler != nil {
		stateHandler(state, err)
	}
}
