// Package httpclient provides an instrumented HTTP client with a fluent
// request builder.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/fd1az/triarb-bot/internal/httpclient"
	meterName  = "github.com/fd1az/triarb-bot/internal/httpclient"

	// Default connection pool settings
	defaultDialKeepAlive         = 10 * time.Second
	defaultRequestTimeout        = 10 * time.Second
	defaultMaxConnsPerHost       = 5
	defaultIdleConnTimeout       = 2 * time.Minute
	defaultExpectContinueTimeout = 100 * time.Millisecond

	metricRequestCounter = "http_client_requests_total"
)

// Client is the interface for making HTTP requests.
type Client interface {
	// NewRequest creates a new request builder.
	NewRequest() Request
}

// InstrumentedClient wraps http.Client with OTEL instrumentation.
type InstrumentedClient struct {
	client         *http.Client
	requestCounter metric.Int64Counter
	providerName   string
	tracer         trace.Tracer
	baseURL        string
	defaultHeaders map[string]string
}

// ClientOption configures an InstrumentedClient.
type ClientOption func(*InstrumentedClient)

// WithBaseURL sets the base URL prefixed to relative request paths.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *InstrumentedClient) {
		c.baseURL = baseURL
	}
}

// WithProviderName names the upstream provider for metrics and traces.
func WithProviderName(name string) ClientOption {
	return func(c *InstrumentedClient) {
		c.providerName = name
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *InstrumentedClient) {
		c.client.Timeout = timeout
	}
}

// WithDefaultHeaders sets headers attached to every request.
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *InstrumentedClient) {
		c.defaultHeaders = headers
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *InstrumentedClient) {
		c.client = client
	}
}

// NewInstrumentedClient creates a new instrumented HTTP client.
func NewInstrumentedClient(opts ...ClientOption) (*InstrumentedClient, error) {
	c := &InstrumentedClient{
		client: &http.Client{
			Timeout: defaultRequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					KeepAlive: defaultDialKeepAlive,
				}).DialContext,
				MaxConnsPerHost:       defaultMaxConnsPerHost,
				IdleConnTimeout:       defaultIdleConnTimeout,
				ExpectContinueTimeout: defaultExpectContinueTimeout,
			},
		},
		providerName: "default",
		tracer:       otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(c)
	}

	// Wrap transport with OTEL instrumentation
	c.client.Transport = otelhttp.NewTransport(
		c.client.Transport,
		otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}),
	)

	counter, err := otel.Meter(meterName).Int64Counter(
		metricRequestCounter,
		metric.WithDescription("Total HTTP client requests"),
	)
	if err != nil {
		return nil, err
	}
	c.requestCounter = counter

	return c, nil
}

// NewRequest creates a new request builder.
func (c *InstrumentedClient) NewRequest() Request {
	return &requestBuilder{
		client:         c.client,
		requestCounter: c.requestCounter,
		providerName:   c.providerName,
		tracer:         c.tracer,
		baseURL:        c.baseURL,
		headers:        cloneHeaders(c.defaultHeaders),
	}
}

func cloneHeaders(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
