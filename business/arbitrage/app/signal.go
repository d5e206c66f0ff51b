// Package app contains the application services of the arbitrage context:
// the signal engine, the risk manager, and the control loop.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/triarb-bot/business/arbitrage/domain"
	mddomain "github.com/fd1az/triarb-bot/business/marketdata/domain"
	"github.com/fd1az/triarb-bot/internal/logger"
)

const (
	tracerName = "github.com/fd1az/triarb-bot/business/arbitrage/app"
	meterName  = "github.com/fd1az/triarb-bot/business/arbitrage/app"
)

var (
	one        = decimal.NewFromInt(1)
	tenK       = decimal.NewFromInt(10_000)
	threeTimes = decimal.NewFromInt(3)
)

// SignalConfig holds the thresholds and sizing for signal evaluation.
type SignalConfig struct {
	Quote           string
	Venue           string
	TargetNotional  decimal.Decimal
	MinGrossEdgeBps decimal.Decimal
	MinNetEdgeBps   decimal.Decimal
	SlippageBps     decimal.Decimal
	MaxLegNotional  decimal.Decimal
	FeeTable        domain.FeeTable
}

// signalMetrics holds OTEL metric instruments.
type signalMetrics struct {
	cyclesEvaluated      metric.Int64Counter
	opportunitiesEmitted metric.Int64Counter
	grossEdgeBps         metric.Float64Histogram
	evalLatency          metric.Float64Histogram
}

// SignalEngine walks each enumerated cycle against the order-book store and
// emits opportunities whose edge clears the configured thresholds. For
// identical store snapshots and configuration the output is identical, in
// triangle-enumeration order.
type SignalEngine struct {
	triangles []domain.Triangle
	store     *mddomain.Store
	config    SignalConfig
	logger    logger.LoggerInterface

	fee  decimal.Decimal // taker fee ratio for the venue
	slip decimal.Decimal // slippage ratio per leg

	tracer  trace.Tracer
	metrics *signalMetrics
}

// NewSignalEngine creates a signal engine over an immutable triangle set.
func NewSignalEngine(
	triangles []domain.Triangle,
	store *mddomain.Store,
	cfg SignalConfig,
	log logger.LoggerInterface,
) *SignalEngine {
	e := &SignalEngine{
		triangles: triangles,
		store:     store,
		config:    cfg,
		logger:    log,
		fee:       cfg.FeeTable.TakerFee(cfg.Venue),
		slip:      domain.BpsToRatio(cfg.SlippageBps),
		tracer:    otel.Tracer(tracerName),
	}

	if err := e.initMetrics(); err != nil {
		log.Error(context.Background(), "failed to initialize signal metrics", "error", err)
	}

	return e
}

func (e *SignalEngine) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	e.metrics = &signalMetrics{}

	e.metrics.cyclesEvaluated, err = meter.Int64Counter(
		"triarb_cycles_evaluated_total",
		metric.WithDescription("Total number of cycles evaluated"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return err
	}

	e.metrics.opportunitiesEmitted, err = meter.Int64Counter(
		"triarb_opportunities_emitted_total",
		metric.WithDescription("Total number of opportunities that cleared thresholds"),
		metric.WithUnit("{opportunity}"),
	)
	if err != nil {
		return err
	}

	e.metrics.grossEdgeBps, err = meter.Float64Histogram(
		"triarb_gross_edge_bps",
		metric.WithDescription("Gross edge of viable cycles in basis points"),
		metric.WithUnit("{bps}"),
		metric.WithExplicitBucketBoundaries(-100, -50, -20, -10, 0, 10, 20, 50, 100, 200, 500),
	)
	if err != nil {
		return err
	}

	e.metrics.evalLatency, err = meter.Float64Histogram(
		"triarb_eval_latency_ms",
		metric.WithDescription("Time to evaluate the full triangle set in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 25, 50, 100),
	)
	if err != nil {
		return err
	}

	return nil
}

// Triangles returns the engine's immutable cycle set.
func (e *SignalEngine) Triangles() []domain.Triangle {
	return e.triangles
}

// Evaluate simulates converting the target notional through every cycle at
// current top-of-book prices. Data problems never raise: a cycle with a
// missing or crossed book, or whose legs do not align with the held asset,
// is silently skipped.
func (e *SignalEngine) Evaluate(ctx context.Context) []domain.Opportunity {
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "signal.evaluate",
		trace.WithAttributes(attribute.Int("triangles", len(e.triangles))),
	)
	defer span.End()

	target := e.config.TargetNotional
	var opportunities []domain.Opportunity

	for _, triangle := range e.triangles {
		if e.metrics != nil {
			e.metrics.cyclesEvaluated.Add(ctx, 1)
		}

		final, viable := e.walkCycle(triangle, target)
		if !viable {
			continue
		}

		grossBps := final.Sub(target).Div(target).Mul(tenK)
		netBps := grossBps.Sub(e.config.SlippageBps.Mul(threeTimes))

		if e.metrics != nil {
			f, _ := grossBps.Float64()
			e.metrics.grossEdgeBps.Record(ctx, f)
		}

		if grossBps.LessThan(e.config.MinGrossEdgeBps) || netBps.LessThan(e.config.MinNetEdgeBps) {
			continue
		}

		notional := target
		if e.config.MaxLegNotional.LessThan(notional) {
			notional = e.config.MaxLegNotional
		}

		opportunities = append(opportunities, domain.Opportunity{
			Triangle:      triangle,
			GrossBps:      grossBps,
			NetBps:        netBps,
			NotionalQuote: notional,
			DetectedAt:    time.Now(),
		})

		if e.metrics != nil {
			e.metrics.opportunitiesEmitted.Add(ctx, 1)
		}

		e.logger.Info(ctx, "opportunity detected",
			"triangle", triangle.Hash(),
			"gross_bps", grossBps.StringFixed(2),
			"net_bps", netBps.StringFixed(2),
			"notional_quote", notional.String(),
		)
	}

	if e.metrics != nil {
		e.metrics.evalLatency.Record(ctx, float64(time.Since(start).Microseconds())/1000.0)
	}
	span.SetAttributes(attribute.Int("opportunities", len(opportunities)))

	return opportunities
}

// walkCycle simulates the three conversions. The per-leg deduction is
// (1 - fee - slip) applied to the converted amount; buys consume the ask,
// sells hit the bid.
func (e *SignalEngine) walkCycle(triangle domain.Triangle, target decimal.Decimal) (decimal.Decimal, bool) {
	amount := target
	holding := e.config.Quote
	feeSlip := e.fee.Add(e.slip)

	for _, leg := range triangle.Legs {
		bid, ask := e.store.BestBidAsk(leg.Symbol)
		if bid == nil || ask == nil {
			return decimal.Zero, false
		}
		// A crossed book is missing data, not an opportunity.
		if bid.Price.GreaterThanOrEqual(ask.Price) {
			return decimal.Zero, false
		}

		base, quote, ok := mddomain.SplitSymbol(leg.Symbol)
		if !ok {
			return decimal.Zero, false
		}

		switch {
		case leg.FromAsset == quote && holding == quote:
			// Buy base at the ask.
			if !ask.Price.IsPositive() {
				return decimal.Zero, false
			}
			amount = amount.Div(ask.Price).Mul(one.Sub(feeSlip))
			holding = base
		case leg.FromAsset == base && holding == base:
			// Sell base into the bid.
			amount = amount.Mul(bid.Price).Mul(one.Sub(feeSlip))
			holding = quote
		default:
			return decimal.Zero, false
		}
	}

	if holding != e.config.Quote {
		return decimal.Zero, false
	}
	return amount, true
}
