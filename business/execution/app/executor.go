// Package app implements the execution service: it turns an opportunity
// into a three-order instruction set and submits it through the exchange
// adapter.
package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	arbApp "github.com/fd1az/triarb-bot/business/arbitrage/app"
	arbDomain "github.com/fd1az/triarb-bot/business/arbitrage/domain"
	exchangeApp "github.com/fd1az/triarb-bot/business/exchange/app"
	exchangeDomain "github.com/fd1az/triarb-bot/business/exchange/domain"
	mddomain "github.com/fd1az/triarb-bot/business/marketdata/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
	"github.com/fd1az/triarb-bot/internal/logger"
)

const (
	tracerName = "github.com/fd1az/triarb-bot/business/execution/app"
	meterName  = "github.com/fd1az/triarb-bot/business/execution/app"
)

var one = decimal.NewFromInt(1)

// Ensure port compliance
var _ arbApp.CycleExecutor = (*Executor)(nil)

// ExecutorConfig holds executor settings.
type ExecutorConfig struct {
	Quote       string
	SlippageBps decimal.Decimal
}

// executorMetrics holds OTEL metric instruments.
type executorMetrics struct {
	cyclesExecuted metric.Int64Counter
	cyclesFailed   metric.Int64Counter
	buildFailures  metric.Int64Counter
	riskRejections metric.Int64Counter
}

// Executor converts opportunities into order instruction sets. Every
// invocation takes exactly one risk reservation and settles it with exactly
// one release or failure.
type Executor struct {
	adapter  exchangeApp.Adapter
	store    *mddomain.Store
	risk     *arbApp.RiskManager
	recorder arbApp.Recorder
	config   ExecutorConfig
	logger   logger.LoggerInterface

	slip decimal.Decimal // one-sided price buffer per leg

	tracer  trace.Tracer
	metrics *executorMetrics
}

// NewExecutor creates an executor.
func NewExecutor(
	adapter exchangeApp.Adapter,
	store *mddomain.Store,
	risk *arbApp.RiskManager,
	recorder arbApp.Recorder,
	cfg ExecutorConfig,
	log logger.LoggerInterface,
) *Executor {
	e := &Executor{
		adapter:  adapter,
		store:    store,
		risk:     risk,
		recorder: recorder,
		config:   cfg,
		logger:   log,
		slip:     arbDomain.BpsToRatio(cfg.SlippageBps),
		tracer:   otel.Tracer(tracerName),
	}

	if err := e.initMetrics(); err != nil {
		log.Error(context.Background(), "failed to initialize executor metrics", "error", err)
	}

	return e
}

func (e *Executor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	e.metrics = &executorMetrics{}

	e.metrics.cyclesExecuted, err = meter.Int64Counter(
		"triarb_cycles_executed_total",
		metric.WithDescription("Cycles whose three orders were all acknowledged"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return err
	}

	e.metrics.cyclesFailed, err = meter.Int64Counter(
		"triarb_cycles_failed_total",
		metric.WithDescription("Cycles that failed during order submission"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return err
	}

	e.metrics.buildFailures, err = meter.Int64Counter(
		"triarb_cycle_build_failures_total",
		metric.WithDescription("Cycles aborted while building instructions"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return err
	}

	e.metrics.riskRejections, err = meter.Int64Counter(
		"triarb_execution_risk_rejections_total",
		metric.WithDescription("Cycles denied a risk reservation"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Execute reserves capacity, rebuilds the cycle against the live store,
// and submits all three orders concurrently through the adapter.
//
// Settlement is exact: a denied reservation returns without side effects, a
// build failure releases the reservation, a submission failure registers a
// breaker event (which also releases), and a success releases.
func (e *Executor) Execute(ctx context.Context, opp arbDomain.Opportunity) error {
	ctx, span := e.tracer.Start(ctx, "executor.execute",
		trace.WithAttributes(
			attribute.String("triangle", opp.TriangleHash()),
			attribute.String("notional_quote", opp.NotionalQuote.String()),
		),
	)
	defer span.End()

	if !e.risk.AllowCycle(opp.NotionalQuote) {
		if e.metrics != nil {
			e.metrics.riskRejections.Add(ctx, 1)
		}
		span.SetAttributes(attribute.Bool("risk_rejected", true))
		return nil
	}

	orders, err := e.buildInstructions(opp)
	if err != nil {
		e.risk.ReleaseCycle()
		if e.metrics != nil {
			e.metrics.buildFailures.Add(ctx, 1)
		}
		span.RecordError(err)
		e.logger.Warn(ctx, "executor.build_failed",
			"triangle", opp.TriangleHash(),
			"error", err,
		)
		return err
	}

	opportunityID, recErr := e.recorder.RecordOpportunity(ctx, opp)
	if recErr != nil {
		e.logger.Warn(ctx, "failed to record opportunity", "error", recErr)
	}

	for _, order := range orders {
		e.logger.Info(ctx, "order.submit",
			"symbol", order.Symbol,
			"side", order.Side,
			"amount", order.Amount.String(),
		)
	}

	results, err := e.adapter.CreateBulkOrders(ctx, orders)
	if err != nil {
		e.risk.RegisterFailure()
		if e.metrics != nil {
			e.metrics.cyclesFailed.Add(ctx, 1)
		}
		span.RecordError(err)
		e.logger.Error(ctx, "executor.failed",
			"triangle", opp.TriangleHash(),
			"error", err,
		)
		return apperror.Wrap(err, apperror.CodeOrderSubmitFailed, opp.TriangleHash())
	}

	e.risk.ReleaseCycle()
	if e.metrics != nil {
		e.metrics.cyclesExecuted.Add(ctx, 1)
	}

	e.logger.Info(ctx, "cycle.executed",
		"triangle", opp.TriangleHash(),
		"net_bps", opp.NetBps.StringFixed(2),
		"orders", len(results),
	)

	if recErr == nil {
		details := make(map[string]any, len(results))
		for i, res := range results {
			details[fmt.Sprintf("leg%d", i+1)] = map[string]any{
				"order_id": res.OrderID,
				"symbol":   res.Symbol,
				"side":     string(res.Side),
				"amount":   res.Amount.String(),
				"status":   res.Status,
			}
		}
		expectedPnL := opp.NotionalQuote.Mul(opp.NetBps).Div(decimal.NewFromInt(10_000))
		if err := e.recorder.RecordTrade(ctx, opportunityID, details, expectedPnL); err != nil {
			e.logger.Warn(ctx, "failed to record trade", "error", err)
		}
	}

	return nil
}

// buildInstructions replays the cycle against the live store, not the
// snapshot the signal engine priced. Buys pay ask*(1+slip), sells receive
// bid*(1-slip); amounts propagate with (1-fee) between legs — slippage is
// folded into price here, not deducted again from the amount.
func (e *Executor) buildInstructions(opp arbDomain.Opportunity) ([]exchangeDomain.Order, error) {
	holdings := opp.NotionalQuote
	asset := e.config.Quote
	orders := make([]exchangeDomain.Order, 0, 3)

	for _, leg := range opp.Triangle.Legs {
		bid, ask := e.store.BestBidAsk(leg.Symbol)
		if bid == nil || ask == nil {
			return nil, apperror.New(apperror.CodeCycleBuildFailed,
				apperror.WithContext("missing book for "+leg.Symbol))
		}

		base, quote, ok := mddomain.SplitSymbol(leg.Symbol)
		if !ok {
			return nil, apperror.New(apperror.CodeCycleBuildFailed,
				apperror.WithContext("malformed symbol "+leg.Symbol))
		}

		fee := e.adapter.FeeRate(leg.Symbol)

		switch {
		case asset == quote && leg.FromAsset == quote:
			price := ask.Price.Mul(one.Add(e.slip))
			if !price.IsPositive() {
				return nil, apperror.New(apperror.CodeInvalidInstruction,
					apperror.WithContext("non-positive buy price for "+leg.Symbol))
			}
			qty := holdings.Div(price)
			if !qty.IsPositive() {
				return nil, apperror.New(apperror.CodeInvalidInstruction,
					apperror.WithContext("non-positive amount for "+leg.Symbol))
			}
			orders = append(orders, exchangeDomain.Order{
				Symbol: leg.Symbol,
				Side:   exchangeDomain.SideBuy,
				Type:   exchangeDomain.TypeMarket,
				Amount: qty,
			})
			holdings = qty.Mul(one.Sub(fee))
			asset = base

		case asset == base && leg.FromAsset == base:
			price := bid.Price.Mul(one.Sub(e.slip))
			if !price.IsPositive() {
				return nil, apperror.New(apperror.CodeInvalidInstruction,
					apperror.WithContext("non-positive sell price for "+leg.Symbol))
			}
			qty := holdings
			if !qty.IsPositive() {
				return nil, apperror.New(apperror.CodeInvalidInstruction,
					apperror.WithContext("non-positive amount for "+leg.Symbol))
			}
			orders = append(orders, exchangeDomain.Order{
				Symbol: leg.Symbol,
				Side:   exchangeDomain.SideSell,
				Type:   exchangeDomain.TypeMarket,
				Amount: qty,
			})
			holdings = qty.Mul(price).Mul(one.Sub(fee))
			asset = quote

		default:
			return nil, apperror.New(apperror.CodeAssetFlowMismatch,
				apperror.WithContext(leg.String()))
		}
	}

	if asset != e.config.Quote {
		return nil, apperror.New(apperror.CodeAssetFlowMismatch,
			apperror.WithContext("cycle does not return to "+e.config.Quote))
	}

	return orders, nil
}
