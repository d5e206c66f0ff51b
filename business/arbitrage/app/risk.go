package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/triarb-bot/internal/logger"
)

const (
	breakerWindow      = 60 * time.Second
	breakerMaxFailures = 5
)

// RiskConfig bounds exposure for the admission gate.
type RiskConfig struct {
	MaxOpenCycles  int
	MaxLegNotional decimal.Decimal
}

// riskMetrics holds OTEL metric instruments.
type riskMetrics struct {
	openCycles  metric.Int64UpDownCounter
	rejections  metric.Int64Counter
	failures    metric.Int64Counter
	breakerOpen metric.Int64Gauge
}

// RiskManager is the admission gate in front of execution: it caps the
// number of concurrently open cycles, caps per-cycle notional, and trips a
// circuit breaker on repeated submission failures within a rolling window.
type RiskManager struct {
	config RiskConfig
	logger logger.LoggerInterface

	mu         sync.Mutex
	openCycles int
	failures   []time.Time

	now func() time.Time

	metrics *riskMetrics
}

// NewRiskManager creates a risk manager.
func NewRiskManager(cfg RiskConfig, log logger.LoggerInterface) *RiskManager {
	rm := &RiskManager{
		config: cfg,
		logger: log,
		now:    time.Now,
	}

	if err := rm.initMetrics(); err != nil {
		log.Error(context.Background(), "failed to initialize risk metrics", "error", err)
	}

	return rm
}

func (rm *RiskManager) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	rm.metrics = &riskMetrics{}

	rm.metrics.openCycles, err = meter.Int64UpDownCounter(
		"triarb_open_cycles",
		metric.WithDescription("Number of cycles currently holding a risk reservation"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return err
	}

	rm.metrics.rejections, err = meter.Int64Counter(
		"triarb_risk_rejections_total",
		metric.WithDescription("Cycles rejected at admission"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return err
	}

	rm.metrics.failures, err = meter.Int64Counter(
		"triarb_execution_failures_total",
		metric.WithDescription("Execution failures registered with the breaker"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return err
	}

	rm.metrics.breakerOpen, err = meter.Int64Gauge(
		"triarb_breaker_open",
		metric.WithDescription("Whether the failure circuit breaker is tripped (1) or closed (0)"),
	)
	if err != nil {
		return err
	}

	return nil
}

// AllowCycle reports whether a cycle of the given notional may start. On
// true the open-cycle counter is pre-incremented: admission reserves
// capacity, and every reservation must be settled by exactly one
// ReleaseCycle or RegisterFailure.
func (rm *RiskManager) AllowCycle(notional decimal.Decimal) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	reason := ""
	switch {
	case rm.trippedLocked():
		reason = "breaker_open"
	case rm.openCycles >= rm.config.MaxOpenCycles:
		reason = "max_open_cycles"
	case notional.GreaterThan(rm.config.MaxLegNotional):
		reason = "notional_cap"
	}

	if reason != "" {
		if rm.metrics != nil {
			rm.metrics.rejections.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("reason", reason)))
		}
		rm.logger.Info(context.Background(), "risk.reject", "reason", reason)
		return false
	}

	rm.openCycles++
	if rm.metrics != nil {
		rm.metrics.openCycles.Add(context.Background(), 1)
	}
	return true
}

// ReleaseCycle returns a reservation, floored at zero.
func (rm *RiskManager) ReleaseCycle() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.releaseLocked()
}

// RegisterFailure records a failure timestamp, trims the rolling window,
// and releases the cycle reservation.
func (rm *RiskManager) RegisterFailure() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	now := rm.now()
	rm.failures = append(rm.failures, now)
	rm.trimLocked(now)
	rm.releaseLocked()

	if rm.metrics != nil {
		rm.metrics.failures.Add(context.Background(), 1)
		rm.recordBreakerLocked()
	}
}

// BreakerTripped reports whether the failure window is saturated.
func (rm *RiskManager) BreakerTripped() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.trippedLocked()
}

// OpenCycles returns the current reservation count.
func (rm *RiskManager) OpenCycles() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.openCycles
}

func (rm *RiskManager) releaseLocked() {
	if rm.openCycles == 0 {
		return
	}
	rm.openCycles--
	if rm.metrics != nil {
		rm.metrics.openCycles.Add(context.Background(), -1)
	}
}

// trippedLocked trims expired failures, then checks saturation. The breaker
// closes again once the oldest failure falls out of the window.
func (rm *RiskManager) trippedLocked() bool {
	rm.trimLocked(rm.now())
	tripped := len(rm.failures) >= breakerMaxFailures
	if rm.metrics != nil {
		rm.recordBreakerLocked()
	}
	return tripped
}

func (rm *RiskManager) trimLocked(now time.Time) {
	cutoff := now.Add(-breakerWindow)
	i := 0
	for i < len(rm.failures) && rm.failures[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		rm.failures = append(rm.failures[:0], rm.failures[i:]...)
	}
}

func (rm *RiskManager) recordBreakerLocked() {
	var v int64
	if len(rm.failures) >= breakerMaxFailures {
		v = 1
	}
	rm.metrics.breakerOpen.Record(context.Background(), v)
}
