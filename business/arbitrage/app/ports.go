package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/arbitrage/domain"
	"github.com/fd1az/triarb-bot/internal/logger"
)

// CycleExecutor consumes one opportunity, taking and settling exactly one
// risk reservation per invocation.
type CycleExecutor interface {
	Execute(ctx context.Context, opp domain.Opportunity) error
}

// Recorder is the narrow contract to the external storage collaborator.
// Opportunities are indexed by triangle hash; trades reference the
// opportunity they executed.
type Recorder interface {
	RecordOpportunity(ctx context.Context, opp domain.Opportunity) (int64, error)
	RecordTrade(ctx context.Context, opportunityID int64, details map[string]any, pnlQuote decimal.Decimal) error
}

// LogRecorder satisfies Recorder by writing structured log entries. It
// stands in when no storage collaborator is attached.
type LogRecorder struct {
	logger logger.LoggerInterface
	nextID int64
}

// NewLogRecorder creates a log-backed recorder.
func NewLogRecorder(log logger.LoggerInterface) *LogRecorder {
	return &LogRecorder{logger: log}
}

// RecordOpportunity logs the opportunity and returns a synthetic id.
func (r *LogRecorder) RecordOpportunity(ctx context.Context, opp domain.Opportunity) (int64, error) {
	r.nextID++
	r.logger.Info(ctx, "opportunity.recorded",
		"id", r.nextID,
		"triangle_hash", opp.TriangleHash(),
		"gross_bps", opp.GrossBps.StringFixed(2),
		"net_bps", opp.NetBps.StringFixed(2),
		"notional_quote", opp.NotionalQuote.String(),
	)
	return r.nextID, nil
}

// RecordTrade logs the executed trade.
func (r *LogRecorder) RecordTrade(ctx context.Context, opportunityID int64, details map[string]any, pnlQuote decimal.Decimal) error {
	r.logger.Info(ctx, "trade.recorded",
		"opportunity_id", opportunityID,
		"pnl_quote", pnlQuote.String(),
		"details", details,
	)
	return nil
}
