package app

import (
	"context"
	"time"

	"github.com/fd1az/triarb-bot/internal/logger"
)

// EngineConfig holds the control-loop settings.
type EngineConfig struct {
	// EvalInterval is the pause between evaluation passes.
	EvalInterval time.Duration
}

// Engine is the control loop: it evaluates the signal engine against the
// store, then executes each emitted opportunity in order before the next
// pass.
type Engine struct {
	signal   *SignalEngine
	executor CycleExecutor
	config   EngineConfig
	logger   logger.LoggerInterface
}

// NewEngine creates the control loop.
func NewEngine(signal *SignalEngine, executor CycleExecutor, cfg EngineConfig, log logger.LoggerInterface) *Engine {
	if cfg.EvalInterval <= 0 {
		cfg.EvalInterval = 250 * time.Millisecond
	}
	return &Engine{
		signal:   signal,
		executor: executor,
		config:   cfg,
		logger:   log,
	}
}

// Run evaluates and executes until ctx is cancelled. Execution failures are
// settled by the executor through the risk manager; the loop itself never
// stops on them.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info(ctx, "engine.start", "triangles", len(e.signal.Triangles()))

	for {
		opportunities := e.signal.Evaluate(ctx)
		for _, opp := range opportunities {
			if ctx.Err() != nil {
				return nil
			}
			if err := e.executor.Execute(ctx, opp); err != nil {
				e.logger.Warn(ctx, "cycle execution failed",
					"triangle", opp.TriangleHash(),
					"error", err,
				)
			}
		}

		select {
		case <-ctx.Done():
			e.logger.Info(ctx, "engine.stop", "reason", ctx.Err())
			return nil
		case <-time.After(e.config.EvalInterval):
		}
	}
}
