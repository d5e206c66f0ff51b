// Package main is the entry point for the triangular arbitrage engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	arbApp "github.com/fd1az/triarb-bot/business/arbitrage/app"
	arbDomain "github.com/fd1az/triarb-bot/business/arbitrage/domain"
	exchangeApp "github.com/fd1az/triarb-bot/business/exchange/app"
	exchangeBinance "github.com/fd1az/triarb-bot/business/exchange/infra/binance"
	"github.com/fd1az/triarb-bot/business/exchange/infra/paper"
	executionApp "github.com/fd1az/triarb-bot/business/execution/app"
	mddomain "github.com/fd1az/triarb-bot/business/marketdata/domain"
	mdbinance "github.com/fd1az/triarb-bot/business/marketdata/infra/binance"
	"github.com/fd1az/triarb-bot/internal/apm"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/health"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/metrics"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("triarb-bot %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}
	log := logger.New(os.Stderr, logLevel, cfg.App.Name, nil)

	log.Info(ctx, "starting triangular arbitrage engine",
		"version", version,
		"environment", cfg.App.Environment,
		"paper_mode", cfg.Exchange.PaperMode,
	)

	// Initialize observability if enabled
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))

		if _, err := metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		); err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go func() {
			if err := metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port))); err != nil {
				log.Warn(ctx, "prometheus metrics server stopped", "error", err)
			}
		}()
		log.Info(ctx, "telemetry initialized", "prometheus_port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	// Health check server
	healthServer := health.NewServer(cfg.App.HealthPort, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.App.HealthPort)
	}
	defer healthServer.Stop(context.Background())

	feeTable, err := cfg.Trading.FeeTable()
	if err != nil {
		return err
	}

	// Enumerate cycles once at startup: either from the configured bases or
	// by walking the exchange's full market map.
	quoteAssets := cfg.Trading.QuoteAssetList()
	var triangles []arbDomain.Triangle
	if cfg.Trading.Discover {
		triangles, err = discoverTriangles(ctx, cfg, feeTable, log)
		if err != nil {
			return fmt.Errorf("triangle discovery failed: %w", err)
		}
	} else {
		triangles = arbDomain.BuildTriangles(cfg.Trading.Quote, cfg.Trading.BaseSymbols(), quoteAssets)
	}
	if len(triangles) == 0 {
		return fmt.Errorf("no triangles could be enumerated from tri_symbols=%q", cfg.Trading.TriSymbols)
	}
	symbols := arbDomain.SymbolUniverse(triangles)
	log.Info(ctx, "cycles enumerated", "triangles", len(triangles), "symbols", symbols)

	// Market data: store fed by the websocket feed.
	store := mddomain.NewStore()

	feedCfg := mdbinance.FeedConfig{
		BaseURLs:     cfg.Binance.WSURLs(),
		Symbols:      symbols,
		QuoteAssets:  quoteAssets,
		DepthSpeedMs: cfg.Binance.DepthSpeedMs,
		PingInterval: cfg.Binance.PingInterval,
	}
	feed, err := mdbinance.NewFeed(feedCfg, store, log)
	if err != nil {
		return fmt.Errorf("failed to create market-data feed: %w", err)
	}

	// Exchange adapter: paper mode by default.
	var adapter exchangeApp.Adapter
	if cfg.Exchange.PaperMode {
		adapter = paper.NewAdapter(cfg.Trading.Quote, feeTable.TakerFee(cfg.Exchange.Venue), log)
		log.Info(ctx, "paper adapter active")
	} else {
		adapter, err = exchangeBinance.NewAdapter(exchangeBinance.AdapterConfig{
			BaseURL:   cfg.Exchange.RESTURL,
			APIKey:    cfg.Exchange.APIKey,
			APISecret: cfg.Exchange.APISecret,
			Venue:     cfg.Exchange.Venue,
			FeeTable:  feeTable,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create exchange adapter: %w", err)
		}
		// Surface unreachable venue metadata as a fatal init failure.
		if _, err := adapter.FetchBalances(ctx); err != nil {
			return fmt.Errorf("exchange not reachable: %w", err)
		}
	}

	risk := arbApp.NewRiskManager(arbApp.RiskConfig{
		MaxOpenCycles:  cfg.Risk.MaxOpenCycles,
		MaxLegNotional: cfg.Risk.MaxLegNotionalDecimal(),
	}, log)

	signalEngine := arbApp.NewSignalEngine(triangles, store, arbApp.SignalConfig{
		Quote:           cfg.Trading.Quote,
		Venue:           cfg.Exchange.Venue,
		TargetNotional:  cfg.Trading.TargetNotionalDecimal(),
		MinGrossEdgeBps: decimalFrom(cfg.Trading.MinGrossEdgeBps),
		MinNetEdgeBps:   decimalFrom(cfg.Trading.MinNetEdgeBps),
		SlippageBps:     cfg.Trading.SlippageBpsDecimal(),
		MaxLegNotional:  cfg.Risk.MaxLegNotionalDecimal(),
		FeeTable:        feeTable,
	}, log)

	recorder := arbApp.NewLogRecorder(log)

	executor := executionApp.NewExecutor(adapter, store, risk, recorder, executionApp.ExecutorConfig{
		Quote:       cfg.Trading.Quote,
		SlippageBps: cfg.Trading.SlippageBpsDecimal(),
	}, log)

	engine := arbApp.NewEngine(signalEngine, executor, arbApp.EngineConfig{
		EvalInterval: cfg.Trading.EvalInterval,
	}, log)

	healthServer.RegisterCheck("market_data", func(ctx context.Context) (bool, string) {
		if feed.IsConnected() {
			return true, ""
		}
		return false, "websocket disconnected"
	})

	// Run the ingest task and the control loop; cancellation stops the
	// control loop, which in turn cancels the ingest task and awaits it.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := feed.Run(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})

	g.Go(func() error {
		defer feed.Close()
		return engine.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info(context.Background(), "shutdown complete")
	return nil
}

func decimalFrom(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// discoverTriangles enumerates cycles from the exchange's full market map.
// exchangeInfo is public, so this works in paper mode as well.
func discoverTriangles(ctx context.Context, cfg *config.Config, feeTable arbDomain.FeeTable, log logger.LoggerInterface) ([]arbDomain.Triangle, error) {
	meta, err := exchangeBinance.NewAdapter(exchangeBinance.AdapterConfig{
		BaseURL:   cfg.Exchange.RESTURL,
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Venue:     cfg.Exchange.Venue,
		FeeTable:  feeTable,
	}, log)
	if err != nil {
		return nil, err
	}

	infos, err := meta.Markets(ctx)
	if err != nil {
		return nil, err
	}

	markets := make([]arbDomain.Market, 0, len(infos))
	for _, m := range infos {
		markets = append(markets, arbDomain.Market{
			Symbol: m.Base + "/" + m.Quote,
			Base:   m.Base,
			Quote:  m.Quote,
		})
	}
	// Map iteration order is random; keep enumeration deterministic.
	sort.Slice(markets, func(i, j int) bool { return markets[i].Symbol < markets[j].Symbol })

	return arbDomain.DiscoverTriangles(markets, cfg.Trading.Quote), nil
}
