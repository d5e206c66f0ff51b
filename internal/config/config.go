// Package config provides configuration loading and validation.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	arbDomain "github.com/fd1az/triarb-bot/business/arbitrage/domain"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Binance   BinanceConfig   `mapstructure:"binance"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	HealthPort  int    `mapstructure:"health_port"`
}

// ExchangeConfig identifies the venue and its credentials.
type ExchangeConfig struct {
	Venue     string `mapstructure:"venue"` // venue identifier, e.g. "binance"
	PaperMode bool   `mapstructure:"paper_mode"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	RESTURL   string `mapstructure:"rest_url"`
}

// BinanceConfig holds the streaming market-data endpoints.
type BinanceConfig struct {
	WSBaseURL    string        `mapstructure:"ws_base_url"`
	WSAltURLs    string        `mapstructure:"ws_alt_urls"` // comma-separated failover list
	DepthSpeedMs int           `mapstructure:"depth_speed_ms"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// TradingConfig holds cycle construction and signal thresholds.
type TradingConfig struct {
	Quote               string        `mapstructure:"quote"`
	TriSymbols          string        `mapstructure:"tri_symbols"`  // comma-separated base assets
	QuoteAssets         string        `mapstructure:"quote_assets"` // suffix-match list for wire symbols
	Discover            bool          `mapstructure:"discover"`     // enumerate cycles from the full market map
	TopLevels           int           `mapstructure:"top_levels"`
	TargetNotionalQuote float64       `mapstructure:"target_notional_quote"`
	MinGrossEdgeBps     float64       `mapstructure:"min_gross_edge_bps"`
	MinNetEdgeBps       float64       `mapstructure:"min_net_edge_bps"`
	SlippageBps         float64       `mapstructure:"slippage_bps"`
	PriceTickBufferBps  float64       `mapstructure:"price_tick_buffer_bps"`
	FeeTableJSON        string        `mapstructure:"fee_table_json"`
	EvalInterval        time.Duration `mapstructure:"eval_interval"`
}

// RiskConfig bounds exposure per cycle and process-wide.
type RiskConfig struct {
	MaxLegNotionalQuote float64 `mapstructure:"max_leg_notional_quote"`
	MaxOpenCycles       int     `mapstructure:"max_open_cycles"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// BaseSymbols returns the configured base assets, upper-cased and trimmed.
func (c *TradingConfig) BaseSymbols() []string {
	parts := strings.Split(c.TriSymbols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// QuoteAssetList returns the suffix-match quote assets for wire-symbol
// canonicalization, in configured order.
func (c *TradingConfig) QuoteAssetList() []string {
	parts := strings.Split(c.QuoteAssets, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FeeTable parses fee_table_json into venue -> {taker, maker} ratios.
func (c *TradingConfig) FeeTable() (arbDomain.FeeTable, error) {
	var raw map[string]map[string]float64
	if err := json.Unmarshal([]byte(c.FeeTableJSON), &raw); err != nil {
		return nil, fmt.Errorf("invalid fee_table_json: %w", err)
	}
	table := make(arbDomain.FeeTable, len(raw))
	for venue, fees := range raw {
		table[venue] = make(map[string]decimal.Decimal, len(fees))
		for kind, ratio := range fees {
			table[venue][kind] = decimal.NewFromFloat(ratio)
		}
	}
	return table, nil
}

// TargetNotionalDecimal returns the per-pass notional as decimal.Decimal.
func (c *TradingConfig) TargetNotionalDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.TargetNotionalQuote)
}

// SlippageBpsDecimal returns the slippage in bps as decimal.Decimal.
func (c *TradingConfig) SlippageBpsDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.SlippageBps)
}

// MaxLegNotionalDecimal returns the per-leg notional cap as decimal.Decimal.
func (c *RiskConfig) MaxLegNotionalDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxLegNotionalQuote)
}

// WSURLs returns the ordered, de-duplicated websocket endpoint list:
// the base URL first, then the failover alternates.
func (c *BinanceConfig) WSURLs() []string {
	urls := make([]string, 0, 4)
	seen := make(map[string]struct{})

	add := func(u string) {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	add(c.WSBaseURL)
	for _, alt := range strings.Split(c.WSAltURLs, ",") {
		add(alt)
	}

	if len(urls) == 0 {
		urls = append(urls, "wss://stream.binance.com:9443")
	}
	return urls
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("TRIARB")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "TRIARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "TRIARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "TRIARB_LOG_LEVEL", "LOG_LEVEL")

	// Exchange
	v.BindEnv("exchange.venue", "TRIARB_EXCHANGE", "EXCHANGE")
	v.BindEnv("exchange.paper_mode", "TRIARB_PAPER_MODE", "PAPER_MODE")
	v.BindEnv("exchange.api_key", "TRIARB_BINANCE_API_KEY", "BINANCE_API_KEY")
	v.BindEnv("exchange.api_secret", "TRIARB_BINANCE_API_SECRET", "BINANCE_API_SECRET")

	// Binance streaming
	v.BindEnv("binance.ws_base_url", "TRIARB_BINANCE_WS_BASE_URL", "BINANCE_WS_BASE_URL")
	v.BindEnv("binance.ws_alt_urls", "TRIARB_BINANCE_WS_ALT_URLS", "BINANCE_WS_ALT_URLS")

	// Trading
	v.BindEnv("trading.quote", "TRIARB_QUOTE", "QUOTE")
	v.BindEnv("trading.tri_symbols", "TRIARB_TRI_SYMBOLS", "TRI_SYMBOLS")
	v.BindEnv("trading.discover", "TRIARB_DISCOVER", "DISCOVER_TRIANGLES")
	v.BindEnv("trading.top_levels", "TRIARB_TOP_LEVELS", "TOP_LEVELS")
	v.BindEnv("trading.target_notional_quote", "TRIARB_TARGET_NOTIONAL_QUOTE", "TARGET_NOTIONAL_QUOTE")
	v.BindEnv("trading.min_gross_edge_bps", "TRIARB_MIN_GROSS_EDGE_BPS", "MIN_GROSS_EDGE_BPS")
	v.BindEnv("trading.min_net_edge_bps", "TRIARB_MIN_NET_EDGE_BPS", "MIN_NET_EDGE_BPS")
	v.BindEnv("trading.slippage_bps", "TRIARB_SLIPPAGE_BPS", "SLIPPAGE_BPS")
	v.BindEnv("trading.price_tick_buffer_bps", "TRIARB_PRICE_TICK_BUFFER_BPS", "PRICE_TICK_BUFFER_BPS")
	v.BindEnv("trading.fee_table_json", "TRIARB_FEE_TABLE_JSON", "FEE_TABLE_JSON")

	// Risk
	v.BindEnv("risk.max_leg_notional_quote", "TRIARB_MAX_LEG_NOTIONAL_QUOTE", "MAX_LEG_NOTIONAL_QUOTE")
	v.BindEnv("risk.max_open_cycles", "TRIARB_MAX_OPEN_CYCLES", "MAX_OPEN_CYCLES")

	// Telemetry
	v.BindEnv("telemetry.enabled", "TRIARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "TRIARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "TRIARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "triarb-bot")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.health_port", 8081)

	// Exchange defaults
	v.SetDefault("exchange.venue", "binance")
	v.SetDefault("exchange.paper_mode", true)
	v.SetDefault("exchange.rest_url", "https://api.binance.com")

	// Binance streaming defaults
	v.SetDefault("binance.ws_base_url", "wss://stream.binance.com:9443")
	v.SetDefault("binance.ws_alt_urls", "wss://stream.binance.us:9443")
	v.SetDefault("binance.depth_speed_ms", 100)
	v.SetDefault("binance.ping_interval", "20s")

	// Trading defaults
	v.SetDefault("trading.quote", "USDT")
	v.SetDefault("trading.tri_symbols", "BTC,ETH,BNB")
	v.SetDefault("trading.quote_assets", "USDT,BTC,ETH,BNB")
	v.SetDefault("trading.discover", false)
	v.SetDefault("trading.top_levels", 5)
	v.SetDefault("trading.target_notional_quote", 10_000)
	v.SetDefault("trading.min_gross_edge_bps", 40)
	v.SetDefault("trading.min_net_edge_bps", 10)
	v.SetDefault("trading.slippage_bps", 5)
	v.SetDefault("trading.price_tick_buffer_bps", 3)
	v.SetDefault("trading.fee_table_json", `{"binance":{"taker":0.0004,"maker":0.0002}}`)
	v.SetDefault("trading.eval_interval", "250ms")

	// Risk defaults
	v.SetDefault("risk.max_leg_notional_quote", 20_000)
	v.SetDefault("risk.max_open_cycles", 1)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "triarb-bot")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Exchange.Venue == "" {
		return fmt.Errorf("exchange.venue is required")
	}
	if c.Trading.Quote == "" {
		return fmt.Errorf("trading.quote is required")
	}
	if len(c.Trading.BaseSymbols()) == 0 {
		return fmt.Errorf("trading.tri_symbols cannot be empty")
	}
	if c.Trading.TopLevels < 1 {
		return fmt.Errorf("trading.top_levels must be >= 1")
	}
	if c.Trading.TargetNotionalQuote <= 0 {
		return fmt.Errorf("trading.target_notional_quote must be > 0")
	}
	if c.Risk.MaxLegNotionalQuote <= 0 {
		return fmt.Errorf("risk.max_leg_notional_quote must be > 0")
	}
	if c.Risk.MaxOpenCycles < 1 {
		return fmt.Errorf("risk.max_open_cycles must be >= 1")
	}
	if _, err := c.Trading.FeeTable(); err != nil {
		return err
	}
	if !c.Exchange.PaperMode && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("exchange.api_key and exchange.api_secret are required when paper_mode is off")
	}
	return nil
}
