package metrics

// Provider identifies a metrics backend.
type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OtelCollector      Provider = "customOtelCollector"
)

// ProviderCfg configures one metrics backend.
type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

// Config aggregates the meter-provider configuration.
type Config struct {
	ServiceName string
	Provider    []ProviderCfg
}

// OptionFn mutates the meter-provider configuration.
type OptionFn func(Config) Config

// WithServiceName attaches the service name resource attribute.
func WithServiceName(name string) OptionFn {
	return func(cfg Config) Config {
		cfg.ServiceName = name
		return cfg
	}
}

// WithProviderConfig appends a backend.
func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(cfg Config) Config {
		cfg.Provider = append(cfg.Provider, provider)
		return cfg
	}
}

// NewOtelCollectorConfig builds an OTLP collector backend config.
func NewOtelCollectorConfig(url string, headers map[string]string, insecure bool) ProviderCfg {
	return ProviderCfg{
		Provider: OtelCollector,
		Endpoint: url,
		Headers:  headers,
		Insecure: insecure,
	}
}

// PromServerConfig configures the standalone Prometheus endpoint.
type PromServerConfig struct {
	port string
}

// PromOptionFn mutates the Prometheus server configuration.
type PromOptionFn func(PromServerConfig) PromServerConfig

// WithPort sets the listen port.
func WithPort(port string) PromOptionFn {
	return func(cfg PromServerConfig) PromServerConfig {
		cfg.port = port
		return cfg
	}
}
