// Package config loads the hostbridge settings from a YAML file and
// HOSTBRIDGE_* environment variables using viper.
//
// Sections:
//
//	bridge:     retry, connect timeout, fallback policy, auto reconnect
//	transport:  request timeout, ping on connect, embedded push channels
//	simulation: latency and seed roster of the browser-only strategy
//	logging:    level and format
//	metrics:    prometheus namespace
//	tracing:    OTLP exporter settings
//	status:     listen address of the status API
//
// An environment variable overrides the file: bridge.max_retries is read from
// HOSTBRIDGE_BRIDGE_MAX_RETRIES.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/hostbridge-go/pkg/bridge"
	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
	"github.com/ajitpratap0/hostbridge-go/pkg/observability"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
	"github.com/ajitpratap0/hostbridge-go/pkg/transport"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "HOSTBRIDGE"

// Config is the complete file/env configuration
type Config struct {
	Bridge     BridgeConfig     `mapstructure:"bridge"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Status     StatusConfig     `mapstructure:"status"`
}

// BridgeConfig holds the coordinator settings
type BridgeConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	FallbackPolicy string        `mapstructure:"fallback_policy"`
	AutoReconnect  bool          `mapstructure:"auto_reconnect"`
}

// TransportConfig holds the settings shared by the native strategies
type TransportConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PingOnConnect  bool          `mapstructure:"ping_on_connect"`
	PushEvents     []string      `mapstructure:"push_events"`
}

// SimulationConfig drives the browser-only strategy
type SimulationConfig struct {
	Latency    time.Duration  `mapstructure:"latency"`
	SeedRoster []roster.Entry `mapstructure:"seed_roster"`
}

// LoggingConfig selects the log level and encoding
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus registry
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig controls the OpenTelemetry exporter
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// StatusConfig controls the HTTP status API
type StatusConfig struct {
	Listen string `mapstructure:"listen"`
}

// Default returns the configuration used when neither a file nor an
// environment variable sets a key.
func Default() *Config {
	b := bridge.DefaultConfig()
	return &Config{
		Bridge: BridgeConfig{
			MaxRetries:     b.MaxRetries,
			RetryBaseDelay: b.RetryBaseDelay,
			ConnectTimeout: b.ConnectTimeout,
			FallbackPolicy: string(b.FallbackPolicy),
			AutoReconnect:  b.AutoReconnect,
		},
		Transport: TransportConfig{
			RequestTimeout: b.Transport.RequestTimeout,
			PingOnConnect:  b.Transport.PingOnConnect,
			PushEvents:     []string{},
		},
		Simulation: SimulationConfig{
			Latency: b.Transport.SimulationLatency,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(logging.FormatConsole),
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "hostbridge",
		},
		Tracing: TracingConfig{
			ServiceName: "hostbridge",
			Exporter:    string(observability.ExporterTypeNoop),
			SampleRate:  1.0,
		},
		Status: StatusConfig{
			Listen: "127.0.0.1:8787",
		},
	}
}

// SetDefaults registers every key with its default value. Keys must be known
// to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	// Bridge
	v.SetDefault("bridge.max_retries", defaults.Bridge.MaxRetries)
	v.SetDefault("bridge.retry_base_delay", defaults.Bridge.RetryBaseDelay)
	v.SetDefault("bridge.connect_timeout", defaults.Bridge.ConnectTimeout)
	v.SetDefault("bridge.fallback_policy", defaults.Bridge.FallbackPolicy)
	v.SetDefault("bridge.auto_reconnect", defaults.Bridge.AutoReconnect)

	// Transport
	v.SetDefault("transport.request_timeout", defaults.Transport.RequestTimeout)
	v.SetDefault("transport.ping_on_connect", defaults.Transport.PingOnConnect)
	v.SetDefault("transport.push_events", defaults.Transport.PushEvents)

	// Simulation
	v.SetDefault("simulation.latency", defaults.Simulation.Latency)

	// Logging
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	// Metrics
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.namespace", defaults.Metrics.Namespace)

	// Tracing
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", defaults.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", defaults.Tracing.Insecure)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	// Status
	v.SetDefault("status.listen", defaults.Status.Listen)
}

// NewViper returns a viper instance with defaults and environment binding in
// place. A non-empty path is read as the config file.
func NewViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hostbridge")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/hostbridge")
	}
	return v
}

// Override adjusts the viper instance before decoding, typically by binding
// command line flags.
type Override func(v *viper.Viper) error

// Load reads the configuration. An explicit path must exist; without one a
// missing hostbridge.yaml in the search paths falls back to defaults.
func Load(path string, overrides ...Override) (*Config, error) {
	v := NewViper(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	for _, o := range overrides {
		if err := o(v); err != nil {
			return nil, err
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the settings held by v
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first unusable value
func (c *Config) Validate() error {
	if err := c.BridgeConfig().Validate(); err != nil {
		return fmt.Errorf("invalid bridge config: %w", err)
	}
	if c.Transport.RequestTimeout < 0 {
		return fmt.Errorf("invalid transport config: request_timeout must not be negative")
	}
	if c.Simulation.Latency < 0 {
		return fmt.Errorf("invalid simulation config: latency must not be negative")
	}
	for i, e := range c.Simulation.SeedRoster {
		if !e.Valid() {
			return fmt.Errorf("invalid simulation config: seed_roster[%d] needs id and display_name", i)
		}
	}
	if n := len(c.Simulation.SeedRoster); n > 0 && n < roster.MinActive {
		return fmt.Errorf("invalid simulation config: seed_roster needs at least %d entries", roster.MinActive)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		return fmt.Errorf("invalid logging config: unknown format %q", c.Logging.Format)
	}
	switch observability.ExporterType(c.Tracing.Exporter) {
	case observability.ExporterTypeOTLPGRPC, observability.ExporterTypeOTLPHTTP, observability.ExporterTypeNoop:
	default:
		return fmt.Errorf("invalid tracing config: unknown exporter %q", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("invalid tracing config: sample_rate must be within [0, 1]")
	}
	return nil
}

// BridgeConfig assembles the coordinator configuration
func (c *Config) BridgeConfig() bridge.Config {
	return bridge.Config{
		MaxRetries:     c.Bridge.MaxRetries,
		RetryBaseDelay: c.Bridge.RetryBaseDelay,
		ConnectTimeout: c.Bridge.ConnectTimeout,
		FallbackPolicy: bridge.FallbackPolicy(c.Bridge.FallbackPolicy),
		AutoReconnect:  c.Bridge.AutoReconnect,
		Transport: transport.Config{
			RequestTimeout:    c.Transport.RequestTimeout,
			PingOnConnect:     c.Transport.PingOnConnect,
			PushEvents:        c.Transport.PushEvents,
			SimulationLatency: c.Simulation.Latency,
			SeedRoster:        c.Simulation.SeedRoster,
		},
	}
}

// NewLogger builds the logger described by the logging section
func (c *Config) NewLogger(w io.Writer) logging.Logger {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.New(w, logging.Format(c.Logging.Format), level)
}

// MetricsConfig returns nil when metrics are disabled
func (c *Config) MetricsConfig() *observability.MetricsConfig {
	if !c.Metrics.Enabled {
		return nil
	}
	return &observability.MetricsConfig{
		ServiceName: "hostbridge",
		Namespace:   c.Metrics.Namespace,
	}
}

// TracingConfig returns nil when tracing is disabled
func (c *Config) TracingConfig() *observability.TracingConfig {
	if !c.Tracing.Enabled {
		return nil
	}
	return &observability.TracingConfig{
		ServiceName:  c.Tracing.ServiceName,
		ExporterType: observability.ExporterType(c.Tracing.Exporter),
		Endpoint:     c.Tracing.Endpoint,
		Insecure:     c.Tracing.Insecure,
		SampleRate:   c.Tracing.SampleRate,
	}
}
