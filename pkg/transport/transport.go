// Package transport implements one strategy per host environment kind behind
// a single five-operation contract.
//
// Every strategy embeds Base, which owns the connection state, the table of
// pending correlated requests and the cached roster. Concrete strategies only
// describe which calling conventions their host offers; Base tries them in
// order, falling through on failure.
//
// Usage:
//
//	cfg := transport.DefaultConfig()
//	strategy, err := transport.New(protocol.BrowserOnly, host.Environment{}, transport.Options{Config: cfg})
//	if err := strategy.Connect(ctx); err != nil { ... }
//	entries, err := strategy.FetchRoster(ctx)
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ajitpratap0/hostbridge-go/pkg/events"
	"github.com/ajitpratap0/hostbridge-go/pkg/host"
	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
	"github.com/ajitpratap0/hostbridge-go/pkg/observability"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// Strategy is the contract every environment-specific transport implements.
type Strategy interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	FetchRoster(ctx context.Context) ([]roster.Entry, error)
	ReportPick(ctx context.Context, id string) (bool, error)
	ReportRemoval(ctx context.Context, id string) (bool, error)
}

// Observable is implemented by every strategy built on Base. It exposes the
// strategy-level bus and the read-only connection state.
type Observable interface {
	Kind() protocol.EnvironmentKind
	Bus() *events.Bus
	State() protocol.ConnectionState
	CachedRoster() []roster.Entry
}

// Config holds the per-strategy settings
type Config struct {
	// RequestTimeout bounds every correlation-based round trip
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout"`

	// PingOnConnect sends a ping through the calling conventions as the
	// readiness probe of native strategies
	PingOnConnect bool `json:"ping_on_connect" mapstructure:"ping_on_connect"`

	// SimulationLatency is the artificial delay of every simulated operation
	SimulationLatency time.Duration `json:"simulation_latency" mapstructure:"simulation_latency"`

	// SeedRoster replaces the built-in 20-entry simulation roster when set
	SeedRoster []roster.Entry `json:"seed_roster,omitempty" mapstructure:"seed_roster"`

	// PushEvents lists extra channels the embedded strategy listens on for
	// host-pushed events
	PushEvents []string `json:"push_events,omitempty" mapstructure:"push_events"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestTimeout:    5 * time.Second,
		SimulationLatency: 100 * time.Millisecond,
	}
}

// Options are shared by all strategy constructors
type Options struct {
	// Bus receives the strategy-level events; a private bus is created when nil
	Bus    *events.Bus
	Logger logging.Logger
	Config Config

	// Tracing annotates the operation span in the call context with failed
	// calling conventions; nil disables it
	Tracing *observability.TracingProvider
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.Bus == nil {
		o.Bus = events.NewBus(o.Logger)
	}
	if o.Config.RequestTimeout <= 0 {
		o.Config.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if o.Config.SimulationLatency < 0 {
		o.Config.SimulationLatency = 0
	}
	return o
}

// ErrUnsupportedEnvironment is returned by New for unknown kinds
var ErrUnsupportedEnvironment = errors.New("unsupported environment kind")

// New creates the strategy matching kind, bound to the surfaces in env.
func New(kind protocol.EnvironmentKind, env host.Environment, opts Options) (Strategy, error) {
	switch kind {
	case protocol.NativeDesktop:
		return NewDesktop(env, opts), nil
	case protocol.NativeMobile:
		return NewMobile(env, opts), nil
	case protocol.NativeEmbedded:
		return NewEmbedded(env, opts), nil
	case protocol.BrowserOnly:
		return NewBrowser(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEnvironment, kind)
	}
}
