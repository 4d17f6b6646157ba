// Package bridge provides the coordinator consumers use to talk to whatever
// host the picker runs in.
//
// A Bridge owns at most one transport strategy at a time. Connect detects the
// environment, builds the matching strategy and connects it; failures are
// retried with a linear backoff and, once retries are exhausted, the bridge
// falls back to the in-memory simulation. Every strategy-level event is
// republished on the bridge bus, so subscribers see one stable vocabulary
// whichever strategy is active.
//
// Usage:
//
//	b, err := bridge.New(bridge.Options{Probe: host.StaticProbe(env)})
//	if err != nil { ... }
//	defer b.Disconnect(context.Background())
//
//	b.On(protocol.EventPickConfirmed, func(e events.Event) { ... })
//	if err := b.Connect(ctx); err != nil { ... }
//	entries, err := b.FetchRoster(ctx)
package bridge

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ajitpratap0/hostbridge-go/pkg/detect"
	bridgeerrors "github.com/ajitpratap0/hostbridge-go/pkg/errors"
	"github.com/ajitpratap0/hostbridge-go/pkg/events"
	"github.com/ajitpratap0/hostbridge-go/pkg/host"
	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
	"github.com/ajitpratap0/hostbridge-go/pkg/observability"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
	"github.com/ajitpratap0/hostbridge-go/pkg/transport"
)

// Fallback reasons recorded in metrics
const (
	reasonRetryExhausted = "retry-exhausted"
	reasonPermanent      = "permanent-policy"
)

// StrategyFactory builds the strategy for one connection attempt
type StrategyFactory func(kind protocol.EnvironmentKind, env host.Environment, opts transport.Options) (transport.Strategy, error)

// Options configures a Bridge
type Options struct {
	// Config is used as given; start from DefaultConfig. The zero value
	// disables retries and the unsolicited reconnect.
	Config Config

	// Probe reads the host environment on every connect. A nil probe is the
	// browser-only case.
	Probe host.Probe

	// DetectOptions are passed to the environment detector
	DetectOptions []detect.Option

	// Bus is the shared bus consumers subscribe to; created when nil
	Bus     *events.Bus
	Logger  logging.Logger
	Metrics *observability.Metrics
	Tracing *observability.TracingProvider

	// Middleware wraps every strategy, outermost first, inside the
	// observability middleware
	Middleware []transport.Middleware

	// Factory replaces transport.New
	Factory StrategyFactory
}

// Bridge is the coordinator. All methods are safe for concurrent use.
type Bridge struct {
	config     Config
	bus        *events.Bus
	logger     logging.Logger
	metrics    *observability.Metrics
	tracing    *observability.TracingProvider
	detector   *detect.Detector
	factory    StrategyFactory
	middleware []transport.Middleware

	connectGroup singleflight.Group

	mu          sync.Mutex
	strategy    transport.Strategy
	inner       transport.Observable
	unsubscribe func()
	generation  uint64
	state       protocol.ConnectionState
	detection   *protocol.DetectionResult
	connectedAt time.Time

	retryCount      int
	retryTimer      *time.Timer
	retrySeq        uint64
	fallbackEngaged bool
	reconnectArmed  bool
}

// New creates a disconnected bridge
func New(opts Options) (*Bridge, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, bridgeerrors.InvalidArgument("bridge.New", err.Error())
	}
	if cfg.FallbackPolicy == "" {
		cfg.FallbackPolicy = FallbackPermanent
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(logger)
	}
	factory := opts.Factory
	if factory == nil {
		factory = transport.New
	}

	detectOpts := append([]detect.Option{detect.WithLogger(logger)}, opts.DetectOptions...)

	b := &Bridge{
		config:     cfg,
		bus:        bus,
		logger:     logger.WithFields(logging.String("component", "bridge")),
		metrics:    opts.Metrics,
		tracing:    opts.Tracing,
		detector:   detect.New(opts.Probe, detectOpts...),
		factory:    factory,
		middleware: opts.Middleware,
		state:      protocol.StateDisconnected,
	}
	b.metrics.RecordConnectionState(protocol.StateDisconnected.String())
	return b, nil
}

// Bus returns the shared event bus
func (b *Bridge) Bus() *events.Bus { return b.bus }

// On subscribes handler to name and returns its unsubscribe function
func (b *Bridge) On(name string, handler events.Handler) func() {
	return b.bus.Subscribe(name, handler)
}

// Once subscribes handler to the next name event only
func (b *Bridge) Once(name string, handler events.Handler) func() {
	return b.bus.SubscribeOnce(name, handler)
}

// Off removes every handler of the given names, or all handlers when none
// are given
func (b *Bridge) Off(names ...string) {
	b.bus.UnsubscribeAll(names...)
}

// Connect detects the environment and connects the matching strategy.
// Concurrent calls share one attempt. When the attempt fails a retry is
// scheduled in the background and the failure is returned; once retries are
// exhausted the simulation is connected instead.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.state == protocol.StateConnected && b.strategy != nil {
		b.mu.Unlock()
		return nil
	}
	b.stopRetryLocked()
	b.reconnectArmed = b.config.AutoReconnect
	if b.config.FallbackPolicy == FallbackReprobe {
		b.fallbackEngaged = false
	}
	b.mu.Unlock()

	return b.connectShared(ctx)
}

func (b *Bridge) connectShared(ctx context.Context) error {
	_, err, _ := b.connectGroup.Do("connect", func() (interface{}, error) {
		return nil, b.attempt(ctx)
	})
	return err
}

// attempt runs one detect, build and connect cycle.
func (b *Bridge) attempt(ctx context.Context) error {
	b.mu.Lock()
	if b.state == protocol.StateConnected && b.strategy != nil {
		b.mu.Unlock()
		return nil
	}
	forced := b.fallbackEngaged
	b.mu.Unlock()

	var (
		env       host.Environment
		detection protocol.DetectionResult
	)
	if forced {
		detection = forcedFallback()
		b.metrics.RecordFallback(reasonPermanent)
	} else {
		env, detection = b.detector.Probe()
	}

	err := b.connectStrategy(ctx, env, detection)
	if err == nil {
		return nil
	}
	return b.handleConnectFailure(ctx, detection, err)
}

func forcedFallback() protocol.DetectionResult {
	return protocol.DetectionResult{
		Kind:       protocol.BrowserOnly,
		Confidence: protocol.ConfidenceLow,
		Signal:     protocol.SignalForcedFallback,
	}
}

// connectStrategy tears the current strategy down, builds one for detection
// and connects it.
func (b *Bridge) connectStrategy(ctx context.Context, env host.Environment, detection protocol.DetectionResult) error {
	b.teardown(context.Background())
	b.mu.Lock()
	built := b.generation
	b.mu.Unlock()

	strategyBus := events.NewBus(b.logger)
	opts := transport.Options{
		Bus:     strategyBus,
		Logger:  b.logger,
		Config:  b.config.Transport,
		Tracing: b.tracing,
	}
	raw, err := b.factory(detection.Kind, env, opts)
	if err != nil {
		b.mu.Lock()
		aborted := b.generation != built
		b.mu.Unlock()
		if aborted {
			return bridgeerrors.ConnectionClosed("")
		}
		return bridgeerrors.ConnectionFailed(detection.Kind.String(), err)
	}

	inner, _ := transport.Unwrap(raw).(transport.Observable)
	strategy := b.wrap(detection.Kind, raw)

	b.mu.Lock()
	b.generation++
	gen := b.generation
	b.strategy = strategy
	b.inner = inner
	b.detection = &detection
	b.unsubscribe = strategyBus.SubscribeAll(func(e events.Event) {
		b.republish(gen, e)
	})
	b.mu.Unlock()

	b.logger.Info("connecting",
		logging.String("environment", detection.Kind.String()),
		logging.String("signal", detection.Signal),
		logging.String("confidence", string(detection.Confidence)))

	connectCtx := ctx
	if b.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, b.config.ConnectTimeout)
		defer cancel()
	}

	err = strategy.Connect(connectCtx)

	b.mu.Lock()
	if b.generation != gen {
		// disconnected while connecting
		b.mu.Unlock()
		return bridgeerrors.ConnectionClosed("")
	}
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.retryCount = 0
	b.connectedAt = time.Now()
	if inner != nil {
		b.state = inner.State()
	} else {
		b.state = protocol.StateConnected
	}
	b.mu.Unlock()

	b.logger.Info("connected", logging.String("environment", detection.Kind.String()))
	b.bus.Publish(protocol.EventConnected, protocol.Connected{
		Environment: detection.Kind,
		Signal:      detection.Signal,
		Confidence:  detection.Confidence,
		Timestamp:   time.Now(),
	})
	return nil
}

func (b *Bridge) wrap(kind protocol.EnvironmentKind, s transport.Strategy) transport.Strategy {
	chain := make([]transport.Middleware, 0, len(b.middleware)+1)
	chain = append(chain, b.middleware...)
	if b.metrics != nil || b.tracing != nil {
		chain = append(chain, transport.NewObservabilityMiddleware(transport.ObservabilityConfig{
			Environment: kind,
			Metrics:     b.metrics,
			Tracing:     b.tracing,
			Logger:      b.logger,
		}))
	}
	if len(chain) == 0 {
		return s
	}
	return transport.ChainMiddleware(chain...).Wrap(s)
}

// handleConnectFailure publishes the failure and applies the retry policy:
// schedule a retry while retries remain, otherwise engage the simulation.
func (b *Bridge) handleConnectFailure(ctx context.Context, detection protocol.DetectionResult, err error) error {
	if bridgeerrors.IsCode(err, bridgeerrors.CodeConnectionClosed) {
		// torn down by Disconnect while connecting
		return err
	}

	b.publishError(transport.OpConnect, detection.Kind, err)

	b.mu.Lock()
	if detection.Kind == protocol.BrowserOnly {
		b.state = protocol.StateFailed
		b.mu.Unlock()
		b.metrics.RecordConnectionState(protocol.StateFailed.String())
		return err
	}

	if b.retryCount < b.config.MaxRetries {
		b.retryCount++
		attempt := b.retryCount
		delay := b.config.RetryBaseDelay * time.Duration(attempt)
		b.scheduleRetryLocked(delay)
		b.mu.Unlock()

		b.metrics.RecordRetry()
		b.logger.Warn("connect failed, retry scheduled",
			logging.String("environment", detection.Kind.String()),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.ErrorField(err))
		return err
	}

	b.fallbackEngaged = true
	b.mu.Unlock()

	b.metrics.RecordFallback(reasonRetryExhausted)
	b.logger.Warn("retries exhausted, falling back to simulation",
		logging.String("environment", detection.Kind.String()),
		logging.ErrorField(err))

	fallback := forcedFallback()
	if ferr := b.connectStrategy(ctx, host.Environment{}, fallback); ferr != nil {
		b.publishError(transport.OpConnect, fallback.Kind, ferr)
		b.mu.Lock()
		b.state = protocol.StateFailed
		b.mu.Unlock()
		return ferr
	}
	return nil
}

func (b *Bridge) scheduleRetryLocked(delay time.Duration) {
	b.stopRetryLocked()
	seq := b.retrySeq
	b.retryTimer = time.AfterFunc(delay, func() {
		b.mu.Lock()
		current := b.retrySeq == seq
		if current {
			b.retryTimer = nil
		}
		b.mu.Unlock()
		if !current {
			return
		}
		// the outcome is reported on the bus
		_ = b.connectShared(context.Background())
	})
}

// stopRetryLocked cancels a scheduled retry. A retry whose timer already
// fired sees the bumped sequence and does nothing.
func (b *Bridge) stopRetryLocked() {
	b.retrySeq++
	if b.retryTimer != nil {
		b.retryTimer.Stop()
		b.retryTimer = nil
	}
}

// teardown disconnects and forgets the current strategy without publishing
// coordinator events. Events the old strategy emits while shutting down are
// dropped.
func (b *Bridge) teardown(ctx context.Context) (protocol.EnvironmentKind, bool) {
	b.mu.Lock()
	strategy := b.strategy
	unsubscribe := b.unsubscribe
	var kind protocol.EnvironmentKind
	if b.detection != nil {
		kind = b.detection.Kind
	}
	b.strategy = nil
	b.inner = nil
	b.unsubscribe = nil
	b.generation++
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if strategy == nil {
		return kind, false
	}
	if err := strategy.Disconnect(ctx); err != nil {
		b.logger.Warn("strategy disconnect failed", logging.ErrorField(err))
	}
	return kind, true
}

// republish forwards an event of the strategy of generation gen onto the
// shared bus, mirroring its connection state.
func (b *Bridge) republish(gen uint64, e events.Event) {
	b.mu.Lock()
	if gen != b.generation {
		b.mu.Unlock()
		return
	}
	if e.Name == protocol.EventConnectionStatusChanged {
		if change, ok := e.Payload.(protocol.StatusChange); ok {
			b.state = change.Current
		}
	}
	b.mu.Unlock()

	switch e.Name {
	case protocol.EventConnectionStatusChanged:
		if change, ok := e.Payload.(protocol.StatusChange); ok {
			b.metrics.RecordConnectionState(change.Current.String())
		}
	case protocol.EventError:
		if ev, ok := e.Payload.(protocol.ErrorEvent); ok {
			b.metrics.RecordError(ev.Operation, ev.Code)
		}
	case protocol.EventRosterLoaded, protocol.EventPickConfirmed, protocol.EventRemovalConfirmed:
	default:
		b.metrics.RecordHostEvent(e.Name)
	}

	b.bus.Publish(e.Name, e.Payload)
}

// Disconnect cancels a scheduled retry, tears the strategy down and clears
// the cached roster. It is idempotent; the disconnected event is published
// only when a strategy was active.
func (b *Bridge) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	b.stopRetryLocked()
	b.reconnectArmed = false
	prev := b.state
	b.mu.Unlock()

	kind, hadStrategy := b.teardown(ctx)

	b.mu.Lock()
	b.state = protocol.StateDisconnected
	b.detection = nil
	b.connectedAt = time.Time{}
	b.retryCount = 0
	b.mu.Unlock()
	b.metrics.RecordConnectionState(protocol.StateDisconnected.String())

	if !hadStrategy {
		return nil
	}
	b.logger.Info("disconnected", logging.String("environment", kind.String()))
	if prev != protocol.StateDisconnected {
		b.bus.Publish(protocol.EventConnectionStatusChanged, protocol.StatusChange{
			Previous:    prev,
			Current:     protocol.StateDisconnected,
			Environment: kind,
		})
	}
	b.bus.Publish(protocol.EventDisconnected, protocol.Disconnected{
		Environment: kind,
		Timestamp:   time.Now(),
	})
	return nil
}

// FetchRoster loads the roster from the active strategy
func (b *Bridge) FetchRoster(ctx context.Context) ([]roster.Entry, error) {
	s, err := b.active(transport.OpFetchRoster)
	if err != nil {
		return nil, err
	}
	entries, err := s.FetchRoster(ctx)
	b.afterCall(err)
	return entries, err
}

// ReportPick tells the host which entry the wheel landed on
func (b *Bridge) ReportPick(ctx context.Context, id string) (bool, error) {
	s, err := b.active(transport.OpReportPick)
	if err != nil {
		return false, err
	}
	ok, err := s.ReportPick(ctx, id)
	b.afterCall(err)
	return ok, err
}

// ReportRemoval asks the host to remove an entry from the active roster
func (b *Bridge) ReportRemoval(ctx context.Context, id string) (bool, error) {
	s, err := b.active(transport.OpReportRemoval)
	if err != nil {
		return false, err
	}
	ok, err := s.ReportRemoval(ctx, id)
	b.afterCall(err)
	return ok, err
}

// active returns the connected strategy or publishes and returns a
// NotConnected error.
func (b *Bridge) active(operation string) (transport.Strategy, error) {
	b.mu.Lock()
	s := b.strategy
	state := b.state
	var kind protocol.EnvironmentKind
	if b.detection != nil {
		kind = b.detection.Kind
	}
	b.mu.Unlock()

	if s == nil || state != protocol.StateConnected {
		err := bridgeerrors.NotConnected(operation)
		b.publishError(operation, kind, err)
		return nil, err
	}
	return s, nil
}

// afterCall starts the single unsolicited reconnect allowed per explicit
// Connect when err reports a lost connection. The strategy has already
// published err.
func (b *Bridge) afterCall(err error) {
	if err == nil || !bridgeerrors.IndicatesConnectionLoss(err) {
		return
	}

	b.mu.Lock()
	armed := b.reconnectArmed
	b.reconnectArmed = false
	b.mu.Unlock()

	if !armed {
		b.logger.Warn("connection lost, reconnect budget spent", logging.ErrorField(err))
		return
	}
	b.logger.Warn("connection lost, reconnecting", logging.ErrorField(err))
	go func() {
		// the outcome is reported on the bus
		_ = b.connectShared(context.Background())
	}()
}

func (b *Bridge) publishError(operation string, kind protocol.EnvironmentKind, err error) {
	code := bridgeerrors.CodeName(bridgeerrors.CodeOf(err))
	b.logger.WithError(err).Warn("operation failed", logging.String("operation", operation))
	b.metrics.RecordError(operation, code)
	b.bus.Publish(protocol.EventError, protocol.ErrorEvent{
		Operation:   operation,
		Message:     err.Error(),
		Code:        code,
		Timestamp:   time.Now(),
		Environment: kind,
	})
}

// ConnectionInfo returns a snapshot of the coordinator state
func (b *Bridge) ConnectionInfo() protocol.ConnectionInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	info := protocol.ConnectionInfo{
		State:           b.state,
		ConnectedAt:     b.connectedAt,
		RetryCount:      b.retryCount,
		FallbackEngaged: b.fallbackEngaged,
	}
	if b.detection != nil {
		d := *b.detection
		info.Detection = &d
		info.Environment = d.Kind
	}
	return info
}

// CurrentEnvironment returns the kind of the active strategy, or "" when
// none is active
func (b *Bridge) CurrentEnvironment() protocol.EnvironmentKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.detection == nil {
		return ""
	}
	return b.detection.Kind
}

// IsConnected reports whether an active strategy is connected
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.strategy != nil && b.state == protocol.StateConnected
}

// CachedRoster returns the active entries of the last fetched roster
func (b *Bridge) CachedRoster() []roster.Entry {
	b.mu.Lock()
	inner := b.inner
	b.mu.Unlock()
	if inner == nil {
		return nil
	}
	return inner.CachedRoster()
}
