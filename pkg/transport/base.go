package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	bridgeerrors "github.com/ajitpratap0/hostbridge-go/pkg/errors"
	"github.com/ajitpratap0/hostbridge-go/pkg/events"
	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
	"github.com/ajitpratap0/hostbridge-go/pkg/observability"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// Operation names used in error events and metrics
const (
	OpConnect       = "connect"
	OpDisconnect    = "disconnect"
	OpFetchRoster   = "fetchRoster"
	OpReportPick    = "reportPick"
	OpReportRemoval = "reportRemoval"
)

type pendingResult struct {
	data interface{}
	err  error
}

type pendingRequest struct {
	id       string
	method   string
	deadline time.Time
	result   chan pendingResult
}

// Base provides the machinery shared by every strategy: connection state,
// correlation of round trips, calling-convention fallthrough and the cached
// roster. Nothing outside the owning strategy mutates it.
type Base struct {
	kind    protocol.EnvironmentKind
	bus     *events.Bus
	logger  logging.Logger
	config  Config
	tracing *observability.TracingProvider

	mu        sync.Mutex
	state     protocol.ConnectionState
	pending   map[string]*pendingRequest
	listeners []func()

	idPrefix string
	nextID   atomic.Uint64

	roster *roster.Roster
}

// NewBase creates the shared state for a strategy of the given kind
func NewBase(kind protocol.EnvironmentKind, opts Options) *Base {
	opts = opts.withDefaults()
	return &Base{
		kind:     kind,
		bus:      opts.Bus,
		logger:   opts.Logger.WithFields(logging.String("environment", kind.String())),
		config:   opts.Config,
		tracing:  opts.Tracing,
		state:    protocol.StateDisconnected,
		pending:  make(map[string]*pendingRequest),
		idPrefix: uuid.NewString()[:8],
		roster:   &roster.Roster{},
	}
}

// Kind returns the environment kind the strategy serves
func (b *Base) Kind() protocol.EnvironmentKind { return b.kind }

// Bus returns the strategy-level event bus
func (b *Base) Bus() *events.Bus { return b.bus }

// State returns the current connection state
func (b *Base) State() protocol.ConnectionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// PendingCount returns the number of round trips awaiting a response
func (b *Base) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// CachedRoster returns the active entries of the last loaded roster
func (b *Base) CachedRoster() []roster.Entry {
	return b.roster.Active()
}

func (b *Base) setState(next protocol.ConnectionState) {
	b.mu.Lock()
	prev := b.state
	b.state = next
	b.mu.Unlock()

	if prev == next {
		return
	}
	b.logger.Debug("connection state changed",
		logging.String("previous", prev.String()),
		logging.String("current", next.String()))
	b.bus.Publish(protocol.EventConnectionStatusChanged, protocol.StatusChange{
		Previous:    prev,
		Current:     next,
		Environment: b.kind,
	})
}

// NextID returns a correlation id unique to this strategy instance
func (b *Base) NextID() string {
	return fmt.Sprintf("%s_%d", b.idPrefix, b.nextID.Add(1))
}

// AddListener records a release function for a host listener registered
// during connect. Disconnect calls every release function once.
func (b *Base) AddListener(release func()) {
	if release == nil {
		return
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, release)
	b.mu.Unlock()
}

func (b *Base) releaseListeners() {
	b.mu.Lock()
	listeners := b.listeners
	b.listeners = nil
	b.mu.Unlock()

	for _, release := range listeners {
		release()
	}
}

// connect runs probe between the Connecting and Connected/Failed transitions.
func (b *Base) connect(ctx context.Context, probe func(context.Context) error) error {
	if b.State() == protocol.StateConnected {
		return nil
	}
	b.setState(protocol.StateConnecting)

	if err := probe(ctx); err != nil {
		b.releaseListeners()
		b.rejectPending()
		b.setState(protocol.StateFailed)

		if bridgeerrors.IsCode(err, bridgeerrors.CodeNoHostAvailable) {
			return err
		}
		return bridgeerrors.ConnectionFailed(b.kind.String(), err)
	}

	b.setState(protocol.StateConnected)
	b.logger.Info("connected")
	return nil
}

// Disconnect moves to Disconnected, rejects every pending request with a
// connection-closed error and releases host listeners. It is idempotent.
func (b *Base) Disconnect(ctx context.Context) error {
	rejected := b.rejectPending()
	b.releaseListeners()
	b.roster.Reset()
	b.setState(protocol.StateDisconnected)
	if rejected > 0 {
		b.logger.Info("rejected pending requests on disconnect", logging.Int("count", rejected))
	}
	return nil
}

func (b *Base) rejectPending() int {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string]*pendingRequest)
	b.mu.Unlock()

	for id, req := range pending {
		req.result <- pendingResult{err: bridgeerrors.ConnectionClosed(id)}
	}
	return len(pending)
}

func (b *Base) removePending(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// RoundTrip sends method with a fresh correlation id through send and waits
// for the matching response, the request timeout or ctx cancellation.
func (b *Base) RoundTrip(ctx context.Context, method string, payload interface{}, send func(*protocol.WireMessage) error) (interface{}, error) {
	timeout := b.config.RequestTimeout
	id := b.NextID()
	req := &pendingRequest{
		id:       id,
		method:   method,
		deadline: time.Now().Add(timeout),
		result:   make(chan pendingResult, 1),
	}

	b.mu.Lock()
	b.pending[id] = req
	b.mu.Unlock()

	logger := b.logger.WithContext(logging.ContextWithCorrelationID(ctx, id))
	logger.Debug("round trip sent", logging.String("method", method))

	if err := send(protocol.NewWireMessage(method, payload, id)); err != nil {
		b.removePending(id)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-req.result:
		return res.data, res.err
	case <-timer.C:
		b.removePending(id)
		logger.Warn("round trip timed out", logging.String("method", method), logging.Duration("timeout", timeout))
		return nil, bridgeerrors.RequestTimeout(method, id, timeout)
	case <-ctx.Done():
		b.removePending(id)
		return nil, ctx.Err()
	}
}

// HandleMessage is the receive path for correlation-based hosts. A response
// whose id is pending resolves that request; every message is also
// republished on the bus under its own event name.
func (b *Base) HandleMessage(raw interface{}) {
	msg, err := protocol.DecodeWireMessage(raw)
	if err != nil {
		b.logger.Warn("dropping undecodable host message", logging.ErrorField(err))
		return
	}

	if msg.IsResponse() && msg.MessageID != "" {
		b.mu.Lock()
		req, ok := b.pending[msg.MessageID]
		if ok {
			delete(b.pending, msg.MessageID)
		}
		b.mu.Unlock()

		if ok {
			req.result <- pendingResult{data: msg.Data}
		} else {
			b.logger.Debug("response for unknown request", logging.String("messageId", msg.MessageID))
		}
	}

	b.bus.Publish(msg.Event, msg.Data)
}

func (b *Base) requireConnected(operation string) error {
	if b.State() != protocol.StateConnected {
		return bridgeerrors.NotConnected(operation)
	}
	return nil
}

func (b *Base) publishError(operation string, err error) {
	code := bridgeerrors.CodeName(bridgeerrors.CodeOf(err))
	b.logger.WithError(err).Warn("operation failed", logging.String("operation", operation))
	b.bus.Publish(protocol.EventError, protocol.ErrorEvent{
		Operation:   operation,
		Message:     err.Error(),
		Code:        code,
		Timestamp:   time.Now(),
		Environment: b.kind,
	})
}
