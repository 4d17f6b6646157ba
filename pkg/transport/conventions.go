package transport

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	bridgeerrors "github.com/ajitpratap0/hostbridge-go/pkg/errors"
	"github.com/ajitpratap0/hostbridge-go/pkg/host"
	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
	"github.com/ajitpratap0/hostbridge-go/pkg/observability"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// Calling convention names reported in HostCallFailed errors
const (
	ConventionDesktopReceiver = "desktop-receiver"
	ConventionMobileObject    = "mobile-object"
	ConventionAsyncCall       = "async-call"
	ConventionWebView         = "webview"
	ConventionEmbedded        = "embedded-api"
	ConventionSimulation      = "simulation"
)

// convention is one way of reaching the host
type convention struct {
	name string
	call func(ctx context.Context, method string, payload interface{}) (interface{}, error)
}

func receiverConvention(r host.DesktopReceiver) convention {
	return convention{
		name: ConventionDesktopReceiver,
		call: r.Invoke,
	}
}

func asyncConvention(a host.AsyncCaller) convention {
	return convention{
		name: ConventionAsyncCall,
		call: a.CallAsync,
	}
}

// mobileConvention calls the method on the mobile object directly. Entry
// requests pass the bare id as the only argument.
func mobileConvention(obj host.NativeObject) convention {
	return convention{
		name: ConventionMobileObject,
		call: func(ctx context.Context, method string, payload interface{}) (interface{}, error) {
			if !host.HasMethod(obj, method) {
				return nil, &host.MethodNotFoundError{Method: method}
			}
			if req, ok := payload.(protocol.EntryRequest); ok {
				return obj.Call(ctx, method, req.ID)
			}
			return obj.Call(ctx, method)
		},
	}
}

// webviewConvention posts an encoded wire message and waits for the
// correlated response delivered through HandleMessage.
func (b *Base) webviewConvention(ch host.MessageChannel) convention {
	return convention{
		name: ConventionWebView,
		call: func(ctx context.Context, method string, payload interface{}) (interface{}, error) {
			return b.RoundTrip(ctx, method, payload, func(msg *protocol.WireMessage) error {
				data, err := msg.Encode()
				if err != nil {
					return err
				}
				return ch.PostMessage(data)
			})
		},
	}
}

// invoke tries each convention in order and returns the first success. A
// disconnect rejection stops the fallthrough at once. When every convention
// fails the last error decides the outcome: a lost connection moves the
// strategy to Failed.
func (b *Base) invoke(ctx context.Context, operation, method string, payload interface{}, conventions []convention) (interface{}, error) {
	if len(conventions) == 0 {
		return nil, bridgeerrors.NoHostAvailable(b.kind.String())
	}

	var (
		lastErr  error
		lastName string
	)
	for _, conv := range conventions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := conv.call(ctx, method, payload)
		if err == nil {
			b.logger.Debug("host call succeeded",
				logging.String("operation", operation),
				logging.String("convention", conv.name))
			return out, nil
		}
		if bridgeerrors.IsCode(err, bridgeerrors.CodeConnectionClosed) {
			return nil, err
		}

		b.logger.Debug("host call failed, falling through",
			logging.String("operation", operation),
			logging.String("convention", conv.name),
			logging.ErrorField(err))
		b.tracing.AddEvent(ctx, "convention.failed",
			observability.AttrConvention.String(conv.name),
			attribute.String("error", err.Error()))
		lastErr, lastName = err, conv.name
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if bridgeerrors.IndicatesConnectionLoss(lastErr) {
		b.setState(protocol.StateFailed)
		return nil, bridgeerrors.ConnectionLost(b.kind.String(), lastErr)
	}
	if _, ok := bridgeerrors.AsBridgeError(lastErr); ok {
		return nil, lastErr
	}
	return nil, bridgeerrors.HostCallFailed(operation, lastName, lastErr)
}

func (b *Base) fetchRoster(ctx context.Context, conventions []convention) ([]roster.Entry, error) {
	if err := b.requireConnected(OpFetchRoster); err != nil {
		b.publishError(OpFetchRoster, err)
		return nil, err
	}

	raw, err := b.invoke(ctx, OpFetchRoster, protocol.MethodGetRoster, nil, conventions)
	if err != nil {
		b.publishError(OpFetchRoster, err)
		return nil, err
	}

	entries, ok := protocol.NormalizeRoster(raw)
	if !ok {
		b.logger.Warn("unrecognized roster shape, using empty roster", logging.String("type", typeName(raw)))
	}
	b.roster.Replace(entries)

	entries = b.roster.Active()
	b.bus.Publish(protocol.EventRosterLoaded, protocol.RosterLoaded{
		Entries:     entries,
		Environment: b.kind,
	})
	return entries, nil
}

func (b *Base) reportPick(ctx context.Context, id string, conventions []convention) (bool, error) {
	if err := b.requireConnected(OpReportPick); err != nil {
		b.publishError(OpReportPick, err)
		return false, err
	}
	if id == "" {
		err := bridgeerrors.InvalidArgument(OpReportPick, "empty entry id")
		b.publishError(OpReportPick, err)
		return false, err
	}

	raw, err := b.invoke(ctx, OpReportPick, protocol.MethodReportPick, protocol.EntryRequest{ID: id}, conventions)
	if err != nil {
		b.publishError(OpReportPick, err)
		return false, err
	}

	ok := b.normalizeAck(OpReportPick, raw)
	if ok {
		entry, known := b.roster.Get(id)
		if !known {
			entry = roster.Entry{ID: id}
		}
		b.bus.Publish(protocol.EventPickConfirmed, protocol.PickConfirmed{Entry: entry, Timestamp: time.Now()})
	}
	return ok, nil
}

func (b *Base) reportRemoval(ctx context.Context, id string, conventions []convention) (bool, error) {
	if err := b.requireConnected(OpReportRemoval); err != nil {
		b.publishError(OpReportRemoval, err)
		return false, err
	}
	if id == "" {
		err := bridgeerrors.InvalidArgument(OpReportRemoval, "empty entry id")
		b.publishError(OpReportRemoval, err)
		return false, err
	}

	if !b.roster.Loaded() {
		if _, err := b.fetchRoster(ctx, conventions); err != nil {
			return false, err
		}
	}
	commit, status := b.roster.Reserve(id)
	switch status {
	case roster.UnknownEntry:
		b.logger.Debug("entry not in roster", logging.String("id", id))
		return false, nil
	case roster.AlreadyRemoved:
		b.logger.Debug("entry already removed", logging.String("id", id))
		return false, nil
	case roster.BelowMinimum:
		err := bridgeerrors.MinimumRosterSizeViolation(id, b.roster.ActiveCount(), roster.MinActive)
		b.publishError(OpReportRemoval, err)
		return false, err
	}

	raw, err := b.invoke(ctx, OpReportRemoval, protocol.MethodReportRemoval, protocol.EntryRequest{ID: id}, conventions)
	if err != nil {
		commit(false)
		b.publishError(OpReportRemoval, err)
		return false, err
	}

	ok := b.normalizeAck(OpReportRemoval, raw)
	commit(ok)
	if ok {
		entry, _ := b.roster.Get(id)
		b.bus.Publish(protocol.EventRemovalConfirmed, protocol.RemovalConfirmed{
			Entry:       entry,
			ActiveCount: b.roster.ActiveCount(),
			Timestamp:   time.Now(),
		})
	}
	return ok, nil
}

func (b *Base) normalizeAck(operation string, raw interface{}) bool {
	ok, recognized := protocol.NormalizeBool(raw)
	if !recognized {
		b.logger.Warn("unrecognized acknowledgement shape, treating as false",
			logging.String("operation", operation),
			logging.String("type", typeName(raw)))
	}
	return ok
}

// ping runs the readiness probe through the conventions
func (b *Base) ping(ctx context.Context, conventions []convention) error {
	_, err := b.invoke(ctx, OpConnect, protocol.MethodPing, nil, conventions)
	return err
}
