package transport

import (
	"context"

	bridgeerrors "github.com/ajitpratap0/hostbridge-go/pkg/errors"
	"github.com/ajitpratap0/hostbridge-go/pkg/host"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// Embedded talks to an alternate embedded host. Requests go out on a channel
// named after the method; answers come back on "<method>Response".
type Embedded struct {
	*Base
	env host.Environment
}

// NewEmbedded creates a strategy for the embedded host API in env
func NewEmbedded(env host.Environment, opts Options) *Embedded {
	return &Embedded{
		Base: NewBase(protocol.NativeEmbedded, opts),
		env:  env,
	}
}

func (e *Embedded) conventions() []convention {
	var out []convention
	if e.env.AsyncCall != nil {
		out = append(out, asyncConvention(e.env.AsyncCall))
	}
	if e.env.Embedded != nil {
		api := e.env.Embedded
		out = append(out, convention{
			name: ConventionEmbedded,
			call: func(ctx context.Context, method string, payload interface{}) (interface{}, error) {
				return e.RoundTrip(ctx, method, payload, func(msg *protocol.WireMessage) error {
					return api.Send(method, msg)
				})
			},
		})
	}
	return out
}

// Connect subscribes to the response channel of every known method plus the
// configured push channels.
func (e *Embedded) Connect(ctx context.Context) error {
	return e.connect(ctx, func(ctx context.Context) error {
		convs := e.conventions()
		if len(convs) == 0 {
			return bridgeerrors.NoHostAvailable(e.kind.String())
		}

		if api := e.env.Embedded; api != nil {
			channels := make([]string, 0, len(protocol.KnownMethods)+len(e.config.PushEvents))
			for _, method := range protocol.KnownMethods {
				channels = append(channels, protocol.ResponseEvent(method))
			}
			channels = append(channels, e.config.PushEvents...)

			for _, channel := range channels {
				channel := channel
				e.AddListener(api.On(channel, func(payload interface{}) {
					e.HandleMessage(embeddedMessage(channel, payload))
				}))
			}
		}

		if e.config.PingOnConnect {
			return e.ping(ctx, convs)
		}
		return nil
	})
}

// embeddedMessage turns a payload received on channel into a wire message.
// Payloads shaped like a wire message keep their id and data; anything else
// becomes the data of an event named after the channel.
func embeddedMessage(channel string, payload interface{}) *protocol.WireMessage {
	if m, ok := payload.(map[string]interface{}); ok {
		if _, hasID := m["messageId"]; hasID {
			msg, err := protocol.DecodeWireMessage(map[string]interface{}{
				"event":     channel,
				"data":      m["data"],
				"timestamp": m["timestamp"],
				"messageId": m["messageId"],
			})
			if err == nil {
				return msg
			}
		}
	}
	return protocol.NewWireMessage(channel, payload, "")
}

// FetchRoster requests the roster on the getRoster channel
func (e *Embedded) FetchRoster(ctx context.Context) ([]roster.Entry, error) {
	return e.fetchRoster(ctx, e.conventions())
}

// ReportPick sends the pick on the reportPick channel
func (e *Embedded) ReportPick(ctx context.Context, id string) (bool, error) {
	return e.reportPick(ctx, id, e.conventions())
}

// ReportRemoval sends the removal on the reportRemoval channel
func (e *Embedded) ReportRemoval(ctx context.Context, id string) (bool, error) {
	return e.reportRemoval(ctx, id, e.conventions())
}
