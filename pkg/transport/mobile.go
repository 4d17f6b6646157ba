package transport

import (
	"context"

	bridgeerrors "github.com/ajitpratap0/hostbridge-go/pkg/errors"
	"github.com/ajitpratap0/hostbridge-go/pkg/host"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// Mobile talks to a mobile shell. Each call prefers the native object when
// it exposes the method, then the async-call object, then the webview round
// trip.
type Mobile struct {
	*Base
	env host.Environment
}

// NewMobile creates a mobile strategy bound to the surfaces in env
func NewMobile(env host.Environment, opts Options) *Mobile {
	return &Mobile{
		Base: NewBase(protocol.NativeMobile, opts),
		env:  env,
	}
}

func (m *Mobile) conventions() []convention {
	var out []convention
	if m.env.Mobile != nil {
		out = append(out, mobileConvention(m.env.Mobile))
	}
	if m.env.AsyncCall != nil {
		out = append(out, asyncConvention(m.env.AsyncCall))
	}
	if m.env.WebView != nil {
		out = append(out, m.webviewConvention(m.env.WebView))
	}
	return out
}

// Connect subscribes to the webview channel when present and, if configured,
// pings the host.
func (m *Mobile) Connect(ctx context.Context) error {
	return m.connect(ctx, func(ctx context.Context) error {
		convs := m.conventions()
		if len(convs) == 0 {
			return bridgeerrors.NoHostAvailable(m.kind.String())
		}

		if reg, ok := m.env.WebView.(host.ListenerRegistrar); ok {
			remove, err := reg.AddMessageListener(func(data []byte) {
				m.HandleMessage(data)
			})
			if err != nil {
				return err
			}
			m.AddListener(remove)
		}

		if m.config.PingOnConnect {
			return m.ping(ctx, convs)
		}
		return nil
	})
}

// FetchRoster asks the app for the roster and caches it
func (m *Mobile) FetchRoster(ctx context.Context) ([]roster.Entry, error) {
	return m.fetchRoster(ctx, m.conventions())
}

// ReportPick tells the app which entry the wheel landed on
func (m *Mobile) ReportPick(ctx context.Context, id string) (bool, error) {
	return m.reportPick(ctx, id, m.conventions())
}

// ReportRemoval asks the app to drop an entry, keeping the minimum roster size
func (m *Mobile) ReportRemoval(ctx context.Context, id string) (bool, error) {
	return m.reportRemoval(ctx, id, m.conventions())
}
