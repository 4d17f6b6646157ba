package transport

import (
	"context"

	bridgeerrors "github.com/ajitpratap0/hostbridge-go/pkg/errors"
	"github.com/ajitpratap0/hostbridge-go/pkg/host"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// Desktop talks to a desktop shell through its receive function, the shared
// async-call object or the webview message channel, in that order.
type Desktop struct {
	*Base
	env host.Environment
}

// NewDesktop creates a desktop strategy bound to the surfaces in env
func NewDesktop(env host.Environment, opts Options) *Desktop {
	return &Desktop{
		Base: NewBase(protocol.NativeDesktop, opts),
		env:  env,
	}
}

func (d *Desktop) conventions() []convention {
	var out []convention
	if d.env.DesktopReceiver != nil {
		out = append(out, receiverConvention(d.env.DesktopReceiver))
	}
	if d.env.AsyncCall != nil {
		out = append(out, asyncConvention(d.env.AsyncCall))
	}
	if d.env.WebView != nil {
		out = append(out, d.webviewConvention(d.env.WebView))
	}
	return out
}

// Connect registers the webview listener when the channel supports one and,
// if configured, pings the host.
func (d *Desktop) Connect(ctx context.Context) error {
	return d.connect(ctx, func(ctx context.Context) error {
		convs := d.conventions()
		if len(convs) == 0 {
			return bridgeerrors.NoHostAvailable(d.kind.String())
		}

		if reg, ok := d.env.WebView.(host.ListenerRegistrar); ok {
			remove, err := reg.AddMessageListener(func(data []byte) {
				d.HandleMessage(data)
			})
			if err != nil {
				return err
			}
			d.AddListener(remove)
		}

		if d.config.PingOnConnect {
			return d.ping(ctx, convs)
		}
		return nil
	})
}

// FetchRoster asks the shell for the roster and caches it
func (d *Desktop) FetchRoster(ctx context.Context) ([]roster.Entry, error) {
	return d.fetchRoster(ctx, d.conventions())
}

// ReportPick tells the shell which entry the wheel landed on
func (d *Desktop) ReportPick(ctx context.Context, id string) (bool, error) {
	return d.reportPick(ctx, id, d.conventions())
}

// ReportRemoval asks the shell to drop an entry, keeping the minimum roster size
func (d *Desktop) ReportRemoval(ctx context.Context, id string) (bool, error) {
	return d.reportRemoval(ctx, id, d.conventions())
}
