package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ajitpratap0/hostbridge-go/pkg/bridge"
	"github.com/ajitpratap0/hostbridge-go/pkg/config"
	"github.com/ajitpratap0/hostbridge-go/pkg/host"
	"github.com/ajitpratap0/hostbridge-go/pkg/host/stdio"
	"github.com/ajitpratap0/hostbridge-go/pkg/host/wschannel"
	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
	"github.com/ajitpratap0/hostbridge-go/pkg/observability"
)

// runtime holds everything a command needs to drive one bridge
type runtime struct {
	config  *config.Config
	logger  logging.Logger
	metrics *observability.Metrics
	tracing *observability.TracingProvider
	bridge  *bridge.Bridge

	closers []func(context.Context) error
}

// hostIO are the streams used by --stdio
type hostIO struct {
	in  io.Reader
	out io.Writer
}

// newRuntime assembles the bridge. Logs always go to logOut so stdout stays
// free for the stdio host protocol.
func newRuntime(ctx context.Context, cfg *config.Config, flags *globalFlags, logOut io.Writer, hio hostIO) (*runtime, error) {
	rt := &runtime{config: cfg, logger: cfg.NewLogger(logOut)}

	if mc := cfg.MetricsConfig(); mc != nil {
		metrics, err := observability.NewMetrics(*mc)
		if err != nil {
			return nil, err
		}
		rt.metrics = metrics
	}
	if tc := cfg.TracingConfig(); tc != nil {
		tracing, err := observability.NewTracingProvider(*tc)
		if err != nil {
			return nil, err
		}
		rt.tracing = tracing
		rt.closers = append(rt.closers, tracing.Shutdown)
	}

	env, err := rt.connectHost(ctx, flags, hio)
	if err != nil {
		_ = rt.Close(context.Background())
		return nil, err
	}

	var probe host.Probe
	if !env.Empty() {
		probe = host.StaticProbe(env)
	}
	b, err := bridge.New(bridge.Options{
		Config:  cfg.BridgeConfig(),
		Probe:   probe,
		Logger:  rt.logger,
		Metrics: rt.metrics,
		Tracing: rt.tracing,
	})
	if err != nil {
		_ = rt.Close(context.Background())
		return nil, err
	}
	rt.bridge = b
	rt.closers = append([]func(context.Context) error{b.Disconnect}, rt.closers...)
	return rt, nil
}

func (rt *runtime) connectHost(ctx context.Context, flags *globalFlags, hio hostIO) (host.Environment, error) {
	switch {
	case flags.wsURL != "":
		ch, err := wschannel.Dial(ctx, flags.wsURL, rt.logger)
		if err != nil {
			return host.Environment{}, fmt.Errorf("failed to reach desktop shell: %w", err)
		}
		rt.closers = append(rt.closers, func(context.Context) error { return ch.Close() })
		rt.logger.Info("using webview channel", logging.String("url", flags.wsURL))
		return host.Environment{WebView: ch}, nil

	case flags.stdio:
		in, out := hio.in, hio.out
		if in == nil {
			in = os.Stdin
		}
		if out == nil {
			out = os.Stdout
		}
		ch := stdio.NewChannel(in, out, rt.logger)
		go func() {
			if err := ch.Start(ctx); err != nil {
				rt.logger.Error("stdio channel stopped", logging.ErrorField(err))
			}
		}()
		rt.closers = append(rt.closers, func(context.Context) error { return ch.Stop() })
		rt.logger.Info("using stdio channel")
		return host.Environment{Embedded: ch}, nil
	}
	return host.Environment{}, nil
}

// Close disconnects the bridge and releases host channels and exporters in
// order, returning the first error.
func (rt *runtime) Close(ctx context.Context) error {
	var first error
	for _, c := range rt.closers {
		if err := c(ctx); err != nil && first == nil {
			first = err
		}
	}
	rt.closers = nil
	return first
}
