package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
	"github.com/ajitpratap0/hostbridge-go/pkg/statusapi"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	listen      string
	autoConnect bool
	debug       bool
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge behind the HTTP status API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig(func(v *viper.Viper) error {
				if opts.listen != "" {
					v.Set("status.listen", opts.listen)
				}
				return nil
			})
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), cfg, flags, cmd.ErrOrStderr(), hostIO{in: cmd.InOrStdin(), out: os.Stdout})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(context.Background()) }()

			ln, err := net.Listen("tcp", cfg.Status.Listen)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), rt, opts, ln)
		},
	}
	cmd.Flags().StringVar(&opts.listen, "listen", "", "status API listen address (overrides status.listen)")
	cmd.Flags().BoolVar(&opts.autoConnect, "connect", true, "connect the bridge on startup")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "log every HTTP request")
	return cmd
}

// runServe serves the status API on ln until ctx is canceled
func runServe(ctx context.Context, rt *runtime, opts *serveOptions, ln net.Listener) error {
	var metrics http.Handler
	if rt.metrics != nil {
		metrics = rt.metrics.Handler()
	}
	router := statusapi.NewRouter(rt.bridge, statusapi.Options{
		Logger:  rt.logger,
		Metrics: metrics,
		Debug:   opts.debug,
	})
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rt.logger.Info("status API listening", logging.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if opts.autoConnect {
		g.Go(func() error {
			if err := rt.bridge.Connect(gctx); err != nil {
				// retries and the fallback continue in the background
				rt.logger.Warn("initial connect failed", logging.ErrorField(err))
			}
			return nil
		})
	}
	return g.Wait()
}
