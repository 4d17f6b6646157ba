package transport

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
	"github.com/ajitpratap0/hostbridge-go/pkg/observability"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// ObservabilityConfig selects the sinks of the observability middleware.
// Nil sinks are skipped.
type ObservabilityConfig struct {
	Environment protocol.EnvironmentKind
	Metrics     *observability.Metrics
	Tracing     *observability.TracingProvider
	Logger      logging.Logger
}

// ObservabilityMiddleware adds latency metrics, logging and tracing around
// every strategy operation. Error counts are left to whoever consumes the
// error events so that each failure is counted once.
type ObservabilityMiddleware struct {
	config ObservabilityConfig
	logger logging.Logger
}

// NewObservabilityMiddleware creates a new observability middleware
func NewObservabilityMiddleware(config ObservabilityConfig) Middleware {
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ObservabilityMiddleware{
		config: config,
		logger: logger.WithFields(logging.String("environment", config.Environment.String())),
	}
}

// Wrap implements the Middleware interface
func (om *ObservabilityMiddleware) Wrap(strategy Strategy) Strategy {
	return &observabilityStrategy{
		middlewareStrategy: middlewareStrategy{next: strategy},
		middleware:         om,
	}
}

type observabilityStrategy struct {
	middlewareStrategy
	middleware *ObservabilityMiddleware
}

// observe runs fn inside a span and records its outcome
func (s *observabilityStrategy) observe(ctx context.Context, operation string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	om := s.middleware
	env := om.config.Environment.String()

	if om.config.Tracing != nil {
		var span trace.Span
		ctx, span = om.config.Tracing.StartOperationSpan(ctx, operation, env)
		defer span.End()
		if len(attrs) > 0 {
			om.config.Tracing.SetAttributes(ctx, attrs...)
		}
	}

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		om.logger.Debug("strategy operation failed",
			logging.String("operation", operation),
			logging.Duration("duration", duration),
			logging.ErrorField(err))
		if om.config.Tracing != nil {
			om.config.Tracing.RecordError(ctx, err)
		}
	} else {
		om.logger.Debug("strategy operation succeeded",
			logging.String("operation", operation),
			logging.Duration("duration", duration))
	}
	om.config.Metrics.RecordRPC(operation, env, status, duration)
	return err
}

func (s *observabilityStrategy) Connect(ctx context.Context) error {
	err := s.observe(ctx, OpConnect, s.middlewareStrategy.Connect)
	status := "success"
	if err != nil {
		status = "error"
	}
	s.middleware.config.Metrics.RecordConnectAttempt(s.middleware.config.Environment.String(), status)
	return err
}

func (s *observabilityStrategy) Disconnect(ctx context.Context) error {
	return s.observe(ctx, OpDisconnect, s.middlewareStrategy.Disconnect)
}

func (s *observabilityStrategy) FetchRoster(ctx context.Context) ([]roster.Entry, error) {
	var entries []roster.Entry
	err := s.observe(ctx, OpFetchRoster, func(ctx context.Context) error {
		var err error
		entries, err = s.middlewareStrategy.FetchRoster(ctx)
		return err
	})
	return entries, err
}

func (s *observabilityStrategy) ReportPick(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.observe(ctx, OpReportPick, func(ctx context.Context) error {
		var err error
		ok, err = s.middlewareStrategy.ReportPick(ctx, id)
		return err
	}, attribute.String("bridge.entry_id", id))
	return ok, err
}

func (s *observabilityStrategy) ReportRemoval(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.observe(ctx, OpReportRemoval, func(ctx context.Context) error {
		var err error
		ok, err = s.middlewareStrategy.ReportRemoval(ctx, id)
		return err
	}, attribute.String("bridge.entry_id", id))
	return ok, err
}
