package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/hostbridge-go/pkg/host"
	"github.com/ajitpratap0/hostbridge-go/pkg/host/hosttest"
	"github.com/ajitpratap0/hostbridge-go/pkg/observability"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// tagMiddleware records the order in which wrapped strategies are entered
type tagMiddleware struct {
	tag   string
	trail *[]string
}

func (m tagMiddleware) Wrap(s Strategy) Strategy {
	return &tagStrategy{middlewareStrategy: middlewareStrategy{next: s}, m: m}
}

type tagStrategy struct {
	middlewareStrategy
	m tagMiddleware
}

func (s *tagStrategy) FetchRoster(ctx context.Context) ([]roster.Entry, error) {
	*s.m.trail = append(*s.m.trail, s.m.tag)
	return s.middlewareStrategy.FetchRoster(ctx)
}

func TestChainMiddlewareOrder(t *testing.T) {
	var trail []string
	inner := NewBrowser(testOptions(time.Second))
	chain := ChainMiddleware(
		tagMiddleware{tag: "outer", trail: &trail},
		tagMiddleware{tag: "inner", trail: &trail},
	)
	s := chain.Wrap(inner)

	require.NoError(t, s.Connect(context.Background()))
	_, err := s.FetchRoster(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"outer", "inner"}, trail)
	assert.Same(t, inner, Unwrap(s))
	assert.Same(t, inner, Unwrap(inner))
}

func TestObservabilityMiddleware(t *testing.T) {
	metrics, err := observability.NewMetrics(observability.MetricsConfig{})
	require.NoError(t, err)

	exporter := tracetest.NewInMemoryExporter()
	tracing, err := observability.NewTracingProvider(observability.TracingConfig{
		ServiceName: "hostbridge-test",
		Exporter:    exporter,
		SampleRate:  1,
	})
	require.NoError(t, err)

	inner := NewBrowser(testOptions(time.Second))
	s := NewObservabilityMiddleware(ObservabilityConfig{
		Environment: protocol.BrowserOnly,
		Metrics:     metrics,
		Tracing:     tracing,
	}).Wrap(inner)

	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))
	_, err = s.FetchRoster(ctx)
	require.NoError(t, err)
	_, err = s.ReportRemoval(ctx, "")
	require.Error(t, err)

	// connect/success, fetchRoster/success, reportRemoval/error
	count, err := testutil.GatherAndCount(metrics.Registry(), "hostbridge_rpc_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = testutil.GatherAndCount(metrics.Registry(), "hostbridge_connect_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// error counts come from error events, not from the middleware
	count, err = testutil.GatherAndCount(metrics.Registry(), "hostbridge_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, tracing.ForceFlush(ctx))
	var names []string
	for _, span := range exporter.GetSpans() {
		names = append(names, span.Name)
	}
	assert.ElementsMatch(t, []string{"bridge.connect", "bridge.fetchRoster", "bridge.reportRemoval"}, names)
	require.NoError(t, tracing.Shutdown(ctx))
}

func TestFailedConventionsAnnotateSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracing, err := observability.NewTracingProvider(observability.TracingConfig{Exporter: exporter})
	require.NoError(t, err)

	h := hosttest.NewHost(3)
	opts := testOptions(time.Second)
	opts.Tracing = tracing
	env := host.Environment{
		DesktopReceiver: failingReceiver(errors.New("receiver not registered")),
		AsyncCall:       host.AsyncCallerFunc(h.Call),
	}
	s := NewObservabilityMiddleware(ObservabilityConfig{
		Environment: protocol.NativeDesktop,
		Tracing:     tracing,
	}).Wrap(NewDesktop(env, opts))

	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))
	entries, err := s.FetchRoster(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	require.NoError(t, tracing.ForceFlush(ctx))
	var fetch *tracetest.SpanStub
	for _, span := range exporter.GetSpans() {
		if span.Name == "bridge.fetchRoster" {
			span := span
			fetch = &span
		}
	}
	require.NotNil(t, fetch)
	require.Len(t, fetch.Events, 1)
	assert.Equal(t, "convention.failed", fetch.Events[0].Name)
	assert.Contains(t, fetch.Events[0].Attributes, observability.AttrConvention.String(ConventionDesktopReceiver))
	require.NoError(t, tracing.Shutdown(ctx))
}
