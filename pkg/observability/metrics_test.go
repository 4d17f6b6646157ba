package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecording(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{ServiceName: "test"})
	require.NoError(t, err)

	m.RecordRPC("fetchRoster", "browser-only", "success", 120*time.Millisecond)
	m.RecordRPC("fetchRoster", "browser-only", "success", 80*time.Millisecond)
	m.RecordRPC("reportRemoval", "browser-only", "error", time.Millisecond)
	m.RecordConnectAttempt("native-desktop", "error")
	m.RecordRetry()
	m.RecordRetry()
	m.RecordFallback("retry-exhausted")
	m.RecordHostEvent("rosterUpdated")
	m.RecordError("reportRemoval", "MINIMUM_ROSTER_SIZE")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.rpcTotal.WithLabelValues("fetchRoster", "browser-only", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rpcTotal.WithLabelValues("reportRemoval", "browser-only", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.connectAttempts.WithLabelValues("native-desktop", "error")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.retries))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.fallbacks.WithLabelValues("retry-exhausted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.hostEvents.WithLabelValues("rosterUpdated")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errorTotal.WithLabelValues("reportRemoval", "MINIMUM_ROSTER_SIZE")))
}

func TestConnectionStateGauge(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{})
	require.NoError(t, err)

	m.RecordConnectionState("connecting")
	m.RecordConnectionState("connected")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.connectionState.WithLabelValues("connected")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.connectionState.WithLabelValues("connecting")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRPC("fetchRoster", "x", "success", time.Second)
		m.RecordConnectionState("connected")
		m.RecordConnectAttempt("x", "success")
		m.RecordRetry()
		m.RecordFallback("x")
		m.RecordHostEvent("x")
		m.RecordError("x", "y")
	})
	assert.Nil(t, m.Registry())
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(MetricsConfig{Registry: reg})
	require.NoError(t, err)
	_, err = NewMetrics(MetricsConfig{Registry: reg})
	assert.Error(t, err)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{})
	require.NoError(t, err)
	m.RecordRetry()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "hostbridge_connect_retries_total 1")
}
