package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hostbridge-go/pkg/bridge"
	"github.com/ajitpratap0/hostbridge-go/pkg/observability"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hostbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsMatchBridgeDefaults(t *testing.T) {
	v := NewViper("")
	cfg, err := FromViper(v)
	require.NoError(t, err)

	want := bridge.DefaultConfig()
	got := cfg.BridgeConfig()
	assert.Equal(t, want.MaxRetries, got.MaxRetries)
	assert.Equal(t, want.RetryBaseDelay, got.RetryBaseDelay)
	assert.Equal(t, want.ConnectTimeout, got.ConnectTimeout)
	assert.Equal(t, want.FallbackPolicy, got.FallbackPolicy)
	assert.Equal(t, want.AutoReconnect, got.AutoReconnect)
	assert.Equal(t, want.Transport.RequestTimeout, got.Transport.RequestTimeout)
	assert.Equal(t, want.Transport.SimulationLatency, got.Transport.SimulationLatency)
	assert.Empty(t, got.Transport.PushEvents)
	assert.Empty(t, got.Transport.SeedRoster)
	assert.Equal(t, "127.0.0.1:8787", cfg.Status.Listen)
	assert.NotNil(t, cfg.MetricsConfig())
	assert.Nil(t, cfg.TracingConfig())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
bridge:
  max_retries: 5
  retry_base_delay: 500ms
  fallback_policy: reprobe
transport:
  request_timeout: 2s
  push_events: [rosterChanged]
simulation:
  latency: 0s
  seed_roster:
    - id: a
      display_name: Alpha
    - id: b
      display_name: Beta
      seat_label: B2
logging:
  level: debug
  format: json
tracing:
  enabled: true
  exporter: otlp-http
  endpoint: localhost:4318
  sample_rate: 0.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	bc := cfg.BridgeConfig()
	assert.Equal(t, 5, bc.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, bc.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, bc.ConnectTimeout)
	assert.Equal(t, bridge.FallbackReprobe, bc.FallbackPolicy)
	assert.Equal(t, 2*time.Second, bc.Transport.RequestTimeout)
	assert.Equal(t, []string{"rosterChanged"}, bc.Transport.PushEvents)
	assert.Equal(t, time.Duration(0), bc.Transport.SimulationLatency)
	require.Len(t, bc.Transport.SeedRoster, 2)
	assert.Equal(t, "Beta", bc.Transport.SeedRoster[1].DisplayName)
	assert.Equal(t, "B2", bc.Transport.SeedRoster[1].SeatLabel)

	tc := cfg.TracingConfig()
	require.NotNil(t, tc)
	assert.Equal(t, observability.ExporterTypeOTLPHTTP, tc.ExporterType)
	assert.Equal(t, "localhost:4318", tc.Endpoint)
	assert.InDelta(t, 0.5, tc.SampleRate, 1e-9)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "bridge:\n  max_retries: 5\n")
	t.Setenv("HOSTBRIDGE_BRIDGE_MAX_RETRIES", "1")
	t.Setenv("HOSTBRIDGE_STATUS_LISTEN", ":9999")
	t.Setenv("HOSTBRIDGE_BRIDGE_AUTO_RECONNECT", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Bridge.MaxRetries)
	assert.Equal(t, ":9999", cfg.Status.Listen)
	assert.False(t, cfg.Bridge.AutoReconnect)
}

func TestOverrideWinsOverEnv(t *testing.T) {
	t.Setenv("HOSTBRIDGE_LOGGING_LEVEL", "warn")
	cfg, err := Load("", func(v *viper.Viper) error {
		v.Set("logging.level", "debug")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative retries", func(c *Config) { c.Bridge.MaxRetries = -1 }},
		{"unknown policy", func(c *Config) { c.Bridge.FallbackPolicy = "sometimes" }},
		{"negative latency", func(c *Config) { c.Simulation.Latency = -time.Second }},
		{"unknown level", func(c *Config) { c.Logging.Level = "loud" }},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }},
		{"unknown exporter", func(c *Config) { c.Tracing.Exporter = "zipkin" }},
		{"sample rate", func(c *Config) { c.Tracing.SampleRate = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestValidateSeedRoster(t *testing.T) {
	path := writeConfig(t, "simulation:\n  seed_roster:\n    - id: only\n      display_name: Only\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "seed_roster")

	path = writeConfig(t, "simulation:\n  seed_roster:\n    - id: x\n    - id: y\n      display_name: Y\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "seed_roster[0]")
}
