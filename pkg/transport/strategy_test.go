package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hostbridge-go/internal/testutil"
	bridgeerrors "github.com/ajitpratap0/hostbridge-go/pkg/errors"
	"github.com/ajitpratap0/hostbridge-go/pkg/host"
	"github.com/ajitpratap0/hostbridge-go/pkg/host/hosttest"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

func hostEnvWithWebView(w *hosttest.WebView) host.Environment {
	return host.Environment{WebView: w}
}

func failingReceiver(err error) host.DesktopReceiver {
	return host.DesktopReceiverFunc(func(context.Context, string, interface{}) (interface{}, error) {
		return nil, err
	})
}

func TestNewSelectsStrategy(t *testing.T) {
	tests := []struct {
		kind protocol.EnvironmentKind
		want interface{}
	}{
		{protocol.NativeDesktop, &Desktop{}},
		{protocol.NativeMobile, &Mobile{}},
		{protocol.NativeEmbedded, &Embedded{}},
		{protocol.BrowserOnly, &Browser{}},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			s, err := New(tt.kind, host.Environment{}, Options{})
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
			assert.Equal(t, tt.kind, s.(Observable).Kind())
		})
	}

	_, err := New("native-toaster", host.Environment{}, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedEnvironment)
}

func TestConnectWithoutHostSurface(t *testing.T) {
	for _, kind := range []protocol.EnvironmentKind{protocol.NativeDesktop, protocol.NativeMobile, protocol.NativeEmbedded} {
		t.Run(kind.String(), func(t *testing.T) {
			s, err := New(kind, host.Environment{}, testOptions(time.Second))
			require.NoError(t, err)

			err = s.Connect(context.Background())
			require.Error(t, err)
			assert.True(t, bridgeerrors.IsCode(err, bridgeerrors.CodeNoHostAvailable))
			assert.Equal(t, protocol.StateFailed, s.(Observable).State())
		})
	}
}

func TestRPCRequiresConnected(t *testing.T) {
	opts := testOptions(time.Second)
	rec := record(opts.Bus)
	h := hosttest.NewHost(5)
	d := NewDesktop(host.Environment{AsyncCall: host.AsyncCallerFunc(h.Call)}, opts)

	_, err := d.FetchRoster(context.Background())
	assert.True(t, bridgeerrors.IsCode(err, bridgeerrors.CodeNotConnected))
	ok, err := d.ReportPick(context.Background(), "1")
	assert.False(t, ok)
	assert.True(t, bridgeerrors.IsCode(err, bridgeerrors.CodeNotConnected))

	assert.Empty(t, h.Calls(), "host must not be contacted")
	assert.Len(t, rec.named(protocol.EventError), 2)
}

func TestDesktopFallsThroughConventions(t *testing.T) {
	opts := testOptions(time.Second)
	h := hosttest.NewHost(5)
	d := NewDesktop(host.Environment{
		DesktopReceiver: failingReceiver(errors.New("receiver unavailable")),
		AsyncCall:       host.AsyncCallerFunc(h.Call),
	}, opts)
	require.NoError(t, d.Connect(context.Background()))

	entries, err := d.FetchRoster(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	assert.Equal(t, []string{protocol.MethodGetRoster}, h.Calls())
}

func TestDesktopHostCallFailed(t *testing.T) {
	opts := testOptions(time.Second)
	rec := record(opts.Bus)
	d := NewDesktop(host.Environment{DesktopReceiver: failingReceiver(errors.New("boom"))}, opts)
	require.NoError(t, d.Connect(context.Background()))

	ok, err := d.ReportPick(context.Background(), "1")
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsCode(err, bridgeerrors.CodeHostCallFailed))
	assert.Contains(t, err.Error(), ConventionDesktopReceiver)
	assert.Equal(t, protocol.StateConnected, d.State())

	errs := rec.named(protocol.EventError)
	require.Len(t, errs, 1)
	payload := errs[0].Payload.(protocol.ErrorEvent)
	assert.Equal(t, OpReportPick, payload.Operation)
	assert.Equal(t, "HOST_CALL_FAILED", payload.Code)
	assert.Equal(t, protocol.NativeDesktop, payload.Environment)
}

func TestConnectionLossMovesToFailed(t *testing.T) {
	opts := testOptions(time.Second)
	rec := record(opts.Bus)
	d := NewDesktop(host.Environment{DesktopReceiver: failingReceiver(errors.New("read: connection reset by peer"))}, opts)
	require.NoError(t, d.Connect(context.Background()))

	_, err := d.FetchRoster(context.Background())
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsCode(err, bridgeerrors.CodeConnectionLost))
	assert.Equal(t, protocol.StateFailed, d.State())

	errs := rec.named(protocol.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "CONNECTION_LOST", errs[0].Payload.(protocol.ErrorEvent).Code)
}

func TestDesktopWebViewRoundTrip(t *testing.T) {
	leaks := testutil.NewLeakCheck(t)
	h := hosttest.NewHost(4)
	webview := hosttest.NewWebView(h.Respond)

	opts := testOptions(time.Second)
	opts.Config.PingOnConnect = true
	d := NewDesktop(hostEnvWithWebView(webview), opts)

	require.NoError(t, d.Connect(context.Background()))
	assert.Equal(t, 1, webview.ListenerCount())

	entries, err := d.FetchRoster(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "Entry 1", entries[0].DisplayName)

	ok, err := d.ReportRemoval(context.Background(), "2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, d.CachedRoster(), 3)

	posted := webview.Posted()
	require.Len(t, posted, 3)
	assert.Equal(t, protocol.MethodPing, posted[0].Event)
	assert.NotEmpty(t, posted[1].MessageID)
	assert.NotEqual(t, posted[1].MessageID, posted[2].MessageID)

	require.NoError(t, d.Disconnect(context.Background()))
	assert.Equal(t, 0, webview.ListenerCount())
	assert.Empty(t, d.CachedRoster())
	leaks.Verify()
}

func TestMobileMinimumRosterSize(t *testing.T) {
	opts := testOptions(time.Second)
	rec := record(opts.Bus)
	h := hosttest.NewHost(3)
	m := NewMobile(host.Environment{Mobile: h.MethodTable()}, opts)
	require.NoError(t, m.Connect(context.Background()))

	// no explicit fetch: the roster is loaded on demand
	ok, err := m.ReportRemoval(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{protocol.MethodGetRoster, protocol.MethodReportRemoval}, h.Calls())

	removed := rec.named(protocol.EventRemovalConfirmed)
	require.Len(t, removed, 1)
	assert.Equal(t, 2, removed[0].Payload.(protocol.RemovalConfirmed).ActiveCount)

	ok, err = m.ReportRemoval(context.Background(), "1")
	assert.NoError(t, err, "repeat removal is not an error")
	assert.False(t, ok)

	ok, err = m.ReportRemoval(context.Background(), "2")
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsCode(err, bridgeerrors.CodeMinimumRosterSize))
	assert.Len(t, h.Calls(), 2, "violation is rejected before contacting the host")

	errs := rec.named(protocol.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "MINIMUM_ROSTER_SIZE", errs[0].Payload.(protocol.ErrorEvent).Code)
	assert.Len(t, m.CachedRoster(), 2)
}

func TestConcurrentRemovalsKeepMinimum(t *testing.T) {
	opts := testOptions(time.Second)
	h := hosttest.NewHost(3)
	table := h.MethodTable()
	confirm := table[protocol.MethodReportRemoval]
	table[protocol.MethodReportRemoval] = func(ctx context.Context, args ...interface{}) (interface{}, error) {
		time.Sleep(50 * time.Millisecond)
		return confirm(ctx, args...)
	}
	m := NewMobile(host.Environment{Mobile: table}, opts)
	require.NoError(t, m.Connect(context.Background()))
	_, err := m.FetchRoster(context.Background())
	require.NoError(t, err)

	type result struct {
		ok  bool
		err error
	}
	results := make([]result, 2)
	var wg sync.WaitGroup
	for i, id := range []string{"1", "2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			ok, err := m.ReportRemoval(context.Background(), id)
			results[i] = result{ok, err}
		}(i, id)
	}
	wg.Wait()

	var confirmed, rejected int
	for _, r := range results {
		switch {
		case r.err == nil && r.ok:
			confirmed++
		case bridgeerrors.IsCode(r.err, bridgeerrors.CodeMinimumRosterSize):
			rejected++
		}
	}
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, 1, rejected)
	assert.Len(t, m.CachedRoster(), roster.MinActive)

	var removals int
	for _, c := range h.Calls() {
		if c == protocol.MethodReportRemoval {
			removals++
		}
	}
	assert.Equal(t, 1, removals, "only the reserved removal reaches the host")
}

func TestRemovalOfUnknownEntry(t *testing.T) {
	opts := testOptions(time.Second)
	rec := record(opts.Bus)
	h := hosttest.NewHost(5)
	m := NewMobile(host.Environment{Mobile: h.MethodTable()}, opts)
	require.NoError(t, m.Connect(context.Background()))
	_, err := m.FetchRoster(context.Background())
	require.NoError(t, err)

	ok, err := m.ReportRemoval(context.Background(), "99")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{protocol.MethodGetRoster}, h.Calls())
	assert.Empty(t, rec.named(protocol.EventRemovalConfirmed))
	assert.Empty(t, rec.named(protocol.EventError))
	assert.Len(t, m.CachedRoster(), 5)
}

func TestMobileSkipsMissingMethod(t *testing.T) {
	opts := testOptions(time.Second)
	h := hosttest.NewHost(3)
	table := host.MethodTable{
		protocol.MethodPing: func(context.Context, ...interface{}) (interface{}, error) { return true, nil },
	}
	m := NewMobile(host.Environment{Mobile: table, AsyncCall: host.AsyncCallerFunc(h.Call)}, opts)
	require.NoError(t, m.Connect(context.Background()))

	entries, err := m.FetchRoster(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestEmbeddedRoundTripAndPushEvents(t *testing.T) {
	h := hosttest.NewHost(6)
	api := hosttest.NewEmbedded(h.Respond)

	opts := testOptions(time.Second)
	opts.Config.PushEvents = []string{"rosterChanged"}
	rec := record(opts.Bus)
	e := NewEmbedded(host.Environment{Embedded: api}, opts)

	require.NoError(t, e.Connect(context.Background()))
	assert.Equal(t, len(protocol.KnownMethods)+1, api.ListenerCount())

	entries, err := e.FetchRoster(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 6)
	require.Len(t, api.Sent(protocol.MethodGetRoster), 1)

	ok, err := e.ReportPick(context.Background(), "3")
	require.NoError(t, err)
	assert.True(t, ok)

	picks := rec.named(protocol.EventPickConfirmed)
	require.Len(t, picks, 1)
	assert.Equal(t, "Entry 3", picks[0].Payload.(protocol.PickConfirmed).Entry.DisplayName)

	api.Emit("rosterChanged", map[string]interface{}{"reason": "seat swap"})
	pushed := rec.named("rosterChanged")
	require.Len(t, pushed, 1)
	assert.Equal(t, map[string]interface{}{"reason": "seat swap"}, pushed[0].Payload)

	require.NoError(t, e.Disconnect(context.Background()))
	assert.Equal(t, 0, api.ListenerCount())
}

func TestBrowserSimulation(t *testing.T) {
	opts := testOptions(time.Second)
	opts.Config.SimulationLatency = 20 * time.Millisecond
	rec := record(opts.Bus)
	b := NewBrowser(opts)

	start := time.Now()
	require.NoError(t, b.Connect(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	entries, err := b.FetchRoster(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 20)
	assert.Len(t, rec.named(protocol.EventRosterLoaded), 1)

	ok, err := b.ReportPick(context.Background(), "5")
	require.NoError(t, err)
	assert.True(t, ok)
	picks := rec.named(protocol.EventPickConfirmed)
	require.Len(t, picks, 1)
	assert.Equal(t, roster.Seed()[4], picks[0].Payload.(protocol.PickConfirmed).Entry)

	ok, err = b.ReportRemoval(context.Background(), "5")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, b.CachedRoster(), 19)

	ok, err = b.ReportRemoval(context.Background(), "5")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, b.CachedRoster(), 19)
	assert.Equal(t, []string{"5"}, b.Simulator().Picks())
}

func TestBrowserSeedRosterAndMinimum(t *testing.T) {
	opts := testOptions(time.Second)
	opts.Config.SeedRoster = []roster.Entry{
		{ID: "a", DisplayName: "A"},
		{ID: "b", DisplayName: "B"},
		{ID: "c", DisplayName: "C"},
	}
	b := NewBrowser(opts)
	require.NoError(t, b.Connect(context.Background()))

	entries, err := b.FetchRoster(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	ok, err := b.ReportRemoval(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.ReportRemoval(context.Background(), "b")
	assert.False(t, ok)
	assert.True(t, bridgeerrors.IsCode(err, bridgeerrors.CodeMinimumRosterSize))
}

func TestBrowserEmptyID(t *testing.T) {
	b := NewBrowser(testOptions(time.Second))
	require.NoError(t, b.Connect(context.Background()))

	_, err := b.ReportPick(context.Background(), "")
	assert.True(t, bridgeerrors.IsCode(err, bridgeerrors.CodeInvalidArgument))
}

func TestSimulatorHostSideMinimum(t *testing.T) {
	sim := NewSimulator([]roster.Entry{
		{ID: "1", DisplayName: "one"},
		{ID: "2", DisplayName: "two"},
		{ID: "3", DisplayName: "three"},
	}, 0)
	ctx := context.Background()

	out, err := sim.CallAsync(ctx, protocol.MethodReportRemoval, protocol.EntryRequest{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	out, err = sim.CallAsync(ctx, protocol.MethodReportRemoval, "2")
	require.NoError(t, err)
	assert.Equal(t, "false", out)

	out, err = sim.CallAsync(ctx, protocol.MethodGetRoster, nil)
	require.NoError(t, err)
	entries, ok := protocol.NormalizeRoster(out)
	require.True(t, ok)
	assert.Len(t, entries, 2)

	_, err = sim.CallAsync(ctx, "dance", nil)
	assert.Error(t, err)
}

func TestSimulatorLatencyHonoursContext(t *testing.T) {
	sim := NewSimulator(nil, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sim.CallAsync(ctx, protocol.MethodPing, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
