// Package hostbridge is the root of the host bridge module, re-exporting the
// pieces most consumers need.
//
// # Overview
//
// The module consists of several sub-packages:
//
//   - pkg/bridge: the coordinator owning the active strategy, retry and fallback
//   - pkg/detect: classification of the host environment
//   - pkg/transport: one strategy per environment kind
//   - pkg/events: the in-process event bus
//   - pkg/host: the host surfaces a strategy talks to
//   - pkg/roster: roster entries and the removal policy
//   - pkg/config: file and environment configuration
//   - pkg/statusapi: the HTTP status surface
//
// # Connecting
//
//	b, err := hostbridge.NewBridge(hostbridge.Options{
//	    Config: hostbridge.DefaultConfig(),
//	    Probe:  hostbridge.StaticProbe(env),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	b.On(hostbridge.EventRosterLoaded, func(e hostbridge.Event) { ... })
//	if err := b.Connect(ctx); err != nil {
//	    // retries continue in the background
//	}
//	entries, err := b.FetchRoster(ctx)
//
// Without a probe the bridge runs the browser-only simulation over a fixed
// 20-entry roster.
package hostbridge
