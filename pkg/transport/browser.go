package transport

import (
	"context"

	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// Browser is the no-host strategy. Every operation is answered by a local
// Simulator after the configured latency; connecting always succeeds.
type Browser struct {
	*Base
	sim *Simulator
}

// NewBrowser creates a browser strategy over a fresh simulator seeded from
// Config.SeedRoster.
func NewBrowser(opts Options) *Browser {
	base := NewBase(protocol.BrowserOnly, opts)
	return &Browser{
		Base: base,
		sim:  NewSimulator(base.config.SeedRoster, base.config.SimulationLatency),
	}
}

// Simulator returns the simulated host behind the strategy
func (b *Browser) Simulator() *Simulator { return b.sim }

func (b *Browser) conventions() []convention {
	return []convention{{name: ConventionSimulation, call: b.sim.CallAsync}}
}

// Connect starts the simulation after the configured latency
func (b *Browser) Connect(ctx context.Context) error {
	return b.connect(ctx, func(ctx context.Context) error {
		return sleepCtx(ctx, b.config.SimulationLatency)
	})
}

// FetchRoster returns the simulated roster
func (b *Browser) FetchRoster(ctx context.Context) ([]roster.Entry, error) {
	return b.fetchRoster(ctx, b.conventions())
}

// ReportPick confirms the pick against the simulated roster
func (b *Browser) ReportPick(ctx context.Context, id string) (bool, error) {
	return b.reportPick(ctx, id, b.conventions())
}

// ReportRemoval removes the entry from the simulated roster
func (b *Browser) ReportRemoval(ctx context.Context, id string) (bool, error) {
	return b.reportRemoval(ctx, id, b.conventions())
}
