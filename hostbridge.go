package hostbridge

import (
	"github.com/ajitpratap0/hostbridge-go/pkg/bridge"
	"github.com/ajitpratap0/hostbridge-go/pkg/detect"
	"github.com/ajitpratap0/hostbridge-go/pkg/events"
	"github.com/ajitpratap0/hostbridge-go/pkg/host"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
	"github.com/ajitpratap0/hostbridge-go/pkg/transport"
)

// Version represents the current version of the module
const Version = "0.1.0"

// These exports provide direct access to the core components
var (
	// NewBridge creates a disconnected coordinator
	NewBridge = bridge.New

	// DefaultConfig returns the coordinator defaults
	DefaultConfig = bridge.DefaultConfig

	// NewBus creates an event bus
	NewBus = events.NewBus

	// NewDetector creates an environment detector over a probe
	NewDetector = detect.New

	// NewStrategy creates the strategy for one environment kind
	NewStrategy = transport.New

	// StaticProbe returns a probe that always reports the same environment
	StaticProbe = host.StaticProbe

	// SeedRoster returns the simulation roster
	SeedRoster = roster.Seed
)

// Environment kinds
const (
	NativeDesktop  = protocol.NativeDesktop
	NativeMobile   = protocol.NativeMobile
	NativeEmbedded = protocol.NativeEmbedded
	BrowserOnly    = protocol.BrowserOnly
)

// Event names published on the bridge bus
const (
	EventConnectionStatusChanged = protocol.EventConnectionStatusChanged
	EventConnected               = protocol.EventConnected
	EventDisconnected            = protocol.EventDisconnected
	EventRosterLoaded            = protocol.EventRosterLoaded
	EventError                   = protocol.EventError
	EventPickConfirmed           = protocol.EventPickConfirmed
	EventRemovalConfirmed        = protocol.EventRemovalConfirmed
)

// Fallback policies
const (
	FallbackPermanent = bridge.FallbackPermanent
	FallbackReprobe   = bridge.FallbackReprobe
)

type (
	// Bridge is the coordinator
	Bridge = bridge.Bridge

	// Options configures a Bridge
	Options = bridge.Options

	// Config holds the coordinator settings
	Config = bridge.Config

	// Environment is a snapshot of the host surfaces
	Environment = host.Environment

	// Entry is one roster participant
	Entry = roster.Entry

	// Event is a named payload on the bus
	Event = events.Event
)
