package protocol

import (
	"time"

	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// Bridge event names
const (
	EventConnectionStatusChanged = "connectionStatusChanged"
	EventConnected               = "connected"
	EventDisconnected            = "disconnected"
	EventRosterLoaded            = "rosterLoaded"
	EventError                   = "error"
	EventPickConfirmed           = "pickConfirmed"
	EventRemovalConfirmed        = "removalConfirmed"
)

// StatusChange is the payload of connectionStatusChanged
type StatusChange struct {
	Previous    ConnectionState `json:"previous"`
	Current     ConnectionState `json:"current"`
	Environment EnvironmentKind `json:"environment"`
}

// Connected is the payload of the connected event
type Connected struct {
	Environment EnvironmentKind `json:"environment"`
	Signal      string          `json:"signal"`
	Confidence  Confidence      `json:"confidence"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Disconnected is the payload of the disconnected event
type Disconnected struct {
	Environment EnvironmentKind `json:"environment"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ErrorEvent is the payload of the error event
type ErrorEvent struct {
	Operation   string          `json:"operation"`
	Message     string          `json:"message"`
	Code        string          `json:"code"`
	Timestamp   time.Time       `json:"timestamp"`
	Environment EnvironmentKind `json:"environment"`
}

// RosterLoaded is the payload of the rosterLoaded event
type RosterLoaded struct {
	Entries     []roster.Entry  `json:"entries"`
	Environment EnvironmentKind `json:"environment"`
}

// PickConfirmed is the payload of the pickConfirmed event
type PickConfirmed struct {
	Entry     roster.Entry `json:"entry"`
	Timestamp time.Time    `json:"timestamp"`
}

// RemovalConfirmed is the payload of the removalConfirmed event
type RemovalConfirmed struct {
	Entry       roster.Entry `json:"entry"`
	ActiveCount int          `json:"activeCount"`
	Timestamp   time.Time    `json:"timestamp"`
}
