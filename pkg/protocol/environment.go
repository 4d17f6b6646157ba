package protocol

import "time"

// EnvironmentKind classifies the runtime hosting the bridge
type EnvironmentKind string

const (
	NativeDesktop  EnvironmentKind = "native-desktop"
	NativeMobile   EnvironmentKind = "native-mobile"
	NativeEmbedded EnvironmentKind = "native-embedded"
	BrowserOnly    EnvironmentKind = "browser-only"
)

// Valid reports whether k is one of the four known kinds
func (k EnvironmentKind) Valid() bool {
	switch k {
	case NativeDesktop, NativeMobile, NativeEmbedded, BrowserOnly:
		return true
	}
	return false
}

func (k EnvironmentKind) String() string { return string(k) }

// Confidence grades how strongly a detection signal identifies its kind
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Detection signals
const (
	SignalDesktopReceiver = "desktop-receiver"
	SignalMobileObject    = "mobile-object"
	SignalAsyncMobileUA   = "async-call+mobile-ua"
	SignalAsyncCall       = "async-call"
	SignalAsyncWebView    = "async-call+webview"
	SignalWebView         = "webview"
	SignalEmbeddedAPI     = "embedded-api"
	SignalFallback        = "fallback"

	// SignalForcedFallback marks a browser-only selection made by the
	// coordinator after retries were exhausted, not by detection.
	SignalForcedFallback = "forced-fallback"
)

// DetectionResult is produced fresh on every connection attempt
type DetectionResult struct {
	Kind       EnvironmentKind `json:"kind"`
	Confidence Confidence      `json:"confidence"`
	Signal     string          `json:"signal"`
}

// ConnectionState of a strategy
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateFailed       ConnectionState = "failed"
)

func (s ConnectionState) String() string { return string(s) }

// ConnectionInfo is a point-in-time view of the coordinator
type ConnectionInfo struct {
	State           ConnectionState  `json:"state"`
	Environment     EnvironmentKind  `json:"environment,omitempty"`
	Detection       *DetectionResult `json:"detection,omitempty"`
	ConnectedAt     time.Time        `json:"connectedAt,omitempty"`
	RetryCount      int              `json:"retryCount"`
	FallbackEngaged bool             `json:"fallbackEngaged"`
}
