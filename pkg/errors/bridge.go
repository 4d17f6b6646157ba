package errors

import (
	"fmt"
	"strings"
	"time"
)

// CallErrorData contains structured data for failed host calls
type CallErrorData struct {
	Operation   string        `json:"operation"`
	Convention  string        `json:"convention,omitempty"`
	Environment string        `json:"environment,omitempty"`
	RequestID   string        `json:"request_id,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	Retryable   bool          `json:"retryable"`
}

// RosterErrorData contains structured data for roster policy rejections
type RosterErrorData struct {
	EntryID     string `json:"entry_id"`
	ActiveCount int    `json:"active_count"`
	Minimum     int    `json:"minimum"`
}

// NoHostAvailable is returned when a strategy finds none of the host
// surfaces it needs.
func NoHostAvailable(environment string) BridgeError {
	return NewErrorf(CodeNoHostAvailable, "no host surface available for %s", environment).
		WithData(&CallErrorData{Environment: environment, Retryable: true})
}

// NotConnected is returned for an RPC attempted outside the Connected state.
func NotConnected(operation string) BridgeError {
	return NewErrorf(CodeNotConnected, "%s: bridge is not connected", operation).
		WithData(&CallErrorData{Operation: operation})
}

// ConnectionFailed wraps a failed connect attempt.
func ConnectionFailed(environment string, cause error) BridgeError {
	msg := fmt.Sprintf("connect via %s failed", environment)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}
	return WrapError(cause, CodeConnectionFailed, msg).
		WithData(&CallErrorData{Environment: environment, Retryable: true})
}

// ConnectionLost wraps a mid-session failure of a connected strategy.
func ConnectionLost(environment string, cause error) BridgeError {
	msg := fmt.Sprintf("connection lost via %s", environment)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}
	return WrapError(cause, CodeConnectionLost, msg).
		WithData(&CallErrorData{Environment: environment, Retryable: true})
}

// ConnectionClosed is the rejection handed to requests still pending when a
// strategy disconnects.
func ConnectionClosed(requestID string) BridgeError {
	return NewError(CodeConnectionClosed, "connection closed").
		WithData(&CallErrorData{RequestID: requestID})
}

// RequestTimeout is returned when a round trip gets no matching response in time.
func RequestTimeout(operation, requestID string, timeout time.Duration) BridgeError {
	return NewErrorf(CodeRequestTimeout, "%s: no response for %s within %v", operation, requestID, timeout).
		WithData(&CallErrorData{Operation: operation, RequestID: requestID, Timeout: timeout, Retryable: true})
}

// HostCallFailed wraps a failing native call.
func HostCallFailed(operation, convention string, cause error) BridgeError {
	msg := fmt.Sprintf("%s via %s failed", operation, convention)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}
	return WrapError(cause, CodeHostCallFailed, msg).
		WithData(&CallErrorData{Operation: operation, Convention: convention, Retryable: true})
}

// MinimumRosterSizeViolation rejects a removal that would leave fewer than
// minimum active entries.
func MinimumRosterSizeViolation(entryID string, active, minimum int) BridgeError {
	return NewErrorf(CodeMinimumRosterSize, "cannot remove %q: %d active entries, minimum is %d", entryID, active, minimum).
		WithData(&RosterErrorData{EntryID: entryID, ActiveCount: active, Minimum: minimum})
}

// InvalidArgument reports a malformed caller argument.
func InvalidArgument(operation, reason string) BridgeError {
	return NewErrorf(CodeInvalidArgument, "%s: %s", operation, reason)
}

var lostConnectionPhrases = []string{
	"connection lost",
	"connection closed",
	"connection reset",
	"broken pipe",
	"use of closed",
}

// IndicatesConnectionLoss reports whether err reads as a dropped connection,
// either by code or by its text. A ConnectionClosed rejection comes from a
// local disconnect and never counts as a loss.
func IndicatesConnectionLoss(err error) bool {
	if err == nil {
		return false
	}
	if be, ok := AsBridgeError(err); ok {
		switch be.Code() {
		case CodeConnectionLost:
			return true
		case CodeConnectionClosed:
			return false
		}
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range lostConnectionPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
