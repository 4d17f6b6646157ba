package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RPC method names understood by native hosts
const (
	MethodGetRoster     = "getRoster"
	MethodReportPick    = "reportPick"
	MethodReportRemoval = "reportRemoval"
	MethodPing          = "ping"
)

// KnownMethods lists the method names a mobile host object may expose
var KnownMethods = []string{MethodGetRoster, MethodReportPick, MethodReportRemoval, MethodPing}

// ResponseSuffix marks a wire message as the answer to a pending request
const ResponseSuffix = "Response"

// ResponseEvent returns the event name a host uses to answer method
func ResponseEvent(method string) string {
	return method + ResponseSuffix
}

// EntryRequest is the payload of reportPick and reportRemoval
type EntryRequest struct {
	ID string `json:"id"`
}

// WireMessage is the envelope exchanged with correlation-based hosts
type WireMessage struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"messageId,omitempty"`
}

// NewWireMessage creates an outgoing message stamped with the current time
func NewWireMessage(event string, data interface{}, messageID string) *WireMessage {
	return &WireMessage{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		MessageID: messageID,
	}
}

// IsResponse reports whether the message answers a request
func (m *WireMessage) IsResponse() bool {
	return strings.HasSuffix(m.Event, ResponseSuffix)
}

// Encode marshals the message to JSON
func (m *WireMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeWireMessage accepts a raw JSON document ([]byte or string), a decoded
// map or a WireMessage value.
func DecodeWireMessage(raw interface{}) (*WireMessage, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("empty message")
	case *WireMessage:
		return v, nil
	case WireMessage:
		return &v, nil
	case []byte:
		return decodeWireJSON(v)
	case json.RawMessage:
		return decodeWireJSON(v)
	case string:
		return decodeWireJSON([]byte(v))
	case map[string]interface{}:
		msg := &WireMessage{Data: v["data"]}
		msg.Event, _ = v["event"].(string)
		msg.Timestamp, _ = v["timestamp"].(string)
		msg.MessageID = stringID(v["messageId"])
		if msg.Event == "" {
			return nil, fmt.Errorf("message has no event name")
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("unsupported message type %T", raw)
	}
}

func decodeWireJSON(data []byte) (*WireMessage, error) {
	var msg WireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wire message: %w", err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("message has no event name")
	}
	return &msg, nil
}
