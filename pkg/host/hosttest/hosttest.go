// Package hosttest provides in-memory host surfaces for tests of the bridge
// and its strategies.
package hosttest

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/ajitpratap0/hostbridge-go/pkg/host"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
)

// Responder produces the data of the response to msg. Returning false
// leaves the request unanswered.
type Responder func(msg *protocol.WireMessage) (data interface{}, reply bool)

// WebView is an in-memory webview message channel. Posted messages are
// recorded and, when a Responder is set, answered asynchronously with a
// "<event>Response" message carrying the same id.
type WebView struct {
	mu        sync.Mutex
	posted    []*protocol.WireMessage
	listeners map[int]func([]byte)
	nextID    int
	responder Responder
	postErr   error
}

var (
	_ host.MessageChannel    = (*WebView)(nil)
	_ host.ListenerRegistrar = (*WebView)(nil)
)

// NewWebView creates a webview answering with responder; nil never answers.
func NewWebView(responder Responder) *WebView {
	return &WebView{
		listeners: make(map[int]func([]byte)),
		responder: responder,
	}
}

// FailPosts makes every later PostMessage return err
func (w *WebView) FailPosts(err error) {
	w.mu.Lock()
	w.postErr = err
	w.mu.Unlock()
}

// PostMessage records data and answers it asynchronously through the responder
func (w *WebView) PostMessage(data []byte) error {
	msg, err := protocol.DecodeWireMessage(data)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.postErr != nil {
		err := w.postErr
		w.mu.Unlock()
		return err
	}
	w.posted = append(w.posted, msg)
	responder := w.responder
	w.mu.Unlock()

	if responder != nil {
		if out, ok := responder(msg); ok {
			reply := protocol.NewWireMessage(protocol.ResponseEvent(msg.Event), out, msg.MessageID)
			go w.DeliverMessage(reply)
		}
	}
	return nil
}

// AddMessageListener registers listener for host responses
func (w *WebView) AddMessageListener(listener func([]byte)) (func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = listener
	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}, nil
}

// Deliver hands raw bytes to every registered listener
func (w *WebView) Deliver(data []byte) {
	w.mu.Lock()
	listeners := make([]func([]byte), 0, len(w.listeners))
	for _, l := range w.listeners {
		listeners = append(listeners, l)
	}
	w.mu.Unlock()

	for _, l := range listeners {
		l(data)
	}
}

// DeliverMessage encodes msg and delivers it
func (w *WebView) DeliverMessage(msg *protocol.WireMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	w.Deliver(data)
}

// Posted returns every message posted so far
func (w *WebView) Posted() []*protocol.WireMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*protocol.WireMessage, len(w.posted))
	copy(out, w.posted)
	return out
}

// ListenerCount returns the number of registered listeners
func (w *WebView) ListenerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

// Embedded is an in-memory embedded-app send/on pair. Sent wire messages
// are answered on "<channel>Response" through the Responder.
type Embedded struct {
	mu        sync.Mutex
	sent      map[string][]interface{}
	listeners map[string]map[int]func(interface{})
	nextID    int
	responder Responder
}

var _ host.EmbeddedAPI = (*Embedded)(nil)

// NewEmbedded creates an embedded API answering through responder
func NewEmbedded(responder Responder) *Embedded {
	return &Embedded{
		sent:      make(map[string][]interface{}),
		listeners: make(map[string]map[int]func(interface{})),
		responder: responder,
	}
}

// Send delivers payload on channel and answers on "<channel>Response"
func (e *Embedded) Send(channel string, payload interface{}) error {
	e.mu.Lock()
	e.sent[channel] = append(e.sent[channel], payload)
	responder := e.responder
	e.mu.Unlock()

	msg, err := protocol.DecodeWireMessage(payload)
	if err != nil || responder == nil {
		return nil
	}
	if out, ok := responder(msg); ok {
		go e.Emit(protocol.ResponseEvent(channel), map[string]interface{}{
			"messageId": msg.MessageID,
			"data":      out,
		})
	}
	return nil
}

// On subscribes listener to channel
func (e *Embedded) On(channel string, listener func(interface{})) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners[channel] == nil {
		e.listeners[channel] = make(map[int]func(interface{}))
	}
	id := e.nextID
	e.nextID++
	e.listeners[channel][id] = listener
	return func() {
		e.mu.Lock()
		delete(e.listeners[channel], id)
		e.mu.Unlock()
	}
}

// Emit delivers payload to the listeners of channel
func (e *Embedded) Emit(channel string, payload interface{}) {
	e.mu.Lock()
	listeners := make([]func(interface{}), 0, len(e.listeners[channel]))
	for _, l := range e.listeners[channel] {
		listeners = append(listeners, l)
	}
	e.mu.Unlock()

	for _, l := range listeners {
		l(payload)
	}
}

// Sent returns the payloads sent on channel
func (e *Embedded) Sent(channel string) []interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]interface{}(nil), e.sent[channel]...)
}

// ListenerCount returns the number of listeners across all channels
func (e *Embedded) ListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ls := range e.listeners {
		n += len(ls)
	}
	return n
}

// Host is a scripted roster host. It answers the four RPC methods from a
// fixed roster and can be exposed through any calling convention.
type Host struct {
	mu      sync.Mutex
	entries []map[string]interface{}
	removed map[string]bool
	calls   []string
	err     error
}

// NewHost creates a host serving n entries with ids "1".."n"
func NewHost(n int) *Host {
	h := &Host{removed: make(map[string]bool)}
	for i := 1; i <= n; i++ {
		id := strconv.Itoa(i)
		h.entries = append(h.entries, map[string]interface{}{
			"id":          id,
			"displayName": "Entry " + id,
		})
	}
	return h
}

// FailWith makes every later call return err; nil restores normal answers.
func (h *Host) FailWith(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

// Calls returns the methods called so far, in order
func (h *Host) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

// Call answers method. Entry methods take the id from an EntryRequest, a
// string or a decoded {"id": ...} map.
func (h *Host) Call(_ context.Context, method string, payload interface{}) (interface{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, method)
	if h.err != nil {
		return nil, h.err
	}

	switch method {
	case protocol.MethodPing:
		return true, nil
	case protocol.MethodGetRoster:
		out := make([]interface{}, 0, len(h.entries))
		for _, e := range h.entries {
			if !h.removed[e["id"].(string)] {
				out = append(out, e)
			}
		}
		return out, nil
	case protocol.MethodReportPick:
		return map[string]interface{}{"success": true}, nil
	case protocol.MethodReportRemoval:
		id := entryID(payload)
		if id == "" || h.removed[id] {
			return false, nil
		}
		h.removed[id] = true
		return true, nil
	}
	return nil, &host.MethodNotFoundError{Method: method}
}

// Respond adapts the host to a Responder for WebView and Embedded
func (h *Host) Respond(msg *protocol.WireMessage) (interface{}, bool) {
	out, err := h.Call(context.Background(), msg.Event, msg.Data)
	if err != nil {
		return nil, false
	}
	return out, true
}

// MethodTable exposes the host as a mobile native object
func (h *Host) MethodTable() host.MethodTable {
	table := host.MethodTable{}
	for _, method := range protocol.KnownMethods {
		method := method
		table[method] = func(ctx context.Context, args ...interface{}) (interface{}, error) {
			var payload interface{}
			if len(args) > 0 {
				payload = args[0]
			}
			return h.Call(ctx, method, payload)
		}
	}
	return table
}

func entryID(payload interface{}) string {
	switch v := payload.(type) {
	case protocol.EntryRequest:
		return v.ID
	case string:
		return v
	case map[string]interface{}:
		id, _ := v["id"].(string)
		return id
	}
	return ""
}
