// Package host declares the native surfaces a host application may expose to
// the bridge. Every surface is optional; an Environment with none of them set
// is the ordinary browser-only case.
package host

import (
	"context"
	"sort"
)

// DesktopReceiver is the desktop shell's receive function.
type DesktopReceiver interface {
	Invoke(ctx context.Context, method string, payload interface{}) (interface{}, error)
}

// MessageChannel is the desktop webview post-message channel.
type MessageChannel interface {
	PostMessage(data []byte) error
}

// ListenerRegistrar is implemented by message channels that can deliver host
// messages back to the bridge. The returned function removes the listener.
type ListenerRegistrar interface {
	AddMessageListener(listener func(data []byte)) (remove func(), err error)
}

// NativeObject is the mobile shell's bridge object.
type NativeObject interface {
	// Methods lists the method names the object exposes.
	Methods() []string
	Call(ctx context.Context, method string, args ...interface{}) (interface{}, error)
}

// AsyncCaller is the shared generic async-call object keyed by method name.
type AsyncCaller interface {
	CallAsync(ctx context.Context, method string, payload interface{}) (interface{}, error)
}

// EmbeddedAPI is the alternate embedded-app send/on channel pair.
type EmbeddedAPI interface {
	Send(channel string, payload interface{}) error
	On(channel string, listener func(payload interface{})) (remove func())
}

// Environment is a snapshot of what the runtime exposes.
type Environment struct {
	DesktopReceiver DesktopReceiver
	WebView         MessageChannel
	Mobile          NativeObject
	AsyncCall       AsyncCaller
	Embedded        EmbeddedAPI
	UserAgent       string
}

// Empty reports whether no native surface is present.
func (e Environment) Empty() bool {
	return e.DesktopReceiver == nil && e.WebView == nil && e.Mobile == nil && e.AsyncCall == nil && e.Embedded == nil
}

// Probe reads the current environment. It is called on every connection
// attempt, so surfaces injected after startup are picked up.
type Probe func() Environment

// StaticProbe returns a Probe that always reports env.
func StaticProbe(env Environment) Probe {
	return func() Environment { return env }
}

// HasMethod reports whether obj exposes method.
func HasMethod(obj NativeObject, method string) bool {
	if obj == nil {
		return false
	}
	for _, m := range obj.Methods() {
		if m == method {
			return true
		}
	}
	return false
}

// DesktopReceiverFunc adapts a function to DesktopReceiver.
type DesktopReceiverFunc func(ctx context.Context, method string, payload interface{}) (interface{}, error)

// Invoke calls f
func (f DesktopReceiverFunc) Invoke(ctx context.Context, method string, payload interface{}) (interface{}, error) {
	return f(ctx, method, payload)
}

// AsyncCallerFunc adapts a function to AsyncCaller.
type AsyncCallerFunc func(ctx context.Context, method string, payload interface{}) (interface{}, error)

// CallAsync calls f
func (f AsyncCallerFunc) CallAsync(ctx context.Context, method string, payload interface{}) (interface{}, error) {
	return f(ctx, method, payload)
}

// MethodFunc implements one method of a MethodTable.
type MethodFunc func(ctx context.Context, args ...interface{}) (interface{}, error)

// MethodTable is a NativeObject backed by a map of method implementations.
type MethodTable map[string]MethodFunc

// Methods returns the method names in sorted order
func (t MethodTable) Methods() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs the named method or returns a MethodNotFoundError
func (t MethodTable) Call(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	fn, ok := t[method]
	if !ok {
		return nil, &MethodNotFoundError{Method: method}
	}
	return fn(ctx, args...)
}

// MethodNotFoundError is returned by MethodTable for unknown methods.
type MethodNotFoundError struct {
	Method string
}

// Error implements error
func (e *MethodNotFoundError) Error() string {
	return "host method not found: " + e.Method
}
