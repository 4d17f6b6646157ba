// Package events provides the in-process publish/subscribe bus shared by the
// coordinator, the strategies and consumers.
package events

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
)

// Wildcard is the subscription name that receives every event.
const Wildcard = "*"

// Event is a named payload flowing on the bus
type Event struct {
	Name    string
	Payload interface{}
}

// Handler is a function that handles an event.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous pub-sub event bus. Handlers run on the publisher's
// goroutine in registration order; specific handlers run before wildcard
// handlers.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription
	nextID        atomic.Uint64
	logger        logging.Logger
}

// NewBus creates a new event bus. A nil logger discards panic reports.
func NewBus(logger logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{
		subscriptions: make(map[string][]subscription),
		logger:        logger.WithFields(logging.String("component", "event_bus")),
	}
}

// Subscribe registers a handler for name and returns the function that removes
// exactly this registration. Subscribing the same handler twice creates two
// registrations.
func (b *Bus) Subscribe(name string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID.Add(1)
	b.subscriptions[name] = append(b.subscriptions[name], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

// SubscribeOnce registers a handler that is removed before its first call.
func (b *Bus) SubscribeOnce(name string, handler Handler) func() {
	var (
		fired       atomic.Bool
		mu          sync.Mutex
		unsubscribe func()
	)
	mu.Lock()
	defer mu.Unlock()
	unsubscribe = b.Subscribe(name, func(e Event) {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		mu.Lock()
		unsub := unsubscribe
		mu.Unlock()
		unsub()
		handler(e)
	})
	return unsubscribe
}

// SubscribeAll registers a handler called for every published event.
func (b *Bus) SubscribeAll(handler Handler) func() {
	return b.Subscribe(Wildcard, handler)
}

func (b *Bus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[name]
	for i, sub := range subs {
		if sub.id == id {
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			b.subscriptions[name] = append(next, subs[i+1:]...)
			break
		}
	}
	if len(b.subscriptions[name]) == 0 {
		delete(b.subscriptions, name)
	}
}

// UnsubscribeAll removes every registration for the given names, or every
// registration on the bus when called without names.
func (b *Bus) UnsubscribeAll(names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(names) == 0 {
		b.subscriptions = make(map[string][]subscription)
		return
	}
	for _, name := range names {
		delete(b.subscriptions, name)
	}
}

// CountHandlers returns the number of registrations for the given names, or
// for the whole bus when called without names.
func (b *Bus) CountHandlers(names ...string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	if len(names) == 0 {
		for _, subs := range b.subscriptions {
			count += len(subs)
		}
		return count
	}
	for _, name := range names {
		count += len(b.subscriptions[name])
	}
	return count
}

// Publish dispatches payload to every handler registered for name, then to
// wildcard handlers. A panicking handler is logged and skipped. Publish never
// blocks on subscribers beyond their own execution time.
func (b *Bus) Publish(name string, payload interface{}) {
	b.mu.RLock()
	specific := append([]subscription(nil), b.subscriptions[name]...)
	var wildcard []subscription
	if name != Wildcard {
		wildcard = append(wildcard, b.subscriptions[Wildcard]...)
	}
	b.mu.RUnlock()

	event := Event{Name: name, Payload: payload}
	for _, sub := range specific {
		b.safeCall(sub.handler, event)
	}
	for _, sub := range wildcard {
		b.safeCall(sub.handler, event)
	}
}

func (b *Bus) safeCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				logging.String("event", event.Name),
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
		}
	}()
	handler(event)
}
