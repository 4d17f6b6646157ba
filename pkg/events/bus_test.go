package events

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
)

func TestPublishOrder(t *testing.T) {
	bus := NewBus(nil)
	var got []string

	bus.SubscribeAll(func(e Event) { got = append(got, "wildcard:"+e.Name) })
	bus.Subscribe("tick", func(e Event) { got = append(got, "first") })
	bus.Subscribe("tick", func(e Event) { got = append(got, "second") })
	bus.Subscribe("other", func(e Event) { got = append(got, "other") })

	bus.Publish("tick", nil)
	assert.Equal(t, []string{"first", "second", "wildcard:tick"}, got)
}

func TestPanickingHandlerIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(logging.New(&buf, logging.FormatJSON, logging.InfoLevel))

	calls := 0
	bus.Subscribe("boom", func(Event) { calls++ })
	bus.Subscribe("boom", func(Event) { panic("handler failure") })
	bus.Subscribe("boom", func(Event) { calls++ })

	assert.NotPanics(t, func() { bus.Publish("boom", 1) })
	assert.Equal(t, 2, calls)
	assert.Contains(t, buf.String(), "handler failure")
	assert.Contains(t, buf.String(), `"event":"boom"`)
}

func TestDuplicateRegistrations(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	handler := func(Event) { calls++ }

	unsubA := bus.Subscribe("x", handler)
	unsubB := bus.Subscribe("x", handler)
	assert.Equal(t, 2, bus.CountHandlers("x"))

	bus.Publish("x", nil)
	assert.Equal(t, 2, calls)

	unsubA()
	unsubA()
	assert.Equal(t, 1, bus.CountHandlers("x"))

	bus.Publish("x", nil)
	assert.Equal(t, 3, calls)

	unsubB()
	assert.Equal(t, 0, bus.CountHandlers("x"))
}

func TestSubscribeOnce(t *testing.T) {
	bus := NewBus(nil)
	var payloads []interface{}
	bus.SubscribeOnce("ready", func(e Event) { payloads = append(payloads, e.Payload) })

	bus.Publish("ready", 1)
	bus.Publish("ready", 2)
	assert.Equal(t, []interface{}{1}, payloads)
	assert.Equal(t, 0, bus.CountHandlers("ready"))

	unsub := bus.SubscribeOnce("never", func(Event) { t.Fatal("unsubscribed handler called") })
	unsub()
	bus.Publish("never", nil)
}

func TestUnsubscribeAllAndCount(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe("a", func(Event) {})
	bus.Subscribe("a", func(Event) {})
	bus.Subscribe("b", func(Event) {})
	bus.SubscribeAll(func(Event) {})

	assert.Equal(t, 4, bus.CountHandlers())
	assert.Equal(t, 3, bus.CountHandlers("a", "b"))

	bus.UnsubscribeAll("a")
	assert.Equal(t, 0, bus.CountHandlers("a"))
	assert.Equal(t, 2, bus.CountHandlers())

	bus.UnsubscribeAll()
	assert.Equal(t, 0, bus.CountHandlers())
}

func TestHandlerMaySubscribeDuringPublish(t *testing.T) {
	bus := NewBus(nil)
	added := 0
	bus.Subscribe("grow", func(Event) {
		bus.Subscribe("grow", func(Event) { added++ })
	})

	bus.Publish("grow", nil)
	assert.Equal(t, 0, added, "handlers added during publish wait for the next publish")
	bus.Publish("grow", nil)
	assert.Equal(t, 1, added)
}

func TestConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)
	var mu sync.Mutex
	total := 0
	bus.Subscribe("n", func(e Event) {
		mu.Lock()
		total += e.Payload.(int)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish("n", 1)
		}()
	}
	wg.Wait()
	require.Equal(t, 50, total)
}
