package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector gathers delivered events for assertions.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func TestSubscribeSpecificTypes(t *testing.T) {
	bus := NewBus(BusConfig{})
	defer bus.Close()

	var c collector
	sub := bus.Subscribe([]Type{TypePut, TypeDel}, c.handle)
	require.NotNil(t, sub)

	bus.Publish(New(TypePut, "k", "v", "o"))
	bus.Publish(New(TypeGranted, "k", "v", "o")) // not subscribed
	bus.Publish(New(TypeDel, "k", nil, "o"))

	require.Eventually(t, func() bool { return c.len() == 2 }, time.Second, time.Millisecond)
	events := c.snapshot()
	assert.Equal(t, TypePut, events[0].Type)
	assert.Equal(t, TypeDel, events[1].Type)
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus(BusConfig{})
	defer bus.Close()

	var c collector
	bus.SubscribeAll(c.handle)

	for _, typ := range []Type{TypePut, TypeDel, TypeGranted, TypeHandover, TypeReleased, TypeRevoked, TypePurged} {
		bus.Publish(New(typ, "k", nil, "o"))
	}

	require.Eventually(t, func() bool { return c.len() == 7 }, time.Second, time.Millisecond)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(BusConfig{})
	defer bus.Close()

	var c collector
	sub := bus.SubscribeAll(c.handle)

	bus.Publish(New(TypePut, "k", "v", "o"))
	require.Eventually(t, func() bool { return c.len() == 1 }, time.Second, time.Millisecond)

	sub.Unsubscribe()
	bus.Publish(New(TypePut, "k", "v", "o"))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, c.len())

	// Double unsubscribe is safe.
	sub.Unsubscribe()
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	var dropped sync.WaitGroup
	dropped.Add(1)

	bus := NewBus(BusConfig{
		BufferSize: 1,
		OnDrop: func(evt Event, subscriberID string) {
			dropped.Done()
		},
	})
	defer bus.Close()

	block := make(chan struct{})
	bus.SubscribeAll(func(evt Event) {
		<-block
	})

	// First event occupies the handler, second fills the buffer, third
	// must be dropped without blocking Publish.
	for i := 0; i < 3; i++ {
		bus.Publish(New(TypePut, "k", i, "o"))
	}
	dropped.Wait()
	close(block)
}

func TestPublishAfterClose(t *testing.T) {
	bus := NewBus(BusConfig{})

	var c collector
	bus.SubscribeAll(c.handle)
	require.NoError(t, bus.Close())

	bus.Publish(New(TypePut, "k", "v", "o"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, c.len())

	// Subscribing after close returns nil.
	assert.Nil(t, bus.SubscribeAll(c.handle))

	// Double close is safe.
	require.NoError(t, bus.Close())
}

func TestMultipleSubscribersFanOut(t *testing.T) {
	bus := NewBus(BusConfig{})
	defer bus.Close()

	var a, b collector
	bus.Subscribe([]Type{TypeHandover}, a.handle)
	bus.SubscribeAll(b.handle)

	bus.Publish(New(TypeHandover, "leader", "v", "o"))

	require.Eventually(t, func() bool {
		return a.len() == 1 && b.len() == 1
	}, time.Second, time.Millisecond)
}
