package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus(t *testing.T) {
	t.Run("should deliver to subscribers in registration order", func(t *testing.T) {
		bus := NewBus()
		var got []string
		bus.Subscribe(TopicWorkOrdersChanged, func(Event) { got = append(got, "first") })
		bus.Subscribe(TopicWorkOrdersChanged, func(Event) { got = append(got, "second") })

		bus.Publish(TopicWorkOrdersChanged, Event{Rows: 3})

		assert.Equal(t, []string{"first", "second"}, got)
	})

	t.Run("should only deliver to the published topic", func(t *testing.T) {
		bus := NewBus()
		calls := 0
		bus.Subscribe(TopicUploadsChanged, func(Event) { calls++ })

		bus.Publish(TopicWorkOrdersChanged, Event{})

		assert.Equal(t, 0, calls)
	})

	t.Run("should set topic and timestamp on the event", func(t *testing.T) {
		bus := NewBus()
		var got Event
		bus.Subscribe(TopicUploadsChanged, func(e Event) { got = e })

		bus.Publish(TopicUploadsChanged, Event{UploadID: 7})

		assert.Equal(t, TopicUploadsChanged, got.Topic)
		assert.Equal(t, int64(7), got.UploadID)
		assert.False(t, got.At.IsZero())
	})

	t.Run("should stop delivering after unsubscribe", func(t *testing.T) {
		bus := NewBus()
		calls := 0
		unsubscribe := bus.Subscribe(TopicWorkOrdersChanged, func(Event) { calls++ })
		other := bus.Subscribe(TopicWorkOrdersChanged, func(Event) {})

		unsubscribe()
		unsubscribe()
		bus.Publish(TopicWorkOrdersChanged, Event{})

		assert.Equal(t, 0, calls)
		assert.Equal(t, 1, bus.Subscribers(TopicWorkOrdersChanged))
		other()
		assert.Equal(t, 0, bus.Subscribers(TopicWorkOrdersChanged))
	})

	t.Run("should allow a handler to unsubscribe itself", func(t *testing.T) {
		bus := NewBus()
		calls := 0
		var unsubscribe func()
		unsubscribe = bus.Subscribe(TopicWorkOrdersChanged, func(Event) {
			calls++
			unsubscribe()
		})

		bus.Publish(TopicWorkOrdersChanged, Event{})
		bus.Publish(TopicWorkOrdersChanged, Event{})

		assert.Equal(t, 1, calls)
	})

	t.Run("should be safe for concurrent publishers", func(t *testing.T) {
		bus := NewBus()
		var mu sync.Mutex
		calls := 0
		bus.Subscribe(TopicWorkOrdersChanged, func(Event) {
			mu.Lock()
			calls++
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				bus.Publish(TopicWorkOrdersChanged, Event{})
			}()
		}
		wg.Wait()

		assert.Equal(t, 50, calls)
	})
}
