package events

import (
	"sync"
	"time"
)

type Topic string

const (
	TopicWorkOrdersChanged Topic = "work_orders.changed"
	TopicUploadsChanged    Topic = "uploads.changed"
	TopicUsersChanged      Topic = "users.changed"
)

type Event struct {
	Topic    Topic
	Source   string
	UploadID int64
	Rows     int
	At       time.Time
}

type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus delivers events synchronously to subscribers in registration order.
// Handlers must not block; a handler that needs to do slow work should hand it
// off to its own goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]subscription)}
}

// Subscribe registers fn for topic and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (b *Bus) Subscribe(topic Topic, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(topic, id) })
	}
}

func (b *Bus) unsubscribe(topic Topic, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}

// Publish fills in Topic and At when unset and calls every current subscriber.
func (b *Bus) Publish(topic Topic, evt Event) {
	evt.Topic = topic
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[topic]))
	for i, s := range b.subs[topic] {
		handlers[i] = s.fn
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}

// Subscribers returns the number of handlers registered for topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
