package opsfeed

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler receives the payload published on a topic. Handlers run on the
// publisher's goroutine; they must stay bounded and fast.
type Handler func(payload any)

type busEntry struct {
	id uint64
	fn Handler
}

// Bus is a synchronous topic/handler fan-out. Handlers for a topic are
// invoked in subscription order; the handler list is snapshotted per publish,
// so handlers that subscribe or cancel mid-delivery never corrupt the sweep
// in flight. A panicking handler is recovered and logged without affecting
// the remaining handlers or the publisher.
type Bus struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[string][]busEntry
}

func NewBus() *Bus {
	return &Bus{handlers: map[string][]busEntry{}}
}

// Subscription identifies one bus registration.
type Subscription struct {
	bus   *Bus
	topic string
	id    uint64
}

// Cancel removes the registration; later publishes on the topic no longer
// reach the handler. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	entries := s.bus.handlers[s.topic]
	for i, e := range entries {
		if e.id == s.id {
			s.bus.handlers[s.topic] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
}

func (b *Bus) Subscribe(topic string, fn Handler) *Subscription {
	if b == nil || fn == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], busEntry{id: b.nextID, fn: fn})
	return &Subscription{bus: b, topic: topic, id: b.nextID}
}

func (b *Bus) Publish(topic string, payload any) {
	if b == nil {
		return
	}
	b.mu.Lock()
	entries := append([]busEntry(nil), b.handlers[topic]...)
	b.mu.Unlock()
	for _, e := range entries {
		invoke(topic, e.fn, payload)
	}
}

func invoke(topic string, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("component", "opsfeed").Str("topic", topic).Interface("panic", r).Msg("bus handler panicked")
		}
	}()
	fn(payload)
}
