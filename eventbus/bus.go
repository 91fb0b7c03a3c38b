// Package eventbus provides a minimal synchronous publish/subscribe hub
// decoupling state producers from consumers.
package eventbus

import (
	"sync"

	"go.uber.org/zap"
)

// Handler receives the payload passed to Emit.
type Handler func(payload any)

type subscriber struct {
	id uint64
	fn Handler
}

// Bus dispatches events to subscribers synchronously, in registration
// order. It owns no domain state.
type Bus struct {
	log *zap.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscriber
}

// New constructs a bus. A nil logger suppresses panic reports.
func New(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log, subs: make(map[string][]subscriber)}
}

// On registers fn for topic and returns an unsubscribe function.
// Unsubscribe is idempotent and removes only this registration.
func (b *Bus) On(topic string, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s.id == id {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Emit invokes every subscriber of topic with payload. A panic in one
// handler is recovered and logged so the remaining handlers still run.
func (b *Bus) Emit(topic string, payload any) {
	b.mu.Lock()
	list := make([]subscriber, len(b.subs[topic]))
	copy(list, b.subs[topic])
	b.mu.Unlock()

	for _, s := range list {
		b.dispatch(topic, s, payload)
	}
}

func (b *Bus) dispatch(topic string, s subscriber, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panic",
				zap.String("topic", topic),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	s.fn(payload)
}
