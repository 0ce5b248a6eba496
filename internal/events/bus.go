// Package events fans lending lifecycle events out to in-process
// subscribers. The ledger computes events as values; this bus is the only
// place they are delivered, so transports and audits hook in here.
package events

import (
	"log/slog"
	"sync"

	"github.com/example/university-library/internal/ledger"
)

// Handler consumes a single lending event. Handlers must not block; slow
// consumers should hand off to their own goroutine.
type Handler func(event ledger.Event)

// Bus is a minimal synchronous publish/subscribe fanout.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for every subsequently published event.
func (b *Bus) Subscribe(handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish delivers the events to every subscriber in registration order.
// A nil bus drops events, which lets services treat the bus as optional.
func (b *Bus) Publish(events ...ledger.Event) {
	if b == nil || len(events) == 0 {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, event := range events {
		for _, handler := range handlers {
			handler(event)
		}
	}
}

// LogHandler returns a subscriber that records every event on the given
// logger, keyed by its stable event type label.
func LogHandler(logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(event ledger.Event) {
		logger.Info("lending event", "event_type", event.EventType())
	}
}
