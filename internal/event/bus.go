// Package event carries committed catalog events from the unit of work to the
// index synchronizer, in process or through Kafka.
package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/utafrali/catalogsearch/internal/domain"
)

// Handler receives a committed event.
type Handler func(ctx context.Context, env domain.Envelope) error

// Bus is a synchronous in-process publish/subscribe channel. Publish returns
// only after every subscriber has run.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *slog.Logger
}

// NewBus creates a bus without subscribers.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers h. Subscribers run in registration order.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers env to every subscriber. A failing subscriber does not stop
// the others; all failures are joined into the returned error.
func (b *Bus) Publish(ctx context.Context, env domain.Envelope) error {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.DebugContext(ctx, "event published without subscribers",
			slog.String("event_type", env.Event.EventType()),
			slog.Int64("seq", env.Seq),
		)
		return nil
	}

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
