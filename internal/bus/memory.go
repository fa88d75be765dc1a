package bus

import (
	"context"
	"log/slog"
	"sync"

	"realtime-service/internal/models"
)

// MemoryBus fans events out to every subscriber in the process. Events are
// serialized on publish so subscribers see the same bytes a broker would carry.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers []Handler
	closed   bool
	logger   *slog.Logger
}

func NewMemoryBus(logger *slog.Logger) *MemoryBus {
	return &MemoryBus{logger: logger}
}

func (b *MemoryBus) Publish(ctx context.Context, evt models.BroadcastEvent) error {
	data, err := Encode(evt)
	if err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		receive(ctx, data, handler, b.logger)
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.handlers = append(b.handlers, handler)
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = nil
	return nil
}
