package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

// Queue serializes publishes from this instance through one goroutine, so
// events reach the bus in the order they were enqueued. Publish never blocks
// the caller and failures are logged and counted, not returned.
type Queue struct {
	bus     Publisher
	events  chan models.BroadcastEvent
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewQueue(bus Publisher, size int, timeout time.Duration, logger *slog.Logger) *Queue {
	q := &Queue{
		bus:     bus,
		events:  make(chan models.BroadcastEvent, size),
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Publish enqueues evt. It returns ErrQueueFull or ErrClosed when the event
// was dropped; callers only log these.
func (q *Queue) Publish(_ context.Context, evt models.BroadcastEvent) error {
	if err := evt.Validate(); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		observability.IncBusDropped("closed")
		return ErrClosed
	}
	select {
	case q.events <- evt:
		return nil
	default:
		observability.IncBusDropped("queue_full")
		q.logger.Warn("publish queue full, dropping event", "topic", evt.Topic, "room", evt.Room)
		return ErrQueueFull
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for evt := range q.events {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.bus.Publish(ctx, evt)
		cancel()
		if err != nil {
			observability.IncBusPublishError(string(evt.Topic))
			q.logger.Warn("bus publish failed", "topic", evt.Topic, "namespace", evt.Namespace, "room", evt.Room, "error", err)
			continue
		}
		observability.IncBusPublished(string(evt.Topic))
	}
}

// Close stops accepting events and waits until the pending ones are flushed
// or ctx expires.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
