package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"realtime-service/internal/observability"
	"realtime-service/internal/push"
)

// Pusher runs push delegations as detached background tasks. A failure is
// logged and counted, never returned to the triggering operation.
type Pusher struct {
	delivery push.Delivery
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewPusher(delivery push.Delivery, timeout time.Duration, logger *slog.Logger) *Pusher {
	return &Pusher{delivery: delivery, timeout: timeout, logger: logger.With("component", "push")}
}

// Notify starts a push for userIDs and returns immediately. After Close it
// drops the push.
func (p *Pusher) Notify(userIDs []string, payload push.Payload) {
	if len(userIDs) == 0 {
		return
	}
	ids := append([]string(nil), userIDs...)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		observability.IncPushFailure()
		p.logger.Warn("push dropped after shutdown", "users", len(ids), "tag", payload.Tag)
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.delivery.NotifyUsers(ctx, ids, payload); err != nil {
			observability.IncPushFailure()
			p.logger.Warn("push delivery failed", "users", len(ids), "tag", payload.Tag, "error", err)
		}
	}()
}

// Close stops accepting pushes and blocks until in-flight ones finish or ctx
// expires.
func (p *Pusher) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
