package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"realtime-service/internal/models"
)

// NATSBus broadcasts on a core NATS subject. The subscription has no queue
// group so every instance receives every event.
type NATSBus struct {
	nc      *nats.Conn
	subject string
	sub     *nats.Subscription
	logger  *slog.Logger
}

func NewNATSBus(url, subject, name string, logger *slog.Logger) (*NATSBus, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info("nats bus connected", "url", nc.ConnectedUrl(), "subject", subject)
	return &NATSBus{nc: nc, subject: subject, logger: logger}, nil
}

func (b *NATSBus) Publish(ctx context.Context, evt models.BroadcastEvent) error {
	data, err := Encode(evt)
	if err != nil {
		return err
	}
	msg := &nats.Msg{Subject: b.subject, Data: data, Header: nats.Header{}}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(msg.Header))
	return b.nc.PublishMsg(msg)
}

func (b *NATSBus) Subscribe(ctx context.Context, handler Handler) error {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		msgCtx := ctx
		if msg.Header != nil {
			msgCtx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier(msg.Header))
		}
		receive(msgCtx, msg.Data, handler, b.logger)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.subject, err)
	}
	b.sub = sub
	return nil
}

func (b *NATSBus) Close() error {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	return b.nc.Drain()
}

// headerCarrier adapts nats.Header to propagation.TextMapCarrier.
type headerCarrier nats.Header

func (c headerCarrier) Get(key string) string { return nats.Header(c).Get(key) }

func (c headerCarrier) Set(key, value string) { nats.Header(c).Set(key, value) }

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
