package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"realtime-service/internal/models"
	"realtime-service/internal/rabbitmq"
)

// AMQPBus broadcasts through a RabbitMQ fanout exchange. Every instance binds
// its own exclusive, auto-deleted queue, so each one receives every event.
type AMQPBus struct {
	conn     *amqp.Connection
	pub      *amqp.Channel
	sub      *amqp.Channel
	exchange string
	logger   *slog.Logger
	mu       sync.Mutex
}

func NewAMQPBus(url, exchange string, logger *slog.Logger) (*AMQPBus, error) {
	conn, ch, err := rabbitmq.Connect(url, exchange, amqp.ExchangeFanout)
	if err != nil {
		return nil, err
	}
	logger.Info("amqp bus connected", "exchange", exchange)
	return &AMQPBus{conn: conn, pub: ch, exchange: exchange, logger: logger}, nil
}

func (b *AMQPBus) Publish(ctx context.Context, evt models.BroadcastEvent) error {
	data, err := Encode(evt)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pub.PublishWithContext(ctx, b.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Body:         data,
	})
}

func (b *AMQPBus) Subscribe(ctx context.Context, handler Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("bind queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume: %w", err)
	}

	b.mu.Lock()
	b.sub = ch
	b.mu.Unlock()

	go func() {
		for d := range deliveries {
			receive(ctx, d.Body, handler, b.logger)
		}
		b.logger.Info("amqp bus consumer stopped", "queue", q.Name)
	}()
	return nil
}

func (b *AMQPBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub != nil {
		_ = b.sub.Close()
	}
	if b.pub != nil {
		_ = b.pub.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
