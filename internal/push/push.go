package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Payload is what a device notification shows.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
	Data  any    `json:"data,omitempty"`
}

// Job is one push request for one user, as consumed by the push workers.
type Job struct {
	UserID    string    `json:"userId"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}

// Delivery hands push notifications to the offline delivery pipeline.
type Delivery interface {
	NotifyUsers(ctx context.Context, userIDs []string, payload Payload) error
	Close() error
}

// New returns a Kafka-backed delivery, or a noop one when no brokers are configured.
func New(brokers []string, topic string, logger *slog.Logger) Delivery {
	if len(brokers) == 0 {
		logger.Info("push delivery disabled, using noop", "reason", "no kafka brokers")
		return noopDelivery{logger: logger}
	}
	return NewKafkaDelivery(brokers, topic, logger)
}

// KafkaDelivery writes one Job per user to a Kafka topic keyed by user id.
type KafkaDelivery struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaDelivery(brokers []string, topic string, logger *slog.Logger) *KafkaDelivery {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	logger.Info("push delivery using kafka", "brokers", brokers, "topic", topic)
	return &KafkaDelivery{writer: w, logger: logger}
}

func (d *KafkaDelivery) NotifyUsers(ctx context.Context, userIDs []string, payload Payload) error {
	if len(userIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	msgs := make([]kafka.Message, 0, len(userIDs))
	for _, userID := range userIDs {
		body, err := json.Marshal(Job{UserID: userID, Payload: payload, CreatedAt: now})
		if err != nil {
			return fmt.Errorf("marshal push job: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(userID), Value: body})
	}
	if err := d.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write push jobs: %w", err)
	}
	return nil
}

func (d *KafkaDelivery) Close() error {
	return d.writer.Close()
}

type noopDelivery struct {
	logger *slog.Logger
}

func (d noopDelivery) NotifyUsers(_ context.Context, userIDs []string, payload Payload) error {
	d.logger.Debug("push noop", "users", len(userIDs), "tag", payload.Tag)
	return nil
}

func (noopDelivery) Close() error { return nil }
