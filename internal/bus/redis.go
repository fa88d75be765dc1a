package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"realtime-service/internal/models"
)

// RedisBus broadcasts through Redis pub/sub on a single channel.
type RedisBus struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	logger  *slog.Logger
}

func NewRedisBus(ctx context.Context, url, channel string, logger *slog.Logger) (*RedisBus, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis bus connected", "addr", opt.Addr, "channel", channel)
	return &RedisBus{client: client, channel: channel, logger: logger}, nil
}

func (b *RedisBus) Publish(ctx context.Context, evt models.BroadcastEvent) error {
	data, err := Encode(evt)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, handler Handler) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.pubsub = pubsub

	go func() {
		for msg := range pubsub.Channel() {
			receive(ctx, []byte(msg.Payload), handler, b.logger)
		}
		b.logger.Info("redis bus subscription stopped", "channel", b.channel)
	}()
	return nil
}

func (b *RedisBus) Close() error {
	if b.pubsub != nil {
		_ = b.pubsub.Close()
	}
	return b.client.Close()
}
