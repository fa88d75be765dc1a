package bus

import (
	"context"
	"fmt"
	"log/slog"
)

// Options selects and configures a bus driver.
type Options struct {
	Driver   string
	Topic    string
	AMQPURL  string
	RedisURL string
	NATSURL  string
	Name     string
}

// Open connects the configured driver.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Bus, error) {
	logger = logger.With("component", "bus", "driver", opts.Driver)
	switch opts.Driver {
	case "amqp":
		return NewAMQPBus(opts.AMQPURL, opts.Topic, logger)
	case "redis":
		return NewRedisBus(ctx, opts.RedisURL, opts.Topic, logger)
	case "nats":
		return NewNATSBus(opts.NATSURL, opts.Topic, opts.Name, logger)
	case "memory":
		logger.Warn("in-process bus selected, events will not leave this instance")
		return NewMemoryBus(logger), nil
	default:
		return nil, fmt.Errorf("unknown bus driver %q", opts.Driver)
	}
}
