package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

var (
	ErrClosed    = errors.New("bus closed")
	ErrQueueFull = errors.New("publish queue full")
)

// Handler consumes events received from the bus.
type Handler func(ctx context.Context, evt models.BroadcastEvent)

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(ctx context.Context, evt models.BroadcastEvent) error
}

// Bus is a cross-instance publish/subscribe channel on one shared topic.
// Delivery is at-most-once and FIFO only per publishing instance.
type Bus interface {
	Publisher
	// Subscribe registers handler for every event on the topic, including the
	// ones this instance publishes. It is called once at boot.
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

// Encode validates and serializes an event for transit.
func Encode(evt models.BroadcastEvent) ([]byte, error) {
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(evt)
}

// Decode parses and validates an event received from the broker.
func Decode(data []byte) (models.BroadcastEvent, error) {
	var evt models.BroadcastEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return models.BroadcastEvent{}, fmt.Errorf("%w: %v", models.ErrInvalidEvent, err)
	}
	if err := evt.Validate(); err != nil {
		return models.BroadcastEvent{}, err
	}
	return evt, nil
}

func receive(ctx context.Context, data []byte, handler Handler, logger *slog.Logger) {
	evt, err := Decode(data)
	if err != nil {
		observability.IncBusDropped("decode")
		logger.Warn("dropping undecodable bus event", "error", err, "size", len(data))
		return
	}
	observability.IncBusReceived(string(evt.Topic))
	handler(ctx, evt)
}
