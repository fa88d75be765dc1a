package observability

import (
	"context"
	"log/slog"
)

// Publisher ships lifecycle envelopes to the audit exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

func PublishEvent(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.Publish(ctx, routingKey, message, headers)
	if err != nil {
		IncAMQPPublishError()
		slog.Warn("audit publish failed", "routing_key", routingKey, "error", err)
	}
	return err
}

// PublishWSEvent counts a lifecycle event and ships it to the audit exchange.
func PublishWSEvent(ctx context.Context, evt WSEvent, requestID, traceID string) {
	IncWSEvent(evt.Namespace, evt.Event)
	_ = PublishEvent(ctx, RoutingKey(evt.Namespace), evt.Envelope(), BuildHeaders(requestID, traceID))
}
