package realtime

import (
	"context"
	"log/slog"

	"realtime-service/internal/bus"
	"realtime-service/internal/models"
)

// broadcast builds and enqueues an event. Publish failures never reach the
// caller: delivery is best-effort.
func broadcast(ctx context.Context, pub bus.Publisher, logger *slog.Logger, ns models.Namespace, room string, topic models.Topic, payload any) {
	evt, err := models.NewBroadcastEvent(ns, room, topic, payload)
	if err != nil {
		logger.Error("build broadcast event", "topic", topic, "room", room, "error", err)
		return
	}
	if err := pub.Publish(ctx, evt); err != nil {
		logger.Warn("broadcast dropped", "topic", topic, "room", room, "error", err)
	}
}
