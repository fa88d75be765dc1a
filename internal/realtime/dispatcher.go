package realtime

import (
	"context"
	"log/slog"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/ws"
)

// Dispatcher delivers bus events to the local connections of the target room.
// Events this instance published arrive here like any other.
type Dispatcher struct {
	registry *ws.Registry
	logger   *slog.Logger
}

func NewDispatcher(registry *ws.Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger.With("component", "dispatcher")}
}

// Handle is the bus.Handler of this instance.
func (d *Dispatcher) Handle(_ context.Context, evt models.BroadcastEvent) {
	name, ok := evt.Topic.ClientEvent()
	if !ok {
		observability.IncBusDropped("unknown_topic")
		return
	}

	clients := d.registry.InRoom(evt.Namespace, evt.Room)
	if len(clients) == 0 {
		return
	}

	frame, err := models.EncodeFrame(name, evt.Payload)
	if err != nil {
		observability.IncBusDropped("encode")
		d.logger.Error("encode frame", "topic", evt.Topic, "error", err)
		return
	}

	delivered := 0
	for _, c := range clients {
		if c.Deliver(frame) {
			delivered++
		} else {
			d.logger.Warn("frame not delivered, connection closed or slow", "conn_id", c.ID(), "user_id", c.UserID(), "topic", evt.Topic)
		}
	}
	observability.AddDispatchDeliveries(evt.Namespace.Label(), string(evt.Topic), delivered)
}
