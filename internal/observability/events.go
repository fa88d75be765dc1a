package observability

import "time"

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// WSEvent describes a websocket lifecycle transition for the audit stream.
type WSEvent struct {
	Namespace   string
	Event       string
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	ConnectedAt time.Time
	Reason      string
}

// Envelope renders the event in the ws_events envelope layout.
func (e WSEvent) Envelope() EventEnvelope {
	var durationMS int64
	if !e.ConnectedAt.IsZero() && e.Event != "ws_connect" {
		durationMS = time.Since(e.ConnectedAt).Milliseconds()
	}
	return EventEnvelope{
		EventType: "ws_events",
		EventName: e.Event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"namespace":   e.Namespace,
				"event":       e.Event,
				"conn_id":     e.ConnID,
				"duration_ms": durationMS,
				"reason":      e.Reason,
			},
			"identity": map[string]interface{}{
				"user_id":   e.UserID,
				"device_id": e.DeviceID,
				"ip":        e.IP,
			},
		},
	}
}

// RoutingKey is the AMQP routing key for a namespace's lifecycle events.
func RoutingKey(namespace string) string {
	return "ws_events." + namespace
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
