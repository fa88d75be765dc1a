package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Namespace partitions the realtime transport.
type Namespace string

const (
	ChatNamespace   Namespace = "/chat"
	NotifyNamespace Namespace = "/notify"
)

// Valid reports whether ns is a known namespace.
func (ns Namespace) Valid() bool {
	return ns == ChatNamespace || ns == NotifyNamespace
}

// Label is the namespace without its leading slash, for metrics and logs.
func (ns Namespace) Label() string {
	if len(ns) > 0 && ns[0] == '/' {
		return string(ns[1:])
	}
	return string(ns)
}

// Topic is the kind of a BroadcastEvent.
type Topic string

const (
	TopicMessage             Topic = "message"
	TopicPresenceOnline      Topic = "presence-online"
	TopicPresenceOffline     Topic = "presence-offline"
	TopicReadReceipt         Topic = "read-receipt"
	TopicTyping              Topic = "typing"
	TopicNotificationCreated Topic = "notification-created"
)

// Client to server events.
const (
	EventSendMessage        = "send-message"
	EventSendChatroomRead   = "send-chatroom-read"
	EventSendChatroomTyping = "send-chatroom-typing"
)

// Server to client events.
const (
	EventOnlineStatuses    = "online-statuses"
	EventGetMessage        = "get-message"
	EventBecomeOnline      = "become-online"
	EventBecomeOffline     = "become-offline"
	EventGetChatroomRead   = "get-chatroom-read"
	EventGetChatroomTyping = "get-chatroom-typing"
	EventGetNotification   = "get-notification"
	EventError             = "error"
)

var topicEvents = map[Topic]string{
	TopicMessage:             EventGetMessage,
	TopicPresenceOnline:      EventBecomeOnline,
	TopicPresenceOffline:     EventBecomeOffline,
	TopicReadReceipt:         EventGetChatroomRead,
	TopicTyping:              EventGetChatroomTyping,
	TopicNotificationCreated: EventGetNotification,
}

// ClientEvent returns the server to client event name a topic is delivered under.
func (t Topic) ClientEvent() (string, bool) {
	name, ok := topicEvents[t]
	return name, ok
}

var ErrInvalidEvent = errors.New("invalid broadcast event")

// BroadcastEvent is the unit carried by the cross-instance bus.
type BroadcastEvent struct {
	Namespace Namespace       `json:"namespace"`
	Room      string          `json:"room"`
	Topic     Topic           `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
}

// NewBroadcastEvent marshals payload into an event.
func NewBroadcastEvent(ns Namespace, room string, topic Topic, payload any) (BroadcastEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return BroadcastEvent{}, fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	evt := BroadcastEvent{Namespace: ns, Room: room, Topic: topic, Payload: body}
	return evt, evt.Validate()
}

// Validate checks the event against the namespace and topic vocabularies.
func (e BroadcastEvent) Validate() error {
	if !e.Namespace.Valid() {
		return fmt.Errorf("%w: namespace %q", ErrInvalidEvent, e.Namespace)
	}
	if _, ok := e.Topic.ClientEvent(); !ok {
		return fmt.Errorf("%w: topic %q", ErrInvalidEvent, e.Topic)
	}
	if e.Room == "" {
		return fmt.Errorf("%w: empty room", ErrInvalidEvent)
	}
	return nil
}

// Frame is the websocket wire envelope in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame marshals an outbound frame.
func EncodeFrame(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	default:
		body, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = body
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
