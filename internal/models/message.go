package models

import "time"

// SendMessageRequest is the payload of send-message.
type SendMessageRequest struct {
	ChatroomID string `json:"chatroomId"`
	Message    string `json:"message"`
}

// ChatroomRequest is the payload of send-chatroom-read.
type ChatroomRequest struct {
	ChatroomID string `json:"chatroomId"`
}

// TypingRequest is the payload of send-chatroom-typing.
type TypingRequest struct {
	ChatroomID string `json:"chatroomId"`
	Typing     bool   `json:"typing"`
}

// OutgoingMessage is the message body of get-message.
type OutgoingMessage struct {
	ID        string    `json:"id"`
	Sender    UserRef   `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessagePayload is carried by the message topic.
type MessagePayload struct {
	ChatroomID string          `json:"chatroomId"`
	Message    OutgoingMessage `json:"message"`
}

// NewMessagePayload builds the broadcast payload for an appended message.
func NewMessagePayload(msg ChatroomMessage) MessagePayload {
	return MessagePayload{
		ChatroomID: msg.ChatroomID,
		Message: OutgoingMessage{
			ID:        msg.ID,
			Sender:    msg.Sender,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		},
	}
}

// PresencePayload is carried by presence-online and presence-offline, and is
// the element type of online-statuses.
type PresencePayload struct {
	UserID     string `json:"userId"`
	ChatroomID string `json:"chatroomId"`
}

// ReadPayload is carried by the read-receipt topic.
type ReadPayload struct {
	ChatroomID string `json:"chatroomId"`
	UserID     string `json:"userId"`
}

// TypingPayload is carried by the typing topic.
type TypingPayload struct {
	ChatroomID string `json:"chatroomId"`
	UserID     string `json:"userId"`
	Typing     bool   `json:"typing"`
}

// ErrorPayload is sent to the acting connection when an inbound event is rejected.
type ErrorPayload struct {
	Event      string `json:"event"`
	ChatroomID string `json:"chatroomId,omitempty"`
	Code       string `json:"code"`
}
