package realtime

import (
	"errors"

	"realtime-service/internal/repositories"
)

var (
	ErrInvalidPayload          = errors.New("invalid payload")
	ErrNotParticipant          = errors.New("user is not a participant of the chatroom")
	ErrUnknownEvent            = errors.New("unknown event")
	ErrUnavailable             = errors.New("store unavailable")
	ErrInvalidNotificationType = errors.New("invalid notification type")
)

// Error codes sent to the acting connection in error frames.
const (
	CodeInvalidPayload = "invalid_payload"
	CodeNotParticipant = "not_participant"
	CodeNotFound       = "not_found"
	CodeUnavailable    = "unavailable"
	CodeUnknownEvent   = "unknown_event"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotParticipant):
		return CodeNotParticipant
	case errors.Is(err, repositories.ErrChatroomNotFound), errors.Is(err, repositories.ErrUserNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrInvalidNotificationType):
		return CodeInvalidPayload
	case errors.Is(err, ErrUnknownEvent):
		return CodeUnknownEvent
	default:
		return CodeUnavailable
	}
}
