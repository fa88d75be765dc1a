package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"realtime-service/internal/bus"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/push"
	"realtime-service/internal/repositories"
	"realtime-service/internal/ws"
)

const maxMessageLength = 4096

// Ingest validates inbound chat events, persists their side effects and
// broadcasts the result. A rejected event publishes nothing.
type Ingest struct {
	chats     repositories.ChatRepository
	publisher bus.Publisher
	pusher    *Pusher
	timeout   time.Duration
	logger    *slog.Logger
}

func NewIngest(chats repositories.ChatRepository, publisher bus.Publisher, pusher *Pusher, timeout time.Duration, logger *slog.Logger) *Ingest {
	return &Ingest{
		chats:     chats,
		publisher: publisher,
		pusher:    pusher,
		timeout:   timeout,
		logger:    logger.With("component", "ingest"),
	}
}

// HandleEvent routes one inbound frame. Rejections are answered with an
// error frame to c only.
func (i *Ingest) HandleEvent(ctx context.Context, c *ws.Client, frame models.Frame) {
	if c.Namespace != models.ChatNamespace {
		i.logger.Debug("ignoring inbound event", "namespace", c.Namespace, "event", frame.Event)
		return
	}

	var (
		chatroomID string
		err        error
	)
	switch frame.Event {
	case models.EventSendMessage:
		var req models.SendMessageRequest
		if err = decode(frame.Data, &req); err == nil {
			chatroomID = req.ChatroomID
			err = i.SendMessage(ctx, c, req)
		}
	case models.EventSendChatroomRead:
		var req models.ChatroomRequest
		if err = decode(frame.Data, &req); err == nil {
			chatroomID = req.ChatroomID
			err = i.MarkRead(ctx, c, req.ChatroomID)
		}
	case models.EventSendChatroomTyping:
		var req models.TypingRequest
		if err = decode(frame.Data, &req); err == nil {
			chatroomID = req.ChatroomID
			err = i.Typing(ctx, c, req.ChatroomID, req.Typing)
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event)
	}
	if err == nil {
		return
	}

	code := errorCode(err)
	observability.IncIngestRejection(frame.Event, code)
	i.logger.Info("inbound event rejected", "event", frame.Event, "user_id", c.UserID(), "chatroom_id", chatroomID, "code", code, "error", err)
	c.Send(models.EventError, models.ErrorPayload{Event: frame.Event, ChatroomID: chatroomID, Code: code})
}

// SendMessage appends a message and broadcasts it to the chatroom.
func (i *Ingest) SendMessage(ctx context.Context, c *ws.Client, req models.SendMessageRequest) error {
	if req.ChatroomID == "" || strings.TrimSpace(req.Message) == "" {
		return fmt.Errorf("%w: chatroomId and message are required", ErrInvalidPayload)
	}
	if len(req.Message) > maxMessageLength {
		return fmt.Errorf("%w: message longer than %d bytes", ErrInvalidPayload, maxMessageLength)
	}

	participants, err := i.authorize(ctx, req.ChatroomID, c.UserID())
	if err != nil {
		return err
	}

	storeCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	msg, err := i.chats.AppendMessage(storeCtx, req.ChatroomID, c.User, req.Message)
	if err != nil {
		return storeError("append message", err)
	}

	i.pusher.Notify(others(participants, c.UserID()), push.Payload{
		Title: c.User.Name,
		Body:  msg.Content,
		Tag:   "message",
		Data:  map[string]string{"chatroomId": msg.ChatroomID, "messageId": msg.ID},
	})
	broadcast(ctx, i.publisher, i.logger, models.ChatNamespace, req.ChatroomID, models.TopicMessage, models.NewMessagePayload(msg))
	return nil
}

// MarkRead records that the user has seen the chatroom and broadcasts the receipt.
func (i *Ingest) MarkRead(ctx context.Context, c *ws.Client, chatroomID string) error {
	if chatroomID == "" {
		return fmt.Errorf("%w: chatroomId is required", ErrInvalidPayload)
	}
	if _, err := i.authorize(ctx, chatroomID, c.UserID()); err != nil {
		return err
	}

	storeCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	if err := i.chats.SetReadMarker(storeCtx, chatroomID, c.UserID()); err != nil {
		return storeError("set read marker", err)
	}

	broadcast(ctx, i.publisher, i.logger, models.ChatNamespace, chatroomID, models.TopicReadReceipt,
		models.ReadPayload{ChatroomID: chatroomID, UserID: c.UserID()})
	return nil
}

// Typing broadcasts a typing state change. Nothing is persisted.
func (i *Ingest) Typing(ctx context.Context, c *ws.Client, chatroomID string, typing bool) error {
	if chatroomID == "" {
		return fmt.Errorf("%w: chatroomId is required", ErrInvalidPayload)
	}
	if _, err := i.authorize(ctx, chatroomID, c.UserID()); err != nil {
		return err
	}

	broadcast(ctx, i.publisher, i.logger, models.ChatNamespace, chatroomID, models.TopicTyping,
		models.TypingPayload{ChatroomID: chatroomID, UserID: c.UserID(), Typing: typing})
	return nil
}

// authorize loads the chatroom participants and checks userID is one of them.
func (i *Ingest) authorize(ctx context.Context, chatroomID, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	participants, err := i.chats.ParticipantsOf(ctx, chatroomID)
	if err != nil {
		return nil, storeError("load participants", err)
	}
	if !(models.Chatroom{ID: chatroomID, Participants: participants}).Has(userID) {
		return nil, ErrNotParticipant
	}
	return participants, nil
}

func storeError(op string, err error) error {
	if errors.Is(err, repositories.ErrChatroomNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

func others(participants []string, userID string) []string {
	return models.Chatroom{Participants: participants}.Others(userID)
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
