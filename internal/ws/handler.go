package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"realtime-service/internal/auth"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/repositories"
)

// Lifecycle runs the connect and disconnect steps of a connection.
type Lifecycle interface {
	Connect(ctx context.Context, c *Client)
	Disconnect(ctx context.Context, c *Client)
}

// EventHandler consumes inbound frames.
type EventHandler interface {
	HandleEvent(ctx context.Context, c *Client, frame models.Frame)
}

// Handler authenticates and upgrades websocket connections for a namespace.
type Handler struct {
	verifier     auth.Verifier
	users        repositories.UserRepository
	lifecycle    Lifecycle
	events       EventHandler
	bufferSize   int
	storeTimeout time.Duration
	logger       *slog.Logger
}

func NewHandler(verifier auth.Verifier, users repositories.UserRepository, lifecycle Lifecycle, events EventHandler, bufferSize int, storeTimeout time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		verifier:     verifier,
		users:        users,
		lifecycle:    lifecycle,
		events:       events,
		bufferSize:   bufferSize,
		storeTimeout: storeTimeout,
		logger:       logger.With("component", "ws"),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Namespace returns the upgrade handler for ns. The token is read from the
// token query parameter or the Authorization header.
func (h *Handler) Namespace(ns models.Namespace) gin.HandlerFunc {
	label := ns.Label()
	return func(c *gin.Context) {
		ctx, span := otel.Tracer("realtime-service/ws").Start(c.Request.Context(), "ws.handshake",
			trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		token := c.Query("token")
		if token == "" {
			token, _ = auth.BearerToken(c.GetHeader("Authorization"))
		}
		userID, err := h.verifier.Verify(ctx, token)
		if err != nil {
			observability.IncWSEvent(label, "ws_rejected")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		user, err := h.loadUser(ctx, userID)
		if errors.Is(err, repositories.ErrUserNotFound) {
			observability.IncWSEvent(label, "ws_rejected")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if err != nil {
			h.logger.Error("load user", "user_id", userID, "error", err)
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Debug("upgrade failed", "error", err)
			return
		}

		traceID := span.SpanContext().TraceID().String()
		requestID := observability.RequestIDFromRequest(c.Request)
		info := ConnInfo{
			ConnID:      newConnID(),
			UserID:      user.ID,
			DeviceID:    observability.DeviceIDFromRequest(c.Request),
			IP:          observability.IPFromRequest(c.Request),
			RequestID:   requestID,
			TraceID:     traceID,
			ConnectedAt: time.Now(),
		}
		client := NewClient(conn, ns, user, info, h.bufferSize)
		go client.WritePump()

		connCtx := context.WithoutCancel(ctx)
		h.lifecycle.Connect(connCtx, client)
		observability.PublishWSEvent(connCtx, wsEvent(client, "ws_connect", ""), requestID, traceID)

		go h.readPump(connCtx, client)
	}
}

func (h *Handler) loadUser(ctx context.Context, userID string) (models.UserRef, error) {
	ctx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()
	return h.users.GetUserRef(ctx, userID)
}

// readPump feeds inbound frames to the event handler until the socket
// fails, then finalizes the connection.
func (h *Handler) readPump(ctx context.Context, c *Client) {
	var reason string
	defer func() {
		h.lifecycle.Disconnect(ctx, c)
		observability.PublishWSEvent(ctx, wsEvent(c, "ws_disconnect", reason), c.Info.RequestID, c.Info.TraceID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			reason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.PublishWSEvent(ctx, wsEvent(c, "ws_error", reason), c.Info.RequestID, c.Info.TraceID)
			}
			return
		}

		var frame models.Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			c.Send(models.EventError, models.ErrorPayload{Event: frame.Event, Code: "invalid_payload"})
			continue
		}
		h.events.HandleEvent(ctx, c, frame)
	}
}

func wsEvent(c *Client, event, reason string) observability.WSEvent {
	return observability.WSEvent{
		Namespace:   c.Namespace.Label(),
		Event:       event,
		ConnID:      c.ID(),
		UserID:      c.UserID(),
		DeviceID:    c.Info.DeviceID,
		IP:          c.Info.IP,
		ConnectedAt: c.Info.ConnectedAt,
		Reason:      reason,
	}
}
