package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/middleware"
	"realtime-service/internal/models"
	"realtime-service/internal/realtime"
	"realtime-service/internal/repositories"
	"realtime-service/internal/telemetry"
)

type notificationCreator interface {
	Create(ctx context.Context, receiverID, senderID string, notificationType models.NotificationType, entityID *string) (models.Notification, error)
}

// NotificationHandler lets other services raise notifications on behalf of
// the authenticated user.
type NotificationHandler struct {
	notifications notificationCreator
	audit         *telemetry.AuditEmitter
}

func NewNotificationHandler(notifications notificationCreator, audit *telemetry.AuditEmitter) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, audit: audit}
}

type createNotificationRequest struct {
	ReceiverID string                  `json:"receiverId" binding:"required"`
	Type       models.NotificationType `json:"type" binding:"required"`
	EntityID   *string                 `json:"entityId"`
}

// CreateNotification handles POST /internal/notifications.
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	senderID := c.GetString(middleware.UserIDKey)

	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	notification, err := h.notifications.Create(c.Request.Context(), req.ReceiverID, senderID, req.Type, req.EntityID)
	switch {
	case err == nil:
	case errors.Is(err, realtime.ErrInvalidNotificationType), errors.Is(err, realtime.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, repositories.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "sender not found"})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create notification"})
		return
	}

	h.emitAudit(c, "INFO", "Notification "+string(notification.Type)+" sent to "+req.ReceiverID)
	c.JSON(http.StatusCreated, notification)
}

func (h *NotificationHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
