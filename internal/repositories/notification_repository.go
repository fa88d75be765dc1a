package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

// NotificationRepository persists notifications.
type NotificationRepository interface {
	Create(ctx context.Context, receiverID string, sender models.UserRef, notificationType models.NotificationType, entityID *string) (models.Notification, error)
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create stores an unread notification.
func (r *NotificationRepo) Create(ctx context.Context, receiverID string, sender models.UserRef, notificationType models.NotificationType, entityID *string) (models.Notification, error) {
	var n models.Notification
	err := r.db.QueryRowxContext(ctx, `INSERT INTO notifications (id, receiver_id, sender_id, sender_name, sender_avatar, type, entity_id, read)
        VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
        RETURNING id, receiver_id, sender_id AS "sender.id", sender_name AS "sender.name",
            sender_avatar AS "sender.profile_picture_url", type, entity_id, read, created_at`,
		uuid.NewString(), receiverID, sender.ID, sender.Name, sender.ProfilePictureURL, string(notificationType), entityID).
		StructScan(&n)
	return n, err
}
