package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"realtime-service/internal/bus"
	"realtime-service/internal/models"
	"realtime-service/internal/push"
	"realtime-service/internal/repositories"
)

// Notifications creates notifications: persist, broadcast to the receiver's
// notification room, then hand off to push. The three steps are not atomic.
type Notifications struct {
	users     repositories.UserRepository
	store     repositories.NotificationRepository
	publisher bus.Publisher
	pusher    *Pusher
	timeout   time.Duration
	logger    *slog.Logger
}

func NewNotifications(users repositories.UserRepository, store repositories.NotificationRepository, publisher bus.Publisher, pusher *Pusher, timeout time.Duration, logger *slog.Logger) *Notifications {
	return &Notifications{
		users:     users,
		store:     store,
		publisher: publisher,
		pusher:    pusher,
		timeout:   timeout,
		logger:    logger.With("component", "notifications"),
	}
}

// Create stores a notification from senderID to receiverID and fans it out.
// It returns repositories.ErrUserNotFound when the sender does not exist.
func (n *Notifications) Create(ctx context.Context, receiverID, senderID string, notificationType models.NotificationType, entityID *string) (models.Notification, error) {
	if receiverID == "" || senderID == "" {
		return models.Notification{}, fmt.Errorf("%w: receiver and sender are required", ErrInvalidPayload)
	}
	if !notificationType.Valid() {
		return models.Notification{}, fmt.Errorf("%w: %q", ErrInvalidNotificationType, notificationType)
	}
	if entityID != nil && *entityID == "" {
		entityID = nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	sender, err := n.users.GetUserRef(storeCtx, senderID)
	if err != nil {
		return models.Notification{}, fmt.Errorf("load sender: %w", err)
	}

	notification, err := n.store.Create(storeCtx, receiverID, sender, notificationType, entityID)
	if err != nil {
		return models.Notification{}, fmt.Errorf("store notification: %w", err)
	}
	notification.ReceiverID = receiverID

	broadcast(ctx, n.publisher, n.logger, models.NotifyNamespace, receiverID, models.TopicNotificationCreated, notification)

	payload := push.Payload{Tag: "notification", Data: notification}
	if info, ok := notification.Info(); ok {
		payload.Title = info.Title
		payload.Body = info.Message
	}
	n.pusher.Notify([]string{receiverID}, payload)

	n.logger.Debug("notification created", "id", notification.ID, "type", notificationType, "receiver_id", receiverID)
	return notification, nil
}

func (n *Notifications) FriendRequestSent(ctx context.Context, receiverID, senderID string) (models.Notification, error) {
	return n.Create(ctx, receiverID, senderID, models.SentFriendRequest, nil)
}

func (n *Notifications) FriendRequestAccepted(ctx context.Context, receiverID, senderID string) (models.Notification, error) {
	return n.Create(ctx, receiverID, senderID, models.AcceptedFriendRequest, nil)
}

func (n *Notifications) PostLiked(ctx context.Context, receiverID, senderID, postID string) (models.Notification, error) {
	return n.Create(ctx, receiverID, senderID, models.LikedYourPost, &postID)
}

func (n *Notifications) PostCommented(ctx context.Context, receiverID, senderID, postID string) (models.Notification, error) {
	return n.Create(ctx, receiverID, senderID, models.CommentedOnYourPost, &postID)
}

func (n *Notifications) CommentLiked(ctx context.Context, receiverID, senderID, postID string) (models.Notification, error) {
	return n.Create(ctx, receiverID, senderID, models.LikedYourComment, &postID)
}

func (n *Notifications) CommentReplied(ctx context.Context, receiverID, senderID, postID string) (models.Notification, error) {
	return n.Create(ctx, receiverID, senderID, models.RepliedToYourComment, &postID)
}

// ThreadReplied notifies someone who replied to the same comment earlier.
func (n *Notifications) ThreadReplied(ctx context.Context, receiverID, senderID, postID string) (models.Notification, error) {
	return n.Create(ctx, receiverID, senderID, models.RepliedToACommentYouRepliedTo, &postID)
}
