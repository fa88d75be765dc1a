package models

import "time"

// NotificationType enumerates what triggered a notification.
type NotificationType string

const (
	SentFriendRequest             NotificationType = "SENT_FRIEND_REQUEST"
	AcceptedFriendRequest         NotificationType = "ACCEPTED_FRIEND_REQUEST"
	LikedYourPost                 NotificationType = "LIKED_YOUR_POST"
	CommentedOnYourPost           NotificationType = "COMMENTED_ON_YOUR_POST"
	LikedYourComment              NotificationType = "LIKED_YOUR_COMMENT"
	RepliedToYourComment          NotificationType = "REPLIED_TO_YOUR_COMMENT"
	RepliedToACommentYouRepliedTo NotificationType = "REPLIED_TO_A_COMMENT_YOU_REPLIED_TO"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case SentFriendRequest, AcceptedFriendRequest, LikedYourPost, CommentedOnYourPost,
		LikedYourComment, RepliedToYourComment, RepliedToACommentYouRepliedTo:
		return true
	}
	return false
}

// RequiresEntity reports whether the type refers to a post or comment.
func (t NotificationType) RequiresEntity() bool {
	return t != SentFriendRequest && t != AcceptedFriendRequest
}

// Notification is a persisted notification.
type Notification struct {
	ID         string           `db:"id" json:"id"`
	ReceiverID string           `db:"receiver_id" json:"-"`
	Sender     UserRef          `db:"sender" json:"sender"`
	Type       NotificationType `db:"type" json:"type"`
	EntityID   *string          `db:"entity_id" json:"entityId,omitempty"`
	Read       bool             `db:"read" json:"read"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
}

// NotificationInfo is the human readable text of a notification.
type NotificationInfo struct {
	Title   string
	Message string
}

var notificationTexts = map[NotificationType]NotificationInfo{
	AcceptedFriendRequest:         {Title: "Friend request accepted!", Message: "has accepted your friend request."},
	SentFriendRequest:             {Title: "New friend request!", Message: "has sent you a friend request."},
	LikedYourComment:              {Title: "New like on comment!", Message: "has liked your comment on a post."},
	LikedYourPost:                 {Title: "New like on post!", Message: "has liked your post."},
	CommentedOnYourPost:           {Title: "New comment on post!", Message: "has commented on your post."},
	RepliedToYourComment:          {Title: "New reply!", Message: "has replied to your comment on a post."},
	RepliedToACommentYouRepliedTo: {Title: "New reply!", Message: "has replied to a comment you commented on a post."},
}

// Info returns the push text for the notification, prefixed with the sender
// name. It returns false for post and comment types without an entity id.
func (n Notification) Info() (NotificationInfo, bool) {
	info, ok := notificationTexts[n.Type]
	if !ok {
		return NotificationInfo{}, false
	}
	if n.Type.RequiresEntity() && (n.EntityID == nil || *n.EntityID == "") {
		return NotificationInfo{}, false
	}
	info.Message = n.Sender.Name + " " + info.Message
	return info, true
}
