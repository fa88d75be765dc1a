package models

import "time"

// UserRef is the snapshot of a user embedded in messages and notifications.
type UserRef struct {
	ID                string `db:"id" json:"id"`
	Name              string `db:"name" json:"name"`
	ProfilePictureURL string `db:"profile_picture_url" json:"profilePictureUrl,omitempty"`
}

// Chatroom is a chat room with its participant ids.
type Chatroom struct {
	ID           string   `json:"id"`
	Participants []string `json:"participants"`
}

// Others returns the participants of the room except userID.
func (c Chatroom) Others(userID string) []string {
	others := make([]string, 0, len(c.Participants))
	for _, id := range c.Participants {
		if id != userID {
			others = append(others, id)
		}
	}
	return others
}

// Has reports whether userID participates in the room.
func (c Chatroom) Has(userID string) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// ChatroomMessage is an appended chat message.
type ChatroomMessage struct {
	ID         string    `db:"id" json:"id"`
	ChatroomID string    `db:"chatroom_id" json:"chatroomId"`
	Sender     UserRef   `db:"sender" json:"sender"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
