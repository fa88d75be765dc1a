package repositories

import (
	"context"

	"github.com/google/uuid"

	"realtime-service/internal/models"
)

// AppendMessage stores a message, bumps the chatroom activity timestamp and
// resets the read set to the sender, all in one transaction.
func (r *ChatRepo) AppendMessage(ctx context.Context, chatroomID string, sender models.UserRef, content string) (models.ChatroomMessage, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatroomMessage{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE chatrooms SET last_messaged_at = NOW() WHERE id=$1`, chatroomID)
	if err != nil {
		return models.ChatroomMessage{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.ChatroomMessage{}, err
	}
	if affected == 0 {
		err = ErrChatroomNotFound
		return models.ChatroomMessage{}, err
	}

	var msg models.ChatroomMessage
	if err = tx.QueryRowxContext(ctx, `INSERT INTO chatroom_messages (id, chatroom_id, sender_id, sender_name, sender_avatar, content)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, chatroom_id, sender_id AS "sender.id", sender_name AS "sender.name",
            sender_avatar AS "sender.profile_picture_url", content, created_at`,
		uuid.NewString(), chatroomID, sender.ID, sender.Name, sender.ProfilePictureURL, content).
		StructScan(&msg); err != nil {
		return models.ChatroomMessage{}, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM chatroom_reads WHERE chatroom_id=$1`, chatroomID); err != nil {
		return models.ChatroomMessage{}, err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO chatroom_reads (chatroom_id, user_id, read_at) VALUES ($1, $2, NOW())`, chatroomID, sender.ID); err != nil {
		return models.ChatroomMessage{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.ChatroomMessage{}, err
	}
	return msg, nil
}
