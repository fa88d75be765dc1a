package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

var ErrChatroomNotFound = errors.New("chatroom not found")

// ChatRepository abstracts chatroom persistence.
type ChatRepository interface {
	RoomsForUser(ctx context.Context, userID string) ([]models.Chatroom, error)
	ParticipantsOf(ctx context.Context, chatroomID string) ([]string, error)
	AppendMessage(ctx context.Context, chatroomID string, sender models.UserRef, content string) (models.ChatroomMessage, error)
	SetReadMarker(ctx context.Context, chatroomID string, userID string) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

type participantRow struct {
	ChatroomID string `db:"chatroom_id"`
	UserID     string `db:"user_id"`
}

// RoomsForUser returns every chatroom the user participates in, with all participants.
func (r *ChatRepo) RoomsForUser(ctx context.Context, userID string) ([]models.Chatroom, error) {
	query := `SELECT p.chatroom_id, p.user_id FROM chatroom_participants p
        WHERE p.chatroom_id IN (SELECT chatroom_id FROM chatroom_participants WHERE user_id=$1)
        ORDER BY p.chatroom_id, p.user_id`
	var rows []participantRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	var rooms []models.Chatroom
	for _, row := range rows {
		if n := len(rooms); n == 0 || rooms[n-1].ID != row.ChatroomID {
			rooms = append(rooms, models.Chatroom{ID: row.ChatroomID})
		}
		last := &rooms[len(rooms)-1]
		last.Participants = append(last.Participants, row.UserID)
	}
	return rooms, nil
}

// ParticipantsOf returns the participant ids of a chatroom.
func (r *ChatRepo) ParticipantsOf(ctx context.Context, chatroomID string) ([]string, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chatrooms WHERE id=$1)`, chatroomID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrChatroomNotFound
	}

	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM chatroom_participants WHERE chatroom_id=$1 ORDER BY user_id`, chatroomID)
	return ids, err
}

// SetReadMarker adds the user to the chatroom's read set.
func (r *ChatRepo) SetReadMarker(ctx context.Context, chatroomID string, userID string) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO chatroom_reads (chatroom_id, user_id, read_at)
        SELECT id, $2, NOW() FROM chatrooms WHERE id=$1
        ON CONFLICT (chatroom_id, user_id) DO UPDATE SET read_at = EXCLUDED.read_at`, chatroomID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrChatroomNotFound
	}
	return nil
}

func notFound(err error, target error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return target
	}
	return err
}
