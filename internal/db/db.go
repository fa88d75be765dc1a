package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the Postgres pool.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Migrate applies the schema. Statements are idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	slog.Info("database migrations applied", "count", len(migrations))
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        profile_picture_url TEXT
    );`,
	`CREATE TABLE IF NOT EXISTS chatrooms (
        id TEXT PRIMARY KEY,
        last_messaged_at TIMESTAMPTZ,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE TABLE IF NOT EXISTS chatroom_participants (
        chatroom_id TEXT NOT NULL REFERENCES chatrooms(id) ON DELETE CASCADE,
        user_id TEXT NOT NULL,
        PRIMARY KEY(chatroom_id, user_id)
    );`,
	`CREATE INDEX IF NOT EXISTS chatroom_participants_user_idx ON chatroom_participants(user_id);`,
	`CREATE TABLE IF NOT EXISTS chatroom_messages (
        id TEXT PRIMARY KEY,
        chatroom_id TEXT NOT NULL REFERENCES chatrooms(id) ON DELETE CASCADE,
        sender_id TEXT NOT NULL,
        sender_name TEXT NOT NULL,
        sender_avatar TEXT NOT NULL DEFAULT '',
        content TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE INDEX IF NOT EXISTS chatroom_messages_room_created_idx ON chatroom_messages(chatroom_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS chatroom_reads (
        chatroom_id TEXT NOT NULL REFERENCES chatrooms(id) ON DELETE CASCADE,
        user_id TEXT NOT NULL,
        read_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY(chatroom_id, user_id)
    );`,
	`CREATE TABLE IF NOT EXISTS notifications (
        id TEXT PRIMARY KEY,
        receiver_id TEXT NOT NULL,
        sender_id TEXT NOT NULL,
        sender_name TEXT NOT NULL,
        sender_avatar TEXT NOT NULL DEFAULT '',
        type TEXT NOT NULL,
        entity_id TEXT,
        read BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE INDEX IF NOT EXISTS notifications_receiver_created_idx ON notifications(receiver_id, created_at DESC);`,
}
