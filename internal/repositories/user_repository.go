package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository resolves user snapshots.
type UserRepository interface {
	GetUserRef(ctx context.Context, userID string) (models.UserRef, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUserRef returns the id, name and avatar of a user.
func (r *UserRepo) GetUserRef(ctx context.Context, userID string) (models.UserRef, error) {
	var user models.UserRef
	err := r.db.GetContext(ctx, &user, `SELECT id, name, COALESCE(profile_picture_url, '') AS profile_picture_url FROM users WHERE id=$1`, userID)
	if err != nil {
		return models.UserRef{}, notFound(err, ErrUserNotFound)
	}
	return user, nil
}
