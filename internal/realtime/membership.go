package realtime

import (
	"context"
	"log/slog"
	"time"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/repositories"
)

// Membership resolves the rooms a connecting user joins.
type Membership struct {
	chats   repositories.ChatRepository
	timeout time.Duration
	logger  *slog.Logger
}

func NewMembership(chats repositories.ChatRepository, timeout time.Duration, logger *slog.Logger) *Membership {
	return &Membership{chats: chats, timeout: timeout, logger: logger.With("component", "membership")}
}

// RoomsFor returns the rooms of userID in ns. A failed chat lookup yields
// zero rooms so the connection still proceeds; failures are counted.
func (m *Membership) RoomsFor(ctx context.Context, ns models.Namespace, userID string) []models.Chatroom {
	switch ns {
	case models.NotifyNamespace:
		return []models.Chatroom{{ID: userID, Participants: []string{userID}}}
	case models.ChatNamespace:
		ctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		rooms, err := m.chats.RoomsForUser(ctx, userID)
		if err != nil {
			observability.IncMembershipFailure()
			m.logger.Warn("room lookup failed, joining zero rooms", "user_id", userID, "error", err)
			return nil
		}
		return rooms
	default:
		return nil
	}
}
