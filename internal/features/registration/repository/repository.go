package repository

import (
	"context"

	"trip-booking-backend/internal/features/registration/models"
)

// SessionRepository stores in-progress registration dialogs keyed by the
// traveler's Telegram user id. Get returns (nil, nil) when no session
// exists.
type SessionRepository interface {
	Get(ctx context.Context, userID int64) (*models.Session, error)
	Save(ctx context.Context, userID int64, session *models.Session) error
	Delete(ctx context.Context, userID int64) error
}
