package memory

import (
	"context"
	"sync"

	"trip-booking-backend/internal/features/registration/models"
)

// Repository keeps sessions in process memory. It is the default store
// when no Redis address is configured; dialogs are simply lost on restart
// and the traveler starts over.
type Repository struct {
	mu       sync.RWMutex
	sessions map[int64]models.Session
}

func New() *Repository {
	return &Repository{sessions: make(map[int64]models.Session)}
}

func (r *Repository) Get(_ context.Context, userID int64) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[userID]
	if !ok {
		return nil, nil
	}
	copied := cloneSession(session)
	return &copied, nil
}

func (r *Repository) Save(_ context.Context, userID int64, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = cloneSession(*session)
	return nil
}

func (r *Repository) Delete(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	return nil
}

// cloneSession copies the session and the trip snapshot hanging off it,
// so callers and the store never alias each other's data.
func cloneSession(session models.Session) models.Session {
	if session.Trip != nil {
		trip := *session.Trip
		if trip.PlaceDetail != nil {
			place := *trip.PlaceDetail
			trip.PlaceDetail = &place
		}
		session.Trip = &trip
	}
	return session
}
