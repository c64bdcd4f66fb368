package bot

import (
	"context"

	"trip-booking-backend/internal/platform/backend"
	"trip-booking-backend/internal/platform/telegram"
)

// Transport is the Bot API surface the dispatcher drives.
type Transport interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.ReplyMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error
}

// BackendClient is the slice of the resource service the command handlers
// consume directly.
type BackendClient interface {
	ListTrips(ctx context.Context, status string) ([]backend.Trip, error)
	GetRegistration(ctx context.Context, registrationID string) (*backend.Registration, error)
	FindTravelerByTelegramID(ctx context.Context, telegramID string) (*backend.Traveler, error)
	ListRegistrations(ctx context.Context, filter backend.RegistrationFilter) ([]backend.Registration, error)
	LinkTripGroup(ctx context.Context, tripID string, chatID int64, inviteLink string) (*backend.Trip, error)
}

// RegistrationDialog is the conversational registration flow.
type RegistrationDialog interface {
	StartForTrip(ctx context.Context, chatID, userID int64, from *telegram.User, tripID string) error
	HandleMessage(ctx context.Context, userID int64, msg *telegram.Message) (bool, error)
	Cancel(ctx context.Context, userID int64) (bool, error)
	Reset(ctx context.Context, userID int64) error
}

// JoinCoordinator delivers group invites for confirmed registrations.
type JoinCoordinator interface {
	AttemptJoin(ctx context.Context, registration *backend.Registration) error
}

// JoinReconciler settles inbound group join requests.
type JoinReconciler interface {
	HandleJoinRequest(ctx context.Context, chatID, userID int64, groupTitle string) error
}
