package service

import (
	"context"

	"trip-booking-backend/internal/platform/backend"
	"trip-booking-backend/internal/platform/telegram"
)

// BackendClient is the slice of the resource service the group-join flow
// consumes.
type BackendClient interface {
	ListRegistrations(ctx context.Context, filter backend.RegistrationFilter) ([]backend.Registration, error)
	FindTravelerByTelegramID(ctx context.Context, telegramID string) (*backend.Traveler, error)
	ReportJoinOutcome(ctx context.Context, registrationID string, success bool, errMsg string) (*backend.Registration, error)
}

// Transport is the chat-platform surface used to deliver invites and
// settle join requests.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.ReplyMarkup) error
	CreateInviteLink(ctx context.Context, chatID int64, memberLimit int) (string, error)
	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
	DeclineJoinRequest(ctx context.Context, chatID, userID int64) error
}

// Inviter drives a single registration toward group membership.
type Inviter interface {
	AttemptJoin(ctx context.Context, registration *backend.Registration) error
}
