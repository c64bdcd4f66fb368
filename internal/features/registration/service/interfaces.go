package service

import (
	"context"

	"trip-booking-backend/internal/platform/backend"
	"trip-booking-backend/internal/platform/telegram"
)

// BackendClient is the slice of the resource service the registration
// dialog consumes.
type BackendClient interface {
	GetTrip(ctx context.Context, tripID string) (*backend.Trip, error)
	FindTravelerByTelegramID(ctx context.Context, telegramID string) (*backend.Traveler, error)
	CreateTraveler(ctx context.Context, fields backend.TravelerFields) (*backend.Traveler, error)
	UpdateTraveler(ctx context.Context, travelerID string, fields backend.TravelerFields) (*backend.Traveler, error)
	CreateRegistration(ctx context.Context, fields backend.RegistrationFields, proof *backend.Attachment) (*backend.Registration, error)
	ListRegistrations(ctx context.Context, filter backend.RegistrationFilter) ([]backend.Registration, error)
	GetSettings(ctx context.Context) (*backend.Settings, error)
}

// Transport is the chat-platform surface the dialog needs: prompts out,
// payment proofs in.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.ReplyMarkup) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}
