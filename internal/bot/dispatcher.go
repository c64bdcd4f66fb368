package bot

import (
	"context"
	"time"

	"trip-booking-backend/internal/common/logger"
	"trip-booking-backend/internal/platform/telegram"
)

const pollRetryDelay = 3 * time.Second

// Bot long-polls the Bot API and routes each update to the right flow:
// commands and menus here, dialog steps to the registration service,
// join requests to the reconciler.
type Bot struct {
	transport    Transport
	backend      BackendClient
	registration RegistrationDialog
	coordinator  JoinCoordinator
	reconciler   JoinReconciler

	pollTimeout      int
	tripStatusFilter string
}

type Config struct {
	PollTimeout      int
	TripStatusFilter string
}

func New(transport Transport, backendClient BackendClient, registration RegistrationDialog,
	coordinator JoinCoordinator, reconciler JoinReconciler, cfg Config) *Bot {
	return &Bot{
		transport:        transport,
		backend:          backendClient,
		registration:     registration,
		coordinator:      coordinator,
		reconciler:       reconciler,
		pollTimeout:      cfg.PollTimeout,
		tripStatusFilter: cfg.TripStatusFilter,
	}
}

// Run long-polls until the context is cancelled. Poll failures back off
// and retry; they never kill the loop.
func (b *Bot) Run(ctx context.Context) {
	logger.Info().Msg("Starting bot update loop")
	var offset int64

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Bot update loop stopped")
			return
		default:
		}

		updates, err := b.transport.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("Bot update loop stopped")
				return
			}
			logger.Error().Err(err).Msg("Failed to fetch updates")
			select {
			case <-time.After(pollRetryDelay):
			case <-ctx.Done():
			}
			continue
		}

		for i := range updates {
			update := updates[i]
			offset = update.UpdateID + 1
			go b.handleUpdate(ctx, &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Int64("update_id", update.UpdateID).Msg("Update handler panicked")
		}
	}()

	switch {
	case update.ChatJoinRequest != nil:
		request := update.ChatJoinRequest
		if err := b.reconciler.HandleJoinRequest(ctx, request.Chat.ID, request.From.ID, request.Chat.Title); err != nil {
			logger.Error().Err(err).
				Int64("chat_id", request.Chat.ID).
				Int64("user_id", request.From.ID).
				Msg("Failed to handle join request")
		}
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}
