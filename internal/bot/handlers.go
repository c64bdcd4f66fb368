package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	apperrors "trip-booking-backend/internal/common/errors"
	"trip-booking-backend/internal/common/logger"
	"trip-booking-backend/internal/platform/backend"
	"trip-booking-backend/internal/platform/telegram"
)

const startTripPreviewLimit = 3

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil {
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch command(text) {
	case "/start":
		b.handleStart(ctx, msg)
		return
	case "/cancel":
		b.handleCancel(ctx, msg)
		return
	case "/link_trip":
		b.handleLinkTrip(ctx, msg)
		return
	}

	handled, err := b.registration.HandleMessage(ctx, msg.From.ID, msg)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Dialog step failed")
		return
	}
	if handled || !isPrivate(msg.Chat) {
		return
	}
	b.send(ctx, msg.Chat.ID, msgUnknownCommand, mainMenu())
}

func (b *Bot) handleStart(ctx context.Context, msg *telegram.Message) {
	if !isPrivate(msg.Chat) {
		return
	}
	if err := b.registration.Reset(ctx, msg.From.ID); err != nil {
		logger.Warn().Err(err).Int64("user_id", msg.From.ID).Msg("Cannot reset dialog")
	}

	greeting := fmt.Sprintf(msgGreetingFmt, html.EscapeString(msg.From.FullName()))
	b.send(ctx, msg.Chat.ID, greeting+"\n\n"+msgMenuHint, mainMenu())

	// Best effort trip preview; the menu works without it.
	trips, err := b.backend.ListTrips(ctx, b.tripStatusFilter)
	if err != nil {
		logger.Warn().Err(err).Msg("Cannot load trips for greeting")
		return
	}
	if len(trips) == 0 {
		return
	}
	if len(trips) > startTripPreviewLimit {
		trips = trips[:startTripPreviewLimit]
	}
	cards := make([]string, 0, len(trips))
	for i := range trips {
		cards = append(cards, FormatTripSummary(&trips[i]))
	}
	b.send(ctx, msg.Chat.ID, strings.Join(cards, "\n\n"), nil)
}

func (b *Bot) handleCancel(ctx context.Context, msg *telegram.Message) {
	// A dialog can only be cancelled from the chat it runs in; /cancel in
	// a group must not kill a private dialog.
	if !isPrivate(msg.Chat) {
		return
	}
	existed, err := b.registration.Cancel(ctx, msg.From.ID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Cannot cancel dialog")
		return
	}
	if !existed {
		b.send(ctx, msg.Chat.ID, msgMenuHint, mainMenu())
	}
}

// handleLinkTrip binds the current group chat to a trip. Operator-facing:
// backend validation errors are shown verbatim.
func (b *Bot) handleLinkTrip(ctx context.Context, msg *telegram.Message) {
	if isPrivate(msg.Chat) {
		b.send(ctx, msg.Chat.ID, msgLinkTripGroupOnly, nil)
		return
	}

	fields := strings.Fields(msg.Text)
	if len(fields) < 2 || len(fields) > 3 {
		b.send(ctx, msg.Chat.ID, msgLinkTripUsage, nil)
		return
	}
	tripID := fields[1]
	inviteLink := ""
	if len(fields) == 3 {
		inviteLink = fields[2]
	}

	trip, err := b.backend.LinkTripGroup(ctx, tripID, msg.Chat.ID, inviteLink)
	if err != nil {
		reason := "backend unavailable"
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			reason = apiErr.DetailString()
		}
		logger.Error().Err(err).Str("trip_id", tripID).Msg("Failed to link trip group")
		b.send(ctx, msg.Chat.ID, fmt.Sprintf(msgLinkTripFailedFmt, html.EscapeString(reason)), nil)
		return
	}

	logger.Info().Str("trip_id", trip.ID).Int64("chat_id", msg.Chat.ID).Msg("Trip group linked")
	b.send(ctx, msg.Chat.ID, fmt.Sprintf(msgLinkTripDoneFmt, html.EscapeString(trip.Title)), nil)
}

func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if err := b.transport.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		logger.Warn().Err(err).Str("callback_id", cb.ID).Msg("Cannot answer callback query")
	}

	chatID := cb.From.ID
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
	}

	switch {
	case cb.Data == cbMenuBack:
		b.send(ctx, chatID, msgMenuHint, mainMenu())
	case cb.Data == cbMenuRegister:
		b.showTrips(ctx, chatID)
	case cb.Data == cbMenuRegistrations:
		b.showRegistrations(ctx, chatID, cb.From.ID)
	case strings.HasPrefix(cb.Data, cbTripPrefix):
		tripID := strings.TrimPrefix(cb.Data, cbTripPrefix)
		if err := b.registration.StartForTrip(ctx, chatID, cb.From.ID, &cb.From, tripID); err != nil {
			logger.Error().Err(err).Str("trip_id", tripID).Msg("Cannot start registration")
		}
	case strings.HasPrefix(cb.Data, cbJoinPrefix):
		b.handleJoinRequest(ctx, chatID, &cb.From, strings.TrimPrefix(cb.Data, cbJoinPrefix))
	default:
		logger.Warn().Str("data", cb.Data).Msg("Unknown callback data")
	}
}

func (b *Bot) showTrips(ctx context.Context, chatID int64) {
	trips, err := b.backend.ListTrips(ctx, b.tripStatusFilter)
	if err != nil {
		logger.Error().Err(err).Msg("Cannot list trips")
		return
	}
	if len(trips) == 0 {
		b.send(ctx, chatID, msgNoTrips, mainMenu())
		return
	}
	b.send(ctx, chatID, msgPickTrip, tripsKeyboard(trips))
}

func (b *Bot) showRegistrations(ctx context.Context, chatID, userID int64) {
	traveler, err := b.backend.FindTravelerByTelegramID(ctx, strconv.FormatInt(userID, 10))
	if err != nil {
		logger.Error().Err(err).Msg("Cannot look up traveler")
		return
	}
	if traveler == nil {
		b.send(ctx, chatID, msgNoRegistrations, mainMenu())
		return
	}

	registrations, err := b.backend.ListRegistrations(ctx, backend.RegistrationFilter{TravelerID: traveler.ID})
	if err != nil {
		logger.Error().Err(err).Msg("Cannot list registrations")
		return
	}
	if len(registrations) == 0 {
		b.send(ctx, chatID, msgNoRegistrations, mainMenu())
		return
	}

	lines := make([]string, 0, len(registrations)+1)
	lines = append(lines, msgYourRegistrations)
	var inviteRows [][]telegram.InlineKeyboardButton
	for _, registration := range registrations {
		title := registration.Trip
		if registration.TripDetail != nil {
			title = registration.TripDetail.Title
		}
		lines = append(lines, fmt.Sprintf(registrationStatusFmt,
			html.EscapeString(title), registration.Status, registration.PaymentStatus))

		if inviteReady(&registration) {
			inviteRows = append(inviteRows, []telegram.InlineKeyboardButton{{
				Text:         fmt.Sprintf(btnGetInviteFmt, title),
				CallbackData: cbJoinPrefix + registration.ID,
			}})
		}
	}

	markup := mainMenu()
	markup.InlineKeyboard = append(inviteRows, markup.InlineKeyboard...)
	b.send(ctx, chatID, strings.Join(lines, "\n"), markup)
}

// handleJoinRequest is the manual "get me into the group" path. It
// re-validates the registration so a stale button cannot leak an invite.
func (b *Bot) handleJoinRequest(ctx context.Context, chatID int64, from *telegram.User, registrationID string) {
	registration, err := b.backend.GetRegistration(ctx, registrationID)
	if err != nil {
		logger.Error().Err(err).Str("registration_id", registrationID).Msg("Cannot load registration")
		b.send(ctx, chatID, msgJoinFailed, nil)
		return
	}

	if registration.TravelerDetail == nil ||
		registration.TravelerDetail.TelegramID != strconv.FormatInt(from.ID, 10) {
		logger.Warn().
			Str("registration_id", registrationID).
			Int64("user_id", from.ID).
			Msg("Join request for someone else's registration")
		return
	}
	if registration.Status != backend.StatusConfirmed || registration.PaymentStatus != backend.PaymentConfirmed {
		b.send(ctx, chatID, msgJoinNotReady, nil)
		return
	}

	if err := b.coordinator.AttemptJoin(ctx, registration); err != nil {
		text := msgJoinFailed
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.IsPermanent() {
			text = appErr.Message
		}
		b.send(ctx, chatID, text, nil)
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup *telegram.ReplyMarkup) {
	if err := b.transport.SendMessage(ctx, chatID, text, markup); err != nil {
		logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Cannot send message")
	}
}

// inviteReady reports whether the registration can ask for a group invite
// right now: confirmed, paid, not yet in the group, and the trip actually
// has a group to join.
func inviteReady(registration *backend.Registration) bool {
	if registration.Status != backend.StatusConfirmed ||
		registration.PaymentStatus != backend.PaymentConfirmed ||
		registration.GroupJoinedAt != nil {
		return false
	}
	trip := registration.TripDetail
	if trip == nil {
		return false
	}
	return trip.GroupChatID != "" || trip.GroupInviteLink != ""
}

func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	// Commands in groups arrive as /cmd@BotName.
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return cmd
}

func isPrivate(chat telegram.Chat) bool {
	return chat.Type == "private"
}
