package service

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	apperrors "trip-booking-backend/internal/common/errors"
	"trip-booking-backend/internal/common/logger"
	"trip-booking-backend/internal/platform/backend"
	"trip-booking-backend/internal/platform/telegram"
)

// Coordinator offers a confirmed traveler exactly one valid path into the
// trip's group and reports the outcome to the resource service.
type Coordinator struct {
	backend   BackendClient
	transport Transport
	pending   *PendingJoins
	now       func() time.Time
}

func NewCoordinator(backendClient BackendClient, transport Transport, pending *PendingJoins) *Coordinator {
	return &Coordinator{
		backend:   backendClient,
		transport: transport,
		pending:   pending,
		now:       time.Now,
	}
}

// AttemptJoin delivers a group invite for a confirmed registration.
// A nil return means the invite was delivered, not that the traveler has
// joined; the reconciler records the actual join. Permanent failures are
// reported to the resource service before returning and come back as
// *apperrors.AppError with a traveler-safe message.
func (c *Coordinator) AttemptJoin(ctx context.Context, registration *backend.Registration) error {
	trip := registration.TripDetail
	if trip == nil {
		trip = &backend.Trip{}
	}
	traveler := registration.TravelerDetail
	if traveler == nil {
		traveler = &backend.Traveler{}
	}

	if strings.TrimSpace(traveler.TelegramID) == "" {
		return c.reportPermanent(ctx, registration.ID,
			apperrors.New(apperrors.ErrCodeMissingIdentity, MsgTravelerMissingTelegramID))
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(traveler.TelegramID), 10, 64)
	if err != nil {
		return c.reportPermanent(ctx, registration.ID,
			apperrors.New(apperrors.ErrCodeInvalidIdentity, MsgInvalidTelegramID))
	}

	inviteLink := strings.TrimSpace(trip.GroupInviteLink)
	var chatID int64
	haveChatID := false

	if inviteLink != "" {
		// Static link: chat id resolution is best-effort. Without it we
		// still deliver the link, we just cannot track a pending entry.
		if id, parseErr := strconv.ParseInt(strings.TrimSpace(trip.GroupChatID), 10, 64); parseErr == nil {
			chatID, haveChatID = id, true
		}
	} else {
		if strings.TrimSpace(trip.GroupChatID) == "" {
			return c.reportPermanent(ctx, registration.ID,
				apperrors.New(apperrors.ErrCodeNoGroupConfigured, MsgNoGroupConfigured))
		}
		chatID, err = strconv.ParseInt(strings.TrimSpace(trip.GroupChatID), 10, 64)
		if err != nil {
			return c.reportPermanent(ctx, registration.ID,
				apperrors.New(apperrors.ErrCodeInvalidChatID, MsgInvalidGroupChatID))
		}
		haveChatID = true

		inviteLink, err = c.createInvite(ctx, chatID)
		if err != nil {
			if _, reportErr := c.backend.ReportJoinOutcome(ctx, registration.ID, false, err.Error()); reportErr != nil {
				return apperrors.Wrap(reportErr, apperrors.ErrCodeBackendAPI, "report invite creation failure")
			}
			return apperrors.Wrap(err, apperrors.ErrCodeTelegramAPI, MsgCouldNotCreateInvite)
		}
	}

	markup := &telegram.ReplyMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: joinButtonText, URL: inviteLink}},
	}}
	text := fmt.Sprintf(paymentConfirmedFmt, html.EscapeString(trip.Title))
	if err := c.transport.SendMessage(ctx, userID, text, markup); err != nil {
		if telegram.IsForbidden(err) {
			return c.reportPermanent(ctx, registration.ID,
				apperrors.New(apperrors.ErrCodeUnreachable, MsgBotCannotMessageTraveler))
		}
		return apperrors.Wrap(err, apperrors.ErrCodeTelegramAPI, "deliver invite message")
	}

	if haveChatID {
		c.pending.Put(chatID, userID, registration.ID)
	}

	// Progress marker, not a success: group_joined_at stays unset until
	// the traveler's join request is approved.
	note := fmt.Sprintf(awaitingJoinNoteFmt, c.now().UTC().Format("2006-01-02 15:04 UTC"))
	if _, err := c.backend.ReportJoinOutcome(ctx, registration.ID, false, note); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackendAPI, "record awaiting-join marker")
	}

	logger.Info().
		Str("registration_id", registration.ID).
		Int64("user_id", userID).
		Msg("Group invite delivered")
	return nil
}

// createInvite requests a single-use join-by-request link, retrying once
// without the use limit when the transport rejects the combination.
func (c *Coordinator) createInvite(ctx context.Context, chatID int64) (string, error) {
	link, err := c.transport.CreateInviteLink(ctx, chatID, 1)
	if err == nil {
		return link, nil
	}
	if !telegram.IsMemberLimitConflict(err) {
		return "", err
	}
	return c.transport.CreateInviteLink(ctx, chatID, 0)
}

func (c *Coordinator) reportPermanent(ctx context.Context, registrationID string, appErr *apperrors.AppError) error {
	if _, err := c.backend.ReportJoinOutcome(ctx, registrationID, false, appErr.Message); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackendAPI, "report join failure")
	}
	logger.Warn().
		Str("registration_id", registrationID).
		Str("code", string(appErr.Code)).
		Msg("Group join failed permanently")
	return appErr
}
