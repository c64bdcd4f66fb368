package service

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	apperrors "trip-booking-backend/internal/common/errors"
	"trip-booking-backend/internal/common/logger"
	"trip-booking-backend/internal/platform/backend"
)

// Reconciler settles inbound join requests against the pending-join table
// or, after a restart, against the resource service directly.
type Reconciler struct {
	backend   BackendClient
	transport Transport
	pending   *PendingJoins
}

func NewReconciler(backendClient BackendClient, transport Transport, pending *PendingJoins) *Reconciler {
	return &Reconciler{
		backend:   backendClient,
		transport: transport,
		pending:   pending,
	}
}

// HandleJoinRequest approves the request when it maps to a confirmed
// registration and declines it otherwise. Transient lookup failures leave
// the request unanswered so the traveler can retry.
func (r *Reconciler) HandleJoinRequest(ctx context.Context, chatID, userID int64, groupTitle string) error {
	registrationID, ok := r.pending.Get(chatID, userID)
	if !ok {
		// The pending table does not survive restarts, and static links
		// are never tracked in it. Resolve against the backend instead.
		resolved, err := r.resolveFromBackend(ctx, chatID, userID)
		if err != nil {
			return err
		}
		registrationID = resolved
	}

	if registrationID == "" {
		if err := r.transport.DeclineJoinRequest(ctx, chatID, userID); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeTelegramAPI, "decline join request")
		}
		logger.Info().
			Int64("chat_id", chatID).
			Int64("user_id", userID).
			Msg("Declined join request without a confirmed registration")
		return nil
	}

	if err := r.transport.ApproveJoinRequest(ctx, chatID, userID); err != nil {
		logger.Error().Err(err).
			Str("registration_id", registrationID).
			Msg("Failed to approve join request")
		if _, reportErr := r.backend.ReportJoinOutcome(ctx, registrationID, false, err.Error()); reportErr != nil {
			logger.Error().Err(reportErr).
				Str("registration_id", registrationID).
				Msg("Failed to report join approval failure")
		}
		return apperrors.Wrap(err, apperrors.ErrCodeTelegramAPI, "approve join request")
	}

	if _, err := r.backend.ReportJoinOutcome(ctx, registrationID, true, ""); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackendAPI, "report join success")
	}
	r.pending.Delete(chatID, userID)

	logger.Info().
		Str("registration_id", registrationID).
		Int64("user_id", userID).
		Msg("Traveler joined trip group")

	// Best effort: a failed welcome message never affects join state.
	welcome := fmt.Sprintf(welcomeToGroupFmt, html.EscapeString(groupTitle))
	if err := r.transport.SendMessage(ctx, userID, welcome, nil); err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Msg("Cannot send welcome message")
	}

	return nil
}

// resolveFromBackend finds a confirmed-payment registration whose trip is
// bound to the requested chat. Returns "" when the traveler has no
// entitlement for this group.
func (r *Reconciler) resolveFromBackend(ctx context.Context, chatID, userID int64) (string, error) {
	traveler, err := r.backend.FindTravelerByTelegramID(ctx, strconv.FormatInt(userID, 10))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeBackendAPI, "look up traveler")
	}
	if traveler == nil {
		return "", nil
	}

	registrations, err := r.backend.ListRegistrations(ctx, backend.RegistrationFilter{TravelerID: traveler.ID})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeBackendAPI, "list traveler registrations")
	}

	for _, registration := range registrations {
		trip := registration.TripDetail
		if trip == nil {
			continue
		}
		configured, parseErr := strconv.ParseInt(strings.TrimSpace(trip.GroupChatID), 10, 64)
		if parseErr != nil {
			continue
		}
		if configured == chatID && registration.PaymentStatus == backend.PaymentConfirmed {
			return registration.ID, nil
		}
	}
	return "", nil
}
