package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	apperrors "trip-booking-backend/internal/common/errors"
	"trip-booking-backend/internal/common/logger"
	"trip-booking-backend/internal/features/registration/models"
	"trip-booking-backend/internal/features/registration/repository"
	"trip-booking-backend/internal/platform/backend"
	"trip-booking-backend/internal/platform/telegram"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\s()\-+]{6,}$`)

// Service drives the registration dialog: a short profile interview
// followed by a payment receipt, submitted as one registration. All
// durable state lives in the resource service; the session only carries
// the answers collected so far.
type Service struct {
	backend   BackendClient
	transport Transport
	sessions  repository.SessionRepository
}

func New(backendClient BackendClient, transport Transport, sessions repository.SessionRepository) *Service {
	return &Service{
		backend:   backendClient,
		transport: transport,
		sessions:  sessions,
	}
}

// StartForTrip opens a dialog for the given trip. Travelers with a
// complete profile skip straight to the payment step; travelers already
// registered for the trip get a notice instead of a new dialog.
func (s *Service) StartForTrip(ctx context.Context, chatID, userID int64, from *telegram.User, tripID string) error {
	trip, err := s.backend.GetTrip(ctx, tripID)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return s.transport.SendMessage(ctx, chatID, msgTripUnavailable, nil)
		}
		return apperrors.Wrap(err, apperrors.ErrCodeBackendAPI, "load trip")
	}

	traveler, err := s.backend.FindTravelerByTelegramID(ctx, strconv.FormatInt(userID, 10))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackendAPI, "look up traveler")
	}

	if traveler != nil {
		registered, err := s.hasActiveRegistration(ctx, traveler.ID, tripID)
		if err != nil {
			return err
		}
		if registered {
			return s.transport.SendMessage(ctx, chatID, msgAlreadyRegistered, nil)
		}
	}

	session := &models.Session{
		ChatID: chatID,
		TripID: tripID,
		Trip:   trip,
	}
	if from != nil {
		session.SuggestedFirstName = from.FirstName
		session.SuggestedLastName = from.LastName
		session.TelegramHandle = from.Username
	}

	if traveler != nil {
		session.TravelerID = traveler.ID
		session.FirstName = traveler.FirstName
		session.LastName = traveler.LastName
		session.Phone = traveler.PhoneNumber
		session.ExtraInfo = traveler.ExtraInfo
	}

	// A known profile with name and phone needs no interview.
	if traveler != nil && traveler.FirstName != "" && traveler.PhoneNumber != "" {
		session.Step = models.StepPaymentProof
		if err := s.sessions.Save(ctx, userID, session); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "save session")
		}
		return s.sendPaymentPrompt(ctx, session)
	}

	session.Step = models.StepFirstName
	if err := s.sessions.Save(ctx, userID, session); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "save session")
	}

	prompt := promptFirstName
	if session.SuggestedFirstName != "" {
		prompt = fmt.Sprintf(promptFirstNameSuggest, html.EscapeString(session.SuggestedFirstName))
	}
	return s.transport.SendMessage(ctx, chatID, prompt, nil)
}

// HandleMessage feeds an incoming message to the dialog. It returns false
// when the traveler has no open session, so the caller can route the
// message elsewhere.
func (s *Service) HandleMessage(ctx context.Context, userID int64, msg *telegram.Message) (bool, error) {
	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "load session")
	}
	if session == nil {
		return false, nil
	}
	// The dialog lives in the chat it was started in. The bot also sees
	// group traffic, and a traveler chatting in a trip group mid-dialog
	// must not advance their private dialog.
	if msg.Chat.ID != session.ChatID {
		return false, nil
	}

	switch session.Step {
	case models.StepFirstName:
		return true, s.collectFirstName(ctx, userID, session, msg)
	case models.StepLastName:
		return true, s.collectLastName(ctx, userID, session, msg)
	case models.StepPhone:
		return true, s.collectPhone(ctx, userID, session, msg)
	case models.StepExtraInfo:
		return true, s.collectExtraInfo(ctx, userID, session, msg)
	case models.StepPaymentProof:
		return true, s.collectPaymentProof(ctx, userID, session, msg)
	default:
		logger.Warn().Str("step", string(session.Step)).Int64("user_id", userID).Msg("Unknown dialog step, resetting")
		if err := s.sessions.Delete(ctx, userID); err != nil {
			return true, apperrors.Wrap(err, apperrors.ErrCodeInternal, "reset session")
		}
		return true, nil
	}
}

// Reset drops any open dialog without telling the traveler. Used when a
// new conversation entry point supersedes the old dialog.
func (s *Service) Reset(ctx context.Context, userID int64) error {
	if err := s.sessions.Delete(ctx, userID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "reset session")
	}
	return nil
}

// Cancel abandons the traveler's open dialog, if any.
func (s *Service) Cancel(ctx context.Context, userID int64) (bool, error) {
	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "load session")
	}
	if session == nil {
		return false, nil
	}
	if err := s.sessions.Delete(ctx, userID); err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "delete session")
	}
	removeKeyboard := &telegram.ReplyMarkup{RemoveKeyboard: true}
	if err := s.transport.SendMessage(ctx, session.ChatID, msgDialogCancelled, removeKeyboard); err != nil {
		logger.Warn().Err(err).Int64("chat_id", session.ChatID).Msg("Cannot confirm cancellation")
	}
	return true, nil
}

func (s *Service) collectFirstName(ctx context.Context, userID int64, session *models.Session, msg *telegram.Message) error {
	text := strings.TrimSpace(msg.Text)
	if isSkipToken(text) && session.SuggestedFirstName != "" {
		text = session.SuggestedFirstName
	}
	if text == "" || isSkipToken(text) {
		return s.transport.SendMessage(ctx, session.ChatID, promptFirstNameRetry, nil)
	}

	session.FirstName = text
	session.Step = models.StepLastName
	if err := s.sessions.Save(ctx, userID, session); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "save session")
	}
	return s.transport.SendMessage(ctx, session.ChatID, promptLastName, nil)
}

func (s *Service) collectLastName(ctx context.Context, userID int64, session *models.Session, msg *telegram.Message) error {
	text := strings.TrimSpace(msg.Text)
	if isSkipToken(text) {
		text = ""
	}

	session.LastName = text
	session.Step = models.StepPhone
	if err := s.sessions.Save(ctx, userID, session); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "save session")
	}
	return s.transport.SendMessage(ctx, session.ChatID, promptPhone, contactKeyboard())
}

func (s *Service) collectPhone(ctx context.Context, userID int64, session *models.Session, msg *telegram.Message) error {
	var phone string
	if msg.Contact != nil {
		phone = strings.TrimSpace(msg.Contact.PhoneNumber)
	} else {
		phone = strings.TrimSpace(msg.Text)
		if !phonePattern.MatchString(phone) {
			return s.transport.SendMessage(ctx, session.ChatID, promptPhoneRetry, contactKeyboard())
		}
	}
	if phone == "" {
		return s.transport.SendMessage(ctx, session.ChatID, promptPhoneRetry, contactKeyboard())
	}

	session.Phone = phone
	session.Step = models.StepExtraInfo
	if err := s.sessions.Save(ctx, userID, session); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "save session")
	}
	removeKeyboard := &telegram.ReplyMarkup{RemoveKeyboard: true}
	return s.transport.SendMessage(ctx, session.ChatID, promptExtraInfo, removeKeyboard)
}

func (s *Service) collectExtraInfo(ctx context.Context, userID int64, session *models.Session, msg *telegram.Message) error {
	text := strings.TrimSpace(msg.Text)
	if isSkipToken(text) {
		text = ""
	}
	session.ExtraInfo = text

	if err := s.upsertTraveler(ctx, userID, session); err != nil {
		return err
	}

	session.Step = models.StepPaymentProof
	if err := s.sessions.Save(ctx, userID, session); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "save session")
	}
	return s.sendPaymentPrompt(ctx, session)
}

func (s *Service) collectPaymentProof(ctx context.Context, userID int64, session *models.Session, msg *telegram.Message) error {
	proof, err := s.extractProof(ctx, msg)
	if err != nil {
		return err
	}
	if proof == nil {
		return s.transport.SendMessage(ctx, session.ChatID, promptProofRetry, nil)
	}

	price := session.Trip.DefaultPrice
	fields := backend.RegistrationFields{
		TripID:      session.TripID,
		TravelerID:  session.TravelerID,
		QuotedPrice: price,
		PaidAmount:  "0",
		PaymentNote: strings.TrimSpace(msg.Caption),
	}

	if _, err := s.backend.CreateRegistration(ctx, fields, proof); err != nil {
		if backend.IsDuplicateRegistration(err) {
			if delErr := s.sessions.Delete(ctx, userID); delErr != nil {
				logger.Warn().Err(delErr).Int64("user_id", userID).Msg("Cannot clear session")
			}
			return s.transport.SendMessage(ctx, session.ChatID, msgAlreadyRegistered, nil)
		}
		// The session stays open so the traveler can resend the receipt.
		if sendErr := s.transport.SendMessage(ctx, session.ChatID, msgSubmitFailed, nil); sendErr != nil {
			logger.Warn().Err(sendErr).Int64("chat_id", session.ChatID).Msg("Cannot report submit failure")
		}
		return apperrors.Wrap(err, apperrors.ErrCodeBackendAPI, "create registration")
	}

	if err := s.sessions.Delete(ctx, userID); err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Msg("Cannot clear session")
	}

	logger.Info().
		Str("trip_id", session.TripID).
		Str("traveler_id", session.TravelerID).
		Msg("Registration submitted")
	return s.transport.SendMessage(ctx, session.ChatID, msgRegistrationDone, nil)
}

// extractProof pulls the receipt out of the message: the largest photo
// size, or the document as-is. Returns (nil, nil) when the message has
// neither.
func (s *Service) extractProof(ctx context.Context, msg *telegram.Message) (*backend.Attachment, error) {
	switch {
	case len(msg.Photo) > 0:
		// Telegram orders photo sizes smallest first.
		photo := msg.Photo[len(msg.Photo)-1]
		data, err := s.transport.DownloadFile(ctx, photo.FileID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeTelegramAPI, "download payment photo")
		}
		return &backend.Attachment{
			Filename:    fmt.Sprintf("payment_%s.jpg", photo.FileUniqueID),
			ContentType: "image/jpeg",
			Data:        data,
		}, nil
	case msg.Document != nil:
		doc := msg.Document
		data, err := s.transport.DownloadFile(ctx, doc.FileID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeTelegramAPI, "download payment document")
		}
		filename := doc.FileName
		if filename == "" {
			filename = fmt.Sprintf("payment_%s", doc.FileUniqueID)
		}
		contentType := doc.MimeType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return &backend.Attachment{Filename: filename, ContentType: contentType, Data: data}, nil
	default:
		return nil, nil
	}
}

func (s *Service) upsertTraveler(ctx context.Context, userID int64, session *models.Session) error {
	fields := backend.TravelerFields{
		FirstName:      session.FirstName,
		LastName:       session.LastName,
		PhoneNumber:    session.Phone,
		TelegramHandle: session.TelegramHandle,
		TelegramID:     strconv.FormatInt(userID, 10),
		ExtraInfo:      session.ExtraInfo,
	}

	var (
		traveler *backend.Traveler
		err      error
	)
	if session.TravelerID != "" {
		traveler, err = s.backend.UpdateTraveler(ctx, session.TravelerID, fields)
	} else {
		traveler, err = s.backend.CreateTraveler(ctx, fields)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackendAPI, "save traveler profile")
	}
	session.TravelerID = traveler.ID
	return nil
}

func (s *Service) sendPaymentPrompt(ctx context.Context, session *models.Session) error {
	instructions := ""
	if settings, err := s.backend.GetSettings(ctx); err != nil {
		logger.Warn().Err(err).Msg("Cannot load payment instructions")
	} else if settings != nil {
		instructions = strings.TrimSpace(settings.PaymentInstructions)
	}

	price := session.Trip.DefaultPrice
	if price == "" {
		price = "to be confirmed"
	}
	text := fmt.Sprintf(promptPaymentProofFmt,
		html.EscapeString(session.Trip.Title),
		html.EscapeString(price),
		html.EscapeString(instructions))
	return s.transport.SendMessage(ctx, session.ChatID, text, nil)
}

func (s *Service) hasActiveRegistration(ctx context.Context, travelerID, tripID string) (bool, error) {
	registrations, err := s.backend.ListRegistrations(ctx, backend.RegistrationFilter{
		TravelerID: travelerID,
		TripID:     tripID,
	})
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeBackendAPI, "list registrations")
	}
	for _, registration := range registrations {
		if registration.Status != backend.StatusCancelled && registration.Status != backend.StatusRejected {
			return true, nil
		}
	}
	return false, nil
}

func isSkipToken(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return lower == skipTokenDash || lower == skipTokenWord
}

func contactKeyboard() *telegram.ReplyMarkup {
	return &telegram.ReplyMarkup{
		Keyboard: [][]telegram.KeyboardButton{
			{{Text: contactButtonText, RequestContact: true}},
		},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
		Selective:       true,
	}
}
