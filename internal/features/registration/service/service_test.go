package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-booking-backend/internal/features/registration/repository/memory"
	"trip-booking-backend/internal/platform/backend"
	"trip-booking-backend/internal/platform/telegram"
)

type fakeBackend struct {
	mu sync.Mutex

	trips         map[string]*backend.Trip
	travelers     map[string]*backend.Traveler
	registrations []backend.Registration
	settings      *backend.Settings

	created      []createdRegistration
	nextID       int
	createRegErr error
}

type createdRegistration struct {
	fields backend.RegistrationFields
	proof  *backend.Attachment
}

func newFakeBackend(trip *backend.Trip) *fakeBackend {
	return &fakeBackend{
		trips:     map[string]*backend.Trip{trip.ID: trip},
		travelers: make(map[string]*backend.Traveler),
		settings:  &backend.Settings{PaymentInstructions: "Pay via IBAN PT50 0000."},
	}
}

func (f *fakeBackend) GetTrip(_ context.Context, tripID string) (*backend.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	trip, ok := f.trips[tripID]
	if !ok {
		return nil, &backend.APIError{StatusCode: 404, Detail: "Not found."}
	}
	copied := *trip
	return &copied, nil
}

func (f *fakeBackend) FindTravelerByTelegramID(_ context.Context, telegramID string) (*backend.Traveler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, traveler := range f.travelers {
		if traveler.TelegramID == telegramID {
			copied := *traveler
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) CreateTraveler(_ context.Context, fields backend.TravelerFields) (*backend.Traveler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	traveler := &backend.Traveler{
		ID:             fmt.Sprintf("traveler-%d", f.nextID),
		FirstName:      fields.FirstName,
		LastName:       fields.LastName,
		PhoneNumber:    fields.PhoneNumber,
		TelegramHandle: fields.TelegramHandle,
		TelegramID:     fields.TelegramID,
		ExtraInfo:      fields.ExtraInfo,
	}
	f.travelers[traveler.ID] = traveler
	return traveler, nil
}

func (f *fakeBackend) UpdateTraveler(_ context.Context, travelerID string, fields backend.TravelerFields) (*backend.Traveler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	traveler, ok := f.travelers[travelerID]
	if !ok {
		return nil, &backend.APIError{StatusCode: 404, Detail: "Not found."}
	}
	traveler.FirstName = fields.FirstName
	traveler.LastName = fields.LastName
	traveler.PhoneNumber = fields.PhoneNumber
	traveler.TelegramHandle = fields.TelegramHandle
	traveler.TelegramID = fields.TelegramID
	traveler.ExtraInfo = fields.ExtraInfo
	copied := *traveler
	return &copied, nil
}

func (f *fakeBackend) CreateRegistration(_ context.Context, fields backend.RegistrationFields, proof *backend.Attachment) (*backend.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createRegErr != nil {
		return nil, f.createRegErr
	}
	f.created = append(f.created, createdRegistration{fields: fields, proof: proof})
	registration := backend.Registration{
		ID:            fmt.Sprintf("reg-%d", len(f.created)),
		Trip:          fields.TripID,
		Traveler:      fields.TravelerID,
		Status:        backend.StatusPending,
		PaymentStatus: backend.PaymentPending,
		QuotedPrice:   fields.QuotedPrice,
		PaidAmount:    fields.PaidAmount,
		PaymentNote:   fields.PaymentNote,
	}
	f.registrations = append(f.registrations, registration)
	return &registration, nil
}

func (f *fakeBackend) ListRegistrations(_ context.Context, filter backend.RegistrationFilter) ([]backend.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []backend.Registration
	for _, registration := range f.registrations {
		if filter.TravelerID != "" && registration.Traveler != filter.TravelerID {
			continue
		}
		if filter.TripID != "" && registration.Trip != filter.TripID {
			continue
		}
		out = append(out, registration)
	}
	return out, nil
}

func (f *fakeBackend) GetSettings(context.Context) (*backend.Settings, error) {
	return f.settings, nil
}

type fakeTransport struct {
	mu    sync.Mutex
	sent  []sentMessage
	files map[string][]byte
}

type sentMessage struct {
	chatID int64
	text   string
	markup *telegram.ReplyMarkup
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{files: map[string][]byte{"file-1": []byte("receipt-bytes")}}
}

func (f *fakeTransport) SendMessage(_ context.Context, chatID int64, text string, markup *telegram.ReplyMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, markup: markup})
	return nil
}

func (f *fakeTransport) DownloadFile(_ context.Context, fileID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[fileID]
	if !ok {
		return nil, &telegram.APIError{ErrorCode: 400, Description: "Bad Request: file not found"}
	}
	return data, nil
}

func (f *fakeTransport) last(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func lisbonTrip() *backend.Trip {
	return &backend.Trip{
		ID:           "trip-1",
		Title:        "Lisbon Getaway",
		DefaultPrice: "250.00",
		Status:       "registration",
	}
}

const (
	testChatID = int64(9000)
	testUserID = int64(555001)
)

func privateChat() telegram.Chat {
	return telegram.Chat{ID: testChatID, Type: "private"}
}

func textMsg(text string) *telegram.Message {
	return &telegram.Message{Chat: privateChat(), Text: text}
}

var testUser = &telegram.User{ID: testUserID, FirstName: "Ana", Username: "ana_travels"}

func newTestService(fb *fakeBackend, ft *fakeTransport) *Service {
	return New(fb, ft, memory.New())
}

func TestRegistrationFullDialog(t *testing.T) {
	fb := newFakeBackend(lisbonTrip())
	ft := newFakeTransport()
	svc := newTestService(fb, ft)
	ctx := context.Background()

	require.NoError(t, svc.StartForTrip(ctx, testChatID, testUserID, testUser, "trip-1"))
	assert.Contains(t, ft.last(t).text, "first name")

	steps := []struct {
		message  *telegram.Message
		expectIn string
	}{
		{textMsg("Ana"), "last name"},
		{textMsg("skip"), "phone"},
		{textMsg("+1234567"), "organizers should know"},
		{textMsg("-"), "payment"},
	}
	for _, step := range steps {
		handled, err := svc.HandleMessage(ctx, testUserID, step.message)
		require.NoError(t, err)
		require.True(t, handled)
		assert.Contains(t, ft.last(t).text, step.expectIn)
	}

	// The payment prompt carries the price and the operator instructions.
	prompt := ft.last(t)
	assert.Contains(t, prompt.text, "250.00")
	assert.Contains(t, prompt.text, "IBAN PT50 0000")

	// Profile was submitted before the payment step.
	require.Len(t, fb.travelers, 1)
	traveler := fb.travelers["traveler-1"]
	assert.Equal(t, "Ana", traveler.FirstName)
	assert.Empty(t, traveler.LastName)
	assert.Equal(t, "+1234567", traveler.PhoneNumber)
	assert.Equal(t, "ana_travels", traveler.TelegramHandle)
	assert.Equal(t, "555001", traveler.TelegramID)

	photo := &telegram.Message{
		Chat:    privateChat(),
		Photo:   []telegram.PhotoSize{{FileID: "file-small", FileUniqueID: "u-small"}, {FileID: "file-1", FileUniqueID: "u-big"}},
		Caption: "paid from my mom's account",
	}
	handled, err := svc.HandleMessage(ctx, testUserID, photo)
	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, msgRegistrationDone, ft.last(t).text)

	require.Len(t, fb.created, 1)
	created := fb.created[0]
	assert.Equal(t, "trip-1", created.fields.TripID)
	assert.Equal(t, "traveler-1", created.fields.TravelerID)
	assert.Equal(t, "250.00", created.fields.QuotedPrice)
	assert.Equal(t, "0", created.fields.PaidAmount)
	assert.Equal(t, "paid from my mom's account", created.fields.PaymentNote)
	require.NotNil(t, created.proof)
	assert.Equal(t, "payment_u-big.jpg", created.proof.Filename)
	assert.Equal(t, "image/jpeg", created.proof.ContentType)
	assert.Equal(t, []byte("receipt-bytes"), created.proof.Data)

	// Dialog is closed: the next message is not ours to handle.
	handled, err = svc.HandleMessage(ctx, testUserID, textMsg("hello"))
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestRegistrationKnownTravelerSkipsInterview(t *testing.T) {
	fb := newFakeBackend(lisbonTrip())
	fb.travelers["traveler-1"] = &backend.Traveler{
		ID:          "traveler-1",
		FirstName:   "Ana",
		PhoneNumber: "+1234567",
		TelegramID:  "555001",
	}
	ft := newFakeTransport()
	svc := newTestService(fb, ft)
	ctx := context.Background()

	require.NoError(t, svc.StartForTrip(ctx, testChatID, testUserID, testUser, "trip-1"))
	assert.Contains(t, ft.last(t).text, "payment")

	doc := &telegram.Message{Chat: privateChat(), Document: &telegram.Document{FileID: "file-1", FileUniqueID: "u-doc", FileName: "receipt.pdf", MimeType: "application/pdf"}}
	handled, err := svc.HandleMessage(ctx, testUserID, doc)
	require.NoError(t, err)
	require.True(t, handled)

	require.Len(t, fb.created, 1)
	assert.Equal(t, "traveler-1", fb.created[0].fields.TravelerID)
	assert.Equal(t, "receipt.pdf", fb.created[0].proof.Filename)
	assert.Equal(t, "application/pdf", fb.created[0].proof.ContentType)
}

func TestRegistrationAlreadyRegistered(t *testing.T) {
	fb := newFakeBackend(lisbonTrip())
	fb.travelers["traveler-1"] = &backend.Traveler{ID: "traveler-1", FirstName: "Ana", PhoneNumber: "+1234567", TelegramID: "555001"}
	fb.registrations = []backend.Registration{{ID: "reg-1", Trip: "trip-1", Traveler: "traveler-1", Status: backend.StatusPending}}
	ft := newFakeTransport()
	svc := newTestService(fb, ft)

	require.NoError(t, svc.StartForTrip(context.Background(), testChatID, testUserID, testUser, "trip-1"))
	assert.Equal(t, msgAlreadyRegistered, ft.last(t).text)

	// No dialog was opened.
	handled, err := svc.HandleMessage(context.Background(), testUserID, textMsg("Ana"))
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestRegistrationCancelledRegistrationAllowsRetry(t *testing.T) {
	fb := newFakeBackend(lisbonTrip())
	fb.travelers["traveler-1"] = &backend.Traveler{ID: "traveler-1", FirstName: "Ana", PhoneNumber: "+1234567", TelegramID: "555001"}
	fb.registrations = []backend.Registration{{ID: "reg-1", Trip: "trip-1", Traveler: "traveler-1", Status: backend.StatusCancelled}}
	ft := newFakeTransport()
	svc := newTestService(fb, ft)

	require.NoError(t, svc.StartForTrip(context.Background(), testChatID, testUserID, testUser, "trip-1"))
	assert.Contains(t, ft.last(t).text, "payment")
}

func TestRegistrationUnknownTrip(t *testing.T) {
	fb := newFakeBackend(lisbonTrip())
	ft := newFakeTransport()
	svc := newTestService(fb, ft)

	require.NoError(t, svc.StartForTrip(context.Background(), testChatID, testUserID, testUser, "trip-gone"))
	assert.Equal(t, msgTripUnavailable, ft.last(t).text)
}

func TestRegistrationValidation(t *testing.T) {
	fb := newFakeBackend(lisbonTrip())
	ft := newFakeTransport()
	svc := newTestService(fb, ft)
	ctx := context.Background()

	require.NoError(t, svc.StartForTrip(ctx, testChatID, testUserID, nil, "trip-1"))

	// Empty first name is rejected; "-" without a suggestion too.
	for _, bad := range []string{"", "   ", "-"} {
		handled, err := svc.HandleMessage(ctx, testUserID, textMsg(bad))
		require.NoError(t, err)
		require.True(t, handled)
		assert.Equal(t, promptFirstNameRetry, ft.last(t).text)
	}

	_, err := svc.HandleMessage(ctx, testUserID, textMsg("Ana"))
	require.NoError(t, err)
	_, err = svc.HandleMessage(ctx, testUserID, textMsg("Silva"))
	require.NoError(t, err)

	// Garbage phone numbers are re-prompted with the contact keyboard.
	handled, err := svc.HandleMessage(ctx, testUserID, textMsg("call me maybe"))
	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, promptPhoneRetry, ft.last(t).text)
	require.NotNil(t, ft.last(t).markup)
	assert.True(t, ft.last(t).markup.Keyboard[0][0].RequestContact)

	// A shared contact is accepted without validation.
	handled, err = svc.HandleMessage(ctx, testUserID, &telegram.Message{Chat: privateChat(), Contact: &telegram.Contact{PhoneNumber: "+351 912 345 678"}})
	require.NoError(t, err)
	require.True(t, handled)
	assert.Contains(t, ft.last(t).text, "organizers should know")
}

func TestRegistrationSuggestedFirstName(t *testing.T) {
	fb := newFakeBackend(lisbonTrip())
	ft := newFakeTransport()
	svc := newTestService(fb, ft)
	ctx := context.Background()

	require.NoError(t, svc.StartForTrip(ctx, testChatID, testUserID, testUser, "trip-1"))
	assert.Contains(t, ft.last(t).text, "Ana")

	handled, err := svc.HandleMessage(ctx, testUserID, textMsg("-"))
	require.NoError(t, err)
	require.True(t, handled)

	_, err = svc.HandleMessage(ctx, testUserID, textMsg("skip"))
	require.NoError(t, err)
	_, err = svc.HandleMessage(ctx, testUserID, textMsg("+1234567"))
	require.NoError(t, err)
	_, err = svc.HandleMessage(ctx, testUserID, textMsg("skip"))
	require.NoError(t, err)

	require.Len(t, fb.travelers, 1)
	assert.Equal(t, "Ana", fb.travelers["traveler-1"].FirstName)
}

func TestRegistrationProofRequired(t *testing.T) {
	fb := newFakeBackend(lisbonTrip())
	fb.travelers["traveler-1"] = &backend.Traveler{ID: "traveler-1", FirstName: "Ana", PhoneNumber: "+1234567", TelegramID: "555001"}
	ft := newFakeTransport()
	svc := newTestService(fb, ft)
	ctx := context.Background()

	require.NoError(t, svc.StartForTrip(ctx, testChatID, testUserID, testUser, "trip-1"))

	handled, err := svc.HandleMessage(ctx, testUserID, textMsg("here you go"))
	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, promptProofRetry, ft.last(t).text)
	assert.Empty(t, fb.created)
}

func TestRegistrationDuplicateOnSubmit(t *testing.T) {
	fb := newFakeBackend(lisbonTrip())
	fb.travelers["traveler-1"] = &backend.Traveler{ID: "traveler-1", FirstName: "Ana", PhoneNumber: "+1234567", TelegramID: "555001"}
	fb.createRegErr = &backend.APIError{StatusCode: 400, Detail: map[string]any{
		"non_field_errors": []any{"The fields trip, traveler must make a unique set."},
	}}
	ft := newFakeTransport()
	svc := newTestService(fb, ft)
	ctx := context.Background()

	require.NoError(t, svc.StartForTrip(ctx, testChatID, testUserID, testUser, "trip-1"))

	doc := &telegram.Message{Chat: privateChat(), Document: &telegram.Document{FileID: "file-1", FileUniqueID: "u-doc"}}
	handled, err := svc.HandleMessage(ctx, testUserID, doc)
	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, msgAlreadyRegistered, ft.last(t).text)

	// The dialog is gone; a duplicate cannot be resubmitted.
	handled, err = svc.HandleMessage(ctx, testUserID, doc)
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestRegistrationSubmitFailureKeepsSession(t *testing.T) {
	fb := newFakeBackend(lisbonTrip())
	fb.travelers["traveler-1"] = &backend.Traveler{ID: "traveler-1", FirstName: "Ana", PhoneNumber: "+1234567", TelegramID: "555001"}
	fb.createRegErr = &backend.APIError{StatusCode: 500, Detail: "Internal error."}
	ft := newFakeTransport()
	svc := newTestService(fb, ft)
	ctx := context.Background()

	require.NoError(t, svc.StartForTrip(ctx, testChatID, testUserID, testUser, "trip-1"))

	doc := &telegram.Message{Chat: privateChat(), Document: &telegram.Document{FileID: "file-1", FileUniqueID: "u-doc"}}
	handled, err := svc.HandleMessage(ctx, testUserID, doc)
	require.True(t, handled)
	require.Error(t, err)
	assert.Equal(t, msgSubmitFailed, ft.last(t).text)

	// Retrying after the backend recovers succeeds on the same session.
	fb.createRegErr = nil
	handled, err = svc.HandleMessage(ctx, testUserID, doc)
	require.NoError(t, err)
	require.True(t, handled)
	require.Len(t, fb.created, 1)
}

func TestRegistrationIgnoresOtherChats(t *testing.T) {
	fb := newFakeBackend(lisbonTrip())
	ft := newFakeTransport()
	svc := newTestService(fb, ft)
	ctx := context.Background()

	require.NoError(t, svc.StartForTrip(ctx, testChatID, testUserID, testUser, "trip-1"))

	// Group chatter from the same traveler is not dialog input.
	groupText := &telegram.Message{
		Chat: telegram.Chat{ID: -100999, Type: "group"},
		Text: "lol nice weather",
	}
	handled, err := svc.HandleMessage(ctx, testUserID, groupText)
	require.NoError(t, err)
	assert.False(t, handled)

	// The dialog is still on the first step in its own chat.
	handled, err = svc.HandleMessage(ctx, testUserID, textMsg("Ana"))
	require.NoError(t, err)
	require.True(t, handled)
	assert.Contains(t, ft.last(t).text, "last name")

	_, err = svc.HandleMessage(ctx, testUserID, textMsg("skip"))
	require.NoError(t, err)
	_, err = svc.HandleMessage(ctx, testUserID, textMsg("+1234567"))
	require.NoError(t, err)
	_, err = svc.HandleMessage(ctx, testUserID, textMsg("skip"))
	require.NoError(t, err)

	require.Len(t, fb.travelers, 1)
	assert.Equal(t, "Ana", fb.travelers["traveler-1"].FirstName)
}

func TestRegistrationCancel(t *testing.T) {
	fb := newFakeBackend(lisbonTrip())
	ft := newFakeTransport()
	svc := newTestService(fb, ft)
	ctx := context.Background()

	existed, err := svc.Cancel(ctx, testUserID)
	require.NoError(t, err)
	assert.False(t, existed)

	require.NoError(t, svc.StartForTrip(ctx, testChatID, testUserID, testUser, "trip-1"))
	existed, err = svc.Cancel(ctx, testUserID)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, msgDialogCancelled, ft.last(t).text)

	handled, err := svc.HandleMessage(ctx, testUserID, textMsg("Ana"))
	require.NoError(t, err)
	assert.False(t, handled)
}
