package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trip-booking-backend/internal/platform/backend"
	"trip-booking-backend/internal/platform/telegram"
)

// fakeBackend implements BackendClient in memory, mirroring the resource
// service's group-join semantics: success stamps group_joined_at once and
// clears the error; failure only replaces the error text.
type fakeBackend struct {
	mu            sync.Mutex
	registrations map[string]*backend.Registration
	travelers     []backend.Traveler

	listErr   error
	reportErr error

	listCalls int
	findCalls int
	reports   []reportCall
}

type reportCall struct {
	registrationID string
	success        bool
	errMsg         string
}

func newFakeBackend(regs ...*backend.Registration) *fakeBackend {
	fb := &fakeBackend{registrations: make(map[string]*backend.Registration)}
	for _, reg := range regs {
		fb.registrations[reg.ID] = reg
	}
	return fb
}

func (f *fakeBackend) ListRegistrations(_ context.Context, filter backend.RegistrationFilter) ([]backend.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []backend.Registration
	for _, reg := range f.registrations {
		if filter.Status != "" && reg.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && reg.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.TravelerID != "" && reg.Traveler != filter.TravelerID {
			continue
		}
		if filter.GroupJoined != nil {
			joined := reg.GroupJoinedAt != nil
			if joined != *filter.GroupJoined {
				continue
			}
		}
		out = append(out, *reg)
	}
	return out, nil
}

func (f *fakeBackend) FindTravelerByTelegramID(_ context.Context, telegramID string) (*backend.Traveler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	for i := range f.travelers {
		if f.travelers[i].TelegramID == telegramID {
			traveler := f.travelers[i]
			return &traveler, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) ReportJoinOutcome(_ context.Context, registrationID string, success bool, errMsg string) (*backend.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	f.reports = append(f.reports, reportCall{registrationID: registrationID, success: success, errMsg: errMsg})

	reg, ok := f.registrations[registrationID]
	if !ok {
		return nil, &backend.APIError{StatusCode: 404, Detail: "User trip not found."}
	}
	if success {
		if reg.GroupJoinedAt == nil {
			now := time.Now()
			reg.GroupJoinedAt = &now
		}
		reg.GroupJoinError = ""
	} else {
		if errMsg == "" {
			return nil, &backend.APIError{StatusCode: 400, Detail: "Error message required when success is false."}
		}
		reg.GroupJoinError = errMsg
	}
	copied := *reg
	return &copied, nil
}

func (f *fakeBackend) get(registrationID string) backend.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.registrations[registrationID]
}

func (f *fakeBackend) lastReport() (reportCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reports) == 0 {
		return reportCall{}, false
	}
	return f.reports[len(f.reports)-1], true
}

type sentMessage struct {
	chatID int64
	text   string
	markup *telegram.ReplyMarkup
}

type inviteCall struct {
	chatID      int64
	memberLimit int
}

// fakeTransport implements Transport with scriptable failures.
type fakeTransport struct {
	mu sync.Mutex

	sent    []sentMessage
	invites []inviteCall

	forbiddenUsers    map[int64]bool
	inviteErr         error
	memberLimitReject bool
	approveErr        error

	approved []PendingKey
	declined []PendingKey
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{forbiddenUsers: make(map[int64]bool)}
}

func (f *fakeTransport) SendMessage(_ context.Context, chatID int64, text string, markup *telegram.ReplyMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forbiddenUsers[chatID] {
		return &telegram.APIError{ErrorCode: 403, Description: "Forbidden: bot can't initiate conversation with a user"}
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, markup: markup})
	return nil
}

func (f *fakeTransport) CreateInviteLink(_ context.Context, chatID int64, memberLimit int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invites = append(f.invites, inviteCall{chatID: chatID, memberLimit: memberLimit})
	if f.inviteErr != nil {
		return "", f.inviteErr
	}
	if f.memberLimitReject && memberLimit > 0 {
		return "", &telegram.APIError{ErrorCode: 400, Description: "Bad Request: member limit can't be specified for links requiring administrator approval"}
	}
	return fmt.Sprintf("https://t.me/+invite%d", len(f.invites)), nil
}

func (f *fakeTransport) ApproveJoinRequest(_ context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return f.approveErr
	}
	f.approved = append(f.approved, PendingKey{ChatID: chatID, UserID: userID})
	return nil
}

func (f *fakeTransport) DeclineJoinRequest(_ context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declined = append(f.declined, PendingKey{ChatID: chatID, UserID: userID})
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// confirmedRegistration builds a registration ready for group onboarding.
func confirmedRegistration(id string, trip *backend.Trip, telegramID string) *backend.Registration {
	return &backend.Registration{
		ID:            id,
		Trip:          trip.ID,
		Traveler:      "traveler-" + id,
		TripDetail:    trip,
		TravelerDetail: &backend.Traveler{
			ID:         "traveler-" + id,
			FirstName:  "Ana",
			TelegramID: telegramID,
		},
		Status:        backend.StatusConfirmed,
		PaymentStatus: backend.PaymentConfirmed,
	}
}

// stubInviter records AttemptJoin calls for poller-focused tests.
type stubInviter struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (s *stubInviter) AttemptJoin(_ context.Context, registration *backend.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, registration.ID)
	if s.errs != nil {
		return s.errs[registration.ID]
	}
	return nil
}

func (s *stubInviter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
