package models

import "trip-booking-backend/internal/platform/backend"

// Step names the piece of information the bot is waiting for next.
type Step string

const (
	StepFirstName    Step = "collecting_first_name"
	StepLastName     Step = "collecting_last_name"
	StepPhone        Step = "collecting_phone"
	StepExtraInfo    Step = "collecting_extra_info"
	StepPaymentProof Step = "awaiting_payment_proof"
)

// Session is one traveler's in-progress registration dialog. It is the
// only conversational state the bot keeps; everything durable lives in
// the resource service.
type Session struct {
	ChatID int64 `json:"chat_id"`
	Step   Step  `json:"step"`

	TripID string        `json:"trip_id"`
	Trip   *backend.Trip `json:"trip,omitempty"`

	// TravelerID is set when the traveler already has a profile; answers
	// then update it instead of creating a duplicate.
	TravelerID string `json:"traveler_id,omitempty"`

	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	ExtraInfo string `json:"extra_info,omitempty"`

	// TelegramHandle is the traveler's username at the time the dialog
	// started, written to the profile on submit.
	TelegramHandle string `json:"telegram_handle,omitempty"`

	// Telegram profile values offered as defaults during collection.
	SuggestedFirstName string `json:"suggested_first_name,omitempty"`
	SuggestedLastName  string `json:"suggested_last_name,omitempty"`
}
