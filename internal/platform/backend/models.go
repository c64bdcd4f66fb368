package backend

import "time"

// Registration status values mirrored from the resource service.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"

	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentRejected  = "rejected"
)

type Traveler struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	PhoneNumber    string `json:"phone_number"`
	TelegramHandle string `json:"telegram_handle"`
	TelegramID     string `json:"telegram_id"`
	ExtraInfo      string `json:"extra_info"`
}

type Place struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Trip struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	PlaceDetail  *Place `json:"place_detail"`
	TripStart    string `json:"trip_start"`
	TripEnd      string `json:"trip_end"`
	DefaultPrice string `json:"default_price"`
	Status       string `json:"status"`

	// Group binding. A trip with neither field set cannot onboard anyone.
	GroupChatID     string `json:"group_chat_id"`
	GroupInviteLink string `json:"group_invite_link"`
}

// Registration is a traveler's request to join a trip (a "user trip" on
// the wire), carrying payment and group-join state.
type Registration struct {
	ID             string    `json:"id"`
	Trip           string    `json:"trip"`
	Traveler       string    `json:"traveler"`
	TripDetail     *Trip     `json:"trip_detail"`
	TravelerDetail *Traveler `json:"traveler_detail"`
	Status         string    `json:"status"`
	PaymentStatus  string    `json:"payment_status"`
	QuotedPrice    string    `json:"quoted_price"`
	PaidAmount     string    `json:"paid_amount"`
	PaymentNote    string    `json:"payment_note"`

	// GroupJoinedAt is set exactly once, on a confirmed join.
	GroupJoinedAt *time.Time `json:"group_joined_at"`

	// GroupJoinError is the last failure or progress note; empty is clean.
	GroupJoinError string `json:"group_join_error"`
}

// TravelerFields is the writable subset of a traveler profile.
type TravelerFields struct {
	FirstName      string
	LastName       string
	PhoneNumber    string
	TelegramHandle string
	TelegramID     string
	ExtraInfo      string
}

// RegistrationFields is the payload for creating a registration.
type RegistrationFields struct {
	TripID      string
	TravelerID  string
	QuotedPrice string
	PaidAmount  string
	PaymentNote string
}

// Attachment is a payment-proof file uploaded with a registration.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RegistrationFilter narrows a registration listing. Nil/empty fields are
// omitted from the query.
type RegistrationFilter struct {
	TravelerID    string
	TripID        string
	Status        string
	PaymentStatus string
	GroupJoined   *bool
}

// Settings is the operator-managed configuration exposed to the bot.
type Settings struct {
	PaymentInstructions string `json:"payment_instructions"`
}
