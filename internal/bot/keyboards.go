package bot

import (
	"trip-booking-backend/internal/platform/backend"
	"trip-booking-backend/internal/platform/telegram"
)

// Callback data prefixes routed by the dispatcher.
const (
	cbMenuRegister      = "menu:register"
	cbMenuRegistrations = "menu:registrations"
	cbMenuBack          = "menu:back"
	cbTripPrefix        = "trip:"
	cbJoinPrefix        = "join:"
)

func mainMenu() *telegram.ReplyMarkup {
	return &telegram.ReplyMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "Register for a trip", CallbackData: cbMenuRegister}},
		{{Text: "My registrations", CallbackData: cbMenuRegistrations}},
	}}
}

func tripsKeyboard(trips []backend.Trip) *telegram.ReplyMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(trips)+1)
	for _, trip := range trips {
		rows = append(rows, []telegram.InlineKeyboardButton{
			{Text: trip.Title, CallbackData: cbTripPrefix + trip.ID},
		})
	}
	rows = append(rows, []telegram.InlineKeyboardButton{
		{Text: "Back to menu", CallbackData: cbMenuBack},
	})
	return &telegram.ReplyMarkup{InlineKeyboard: rows}
}
