package telegram

// Update is a single event from the Bot API long-poll.
type Update struct {
	UpdateID        int64            `json:"update_id"`
	Message         *Message         `json:"message,omitempty"`
	CallbackQuery   *CallbackQuery   `json:"callback_query,omitempty"`
	ChatJoinRequest *ChatJoinRequest `json:"chat_join_request,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// FullName joins first and last name the way chat clients display them.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type Message struct {
	MessageID int64       `json:"message_id"`
	From      *User       `json:"from"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Contact   *Contact    `json:"contact,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
	Document  *Document   `json:"document,omitempty"`
}

type Contact struct {
	PhoneNumber string `json:"phone_number"`
	UserID      int64  `json:"user_id"`
}

type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

type Document struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileName     string `json:"file_name"`
	MimeType     string `json:"mime_type"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message"`
	Data    string   `json:"data"`
}

// ChatJoinRequest is an inbound "user wants to join group" event.
type ChatJoinRequest struct {
	Chat Chat `json:"chat"`
	From User `json:"from"`
}

type file struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}

type chatInviteLink struct {
	InviteLink string `json:"invite_link"`
}

// ReplyMarkup is the union of the keyboard shapes sendMessage accepts.
// Exactly one of InlineKeyboard, Keyboard or RemoveKeyboard should be set.
type ReplyMarkup struct {
	InlineKeyboard  [][]InlineKeyboardButton `json:"inline_keyboard,omitempty"`
	Keyboard        [][]KeyboardButton       `json:"keyboard,omitempty"`
	ResizeKeyboard  bool                     `json:"resize_keyboard,omitempty"`
	OneTimeKeyboard bool                     `json:"one_time_keyboard,omitempty"`
	Selective       bool                     `json:"selective,omitempty"`
	RemoveKeyboard  bool                     `json:"remove_keyboard,omitempty"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

type KeyboardButton struct {
	Text           string `json:"text"`
	RequestContact bool   `json:"request_contact,omitempty"`
}
