package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Client provides the Bot API operations the backend consumes.
type Client struct {
	httpClient *http.Client
	apiBase    string
	token      string
}

// APIError is a non-ok answer from the Bot API.
type APIError struct {
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error %d: %s", e.ErrorCode, e.Description)
}

// IsForbidden reports whether err means the bot may not message the user
// (never started a chat, or blocked the bot).
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == http.StatusForbidden
}

// IsMemberLimitConflict reports whether invite creation was rejected
// because a member limit cannot be combined with join-request mode.
func IsMemberLimitConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		apiErr.ErrorCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Description), "member limit")
}

func New(token string) *Client {
	return NewWithBaseURL(token, defaultAPIBase)
}

// NewWithBaseURL points the client at a non-default API host (tests,
// local Bot API servers).
func NewWithBaseURL(token, apiBase string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 65 * time.Second},
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		token:      token,
	}
}

type tgResponse[T any] struct {
	Ok          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Result      T      `json:"result"`
}

func makeRequest[T any](ctx context.Context, c *Client, method string, params url.Values) (T, error) {
	var zero T

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("%s: read response: %w", method, err)
	}

	var envelope tgResponse[T]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return zero, fmt.Errorf("%s: parse response: %w", method, err)
	}
	if !envelope.Ok {
		return zero, &APIError{ErrorCode: envelope.ErrorCode, Description: envelope.Description}
	}
	return envelope.Result, nil
}

// GetUpdates long-polls for new events.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	params := url.Values{
		"offset":          {strconv.FormatInt(offset, 10)},
		"timeout":         {strconv.Itoa(timeoutSeconds)},
		"allowed_updates": {`["message","callback_query","chat_join_request"]`},
	}
	return makeRequest[[]Update](ctx, c, "getUpdates", params)
}

// SendMessage delivers an HTML-formatted message, optionally with a
// keyboard attached.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *ReplyMarkup) error {
	params := url.Values{
		"chat_id":                  {strconv.FormatInt(chatID, 10)},
		"text":                     {text},
		"parse_mode":               {"HTML"},
		"disable_web_page_preview": {"true"},
	}
	if markup != nil {
		encoded, err := json.Marshal(markup)
		if err != nil {
			return fmt.Errorf("encode reply markup: %w", err)
		}
		params.Set("reply_markup", string(encoded))
	}
	_, err := makeRequest[json.RawMessage](ctx, c, "sendMessage", params)
	return err
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error {
	params := url.Values{"callback_query_id": {callbackQueryID}}
	_, err := makeRequest[bool](ctx, c, "answerCallbackQuery", params)
	return err
}

// CreateInviteLink creates a join-request invite link for a group.
// memberLimit of zero omits the use limit; the API rejects a limit
// combined with join-request mode, which callers handle via
// IsMemberLimitConflict.
func (c *Client) CreateInviteLink(ctx context.Context, chatID int64, memberLimit int) (string, error) {
	params := url.Values{
		"chat_id":              {strconv.FormatInt(chatID, 10)},
		"creates_join_request": {"true"},
	}
	if memberLimit > 0 {
		params.Set("member_limit", strconv.Itoa(memberLimit))
	}
	invite, err := makeRequest[chatInviteLink](ctx, c, "createChatInviteLink", params)
	if err != nil {
		return "", err
	}
	return invite.InviteLink, nil
}

func (c *Client) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"user_id": {strconv.FormatInt(userID, 10)},
	}
	_, err := makeRequest[bool](ctx, c, "approveChatJoinRequest", params)
	return err
}

func (c *Client) DeclineJoinRequest(ctx context.Context, chatID, userID int64) error {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"user_id": {strconv.FormatInt(userID, 10)},
	}
	_, err := makeRequest[bool](ctx, c, "declineChatJoinRequest", params)
	return err
}

// DownloadFile fetches the contents of a file previously attached to a
// message (payment proofs).
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	params := url.Values{"file_id": {fileID}}
	meta, err := makeRequest[file](ctx, c, "getFile", params)
	if err != nil {
		return nil, err
	}
	if meta.FilePath == "" {
		return nil, fmt.Errorf("getFile: empty file path for %s", fileID)
	}

	endpoint := fmt.Sprintf("%s/file/bot%s/%s", c.apiBase, c.token, meta.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
