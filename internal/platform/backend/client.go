package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trip-booking-backend/internal/common/logger"
)

// Client talks to the resource service that owns travelers, trips and
// registrations. Requests authenticate with the bot token header.
type Client struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
}

const botTokenHeader = "X-Bot-Token"

// APIError is returned when the resource service answers with an error
// status. Detail carries the decoded JSON body (or raw text) so callers
// can inspect validation payloads.
type APIError struct {
	StatusCode int
	Detail     any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend API request failed with status %d", e.StatusCode)
}

// DetailString extracts a human-readable message from the error payload,
// if the service provided one.
func (e *APIError) DetailString() string {
	switch d := e.Detail.(type) {
	case string:
		return d
	case map[string]any:
		if s, ok := d["detail"].(string); ok {
			return s
		}
	}
	return ""
}

// IsDuplicateRegistration reports whether err is the validation error the
// service raises for a second registration on the same (trip, traveler)
// pair.
func IsDuplicateRegistration(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	detail, ok := apiErr.Detail.(map[string]any)
	if !ok {
		return false
	}
	if msgs, ok := detail["non_field_errors"].([]any); ok && len(msgs) > 0 {
		if msg, ok := msgs[0].(string); ok && strings.Contains(strings.ToLower(msg), "unique") {
			return true
		}
	}
	_, hasTraveler := detail["traveler"]
	return hasTraveler
}

func New(baseURL, botToken string, timeout time.Duration) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		botToken:   botToken,
	}
}

// page is the resource service's pagination envelope.
type page[T any] struct {
	Results []T     `json:"results"`
	Next    *string `json:"next"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, form url.Values, out any) error {
	endpoint := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		endpoint = c.baseURL + path
	}
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	return c.send(req, method, path, out)
}

func (c *Client) doMultipart(ctx context.Context, path string, fields map[string]string, fileField string, att *Attachment, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("write field %s: %w", key, err)
		}
	}
	if att != nil {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, att.Filename)}
		header["Content-Type"] = []string{att.ContentType}
		part, err := writer.CreatePart(header)
		if err != nil {
			return fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(att.Data); err != nil {
			return fmt.Errorf("write file part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.send(req, http.MethodPost, path, out)
}

func (c *Client) send(req *http.Request, method, path string, out any) error {
	req.Header.Set(botTokenHeader, c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
			var detail any
			if err := json.Unmarshal(body, &detail); err == nil {
				apiErr.Detail = detail
			}
		}
		if apiErr.Detail == nil {
			apiErr.Detail = string(body)
		}
		logger.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("Backend API error")
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// listAll fetches every page of a listing, following "next" links
// transparently. Plain-array responses are accepted as a single page.
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var items []T
	next := path

	for next != "" {
		var raw json.RawMessage
		if err := c.do(ctx, http.MethodGet, next, query, nil, &raw); err != nil {
			return nil, err
		}
		query = nil // the next link already carries its parameters

		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var batch []T
			if err := json.Unmarshal(trimmed, &batch); err != nil {
				return nil, fmt.Errorf("parse listing: %w", err)
			}
			return append(items, batch...), nil
		}

		var pg page[T]
		if err := json.Unmarshal(trimmed, &pg); err != nil {
			return nil, fmt.Errorf("parse listing page: %w", err)
		}
		items = append(items, pg.Results...)
		if pg.Next == nil {
			break
		}
		next = *pg.Next
	}

	return items, nil
}

// FindTravelerByTelegramID returns the traveler registered with the given
// Telegram identity, or nil when none exists.
func (c *Client) FindTravelerByTelegramID(ctx context.Context, telegramID string) (*Traveler, error) {
	travelers, err := listAll[Traveler](ctx, c, "travelers/", url.Values{"telegram_id": {telegramID}})
	if err != nil {
		return nil, err
	}
	if len(travelers) == 0 {
		return nil, nil
	}
	return &travelers[0], nil
}

func (c *Client) CreateTraveler(ctx context.Context, fields TravelerFields) (*Traveler, error) {
	var traveler Traveler
	if err := c.do(ctx, http.MethodPost, "travelers/", nil, travelerForm(fields), &traveler); err != nil {
		return nil, err
	}
	return &traveler, nil
}

func (c *Client) UpdateTraveler(ctx context.Context, travelerID string, fields TravelerFields) (*Traveler, error) {
	var traveler Traveler
	if err := c.do(ctx, http.MethodPatch, "travelers/"+travelerID+"/", nil, travelerForm(fields), &traveler); err != nil {
		return nil, err
	}
	return &traveler, nil
}

func travelerForm(fields TravelerFields) url.Values {
	return url.Values{
		"first_name":      {fields.FirstName},
		"last_name":       {fields.LastName},
		"phone_number":    {fields.PhoneNumber},
		"telegram_handle": {fields.TelegramHandle},
		"telegram_id":     {fields.TelegramID},
		"extra_info":      {fields.ExtraInfo},
	}
}

func (c *Client) ListTrips(ctx context.Context, status string) ([]Trip, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	return listAll[Trip](ctx, c, "trips/", query)
}

func (c *Client) GetTrip(ctx context.Context, tripID string) (*Trip, error) {
	var trip Trip
	if err := c.do(ctx, http.MethodGet, "trips/"+tripID+"/", nil, nil, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

func (c *Client) CreateRegistration(ctx context.Context, fields RegistrationFields, proof *Attachment) (*Registration, error) {
	form := map[string]string{
		"trip":         fields.TripID,
		"traveler":     fields.TravelerID,
		"quoted_price": fields.QuotedPrice,
		"paid_amount":  fields.PaidAmount,
	}
	if fields.PaymentNote != "" {
		form["payment_note"] = fields.PaymentNote
	}

	var registration Registration
	if err := c.doMultipart(ctx, "user-trips/", form, "payment_proof", proof, &registration); err != nil {
		return nil, err
	}
	return &registration, nil
}

func (c *Client) ListRegistrations(ctx context.Context, filter RegistrationFilter) ([]Registration, error) {
	query := url.Values{}
	if filter.TravelerID != "" {
		query.Set("traveler", filter.TravelerID)
	}
	if filter.TripID != "" {
		query.Set("trip", filter.TripID)
	}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query.Set("payment_status", filter.PaymentStatus)
	}
	if filter.GroupJoined != nil {
		query.Set("group_joined", strconv.FormatBool(*filter.GroupJoined))
	}
	return listAll[Registration](ctx, c, "user-trips/", query)
}

func (c *Client) GetRegistration(ctx context.Context, registrationID string) (*Registration, error) {
	var registration Registration
	if err := c.do(ctx, http.MethodGet, "user-trips/"+registrationID+"/", nil, nil, &registration); err != nil {
		return nil, err
	}
	return &registration, nil
}

// ReportJoinOutcome records the result of a group-join attempt. Success
// stamps group_joined_at and clears the error; failure requires an error
// message and stores it verbatim.
func (c *Client) ReportJoinOutcome(ctx context.Context, registrationID string, success bool, errMsg string) (*Registration, error) {
	form := url.Values{"success": {strconv.FormatBool(success)}}
	if !success {
		if errMsg == "" {
			errMsg = "Unable to add traveler to group."
		}
		form.Set("error", errMsg)
	}

	var registration Registration
	if err := c.do(ctx, http.MethodPost, "user-trips/"+registrationID+"/group-join/", nil, form, &registration); err != nil {
		return nil, err
	}
	return &registration, nil
}

func (c *Client) LinkTripGroup(ctx context.Context, tripID string, chatID int64, inviteLink string) (*Trip, error) {
	form := url.Values{"chat_id": {strconv.FormatInt(chatID, 10)}}
	if inviteLink != "" {
		form.Set("invite_link", inviteLink)
	}

	var trip Trip
	if err := c.do(ctx, http.MethodPost, "trips/"+tripID+"/link-group/", nil, form, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var settings Settings
	if err := c.do(ctx, http.MethodGet, "settings/", nil, nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Ping verifies the resource service is reachable and accepts our token.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetSettings(ctx)
	return err
}
