package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"trip-booking-backend/internal/platform/backend"
)

// FormatTripSummary renders a trip card in HTML parse mode. Every
// backend-supplied field is escaped; dates and price are shown only when
// set.
func FormatTripSummary(trip *backend.Trip) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>", html.EscapeString(trip.Title))

	if trip.PlaceDetail != nil && trip.PlaceDetail.Name != "" {
		fmt.Fprintf(&b, "\nLocation: %s", html.EscapeString(trip.PlaceDetail.Name))
	}

	start := formatDate(trip.TripStart)
	end := formatDate(trip.TripEnd)
	switch {
	case start != "" && end != "":
		fmt.Fprintf(&b, "\nDates: %s → %s", start, end)
	case start != "":
		fmt.Fprintf(&b, "\nStarts: %s", start)
	}

	if trip.DefaultPrice != "" {
		fmt.Fprintf(&b, "\nPrice: %s", html.EscapeString(trip.DefaultPrice))
	}

	if trip.Description != "" {
		fmt.Fprintf(&b, "\n\n%s", html.EscapeString(trip.Description))
	}
	return b.String()
}

// formatDate rewrites an ISO date as "02 Jan 2006", passing anything it
// cannot parse through unchanged.
func formatDate(iso string) string {
	if iso == "" {
		return ""
	}
	parsed, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return html.EscapeString(iso)
	}
	return parsed.Format("02 Jan 2006")
}
