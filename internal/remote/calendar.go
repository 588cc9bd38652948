package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// EventTime carries either a zoned timestamp (timed event) or a bare date
// (all-day event); exactly one of DateTime/Date is set.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type ReminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

type EventReminders struct {
	UseDefault bool               `json:"useDefault"`
	Overrides  []ReminderOverride `json:"overrides,omitempty"`
}

type Event struct {
	ID         string          `json:"id,omitempty"`
	Status     string          `json:"status,omitempty"`
	Summary    string          `json:"summary,omitempty"`
	Start      *EventTime      `json:"start,omitempty"`
	End        *EventTime      `json:"end,omitempty"`
	Recurrence []string        `json:"recurrence,omitempty"`
	Reminders  *EventReminders `json:"reminders,omitempty"`
}

func (c *Client) InsertEvent(ctx context.Context, event Event) (Event, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.calendarBase, url.PathEscape(c.calendarID))
	var out Event
	if err := c.doJSON(ctx, "calendar", http.MethodPost, endpoint, event, &out); err != nil {
		return Event{}, err
	}
	return out, nil
}

func (c *Client) PatchEvent(ctx context.Context, eventID string, event Event) (Event, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", c.calendarBase, url.PathEscape(c.calendarID), url.PathEscape(eventID))
	var out Event
	if err := c.doJSON(ctx, "calendar", http.MethodPatch, endpoint, event, &out); err != nil {
		return Event{}, err
	}
	return out, nil
}

// DeleteEvent treats an already-gone event (404 or 410) as success so that
// repeated cleanup passes stay idempotent.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", c.calendarBase, url.PathEscape(c.calendarID), url.PathEscape(eventID))
	err := c.doJSON(ctx, "calendar", http.MethodDelete, endpoint, nil, nil)
	if err != nil && errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// SearchEvents performs a free-text search over the calendar without
// expanding recurring events into instances.
func (c *Client) SearchEvents(ctx context.Context, text string, max int) ([]Event, error) {
	if max <= 0 {
		max = 10
	}
	q := url.Values{}
	q.Set("q", text)
	q.Set("maxResults", strconv.Itoa(max))
	q.Set("singleEvents", "false")
	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", c.calendarBase, url.PathEscape(c.calendarID), q.Encode())
	var out struct {
		Items []Event `json:"items"`
	}
	if err := c.doJSON(ctx, "calendar", http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}
