// Package calendar talks to the external event-calendar HTTP API.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Event is the subset of the calendar's session record the bot renders.
type Event struct {
	Name        string   `json:"name"`
	StartDate   string   `json:"startDate"`
	StartTime   string   `json:"startTime"`
	Location    string   `json:"location"`
	Duration    string   `json:"duration"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Events      struct {
		Name    string `json:"name"`
		EndTime string `json:"endTime"`
	} `json:"events"`
}

type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 25 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ListEvents fetches the full session list.
func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/fetchSessionsByUserId/1", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("calendar http %d: %s", resp.StatusCode, strings.TrimSpace(string(body[:min(len(body), 256)])))
	}

	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("calendar list decode: %w", err)
	}
	return events, nil
}

// CreateRequest carries the fields the bot extracts from a model reply.
type CreateRequest struct {
	Name        string
	Description string
	Organizer   string
	Date        string // YYYY-MM-DD
	Time        string // hh:mm, 24-hour
	Location    string
	Equipment   string
	Tags        []string
}

// CreateEvent posts a new session. Fields the bot does not collect are fixed
// to the values the calendar expects for open sessions.
func (c *Client) CreateEvent(ctx context.Context, r CreateRequest) error {
	payload := map[string]any{
		"description":     "<p>" + r.Description + "</p>",
		"name":            r.Name,
		"team_members":    []map[string]string{{"name": r.Organizer, "role": "Speaker"}},
		"startDate":       r.Date + "T18:36:58.000Z",
		"startTime":       r.Time,
		"location":        "Other",
		"custom_location": r.Location,
		"tags":            r.Tags,
		"info":            r.Description + " ",
		"event_id":        101,
		"hasTicket":       false,
		"duration":        "69",
		"format":          "Live",
		"level":           "Beginner",
		"equipment":       r.Equipment,
		"track":           "Other",
		"event_type":      "Workshop",
		"event_slug":      "open-sessions-series",
		"event_item_id":   130,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/createSession", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("calendar create http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// FilterWindow renders the events whose start date falls within
// [today-8 days, today+3 days). today is an ISO calendar date.
func FilterWindow(events []Event, today string) string {
	base, err := time.Parse("2006-01-02", today)
	if err != nil {
		return ""
	}
	start := base.AddDate(0, 0, -8)
	end := base.AddDate(0, 0, 3)

	var kept []Event
	for _, e := range events {
		d, err := time.Parse("2006-01-02", normalizeDate(e.StartDate))
		if err != nil {
			continue
		}
		if !d.Before(start) && d.Before(end) {
			kept = append(kept, e)
		}
	}
	return Simplify(kept)
}

// Simplify renders events one per line for prompt context.
func Simplify(events []Event) string {
	var b strings.Builder
	for _, e := range events {
		b.WriteString("-")
		fmt.Fprintf(&b, "Name: %s", e.Name)
		fmt.Fprintf(&b, "Date: %s %s ", e.StartDate, e.StartTime)
		fmt.Fprintf(&b, "at %s ending at %s for %s mins\n", e.Location, e.Events.EndTime, e.Duration)
	}
	return b.String()
}

// Today returns the current calendar date in the named timezone, falling
// back to UTC if the zone is unknown.
func Today(timezone string) string {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc).Format("2006-01-02")
}

// normalizeDate trims a full timestamp down to its date part.
func normalizeDate(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}
