package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"rubber-ducky/internal/calendar"

	"github.com/rs/zerolog/log"
)

// eventMarker flags a model reply that carries a completed event block.
const eventMarker = "#event"

var requiredEventKeys = []string{"Event Name", "Description", "Start Date", "Start Time", "Location", "Organizer"}

// PendingEvent is a fully parsed event block. Either all required fields are
// present or the parse fails as a whole.
type PendingEvent struct {
	Name        string
	Description string
	StartDate   string
	StartTime   string
	Location    string
	Organizer   string
	Equipment   string
}

// ExtractEvent scans reply lines for "Key: Value" pairs and assembles an
// event. It returns false when any required key is missing; no partial
// event is ever produced.
func ExtractEvent(reply string) (*PendingEvent, bool) {
	fields := map[string]string{}
	for _, line := range strings.Split(reply, "\n") {
		key, value, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "Start Time" {
			value = ConvertTo24Hour(value)
		}
		fields[key] = value
	}

	for _, key := range requiredEventKeys {
		if _, ok := fields[key]; !ok {
			log.Info().Str("missing", key).Msg("event block incomplete")
			return nil, false
		}
	}

	return &PendingEvent{
		Name:        fields["Event Name"],
		Description: fields["Description"],
		StartDate:   fields["Start Date"],
		StartTime:   fields["Start Time"],
		Location:    fields["Location"],
		Organizer:   fields["Organizer"],
		Equipment:   fields["Equipment"],
	}, true
}

// ConvertTo24Hour normalizes "h:mm AM/PM" to 24-hour "hh:mm". Noon stays
// 12:00, midnight becomes 00:00. Text without an AM/PM marker passes
// through unchanged.
func ConvertTo24Hour(t string) string {
	if !strings.Contains(t, "AM") && !strings.Contains(t, "PM") {
		return t
	}

	hourPart, rest, found := strings.Cut(t, ":")
	if !found {
		return t
	}
	minute, period, found := strings.Cut(rest, " ")
	if !found {
		return t
	}

	hour, err := strconv.Atoi(strings.TrimSpace(hourPart))
	if err != nil {
		return t
	}
	period = strings.ToUpper(strings.TrimSpace(period))
	if period == "PM" && hour != 12 {
		hour += 12
	} else if period == "AM" && hour == 12 {
		hour = 0
	}

	return fmt.Sprintf("%02d:%s", hour, minute)
}

// handleEventReply parses the event block out of a marked reply and forwards
// it to the calendar. Both parse and creation failures produce the same
// user-visible rejection.
func (e *Engine) handleEventReply(ctx context.Context, chatID int64, reply string) {
	event, ok := ExtractEvent(reply)
	if !ok {
		e.sendAsync(chatID, "⛔️ Could not create event. Please make sure its formatted correctly")
		return
	}

	err := e.calendar.CreateEvent(ctx, calendar.CreateRequest{
		Name:        event.Name,
		Description: event.Description,
		Organizer:   event.Organizer,
		Date:        event.StartDate,
		Time:        event.StartTime,
		Location:    event.Location,
		Equipment:   event.Equipment,
		Tags:        []string{"telegram"},
	})
	if err != nil {
		log.Error().Err(err).Str("event", event.Name).Msg("event creation failed")
		e.sendAsync(chatID, "⛔️ Could not create event. Please make sure its formatted correctly")
		return
	}

	log.Info().Str("event", event.Name).Str("date", event.StartDate).Msg("event created")
	e.sendAsync(chatID, "🎟 Event created! reply with /events to view it in the list")
}
