package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"rubber-ducky/internal/calendar"
	"rubber-ducky/internal/storage"
	"rubber-ducky/internal/telegram"

	"github.com/rs/zerolog/log"
)

// defaultHistoryLimit is the number of messages fetched when no limit is
// given. The /disc command always uses it: the historical limit argument was
// read from a token position the command split never fills, so in practice
// the default is the only value.
const defaultHistoryLimit = 100

const eventProtocolContext = "The user has sent you an event request. You'll create an event message with each of these items (and only those items, nothing more!) Please provide me with the 'Event Name', 'Description', 'Start Date' (in YYYY-MM-DD format), 'Start Time' (in hh:mm format), 'Location' (string), and 'Organizer' (string). If applicable, please also include any equipment required for the event 'Equipment'. If any information is missing, I will ask you to provide it before generating the complete event details. Once the event is fully complete and no modifications are required, generate the event details and include #event in the reply message. Organizer will be the user sending the message."

const helpText = "🤖 This is a chatbot powered by Rubber Ducky. You can use the following commands:\n\n/reload - Reset the conversation\n/help - Show this message"

// routeResult says what the router did with a message.
type routeResult int

const (
	// routeNone: no command matched, the free-text pipeline continues.
	routeNone routeResult = iota
	// routeHandled: the command completed, the pipeline stops here.
	routeHandled
	// routeStaged: the command staged context for the chat's next
	// free-text turn. This is a two-step protocol: /events or /disc now,
	// the actual question in the following message.
	routeStaged
)

// routeCommand classifies the message into exactly one command intent,
// first match wins.
func (e *Engine) routeCommand(ctx context.Context, msg *telegram.Message) routeResult {
	chatID := msg.Chat.ID
	text := e.stripMention(msg.Text)

	if text == "/reload" || text == "/reset" {
		e.resetSession(chatID)
		e.sendAsync(chatID, "🔄 Conversation has been reset, enjoy!")
		log.Info().Int64("chat_id", chatID).Msg("conversation reset")
		return routeHandled
	}

	if strings.HasPrefix(text, "/disc ") || strings.HasPrefix(text, "/discord ") {
		parts := strings.Fields(text)
		if len(parts) < 3 {
			e.sendAsync(chatID, "❌ Usage: /disc <guild_id> <channel_id>")
			return routeHandled
		}
		transcript, err := e.discord.FetchHistory(ctx, parts[1], parts[2], defaultHistoryLimit)
		if err != nil {
			log.Warn().Err(err).Str("guild", parts[1]).Str("channel", parts[2]).Msg("history fetch failed")
			transcript = "❌ Could not fetch messages from that channel."
		}
		e.stageContext(chatID, transcript)
		return routeStaged
	}

	if strings.HasPrefix(text, "/events") {
		today := calendar.Today(e.cfg.EventsTimezone)
		log.Info().Str("today", today).Msg("listing calendar events")

		events, err := e.calendar.ListEvents(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("event list fetch failed")
			e.stageContext(chatID, "❌ Could not fetch the event list.")
			return routeStaged
		}
		e.stageContext(chatID,
			"events for today and next few days (sourced from the event calendar) Today is "+
				today+calendar.FilterWindow(events, today))
		return routeStaged
	}

	if strings.HasPrefix(text, "/event") {
		e.stageContext(chatID, eventProtocolContext)
		return routeStaged
	}

	if strings.HasPrefix(text, "/add ") {
		if msg.From == nil || msg.From.ID != e.cfg.OwnerID {
			e.sendAsync(chatID, "❌ Only the bot owner can add users.")
			return routeHandled
		}
		rawID := strings.TrimSpace(strings.TrimPrefix(text, "/add "))
		if rawID == "" {
			e.sendAsync(chatID, "❌ Please provide a user ID to add.")
			return routeHandled
		}
		if err := e.store.AddAuthorized(rawID); err != nil {
			log.Error().Err(err).Str("user_id", rawID).Msg("failed to persist allowlist")
			e.sendAsync(chatID, "⛔️ Could not save the user list.")
			return routeHandled
		}
		e.sendAsync(chatID, fmt.Sprintf("✅ User %s has been added to the chat.", rawID))
		if addedID, err := strconv.ParseInt(rawID, 10, 64); err == nil {
			e.sendAsync(addedID, "✅ You've been added to the chat.")
		}
		return routeHandled
	}

	if strings.HasPrefix(text, "/channel ") {
		parts := strings.Fields(text)
		if len(parts) != 4 {
			e.sendAsync(chatID, "❌ Invalid command format. Usage: /channel <channel_name> <guild_id> <channel_id>")
			return routeHandled
		}
		alias := parts[1]
		if err := e.store.SetChannelLink(alias, storage.ChannelLink{Guild: parts[2], Channel: parts[3]}); err != nil {
			log.Error().Err(err).Str("alias", alias).Msg("failed to persist channel link")
			e.sendAsync(chatID, "⛔️ Could not save the channel link.")
			return routeHandled
		}
		e.sendAsync(chatID, fmt.Sprintf("✅ Channel link %s has been added.", alias))
		return routeHandled
	}

	if text == "/help" {
		e.sendAsync(chatID, helpText)
		return routeHandled
	}

	return routeNone
}

// stripMention removes the first @botName token and trims whitespace.
func (e *Engine) stripMention(text string) string {
	return strings.TrimSpace(strings.Replace(text, "@"+e.botName, "", 1))
}
