package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rubber-ducky/internal/ai"
	"rubber-ducky/internal/linkpreview"
	"rubber-ducky/internal/telegram"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// progressEditInterval is the minimum spacing between progressive edits of
// the placeholder reply. The first partial is shown immediately; partials
// inside the window are dropped (the final full-text edit follows anyway).
const progressEditInterval = 4 * time.Second

// converse runs one model turn for a message that neither the gate nor the
// router consumed. Turns are serialized per chat; unrelated chats proceed
// concurrently.
func (e *Engine) converse(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	chatKey := strconv.FormatInt(chatID, 10)

	e.chatLocks.Lock(chatKey)
	defer e.chatLocks.Unlock(chatKey)

	message := e.stripMention(msg.Text)

	// A channel-alias token replaces any staged context with channel history.
	if strings.HasPrefix(message, "#") {
		e.stageContext(chatID, e.resolveAlias(ctx, message))
	}

	if message == "" && e.session(chatID).PendingContext == "" {
		return
	}

	placeholder, err := e.tg.SendMessage(ctx, chatID, "🤔", &telegram.SendOptions{
		ReplyToMessageID: msg.MessageID,
	})
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("placeholder send failed")
		return
	}
	if err := e.tg.SendChatAction(ctx, chatID, "typing"); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("chat action failed")
	}

	message = e.enrichWithPreview(ctx, message)

	if staged := e.takeContext(chatID); staged != "" {
		log.Info().Int64("chat_id", chatID).Int("context_len", len(staged)).Msg("merging staged context")
		message += " context: " + staged
	}

	prompt := e.buildPrompt(msg, message)
	session := e.session(chatID)

	limiter := rate.NewLimiter(rate.Every(progressEditInterval), 1)
	onProgress := func(partial string) {
		if !limiter.Allow() {
			return
		}
		e.editReply(context.Background(), chatID, placeholder.MessageID, partial, false)
		if err := e.tg.SendChatAction(context.Background(), chatID, "typing"); err != nil {
			log.Warn().Err(err).Int64("chat_id", chatID).Msg("chat action failed")
		}
	}

	reply, err := e.provider.SendMessage(ctx, prompt, ai.Options{
		ThreadID:   session.ThreadID,
		ParentID:   session.CursorID,
		OnProgress: onProgress,
	})
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("model call failed")
		if ai.IsTokenExpired(err) {
			e.sendAsync(chatID, "🔑 Token has expired, please update the token.")
		} else {
			e.sendAsync(chatID, "🤖 Sorry, I'm having trouble connecting to the server, please try again later.")
		}
		return
	}

	e.setThread(chatID, reply.ThreadID, reply.ID)
	e.editReply(ctx, chatID, placeholder.MessageID, reply.Text, true)

	log.Info().
		Int64("chat_id", chatID).
		Str("thread_id", reply.ThreadID).
		Int("reply_len", len(reply.Text)).
		Msg("model turn complete")

	if strings.Contains(reply.Text, eventMarker) {
		e.handleEventReply(ctx, chatID, reply.Text)
	}
}

// resolveAlias turns "#alias [limit]" into channel history, or into a
// user-visible error string when the alias is unknown or the fetch fails.
func (e *Engine) resolveAlias(ctx context.Context, message string) string {
	parts := strings.Fields(message)
	alias := strings.TrimPrefix(parts[0], "#")

	limit := defaultHistoryLimit
	if len(parts) == 2 {
		if n, err := strconv.Atoi(parts[1]); err == nil && n > 0 {
			limit = n
		}
	}

	link, ok := e.store.GetChannelLink(alias)
	if !ok {
		return fmt.Sprintf("❌ Channel link %s not found.", alias)
	}

	log.Info().Str("alias", alias).Int("limit", limit).Msg("fetching channel history")
	transcript, err := e.discord.FetchHistory(ctx, link.Guild, link.Channel, limit)
	if err != nil {
		log.Warn().Err(err).Str("alias", alias).Msg("history fetch failed")
		return "❌ Could not fetch messages from that channel."
	}
	return transcript
}

// enrichWithPreview rewrites the message into an enrichment-aware prompt
// when it contains a URL with fetchable metadata. Any failure leaves the
// message untouched.
func (e *Engine) enrichWithPreview(ctx context.Context, message string) string {
	url := linkpreview.FirstURL(message)
	if url == "" {
		return message
	}

	preview, err := e.previews.Fetch(ctx, url)
	if err != nil || preview == nil {
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("link preview failed")
		}
		return message
	}

	var title, description, canonical string
	if preview.Title != "" {
		title = "Title: " + preview.Title + "\n"
	}
	if preview.Description != "" {
		description = "Description: " + preview.Description + "\n"
	}
	if preview.URL != "" {
		canonical = "URL: " + preview.URL + "\n"
	}
	return fmt.Sprintf("The user asked:\n%q\n\nThe following information was found on the web:\n%s%s%s\nWhat are your thoughts on this?",
		message, title, description, canonical)
}

// buildPrompt wraps the message with the persona preamble, sender identity
// and local send time, and the standing response instruction.
func (e *Engine) buildPrompt(msg *telegram.Message, message string) string {
	sent := time.Unix(msg.Date, 0).Local()
	dateString := sent.Format("01/02/2006")
	timeString := sent.Format("3:04:05 PM")

	var first, last string
	if msg.From != nil {
		first, last = msg.From.FirstName, msg.From.LastName
	}

	return fmt.Sprintf("You're Rubber Ducky (a chatbot). Message from %s %s (username: %s) on %s %s \n message:  %s. Respond in first person directly. Keep your response Short and simple unless asked otherwise.",
		first, last, msg.Chat.Username, dateString, timeString, message)
}

// editReply updates the placeholder message, skipping no-op and empty edits.
// Edit failures are logged, never propagated; a stale partial is acceptable
// because a final edit always follows a successful turn.
func (e *Engine) editReply(ctx context.Context, chatID, messageID int64, text string, markdown bool) {
	if strings.TrimSpace(text) == "" {
		return
	}
	opts := &telegram.SendOptions{}
	if markdown {
		opts.ParseMode = "Markdown"
	}
	if _, err := e.tg.EditMessageText(ctx, chatID, messageID, text, opts); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Int64("message_id", messageID).Msg("edit failed")
	}
}
