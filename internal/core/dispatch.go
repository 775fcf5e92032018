package core

import (
	"context"
	"strings"

	"rubber-ducky/internal/telegram"

	"github.com/rs/zerolog/log"
)

// HandleUpdate is the process entry point for one inbound event. The poll
// loop calls it on its own goroutine per update; the engine serializes per
// chat and per message internally.
func (e *Engine) HandleUpdate(ctx context.Context, u telegram.Update) {
	switch {
	case u.CallbackQuery != nil:
		e.HandleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		e.HandleMessage(ctx, u.Message)
	case u.ChannelPost != nil:
		e.HandleMessage(ctx, u.ChannelPost)
	}
}

// HandleMessage sequences the pipeline: photo relay, access gate, group
// filter, command router, conversation engine.
func (e *Engine) HandleMessage(ctx context.Context, msg *telegram.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	// The broadcast channel is a sink, never a source.
	if chatID == e.cfg.BroadcastChannelID {
		return
	}

	if msg.Chat.Type == "private" && len(msg.Photo) > 0 {
		e.relayPhoto(ctx, msg)
	}

	if msg.Text == "" {
		return
	}

	if !e.authorize(ctx, msg) {
		return
	}

	if isGroup(msg.Chat.Type) && !e.groupGate(msg) {
		return
	}

	switch e.routeCommand(ctx, msg) {
	case routeHandled:
		return
	case routeStaged:
		// Staged context waits for the chat's next free-text turn.
		return
	}

	log.Info().
		Int64("chat_id", chatID).
		Str("username", msg.Chat.Username).
		Msg("message accepted for conversation")

	e.converse(ctx, msg)
}

func isGroup(chatType string) bool {
	return chatType == "group" || chatType == "supergroup"
}

// groupGate decides whether a group message is addressed to the bot. The
// chosen reading: slash commands always pass; otherwise the text must
// mention the bot's @username or its alias, or reply to one of the bot's
// messages. A tagged reply stages the replied-to message as context.
func (e *Engine) groupGate(msg *telegram.Message) bool {
	text := msg.Text

	if strings.HasPrefix(text, "/") {
		return true
	}

	lower := strings.ToLower(text)
	addressed := strings.Contains(text, "@"+e.botName) ||
		(e.cfg.BotAlias != "" && strings.Contains(lower, strings.ToLower(e.cfg.BotAlias)))

	if addressed {
		if msg.ReplyTo != nil && msg.ReplyTo.From != nil {
			e.stageContext(msg.Chat.ID,
				"The user is tagging you in this message, written by "+
					msg.ReplyTo.From.FirstName+", and the message is: "+msg.ReplyTo.Text)
		}
		log.Info().
			Int64("chat_id", msg.Chat.ID).
			Str("username", msg.Chat.Username).
			Msg("group message addressed to bot")
		return true
	}

	if msg.ReplyTo != nil && msg.ReplyTo.From != nil && msg.ReplyTo.From.Username == e.botName {
		return true
	}

	return false
}

// sendAsync fires a notification-style send in the background; failures are
// logged and never reach the caller.
func (e *Engine) sendAsync(chatID int64, text string) {
	e.notify.Add(1)
	go func() {
		defer e.notify.Done()
		if _, err := e.tg.SendMessage(context.Background(), chatID, text, nil); err != nil {
			log.Warn().Err(err).Int64("chat_id", chatID).Msg("notification send failed")
		}
	}()
}
