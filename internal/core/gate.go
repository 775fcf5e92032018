package core

import (
	"context"
	"fmt"
	"strconv"

	"rubber-ducky/internal/telegram"

	"github.com/rs/zerolog/log"
)

// authorize decides whether a message may be processed. Group membership is
// the authorization boundary for group chats; private chats must be
// allowlisted or owned. A denied chat gets the request-access notice once
// per process lifetime, then is silently dropped.
func (e *Engine) authorize(ctx context.Context, msg *telegram.Message) bool {
	if isGroup(msg.Chat.Type) {
		return true
	}
	if e.store.IsAuthorized(strconv.FormatInt(msg.Chat.ID, 10)) {
		return true
	}
	if msg.From != nil && msg.From.ID == e.cfg.OwnerID {
		return true
	}

	e.mu.Lock()
	alreadyNoticed := e.noticed[msg.Chat.ID]
	e.noticed[msg.Chat.ID] = true
	e.mu.Unlock()

	if !alreadyNoticed {
		log.Info().
			Int64("chat_id", msg.Chat.ID).
			Str("username", msg.Chat.Username).
			Msg("unidentified user denied, sending notice")
		e.sendAsync(msg.Chat.ID, "🔒 This bot is invite-only. Message the owner if you want direct access.")
		e.sendAsync(e.cfg.OwnerID, fmt.Sprintf(
			"👤 Someone with chat ID %d is trying to access me. @%s `/add %d`",
			msg.Chat.ID, msg.Chat.Username, msg.Chat.ID))
	}
	return false
}
