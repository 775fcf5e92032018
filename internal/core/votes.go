package core

import (
	"context"
	"fmt"
	"strings"

	"rubber-ducky/internal/storage"
	"rubber-ducky/internal/telegram"

	"github.com/rs/zerolog/log"
)

// HandleCallback applies a like/dislike button press. One vote per voter
// per message; re-voting replaces, re-clicking the same choice is a no-op
// that triggers neither a re-render nor a persistence write. Mutations are
// serialized per message id.
func (e *Engine) HandleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	if q.From == nil {
		return
	}
	action, messageID, found := strings.Cut(q.Data, "_")
	if !found || (action != storage.VoteLike && action != storage.VoteDislike) {
		return
	}
	voterID := fmt.Sprintf("%d", q.From.ID)

	defer func() {
		if err := e.tg.AnswerCallbackQuery(ctx, q.ID); err != nil {
			log.Warn().Err(err).Str("callback_id", q.ID).Msg("callback ack failed")
		}
	}()

	e.voteLocks.Lock(messageID)
	defer e.voteLocks.Unlock(messageID)

	voters := e.store.GetVotes(messageID)
	previous := voters[voterID]
	if previous == action {
		log.Info().Str("message_id", messageID).Str("voter", voterID).Msg("repeat vote ignored")
		return
	}

	tally := e.store.GetTally(messageID)
	switch previous {
	case storage.VoteLike:
		tally.Likes--
	case storage.VoteDislike:
		tally.Dislikes--
	}
	switch action {
	case storage.VoteLike:
		tally.Likes++
	case storage.VoteDislike:
		tally.Dislikes++
	}
	voters[voterID] = action

	if err := e.store.SetVotes(messageID, voters, tally); err != nil {
		log.Error().Err(err).Str("message_id", messageID).Msg("vote persistence failed")
	}

	log.Info().
		Str("message_id", messageID).
		Str("voter", voterID).
		Str("choice", action).
		Int("likes", tally.Likes).
		Int("dislikes", tally.Dislikes).
		Msg("vote recorded")

	if q.Message != nil && q.Message.Chat != nil {
		err := e.tg.EditMessageCaption(ctx, q.Message.Chat.ID, q.Message.MessageID,
			q.Message.Caption, &telegram.SendOptions{
				ParseMode:   "Markdown",
				ReplyMarkup: voteKeyboard(messageID, tally),
			})
		if err != nil {
			log.Warn().Err(err).Str("message_id", messageID).Msg("vote re-render failed")
		}
	}
}

// voteKeyboard renders the two-button control with current counts.
func voteKeyboard(messageID string, t storage.Tally) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: fmt.Sprintf("👍 %d", t.Likes), CallbackData: "like_" + messageID},
			{Text: fmt.Sprintf("👎 %d", t.Dislikes), CallbackData: "dislike_" + messageID},
		}},
	}
}
