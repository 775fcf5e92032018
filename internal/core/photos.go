package core

import (
	"context"
	"fmt"
	"strconv"

	"rubber-ducky/internal/storage"
	"rubber-ducky/internal/telegram"

	"github.com/rs/zerolog/log"
)

// relayPhoto forwards a private-chat photo to the broadcast channel with a
// like/dislike keyboard and records the relay. Failures are logged; the text
// pipeline continues regardless.
func (e *Engine) relayPhoto(ctx context.Context, msg *telegram.Message) {
	// Sizes arrive smallest first; relay the largest rendition.
	photo := msg.Photo[len(msg.Photo)-1]
	messageKey := strconv.FormatInt(msg.MessageID, 10)

	if err := e.store.SavePhotoLink(messageKey, storage.PhotoLink{
		Timestamp: msg.Date,
		ChannelID: msg.Chat.ID,
	}); err != nil {
		log.Error().Err(err).Str("message_id", messageKey).Msg("photo link persistence failed")
	}

	stream, err := e.tg.GetFileStream(ctx, photo.FileID)
	if err != nil {
		log.Warn().Err(err).Str("file_id", photo.FileID).Msg("photo download failed")
		return
	}
	defer stream.Close()

	var username string
	if msg.From != nil {
		username = msg.From.Username
	}
	caption := "@" + username
	if msg.Caption != "" {
		caption = fmt.Sprintf("%q - @%s", msg.Caption, username)
	}

	_, err = e.tg.SendPhoto(ctx, e.cfg.BroadcastChannelID, stream, caption,
		voteKeyboard(messageKey, e.store.GetTally(messageKey)))
	if err != nil {
		log.Warn().Err(err).Str("file_id", photo.FileID).Msg("photo relay failed")
		return
	}

	log.Info().
		Str("file_id", photo.FileID).
		Int64("channel_id", e.cfg.BroadcastChannelID).
		Msg("photo relayed to channel")
}
