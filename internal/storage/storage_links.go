package storage

import (
	"github.com/rs/zerolog/log"
)

// ChannelLink maps a user-chosen alias to a Discord location.
type ChannelLink struct {
	Guild   string `json:"guild"`
	Channel string `json:"channel"`
}

// PhotoLink records a relayed photo for later cross-referencing.
type PhotoLink struct {
	Timestamp int64 `json:"timestamp"`
	ChannelID int64 `json:"channel_id"`
}

// SetChannelLink upserts the link for alias and persists the table.
func (s *Storage) SetChannelLink(alias string, link ChannelLink) error {
	s.channelLinks.Add(alias, link)
	return s.channelLinks.SaveToFile()
}

// GetChannelLink resolves an alias. The second result is false when the
// alias was never linked.
func (s *Storage) GetChannelLink(alias string) (ChannelLink, bool) {
	data, exists := s.channelLinks.Get(alias)
	if !exists {
		return ChannelLink{}, false
	}
	var link ChannelLink
	if err := decode(data, &link); err != nil {
		log.Warn().Err(err).Str("alias", alias).Msg("corrupt channel link record")
		return ChannelLink{}, false
	}
	return link, true
}

// SavePhotoLink records a relayed photo and persists the table.
func (s *Storage) SavePhotoLink(messageID string, link PhotoLink) error {
	s.photoLinks.Add(messageID, link)
	return s.photoLinks.SaveToFile()
}

// GetPhotoLink returns the relay record for a message id, if any.
func (s *Storage) GetPhotoLink(messageID string) (PhotoLink, bool) {
	data, exists := s.photoLinks.Get(messageID)
	if !exists {
		return PhotoLink{}, false
	}
	var link PhotoLink
	if err := decode(data, &link); err != nil {
		log.Warn().Err(err).Str("message_id", messageID).Msg("corrupt photo link record")
		return PhotoLink{}, false
	}
	return link, true
}
