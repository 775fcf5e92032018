// Package discordx fetches channel history from Discord and renders it as a
// plain-text transcript the model can digest.
package discordx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Fetcher struct {
	session *discordgo.Session
}

// NewFetcher creates a REST-only Discord client; no gateway connection is
// opened for history reads.
func NewFetcher(token string) (*Fetcher, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &Fetcher{session: session}, nil
}

// FetchHistory returns the last limit messages of a channel as a transcript,
// newest first, with the channel name/topic and a closing instruction line.
func (f *Fetcher) FetchHistory(ctx context.Context, guildID, channelID string, limit int) (string, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	channel, err := f.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to fetch channel %s: %w", channelID, err)
	}
	if channel.GuildID != "" && guildID != "" && channel.GuildID != guildID {
		return "", fmt.Errorf("channel %s does not belong to guild %s", channelID, guildID)
	}

	messages, err := f.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to fetch messages from %s: %w", channelID, err)
	}

	return renderTranscript(channel, messages), nil
}

func renderTranscript(channel *discordgo.Channel, messages []*discordgo.Message) string {
	var b strings.Builder
	for _, m := range messages {
		date := m.Timestamp.In(time.Local)
		fmt.Fprintf(&b, "%s on %d/%d said \"\"\"%s\"\"\"\n",
			m.Author.Username, int(date.Month()), date.Day(), m.Content)
	}
	b.WriteString("Here are the latest messages from the channel in our Discord server. Please let me know if you have any thoughts on these messages.\n")
	fmt.Fprintf(&b, "Messages from %s\nTopic: %s\n", channel.Name, channel.Topic)
	b.WriteString("send me a summary of the conversations and list users with their emotion levels\n")

	return b.String()
}
