// /internal/config/config.go
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all runtime settings. Credentials are required; everything
// else has a workable default.
type Config struct {
	TelegramToken string `env:"BOT_TOKEN,required"`
	DiscordToken  string `env:"DISCORD_TOKEN,required"`
	ModelAPIKey   string `env:"MODEL_API_KEY,required"`
	ModelBaseURL  string `env:"MODEL_BASE_URL" envDefault:"https://api.openai.com"`
	ModelName     string `env:"MODEL_NAME" envDefault:"gpt-3.5-turbo"`

	// OwnerID is the only user that may manage the allowlist and the
	// fallback authorization for private chats.
	OwnerID int64 `env:"OWNER_ID,required"`

	// BroadcastChannelID receives relayed photos and is itself excluded
	// from all message processing.
	BroadcastChannelID int64 `env:"BROADCAST_CHANNEL_ID,required"`

	StorageDir      string `env:"STORAGE_DIR" envDefault:"data"`
	CalendarBaseURL string `env:"CALENDAR_BASE_URL" envDefault:"https://zuzalu.city"`
	EventsTimezone  string `env:"EVENTS_TIMEZONE" envDefault:"Europe/Podgorica"`

	// BotAlias triggers the bot in group chats alongside @username mentions.
	BotAlias string `env:"BOT_ALIAS" envDefault:"ducky"`
}

func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using system environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
