// cmd/bot/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rubber-ducky/internal/ai"
	"rubber-ducky/internal/calendar"
	"rubber-ducky/internal/config"
	"rubber-ducky/internal/core"
	"rubber-ducky/internal/discordx"
	"rubber-ducky/internal/linkpreview"
	"rubber-ducky/internal/storage"
	"rubber-ducky/internal/telegram"
	v "rubber-ducky/internal/version"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Str("app", v.AppName).Str("version", v.AppVersion).Msg("starting bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	store, err := storage.New(cfg.StorageDir)
	if err != nil {
		log.Fatal().Err(err).Msg("storage error")
	}
	defer store.Close()

	tg := telegram.NewClient(nil, "", cfg.TelegramToken)
	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram getMe failed")
	}
	if me.Username == "" {
		log.Fatal().Msg("bot username not found")
	}
	log.Info().Str("username", me.Username).Msg("🤖 bot identified")

	discord, err := discordx.NewFetcher(cfg.DiscordToken)
	if err != nil {
		log.Fatal().Err(err).Msg("discord client error")
	}

	engine := core.NewEngine(
		cfg,
		store,
		tg,
		ai.NewChatGPTProvider(cfg.ModelBaseURL, cfg.ModelAPIKey, cfg.ModelName),
		discord,
		linkpreview.NewFetcher(),
		calendar.NewClient(cfg.CalendarBaseURL),
		me.Username,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- poll(ctx, tg, engine)
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("poll loop error")
		}
		cancel()
	case <-ctx.Done():
	}

	engine.Flush()
	log.Info().Msg("bot exited cleanly")
}

// poll long-polls for updates and hands each one to the engine on its own
// goroutine; the engine serializes per chat and per message internally.
func poll(ctx context.Context, tg *telegram.Client, engine *core.Engine) error {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		updates, next, err := tg.GetUpdates(ctx, offset, 30*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Msg("getUpdates failed")
			time.Sleep(time.Second)
			continue
		}
		offset = next

		for _, u := range updates {
			go engine.HandleUpdate(ctx, u)
		}
	}
}
