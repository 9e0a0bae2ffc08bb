package main

import (
	"context"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-alert-filter/internal/adapters/botgateway"
	"tg-alert-filter/internal/adapters/subscriberstore"
	"tg-alert-filter/internal/infra/config"
	"tg-alert-filter/internal/infra/db"
	applog "tg-alert-filter/internal/infra/log"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.PGDSN == "" {
		logger.Fatal().Msg("bot-gateway: PG_DSN is required")
	}
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: failed to connect to Postgres")
	}
	defer pool.Close()

	subscribers := subscriberstore.New(pool)
	if err := subscribers.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: failed to ensure subscriber schema")
	}

	if cfg.Telegram.BotToken == "" {
		logger.Fatal().Msg("bot-gateway: TG_BOT_TOKEN is required")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: failed to create bot API client")
	}

	gateway := botgateway.New(botAPI, subscribers, logger)

	logger.Info().Msg("bot-gateway: started")
	if err := gateway.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("bot-gateway: stopped")
	}
	logger.Info().Msg("bot-gateway: shut down")
}
