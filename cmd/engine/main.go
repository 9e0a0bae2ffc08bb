package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-alert-filter/internal/adapters/botgateway"
	"tg-alert-filter/internal/adapters/mtproto"
	"tg-alert-filter/internal/adapters/subscriberstore"
	"tg-alert-filter/internal/broadcast"
	contextwindow "tg-alert-filter/internal/context"
	"tg-alert-filter/internal/dedup"
	"tg-alert-filter/internal/detect"
	"tg-alert-filter/internal/domain"
	"tg-alert-filter/internal/geo"
	"tg-alert-filter/internal/idempotency"
	"tg-alert-filter/internal/infra/cache"
	"tg-alert-filter/internal/infra/config"
	"tg-alert-filter/internal/infra/db"
	applog "tg-alert-filter/internal/infra/log"
	"tg-alert-filter/internal/infra/metrics"
	"tg-alert-filter/internal/infra/openai"
	"tg-alert-filter/internal/infra/queue"
	"tg-alert-filter/internal/llmverify"
	"tg-alert-filter/internal/pipeline"
	"tg-alert-filter/internal/replay"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// dedupSnapshotKey is the Redis key cmd/engine periodically pushes the live
// dedup.Cache.Snapshot() to, so cmd/api's /debug/dedup route can read it
// across the process boundary.
const dedupSnapshotKey = "engine:dedup_snapshot"

const dedupSnapshotInterval = 5 * time.Second

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	if cfg.PGDSN == "" {
		logger.Fatal().Msg("engine: PG_DSN is required")
	}
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine: failed to connect to Postgres")
	}
	defer pool.Close()

	subscribers := subscriberstore.New(pool)
	if err := subscribers.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("engine: failed to ensure subscriber schema")
	}

	if cfg.Telegram.BotToken == "" {
		logger.Fatal().Msg("engine: TG_BOT_TOKEN is required")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine: failed to create bot API client")
	}
	gateway := botgateway.New(botAPI, subscribers, logger)
	bcast := broadcast.New(subscribers, gateway, logger)

	geography := geo.FromEnv()
	windows := contextwindow.NewStore(cfg.Filter.ContextWindowSecs)
	detector := detect.New(geography, windows)
	dedupCache := dedup.NewCache(
		time.Duration(cfg.Filter.UrgentCooldownSecs)*time.Second,
		time.Duration(cfg.Filter.NegativeStatusCooldown)*time.Second,
		time.Duration(cfg.Filter.DedupWindowSecs)*time.Second,
	)
	seen := idempotency.New(cfg.Filter.IdempotencyLRUCapacity)

	var verifier domain.Verifier
	if cfg.LLM.Enabled {
		client := openai.NewClient(cfg.LLM.APIKey, cfg.LLM.Endpoint+"/v1", time.Duration(cfg.LLM.TimeoutMs)*time.Millisecond)
		verifier = llmverify.New(client, cfg.LLM.Model, true, logger)
	}

	pl := pipeline.New(pipeline.Config{ForwardAllThreats: cfg.Filter.ForwardAllThreats}, windows, detector, verifier, dedupCache, seen, bcast, logger)

	// The long-poll command loop (/start, /subscribe, /unsubscribe) runs in
	// cmd/bot-gateway, a separate process — Telegram allows only one
	// getUpdates consumer per bot token, so engine only uses gateway as a
	// Sender here.

	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		go pushDedupSnapshots(ctx, redisCache, dedupCache, logger)
	}

	switch cfg.RunMode {
	case "replay":
		runReplay(ctx, cfg, pl, logger)
	case "dump_today":
		runDumpToday(ctx, cfg, pl, logger)
	default:
		runLive(ctx, cfg, pl, logger)
	}

	logger.Info().Msg("engine: stopped")
}

func runLive(ctx context.Context, cfg config.AppConfig, pl *pipeline.Pipeline, logger zerolog.Logger) {
	inbound := newInboundQueue(ctx, cfg, logger)
	if cfg.MTProto.APIID != 0 && cfg.MTProto.APIHash != "" {
		channels := splitChannels(cfg.MTProto.Channels)
		session := &mtproto.SessionInMemory{}
		collector, err := mtproto.NewCollector(cfg.MTProto.APIID, cfg.MTProto.APIHash, session, channels, cfg.MTProto.GlobalRPS, logger)
		if err != nil {
			logger.Error().Err(err).Msg("engine: failed to build MTProto collector")
		} else {
			go func() {
				err := collector.Run(ctx, func(msg domain.IncomingMessage) error {
					return inbound.Enqueue(ctx, msg)
				})
				if err != nil && ctx.Err() == nil {
					logger.Error().Err(err).Msg("engine: mtproto collector stopped")
				}
			}()
		}
	}

	for {
		msg, err := inbound.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("engine: failed to pop inbound message")
			time.Sleep(time.Second)
			continue
		}
		pl.Process(ctx, msg, time.Now().UTC())
	}
}

func runDumpToday(ctx context.Context, cfg config.AppConfig, pl *pipeline.Pipeline, logger zerolog.Logger) {
	writer, err := replay.NewDumpWriter(cfg.DumpOutputPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine: failed to open dump output")
	}
	defer writer.Close()

	inbound := newInboundQueue(ctx, cfg, logger)
	for {
		msg, err := inbound.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("engine: failed to pop inbound message")
			time.Sleep(time.Second)
			continue
		}
		if err := writer.Write(msg); err != nil {
			logger.Error().Err(err).Msg("engine: failed to append dump line")
		}
		pl.Process(ctx, msg, time.Now().UTC())
	}
}

func runReplay(ctx context.Context, cfg config.AppConfig, pl *pipeline.Pipeline, logger zerolog.Logger) {
	driver := replay.NewDriver(replay.Clock{
		Speed:      cfg.Replay.Speed,
		StepMs:     cfg.Replay.StepMs,
		MinDelayMs: cfg.Replay.MinDelayMs,
		MaxDelayMs: cfg.Replay.MaxDelayMs,
	}, logger)

	err := driver.Run(ctx, cfg.Replay.InputPath, func(msg domain.IncomingMessage, now time.Time) {
		pl.Process(ctx, msg, now)
	})
	if err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("engine: replay driver stopped")
	}
}

func newInboundQueue(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) domain.MessageQueue {
	if cfg.Queue.Backend == "rabbitmq" {
		amqpURL, err := rabbitAMQPURL(cfg.Queue.RabbitManagementURL, cfg.Queue.RabbitUser, cfg.Queue.RabbitPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("engine: failed to derive RabbitMQ AMQP URL")
		}
		q, err := queue.NewRabbitQueue(amqpURL, cfg.Queue.RabbitManagementURL, cfg.Queue.Key)
		if err != nil {
			logger.Fatal().Err(err).Msg("engine: failed to build RabbitMQ queue")
		}
		return q
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return queue.NewRedisQueue(client, cfg.Queue.Key)
}

// rabbitAMQPURL derives a pseudo-AMQP URL from the management API URL plus
// credentials, since NewRabbitQueue only inspects it for userinfo and vhost
// (and for scheme/host when no management URL is given).
func rabbitAMQPURL(managementURL, user, password string) (string, error) {
	parsed, err := url.Parse(managementURL)
	if err != nil {
		return "", fmt.Errorf("parse management url: %w", err)
	}
	scheme := "amqp"
	if parsed.Scheme == "https" {
		scheme = "amqps"
	}
	userinfo := ""
	if user != "" {
		userinfo = url.UserPassword(user, password).String() + "@"
	}
	return fmt.Sprintf("%s://%s%s/", scheme, userinfo, parsed.Host), nil
}

func pushDedupSnapshots(ctx context.Context, redisCache *cache.RedisCache, dedupCache *dedup.Cache, logger zerolog.Logger) {
	ticker := time.NewTicker(dedupSnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entries, cooldowns := dedupCache.Snapshot()
			payload, err := json.Marshal(dedup.Snapshot{Entries: entries, Cooldowns: cooldowns, UpdatedAt: time.Now().UTC()})
			if err != nil {
				logger.Warn().Err(err).Msg("engine: failed to marshal dedup snapshot")
				continue
			}
			if err := redisCache.Set(dedupSnapshotKey, payload, 2*dedupSnapshotInterval); err != nil {
				logger.Warn().Err(err).Msg("engine: failed to push dedup snapshot")
			}
		}
	}
}

func splitChannels(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
