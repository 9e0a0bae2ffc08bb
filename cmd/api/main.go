package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-alert-filter/internal/dedup"
	"tg-alert-filter/internal/infra/cache"
	"tg-alert-filter/internal/infra/config"
	httpinfra "tg-alert-filter/internal/infra/http"
	applog "tg-alert-filter/internal/infra/log"
)

const dedupSnapshotKey = "engine:dedup_snapshot"

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisCache *cache.RedisCache
	if cfg.RedisAddr != "" {
		redisCache = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	srv := httpinfra.NewServer(logger)

	srv.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv.Router.Get("/debug/dedup", func(w http.ResponseWriter, r *http.Request) {
		if redisCache == nil {
			writeError(w, http.StatusServiceUnavailable, "redis is not configured")
			return
		}
		raw, err := redisCache.Get(dedupSnapshotKey)
		if err != nil {
			writeError(w, http.StatusNotFound, "no dedup snapshot available yet")
			return
		}
		var snapshot dedup.Snapshot
		if err := json.Unmarshal(raw, &snapshot); err != nil {
			logger.Error().Err(err).Msg("api: failed to decode dedup snapshot")
			writeError(w, http.StatusInternalServerError, "failed to decode dedup snapshot")
			return
		}
		writeJSON(w, snapshot)
	})

	go func() {
		if err := srv.Start(cfg.APIAddr); err != nil {
			logger.Error().Err(err).Msg("api: server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: graceful shutdown failed")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
