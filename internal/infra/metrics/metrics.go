package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	MessagesProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_processed_total",
		Help: "Количество входящих сообщений, обработанных оркестратором",
	}, []string{"channel"})

	AlertsForwardedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_forwarded_total",
		Help: "Количество алертов, отправленных подписчикам",
	}, []string{"threat_kind"})

	AlertsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_skipped_total",
		Help: "Количество сообщений, пропущенных без рассылки",
	}, []string{"reason"})

	DedupTableSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dedup_table_size",
		Help: "Текущий размер таблицы дедупликации",
	})

	ContextWindowSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "context_window_size",
		Help: "Текущий размер контекстного окна канала",
	}, []string{"channel"})

	LLMVerifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "llm_verify_duration_seconds",
		Help:    "Длительность обращения к вторичному LLM-фильтру",
		Buckets: prometheus.DefBuckets,
	})

	BroadcastSendTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_send_total",
		Help: "Количество попыток доставки алерта подписчику",
	}, []string{"outcome"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		MessagesProcessedTotal,
		AlertsForwardedTotal,
		AlertsSkippedTotal,
		DedupTableSize,
		ContextWindowSize,
		LLMVerifyDuration,
		BroadcastSendTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	LLMVerifyDuration.Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// IncMessageProcessed увеличивает счётчик обработанных сообщений по каналу.
func IncMessageProcessed(channel string) {
	MessagesProcessedTotal.WithLabelValues(channel).Inc()
}

// IncAlertForwarded увеличивает счётчик разосланных алертов по типу угрозы.
func IncAlertForwarded(threatKind string) {
	AlertsForwardedTotal.WithLabelValues(threatKind).Inc()
}

// IncAlertSkipped увеличивает счётчик пропущенных сообщений по причине.
func IncAlertSkipped(reason string) {
	AlertsSkippedTotal.WithLabelValues(reason).Inc()
}

// SetDedupTableSize фиксирует текущий размер таблицы дедупликации.
func SetDedupTableSize(size int) {
	DedupTableSize.Set(float64(size))
}

// SetContextWindowSize фиксирует текущий размер контекстного окна канала.
func SetContextWindowSize(channel string, size int) {
	ContextWindowSize.WithLabelValues(channel).Set(float64(size))
}

// IncBroadcastSend увеличивает счётчик попыток доставки по исходу.
func IncBroadcastSend(outcome string) {
	BroadcastSendTotal.WithLabelValues(outcome).Inc()
}
