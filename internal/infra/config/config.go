package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Kyiv"`

	Geography struct {
		Oblast   string `envconfig:"MY_OBLAST"`
		City     string `envconfig:"MY_CITY"`
		District string `envconfig:"MY_DISTRICT"`
	} `envconfig:""`

	Filter struct {
		DedupWindowSecs          int64 `envconfig:"DEDUP_WINDOW_SECS" default:"180"`
		ContextWindowSecs        int64 `envconfig:"CONTEXT_WINDOW_SECS" default:"300"`
		UrgentCooldownSecs       int64 `envconfig:"URGENT_COOLDOWN_SECS" default:"20"`
		NegativeStatusCooldown   int64 `envconfig:"NEGATIVE_STATUS_COOLDOWN_SECS" default:"120"`
		ForwardAllThreats        bool  `envconfig:"FORWARD_ALL_THREATS" default:"false"`
		IdempotencyLRUCapacity   int   `envconfig:"IDEMPOTENCY_LRU_CAPACITY" default:"256"`
	} `envconfig:""`

	LLM struct {
		Enabled    bool   `envconfig:"LLM_ENABLED" default:"false"`
		Model      string `envconfig:"LLM_MODEL" default:"qwen2.5:7b"`
		Endpoint   string `envconfig:"LLM_ENDPOINT" default:"http://127.0.0.1:11434"`
		TimeoutMs  int    `envconfig:"LLM_TIMEOUT_MS" default:"3000"`
		APIKey     string `envconfig:"LLM_API_KEY"`
	} `envconfig:""`

	RunMode string `envconfig:"RUN_MODE" default:"live"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	Queue struct {
		Backend              string `envconfig:"QUEUE_BACKEND" default:"redis"`
		Key                  string `envconfig:"INBOUND_QUEUE_KEY" default:"inbound_messages"`
		RabbitManagementURL  string `envconfig:"RABBITMQ_MANAGEMENT_URL"`
		RabbitUser           string `envconfig:"RABBITMQ_USER"`
		RabbitPassword       string `envconfig:"RABBITMQ_PASSWORD"`
	} `envconfig:""`

	Telegram struct {
		BotToken string `envconfig:"TG_BOT_TOKEN"`
	} `envconfig:""`

	MTProto struct {
		APIID       int    `envconfig:"MTPROTO_API_ID"`
		APIHash     string `envconfig:"MTPROTO_API_HASH"`
		SessionName string `envconfig:"MTPROTO_SESSION_NAME" default:"engine"`
		Channels    string `envconfig:"MTPROTO_CHANNELS"`
		GlobalRPS   int    `envconfig:"MTPROTO_GLOBAL_RPS" default:"5"`
	} `envconfig:""`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	APIAddr     string `envconfig:"API_ADDR" default:":8080"`

	Replay struct {
		Speed        float64 `envconfig:"REPLAY_SPEED" default:"1.0"`
		StepMs       int     `envconfig:"REPLAY_STEP_MS" default:"0"`
		MinDelayMs   int     `envconfig:"REPLAY_MIN_DELAY_MS" default:"0"`
		MaxDelayMs   int     `envconfig:"REPLAY_MAX_DELAY_MS" default:"60000"`
		InputPath    string  `envconfig:"REPLAY_INPUT_PATH" default:"./dump.jsonl"`
	} `envconfig:""`

	DumpOutputPath string `envconfig:"DUMP_OUTPUT_PATH" default:"./dump.jsonl"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
