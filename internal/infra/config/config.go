package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"UTC"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
		APIID      int    `envconfig:"TG_API_ID"`
		APIHash    string `envconfig:"TG_API_HASH"`
	} `envconfig:""`

	MTProto struct {
		GlobalRPS int `envconfig:"MTPROTO_GLOBAL_RPS" default:"20"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Pulse struct {
		LookbackDays    int           `envconfig:"PULSE_LOOKBACK_DAYS" default:"90"`
		TrendDays       int           `envconfig:"PULSE_TREND_DAYS" default:"14"`
		MaxMessages     int           `envconfig:"PULSE_MAX_MESSAGES" default:"50000"`
		MaxReactions    int           `envconfig:"PULSE_MAX_REACTIONS" default:"50000"`
		MaxUsers        int           `envconfig:"PULSE_MAX_USERS" default:"5000"`
		LeaderboardSize int           `envconfig:"PULSE_LEADERBOARD_SIZE" default:"10"`
		RefreshInterval time.Duration `envconfig:"PULSE_REFRESH_INTERVAL" default:"15m"`
		SnapshotTTL     time.Duration `envconfig:"PULSE_SNAPSHOT_TTL" default:"30m"`
	} `envconfig:""`

	Collector struct {
		Interval time.Duration `envconfig:"COLLECTOR_INTERVAL" default:"10m"`
		Window   time.Duration `envconfig:"COLLECTOR_WINDOW" default:"24h"`
	} `envconfig:""`

	Queues struct {
		Refresh string `envconfig:"REFRESH_QUEUE_KEY" default:"pulse_refresh_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
