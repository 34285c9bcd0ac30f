package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-pulse-bot/internal/adapters/bot"
	"tg-pulse-bot/internal/adapters/repo"
	"tg-pulse-bot/internal/domain"
	"tg-pulse-bot/internal/infra/cache"
	"tg-pulse-bot/internal/infra/config"
	"tg-pulse-bot/internal/infra/db"
	"tg-pulse-bot/internal/infra/log"
	"tg-pulse-bot/internal/infra/metrics"
	"tg-pulse-bot/internal/infra/queue"
	"tg-pulse-bot/internal/usecase/pulse"
	"tg-pulse-bot/internal/usecase/refresh"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	var snapshotCache domain.Cache
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		snapshotCache = cache.NewRedis(rdb)
	}

	var refreshQueue domain.RefreshQueue
	if cfg.RabbitURL != "" {
		refreshQueue, err = queue.NewRabbitRefreshQueue(cfg.RabbitURL, cfg.Queues.Refresh)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключиться к RabbitMQ")
		}
	} else if rdb != nil {
		refreshQueue = queue.NewRedisRefreshQueue(rdb, cfg.Queues.Refresh)
	}

	opts := pulse.Options{
		LookbackDays: cfg.Pulse.LookbackDays,
		TrendDays:    cfg.Pulse.TrendDays,
		MaxMessages:  cfg.Pulse.MaxMessages,
		MaxReactions: cfg.Pulse.MaxReactions,
		MaxUsers:     cfg.Pulse.MaxUsers,
	}.WithFloors()
	builder := pulse.NewService(repoAdapter, logger, opts)
	refreshService := refresh.NewService(builder, snapshotCache, refreshQueue, logger, cfg.Pulse.SnapshotTTL)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}

	h := bot.NewHandler(botAPI, logger, refreshService, repoAdapter, cfg.Pulse.LeaderboardSize)

	r := chi.NewRouter()
	r.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: ":8080", Handler: r}
	go func() {
		logger.Info().Msg("бот-гейтвей запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
