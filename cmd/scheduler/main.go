package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tg-pulse-bot/internal/domain"
	"tg-pulse-bot/internal/infra/config"
	"tg-pulse-bot/internal/infra/queue"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var refreshQueue domain.RefreshQueue
	if cfg.RabbitURL != "" {
		q, err := queue.NewRabbitRefreshQueue(cfg.RabbitURL, cfg.Queues.Refresh)
		if err != nil {
			log.Fatal().Err(err).Msg("scheduler: нет подключения к RabbitMQ")
		}
		refreshQueue = q
	} else if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		refreshQueue = queue.NewRedisRefreshQueue(rdb, cfg.Queues.Refresh)
	} else {
		log.Fatal().Msg("scheduler: не настроена ни одна очередь")
	}

	interval := cfg.Pulse.RefreshInterval
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("scheduler: старт")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler: остановка")
			return
		case <-ticker.C:
			job := domain.RefreshJob{
				ID:          uuid.NewString(),
				RequestedAt: time.Now().UTC(),
				Cause:       domain.RefreshCauseScheduled,
			}
			if err := refreshQueue.Enqueue(ctx, job); err != nil {
				log.Error().Err(err).Msg("scheduler: не удалось поставить задачу")
				continue
			}
			log.Info().Str("job_id", job.ID).Msg("scheduler: задача пересборки поставлена")
		}
	}
}
