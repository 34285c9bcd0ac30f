package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tg-pulse-bot/internal/adapters/mtproto"
	"tg-pulse-bot/internal/adapters/repo"
	"tg-pulse-bot/internal/domain"
	"tg-pulse-bot/internal/infra/config"
	"tg-pulse-bot/internal/infra/db"
	applog "tg-pulse-bot/internal/infra/log"
	"tg-pulse-bot/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	if cfg.Telegram.APIID == 0 || cfg.Telegram.APIHash == "" {
		logger.Fatal().Msg("collector: не указаны токены MTProto (TG_API_ID, TG_API_HASH)")
	}
	session := &mtproto.SessionInMemory{}
	collector, err := mtproto.NewCollector(cfg.Telegram.APIID, cfg.Telegram.APIHash, session, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: не удалось создать MTProto клиента")
	}

	worker := &ingestWorker{
		log:       logger.With().Str("component", "collector").Logger(),
		store:     repoAdapter,
		channels:  repoAdapter,
		collector: collector,
		interval:  cfg.Collector.Interval,
		window:    cfg.Collector.Window,
	}

	logger.Info().Msg("collector: запуск цикла выгрузки")
	worker.Run(ctx)
	logger.Info().Msg("collector: остановлен")
}

type ingestWorker struct {
	log       zerolog.Logger
	store     domain.IngestStore
	channels  domain.EventStore
	collector *mtproto.Collector
	interval  time.Duration
	window    time.Duration
}

func (w *ingestWorker) Run(ctx context.Context) {
	if w.interval < time.Minute {
		w.interval = time.Minute
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.collectOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.collectOnce(ctx)
		}
	}
}

func (w *ingestWorker) collectOnce(ctx context.Context) {
	since := time.Now().UTC().Add(-w.window)
	channels, err := w.channels.ListChannels(ctx)
	if err != nil {
		metrics.CollectorErrors.Inc()
		w.log.Error().Err(err).Msg("collector: не удалось получить список каналов")
		return
	}
	if len(channels) == 0 {
		w.log.Warn().Msg("collector: справочник каналов пуст, выгружать нечего")
		return
	}
	for _, channel := range channels {
		messages, reactions, err := w.collector.CollectWindow(ctx, channel, since)
		if err != nil {
			metrics.CollectorErrors.Inc()
			w.log.Error().Err(err).Int64("channel", channel.ChannelID).Msg("collector: выгрузка канала не удалась")
			continue
		}
		if err := w.store.SaveMessages(ctx, messages); err != nil {
			metrics.CollectorErrors.Inc()
			w.log.Error().Err(err).Int64("channel", channel.ChannelID).Msg("collector: не удалось сохранить сообщения")
			continue
		}
		if err := w.store.SaveReactions(ctx, reactions); err != nil {
			metrics.CollectorErrors.Inc()
			w.log.Error().Err(err).Int64("channel", channel.ChannelID).Msg("collector: не удалось сохранить реакции")
			continue
		}
		w.log.Info().
			Int64("channel", channel.ChannelID).
			Int("messages", len(messages)).
			Int("reactions", len(reactions)).
			Msg("collector: канал выгружен")
	}
}
