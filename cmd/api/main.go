package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tg-pulse-bot/internal/adapters/repo"
	"tg-pulse-bot/internal/domain"
	"tg-pulse-bot/internal/infra/cache"
	"tg-pulse-bot/internal/infra/config"
	"tg-pulse-bot/internal/infra/db"
	"tg-pulse-bot/internal/infra/metrics"
	"tg-pulse-bot/internal/infra/queue"
	"tg-pulse-bot/internal/usecase/pulse"
	"tg-pulse-bot/internal/usecase/refresh"
)

func main() {
	cfg := config.Load()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
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
			log.Fatal().Err(err).Msg("api: нет подключения к RabbitMQ")
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
	builder := pulse.NewService(repoAdapter, log.Logger, opts)
	refreshService := refresh.NewService(builder, snapshotCache, refreshQueue, log.Logger, cfg.Pulse.SnapshotTTL)

	go refreshService.Run(ctx)
	go func() {
		if _, err := refreshService.Rebuild(ctx); err != nil {
			log.Error().Err(err).Msg("api: первичная сборка модели не удалась")
		}
	}()

	limit := cfg.Pulse.LeaderboardSize
	if limit < 1 {
		limit = 1
	}

	snapshot := func(w http.ResponseWriter, r *http.Request) (*domain.Snapshot, bool) {
		if snap, ok := refreshService.Latest(); ok {
			return snap, true
		}
		snap, err := refreshService.Rebuild(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "модель недоступна")
			return nil, false
		}
		return snap, true
	}

	r := chi.NewRouter()

	r.Get("/api/v1/pulse/overview", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := snapshot(w, r)
		if !ok {
			return
		}
		writeJSON(w, pulse.BuildOverview(snap, limit))
	})

	r.Get("/api/v1/pulse/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := snapshot(w, r)
		if !ok {
			return
		}
		writeJSON(w, pulse.LeaderboardRows(snap, limit))
	})

	r.Get("/api/v1/pulse/users/{selector}", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := snapshot(w, r)
		if !ok {
			return
		}
		user := pulse.ResolveUser(snap, chi.URLParam(r, "selector"))
		if user == nil {
			writeError(w, http.StatusNotFound, "участник не найден")
			return
		}
		writeJSON(w, user)
	})

	r.Get("/api/v1/pulse/categories", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := snapshot(w, r)
		if !ok {
			return
		}
		writeJSON(w, pulse.CategoryBoards(snap, limit))
	})

	r.Get("/api/v1/pulse/channels", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := snapshot(w, r)
		if !ok {
			return
		}
		writeJSON(w, pulse.ChannelRows(snap, limit))
	})

	r.Get("/api/v1/pulse/heatmap", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := snapshot(w, r)
		if !ok {
			return
		}
		writeJSON(w, map[string]any{
			"messages": snap.HeatmapMessages,
			"cp":       snap.HeatmapCP,
		})
	})

	r.Get("/api/v1/pulse/graph", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := snapshot(w, r)
		if !ok {
			return
		}
		writeJSON(w, map[string]any{
			"edges": snap.TopEdges,
			"nodes": snap.TopNodes,
		})
	})

	r.Get("/api/v1/pulse/governance", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := snapshot(w, r)
		if !ok {
			return
		}
		writeJSON(w, pulse.BuildGovernance(snap, limit))
	})

	r.Get("/api/v1/pulse/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, repoAdapter.ProbeTables(r.Context()))
	})

	r.Post("/api/v1/pulse/refresh", func(w http.ResponseWriter, r *http.Request) {
		jobID, err := refreshService.EnqueueRefresh(r.Context(), domain.RefreshCauseManual, 0)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "очередь пересборки недоступна")
			return
		}
		writeJSON(w, map[string]string{"job_id": jobID})
	})

	srv := &http.Server{Addr: ":8080", Handler: r}
	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	go func() {
		log.Info().Msg("api: старт")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
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
