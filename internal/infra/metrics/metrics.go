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
	CollectorRPS = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "collector_rps",
		Help: "Текущий запросов в секунду при сборе",
	})
	CollectorErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collector_errors_total",
		Help: "Ошибки при выгрузке истории групп",
	})
	PulseBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pulse_build_seconds",
		Help:    "Время построения аналитической модели",
		Buckets: prometheus.DefBuckets,
	})
	PulseBuildErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulse_build_errors_total",
		Help: "Фатальные ошибки построения модели",
	})
	PulseRowsScanned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_rows_scanned_total",
		Help: "Количество строк, прочитанных при сканировании окна",
	}, []string{"source"})
	PulseTruncations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_truncations_total",
		Help: "Срабатывания жёстких лимитов окна по источникам",
	}, []string{"source"})
	PulseDegradedSources = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_degraded_sources_total",
		Help: "Деградированные выборки справочных источников",
	}, []string{"source"})
	RefreshJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refresh_jobs_total",
		Help: "Количество задач пересборки по причинам",
	}, []string{"cause"})
	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		CollectorRPS,
		CollectorErrors,
		PulseBuildSeconds,
		PulseBuildErrors,
		PulseRowsScanned,
		PulseTruncations,
		PulseDegradedSources,
		RefreshJobsTotal,
		BotSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
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
