package pulse

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tg-pulse-bot/internal/domain"
	"tg-pulse-bot/internal/infra/metrics"
)

// Options задаёт границы окна сканирования и жёсткие лимиты строк.
type Options struct {
	LookbackDays int
	TrendDays    int
	MaxMessages  int
	MaxReactions int
	MaxUsers     int
}

// WithFloors приводит значения к минимумам, защищающим от вырожденных сборок.
func (o Options) WithFloors() Options {
	if o.LookbackDays < 30 {
		o.LookbackDays = 30
	}
	if o.TrendDays < 1 {
		o.TrendDays = 1
	}
	if o.MaxMessages < 1000 {
		o.MaxMessages = 1000
	}
	if o.MaxReactions < 1000 {
		o.MaxReactions = 1000
	}
	if o.MaxUsers < 100 {
		o.MaxUsers = 100
	}
	return o
}

// Service строит аналитический снапшот сообщества по ограниченному окну.
type Service struct {
	store domain.EventStore
	log   zerolog.Logger
	opts  Options
}

// NewService создаёт сервис построения модели.
func NewService(store domain.EventStore, logger zerolog.Logger, opts Options) *Service {
	return &Service{
		store: store,
		log:   logger.With().Str("component", "pulse").Logger(),
		opts:  opts,
	}
}

// Build выполняет полный цикл: выборка окна, свёртка событий, деривация
// и ранжирование. Возвращаемый снапшот неизменяем; при фатальной ошибке
// выборки снапшот не строится вовсе.
func (s *Service) Build(ctx context.Context, now time.Time) (*domain.Snapshot, error) {
	start := time.Now()
	now = now.UTC()

	w, err := s.fetchWindow(ctx, now)
	if err != nil {
		metrics.PulseBuildErrors.Inc()
		return nil, err
	}

	acc := newAccumulator(now, w)
	for _, msg := range w.messages {
		acc.addMessage(msg)
	}
	for _, reaction := range w.reactions {
		acc.addReaction(reaction)
	}

	today := dayOf(now)
	for _, user := range acc.users {
		deriveUser(user, today)
	}

	snap := acc.snapshot(w, now)
	metrics.PulseBuildSeconds.Observe(time.Since(start).Seconds())
	s.log.Info().
		Int("messages", snap.Scope.Messages).
		Int("reactions", snap.Scope.Reactions).
		Int("users", snap.Scope.Users).
		Int("scan_days", snap.ScanDays).
		Dur("took", time.Since(start)).
		Msg("модель построена")
	return snap, nil
}

// dayOf нормализует момент времени к полуночи UTC.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// heatmapKey возвращает координаты тепловой карты: день недели
// (понедельник = 0) и час по UTC.
func heatmapKey(t time.Time) (weekday, hour int) {
	t = t.UTC()
	return (int(t.Weekday()) + 6) % 7, t.Hour()
}
