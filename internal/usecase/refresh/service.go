package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-pulse-bot/internal/domain"
	"tg-pulse-bot/internal/infra/metrics"
)

const snapshotCacheKey = "pulse:snapshot"

// ErrNoQueue возвращается при попытке поставить задачу без настроенной очереди.
var ErrNoQueue = errors.New("очередь пересборки не настроена")

// Builder строит снапшот на указанный момент времени.
type Builder interface {
	Build(ctx context.Context, now time.Time) (*domain.Snapshot, error)
}

// Service хранит последний успешный снапшот и управляет его пересборкой.
// Ядро модели остаётся без состояния: вся изменяемость живёт здесь.
type Service struct {
	builder Builder
	cache   domain.Cache
	queue   domain.RefreshQueue
	log     zerolog.Logger
	ttl     time.Duration

	mu      sync.RWMutex
	current *domain.Snapshot
}

// NewService создаёт сервис пересборки. cache и queue могут быть nil.
func NewService(builder Builder, cache domain.Cache, queue domain.RefreshQueue, logger zerolog.Logger, ttl time.Duration) *Service {
	return &Service{
		builder: builder,
		cache:   cache,
		queue:   queue,
		log:     logger.With().Str("component", "refresh").Logger(),
		ttl:     ttl,
	}
}

// Latest возвращает последний снапшот: локальный, иначе из кэша.
func (s *Service) Latest() (*domain.Snapshot, bool) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()
	if current != nil {
		return current, true
	}
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(snapshotCacheKey)
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.log.Warn().Err(err).Msg("кэшированный снапшот повреждён")
		return nil, false
	}
	s.mu.Lock()
	if s.current == nil {
		s.current = &snap
	}
	current = s.current
	s.mu.Unlock()
	return current, true
}

// Rebuild строит свежий снапшот и публикует его атомарной заменой.
// При ошибке сборки предыдущий снапшот остаётся доступным.
func (s *Service) Rebuild(ctx context.Context) (*domain.Snapshot, error) {
	snap, err := s.builder.Build(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	if s.cache != nil {
		if raw, err := json.Marshal(snap); err == nil {
			if err := s.cache.Set(snapshotCacheKey, raw, s.ttl); err != nil {
				s.log.Warn().Err(err).Msg("не удалось сохранить снапшот в кэш")
			}
		}
	}
	return snap, nil
}

// EnqueueRefresh ставит задачу пересборки в очередь и возвращает её id.
func (s *Service) EnqueueRefresh(ctx context.Context, cause domain.RefreshCause, chatID int64) (string, error) {
	if s.queue == nil {
		return "", ErrNoQueue
	}
	job := domain.RefreshJob{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		RequestedAt: time.Now().UTC(),
		Cause:       cause,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return "", err
	}
	metrics.RefreshJobsTotal.WithLabelValues(string(cause)).Inc()
	return job.ID, nil
}

// Run потребляет очередь задач и перестраивает модель до отмены контекста.
func (s *Service) Run(ctx context.Context) {
	if s.queue == nil {
		s.log.Warn().Msg("очередь не настроена, потребитель не запущен")
		return
	}
	for {
		job, err := s.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			s.log.Error().Err(err).Msg("не удалось получить задачу")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		s.handleJob(ctx, job)
	}
}

func (s *Service) handleJob(ctx context.Context, job domain.RefreshJob) {
	start := time.Now()
	rebuild := func() error {
		_, err := s.Rebuild(ctx)
		return err
	}
	var err error
	if s.cache != nil && job.ID != "" {
		err = s.cache.Once("pulse:job:"+job.ID, time.Hour, rebuild)
	} else {
		err = rebuild()
	}
	if err != nil {
		s.log.Error().Err(err).
			Str("job_id", job.ID).
			Str("cause", string(job.Cause)).
			Msg("пересборка не удалась")
		return
	}
	s.log.Info().
		Str("job_id", job.ID).
		Str("cause", string(job.Cause)).
		Dur("took", time.Since(start)).
		Msg("модель пересобрана")
}
