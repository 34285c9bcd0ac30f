package pulse

import (
	"context"
	"fmt"
	"time"

	"tg-pulse-bot/internal/domain"
	"tg-pulse-bot/internal/infra/metrics"
)

// window — результат сканирования: строки событий, справочники и статусы
// источников. Сообщения и реакции приходят от новых к старым.
type window struct {
	scanDays  int
	trendDays int
	since     time.Time

	messages  []domain.Message
	reactions []domain.Reaction

	names    map[int64]string
	trust    map[int64]float64
	channels map[int64]string

	scope   domain.ScanScope
	sources []domain.SourceStatus
}

// fetchWindow читает окно событий. Ошибки сообщений и реакций фатальны,
// справочники деградируют до синтетических значений.
func (s *Service) fetchWindow(ctx context.Context, now time.Time) (*window, error) {
	opts := s.opts
	trendDays := opts.TrendDays
	if trendDays < 1 {
		trendDays = 1
	}
	if trendDays < opts.LookbackDays {
		trendDays = opts.LookbackDays
	}
	scanDays := trendDays
	if scanDays < 30 {
		scanDays = 30
	}
	since := now.AddDate(0, 0, -scanDays)

	w := &window{
		scanDays:  scanDays,
		trendDays: trendDays,
		since:     since,
		names:     map[int64]string{},
		trust:     map[int64]float64{},
		channels:  map[int64]string{},
	}

	messages, err := s.store.ListMessagesSince(ctx, since, opts.MaxMessages)
	if err != nil {
		return nil, fmt.Errorf("загрузка сообщений: %w", err)
	}
	w.messages = messages
	messagesTruncated := opts.MaxMessages > 0 && len(messages) >= opts.MaxMessages
	w.sources = append(w.sources, domain.SourceStatus{Source: "messages", OK: true})
	metrics.PulseRowsScanned.WithLabelValues("messages").Add(float64(len(messages)))

	reactions, err := s.store.ListReactionsSince(ctx, since, opts.MaxReactions)
	if err != nil {
		return nil, fmt.Errorf("загрузка реакций: %w", err)
	}
	w.reactions = reactions
	reactionsTruncated := opts.MaxReactions > 0 && len(reactions) >= opts.MaxReactions
	w.sources = append(w.sources, domain.SourceStatus{Source: "reactions", OK: true})
	metrics.PulseRowsScanned.WithLabelValues("reactions").Add(float64(len(reactions)))

	if channels, err := s.store.ListChannels(ctx); err != nil {
		s.degrade(w, "channels", err)
	} else {
		for _, ch := range channels {
			w.channels[ch.ChannelID] = ch.Name
		}
		w.sources = append(w.sources, domain.SourceStatus{Source: "channels", OK: true})
	}

	ids, usersTruncated := s.collectUserIDs(w)

	if users, err := s.store.ListUsersByIDs(ctx, ids); err != nil {
		s.degrade(w, "users", err)
	} else {
		for _, u := range users {
			w.names[u.UserID] = u.Username
		}
		w.sources = append(w.sources, domain.SourceStatus{Source: "users", OK: true})
	}

	if trust, err := s.store.TrustScoresByIDs(ctx, ids); err != nil {
		s.degrade(w, "trust", err)
	} else {
		w.trust = trust
		w.sources = append(w.sources, domain.SourceStatus{Source: "trust", OK: true})
	}

	w.scope = domain.ScanScope{
		Messages:           len(w.messages),
		Reactions:          len(w.reactions),
		Users:              len(ids),
		MessagesTruncated:  messagesTruncated,
		ReactionsTruncated: reactionsTruncated,
		UsersTruncated:     usersTruncated,
	}
	if w.scope.MessagesTruncated {
		metrics.PulseTruncations.WithLabelValues("messages").Inc()
	}
	if w.scope.ReactionsTruncated {
		metrics.PulseTruncations.WithLabelValues("reactions").Inc()
	}
	return w, nil
}

// collectUserIDs собирает идентификаторы в порядке появления в выборке и
// при превышении лимита усекает множество участников детерминированно:
// остаются первые MaxUsers, их события сохраняются, остальные отбрасываются.
func (s *Service) collectUserIDs(w *window) ([]int64, bool) {
	seen := map[int64]struct{}{}
	ids := make([]int64, 0, 64)
	for _, msg := range w.messages {
		if msg.UserID == 0 {
			continue
		}
		if _, ok := seen[msg.UserID]; !ok {
			seen[msg.UserID] = struct{}{}
			ids = append(ids, msg.UserID)
		}
	}
	for _, reaction := range w.reactions {
		if reaction.UserID == 0 {
			continue
		}
		if _, ok := seen[reaction.UserID]; !ok {
			seen[reaction.UserID] = struct{}{}
			ids = append(ids, reaction.UserID)
		}
	}

	if s.opts.MaxUsers <= 0 || len(ids) <= s.opts.MaxUsers {
		return ids, false
	}

	ids = ids[:s.opts.MaxUsers]
	keep := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}

	messages := w.messages[:0]
	for _, msg := range w.messages {
		if _, ok := keep[msg.UserID]; ok {
			messages = append(messages, msg)
		}
	}
	w.messages = messages

	reactions := w.reactions[:0]
	for _, reaction := range w.reactions {
		if _, ok := keep[reaction.UserID]; ok {
			reactions = append(reactions, reaction)
		}
	}
	w.reactions = reactions

	metrics.PulseTruncations.WithLabelValues("users").Inc()
	return ids, true
}

func (s *Service) degrade(w *window, source string, err error) {
	w.sources = append(w.sources, domain.SourceStatus{Source: source, Err: err.Error()})
	metrics.PulseDegradedSources.WithLabelValues(source).Inc()
	s.log.Warn().Err(err).Str("source", source).Msg("источник деградировал, используются запасные значения")
}
