package domain

import (
	"context"
	"time"
)

// EventStore отдаёт события сообщества для построения модели.
// Выборки упорядочены от новых к старым и ограничены лимитом строк.
type EventStore interface {
	ListMessagesSince(ctx context.Context, since time.Time, limit int) ([]Message, error)
	ListReactionsSince(ctx context.Context, since time.Time, limit int) ([]Reaction, error)
	ListUsersByIDs(ctx context.Context, ids []int64) ([]UserRef, error)
	ListChannels(ctx context.Context) ([]ChannelRef, error)
	TrustScoresByIDs(ctx context.Context, ids []int64) (map[int64]float64, error)
}

// IngestStore принимает события, выгруженные коллектором.
type IngestStore interface {
	UpsertChannel(ctx context.Context, channel ChannelRef) error
	SaveMessages(ctx context.Context, messages []Message) error
	SaveReactions(ctx context.Context, reactions []Reaction) error
}

// OpsStore проверяет готовность таблиц хранилища.
type OpsStore interface {
	ProbeTables(ctx context.Context) []TableStatus
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
