package domain

import (
	"context"
	"time"
)

// RefreshCause описывает источник запроса на пересборку модели.
type RefreshCause string

const (
	// RefreshCauseManual — пересборка запрошена участником через бота.
	RefreshCauseManual RefreshCause = "manual"
	// RefreshCauseScheduled — пересборка запланирована по расписанию.
	RefreshCauseScheduled RefreshCause = "scheduled"
)

// RefreshJob содержит информацию о задаче пересборки снапшота.
type RefreshJob struct {
	ID          string       `json:"job_id,omitempty"`
	ChatID      int64        `json:"chat_id,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
	Cause       RefreshCause `json:"cause"`
}

// RefreshQueue описывает очередь задач на пересборку.
type RefreshQueue interface {
	Enqueue(ctx context.Context, job RefreshJob) error
	Pop(ctx context.Context) (RefreshJob, error)
}
