package domain

import (
	"context"
	"time"
)

// GenerationRepository defines persistence for generation records. Update is
// the single conditional-write primitive: every mutation is guarded by the
// caller's expected version, and a mismatch yields ErrVersionConflict.
type GenerationRepository interface {
	Create(ctx context.Context, gen *Generation) error
	GetByID(ctx context.Context, id string) (*Generation, error)
	GetByExternalJobID(ctx context.Context, jobID string) (*Generation, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Generation, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]Generation, error)
	Update(ctx context.Context, gen *Generation, expectedVersion int64) error
}

// MessageRepository persists conversation messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error
	ListRecent(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

// NotificationSink posts a status-derived message into the owning
// conversation. Implementations never mutate the generation record, and
// failures must not unwind an already-committed status write.
type NotificationSink interface {
	Post(ctx context.Context, conversationID, body string, kind MessageKind, metadata map[string]any) error
}

// AnalyticsRepository updates daily generation counters.
type AnalyticsRepository interface {
	IncrementCounters(ctx context.Context, day string, counters map[string]int) error
	GetSummary(ctx context.Context) (*AnalyticsDaily, error)
}
