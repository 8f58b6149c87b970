package repo

import (
	"context"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/sqlinline"
)

// AnalyticsRepositoryPG implements domain.AnalyticsRepository.
type AnalyticsRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(sql infra.SQLExecutor) *AnalyticsRepositoryPG {
	return &AnalyticsRepositoryPG{sql: sql}
}

// IncrementCounters upserts generation counters for the provided day.
func (r *AnalyticsRepositoryPG) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	_, err := r.sql.Exec(ctx, sqlinline.QIncrementDailyCounters,
		day,
		counters["requested"],
		counters["dispatched"],
		counters["videos_completed"],
		counters["audio_completed"],
		counters["failed"],
		counters["cancelled"],
	)
	return err
}

// GetSummary returns the most recent day of aggregated stats.
func (r *AnalyticsRepositoryPG) GetSummary(ctx context.Context) (*domain.AnalyticsDaily, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectLatestDailySummary)
	var summary domain.AnalyticsDaily
	if err := row.Scan(
		&summary.Day,
		&summary.Requested,
		&summary.Dispatched,
		&summary.VideosCompleted,
		&summary.AudioCompleted,
		&summary.Failed,
		&summary.Cancelled,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &summary, nil
}

var _ domain.AnalyticsRepository = (*AnalyticsRepositoryPG)(nil)
