package domain

import "time"

// AnalyticsDaily stores aggregated generation metrics for a specific day.
type AnalyticsDaily struct {
	Day             time.Time
	Requested       int
	Dispatched      int
	VideosCompleted int
	AudioCompleted  int
	Failed          int
	Cancelled       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
