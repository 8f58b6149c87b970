package handlers

import (
	"net/http"

	"mediagen/internal/domain"
)

func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Analytics.GetSummary(r.Context())
	if err != nil {
		if domain.IsNotFound(err) {
			a.json(w, http.StatusOK, map[string]any{"day": nil, "requested": 0})
			return
		}
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"day":              summary.Day,
		"requested":        summary.Requested,
		"dispatched":       summary.Dispatched,
		"videos_completed": summary.VideosCompleted,
		"audio_completed":  summary.AudioCompleted,
		"failed":           summary.Failed,
		"cancelled":        summary.Cancelled,
	})
}
