package handlers

import (
	"crypto/hmac"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"mediagen/internal/domain"
	"mediagen/internal/orchestrator"
)

type renderWebhookPayload struct {
	Event        string `json:"event" validate:"required"`
	JobID        string `json:"job_id"`
	GenerationID string `json:"generation_id"`
	UserID       string `json:"user_id"`
	Status       string `json:"status" validate:"required"`
	Progress     *int   `json:"progress"`
	Result       *struct {
		ResultURL  string  `json:"result_url" validate:"required"`
		SizeBytes  int64   `json:"size_bytes"`
		DurationMS int64   `json:"duration_ms"`
		Format     string  `json:"format"`
		CostCents  float64 `json:"cost_cents"`
	} `json:"result"`
	Error                  string                         `json:"error"`
	ClarificationQuestions []domain.ClarificationQuestion `json:"clarification_questions"`
	Timestamp              time.Time                      `json:"timestamp"`
}

// RenderWebhook receives status callbacks from the render worker. Delivery is
// at-least-once and unordered; all dedup and ordering decisions live in the
// reconciler, this handler only authenticates and translates.
func (a *App) RenderWebhook(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Webhook-Secret")
	if a.WebhookSecret == "" || !hmac.Equal([]byte(secret), []byte(a.WebhookSecret)) {
		a.error(w, http.StatusUnauthorized, "unauthorized", "bad webhook secret")
		return
	}

	var payload renderWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate.Struct(payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if payload.JobID == "" && payload.GenerationID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id or generation_id required")
		return
	}
	status := domain.GenerationStatus(payload.Status)
	if !status.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown status")
		return
	}

	upd := orchestrator.IncomingUpdate{
		GenerationID:           payload.GenerationID,
		JobID:                  payload.JobID,
		Status:                 status,
		Progress:               payload.Progress,
		ErrorMessage:           payload.Error,
		ClarificationQuestions: payload.ClarificationQuestions,
	}
	if payload.Result != nil {
		upd.Result = &domain.GenerationResult{
			ResultURL:  payload.Result.ResultURL,
			SizeBytes:  payload.Result.SizeBytes,
			DurationMS: payload.Result.DurationMS,
			Format:     payload.Result.Format,
			CostCents:  payload.Result.CostCents,
		}
	}

	gen, err := a.Orchestrator.Reconcile(r.Context(), upd)
	if err != nil {
		// An early webhook can outrun the dispatch commit that makes the
		// record findable. Answer 503 so the worker redelivers instead of
		// dropping the update on a 404.
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusServiceUnavailable, "not_visible", "record not visible yet, redeliver")
			return
		}
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"generation_id": gen.ID,
		"status":        string(gen.Status),
		"version":       gen.Version,
	})
}
