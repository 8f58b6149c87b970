package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediagen/internal/domain"
)

func webhookRequest(secret string, payload map[string]any) *http.Request {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(payload)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/render", &buf)
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}
	return req
}

func TestRenderWebhookRejectsBadSecret(t *testing.T) {
	ta := newTestApp(t)
	rec := httptest.NewRecorder()
	ta.app.RenderWebhook(rec, webhookRequest("wrong", map[string]any{
		"event":  "status_changed",
		"job_id": "job-1",
		"status": "processing",
	}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRenderWebhookAppliesProgress(t *testing.T) {
	ta := newTestApp(t)
	seedRecord(t, ta.store, domain.StatusQueued, "job-1")

	rec := httptest.NewRecorder()
	ta.app.RenderWebhook(rec, webhookRequest(testWebhookSecret, map[string]any{
		"event":    "status_changed",
		"job_id":   "job-1",
		"status":   "processing",
		"progress": 40,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	gen, err := ta.store.GetByExternalJobID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if gen.Status != domain.StatusProcessing || gen.Progress != 40 {
		t.Fatalf("record: status=%s progress=%d", gen.Status, gen.Progress)
	}
}

func TestRenderWebhookDuplicateCompletedNotifiesOnce(t *testing.T) {
	ta := newTestApp(t)
	seedRecord(t, ta.store, domain.StatusProcessing, "job-1")

	payload := map[string]any{
		"event":  "status_changed",
		"job_id": "job-1",
		"status": "completed",
		"result": map[string]any{
			"result_url": "https://cdn.example.com/out/job-1.mp4",
			"format":     "mp4",
		},
	}
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		ta.app.RenderWebhook(rec, webhookRequest(testWebhookSecret, payload))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d", i, rec.Code)
		}
	}

	if got := ta.msgs.count(); got != 1 {
		t.Fatalf("messages = %d, want exactly 1", got)
	}
}

func TestRenderWebhookIgnoresStaleStatus(t *testing.T) {
	ta := newTestApp(t)
	gen := seedRecord(t, ta.store, domain.StatusProcessing, "job-1")

	rec := httptest.NewRecorder()
	ta.app.RenderWebhook(rec, webhookRequest(testWebhookSecret, map[string]any{
		"event":  "status_changed",
		"job_id": "job-1",
		"status": "completed",
		"result": map[string]any{"result_url": "https://cdn.example.com/a.mp4"},
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("completed delivery: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ta.app.RenderWebhook(rec, webhookRequest(testWebhookSecret, map[string]any{
		"event":    "status_changed",
		"job_id":   "job-1",
		"status":   "processing",
		"progress": 60,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("stale delivery: %d", rec.Code)
	}

	got, _ := ta.store.GetByID(context.Background(), gen.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status regressed to %s", got.Status)
	}
}

func TestRenderWebhookRejectsUnknownStatus(t *testing.T) {
	ta := newTestApp(t)
	rec := httptest.NewRecorder()
	ta.app.RenderWebhook(rec, webhookRequest(testWebhookSecret, map[string]any{
		"event":  "status_changed",
		"job_id": "job-1",
		"status": "exploded",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRenderWebhookRequiresLookupKey(t *testing.T) {
	ta := newTestApp(t)
	rec := httptest.NewRecorder()
	ta.app.RenderWebhook(rec, webhookRequest(testWebhookSecret, map[string]any{
		"event":  "status_changed",
		"status": "processing",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRenderWebhookUnknownJobAsksForRedelivery(t *testing.T) {
	ta := newTestApp(t)
	rec := httptest.NewRecorder()
	ta.app.RenderWebhook(rec, webhookRequest(testWebhookSecret, map[string]any{
		"event":  "status_changed",
		"job_id": "job-unknown",
		"status": "processing",
	}))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRenderWebhookRejectsCompletedWithoutResult(t *testing.T) {
	ta := newTestApp(t)
	gen := seedRecord(t, ta.store, domain.StatusProcessing, "job-1")

	rec := httptest.NewRecorder()
	ta.app.RenderWebhook(rec, webhookRequest(testWebhookSecret, map[string]any{
		"event":  "status_changed",
		"job_id": "job-1",
		"status": "completed",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	got, _ := ta.store.GetByID(context.Background(), gen.ID)
	if got.Status != domain.StatusProcessing {
		t.Fatalf("record moved to %s on a broken payload", got.Status)
	}
}
