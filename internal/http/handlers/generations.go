package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mediagen/internal/domain"
	"mediagen/internal/orchestrator"
)

type createGenerationRequest struct {
	ConversationID  string          `json:"conversation_id" validate:"required,uuid4|uuid"`
	SourceMessageID string          `json:"source_message_id" validate:"required"`
	MediaType       string          `json:"media_type" validate:"required,oneof=video audio"`
	Provider        string          `json:"provider" validate:"required"`
	Model           string          `json:"model"`
	Prompt          string          `json:"prompt" validate:"required"`
	Parameters      json.RawMessage `json:"parameters"`
}

type clarificationRequest struct {
	Version   int64             `json:"version" validate:"required,min=1"`
	Responses map[string]string `json:"responses" validate:"required,min=1"`
}

type versionedRequest struct {
	Version int64 `json:"version" validate:"required,min=1"`
}

type generationResponse struct {
	ID                     string                         `json:"id"`
	ExternalJobID          string                         `json:"external_job_id,omitempty"`
	OwnerID                string                         `json:"owner_id"`
	ConversationID         string                         `json:"conversation_id"`
	SourceMessageID        string                         `json:"source_message_id"`
	MediaType              string                         `json:"media_type"`
	Provider               string                         `json:"provider"`
	Model                  string                         `json:"model,omitempty"`
	Prompt                 string                         `json:"prompt"`
	Parameters             json.RawMessage                `json:"parameters,omitempty"`
	ClarificationQuestions []domain.ClarificationQuestion `json:"clarification_questions,omitempty"`
	ClarificationResponses map[string]string              `json:"clarification_responses,omitempty"`
	Status                 string                         `json:"status"`
	Progress               int                            `json:"progress"`
	Result                 *domain.GenerationResult       `json:"result,omitempty"`
	ErrorMessage           string                         `json:"error_message,omitempty"`
	Version                int64                          `json:"version"`
	CreatedAt              time.Time                      `json:"created_at"`
	UpdatedAt              time.Time                      `json:"updated_at"`
}

func toGenerationResponse(gen *domain.Generation) generationResponse {
	return generationResponse{
		ID:                     gen.ID,
		ExternalJobID:          gen.ExternalJobID,
		OwnerID:                gen.OwnerID,
		ConversationID:         gen.ConversationID,
		SourceMessageID:        gen.SourceMessageID,
		MediaType:              string(gen.MediaType),
		Provider:               gen.Provider,
		Model:                  gen.Model,
		Prompt:                 gen.Prompt,
		Parameters:             gen.Parameters,
		ClarificationQuestions: gen.ClarificationQuestions,
		ClarificationResponses: gen.ClarificationResponses,
		Status:                 string(gen.Status),
		Progress:               gen.Progress,
		Result:                 gen.Result,
		ErrorMessage:           gen.ErrorMessage,
		Version:                gen.Version,
		CreatedAt:              gen.CreatedAt,
		UpdatedAt:              gen.UpdatedAt,
	}
}

func (a *App) GenerationsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	gen, err := a.Orchestrator.Create(r.Context(), orchestrator.CreateParams{
		OwnerID:         userID,
		ConversationID:  req.ConversationID,
		SourceMessageID: req.SourceMessageID,
		MediaType:       domain.MediaType(req.MediaType),
		Provider:        req.Provider,
		Model:           req.Model,
		Prompt:          req.Prompt,
		Parameters:      req.Parameters,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, toGenerationResponse(gen))
}

func (a *App) GenerationsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	items, err := a.Generations.ListByOwner(r.Context(), userID, limit, offset)
	if err != nil {
		a.domainError(w, err)
		return
	}
	out := make([]generationResponse, 0, len(items))
	for i := range items {
		out = append(out, toGenerationResponse(&items[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": out, "limit": limit, "offset": offset})
}

func (a *App) GenerationsGet(w http.ResponseWriter, r *http.Request) {
	gen, ok := a.ownedGeneration(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, toGenerationResponse(gen))
}

func (a *App) GenerationsClarify(w http.ResponseWriter, r *http.Request) {
	gen, ok := a.ownedGeneration(w, r)
	if !ok {
		return
	}
	var req clarificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	updated, err := a.Orchestrator.SubmitClarification(r.Context(), gen.ID, req.Responses, req.Version)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, toGenerationResponse(updated))
}

func (a *App) GenerationsConfirm(w http.ResponseWriter, r *http.Request) {
	gen, ok := a.ownedGeneration(w, r)
	if !ok {
		return
	}
	var req versionedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	updated, err := a.Orchestrator.Confirm(r.Context(), gen.ID, req.Version)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, toGenerationResponse(updated))
}

func (a *App) GenerationsCancel(w http.ResponseWriter, r *http.Request) {
	gen, ok := a.ownedGeneration(w, r)
	if !ok {
		return
	}
	var req versionedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	updated, err := a.Orchestrator.Cancel(r.Context(), gen.ID, req.Version)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, toGenerationResponse(updated))
}

// GenerationsPoll asks the worker for the latest job status and folds it into
// the record. When the worker is unreachable the last-known record is served
// with refreshed=false instead of an error.
func (a *App) GenerationsPoll(w http.ResponseWriter, r *http.Request) {
	gen, ok := a.ownedGeneration(w, r)
	if !ok {
		return
	}
	updated, err := a.Orchestrator.Poll(r.Context(), gen.ID)
	if err != nil {
		if updated == nil {
			a.domainError(w, err)
			return
		}
		a.Logger.Warn().Err(err).Str("generation_id", gen.ID).Msg("handlers: poll served stale record")
		a.json(w, http.StatusOK, map[string]any{
			"generation": toGenerationResponse(updated),
			"refreshed":  false,
		})
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"generation": toGenerationResponse(updated),
		"refreshed":  true,
	})
}

// ownedGeneration loads the record addressed by the URL and enforces that it
// belongs to the authenticated user. Foreign records read as not found.
func (a *App) ownedGeneration(w http.ResponseWriter, r *http.Request) (*domain.Generation, bool) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return nil, false
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return nil, false
	}
	gen, err := a.Generations.GetByID(r.Context(), id)
	if err != nil {
		a.domainError(w, err)
		return nil, false
	}
	if gen.OwnerID != userID {
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
		return nil, false
	}
	return gen, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
