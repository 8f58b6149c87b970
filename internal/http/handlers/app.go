package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/middleware"
	"mediagen/internal/orchestrator"
)

type App struct {
	Orchestrator  *orchestrator.Orchestrator
	Generations   domain.GenerationRepository
	Messages      domain.MessageRepository
	Analytics     domain.AnalyticsRepository
	WebhookSecret string
	Logger        infra.Logger

	validate *validator.Validate
}

func NewApp(orc *orchestrator.Orchestrator, gens domain.GenerationRepository, msgs domain.MessageRepository, analytics domain.AnalyticsRepository, webhookSecret string, logger infra.Logger) *App {
	return &App{
		Orchestrator:  orc,
		Generations:   gens,
		Messages:      msgs,
		Analytics:     analytics,
		WebhookSecret: webhookSecret,
		Logger:        logger,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{
			"code":    slug,
			"message": message,
		},
	})
}

// domainError maps the domain sentinels to HTTP responses. Anything
// unrecognized is a 500 with the detail kept out of the body.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "not allowed")
	case errors.Is(err, domain.ErrInvalidState):
		a.error(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrVersionConflict):
		a.error(w, http.StatusConflict, "version_conflict", "record changed, reload and retry")
	case errors.Is(err, domain.ErrReconcileConflict):
		a.error(w, http.StatusServiceUnavailable, "reconcile_conflict", "contended update, retry later")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		a.error(w, http.StatusBadGateway, "upstream_unavailable", "render worker unavailable")
	default:
		a.Logger.Error().Err(err).Msg("handlers: unhandled error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
