package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *App) ConversationMessages(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	conversationID := chi.URLParam(r, "id")
	if conversationID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	msgs, err := a.Messages.ListRecent(r.Context(), conversationID, limit)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, map[string]any{
			"id":              m.ID,
			"conversation_id": m.ConversationID,
			"role":            m.Role,
			"kind":            string(m.Kind),
			"body":            m.Body,
			"metadata":        m.Metadata,
			"created_at":      m.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
