package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mediagen/internal/http/handlers"
	"mediagen/internal/middleware"
)

// Options configures the API router.
type Options struct {
	JWTSecret      string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	AllowedOrigins []string
	RateLimit      int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(app.Logger),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}
	if opts.RateLimit > 0 {
		r.Use(middleware.RateLimit(opts.RateLimit, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	// Worker callbacks authenticate with a shared secret, not a user token.
	r.Post("/v1/webhooks/render", app.RenderWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		r.Route("/v1/generations", func(r chi.Router) {
			r.Post("/", app.GenerationsCreate)
			r.Get("/", app.GenerationsList)
			r.Get("/{id}", app.GenerationsGet)
			r.Post("/{id}/clarification", app.GenerationsClarify)
			r.Post("/{id}/confirm", app.GenerationsConfirm)
			r.Post("/{id}/cancel", app.GenerationsCancel)
			r.Get("/{id}/poll", app.GenerationsPoll)
		})

		r.Get("/v1/conversations/{id}/messages", app.ConversationMessages)
		r.Get("/v1/stats/summary", app.StatsSummary)
	})

	return r
}
