package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/perkwise/perkdocs/internal/api"
	"github.com/perkwise/perkdocs/internal/api/handlers"
	"github.com/perkwise/perkdocs/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator   middleware.AuthValidator
	SearchHandler   *handlers.SearchHandler
	DocumentHandler *handlers.DocumentHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Post("/search", cfg.SearchHandler.Search)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Register)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Post("/{id}/process", cfg.DocumentHandler.Process)
		})

		r.Post("/companies/{id}/process", cfg.DocumentHandler.ProcessCompany)
	})

	return r
}
