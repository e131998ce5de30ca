package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// RegisterRoutes mounts the admin API under /admin on r
func RegisterRoutes(r chi.Router, handlers *AdminHandlers) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(AuthMiddleware)

		r.Get("/stats", handlers.handleStats)
		r.Get("/health", handlers.handleHealth)
		r.Post("/clear", handlers.handleClear)

		r.Route("/topics/{topic}", func(r chi.Router) {
			r.Post("/", handlers.handlePublish)
			r.Get("/messages", handlers.handleMessages)
		})

		r.Route("/settings/{key}", func(r chi.Router) {
			r.Get("/", handlers.handleGetSetting)
			r.Put("/", handlers.handlePutSetting)
			r.Delete("/", handlers.handleDeleteSetting)
		})
	})

	log.Info().Msg("Admin endpoints enabled at /admin/*")
}

// NewRouter builds the daemon's HTTP router: health, optional metrics and
// optional admin API.
func NewRouter(metrics http.Handler, handlers *AdminHandlers) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	if handlers != nil {
		RegisterRoutes(r, handlers)
	}

	return r
}
