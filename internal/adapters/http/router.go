package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers the webhook routes and middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/webhook/v1", func(r chi.Router) {
		r.Post("/notifications", handler.receiveNotifications)
	})

	return r
}
