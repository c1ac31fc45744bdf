package chatra

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/chatra", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/webhook", h.HandleWebhook)
	})
}
