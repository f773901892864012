package handlers

import (
	"github.com/go-chi/chi"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)

		r.Get("/pases", h.ListPases)
		r.Post("/pases", h.CreatePase)
		r.Get("/export-excel", h.ExportExcel)

		// anything else under /api answers with the JSON envelope
		r.NotFound(h.NotFound)
		r.MethodNotAllowed(h.NotFound)
	})
}
