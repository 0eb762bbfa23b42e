package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter builds the API route tree. The caller mounts it under /api.
func NewRouter(h *Handler, authEnabled bool, authToken string) http.Handler {
	r := chi.NewRouter()

	r.Use(AuthMiddleware(authEnabled, authToken))

	r.Get("/results", h.Results)
	r.Post("/query", h.Query)
	r.Get("/folders", h.Folders)

	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	r.Get("/enrichment/*", h.Enrichment)
	r.Get("/media/*", h.Media)
	r.Post("/session", h.SessionState)

	return r
}
