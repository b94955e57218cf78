package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/mdbook-backlinks/internal/store"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(idx store.GraphIndex, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(idx)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/chapters", h.ListChapters)
	r.Get("/chapters/*", h.GetChapter)
	r.Get("/backlinks/*", h.Backlinks)
	r.Get("/graph", h.Graph)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
