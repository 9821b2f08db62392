package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/imgnote/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// tempDir receives spooled multipart uploads.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler, tempDir string) chi.Router {
	h := NewHandler(svc, tempDir)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/store", h.Store)
	r.Post("/migrate", h.Migrate)

	// Categories.
	r.Get("/categories", h.ListCategories)
	r.Post("/categories", h.CreateCategory)
	r.Patch("/categories/{categoryID}", h.UpdateCategory)
	r.Delete("/categories/{categoryID}", h.DeleteCategory)

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Post("/categories/{categoryID}/notes", h.CreateNote)
	r.Patch("/categories/{categoryID}/notes/{noteID}", h.UpdateNote)
	r.Delete("/categories/{categoryID}/notes/{noteID}", h.DeleteNote)
	r.Get("/categories/{categoryID}/notes/{noteID}/image", h.NoteImage)
	r.Post("/categories/{categoryID}/notes/{noteID}/export", h.ExportImage)
	r.Post("/notes/{noteID}/move", h.MoveNote)

	// Archives.
	r.Post("/export", h.Export)
	r.Post("/import", h.Import)

	// Catalog queries.
	r.Get("/search", h.Search)
	r.Get("/duplicates", h.Duplicates)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
