package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/imgnote/internal/models"
	"github.com/starford/imgnote/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc     *noteservice.Service
	tempDir string
}

// NewHandler creates a new Handler. Uploads are spooled into tempDir
// (empty means os.TempDir()).
func NewHandler(svc *noteservice.Service, tempDir string) *Handler {
	return &Handler{svc: svc, tempDir: tempDir}
}

// Store handles GET /store.
//
//	@Summary		Describe the active store
//	@Tags			store
//	@Produce		json
//	@Success		200	{object}	StoreResponse
//	@Security		BearerAuth
//	@Router			/store [get]
func (h *Handler) Store(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StoreResponse{BasePath: h.svc.BasePath()})
}

// ListCategories handles GET /categories.
//
//	@Summary		List categories, default first
//	@Tags			categories
//	@Produce		json
//	@Success		200	{object}	map[string][]models.Category
//	@Security		BearerAuth
//	@Router			/categories [get]
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.ListCategories(r.Context())
	if err != nil {
		writeError(w, "list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": nonNilSlice(cats)})
}

// CreateCategory handles POST /categories.
//
//	@Summary		Create a category
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateCategoryRequest	true	"Category to create"
//	@Success		201		{object}	models.Category
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories [post]
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.CreateCategory(r.Context(), req.Name, req.Color)
	if err != nil {
		writeError(w, "create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateCategory handles PATCH /categories/{categoryID}.
//
//	@Summary		Rename or recolor a category
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//	@Param			categoryID	path		string					true	"Category id"
//	@Param			body	body		UpdateCategoryRequest	true	"Fields to change"
//	@Success		200		{object}	models.Category
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{categoryID} [patch]
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req UpdateCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.UpdateCategory(r.Context(), chi.URLParam(r, "categoryID"), models.CategoryPatch{Name: req.Name, Color: req.Color})
	if err != nil {
		writeError(w, "update category", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCategory handles DELETE /categories/{categoryID}.
//
//	@Summary		Delete a category, moving its notes to the default category
//	@Tags			categories
//	@Produce		json
//	@Param			categoryID	path		string	true	"Category id"
//	@Success		200	{object}	DeleteCategoryResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{categoryID} [delete]
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	moved, err := h.svc.DeleteCategory(r.Context(), chi.URLParam(r, "categoryID"))
	if err != nil {
		writeError(w, "delete category", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteCategoryResponse{Moved: moved})
}

// ListNotes handles GET /notes.
//
//	@Summary		List notes, newest image first
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	map[string][]models.Note
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.ListNotes(r.Context())
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": nonNilSlice(notes)})
}

// CreateNote handles POST /categories/{categoryID}/notes.
//
// The body is either JSON naming a file on the server's disk or a
// multipart upload with fields "file" and optional "name".
//
//	@Summary		Create a note from an image
//	@Tags			notes
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			categoryID	path		string				true	"Category id"
//	@Param			body		body		ImportImageRequest	false	"Server-side source image"
//	@Success		201			{object}	models.Note
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{categoryID}/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")

	if isMultipart(r) {
		u, err := saveUpload(w, r, h.tempDir, ".png")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		defer u.Remove()
		n, err := h.svc.ImportImage(r.Context(), categoryID, u.Path, uploadNoteName(r, u))
		if err != nil {
			writeError(w, "import image", err)
			return
		}
		writeJSON(w, http.StatusCreated, n)
		return
	}

	var req ImportImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.ImportImage(r.Context(), categoryID, req.SourcePath, req.Name)
	if err != nil {
		writeError(w, "import image", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// UpdateNote handles PATCH /categories/{categoryID}/notes/{noteID}.
//
//	@Summary		Rename a note or toggle its encrypted flag
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			categoryID	path		string				true	"Category id"
//	@Param			noteID		path		string				true	"Note id"
//	@Param			body		body		UpdateNoteRequest	true	"Fields to change"
//	@Success		200			{object}	models.Note
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{categoryID}/notes/{noteID} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.UpdateNote(r.Context(), chi.URLParam(r, "categoryID"), chi.URLParam(r, "noteID"),
		models.NotePatch{Name: req.Name, Encrypted: req.Encrypted})
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /categories/{categoryID}/notes/{noteID}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			categoryID	path	string	true	"Category id"
//	@Param			noteID		path	string	true	"Note id"
//	@Success		204			"Note deleted"
//	@Security		BearerAuth
//	@Router			/categories/{categoryID}/notes/{noteID} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNote(r.Context(), chi.URLParam(r, "categoryID"), chi.URLParam(r, "noteID")); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NoteImage handles GET /categories/{categoryID}/notes/{noteID}/image.
//
//	@Summary		Download a note's image
//	@Tags			notes
//	@Produce		image/png,image/jpeg,image/gif,image/bmp,image/webp
//	@Param			categoryID	path	string	true	"Category id"
//	@Param			noteID		path	string	true	"Note id"
//	@Success		200
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{categoryID}/notes/{noteID}/image [get]
func (h *Handler) NoteImage(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.GetNote(r.Context(), chi.URLParam(r, "categoryID"), chi.URLParam(r, "noteID"))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	http.ServeFile(w, r, n.ImagePath)
}

// ExportImage handles POST /categories/{categoryID}/notes/{noteID}/export.
//
//	@Summary		Copy a note's image to a path on the server's disk
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			categoryID	path		string				true	"Category id"
//	@Param			noteID		path		string				true	"Note id"
//	@Param			body		body		ExportImageRequest	true	"Destination file or directory"
//	@Success		200			{object}	ExportResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{categoryID}/notes/{noteID}/export [post]
func (h *Handler) ExportImage(w http.ResponseWriter, r *http.Request) {
	var req ExportImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.ExportImage(r.Context(), chi.URLParam(r, "categoryID"), chi.URLParam(r, "noteID"), req.Dest)
	if err != nil {
		writeError(w, "export image", err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Path: out})
}

// MoveNote handles POST /notes/{noteID}/move.
//
//	@Summary		Move a note to another category
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			noteID	path		string			true	"Note id"
//	@Param			body	body		MoveNoteRequest	true	"Source and destination categories"
//	@Success		200		{object}	MoveNoteResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{noteID}/move [post]
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	var req MoveNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.MoveNote(r.Context(), chi.URLParam(r, "noteID"), req.From, req.To)
	if err != nil {
		writeError(w, "move note", err)
		return
	}
	writeJSON(w, http.StatusOK, MoveNoteResponse{ImagePath: p})
}

// Export handles POST /export.
//
//	@Summary		Pack the store, or selected notes, into an archive
//	@Tags			archive
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ExportRequest	true	"Destination and optional selection"
//	@Success		200		{object}	ExportResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/export [post]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var (
		out string
		err error
	)
	if req.Notes != nil {
		out, err = h.svc.ExportSubset(r.Context(), req.Notes, req.Dest)
	} else {
		out, err = h.svc.ExportFull(r.Context(), req.Dest)
	}
	if err != nil {
		writeError(w, "export", err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Path: out})
}

// Import handles POST /import.
//
// The body is either JSON naming an archive on the server's disk or a
// multipart upload with field "file" and optional "skip_duplicates".
//
//	@Summary		Merge an archive into the store
//	@Tags			archive
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			body	body		ImportRequest	false	"Server-side archive"
//	@Success		200		{object}	models.MergeResult
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if isMultipart(r) {
		u, err := saveUpload(w, r, h.tempDir, models.ArchiveExt)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		defer u.Remove()
		skip := true
		if v := r.FormValue("skip_duplicates"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody("skip_duplicates must be a boolean"))
				return
			}
			skip = b
		}
		h.merge(w, r, u.Path, skip)
		return
	}

	var req ImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	skip := req.SkipDuplicates == nil || *req.SkipDuplicates
	h.merge(w, r, req.Path, skip)
}

func (h *Handler) merge(w http.ResponseWriter, r *http.Request, archivePath string, skip bool) {
	res, err := h.svc.ImportArchive(r.Context(), archivePath, models.MergeOptions{SkipDuplicates: skip})
	if err != nil {
		writeError(w, "import archive", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Migrate handles POST /migrate.
//
//	@Summary		Copy the store to a new parent directory and switch to it
//	@Tags			store
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MigrateRequest	true	"Target parent directory"
//	@Success		200		{object}	StoreResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/migrate [post]
func (h *Handler) Migrate(w http.ResponseWriter, r *http.Request) {
	var req MigrateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	dest, err := h.svc.Migrate(r.Context(), req.Target)
	if err != nil {
		writeError(w, "migrate", err)
		return
	}
	writeJSON(w, http.StatusOK, StoreResponse{BasePath: dest})
}

// Search handles GET /search.
//
//	@Summary		Search notes by note or category name
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	map[string][]index.SearchResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": nonNilSlice(results),
	})
}

// Duplicates handles GET /duplicates.
//
//	@Summary		List groups of notes with identical content
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	map[string][]index.DuplicateGroup
//	@Security		BearerAuth
//	@Router			/duplicates [get]
func (h *Handler) Duplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Duplicates(r.Context())
	if err != nil {
		writeError(w, "duplicates", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"groups": nonNilSlice(groups),
	})
}
