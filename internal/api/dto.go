package api

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/imgnote/internal/models"
)

var colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// CreateCategoryRequest is the request body for creating a category.
type CreateCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Validate validates the request.
func (r CreateCategoryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Color, validation.Match(colorRe)),
	)
}

// UpdateCategoryRequest is the request body for patching a category.
type UpdateCategoryRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

// Validate validates the request.
func (r UpdateCategoryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Color, validation.NilOrNotEmpty, validation.Match(colorRe)),
	)
}

// ImportImageRequest is the JSON request body for creating a note from a
// file already on the server's disk.
type ImportImageRequest struct {
	SourcePath string `json:"source_path"`
	Name       string `json:"name"`
}

// Validate validates the request.
func (r ImportImageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SourcePath, validation.Required),
	)
}

// UpdateNoteRequest is the request body for patching a note.
type UpdateNoteRequest struct {
	Name      *string `json:"name"`
	Encrypted *bool   `json:"encrypted"`
}

// Validate validates the request.
func (r UpdateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty),
	)
}

// MoveNoteRequest is the request body for moving a note.
type MoveNoteRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Validate validates the request.
func (r MoveNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Required),
		validation.Field(&r.To, validation.Required),
	)
}

// ExportRequest is the request body for exporting an archive. A present
// notes list (even an empty one) requests a subset export.
type ExportRequest struct {
	Dest  string           `json:"dest"`
	Notes []models.NoteRef `json:"notes"`
}

// Validate validates the request.
func (r ExportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Dest, validation.Required),
	)
}

// ExportImageRequest is the request body for copying a note's image out
// of the store. Dest may be a file path or an existing directory.
type ExportImageRequest struct {
	Dest string `json:"dest"`
}

// Validate validates the request.
func (r ExportImageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Dest, validation.Required),
	)
}

// ImportRequest is the JSON request body for importing an archive from the
// server's disk. SkipDuplicates defaults to true.
type ImportRequest struct {
	Path           string `json:"path"`
	SkipDuplicates *bool  `json:"skip_duplicates"`
}

// Validate validates the request.
func (r ImportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
	)
}

// MigrateRequest is the request body for relocating the store.
type MigrateRequest struct {
	Target string `json:"target"`
}

// Validate validates the request.
func (r MigrateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Target, validation.Required),
	)
}

// StoreResponse describes the active store.
type StoreResponse struct {
	BasePath string `json:"base_path"`
}

// MoveNoteResponse is returned after a move.
type MoveNoteResponse struct {
	ImagePath string `json:"image_path"`
}

// ExportResponse is returned after an export.
type ExportResponse struct {
	Path string `json:"path"`
}

// DeleteCategoryResponse reports how many notes were moved to the default category.
type DeleteCategoryResponse struct {
	Moved int `json:"moved"`
}
