// Package models defines the domain types and on-disk layout constants for imgnote.
package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// On-disk layout.
const (
	DefaultCategoryID   = "_default"
	DefaultCategoryName = "Default"
	DefaultColor        = "#6b7fd7"

	CategoryFile = "category.json"
	MetaFile     = "meta.json"

	// ArchiveRoot is the single top-level directory of every archive and the
	// directory name a migrated store is copied into.
	ArchiveRoot = "dataBase"
	// ArchiveExt is the suffix of portable archive files.
	ArchiveExt = ".IMGNote"
)

var imageExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".webp": {},
}

// IsImageFile reports whether name carries a recognized image extension.
func IsImageFile(name string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Category is a named, colored grouping of notes backed by one directory.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CategoryPatch carries optional category fields; nil means unchanged.
type CategoryPatch struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// Note is a single image plus metadata, backed by one directory.
type Note struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	ImagePath  string `json:"image_path"`
	ImageFile  string `json:"image_file"`
	Encrypted  bool   `json:"encrypted"`
	// MTime is the image modification time in Unix milliseconds.
	MTime int64 `json:"mtime"`
}

// NotePatch carries optional note fields; nil means unchanged.
type NotePatch struct {
	Name      *string `json:"name,omitempty"`
	Encrypted *bool   `json:"encrypted,omitempty"`
}

// NoteRef addresses a note by id and category.
type NoteRef struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
}

// ParseNoteRefs turns CATEGORY_ID/NOTE_ID strings into note refs.
func ParseNoteRefs(items []string) ([]NoteRef, error) {
	refs := make([]NoteRef, 0, len(items))
	for _, item := range items {
		cat, id, ok := strings.Cut(item, "/")
		if !ok || cat == "" || id == "" {
			return nil, fmt.Errorf("invalid note reference %q (want CATEGORY_ID/NOTE_ID)", item)
		}
		refs = append(refs, NoteRef{ID: id, CategoryID: cat})
	}
	return refs, nil
}

// MergeOptions controls an archive import.
type MergeOptions struct {
	SkipDuplicates bool `json:"skip_duplicates"`
}

// MergeResult reports how many notes an import added and skipped.
type MergeResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}
