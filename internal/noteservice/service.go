// Package noteservice is the single entry point to a note store. It owns
// the store-wide writer lock, keeps the catalog index in step with the tree
// and publishes change events.
package noteservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/imgnote/internal/apperr"
	"github.com/starford/imgnote/internal/archive"
	"github.com/starford/imgnote/internal/index"
	"github.com/starford/imgnote/internal/merge"
	"github.com/starford/imgnote/internal/migrate"
	"github.com/starford/imgnote/internal/models"
	"github.com/starford/imgnote/internal/notestore"
	"github.com/starford/imgnote/internal/sse"
	"github.com/starford/imgnote/internal/storage"
)

// ErrNoIndex is returned by catalog queries when no index is configured.
var ErrNoIndex = errors.New("noteservice: catalog index not configured")

// Publisher receives change events.
type Publisher interface {
	PublishChange(eventType string, data any)
}

// Service coordinates the store, archive codec, merge engine and index.
//
// Mutations (category and note CRUD, archive import, migration) hold the
// write lock; listings and exports share the read lock.
type Service struct {
	mu     sync.RWMutex
	store  *notestore.Store
	db     *index.DB
	codec  *archive.Codec
	ptr    migrate.Pointer
	events Publisher
	logger *slog.Logger

	relocated chan string
}

// Option configures a Service.
type Option func(*Service)

// WithIndex keeps db in sync after every mutation and enables Search and Duplicates.
func WithIndex(db *index.DB) Option {
	return func(s *Service) { s.db = db }
}

// WithCodec sets the archive codec.
func WithCodec(c *archive.Codec) Option {
	return func(s *Service) { s.codec = c }
}

// WithPointer sets where Migrate persists the new base path.
func WithPointer(p migrate.Pointer) Option {
	return func(s *Service) { s.ptr = p }
}

// WithPublisher sets the change event sink.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

type discardPublisher struct{}

func (discardPublisher) PublishChange(string, any) {}

type memoryPointer struct{}

func (memoryPointer) Set(string) error { return nil }

// New creates a service over store.
func New(store *notestore.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		events:    discardPublisher{},
		ptr:       memoryPointer{},
		logger:    slog.Default(),
		relocated: make(chan string, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.codec == nil {
		s.codec = archive.New(archive.WithLogger(s.logger))
	}
	return s
}

// BasePath returns the directory of the active store.
func (s *Service) BasePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Root()
}

// Store returns the active store.
func (s *Service) Store() *notestore.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Relocated delivers the new base path after each successful migration.
// Only the latest path is kept when nobody is receiving.
func (s *Service) Relocated() <-chan string {
	return s.relocated
}

// ListCategories returns every category, default first.
func (s *Service) ListCategories(_ context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ListCategories()
}

// CreateCategory creates a category with a fresh id.
func (s *Service) CreateCategory(_ context.Context, name, color string) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.CreateCategory(name, color)
	if err != nil {
		return models.Category{}, err
	}
	s.publish(sse.CategoryCreated, c)
	return c, nil
}

// UpdateCategory merges patch into a category's metadata.
func (s *Service) UpdateCategory(_ context.Context, id string, patch models.CategoryPatch) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.UpdateCategory(id, patch)
	if err != nil {
		return models.Category{}, err
	}
	s.resync()
	s.publish(sse.CategoryUpdated, c)
	return c, nil
}

// DeleteCategory moves the category's notes to the default category and
// removes it. Deleting the default category does nothing. It returns the
// number of notes moved.
func (s *Service) DeleteCategory(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved, err := s.store.DeleteCategory(id)
	if err != nil {
		return 0, err
	}
	if id == models.DefaultCategoryID {
		return 0, nil
	}
	s.resync()
	s.publish(sse.CategoryDeleted, map[string]any{"id": id, "moved": moved})
	return moved, nil
}

// ListNotes returns every valid note, newest image first.
func (s *Service) ListNotes(_ context.Context) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ListNotes()
}

// GetNote returns one note.
func (s *Service) GetNote(_ context.Context, categoryID, noteID string) (models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.GetNote(categoryID, noteID)
}

// ImportImage creates a note in categoryID from the image at sourcePath.
func (s *Service) ImportImage(_ context.Context, categoryID, sourcePath, name string) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.store.ImportImage(categoryID, sourcePath, name)
	if err != nil {
		return models.Note{}, err
	}
	s.resync()
	s.publish(sse.NoteCreated, n)
	return n, nil
}

// UpdateNote merges patch into a note's metadata.
func (s *Service) UpdateNote(_ context.Context, categoryID, noteID string, patch models.NotePatch) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.store.UpdateNote(categoryID, noteID, patch)
	if err != nil {
		return models.Note{}, err
	}
	s.resync()
	s.publish(sse.NoteUpdated, n)
	return n, nil
}

// MoveNote moves a note between categories and returns its new image path,
// or "" when the moved note has no image.
func (s *Service) MoveNote(_ context.Context, noteID, fromCategoryID, toCategoryID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	imagePath, err := s.store.MoveNote(noteID, fromCategoryID, toCategoryID)
	if err != nil {
		return "", err
	}
	if fromCategoryID != toCategoryID {
		s.resync()
		s.publish(sse.NoteMoved, map[string]string{"id": noteID, "from": fromCategoryID, "to": toCategoryID})
	}
	return imagePath, nil
}

// DeleteNote removes a note. A missing note is not an error.
func (s *Service) DeleteNote(_ context.Context, categoryID, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteNote(noteID, categoryID); err != nil {
		return err
	}
	s.resync()
	s.publish(sse.NoteDeleted, models.NoteRef{ID: noteID, CategoryID: categoryID})
	return nil
}

// ExportImage copies a note's image to dest and returns the written path.
// When dest is an existing directory the file is named after the note. A
// PNG image always gets a .png suffix; other images fill in their extension
// only when dest has none.
func (s *Service) ExportImage(_ context.Context, categoryID, noteID, dest string) (string, error) {
	if dest == "" {
		return "", apperr.New(apperr.ErrInvalidArgument, "export image", "destination is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, err := s.store.GetNote(categoryID, noteID)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(n.ImageFile))
	switch info, err := os.Stat(dest); {
	case err == nil && info.IsDir():
		dest = filepath.Join(dest, exportName(n.Name)+ext)
	case ext == ".png" && !strings.EqualFold(filepath.Ext(dest), ".png"):
		dest += ext
	case ext != ".png" && filepath.Ext(dest) == "":
		dest += ext
	}
	if err := storage.CopyFile(n.ImagePath, dest); err != nil {
		return "", apperr.IO("export image", dest, err)
	}
	return dest, nil
}

// exportName makes a note name usable as a file name.
func exportName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) || r < 0x20 {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "image"
	}
	return name
}

// ExportFull packs the whole store into an archive at dest and returns the
// archive path.
func (s *Service) ExportFull(_ context.Context, dest string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.codec.PackDir(s.store.Root(), dest)
}

// ExportSubset packs only the referenced notes into an archive at dest.
func (s *Service) ExportSubset(_ context.Context, refs []models.NoteRef, dest string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.codec.PackSubset(s.store.Root(), refs, dest)
}

// ImportArchive merges the archive at archivePath into the store.
func (s *Service) ImportArchive(_ context.Context, archivePath string, opts models.MergeOptions) (models.MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Ensure(); err != nil {
		return models.MergeResult{}, err
	}
	ex, err := s.codec.Unpack(archivePath)
	if err != nil {
		return models.MergeResult{}, err
	}
	defer func() {
		if err := ex.Close(); err != nil {
			s.logger.Warn("noteservice: extraction cleanup failed",
				slog.String("dir", ex.Dir),
				slog.String("error", err.Error()))
		}
	}()

	res, err := merge.New(s.store, s.logger).Merge(ex.Base, opts)
	if res.Added > 0 {
		s.resync()
	}
	if err != nil {
		return res, err
	}
	s.publish(sse.StoreImported, res)
	return res, nil
}

// Migrate copies the store under targetParent and makes the copy active.
func (s *Service) Migrate(_ context.Context, targetParent string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dest, err := migrate.Migrate(s.store.Root(), targetParent, s.ptr, s.logger)
	if err != nil {
		return "", err
	}
	st, err := notestore.Open(dest, s.logger)
	if err != nil {
		return "", err
	}
	s.store = st
	s.resync()

	select {
	case <-s.relocated:
	default:
	}
	s.relocated <- dest

	s.publish(sse.StoreMigrated, map[string]string{"base_path": dest})
	return dest, nil
}

// Search queries the catalog by note or category name.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return nil, ErrNoIndex
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperr.New(apperr.ErrInvalidArgument, "search", "query is required")
	}
	return s.db.Search(query, limit)
}

// Duplicates lists groups of notes with identical content.
func (s *Service) Duplicates(_ context.Context) ([]index.DuplicateGroup, error) {
	if s.db == nil {
		return nil, ErrNoIndex
	}
	return s.db.Duplicates()
}

// Resync rebuilds the catalog from the tree.
func (s *Service) Resync(_ context.Context) error {
	if s.db == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return index.Sync(s.db, s.store, s.logger)
}

// resync must be called with the lock held.
func (s *Service) resync() {
	if s.db == nil {
		return
	}
	if err := index.Sync(s.db, s.store, s.logger); err != nil {
		s.logger.Warn("noteservice: index sync failed", slog.String("error", err.Error()))
	}
}

func (s *Service) publish(eventType string, data any) {
	s.events.PublishChange(eventType, data)
}
