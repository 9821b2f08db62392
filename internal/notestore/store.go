// Package notestore implements the category and note store over a directory tree.
//
// The tree is the database: there is no index file and nothing is cached.
// Every read re-walks the base directory, so results always reflect the disk.
// Store performs no locking of its own; callers serialize mutations.
package notestore

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/imgnote/internal/apperr"
	"github.com/starford/imgnote/internal/checksum"
	"github.com/starford/imgnote/internal/meta"
	"github.com/starford/imgnote/internal/models"
	"github.com/starford/imgnote/internal/storage"
)

// Store is the category/note store rooted at one base directory.
type Store struct {
	fs     storage.Provider
	logger *slog.Logger
}

// Open creates basePath if needed, makes sure the default category exists
// and returns a Store over it.
func Open(basePath string, logger *slog.Logger) (*Store, error) {
	if basePath == "" {
		return nil, apperr.New(apperr.ErrInvalidArgument, "open store", "base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, apperr.IO("open store", basePath, err)
	}
	p, err := storage.NewFS(basePath)
	if err != nil {
		return nil, apperr.IO("open store", basePath, err)
	}
	s := New(p, logger)
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	return s, nil
}

// New returns a Store over an existing provider without touching the disk.
func New(p storage.Provider, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{fs: p, logger: logger}
}

// Root returns the absolute base directory.
func (s *Store) Root() string { return s.fs.Root() }

// Ensure creates the base directory and the default category if absent.
func (s *Store) Ensure() error {
	if err := s.fs.MkdirAll(""); err != nil {
		return apperr.IO("ensure store", s.Root(), err)
	}
	ok, err := s.fs.Exists(models.DefaultCategoryID)
	if err != nil {
		return apperr.IO("ensure store", models.DefaultCategoryID, err)
	}
	if ok {
		return nil
	}
	if err := s.fs.MkdirAll(models.DefaultCategoryID); err != nil {
		return apperr.IO("ensure store", models.DefaultCategoryID, err)
	}
	doc := meta.NewCategory(models.DefaultCategoryName, models.DefaultColor)
	if err := s.writeDoc(filepath.Join(models.DefaultCategoryID, models.CategoryFile), doc); err != nil {
		return err
	}
	s.logger.Info("store: default category created", slog.String("root", s.Root()))
	return nil
}

// NoteDir returns the absolute directory of a note.
func (s *Store) NoteDir(ref models.NoteRef) (string, error) {
	if err := checkID("category id", ref.CategoryID); err != nil {
		return "", err
	}
	if err := checkID("note id", ref.ID); err != nil {
		return "", err
	}
	return s.fs.Abs(filepath.Join(ref.CategoryID, ref.ID))
}

// Fingerprint returns the content fingerprint of a note directory.
func (s *Store) Fingerprint(ref models.NoteRef) (string, error) {
	dir, err := s.NoteDir(ref)
	if err != nil {
		return "", err
	}
	sum, err := checksum.Dir(dir)
	if err != nil {
		return "", apperr.IO("fingerprint", dir, err)
	}
	return sum, nil
}

// checkID rejects ids that are empty or not a single path element.
func checkID(what, id string) error {
	if id == "" {
		return apperr.New(apperr.ErrInvalidArgument, "validate", "%s is required", what)
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return apperr.New(apperr.ErrInvalidArgument, "validate", "invalid %s %q", what, id)
	}
	return nil
}

// isDir reports whether rel is an existing directory.
func (s *Store) isDir(rel string) (bool, error) {
	info, err := s.fs.Stat(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (s *Store) readDoc(rel string) (meta.Doc, error) {
	data, err := s.fs.Read(rel)
	if err != nil {
		return nil, err
	}
	return meta.Parse(data)
}

func (s *Store) writeDoc(rel string, doc meta.Doc) error {
	data, err := doc.Encode()
	if err != nil {
		return apperr.Wrap(apperr.ErrIOFailure, "write metadata", rel, err)
	}
	if err := s.fs.WriteAtomic(rel, data); err != nil {
		return apperr.IO("write metadata", rel, err)
	}
	return nil
}

// PickImage chooses the image of a note directory from its entries. The
// preferred name (from the sidecar) wins when it is a present image;
// otherwise the lexicographically first recognized image is used.
// It returns "" when the directory holds no recognized image.
func PickImage(entries []fs.DirEntry, preferred string) string {
	first := ""
	for _, e := range entries {
		if !e.Type().IsRegular() || !models.IsImageFile(e.Name()) {
			continue
		}
		if preferred != "" && e.Name() == preferred {
			return preferred
		}
		if first == "" || e.Name() < first {
			first = e.Name()
		}
	}
	return first
}
