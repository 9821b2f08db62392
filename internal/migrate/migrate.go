// Package migrate relocates a store to a new parent directory.
package migrate

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/imgnote/internal/apperr"
	"github.com/starford/imgnote/internal/models"
	"github.com/starford/imgnote/internal/storage"
)

// Pointer persists the active base directory.
type Pointer interface {
	Set(path string) error
}

// Migrate copies the store at base into targetParent/dataBase, merging with
// whatever is already there, then switches ptr to the new location. The old
// directory is left untouched. It returns the new base path.
func Migrate(base, targetParent string, ptr Pointer, logger *slog.Logger) (string, error) {
	if targetParent == "" {
		return "", apperr.New(apperr.ErrInvalidArgument, "migrate", "target directory is required")
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", apperr.IO("migrate", base, err)
	}
	absParent, err := filepath.Abs(targetParent)
	if err != nil {
		return "", apperr.IO("migrate", targetParent, err)
	}
	dest := filepath.Join(absParent, models.ArchiveRoot)
	if within(absBase, dest) {
		return "", apperr.New(apperr.ErrInvalidArgument, "migrate", "target %s is inside the current store %s", dest, absBase)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", apperr.IO("migrate", dest, err)
	}
	if err := storage.CopyDir(absBase, dest); err != nil {
		return "", apperr.IO("migrate", dest, err)
	}
	if err := ptr.Set(dest); err != nil {
		return "", apperr.Wrap(apperr.ErrIOFailure, "migrate", dest, err)
	}

	logger.Info("migrate: store relocated",
		slog.String("from", absBase),
		slog.String("to", dest))
	return dest, nil
}

// within reports whether p equals dir or lies below it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}
