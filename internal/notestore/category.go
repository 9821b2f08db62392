package notestore

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/imgnote/internal/apperr"
	"github.com/starford/imgnote/internal/meta"
	"github.com/starford/imgnote/internal/models"
)

// ListCategories returns every category directory under the base. Metadata
// that cannot be read falls back to the directory name and default color.
// The default category is always first; other entries keep directory order.
func (s *Store) ListCategories() ([]models.Category, error) {
	entries, err := s.fs.ReadDir("")
	if err != nil {
		return nil, apperr.IO("list categories", s.Root(), err)
	}
	out := make([]models.Category, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		out = append(out, s.category(e.Name()))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ID == models.DefaultCategoryID && out[j].ID != models.DefaultCategoryID
	})
	return out, nil
}

// GetCategory returns one category, NotFound if its directory is absent.
func (s *Store) GetCategory(id string) (models.Category, error) {
	if err := checkID("category id", id); err != nil {
		return models.Category{}, err
	}
	ok, err := s.isDir(id)
	if err != nil {
		return models.Category{}, apperr.IO("get category", id, err)
	}
	if !ok {
		return models.Category{}, apperr.New(apperr.ErrNotFound, "get category", "category %q does not exist", id)
	}
	return s.category(id), nil
}

func (s *Store) category(id string) models.Category {
	c := models.Category{ID: id, Name: id, Color: models.DefaultColor}
	if id == models.DefaultCategoryID {
		c.Name = models.DefaultCategoryName
	}
	doc, err := s.readDoc(filepath.Join(id, models.CategoryFile))
	if err != nil {
		return c
	}
	if name, ok := doc.String(meta.KeyName); ok {
		c.Name = name
	}
	if color, ok := doc.String(meta.KeyColor); ok {
		c.Color = color
	}
	return c
}

// CreateCategory allocates a fresh category with the given name and color.
// An empty color means the default color.
func (s *Store) CreateCategory(name, color string) (models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Category{}, apperr.New(apperr.ErrInvalidArgument, "create category", "name is required")
	}
	if color == "" {
		color = models.DefaultColor
	}
	if err := s.Ensure(); err != nil {
		return models.Category{}, err
	}
	id := newID(categoryPrefix)
	if err := s.fs.MkdirAll(id); err != nil {
		return models.Category{}, apperr.IO("create category", id, err)
	}
	if err := s.writeDoc(filepath.Join(id, models.CategoryFile), meta.NewCategory(name, color)); err != nil {
		return models.Category{}, err
	}
	s.logger.Debug("store: category created", slog.String("id", id))
	return models.Category{ID: id, Name: name, Color: color}, nil
}

// UpdateCategory merges patch into the category metadata. Fields left nil
// keep their stored values.
func (s *Store) UpdateCategory(id string, patch models.CategoryPatch) (models.Category, error) {
	if err := checkID("category id", id); err != nil {
		return models.Category{}, err
	}
	ok, err := s.isDir(id)
	if err != nil {
		return models.Category{}, apperr.IO("update category", id, err)
	}
	if !ok {
		return models.Category{}, apperr.New(apperr.ErrNotFound, "update category", "category %q does not exist", id)
	}
	rel := filepath.Join(id, models.CategoryFile)
	doc, err := s.readDoc(rel)
	if err != nil {
		doc = meta.Doc{}
	}
	changed := false
	if patch.Name != nil {
		changed = doc.SetString(meta.KeyName, *patch.Name) || changed
	}
	if patch.Color != nil {
		changed = doc.SetString(meta.KeyColor, *patch.Color) || changed
	}
	if changed {
		if err := s.writeDoc(rel, doc); err != nil {
			return models.Category{}, err
		}
	}
	return s.category(id), nil
}

// DeleteCategory moves every note of the category into the default category
// and removes the category directory. Deleting the default category is a
// silent no-op. A note whose id already exists in the default category is
// moved under a fresh id instead of overwriting it. It returns the number of
// relocated notes.
func (s *Store) DeleteCategory(id string) (int, error) {
	if id == models.DefaultCategoryID {
		return 0, nil
	}
	if err := checkID("category id", id); err != nil {
		return 0, err
	}
	ok, err := s.isDir(id)
	if err != nil {
		return 0, apperr.IO("delete category", id, err)
	}
	if !ok {
		return 0, apperr.New(apperr.ErrNotFound, "delete category", "category %q does not exist", id)
	}
	if err := s.Ensure(); err != nil {
		return 0, err
	}
	entries, err := s.fs.ReadDir(id)
	if err != nil {
		return 0, apperr.IO("delete category", id, err)
	}

	moved := 0
	for _, e := range entries {
		if !e.IsDir() || e.Name() == models.CategoryFile {
			continue
		}
		destID := e.Name()
		taken, err := s.fs.Exists(filepath.Join(models.DefaultCategoryID, destID))
		if err != nil {
			return moved, apperr.IO("delete category", destID, err)
		}
		if taken {
			destID = NewNoteID()
			s.logger.Warn("store: note id collision on category delete, renaming",
				slog.String("category", id),
				slog.String("note", e.Name()),
				slog.String("new_id", destID))
		}
		if err := s.fs.Rename(filepath.Join(id, e.Name()), filepath.Join(models.DefaultCategoryID, destID)); err != nil {
			return moved, apperr.IO("delete category", e.Name(), err)
		}
		moved++
	}

	if err := s.fs.RemoveAll(id); err != nil {
		return moved, apperr.IO("delete category", id, err)
	}
	s.logger.Debug("store: category deleted", slog.String("id", id), slog.Int("moved", moved))
	return moved, nil
}

// AdoptCategory creates category id if absent and copies srcMetaFile into it
// unless the local category already has metadata. Local metadata is never
// overwritten. srcMetaFile may be empty.
func (s *Store) AdoptCategory(id, srcMetaFile string) error {
	if err := checkID("category id", id); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(id); err != nil {
		return apperr.IO("adopt category", id, err)
	}
	if srcMetaFile == "" {
		return nil
	}
	rel := filepath.Join(id, models.CategoryFile)
	ok, err := s.fs.Exists(rel)
	if err != nil {
		return apperr.IO("adopt category", rel, err)
	}
	if ok {
		return nil
	}
	if err := s.fs.ImportFile(srcMetaFile, rel); err != nil {
		return apperr.IO("adopt category", rel, err)
	}
	return nil
}
