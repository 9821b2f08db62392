package notestore

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/imgnote/internal/apperr"
	"github.com/starford/imgnote/internal/meta"
	"github.com/starford/imgnote/internal/models"
)

// canonicalImageBase is the file name (without extension) imported images get.
const canonicalImageBase = "image"

// ListNotes walks every category and returns the notes found, most recently
// modified image first. Directories without a sidecar or without a
// recognized image are skipped silently.
func (s *Store) ListNotes() ([]models.Note, error) {
	cats, err := s.fs.ReadDir("")
	if err != nil {
		return nil, apperr.IO("list notes", s.Root(), err)
	}
	var out []models.Note
	for _, cat := range cats {
		if !cat.IsDir() {
			continue
		}
		subs, err := s.fs.ReadDir(cat.Name())
		if err != nil {
			s.logger.Warn("store: read category failed",
				slog.String("category", cat.Name()),
				slog.String("error", err.Error()))
			continue
		}
		for _, sub := range subs {
			if !sub.IsDir() || sub.Name() == models.CategoryFile {
				continue
			}
			if n, ok := s.note(cat.Name(), sub.Name()); ok {
				out = append(out, n)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MTime > out[j].MTime })
	return out, nil
}

// GetNote returns one note; NotFound when the directory is not a valid note.
func (s *Store) GetNote(categoryID, noteID string) (models.Note, error) {
	if err := checkID("category id", categoryID); err != nil {
		return models.Note{}, err
	}
	if err := checkID("note id", noteID); err != nil {
		return models.Note{}, err
	}
	n, ok := s.note(categoryID, noteID)
	if !ok {
		return models.Note{}, apperr.New(apperr.ErrNotFound, "get note", "note %s/%s does not exist", categoryID, noteID)
	}
	return n, nil
}

// note loads categoryID/noteID; ok is false unless the directory has a
// sidecar and a recognized image.
func (s *Store) note(categoryID, noteID string) (models.Note, bool) {
	rel := filepath.Join(categoryID, noteID)
	if ok, _ := s.fs.Exists(filepath.Join(rel, models.MetaFile)); !ok {
		return models.Note{}, false
	}
	doc, err := s.readDoc(filepath.Join(rel, models.MetaFile))
	if err != nil {
		doc = meta.Doc{}
	}
	entries, err := s.fs.ReadDir(rel)
	if err != nil {
		return models.Note{}, false
	}
	preferred, _ := doc.String(meta.KeyImageFile)
	image := PickImage(entries, preferred)
	if image == "" {
		return models.Note{}, false
	}

	n := noteFromDoc(categoryID, noteID, doc)
	if n.Name == "" {
		n.Name = strings.TrimSuffix(image, filepath.Ext(image))
	}
	if n.ImageFile == "" {
		n.ImageFile = image
	}
	n.ImagePath, _ = s.fs.Abs(filepath.Join(rel, image))
	if info, err := s.fs.Stat(filepath.Join(rel, image)); err == nil {
		n.MTime = info.ModTime().UnixMilli()
	}
	return n, true
}

func noteFromDoc(categoryID, noteID string, doc meta.Doc) models.Note {
	n := models.Note{ID: noteID, CategoryID: categoryID, Encrypted: doc.Bool(meta.KeyEncrypted)}
	n.Name, _ = doc.String(meta.KeyName)
	n.ImageFile, _ = doc.String(meta.KeyImageFile)
	return n
}

// ImportImage creates a note in categoryID from the image at sourcePath.
// The display name is the trimmed customName, or the source file name
// without its extension.
func (s *Store) ImportImage(categoryID, sourcePath, customName string) (models.Note, error) {
	if categoryID == "" || sourcePath == "" {
		return models.Note{}, apperr.New(apperr.ErrInvalidArgument, "import image", "category id and source path are required")
	}
	if err := checkID("category id", categoryID); err != nil {
		return models.Note{}, err
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Note{}, apperr.New(apperr.ErrNotFound, "import image", "source file does not exist: %s", sourcePath)
		}
		return models.Note{}, apperr.IO("import image", sourcePath, err)
	}
	if info.IsDir() {
		return models.Note{}, apperr.New(apperr.ErrInvalidArgument, "import image", "source is a directory: %s", sourcePath)
	}
	if err := s.Ensure(); err != nil {
		return models.Note{}, err
	}
	ok, err := s.isDir(categoryID)
	if err != nil {
		return models.Note{}, apperr.IO("import image", categoryID, err)
	}
	if !ok {
		return models.Note{}, apperr.New(apperr.ErrNotFound, "import image", "category %q does not exist", categoryID)
	}

	noteID := NewNoteID()
	rel := filepath.Join(categoryID, noteID)
	if err := s.fs.MkdirAll(rel); err != nil {
		return models.Note{}, apperr.IO("import image", rel, err)
	}
	imageFile := canonicalImageName(sourcePath)
	if err := s.fs.ImportFile(sourcePath, filepath.Join(rel, imageFile)); err != nil {
		_ = s.fs.RemoveAll(rel)
		return models.Note{}, apperr.IO("import image", sourcePath, err)
	}

	name := strings.TrimSpace(customName)
	if name == "" {
		base := filepath.Base(sourcePath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if err := s.writeDoc(filepath.Join(rel, models.MetaFile), meta.NewNote(name, imageFile, false)); err != nil {
		_ = s.fs.RemoveAll(rel)
		return models.Note{}, err
	}
	s.logger.Debug("store: image imported",
		slog.String("category", categoryID),
		slog.String("note", noteID))
	return s.GetNote(categoryID, noteID)
}

// canonicalImageName keeps a recognized source extension and falls back to .png.
func canonicalImageName(sourcePath string) string {
	ext := strings.ToLower(filepath.Ext(sourcePath))
	if !models.IsImageFile(ext) {
		ext = ".png"
	}
	return canonicalImageBase + ext
}

// UpdateNote applies patch to the note sidecar. Unreadable metadata starts
// from an empty object. Nothing is written when no field actually changes.
func (s *Store) UpdateNote(categoryID, noteID string, patch models.NotePatch) (models.Note, error) {
	if err := checkID("category id", categoryID); err != nil {
		return models.Note{}, err
	}
	if err := checkID("note id", noteID); err != nil {
		return models.Note{}, err
	}
	rel := filepath.Join(categoryID, noteID)
	ok, err := s.isDir(rel)
	if err != nil {
		return models.Note{}, apperr.IO("update note", rel, err)
	}
	if !ok {
		return models.Note{}, apperr.New(apperr.ErrNotFound, "update note", "note %s does not exist", rel)
	}

	metaRel := filepath.Join(rel, models.MetaFile)
	doc, err := s.readDoc(metaRel)
	if err != nil {
		doc = meta.Doc{}
	}
	changed := false
	if patch.Name != nil {
		changed = doc.SetString(meta.KeyName, *patch.Name) || changed
	}
	if patch.Encrypted != nil {
		changed = doc.SetBool(meta.KeyEncrypted, *patch.Encrypted) || changed
	}
	if changed {
		if err := s.writeDoc(metaRel, doc); err != nil {
			return models.Note{}, err
		}
	}

	if n, ok := s.note(categoryID, noteID); ok {
		return n, nil
	}
	return noteFromDoc(categoryID, noteID, doc), nil
}

// MoveNote renames the note directory from one category to another and
// returns the absolute path of its image in the new location, or "" if the
// moved directory holds no recognized image.
func (s *Store) MoveNote(noteID, fromCategoryID, toCategoryID string) (string, error) {
	if err := checkID("note id", noteID); err != nil {
		return "", err
	}
	if err := checkID("source category id", fromCategoryID); err != nil {
		return "", err
	}
	if err := checkID("destination category id", toCategoryID); err != nil {
		return "", err
	}
	src := filepath.Join(fromCategoryID, noteID)
	dest := filepath.Join(toCategoryID, noteID)

	ok, err := s.isDir(src)
	if err != nil {
		return "", apperr.IO("move note", src, err)
	}
	if !ok {
		return "", apperr.New(apperr.ErrNotFound, "move note", "note %s does not exist", src)
	}
	if fromCategoryID != toCategoryID {
		ok, err = s.isDir(toCategoryID)
		if err != nil {
			return "", apperr.IO("move note", toCategoryID, err)
		}
		if !ok {
			return "", apperr.New(apperr.ErrNotFound, "move note", "category %q does not exist", toCategoryID)
		}
		taken, err := s.fs.Exists(dest)
		if err != nil {
			return "", apperr.IO("move note", dest, err)
		}
		if taken {
			return "", apperr.New(apperr.ErrConflict, "move note", "note %s already exists", dest)
		}
		if err := s.fs.Rename(src, dest); err != nil {
			return "", apperr.IO("move note", src, err)
		}
	}

	return s.imagePath(dest), nil
}

// imagePath resolves the image of the note directory rel, "" if none.
func (s *Store) imagePath(rel string) string {
	entries, err := s.fs.ReadDir(rel)
	if err != nil {
		return ""
	}
	preferred := ""
	if doc, err := s.readDoc(filepath.Join(rel, models.MetaFile)); err == nil {
		preferred, _ = doc.String(meta.KeyImageFile)
	}
	image := PickImage(entries, preferred)
	if image == "" {
		return ""
	}
	abs, _ := s.fs.Abs(filepath.Join(rel, image))
	return abs
}

// DeleteNote removes the note directory. A missing directory is success.
func (s *Store) DeleteNote(noteID, categoryID string) error {
	if err := checkID("note id", noteID); err != nil {
		return err
	}
	if err := checkID("category id", categoryID); err != nil {
		return err
	}
	rel := filepath.Join(categoryID, noteID)
	if err := s.fs.RemoveAll(rel); err != nil {
		return apperr.IO("delete note", rel, err)
	}
	return nil
}

// AdoptNote copies the foreign note directory srcDir into categoryID under a
// freshly allocated id and returns that id. The category directory must
// exist.
func (s *Store) AdoptNote(srcDir, categoryID string) (string, error) {
	if err := checkID("category id", categoryID); err != nil {
		return "", err
	}
	noteID := NewNoteID()
	rel := filepath.Join(categoryID, noteID)
	if err := s.fs.CopyDirFrom(srcDir, rel); err != nil {
		return "", apperr.IO("adopt note", srcDir, err)
	}
	return noteID, nil
}
