package index

import (
	"log/slog"
	"os"

	"github.com/starford/imgnote/internal/models"
)

// Source is the store the catalog is derived from.
type Source interface {
	Root() string
	ListCategories() ([]models.Category, error)
	ListNotes() ([]models.Note, error)
	NoteDir(ref models.NoteRef) (string, error)
	Fingerprint(ref models.NoteRef) (string, error)
}

// EventCallback is called after a catalog change made by a reconciliation.
// kind is one of "created", "updated", "deleted"; path is "category/note".
type EventCallback func(kind string, path string)

// Sync walks the store and brings the catalog up to date:
//   - new/changed notes are fingerprinted and upserted
//   - notes removed from disk are deleted from the catalog
func Sync(db *DB, src Source, logger *slog.Logger) error {
	return reconcile(db, src, logger, nil)
}

func reconcile(db *DB, src Source, logger *slog.Logger, cb EventCallback) error {
	db.syncMu.Lock()
	defer db.syncMu.Unlock()

	cats, err := src.ListCategories()
	if err != nil {
		return err
	}
	catNames := make(map[string]string, len(cats))
	for _, c := range cats {
		catNames[c.ID] = c.Name
	}

	notes, err := src.ListNotes()
	if err != nil {
		return err
	}

	indexed, err := db.AllRows()
	if err != nil {
		return err
	}

	disk := make(map[models.NoteRef]struct{}, len(notes))
	for _, n := range notes {
		ref := models.NoteRef{ID: n.ID, CategoryID: n.CategoryID}
		disk[ref] = struct{}{}

		row := NoteRow{
			CategoryID:   n.CategoryID,
			NoteID:       n.ID,
			Name:         n.Name,
			CategoryName: catNames[n.CategoryID],
			ImageFile:    n.ImageFile,
			Encrypted:    n.Encrypted,
			MTime:        n.MTime,
			Stamp:        stamp(src, ref),
		}

		old, seen := indexed[ref]
		if seen && old.Stamp == row.Stamp && old.Fingerprint != "" {
			row.Fingerprint = old.Fingerprint
			if old == row {
				continue
			}
		} else {
			fp, err := src.Fingerprint(ref)
			if err != nil {
				logger.Warn("sync: fingerprint failed", slog.String("path", refPath(ref)), slog.String("error", err.Error()))
				continue
			}
			row.Fingerprint = fp
		}

		if err := db.UpsertNote(row); err != nil {
			logger.Warn("sync: index failed", slog.String("path", refPath(ref)), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: indexed", slog.String("path", refPath(ref)))
		if cb != nil {
			kind := "updated"
			if !seen {
				kind = "created"
			}
			cb(kind, refPath(ref))
		}
	}

	// Remove stale entries.
	for ref := range indexed {
		if _, ok := disk[ref]; ok {
			continue
		}
		if err := db.DeleteNote(ref); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", refPath(ref)), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("path", refPath(ref)))
		if cb != nil {
			cb("deleted", refPath(ref))
		}
	}

	return nil
}

// stamp returns the newest modification time among the files of a note
// directory, or 0 when it cannot be read.
func stamp(src Source, ref models.NoteRef) int64 {
	dir, err := src.NoteDir(ref)
	if err != nil {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var newest int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if t := info.ModTime().UnixNano(); t > newest {
			newest = t
		}
	}
	return newest
}

func refPath(ref models.NoteRef) string {
	return ref.CategoryID + "/" + ref.ID
}
