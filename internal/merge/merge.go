// Package merge imports notes from an extracted foreign store into the local
// store, optionally skipping notes whose content is already present.
package merge

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/imgnote/internal/apperr"
	"github.com/starford/imgnote/internal/checksum"
	"github.com/starford/imgnote/internal/models"
	"github.com/starford/imgnote/internal/notestore"
)

// Engine merges foreign store trees into a local store.
type Engine struct {
	store  *notestore.Store
	logger *slog.Logger
}

// New creates a merge engine writing into store.
func New(store *notestore.Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Merge copies every eligible note under srcBase into the local store. A
// source category is only considered when it carries category metadata; a
// source note must have a sidecar and a recognized image. Each copied note
// gets a fresh id. Work already done is kept when a later copy fails.
func (e *Engine) Merge(srcBase string, opts models.MergeOptions) (models.MergeResult, error) {
	var res models.MergeResult

	cats, err := os.ReadDir(srcBase)
	if err != nil {
		return res, apperr.IO("merge", srcBase, err)
	}

	var known map[string]struct{}
	if opts.SkipDuplicates {
		known = e.localFingerprints()
	}

	for _, c := range cats {
		if !c.IsDir() {
			continue
		}
		srcCat := filepath.Join(srcBase, c.Name())
		srcMeta := filepath.Join(srcCat, models.CategoryFile)
		if _, err := os.Stat(srcMeta); err != nil {
			e.logger.Debug("merge: skipping directory without category metadata", slog.String("dir", srcCat))
			continue
		}
		if err := e.store.AdoptCategory(c.Name(), srcMeta); err != nil {
			e.logger.Warn("merge: skipping unusable category",
				slog.String("dir", srcCat),
				slog.String("error", err.Error()))
			continue
		}

		notes, err := os.ReadDir(srcCat)
		if err != nil {
			e.logger.Warn("merge: read source category failed",
				slog.String("dir", srcCat),
				slog.String("error", err.Error()))
			continue
		}
		for _, n := range notes {
			if !n.IsDir() {
				continue
			}
			srcNote := filepath.Join(srcCat, n.Name())
			if !eligible(srcNote) {
				continue
			}

			var sum string
			if known != nil {
				// An unreadable source note is still copied, it just cannot be deduplicated.
				sum, _ = checksum.Dir(srcNote)
				if _, dup := known[sum]; sum != "" && dup {
					res.Skipped++
					continue
				}
			}

			id, err := e.store.AdoptNote(srcNote, c.Name())
			if err != nil {
				return res, err
			}
			if known != nil && sum != "" {
				known[sum] = struct{}{}
			}
			res.Added++
			e.logger.Debug("merge: note added",
				slog.String("category", c.Name()),
				slog.String("source", n.Name()),
				slog.String("id", id))
		}
	}

	e.logger.Info("merge: complete",
		slog.String("source", srcBase),
		slog.Int("added", res.Added),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

func (e *Engine) localFingerprints() map[string]struct{} {
	known := make(map[string]struct{})
	notes, err := e.store.ListNotes()
	if err != nil {
		e.logger.Warn("merge: list local notes failed", slog.String("error", err.Error()))
		return known
	}
	for _, n := range notes {
		sum, err := e.store.Fingerprint(models.NoteRef{ID: n.ID, CategoryID: n.CategoryID})
		if err != nil {
			continue
		}
		known[sum] = struct{}{}
	}
	return known
}

func eligible(noteDir string) bool {
	if _, err := os.Stat(filepath.Join(noteDir, models.MetaFile)); err != nil {
		return false
	}
	entries, err := os.ReadDir(noteDir)
	if err != nil {
		return false
	}
	return notestore.PickImage(entries, "") != ""
}
