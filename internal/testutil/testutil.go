// Package testutil provides shared test helpers for setting up stores and databases.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/imgnote/internal/index"
	"github.com/starford/imgnote/internal/models"
	"github.com/starford/imgnote/internal/notestore"
)

// PNG is a tiny payload with a PNG signature; content only matters for fingerprints.
var PNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0}

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "imgnote-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore opens a fresh store under a temporary directory. The base is
// named like an archive root so migrations and exports look realistic.
func TestStore(t *testing.T) *notestore.Store {
	t.Helper()
	st, err := notestore.Open(filepath.Join(t.TempDir(), models.ArchiveRoot), Logger())
	if err != nil {
		t.Fatal(err)
	}
	return st
}

// WriteImage writes data to a new file called name in a temporary directory
// and returns its path.
func WriteImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// SeedNote imports an image with the given content into categoryID.
func SeedNote(t *testing.T, st *notestore.Store, categoryID, name string, data []byte) models.Note {
	t.Helper()
	n, err := st.ImportImage(categoryID, WriteImage(t, name+".png", data), name)
	if err != nil {
		t.Fatalf("seed note %q: %v", name, err)
	}
	return n
}

// Fingerprints returns the fingerprint of every valid note in st.
func Fingerprints(t *testing.T, st *notestore.Store) map[string]bool {
	t.Helper()
	notes, err := st.ListNotes()
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]bool, len(notes))
	for _, n := range notes {
		fp, err := st.Fingerprint(models.NoteRef{ID: n.ID, CategoryID: n.CategoryID})
		if err != nil {
			t.Fatal(err)
		}
		out[fp] = true
	}
	return out
}
