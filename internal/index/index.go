package index

import "github.com/starford/imgnote/internal/models"

// Catalog defines the interface for note catalog operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Catalog interface {
	UpsertNote(n NoteRow) error
	DeleteNote(ref models.NoteRef) error
	Fingerprint(ref models.NoteRef) (string, error)
	AllRows() (map[models.NoteRef]NoteRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	Duplicates() ([]DuplicateGroup, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
