package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/imgnote/internal/models"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	CategoryID   string
	NoteID       string
	Name         string
	CategoryName string
	Fingerprint  string
	ImageFile    string
	Encrypted    bool
	MTime        int64
	// Stamp is the newest file modification time in the note directory
	// (Unix nanoseconds); an unchanged stamp means the fingerprint is current.
	Stamp int64
}

// Ref returns the note address of the row.
func (r NoteRow) Ref() models.NoteRef {
	return models.NoteRef{ID: r.NoteID, CategoryID: r.CategoryID}
}

// SearchResult represents one search hit.
type SearchResult struct {
	CategoryID   string `json:"category_id"`
	NoteID       string `json:"id"`
	Name         string `json:"name"`
	CategoryName string `json:"category_name"`
	Snippet      string `json:"snippet"`
}

// DuplicateGroup lists notes sharing one fingerprint.
type DuplicateGroup struct {
	Fingerprint string           `json:"fingerprint"`
	Notes       []models.NoteRef `json:"notes"`
}

// UpsertNote inserts or replaces a note and its FTS entry within a transaction.
func (db *DB) UpsertNote(n NoteRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO notes (category_id, note_id, name, category_name, fingerprint, image_file, encrypted, mtime, stamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category_id, note_id) DO UPDATE SET
			name          = excluded.name,
			category_name = excluded.category_name,
			fingerprint   = excluded.fingerprint,
			image_file    = excluded.image_file,
			encrypted     = excluded.encrypted,
			mtime         = excluded.mtime,
			stamp         = excluded.stamp
	`, n.CategoryID, n.NoteID, n.Name, n.CategoryName, n.Fingerprint, n.ImageFile, n.Encrypted, n.MTime, n.Stamp)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteNote removes a note and its FTS entry.
func (db *DB) DeleteNote(ref models.NoteRef) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, ref)
	if _, err := tx.Exec(`DELETE FROM notes WHERE category_id = ? AND note_id = ?`, ref.CategoryID, ref.ID); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}

	return tx.Commit()
}

// Fingerprint returns the stored fingerprint for a note, or empty string if not indexed.
func (db *DB) Fingerprint(ref models.NoteRef) (string, error) {
	var fp string
	err := db.conn.QueryRow(`SELECT fingerprint FROM notes WHERE category_id = ? AND note_id = ?`,
		ref.CategoryID, ref.ID).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: fingerprint: %w", err)
	}
	return fp, nil
}

// AllRows returns every indexed note keyed by its address.
func (db *DB) AllRows() (map[models.NoteRef]NoteRow, error) {
	rows, err := db.conn.Query(`
		SELECT category_id, note_id, name, category_name, fingerprint, image_file, encrypted, mtime, stamp
		FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all rows: %w", err)
	}
	defer rows.Close()
	out := make(map[models.NoteRef]NoteRow)
	for rows.Next() {
		var r NoteRow
		if err := rows.Scan(&r.CategoryID, &r.NoteID, &r.Name, &r.CategoryName, &r.Fingerprint,
			&r.ImageFile, &r.Encrypted, &r.MTime, &r.Stamp); err != nil {
			return nil, err
		}
		out[r.Ref()] = r
	}
	return out, rows.Err()
}

// Duplicates returns every fingerprint held by more than one note, with the
// notes that share it, ordered by fingerprint then address.
func (db *DB) Duplicates() ([]DuplicateGroup, error) {
	rows, err := db.conn.Query(`
		SELECT fingerprint, category_id, note_id
		FROM notes
		WHERE fingerprint IN (
			SELECT fingerprint FROM notes
			WHERE fingerprint != ''
			GROUP BY fingerprint
			HAVING count(*) > 1
		)
		ORDER BY fingerprint, category_id, note_id`)
	if err != nil {
		return nil, fmt.Errorf("index: duplicates: %w", err)
	}
	defer rows.Close()

	var out []DuplicateGroup
	for rows.Next() {
		var fp string
		var ref models.NoteRef
		if err := rows.Scan(&fp, &ref.CategoryID, &ref.ID); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].Fingerprint != fp {
			out = append(out, DuplicateGroup{Fingerprint: fp})
		}
		last := &out[len(out)-1]
		last.Notes = append(last.Notes, ref)
	}
	return out, rows.Err()
}
