//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/imgnote/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			category_id UNINDEXED,
			note_id UNINDEXED,
			name,
			category_name,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, n NoteRow) error {
	ftsDelete(tx, n.Ref())
	_, err := tx.Exec(`INSERT INTO notes_fts (category_id, note_id, name, category_name) VALUES (?, ?, ?, ?)`,
		n.CategoryID, n.NoteID, n.Name, n.CategoryName)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, ref models.NoteRef) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE category_id = ? AND note_id = ?`, ref.CategoryID, ref.ID)
}

// Search performs an FTS5 search over note and category names and returns
// matching notes with highlighted snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT category_id,
		       note_id,
		       name,
		       category_name,
		       highlight(notes_fts, 2, '<b>', '</b>')
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.CategoryID, &r.NoteID, &r.Name, &r.CategoryName, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
