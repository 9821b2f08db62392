//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithHighlight(t *testing.T) {
	db := testDB(t)
	row := NoteRow{CategoryID: "_default", NoteID: "n_1", Name: "Powerful sunset over the bay", CategoryName: "Default", Fingerprint: "f1"}
	if err := db.UpsertNote(row); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}

	results, err := db.Search("sunset", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].NoteID != "n_1" {
		t.Errorf("note id = %q", results[0].NoteID)
	}
	if !strings.Contains(results[0].Snippet, "<b>sunset</b>") {
		t.Errorf("expected highlighted snippet, got %q", results[0].Snippet)
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	row := NoteRow{CategoryID: "c", NoteID: "gone", Name: "vanishing", Fingerprint: "g"}
	_ = db.UpsertNote(row)
	_ = db.DeleteNote(row.Ref())

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.NoteID == "gone" {
			t.Error("deleted note still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{CategoryID: "c", NoteID: "evo", Name: "original", Fingerprint: "1"})
	_ = db.UpsertNote(NoteRow{CategoryID: "c", NoteID: "evo", Name: "replacement", Fingerprint: "2"})

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Name != "replacement" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
