package notestore

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/imgnote/internal/apperr"
	"github.com/starford/imgnote/internal/models"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x01")

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "dataBase"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func sourceImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func mustImport(t *testing.T, s *Store, categoryID, name string, data []byte) models.Note {
	t.Helper()
	n, err := s.ImportImage(categoryID, sourceImage(t, name, data), "")
	if err != nil {
		t.Fatalf("ImportImage: %v", err)
	}
	return n
}

func TestOpen_CreatesDefaultCategory(t *testing.T) {
	s := tempStore(t)
	cats, err := s.ListCategories()
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	want := []models.Category{{ID: models.DefaultCategoryID, Name: models.DefaultCategoryName, Color: models.DefaultColor}}
	if diff := cmp.Diff(want, cats); diff != "" {
		t.Errorf("categories (-want +got):\n%s", diff)
	}
}

func TestEnsure_Idempotent(t *testing.T) {
	s := tempStore(t)
	metaPath := filepath.Join(s.Root(), models.DefaultCategoryID, models.CategoryFile)
	if err := os.WriteFile(metaPath, []byte(`{"name":"Mine","color":"#000"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Ensure(); err != nil {
			t.Fatalf("Ensure: %v", err)
		}
	}
	got, _ := os.ReadFile(metaPath)
	if string(got) != `{"name":"Mine","color":"#000"}` {
		t.Errorf("Ensure rewrote existing metadata: %s", got)
	}
}

func TestListCategories_FallbackAndOrder(t *testing.T) {
	s := tempStore(t)
	// A bare directory without metadata, sorting before "_default".
	if err := os.MkdirAll(filepath.Join(s.Root(), "AAA"), 0o755); err != nil {
		t.Fatal(err)
	}
	// Broken metadata.
	_ = os.MkdirAll(filepath.Join(s.Root(), "broken"), 0o755)
	_ = os.WriteFile(filepath.Join(s.Root(), "broken", models.CategoryFile), []byte("{"), 0o644)
	// Stray file at the base is not a category.
	_ = os.WriteFile(filepath.Join(s.Root(), "stray.txt"), []byte("x"), 0o644)

	cats, err := s.ListCategories()
	if err != nil {
		t.Fatal(err)
	}
	want := []models.Category{
		{ID: models.DefaultCategoryID, Name: models.DefaultCategoryName, Color: models.DefaultColor},
		{ID: "AAA", Name: "AAA", Color: models.DefaultColor},
		{ID: "broken", Name: "broken", Color: models.DefaultColor},
	}
	if diff := cmp.Diff(want, cats); diff != "" {
		t.Errorf("categories (-want +got):\n%s", diff)
	}
}

func TestCreateAndUpdateCategory(t *testing.T) {
	s := tempStore(t)
	c, err := s.CreateCategory("Travel", "#ff0000")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if c.Name != "Travel" || c.Color != "#ff0000" || c.ID == "" {
		t.Errorf("created = %+v", c)
	}

	name := "Trips"
	got, err := s.UpdateCategory(c.ID, models.CategoryPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	if got.Name != "Trips" || got.Color != "#ff0000" {
		t.Errorf("updated = %+v, color should be preserved", got)
	}
}

func TestCreateCategory_Validation(t *testing.T) {
	s := tempStore(t)
	if _, err := s.CreateCategory("  ", ""); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("blank name: err = %v", err)
	}
	c, err := s.CreateCategory("x", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.Color != models.DefaultColor {
		t.Errorf("color = %q, want default", c.Color)
	}
}

func TestUpdateCategory_NotFound(t *testing.T) {
	s := tempStore(t)
	name := "x"
	_, err := s.UpdateCategory("cat_missing", models.CategoryPatch{Name: &name})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestDeleteDefaultCategory_NoOp(t *testing.T) {
	s := tempStore(t)
	n := mustImport(t, s, models.DefaultCategoryID, "cat.png", pngBytes)

	moved, err := s.DeleteCategory(models.DefaultCategoryID)
	if err != nil || moved != 0 {
		t.Fatalf("DeleteCategory(default) = %d, %v", moved, err)
	}
	cats, _ := s.ListCategories()
	if len(cats) != 1 {
		t.Errorf("categories = %d, want 1", len(cats))
	}
	if _, err := s.GetNote(models.DefaultCategoryID, n.ID); err != nil {
		t.Errorf("note moved or lost: %v", err)
	}
}

func TestDeleteCategory_MovesNotesToDefault(t *testing.T) {
	s := tempStore(t)
	c, _ := s.CreateCategory("Work", "")
	want := map[string]bool{}
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		n := mustImport(t, s, c.ID, name, []byte(name))
		fp, _ := s.Fingerprint(models.NoteRef{ID: n.ID, CategoryID: c.ID})
		want[fp] = true
	}

	moved, err := s.DeleteCategory(c.ID)
	if err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if moved != 3 {
		t.Errorf("moved = %d, want 3", moved)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), c.ID)); !os.IsNotExist(err) {
		t.Error("category directory should be removed")
	}
	notes, _ := s.ListNotes()
	got := map[string]bool{}
	for _, n := range notes {
		if n.CategoryID != models.DefaultCategoryID {
			t.Errorf("note %s left in %s", n.ID, n.CategoryID)
		}
		fp, _ := s.Fingerprint(models.NoteRef{ID: n.ID, CategoryID: n.CategoryID})
		got[fp] = true
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fingerprints (-want +got):\n%s", diff)
	}
}

func TestDeleteCategory_IDCollisionRenames(t *testing.T) {
	s := tempStore(t)
	c, _ := s.CreateCategory("Work", "")
	for _, cat := range []string{models.DefaultCategoryID, c.ID} {
		dir := filepath.Join(s.Root(), cat, "n_same")
		_ = os.MkdirAll(dir, 0o755)
		_ = os.WriteFile(filepath.Join(dir, models.MetaFile), []byte(`{"name":"`+cat+`"}`), 0o644)
		_ = os.WriteFile(filepath.Join(dir, "image.png"), []byte(cat), 0o644)
	}

	if _, err := s.DeleteCategory(c.ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	notes, _ := s.ListNotes()
	if len(notes) != 2 {
		t.Fatalf("notes = %d, want 2 (no overwrite)", len(notes))
	}
	names := map[string]bool{}
	for _, n := range notes {
		names[n.Name] = true
	}
	if !names[models.DefaultCategoryID] || !names[c.ID] {
		t.Errorf("names = %v", names)
	}
}

func TestDeleteCategory_NotFound(t *testing.T) {
	s := tempStore(t)
	if _, err := s.DeleteCategory("cat_nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestImportImage(t *testing.T) {
	s := tempStore(t)
	src := sourceImage(t, "Sunset.JPG", []byte("jpeg-bytes"))
	n, err := s.ImportImage(models.DefaultCategoryID, src, "")
	if err != nil {
		t.Fatalf("ImportImage: %v", err)
	}
	if n.Name != "Sunset" {
		t.Errorf("name = %q, want Sunset", n.Name)
	}
	if n.ImageFile != "image.jpg" || n.Encrypted {
		t.Errorf("note = %+v", n)
	}
	data, err := os.ReadFile(n.ImagePath)
	if err != nil || string(data) != "jpeg-bytes" {
		t.Errorf("image copy = %q, %v", data, err)
	}

	n2, err := s.ImportImage(models.DefaultCategoryID, src, "  Custom  ")
	if err != nil {
		t.Fatal(err)
	}
	if n2.Name != "Custom" {
		t.Errorf("custom name = %q", n2.Name)
	}
	if n2.ID == n.ID {
		t.Error("ids must be unique")
	}
}

func TestImportImage_Errors(t *testing.T) {
	s := tempStore(t)
	src := sourceImage(t, "a.png", pngBytes)
	cases := []struct {
		name     string
		category string
		source   string
		want     error
	}{
		{"empty category", "", src, apperr.ErrInvalidArgument},
		{"empty source", models.DefaultCategoryID, "", apperr.ErrInvalidArgument},
		{"missing source", models.DefaultCategoryID, filepath.Join(t.TempDir(), "gone.png"), apperr.ErrNotFound},
		{"missing category", "cat_nope", src, apperr.ErrNotFound},
		{"traversal category", "../x", src, apperr.ErrInvalidArgument},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := s.ImportImage(c.category, c.source, ""); !errors.Is(err, c.want) {
				t.Errorf("err = %v, want %v", err, c.want)
			}
		})
	}
}

func TestListNotes_SkipsInvalidAndSortsByMTime(t *testing.T) {
	s := tempStore(t)
	old := mustImport(t, s, models.DefaultCategoryID, "old.png", []byte("old"))
	recent := mustImport(t, s, models.DefaultCategoryID, "new.png", []byte("new"))
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old.ImagePath, past, past); err != nil {
		t.Fatal(err)
	}

	// No sidecar.
	_ = os.MkdirAll(filepath.Join(s.Root(), models.DefaultCategoryID, "n_nometa"), 0o755)
	_ = os.WriteFile(filepath.Join(s.Root(), models.DefaultCategoryID, "n_nometa", "image.png"), pngBytes, 0o644)
	// No image.
	_ = os.MkdirAll(filepath.Join(s.Root(), models.DefaultCategoryID, "n_noimg"), 0o755)
	_ = os.WriteFile(filepath.Join(s.Root(), models.DefaultCategoryID, "n_noimg", models.MetaFile), []byte("{}"), 0o644)

	notes, err := s.ListNotes()
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Fatalf("notes = %d, want 2", len(notes))
	}
	if notes[0].ID != recent.ID || notes[1].ID != old.ID {
		t.Errorf("order = [%s %s], want [%s %s]", notes[0].ID, notes[1].ID, recent.ID, old.ID)
	}
}

func TestNote_ImageTieBreak(t *testing.T) {
	s := tempStore(t)
	dir := filepath.Join(s.Root(), models.DefaultCategoryID, "n_multi")
	_ = os.MkdirAll(dir, 0o755)
	_ = os.WriteFile(filepath.Join(dir, "b.png"), pngBytes, 0o644)
	_ = os.WriteFile(filepath.Join(dir, "a.gif"), pngBytes, 0o644)
	_ = os.WriteFile(filepath.Join(dir, models.MetaFile), []byte(`{}`), 0o644)

	n, err := s.GetNote(models.DefaultCategoryID, "n_multi")
	if err != nil {
		t.Fatal(err)
	}
	if n.ImageFile != "a.gif" {
		t.Errorf("image = %q, want lexicographically first", n.ImageFile)
	}
	if n.Name != "a" {
		t.Errorf("fallback name = %q", n.Name)
	}

	_ = os.WriteFile(filepath.Join(dir, models.MetaFile), []byte(`{"imageFile":"b.png"}`), 0o644)
	n, _ = s.GetNote(models.DefaultCategoryID, "n_multi")
	if filepath.Base(n.ImagePath) != "b.png" {
		t.Errorf("image path = %q, want sidecar choice", n.ImagePath)
	}
}

func TestUpdateNote_NoDirtyWrite(t *testing.T) {
	s := tempStore(t)
	n := mustImport(t, s, models.DefaultCategoryID, "cat.png", pngBytes)
	metaPath := filepath.Join(s.Root(), n.CategoryID, n.ID, models.MetaFile)
	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	_ = os.Chtimes(metaPath, past, past)

	same := n.Name
	no := false
	if _, err := s.UpdateNote(n.CategoryID, n.ID, models.NotePatch{Name: &same, Encrypted: &no}); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	info, _ := os.Stat(metaPath)
	if !info.ModTime().Equal(past) {
		t.Error("unchanged patch rewrote the sidecar")
	}

	name := "Renamed"
	yes := true
	got, err := s.UpdateNote(n.CategoryID, n.ID, models.NotePatch{Name: &name, Encrypted: &yes})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Renamed" || !got.Encrypted {
		t.Errorf("updated = %+v", got)
	}
}

func TestUpdateNote_MissingMetaStartsEmpty(t *testing.T) {
	s := tempStore(t)
	dir := filepath.Join(s.Root(), models.DefaultCategoryID, "n_bare")
	_ = os.MkdirAll(dir, 0o755)
	_ = os.WriteFile(filepath.Join(dir, "image.png"), pngBytes, 0o644)

	name := "Fresh"
	n, err := s.UpdateNote(models.DefaultCategoryID, "n_bare", models.NotePatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if n.Name != "Fresh" {
		t.Errorf("name = %q", n.Name)
	}
	if _, err := os.Stat(filepath.Join(dir, models.MetaFile)); err != nil {
		t.Errorf("sidecar not written: %v", err)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	s := tempStore(t)
	name := "x"
	_, err := s.UpdateNote(models.DefaultCategoryID, "n_nope", models.NotePatch{Name: &name})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestMoveNote_RoundTrip(t *testing.T) {
	s := tempStore(t)
	c, _ := s.CreateCategory("B", "")
	n := mustImport(t, s, models.DefaultCategoryID, "cat.png", pngBytes)
	before, _ := s.Fingerprint(models.NoteRef{ID: n.ID, CategoryID: n.CategoryID})

	img, err := s.MoveNote(n.ID, models.DefaultCategoryID, c.ID)
	if err != nil {
		t.Fatalf("MoveNote: %v", err)
	}
	if want := filepath.Join(s.Root(), c.ID, n.ID, "image.png"); img != want {
		t.Errorf("image path = %q, want %q", img, want)
	}
	if _, err := s.MoveNote(n.ID, c.ID, models.DefaultCategoryID); err != nil {
		t.Fatalf("MoveNote back: %v", err)
	}
	after, err := s.Fingerprint(models.NoteRef{ID: n.ID, CategoryID: models.DefaultCategoryID})
	if err != nil {
		t.Fatal(err)
	}
	if before != after {
		t.Error("fingerprint changed across move round trip")
	}
}

func TestMoveNote_Errors(t *testing.T) {
	s := tempStore(t)
	c, _ := s.CreateCategory("B", "")
	n := mustImport(t, s, models.DefaultCategoryID, "cat.png", pngBytes)
	_ = os.MkdirAll(filepath.Join(s.Root(), c.ID, n.ID), 0o755)

	if _, err := s.MoveNote("n_nope", models.DefaultCategoryID, c.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing note: %v", err)
	}
	if _, err := s.MoveNote(n.ID, models.DefaultCategoryID, "cat_nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing category: %v", err)
	}
	if _, err := s.MoveNote(n.ID, models.DefaultCategoryID, c.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("occupied destination: %v", err)
	}
}

func TestMoveNote_NoImage(t *testing.T) {
	s := tempStore(t)
	c, _ := s.CreateCategory("B", "")
	_ = os.MkdirAll(filepath.Join(s.Root(), models.DefaultCategoryID, "n_x"), 0o755)
	img, err := s.MoveNote("n_x", models.DefaultCategoryID, c.ID)
	if err != nil {
		t.Fatalf("MoveNote: %v", err)
	}
	if img != "" {
		t.Errorf("image path = %q, want empty", img)
	}
}

func TestDeleteNote(t *testing.T) {
	s := tempStore(t)
	n := mustImport(t, s, models.DefaultCategoryID, "cat.png", pngBytes)
	if err := s.DeleteNote(n.ID, n.CategoryID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if _, err := s.GetNote(n.CategoryID, n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("note still present: %v", err)
	}
	if err := s.DeleteNote(n.ID, n.CategoryID); err != nil {
		t.Errorf("second delete should succeed: %v", err)
	}
}

func TestNewNoteID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewNoteID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
