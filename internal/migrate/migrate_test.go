package migrate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/imgnote/internal/apperr"
	"github.com/starford/imgnote/internal/models"
	"github.com/starford/imgnote/internal/notestore"
	"github.com/starford/imgnote/internal/testutil"
)

type fakePointer struct {
	path string
	err  error
}

func (p *fakePointer) Set(path string) error {
	if p.err != nil {
		return p.err
	}
	p.path = path
	return nil
}

func TestMigrate_CopiesAndSwitches(t *testing.T) {
	st := testutil.TestStore(t)
	cat, err := st.CreateCategory("Moved", "")
	if err != nil {
		t.Fatal(err)
	}
	testutil.SeedNote(t, st, cat.ID, "x", []byte("x"))
	testutil.SeedNote(t, st, models.DefaultCategoryID, "y", []byte("y"))
	before := testutil.Fingerprints(t, st)

	parent := t.TempDir()
	ptr := &fakePointer{}
	dest, err := Migrate(st.Root(), parent, ptr, testutil.Logger())
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if want := filepath.Join(parent, models.ArchiveRoot); dest != want {
		t.Fatalf("dest = %q, want %q", dest, want)
	}
	if ptr.path != dest {
		t.Fatalf("pointer = %q, want %q", ptr.path, dest)
	}

	moved, err := notestore.Open(dest, testutil.Logger())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, testutil.Fingerprints(t, moved)); diff != "" {
		t.Fatalf("fingerprints differ (-old +new):\n%s", diff)
	}
	if _, err := os.Stat(st.Root()); err != nil {
		t.Fatalf("old base should remain: %v", err)
	}
}

func TestMigrate_RejectsTargetInsideBase(t *testing.T) {
	st := testutil.TestStore(t)
	for _, target := range []string{
		filepath.Dir(st.Root()),
		st.Root(),
		filepath.Join(st.Root(), models.DefaultCategoryID),
	} {
		ptr := &fakePointer{}
		_, err := Migrate(st.Root(), target, ptr, testutil.Logger())
		if !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Fatalf("target %q: expected ErrInvalidArgument, got %v", target, err)
		}
		if ptr.path != "" {
			t.Fatalf("target %q: pointer must not change", target)
		}
	}
}

func TestMigrate_EmptyTarget(t *testing.T) {
	st := testutil.TestStore(t)
	if _, err := Migrate(st.Root(), "", &fakePointer{}, testutil.Logger()); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestMigrate_PointerFailure(t *testing.T) {
	st := testutil.TestStore(t)
	ptr := &fakePointer{err: errors.New("disk full")}
	if _, err := Migrate(st.Root(), t.TempDir(), ptr, testutil.Logger()); !errors.Is(err, apperr.ErrIOFailure) {
		t.Fatalf("expected ErrIOFailure, got %v", err)
	}
}
