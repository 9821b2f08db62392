package models

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIsImageFile(t *testing.T) {
	for name, want := range map[string]bool{
		"image.png":  true,
		"IMAGE.JPEG": true,
		"a.webp":     true,
		"b.bmp":      true,
		"meta.json":  false,
		"noext":      false,
		"x.svg":      false,
	} {
		if got := IsImageFile(name); got != want {
			t.Errorf("IsImageFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestParseNoteRefs(t *testing.T) {
	refs, err := ParseNoteRefs([]string{"_default/note_1", "cat_x/note_2"})
	if err != nil {
		t.Fatal(err)
	}
	want := []NoteRef{{ID: "note_1", CategoryID: "_default"}, {ID: "note_2", CategoryID: "cat_x"}}
	if diff := cmp.Diff(want, refs); diff != "" {
		t.Errorf("refs mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"nocut", "/note", "cat/"} {
		if _, err := ParseNoteRefs([]string{bad}); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
