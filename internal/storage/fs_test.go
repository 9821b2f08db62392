package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAtomicAndRead(t *testing.T) {
	s := tempStore(t)
	content := []byte(`{"name":"Cat"}`)
	if err := s.WriteAtomic("meta.json", content); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	got, err := s.Read("meta.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteAtomicOverwrite(t *testing.T) {
	s := tempStore(t)
	_ = s.WriteAtomic("meta.json", []byte("original"))
	if err := s.WriteAtomic("meta.json", []byte("updated")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	got, _ := s.Read("meta.json")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	entries, _ := s.ReadDir("")
	if len(entries) != 1 {
		t.Errorf("leftover temp files: %d entries", len(entries))
	}
}

func TestMkdirRenameRemove(t *testing.T) {
	s := tempStore(t)
	if err := s.MkdirAll("a/n1"); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	_ = s.WriteAtomic("a/n1/meta.json", []byte("{}"))
	if err := s.MkdirAll("b"); err != nil {
		t.Fatal(err)
	}
	if err := s.Rename("a/n1", "b/n1"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if ok, _ := s.Exists("b/n1/meta.json"); !ok {
		t.Error("renamed file missing")
	}
	if ok, _ := s.Exists("a/n1"); ok {
		t.Error("old path should not exist")
	}
	if err := s.RemoveAll("b"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if ok, _ := s.Exists("b"); ok {
		t.Error("removed dir still exists")
	}
	if err := s.RemoveAll("b"); err != nil {
		t.Errorf("RemoveAll on missing path: %v", err)
	}
}

func TestRemoveRootRefused(t *testing.T) {
	s := tempStore(t)
	if err := s.RemoveAll(""); err == nil {
		t.Error("expected refusal to remove root")
	}
}

func TestImportFileAndCopyDir(t *testing.T) {
	s := tempStore(t)
	src := t.TempDir()
	_ = os.WriteFile(filepath.Join(src, "image.png"), []byte("png"), 0o644)
	_ = os.MkdirAll(filepath.Join(src, "sub"), 0o755)
	_ = os.WriteFile(filepath.Join(src, "sub", "x"), []byte("x"), 0o644)

	_ = s.MkdirAll("n")
	if err := s.ImportFile(filepath.Join(src, "image.png"), "n/image.png"); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if err := s.CopyDirFrom(src, "copy"); err != nil {
		t.Fatalf("CopyDirFrom: %v", err)
	}
	got, err := s.Read("copy/sub/x")
	if err != nil || string(got) != "x" {
		t.Errorf("nested copy = %q, %v", got, err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempStore(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.WriteAtomic(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
		if err := s.RemoveAll(p); err == nil {
			t.Errorf("expected error for remove of %q", p)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "imgnote-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
