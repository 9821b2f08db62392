// Package archive packs a store tree into a single portable zip file and
// restores one into a scratch directory.
//
// Every archive holds exactly one top-level directory, models.ArchiveRoot,
// mirroring the on-disk store layout below it.
package archive

import (
	"archive/zip"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/starford/imgnote/internal/apperr"
	"github.com/starford/imgnote/internal/models"
	"github.com/starford/imgnote/internal/storage"
)

// Codec packs and unpacks store archives.
type Codec struct {
	level   int
	tempDir string
	logger  *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithLevel sets the deflate level (flate.BestSpeed..flate.BestCompression).
func WithLevel(level int) Option {
	return func(c *Codec) { c.level = level }
}

// WithTempDir sets the parent directory for staging and extraction
// directories. Empty means os.TempDir().
func WithTempDir(dir string) Option {
	return func(c *Codec) { c.tempDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) { c.logger = l }
}

// New returns a Codec compressing at flate.BestCompression unless overridden.
func New(opts ...Option) *Codec {
	c := &Codec{level: flate.BestCompression, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithExt appends models.ArchiveExt to dest unless it already ends with it.
func WithExt(dest string) string {
	if strings.EqualFold(filepath.Ext(dest), models.ArchiveExt) {
		return dest
	}
	return dest + models.ArchiveExt
}

// PackDir writes the tree at srcDir into an archive at dest (suffix added
// when missing) under the archive root entry and returns the final path.
// The archive is written to a temporary sibling and renamed into place.
func (c *Codec) PackDir(srcDir, dest string) (string, error) {
	if srcDir == "" || dest == "" {
		return "", apperr.New(apperr.ErrInvalidArgument, "pack", "source and destination are required")
	}
	info, err := os.Stat(srcDir)
	if err != nil {
		return "", apperr.IO("pack", srcDir, err)
	}
	if !info.IsDir() {
		return "", apperr.New(apperr.ErrInvalidArgument, "pack", "source is not a directory: %s", srcDir)
	}
	dest = WithExt(dest)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", apperr.IO("pack", dest, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".imgnote-pack-*")
	if err != nil {
		return "", apperr.IO("pack", dest, err)
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	entries, err := c.writeZip(tmp, srcDir, tmpName)
	if err != nil {
		return "", apperr.IO("pack", srcDir, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", apperr.IO("pack", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", apperr.IO("pack", tmpName, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return "", apperr.IO("pack", dest, err)
	}
	success = true

	c.logger.Info("archive: packed",
		slog.String("source", srcDir),
		slog.String("archive", dest),
		slog.Int("entries", entries))
	return dest, nil
}

// writeZip streams srcDir into w. skip is an absolute path left out of the
// walk (the archive being written, when it lives inside srcDir).
func (c *Codec) writeZip(w io.Writer, srcDir, skip string) (int, error) {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, c.level)
	})

	entries := 0
	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == skip {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		name := models.ArchiveRoot
		if rel != "." {
			name = path.Join(models.ArchiveRoot, filepath.ToSlash(rel))
		}

		if d.IsDir() {
			_, err := zw.Create(name + "/")
			entries++
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = name
		hdr.Method = zip.Deflate
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		if err := copyFrom(fw, p); err != nil {
			return err
		}
		entries++
		return nil
	})
	if err != nil {
		_ = zw.Close()
		return entries, err
	}
	return entries, zw.Close()
}

func copyFrom(w io.Writer, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// PackSubset archives only the referenced notes of the store at base.
// Each referenced category's metadata is copied best-effort; notes without
// a sidecar are skipped. The staging directory is always removed.
func (c *Codec) PackSubset(base string, refs []models.NoteRef, dest string) (string, error) {
	if len(refs) == 0 {
		return "", apperr.New(apperr.ErrInvalidArgument, "pack subset", "no notes selected")
	}
	staging, err := os.MkdirTemp(c.tempDir, "imgnote-export-")
	if err != nil {
		return "", apperr.IO("pack subset", c.tempDir, err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			c.logger.Warn("archive: staging cleanup failed",
				slog.String("dir", staging),
				slog.String("error", err.Error()))
		}
	}()

	seen := make(map[string]struct{})
	for _, ref := range refs {
		if !validID(ref.CategoryID) || !validID(ref.ID) {
			return "", apperr.New(apperr.ErrInvalidArgument, "pack subset", "invalid note reference %s/%s", ref.CategoryID, ref.ID)
		}
		if _, ok := seen[ref.CategoryID]; ok {
			continue
		}
		seen[ref.CategoryID] = struct{}{}
		stagedCat := filepath.Join(staging, ref.CategoryID)
		if err := os.MkdirAll(stagedCat, 0o755); err != nil {
			return "", apperr.IO("pack subset", stagedCat, err)
		}
		// best-effort
		_ = storage.CopyFile(
			filepath.Join(base, ref.CategoryID, models.CategoryFile),
			filepath.Join(stagedCat, models.CategoryFile))
	}

	copied := 0
	for _, ref := range refs {
		src := filepath.Join(base, ref.CategoryID, ref.ID)
		if _, err := os.Stat(filepath.Join(src, models.MetaFile)); err != nil {
			c.logger.Debug("archive: skipping note without metadata", slog.String("note", src))
			continue
		}
		if err := storage.CopyDir(src, filepath.Join(staging, ref.CategoryID, ref.ID)); err != nil {
			c.logger.Warn("archive: copy note failed",
				slog.String("note", src),
				slog.String("error", err.Error()))
			continue
		}
		copied++
	}

	out, err := c.PackDir(staging, dest)
	if err != nil {
		return "", err
	}
	c.logger.Info("archive: subset packed", slog.Int("requested", len(refs)), slog.Int("copied", copied))
	return out, nil
}

// Extracted is an unpacked archive in a scratch directory.
type Extracted struct {
	// Dir is the scratch directory holding the whole archive.
	Dir string
	// Base is the extracted store root (Dir/dataBase).
	Base string
}

// Close removes the scratch directory.
func (e *Extracted) Close() error {
	if e == nil || e.Dir == "" {
		return nil
	}
	return os.RemoveAll(e.Dir)
}

// Unpack extracts archivePath into a fresh scratch directory. The caller
// must Close the result. On error nothing is left behind.
func (c *Codec) Unpack(archivePath string) (*Extracted, error) {
	if archivePath == "" {
		return nil, apperr.New(apperr.ErrInvalidArgument, "unpack", "archive path is required")
	}
	if _, err := os.Stat(archivePath); err != nil {
		return nil, apperr.IO("unpack", archivePath, err)
	}
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		if zr != nil {
			_ = zr.Close()
		}
		return nil, apperr.Wrap(apperr.ErrInvalidArchive, "unpack", archivePath, err)
	}
	defer zr.Close()
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)

	dir, err := os.MkdirTemp(c.tempDir, "imgnote-import-")
	if err != nil {
		return nil, apperr.IO("unpack", c.tempDir, err)
	}
	ex := &Extracted{Dir: dir, Base: filepath.Join(dir, models.ArchiveRoot)}
	success := false
	defer func() {
		if !success {
			_ = ex.Close()
		}
	}()

	for _, f := range zr.File {
		if err := extractEntry(f, dir); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(ex.Base)
	if err != nil || !info.IsDir() {
		return nil, apperr.New(apperr.ErrInvalidArchive, "unpack", "archive has no %s directory", models.ArchiveRoot)
	}
	success = true
	c.logger.Debug("archive: unpacked", slog.String("archive", archivePath), slog.String("dir", dir))
	return ex, nil
}

func extractEntry(f *zip.File, dir string) error {
	target, err := entryTarget(dir, f.Name)
	if err != nil || target == "" {
		return err
	}
	if f.FileInfo().IsDir() {
		return apperr.IO("unpack", target, os.MkdirAll(target, 0o755))
	}
	if !f.Mode().IsRegular() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return apperr.IO("unpack", target, err)
	}
	rc, err := f.Open()
	if err != nil {
		return apperr.Wrap(apperr.ErrInvalidArchive, "unpack", f.Name, err)
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return apperr.IO("unpack", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) {
			return apperr.Wrap(apperr.ErrInvalidArchive, "unpack", f.Name, err)
		}
		return apperr.IO("unpack", target, err)
	}
	return apperr.IO("unpack", target, out.Close())
}

// entryTarget maps a zip entry name to a path under dir, rejecting names
// that would escape it. The root entry itself maps to "".
func entryTarget(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(name))
	if target == dir {
		return "", nil
	}
	if !strings.HasPrefix(target, dir+string(os.PathSeparator)) {
		return "", apperr.New(apperr.ErrInvalidArchive, "unpack", "entry escapes extraction dir: %q", name)
	}
	return target, nil
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
