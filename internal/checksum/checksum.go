// Package checksum computes note fingerprints used for import deduplication.
//
// MD5 is used purely as an equality test over identical byte content; it
// provides no integrity or security guarantee.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Dir returns the hex MD5 digest of the contents of every regular file
// directly inside dir, taken in ascending filename order. File names and
// timestamps do not contribute. Subdirectories are ignored.
func Dir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("checksum: read dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	h := md5.New()
	for _, name := range names {
		if err := appendFile(h, filepath.Join(dir, name)); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Sum returns the hex MD5 digest of data.
func Sum(data []byte) string {
	h := md5.Sum(data)
	return hex.EncodeToString(h[:])
}

func appendFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("checksum: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("checksum: read %s: %w", path, err)
	}
	return nil
}
