package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const maxUploadBytes = 512 << 20 // 512 MB, archives included

// isMultipart reports whether r carries a multipart/form-data body.
func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// upload is a multipart file spooled to a temporary file.
type upload struct {
	Path     string
	Filename string
}

// Remove deletes the spooled file.
func (u *upload) Remove() {
	_ = os.Remove(u.Path)
}

// saveUpload spools the multipart field "file" into tempDir, keeping the
// client file's extension (or fallbackExt when it has none). Form values
// are available on r afterwards.
func saveUpload(w http.ResponseWriter, r *http.Request, tempDir, fallbackExt string) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("file too large or invalid multipart")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing 'file' field in multipart form")
	}
	defer file.Close()

	filename := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(header.Filename, `\`, "/")))
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = fallbackExt
	}

	dst, err := os.CreateTemp(tempDir, "imgnote-upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	u := &upload{Path: dst.Name(), Filename: filename}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		u.Remove()
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		u.Remove()
		return nil, fmt.Errorf("write upload: %w", err)
	}
	return u, nil
}

// uploadNoteName picks the note name for an uploaded image: the form value
// "name" when set, otherwise the client file name without extension.
func uploadNoteName(r *http.Request, u *upload) string {
	if name := strings.TrimSpace(r.FormValue("name")); name != "" {
		return name
	}
	name := strings.TrimSuffix(u.Filename, filepath.Ext(u.Filename))
	if name == "" || name == "/" || name == "." {
		return "image"
	}
	return name
}
