// Package download holds the file-save mechanisms exports are handed to.
package download

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// ResponseSaver sends the file as an HTTP attachment.
type ResponseSaver struct {
	W           http.ResponseWriter
	ContentType string
}

func (s ResponseSaver) Save(name string, data []byte) error {
	ct := s.ContentType
	if ct == "" {
		ct = "image/png"
	}

	h := s.W.Header()
	h.Set("Content-Type", ct)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(name)))
	h.Set("Cache-Control", "no-store")
	s.W.WriteHeader(http.StatusOK)

	_, err := s.W.Write(data)
	return err
}

// DirSaver writes the file into Dir, creating it when needed.
type DirSaver struct {
	Dir string
}

func (s DirSaver) Save(name string, data []byte) error {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return os.WriteFile(filepath.Join(dir, filepath.Base(name)), data, 0644)
}

// Path is where DirSaver puts a file called name.
func (s DirSaver) Path(name string) string {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, filepath.Base(name))
}
