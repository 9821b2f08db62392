// Package pathstore persists which directory holds the active store.
package pathstore

import (
	"fmt"
	"path/filepath"
	"sync"

	pkgconfig "github.com/starford/imgnote/pkg/config"
)

// State is the on-disk layout of the state file.
type State struct {
	DataBasePath string `yaml:"data_base_path,omitempty"`
}

// Store reads and writes the base path pointer.
type Store struct {
	mu          sync.Mutex
	file        string
	defaultPath string
}

// New returns a Store backed by stateFile. defaultPath is returned by Get
// while no override has been persisted.
func New(stateFile, defaultPath string) *Store {
	return &Store{file: stateFile, defaultPath: defaultPath}
}

// Get returns the persisted base path, or the default when none is set.
func (s *Store) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st State
	if err := pkgconfig.LoadLiteral(s.file, &st); err != nil {
		return "", fmt.Errorf("pathstore: %w", err)
	}
	if st.DataBasePath == "" {
		return s.defaultPath, nil
	}
	return st.DataBasePath, nil
}

// Set persists path as the active base. An empty path clears the override.
func (s *Store) Set(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{}
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("pathstore: resolve %s: %w", path, err)
		}
		st.DataBasePath = abs
	}
	if err := pkgconfig.Save(s.file, &st); err != nil {
		return fmt.Errorf("pathstore: %w", err)
	}
	return nil
}
