// Package state persists bot configurations, vote tallies and settings
// between runs.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
)

// FileStore keeps the saved state as a single JSON document on disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store writing to path. The file and its directory
// are created on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file the store writes to.
func (f *FileStore) Path() string { return f.path }

// Load implements clinic.Store. A missing file yields an empty state.
func (f *FileStore) Load(_ context.Context) (clinic.SavedState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return clinic.SavedState{}, nil
	}
	if err != nil {
		return clinic.SavedState{}, fmt.Errorf("state: reading %s: %w", f.path, err)
	}
	var st clinic.SavedState
	if err := json.Unmarshal(data, &st); err != nil {
		return clinic.SavedState{}, fmt.Errorf("state: decoding %s: %w", f.path, err)
	}
	st.Saved = true
	return st, nil
}

// Save implements clinic.Store. The file is replaced atomically so a crash
// mid-write never leaves a truncated document behind.
func (f *FileStore) Save(_ context.Context, st clinic.SavedState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encoding: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("state: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("state: writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: writing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("state: replacing %s: %w", f.path, err)
	}
	return nil
}
