// Package session persists the identity snapshot to a JSON file and
// watches it for changes made by other processes on the same machine.
// The snapshot payload is never trusted on change; observers re-resolve
// the session against the backend instead.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/finaccosolutions/vbastudio/internal/domain/identity"
)

// FileStore implements identity.SnapshotStore over a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to the given path. Parent
// directories are created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot file location.
func (f *FileStore) Path() string { return f.path }

type snapshot struct {
	Token  string `json:"token"`
	ID     string `json:"id"`
	Email  string `json:"email"`
	HasKey bool   `json:"has_key"`
}

// Load reads the persisted session. A missing file is not an error; the
// result is (nil, nil). The secret key is never persisted, so the loaded
// identity carries only the token for re-resolution.
func (f *FileStore) Load() (*identity.Session, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode session snapshot: %w", err)
	}
	if snap.Token == "" {
		return nil, nil
	}

	return &identity.Session{
		Token: snap.Token,
		Identity: identity.Identity{
			ID:    snap.ID,
			Email: snap.Email,
		},
	}, nil
}

// Save writes the session atomically via a temp file rename. File mode
// is 0600; the token must not be readable by other users. Saving a
// session identical to the one on disk is a no-op, so a process
// re-validating its own snapshot never retriggers the watchers. Browser
// storage behaves the same way: a same-value write fires no event.
func (f *FileStore) Save(sess identity.Session) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot{
		Token:  sess.Token,
		ID:     sess.Identity.ID,
		Email:  sess.Identity.Email,
		HasKey: sess.Identity.HasSecretKey(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session snapshot: %w", err)
	}

	if existing, err := os.ReadFile(f.path); err == nil && bytes.Equal(existing, data) {
		return nil
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace session snapshot: %w", err)
	}
	return nil
}

// Clear removes the snapshot file. A missing file is not an error.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session snapshot: %w", err)
	}
	return nil
}
