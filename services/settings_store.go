// Package services hosts the client's external collaborators: the
// session-creation API, the local settings store, QR invites and the
// contact form.
// File: services/settings_store.go
package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"iron-verdict/logger"
)

// FileStore is a JSON-file-backed key-value store for the handful of
// local settings the client persists (display settings, reconnect
// token). Reads come from an in-memory copy loaded once; every Set
// rewrites the file.
type FileStore struct {
	path string

	mu   sync.Mutex
	data map[string]string
}

// NewFileStore opens (or lazily creates) the store at path. A missing
// or unreadable file yields an empty store rather than an error; local
// settings are best-effort.
func NewFileStore(path string) *FileStore {
	s := &FileStore{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path) // #nosec G304 -- caller-chosen settings path
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn.Printf("[settings] could not read %s: %v", path, err)
		}
		return s
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		logger.Warn.Printf("[settings] corrupt settings file %s: %v", path, err)
		s.data = make(map[string]string)
	}
	return s
}

// Get returns the stored value for key and whether it was present.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores the value and flushes the whole store to disk.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.flushLocked()
}

// Delete removes a key, flushing if it was present.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, raw, 0600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
