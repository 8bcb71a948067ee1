// Package tempstore tracks temp files created for one request — uploaded
// audio and slice artifacts — guaranteeing each is unlinked exactly once
// (spec §3 "every temp file created has a matching unlink call on all
// control paths"), the way the teacher's call package defers os.Remove
// next to each os.MkdirTemp/CreateTemp call.
package tempstore

import (
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Store tracks paths registered for cleanup in one request's lifetime.
type Store struct {
	mu       sync.Mutex
	paths    []string
	unlinked map[string]bool
}

func New() *Store {
	return &Store{unlinked: make(map[string]bool)}
}

// Register records path for later cleanup and returns it unchanged, so it
// can be used inline (as CreateTemp does).
func (s *Store) Register(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return path
}

// CreateTemp creates a temp file in dir with the given name pattern,
// registers it for cleanup, and returns its path (the file is closed
// immediately; callers reopen it for writing).
func (s *Store) CreateTemp(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return s.Register(path), nil
}

// Unlink removes path immediately and marks it as already cleaned up, so a
// later Cleanup call does not attempt it again.
func (s *Store) Unlink(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlinked[path] {
		return nil
	}
	s.unlinked[path] = true
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to unlink %s: %w", path, err)
	}
	return nil
}

// Cleanup unlinks every registered path not already unlinked. It is safe to
// call on every control path (success or failure) and is idempotent.
func (s *Store) Cleanup() error {
	s.mu.Lock()
	paths := make([]string, len(s.paths))
	copy(paths, s.paths)
	s.mu.Unlock()

	var errs error
	for _, p := range paths {
		if err := s.Unlink(p); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}
