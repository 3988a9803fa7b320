// Package storage persists session state as JSON files.
//
// Records live under a key path rooted in the state directory:
// session/<id> for summaries, messages/<id> for conversations,
// sidedata/<id> for the side-channel values. Writes land in a temp
// file and rename into place so a crash never leaves a half-written
// record; a per-record flock keeps two processes sharing one state
// directory from interleaving writes.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound marks a read of a record that was never written or was
// deleted.
var ErrNotFound = errors.New("not found")

// Storage reads and writes JSON records under a root directory.
type Storage struct {
	root string

	mu    sync.Mutex
	locks map[string]*fileLock
}

// New returns a Storage rooted at dir. The directory is created lazily
// on the first write.
func New(dir string) *Storage {
	return &Storage{root: dir, locks: make(map[string]*fileLock)}
}

// Get decodes the record at key into v. Missing records return
// ErrNotFound.
func (s *Storage) Get(ctx context.Context, key []string, v any) error {
	data, err := os.ReadFile(s.recordPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("storage: read %s: %w", joinKey(key), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: decode %s: %w", joinKey(key), err)
	}
	return nil
}

// Put encodes v and writes it at key, replacing any previous record.
func (s *Storage) Put(ctx context.Context, key []string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", joinKey(key), err)
	}

	path := s.recordPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: prepare %s: %w", joinKey(key), err)
	}

	lock := s.lockFor(path)
	if err := lock.acquire(); err != nil {
		return fmt.Errorf("storage: lock %s: %w", joinKey(key), err)
	}
	defer lock.release()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: write %s: %w", joinKey(key), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: commit %s: %w", joinKey(key), err)
	}
	return nil
}

// Delete removes the record at key. Deleting a missing record is not an
// error.
func (s *Storage) Delete(ctx context.Context, key []string) error {
	path := s.recordPath(key)

	lock := s.lockFor(path)
	if err := lock.acquire(); err != nil {
		return fmt.Errorf("storage: lock %s: %w", joinKey(key), err)
	}
	defer lock.release()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete %s: %w", joinKey(key), err)
	}
	return nil
}

// List returns the record and collection names directly under key. A
// missing directory lists as empty.
func (s *Storage) List(ctx context.Context, key []string) ([]string, error) {
	entries, err := os.ReadDir(s.dirPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("storage: list %s: %w", joinKey(key), err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		switch name := e.Name(); {
		case e.IsDir():
			names = append(names, name)
		case strings.HasSuffix(name, ".json"):
			names = append(names, strings.TrimSuffix(name, ".json"))
		}
	}
	return names, nil
}

// Scan calls fn with the raw bytes of every record directly under key,
// stopping at the first error fn returns. Records that disappear or
// turn unreadable mid-scan are skipped.
func (s *Storage) Scan(ctx context.Context, key []string, fn func(name string, data json.RawMessage) error) error {
	dir := s.dirPath(key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("storage: scan %s: %w", joinKey(key), err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if err := fn(strings.TrimSuffix(name, ".json"), json.RawMessage(data)); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether a record is present at key.
func (s *Storage) Exists(ctx context.Context, key []string) bool {
	_, err := os.Stat(s.recordPath(key))
	return err == nil
}

func (s *Storage) recordPath(key []string) string {
	return filepath.Join(append([]string{s.root}, key...)...) + ".json"
}

func (s *Storage) dirPath(key []string) string {
	return filepath.Join(append([]string{s.root}, key...)...)
}

func joinKey(key []string) string {
	return strings.Join(key, "/")
}

// lockFor returns the shared lock guarding one record path.
func (s *Storage) lockFor(path string) *fileLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &fileLock{path: path + ".lock"}
		s.locks[path] = l
	}
	return l
}
