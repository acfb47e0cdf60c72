package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

// Ensure JSONHistoryStorage implements HistoryStorage
var _ HistoryStorage = (*JSONHistoryStorage)(nil)

// JSONHistoryStorage keeps the whole history in memory and rewrites
// a single JSON array file on every mutation.
type JSONHistoryStorage struct {
	path string

	mu      sync.RWMutex
	entries []models.HistoryEntry

	// writeFile is swapped in tests to simulate disk failures
	writeFile func(path string, data []byte) error
}

// LoadOrInit opens the history file at path. A missing or unreadable file
// yields an empty history; the problem is logged, never returned.
func LoadOrInit(path string) *JSONHistoryStorage {
	s := &JSONHistoryStorage{
		path:      path,
		writeFile: atomicWriteFile,
	}
	s.entries = s.load()
	return s
}

func (s *JSONHistoryStorage) load() []models.HistoryEntry {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("History file not found, starting empty", "path", s.path)
		return nil
	}
	if err != nil {
		slog.Warn("Failed to read history file, starting empty", "path", s.path, "error", err)
		return nil
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("History file is corrupt, starting empty", "path", s.path, "error", err)
		return nil
	}

	slog.Info("History loaded", "path", s.path, "entries", len(entries))
	return entries
}

// Path returns the backing file path.
func (s *JSONHistoryStorage) Path() string {
	return s.path
}

func (s *JSONHistoryStorage) Append(ctx context.Context, entry models.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]models.HistoryEntry, len(s.entries), len(s.entries)+1)
	copy(next, s.entries)
	next = append(next, entry)

	if err := s.persist(next); err != nil {
		return &PersistenceError{Op: "append", Err: err}
	}
	s.entries = next
	return nil
}

func (s *JSONHistoryStorage) Query(ctx context.Context, filter Filter) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	entries := s.entries
	s.mu.RUnlock()

	// entries is never mutated in place, so reading it unlocked is safe
	return ApplyFilter(entries, filter), nil
}

func (s *JSONHistoryStorage) All(ctx context.Context) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *JSONHistoryStorage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist([]models.HistoryEntry{}); err != nil {
		return &PersistenceError{Op: "clear", Err: err}
	}
	s.entries = nil
	slog.Info("History cleared", "path", s.path)
	return nil
}

func (s *JSONHistoryStorage) Close() error {
	return nil
}

func (s *JSONHistoryStorage) persist(entries []models.HistoryEntry) error {
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	return s.writeFile(s.path, data)
}

// atomicWriteFile writes to a temp file in the same directory and renames it over path.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close history: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}
