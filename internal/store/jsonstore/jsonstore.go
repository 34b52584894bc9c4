package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/store"
)

// JSON-backed table. Single file, human-readable, portable.
// A sibling .lock file serializes writers across processes.

const dataFileName = "todos.json"

// DefaultPath is todos.json in the working directory.
func DefaultPath() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}
	return filepath.Join(wd, dataFileName), nil
}

// table is the on-disk layout. NextID only ever grows so deleted ids are
// never handed out again.
type table struct {
	NextID int64           `json:"next_id"`
	Items  json.RawMessage `json:"items"`

	items []model.Item
}

// Store implements store.Store over a single JSON file.
type Store struct {
	path string
	lock *flock.Flock
}

var _ store.Store = (*Store)(nil)

// New returns a store for the file at path. The file is created on first
// write.
func New(path string) *Store {
	return &Store{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the data file location.
func (s *Store) Path() string { return s.path }

// Close is a no-op; the lock is only held for the duration of a call.
func (s *Store) Close() error { return nil }

func (s *Store) SelectAll(ctx context.Context) ([]model.Item, error) {
	var out []model.Item
	err := s.withLock(ctx, func() error {
		t, err := s.load()
		if err != nil {
			return err
		}
		out = t.items
		return nil
	})
	return out, err
}

func (s *Store) Insert(ctx context.Context, item model.NewItem) (model.Item, error) {
	var out model.Item
	err := s.withLock(ctx, func() error {
		t, err := s.load()
		if err != nil {
			return err
		}
		t.NextID++
		out = model.Item{
			ID:          model.ID(strconv.FormatInt(t.NextID, 10)),
			Name:        item.Name,
			IsCompleted: item.IsCompleted,
		}
		t.items = append(t.items, out)
		return s.save(t)
	})
	return out, err
}

func (s *Store) UpdateByID(ctx context.Context, id model.ID, patch model.Patch) error {
	return s.withLock(ctx, func() error {
		t, err := s.load()
		if err != nil {
			return err
		}
		for i := range t.items {
			if t.items[i].ID == id {
				t.items[i] = patch.Apply(t.items[i])
				return s.save(t)
			}
		}
		return store.ErrNotFound
	})
}

func (s *Store) DeleteByID(ctx context.Context, id model.ID) error {
	return s.withLock(ctx, func() error {
		t, err := s.load()
		if err != nil {
			return err
		}
		for i := range t.items {
			if t.items[i].ID == id {
				t.items = append(t.items[:i], t.items[i+1:]...)
				return s.save(t)
			}
		}
		return store.ErrNotFound
	})
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	locked, err := s.lock.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

func (s *Store) load() (*table, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &table{items: []model.Item{}}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	var t table
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if len(t.Items) == 0 {
		t.items = []model.Item{}
		return &t, nil
	}
	items, err := store.DecodeRows(t.Items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	t.items = items
	for _, it := range items {
		if n, err := strconv.ParseInt(string(it.ID), 10, 64); err == nil && n > t.NextID {
			t.NextID = n
		}
	}
	return &t, nil
}

func (s *Store) save(t *table) error {
	items, err := json.Marshal(t.items)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	t.Items = items
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), dataFileName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}
