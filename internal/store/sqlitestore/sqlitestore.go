// Package sqlitestore keeps the todo table in a local SQLite database. It is
// the offline stand-in for a hosted table: same columns, same serial ids.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/store"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store implements store.Store over a SQLite table.
type Store struct {
	db    *sql.DB
	table string
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and ensures the table
// exists.
func Open(ctx context.Context, path, table string) (*Store, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("sqlite: invalid table name %q", table)
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, table: table}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			is_completed INTEGER NOT NULL DEFAULT 0
		)`, s.table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) SelectAll(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, name, is_completed FROM %q ORDER BY id`, s.table))
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		var (
			id int64
			it model.Item
		)
		if err := rows.Scan(&id, &it.Name, &it.IsCompleted); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		it.ID = model.ID(strconv.FormatInt(id, 10))
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return items, nil
}

func (s *Store) Insert(ctx context.Context, item model.NewItem) (model.Item, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %q (name, is_completed) VALUES (?, ?)`, s.table),
		item.Name, item.IsCompleted)
	if err != nil {
		return model.Item{}, fmt.Errorf("insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Item{}, fmt.Errorf("insert: %w", err)
	}
	return model.Item{
		ID:          model.ID(strconv.FormatInt(id, 10)),
		Name:        item.Name,
		IsCompleted: item.IsCompleted,
	}, nil
}

func (s *Store) UpdateByID(ctx context.Context, id model.ID, patch model.Patch) error {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return store.ErrNotFound
	}
	if patch.IsCompleted == nil {
		return nil
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %q SET is_completed = ? WHERE id = ?`, s.table),
		*patch.IsCompleted, n)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return affected(res)
}

func (s *Store) DeleteByID(ctx context.Context, id model.ID) error {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return store.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %q WHERE id = ?`, s.table), n)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
