// Package postgrest talks to a Supabase (PostgREST) table over its REST API.
package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/supabase-community/postgrest-go"

	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/store"
)

// Store implements store.Store over one PostgREST table.
//
// The PostgREST client does not take a context, so ctx is only checked
// before a request is sent; a request in flight runs to completion.
type Store struct {
	client *postgrest.Client
	table  string
}

var _ store.Store = (*Store)(nil)

// RestURL turns a Supabase project URL into its REST endpoint. URLs that
// already point at /rest/v1 are returned unchanged.
func RestURL(projectURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(projectURL))
	if err != nil {
		return "", fmt.Errorf("supabase url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("supabase url: %q is not an http(s) URL", projectURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(u.Path, "/rest/v1") {
		u.Path += "/rest/v1"
	}
	return u.String(), nil
}

// New returns a store for table on the Supabase project at projectURL,
// authenticating with apiKey (anon or service role key).
func New(projectURL, apiKey, table string) (*Store, error) {
	rest, err := RestURL(projectURL)
	if err != nil {
		return nil, err
	}
	if table == "" {
		return nil, fmt.Errorf("supabase: empty table name")
	}
	headers := map[string]string{}
	if apiKey != "" {
		headers["apikey"] = apiKey
		headers["Authorization"] = "Bearer " + apiKey
	}
	return &Store{
		client: postgrest.NewClient(rest, "public", headers),
		table:  table,
	}, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) SelectAll(ctx context.Context) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, _, err := s.client.From(s.table).Select("*", "", false).Execute()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", s.table, err)
	}
	items, err := store.DecodeRows(body)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", s.table, err)
	}
	return items, nil
}

func (s *Store) Insert(ctx context.Context, item model.NewItem) (model.Item, error) {
	if err := ctx.Err(); err != nil {
		return model.Item{}, err
	}
	body, _, err := s.client.From(s.table).Insert(item, false, "", "representation", "").Execute()
	if err != nil {
		return model.Item{}, fmt.Errorf("insert %s: %w", s.table, err)
	}
	rows, err := store.DecodeRows(body)
	if err != nil {
		return model.Item{}, fmt.Errorf("insert %s: %w", s.table, err)
	}
	if len(rows) != 1 {
		return model.Item{}, fmt.Errorf("insert %s: expected 1 row back, got %d", s.table, len(rows))
	}
	return rows[0], nil
}

func (s *Store) UpdateByID(ctx context.Context, id model.ID, patch model.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, _, err := s.client.From(s.table).
		Update(patch, "representation", "").
		Eq("id", string(id)).
		Execute()
	if err != nil {
		return fmt.Errorf("update %s: %w", s.table, err)
	}
	return touched(body)
}

func (s *Store) DeleteByID(ctx context.Context, id model.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, _, err := s.client.From(s.table).
		Delete("representation", "").
		Eq("id", string(id)).
		Execute()
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.table, err)
	}
	return touched(body)
}

// touched reports ErrNotFound when the returned representation holds no
// rows. Row level security hides rows the key may not see the same way.
func touched(body []byte) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	if len(rows) == 0 {
		return store.ErrNotFound
	}
	return nil
}
