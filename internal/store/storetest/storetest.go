// Package storetest runs the behavior every store.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/store"
)

// Options relaxes checks a backend cannot satisfy.
type Options struct {
	// NoNotFound is set for backends whose service does not report a
	// missing row on update or delete.
	NoNotFound bool
}

// Run exercises s, which must start out empty.
func Run(t *testing.T, s store.Store, opt Options) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		items, err := s.SelectAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	var a, b, c model.Item
	t.Run("insert assigns ids", func(t *testing.T) {
		var err error
		a, err = s.Insert(ctx, model.NewItem{Name: "Buy milk"})
		require.NoError(t, err)
		b, err = s.Insert(ctx, model.NewItem{Name: "Walk dog"})
		require.NoError(t, err)
		c, err = s.Insert(ctx, model.NewItem{Name: "Ship it", IsCompleted: true})
		require.NoError(t, err)

		assert.NotEmpty(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)
		assert.NotEqual(t, b.ID, c.ID)
		assert.Equal(t, "Buy milk", a.Name)
		assert.False(t, a.IsCompleted)
		assert.True(t, c.IsCompleted)
	})

	t.Run("select keeps insertion order", func(t *testing.T) {
		items, err := s.SelectAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.Item{a, b, c}, items)
	})

	t.Run("update flips only the flag", func(t *testing.T) {
		require.NoError(t, s.UpdateByID(ctx, b.ID, model.Completed(true)))
		items, err := s.SelectAll(ctx)
		require.NoError(t, err)
		want := b
		want.IsCompleted = true
		assert.Equal(t, []model.Item{a, want, c}, items)

		require.NoError(t, s.UpdateByID(ctx, b.ID, model.Completed(false)))
		items, err = s.SelectAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.Item{a, b, c}, items)
	})

	t.Run("delete removes one row", func(t *testing.T) {
		require.NoError(t, s.DeleteByID(ctx, b.ID))
		items, err := s.SelectAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.Item{a, c}, items)
	})

	t.Run("ids are not reused", func(t *testing.T) {
		d, err := s.Insert(ctx, model.NewItem{Name: "Again"})
		require.NoError(t, err)
		assert.NotEqual(t, b.ID, d.ID)
		assert.NotEqual(t, c.ID, d.ID)
		require.NoError(t, s.DeleteByID(ctx, d.ID))
	})

	if opt.NoNotFound {
		return
	}
	t.Run("missing ids", func(t *testing.T) {
		err := s.UpdateByID(ctx, b.ID, model.Completed(true))
		assert.True(t, errors.Is(err, store.ErrNotFound), "update: got %v", err)
		err = s.DeleteByID(ctx, b.ID)
		assert.True(t, errors.Is(err, store.ErrNotFound), "delete: got %v", err)
	})
}
