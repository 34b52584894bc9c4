package tui

import (
	"context"
	"errors"
	"strconv"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/todosync/internal/listsync"
	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/store"
)

// memStore is an in-memory store.Store; fail makes every call error.
type memStore struct {
	items []model.Item
	next  int
	fail  error
}

func (s *memStore) SelectAll(context.Context) ([]model.Item, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	return append([]model.Item(nil), s.items...), nil
}

func (s *memStore) Insert(_ context.Context, it model.NewItem) (model.Item, error) {
	if s.fail != nil {
		return model.Item{}, s.fail
	}
	s.next++
	created := model.Item{ID: model.ID(strconv.Itoa(s.next)), Name: it.Name, IsCompleted: it.IsCompleted}
	s.items = append(s.items, created)
	return created, nil
}

func (s *memStore) UpdateByID(_ context.Context, id model.ID, p model.Patch) error {
	if s.fail != nil {
		return s.fail
	}
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i] = p.Apply(s.items[i])
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *memStore) DeleteByID(_ context.Context, id model.ID) error {
	if s.fail != nil {
		return s.fail
	}
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func keyRunes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

// step feeds msg to m and returns the updated model and the command.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

// resolve runs a command that issues a remote call and feeds its Result
// back into the model.
func resolve(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	res, ok := cmd().(listsync.Result)
	require.True(t, ok, "command should produce a listsync.Result")
	m, _ = step(t, m, res)
	return m
}

func loaded(t *testing.T, st *memStore) (Model, *listsync.Synchronizer) {
	t.Helper()
	s := listsync.New(st, nil)
	m := New(context.Background(), s)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	initCmd := m.Init()
	require.NotNil(t, initCmd)
	assert.True(t, s.State().Loading)
	assert.Contains(t, m.View(), "Loading...")

	batch, ok := initCmd().(tea.BatchMsg)
	require.True(t, ok)
	require.NotEmpty(t, batch)
	m = resolve(t, m, batch[0])
	return m, s
}

func TestLoadRendersItems(t *testing.T) {
	st := &memStore{items: []model.Item{
		{ID: "1", Name: "Buy milk"},
		{ID: "2", Name: "Walk dog", IsCompleted: true},
	}, next: 2}
	m, s := loaded(t, st)

	assert.False(t, s.State().Loading)
	view := m.View()
	assert.NotContains(t, view, "Loading...")
	assert.Contains(t, view, "Buy milk")
	assert.Contains(t, view, "Walk dog")
	assert.Contains(t, view, "[Complete]")
	assert.Contains(t, view, "[Undo]")
	assert.Contains(t, view, "Total 2")
}

func TestLoadFailureShowsBanner(t *testing.T) {
	st := &memStore{fail: errors.New("503")}
	m, s := loaded(t, st)

	assert.False(t, s.State().Loading)
	assert.Contains(t, m.View(), "Failed to fetch todos. Please try again later.")
}

func TestAddFlow(t *testing.T) {
	st := &memStore{}
	m, s := loaded(t, st)

	m, _ = step(t, m, keyRunes("a"))
	assert.True(t, m.adding)
	assert.Contains(t, m.View(), "New Todo...")

	m, _ = step(t, m, keyRunes("Buy milk"))
	assert.Equal(t, "Buy milk", s.State().PendingInput)

	m, cmd := step(t, m, keyEnter)
	m = resolve(t, m, cmd)

	assert.False(t, m.adding)
	assert.Equal(t, "", s.State().PendingInput)
	assert.Equal(t, "", m.input.Value())
	require.Len(t, s.Items(), 1)
	assert.Equal(t, model.ID("1"), s.Items()[0].ID)
	assert.Contains(t, m.View(), "Buy milk")
}

func TestAddBlankShowsValidation(t *testing.T) {
	st := &memStore{}
	m, s := loaded(t, st)

	m, _ = step(t, m, keyRunes("a"))
	m, _ = step(t, m, keyRunes("   "))
	m, cmd := step(t, m, keyEnter)
	assert.Nil(t, cmd, "no remote call for blank input")
	assert.Contains(t, m.View(), "Todo cannot be empty!")
	assert.True(t, m.adding)

	// typing clears the banner
	m, _ = step(t, m, keyRunes("x"))
	assert.Equal(t, "", s.State().LastError)
	assert.NotContains(t, m.View(), "Todo cannot be empty!")

	m, _ = step(t, m, keyEsc)
	assert.False(t, m.adding)
	assert.Equal(t, "   x", s.State().PendingInput, "esc keeps the pending text")
}

func TestBannerResizesList(t *testing.T) {
	m, _ := loaded(t, &memStore{})

	m, _ = step(t, m, keyRunes("a"))
	open := m.list.Height()

	m, _ = step(t, m, keyEnter)
	assert.Contains(t, m.View(), "Todo cannot be empty!")
	assert.Equal(t, open-1, m.list.Height(), "banner takes a line from the list")

	m, _ = step(t, m, keyRunes("x"))
	assert.Equal(t, open, m.list.Height())
}

func TestAddFailureKeepsInput(t *testing.T) {
	st := &memStore{}
	m, s := loaded(t, st)

	m, _ = step(t, m, keyRunes("a"))
	m, _ = step(t, m, keyRunes("Call mom"))
	st.fail = errors.New("insert refused")
	m, cmd := step(t, m, keyEnter)
	m = resolve(t, m, cmd)

	assert.True(t, m.adding)
	assert.Equal(t, "Call mom", m.input.Value())
	assert.Empty(t, s.Items())
	assert.Contains(t, m.View(), "Failed to add todo. Please try again.")
}

func TestToggleAndDelete(t *testing.T) {
	st := &memStore{items: []model.Item{
		{ID: "1", Name: "Buy milk"},
		{ID: "2", Name: "Walk dog"},
	}, next: 2}
	m, s := loaded(t, st)

	m, cmd := step(t, m, keySpace)
	m = resolve(t, m, cmd)
	it, ok := s.Find("1")
	require.True(t, ok)
	assert.True(t, it.IsCompleted)

	m, cmd = step(t, m, keyRunes("c"))
	m = resolve(t, m, cmd)
	it, _ = s.Find("1")
	assert.False(t, it.IsCompleted)

	m, cmd = step(t, m, keyRunes("d"))
	m = resolve(t, m, cmd)
	require.Len(t, s.Items(), 1)
	assert.Equal(t, model.ID("2"), s.Items()[0].ID)
	assert.NotContains(t, m.View(), "Buy milk")

	st.fail = errors.New("nope")
	m, cmd = step(t, m, keyRunes("d"))
	m = resolve(t, m, cmd)
	assert.Len(t, s.Items(), 1)
	assert.Contains(t, m.View(), "Failed to delete todo. Please try again.")
}

func TestKeysOnEmptyList(t *testing.T) {
	m, _ := loaded(t, &memStore{})

	_, cmd := step(t, m, keySpace)
	assert.Nil(t, cmd)
	_, cmd = step(t, m, keyRunes("d"))
	assert.Nil(t, cmd)
}

func TestQuit(t *testing.T) {
	m, _ := loaded(t, &memStore{})
	_, cmd := step(t, m, keyRunes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestToggleLabel(t *testing.T) {
	assert.Equal(t, "Complete", toggleLabel(false))
	assert.Equal(t, "Undo", toggleLabel(true))
}
