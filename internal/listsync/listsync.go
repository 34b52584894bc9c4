// Package listsync keeps a local copy of the todo table in step with the
// remote store.
//
// Every operation has two halves. Begin* validates input and returns a Call
// that performs exactly one remote request without touching local state.
// Apply takes the Call's Result and patches local state to mirror what the
// server now holds. State changes only in Apply, and only on success, so a
// failed call never leaves the list half-updated.
//
// The Synchronizer is not safe for concurrent use: Begin* and Apply are
// meant to run on one goroutine (a Bubble Tea Update loop, or a CLI
// command). Calls may run anywhere and in any number at once; their Results
// are applied in whatever order they arrive.
package listsync

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/store"
)

// Op names a synchronizer operation.
type Op int

const (
	OpLoad Op = iota + 1
	OpAdd
	OpToggle
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpLoad:
		return "load"
	case OpAdd:
		return "add"
	case OpToggle:
		return "toggle"
	case OpRemove:
		return "remove"
	}
	return "unknown"
}

func (o Op) failure() Kind {
	switch o {
	case OpLoad:
		return Fetch
	case OpAdd:
		return Insert
	case OpToggle:
		return Update
	case OpRemove:
		return Delete
	}
	return 0
}

// State is the local view. Items is a fresh slice on every State call.
type State struct {
	Items        []model.Item
	PendingInput string
	Loading      bool
	LastError    string
}

// Result is the outcome of one remote call.
type Result struct {
	Op Op
	// ID is the row a toggle or remove addressed.
	ID model.ID
	// Completed is the flag value a toggle asked for.
	Completed bool
	// Items is the full row set returned by a load.
	Items []model.Item
	// Item is the stored row returned by an add.
	Item model.Item
	Err  error
}

// Call performs the remote half of an operation.
type Call func(ctx context.Context) Result

// Synchronizer owns the local view of the todo table.
type Synchronizer struct {
	store   store.Store
	log     *log.Logger
	state   State
	lastErr *Error
}

// New returns a Synchronizer backed by s. A nil logger discards output.
func New(s store.Store, logger *log.Logger) *Synchronizer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Synchronizer{
		store: s,
		log:   logger,
		state: State{Items: []model.Item{}},
	}
}

// State returns a snapshot of the local view.
func (s *Synchronizer) State() State {
	st := s.state
	st.Items = slices.Clone(s.state.Items)
	return st
}

// Items returns a snapshot of the list.
func (s *Synchronizer) Items() []model.Item { return slices.Clone(s.state.Items) }

// Err returns the failure behind LastError, or nil.
func (s *Synchronizer) Err() *Error { return s.lastErr }

// SetInput records the text being typed and clears any shown error.
func (s *Synchronizer) SetInput(text string) {
	s.state.PendingInput = text
	s.clearError()
}

// BeginLoad marks the list as loading and returns the fetch call.
func (s *Synchronizer) BeginLoad() Call {
	s.state.Loading = true
	st := s.store
	return func(ctx context.Context) Result {
		items, err := st.SelectAll(ctx)
		return Result{Op: OpLoad, Items: items, Err: err}
	}
}

// BeginAdd validates text and returns the insert call. Blank text fails
// here with a Validation error and no call is made.
func (s *Synchronizer) BeginAdd(text string) (Call, error) {
	if strings.TrimSpace(text) == "" {
		e := &Error{Kind: Validation, Err: ErrEmptyName}
		s.log.Warn("todo rejected", "op", OpAdd, "err", e.Err)
		s.setError(e)
		return nil, e
	}
	st := s.store
	item := model.NewItem{Name: text, IsCompleted: false}
	return func(ctx context.Context) Result {
		created, err := st.Insert(ctx, item)
		return Result{Op: OpAdd, Item: created, Err: err}
	}, nil
}

// BeginToggle returns the call that sets id's flag to !current.
func (s *Synchronizer) BeginToggle(id model.ID, current bool) Call {
	st := s.store
	want := !current
	return func(ctx context.Context) Result {
		err := st.UpdateByID(ctx, id, model.Completed(want))
		return Result{Op: OpToggle, ID: id, Completed: want, Err: err}
	}
}

// BeginRemove returns the call that deletes id.
func (s *Synchronizer) BeginRemove(id model.ID) Call {
	st := s.store
	return func(ctx context.Context) Result {
		err := st.DeleteByID(ctx, id)
		return Result{Op: OpRemove, ID: id, Err: err}
	}
}

// Apply folds a call's outcome into local state. It returns the *Error
// now shown to the user, or nil on success.
func (s *Synchronizer) Apply(r Result) error {
	if r.Op == OpLoad {
		s.state.Loading = false
	}
	if r.Err != nil {
		e := &Error{Kind: r.Op.failure(), Err: r.Err}
		if r.ID != "" {
			s.log.Error("todo operation failed", "op", r.Op, "id", r.ID, "err", r.Err)
		} else {
			s.log.Error("todo operation failed", "op", r.Op, "err", r.Err)
		}
		s.setError(e)
		return e
	}

	switch r.Op {
	case OpLoad:
		items := r.Items
		if items == nil {
			items = []model.Item{}
		}
		s.state.Items = slices.Clone(items)
		s.log.Debug("todos loaded", "count", len(items))
	case OpAdd:
		s.state.Items = append(slices.Clip(s.state.Items), r.Item)
		s.state.PendingInput = ""
		s.log.Debug("todo added", "id", r.Item.ID)
	case OpToggle:
		next := make([]model.Item, len(s.state.Items))
		for i, it := range s.state.Items {
			if it.ID == r.ID {
				it.IsCompleted = r.Completed
			}
			next[i] = it
		}
		s.state.Items = next
		s.log.Debug("todo toggled", "id", r.ID, "completed", r.Completed)
	case OpRemove:
		s.state.Items = slices.DeleteFunc(slices.Clone(s.state.Items), func(it model.Item) bool {
			return it.ID == r.ID
		})
		s.log.Debug("todo removed", "id", r.ID)
	default:
		return nil
	}
	s.clearError()
	return nil
}

func (s *Synchronizer) setError(e *Error) {
	s.lastErr = e
	s.state.LastError = e.Message()
}

func (s *Synchronizer) clearError() {
	s.lastErr = nil
	s.state.LastError = ""
}

// Load fetches every row and waits for the result.
func (s *Synchronizer) Load(ctx context.Context) error {
	return s.Apply(s.BeginLoad()(ctx))
}

// Add inserts text as a new item and waits for the result.
func (s *Synchronizer) Add(ctx context.Context, text string) error {
	call, err := s.BeginAdd(text)
	if err != nil {
		return err
	}
	return s.Apply(call(ctx))
}

// Toggle flips id's completion flag and waits for the result.
func (s *Synchronizer) Toggle(ctx context.Context, id model.ID, current bool) error {
	return s.Apply(s.BeginToggle(id, current)(ctx))
}

// Remove deletes id and waits for the result.
func (s *Synchronizer) Remove(ctx context.Context, id model.ID) error {
	return s.Apply(s.BeginRemove(id)(ctx))
}

// Find returns the item with id from the local view.
func (s *Synchronizer) Find(id model.ID) (model.Item, bool) {
	for _, it := range s.state.Items {
		if it.ID == id {
			return it, true
		}
	}
	return model.Item{}, false
}

// IsNotFound reports whether err came from a row the store no longer has.
func IsNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }
