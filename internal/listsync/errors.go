package listsync

import "errors"

// Kind classifies a failed operation.
type Kind int

const (
	Validation Kind = iota + 1
	Fetch
	Insert
	Update
	Delete
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Fetch:
		return "fetch"
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// Message is the text shown to the user for a failure of this kind.
func (k Kind) Message() string {
	switch k {
	case Validation:
		return "Todo cannot be empty!"
	case Fetch:
		return "Failed to fetch todos. Please try again later."
	case Insert:
		return "Failed to add todo. Please try again."
	case Update:
		return "Failed to update todo status. Please try again."
	case Delete:
		return "Failed to delete todo. Please try again."
	}
	return "Something went wrong."
}

// ErrEmptyName is wrapped by Validation errors.
var ErrEmptyName = errors.New("name is empty")

// Error is the failure of one synchronizer operation.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " failed"
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the human-readable text for the banner.
func (e *Error) Message() string { return e.Kind.Message() }
