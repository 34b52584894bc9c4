package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/idilsaglam/todosync/internal/listsync"
	"github.com/idilsaglam/todosync/internal/ui"
)

// usageError is a caller mistake; it exits with code 2.
type usageError struct {
	msg  string
	hint string
}

func (e *usageError) Error() string { return e.msg }

// usageErr builds a usageError with an optional hint line.
func usageErr(msg string, hint ...string) error {
	e := &usageError{msg: msg}
	if len(hint) > 0 {
		e.hint = hint[0]
	}
	return e
}

// errHelpShown means help was already printed; nothing else to report.
var errHelpShown = errors.New("help shown")

// exitCode maps an error to 0 ok, 1 error, 2 usage.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errHelpShown) {
		return 2
	}
	var ue *usageError
	if errors.As(err, &ue) {
		return 2
	}
	var le *listsync.Error
	if errors.As(err, &le) && le.Kind == listsync.Validation {
		return 2
	}
	return 1
}

// report prints err the way the user should see it.
func report(w io.Writer, err error) {
	if err == nil || errors.Is(err, errHelpShown) {
		return
	}
	var le *listsync.Error
	if errors.As(err, &le) {
		ui.Fail(w, le.Message())
		if le.Kind != listsync.Validation && le.Err != nil {
			fmt.Fprintln(w, ui.Dim("  "+le.Err.Error()))
		}
		if listsync.IsNotFound(le) {
			fmt.Fprintln(w, ui.Dim("Hint: the todo is gone from the store; run `todo ls` to refresh"))
		}
		return
	}
	ui.Fail(w, err.Error())
	var ue *usageError
	if errors.As(err, &ue) && ue.hint != "" {
		fmt.Fprintln(w, ui.Dim(ue.hint))
	}
}
