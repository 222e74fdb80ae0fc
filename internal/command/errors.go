package command

import (
	"errors"
	"fmt"
)

// CommandDispatchError is returned when a write could not be handed to the
// command endpoint. No optimistic value survives it.
type CommandDispatchError struct {
	Path    string
	Message string
	Err     error
}

func (e *CommandDispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command for %s failed: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("command for %s failed: %s", e.Path, e.Message)
}

func (e *CommandDispatchError) Unwrap() error {
	return e.Err
}

// IsCommandDispatchError reports whether err is, or wraps, a CommandDispatchError
func IsCommandDispatchError(err error) bool {
	var dispatchErr *CommandDispatchError
	return errors.As(err, &dispatchErr)
}
