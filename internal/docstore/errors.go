package docstore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the addressed document does not exist
var ErrNotFound = errors.New("document not found")

// TransportError is a network or channel failure talking to the document store
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is, or wraps, a TransportError
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
