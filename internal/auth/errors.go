package auth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an AuthError for caller-visible messaging
type ErrorKind string

const (
	// KindBadCredentials means the identity service rejected the credentials (4xx)
	KindBadCredentials ErrorKind = "bad-credentials"
	// KindUnavailable means the identity service failed or could not be reached
	KindUnavailable ErrorKind = "service-unavailable"
	// KindInvalidResponse means the identity service answered with an unusable payload
	KindInvalidResponse ErrorKind = "invalid-response"
)

// ErrClosed is returned once the Manager has been closed
var ErrClosed = errors.New("credential manager is closed")

// AuthError is returned when a credential cannot be obtained or refreshed
type AuthError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is, or wraps, an AuthError
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsBadCredentials reports whether err is an AuthError caused by rejected credentials
func IsBadCredentials(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == KindBadCredentials
}
