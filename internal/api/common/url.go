// Package common provides shared HTTP utility functions for API handlers.
package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

// GetAndValidateURLParam extracts, decodes, and validates a URL parameter from the request.
// The decoded value must not be empty and must not contain whitespace.
func GetAndValidateURLParam(r *http.Request, paramName string) (string, error) {
	encodedValue := chi.URLParam(r, paramName)

	decoded, err := url.PathUnescape(encodedValue)
	if err != nil {
		return "", fmt.Errorf("invalid URL encoding in %s", paramName)
	}

	if strings.TrimSpace(decoded) == "" {
		return "", fmt.Errorf("%s cannot be empty", paramName)
	}

	if strings.ContainsAny(decoded, " \t\n\r") {
		return "", fmt.Errorf("%s cannot contain whitespace", paramName)
	}

	return decoded, nil
}

// GetDottedPathParam is GetAndValidateURLParam for a dotted document path
// such as "main.temperature". Empty segments are rejected.
func GetDottedPathParam(r *http.Request, paramName string) (string, error) {
	path, err := GetAndValidateURLParam(r, paramName)
	if err != nil {
		return "", err
	}
	if err := ValidateDottedPath(path); err != nil {
		return "", fmt.Errorf("%s %w", paramName, err)
	}
	return path, nil
}

// ValidateDottedPath rejects paths with empty segments
func ValidateDottedPath(path string) error {
	if path == "" {
		return errors.New("cannot be empty")
	}
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return errors.New("has an empty segment")
		}
	}
	return nil
}
