package client

import (
	"errors"
	"fmt"
)

// HTTPError represents a non-2xx HTTP response from the API. Err carries the
// authmodel category the response maps to.
type HTTPError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
	Err        error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}
