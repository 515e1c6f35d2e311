package restbase

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Common errors
var (
	// ErrInvalidConfig indicates invalid connection configuration
	ErrInvalidConfig = errors.New("invalid mailman connection configuration")
	// ErrInvalidPage indicates a page requested with a non-positive count or number
	ErrInvalidPage = errors.New("page count and number must be positive")
	// ErrUnexpectedBody indicates the service answered with JSON of the wrong shape
	ErrUnexpectedBody = errors.New("unexpected response body")
)

// maxErrorBody is how many characters of a response body an HTTPError shows
const maxErrorBody = 200

// truncate shortens s to at most n runes, marking the cut with "..."
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// HTTPError is returned when the REST service answers outside the 2xx range.
type HTTPError struct {
	URL        string
	Method     string
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	msg := truncate(strings.TrimSpace(string(e.Body)), maxErrorBody)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("mailman API error: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, msg)
}

// IsNotFound checks if the error indicates a not found response
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsUnauthorized checks if the error indicates an authentication failure
func (e *HTTPError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsConflict checks if the error indicates the resource already exists
func (e *HTTPError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// ConnectionError is returned when the service could not be reached at all.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect to mailman API at %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// UnknownFieldError is returned when a property that the resource type does
// not declare is requested.
type UnknownFieldError struct {
	Resource string
	Field    string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s has no field %q", e.Resource, e.Field)
}

// IsNotFound reports whether err carries an HTTPError with status 404.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.IsNotFound()
}
