package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = errors.New("backend rejected credentials")
	// ErrNotFound is returned when the backend has no such resource.
	ErrNotFound = errors.New("backend resource not found")
	// ErrUnavailable is returned once retries are exhausted on network errors, 429 or 5xx,
	// and straight away when an order submission hits a network error or 5xx.
	ErrUnavailable = errors.New("backend unavailable")

	errThrottled = errors.New("rate limited (HTTP 429)")
)

// APIError represents an error response from the order API.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}
