package github

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrFileNotFound signals a missing path on the contents API.
var ErrFileNotFound = errors.New("file not found")

// APIError is a non-200 response from the GitHub API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api status %d: %s", e.StatusCode, e.Body)
}

// IsClientError reports whether err is a GitHub 4xx response.
func IsClientError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

// IsNotFound reports whether err is a GitHub 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsForbidden reports whether err is a GitHub 401/403 response.
func IsForbidden(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}
