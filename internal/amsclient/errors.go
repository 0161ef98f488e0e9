package amsclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidScan is returned when a scanned QR payload is not a member id.
var ErrInvalidScan = errors.New("scanned code is not a member id")

// APIError is a non-2xx answer from the AMS API.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: upstream returned %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: upstream returned %d", e.Operation, e.StatusCode)
}

// IsUnauthorized reports whether err is an upstream 401 or 403.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// UserMessage returns the text shown inline to the user for a failed call:
// the collaborator's own error message when it sent one, a generic one otherwise.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "An unexpected error occurred. Please try again."
}
