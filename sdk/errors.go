package sdk

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents an API error
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("status: %d, error: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an API 404
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsBadRequest reports whether err is an API 400
func IsBadRequest(err error) bool {
	return hasStatus(err, http.StatusBadRequest)
}

func hasStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
