package errcode

import (
	"fmt"
	"net/http"
)

// Error represents a client-visible error. Code is the HTTP status written
// with the error body.
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// New creates a new error with code and message
func New(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code: e.Code,
		Msg:  fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// Validation errors (400)
var (
	ErrInvalidParam           = New(http.StatusBadRequest, "invalid parameter")
	ErrMissingFields          = New(http.StatusBadRequest, "Missing required fields")
	ErrIdRequired             = New(http.StatusBadRequest, "id is required")
	ErrTitleRequired          = New(http.StatusBadRequest, "title is required")
	ErrTextRequired           = New(http.StatusBadRequest, "text is required")
	ErrConversationIdRequired = New(http.StatusBadRequest, "conversationId is required")
	ErrInvalidLimit           = New(http.StatusBadRequest, "limit must be an integer")
	ErrInvalidCursor          = New(http.StatusBadRequest, "lastTimestamp must be an integer")
)

// Lookup errors (404)
var (
	ErrNotFound        = New(http.StatusNotFound, "not found")
	ErrConvNotFound    = New(http.StatusNotFound, "conversation not found")
	ErrMessageNotFound = New(http.StatusNotFound, "message not found")
)

// Server errors (5xx)
var (
	ErrInternalServer   = New(http.StatusInternalServerError, "internal server error")
	ErrStoreUnavailable = New(http.StatusServiceUnavailable, "store unavailable")
)
