package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/chatline/pkg/errcode"
)

// Status values returned in StatusResponse
const (
	StatusSuccess = "success"
	StatusSent    = "sent"
	StatusUpdated = "updated"
	StatusDeleted = "deleted"
)

// StatusResponse is the small payload written by write endpoints
type StatusResponse struct {
	Status string `json:"status"`
	Id     string `json:"id,omitempty"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// Success sends a 200 response with data as the body
func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response with data as the body
func Created(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Status sends a 200 response carrying only a status string
func Status(ctx context.Context, c *app.RequestContext, status string) {
	c.JSON(http.StatusOK, StatusResponse{Status: status})
}

// Error sends an error response. Business errors keep their own status,
// anything else is reported as a 500 with the error text.
func Error(ctx context.Context, c *app.RequestContext, err error) {
	if e, ok := err.(*errcode.Error); ok {
		ErrorWithCode(ctx, c, e)
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

// ErrorWithCode sends an error response with specific error code
func ErrorWithCode(ctx context.Context, c *app.RequestContext, e *errcode.Error) {
	c.JSON(e.Code, ErrorResponse{Error: e.Msg})
}
