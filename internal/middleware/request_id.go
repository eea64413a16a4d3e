package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
)

// HeaderRequestId carries the request id on requests and responses
const HeaderRequestId = "X-Request-Id"

type requestIdKey struct{}

// RequestId reuses the caller's X-Request-Id or generates one, and echoes it in the response
func RequestId() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.Request.Header.Peek(HeaderRequestId))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(HeaderRequestId, id)
		c.Header(HeaderRequestId, id)

		c.Next(context.WithValue(ctx, requestIdKey{}, id))
	}
}

// GetRequestId returns the request id stored by RequestId
func GetRequestId(ctx context.Context) string {
	id, _ := ctx.Value(requestIdKey{}).(string)
	return id
}
