package middleware

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/kit/log"
)

// AccessLog logs one line per request after it has been handled
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)

		status := c.Response.StatusCode()
		latency := time.Since(start)
		if status >= 500 {
			log.CtxWarn(ctx, "access: method=%s, path=%s, status=%d, latency=%s, request_id=%s",
				c.Method(), c.Path(), status, latency, c.GetString(HeaderRequestId))
			return
		}
		log.CtxInfo(ctx, "access: method=%s, path=%s, status=%d, latency=%s, request_id=%s",
			c.Method(), c.Path(), status, latency, c.GetString(HeaderRequestId))
	}
}
