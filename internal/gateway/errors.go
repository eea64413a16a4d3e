package gateway

import "errors"

// Gateway errors
var (
	ErrConnClosed             = errors.New("connection closed")
	ErrWriteChannelFull       = errors.New("write channel full")
	ErrInvalidProtocol        = errors.New("invalid protocol")
	ErrUnknownAction          = errors.New("unknown action")
	ErrConversationIdRequired = errors.New("conversationId is required")
	ErrTooManySubscriptions   = errors.New("too many subscriptions")
	ErrPanic                  = errors.New("panic error")
	ErrServerClosed           = errors.New("server closed")
)
