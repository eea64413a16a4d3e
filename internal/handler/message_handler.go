package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/chatline/internal/service"
	"github.com/mbeoliero/chatline/pkg/errcode"
	"github.com/mbeoliero/chatline/pkg/response"
)

// MessageHandler handles message-related requests
type MessageHandler struct {
	msgService *service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(msgService *service.MessageService) *MessageHandler {
	return &MessageHandler{msgService: msgService}
}

// SendMessage handles send message request
func (h *MessageHandler) SendMessage(ctx context.Context, c *app.RequestContext) {
	var req service.SendMessageRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam.Wrap(err))
		return
	}

	id, err := h.msgService.SendMessage(ctx, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, response.StatusResponse{Status: response.StatusSent, Id: id})
}

// GetMessages handles paginated message list request
func (h *MessageHandler) GetMessages(ctx context.Context, c *app.RequestContext) {
	req := service.ListMessagesRequest{ConversationId: c.Query("conversationId")}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			response.ErrorWithCode(ctx, c, errcode.ErrInvalidLimit)
			return
		}
		req.Limit = limit
	}

	if cursorStr := c.Query("lastTimestamp"); cursorStr != "" {
		cursor, err := strconv.ParseInt(cursorStr, 10, 64)
		if err != nil {
			response.ErrorWithCode(ctx, c, errcode.ErrInvalidCursor)
			return
		}
		req.LastTimestamp = cursor
	}

	msgs, err := h.msgService.ListMessages(ctx, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msgs)
}

// GetMessage handles get single message request
func (h *MessageHandler) GetMessage(ctx context.Context, c *app.RequestContext) {
	msg, err := h.msgService.GetMessage(ctx, c.Param("id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg)
}

// EditMessage handles edit message text request
func (h *MessageHandler) EditMessage(ctx context.Context, c *app.RequestContext) {
	var req service.EditMessageRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam.Wrap(err))
		return
	}

	if err := h.msgService.EditMessage(ctx, c.Param("id"), &req); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Status(ctx, c, response.StatusUpdated)
}

// DeleteMessage handles delete message request
func (h *MessageHandler) DeleteMessage(ctx context.Context, c *app.RequestContext) {
	if err := h.msgService.DeleteMessage(ctx, c.Param("id")); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Status(ctx, c, response.StatusDeleted)
}
