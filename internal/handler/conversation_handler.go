package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/chatline/internal/service"
	"github.com/mbeoliero/chatline/pkg/errcode"
	"github.com/mbeoliero/chatline/pkg/response"
)

// ConversationHandler handles conversation-related requests
type ConversationHandler struct {
	convService *service.ConversationService
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(convService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convService: convService}
}

// CreateConversation handles create (upsert) conversation request
func (h *ConversationHandler) CreateConversation(ctx context.Context, c *app.RequestContext) {
	var req service.CreateConversationRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam.Wrap(err))
		return
	}

	id, err := h.convService.CreateConversation(ctx, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, response.StatusResponse{Status: response.StatusSuccess, Id: id})
}

// GetConversationList handles list conversations request, optionally filtered by userId
func (h *ConversationHandler) GetConversationList(ctx context.Context, c *app.RequestContext) {
	convs, err := h.convService.ListConversations(ctx, c.Query("userId"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, convs)
}

// GetConversation handles get single conversation request
func (h *ConversationHandler) GetConversation(ctx context.Context, c *app.RequestContext) {
	conv, err := h.convService.GetConversation(ctx, c.Param("id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, conv)
}

// UpdateConversation handles update conversation title request
func (h *ConversationHandler) UpdateConversation(ctx context.Context, c *app.RequestContext) {
	var req service.UpdateConversationRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam.Wrap(err))
		return
	}

	if err := h.convService.UpdateTitle(ctx, c.Param("id"), &req); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Status(ctx, c, response.StatusUpdated)
}

// DeleteConversation handles delete conversation request
func (h *ConversationHandler) DeleteConversation(ctx context.Context, c *app.RequestContext) {
	if err := h.convService.DeleteConversation(ctx, c.Param("id")); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Status(ctx, c, response.StatusDeleted)
}
