package sdk

import (
	"context"
	"net/url"
)

// CreateConversation creates or merges a conversation and returns its id
func (c *Client) CreateConversation(ctx context.Context, req *CreateConversationRequest) (string, error) {
	var result StatusResponse
	if err := c.post(ctx, "/conversations", req, &result); err != nil {
		return "", err
	}
	return result.Id, nil
}

// ListConversations lists the conversations of userId, or all of them when userId is empty
func (c *Client) ListConversations(ctx context.Context, userId string) ([]*ConversationInfo, error) {
	var params url.Values
	if userId != "" {
		params = url.Values{"userId": {userId}}
	}
	var result []*ConversationInfo
	if err := c.get(ctx, "/conversations", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetConversation gets a conversation by id
func (c *Client) GetConversation(ctx context.Context, conversationId string) (*ConversationInfo, error) {
	var result ConversationInfo
	if err := c.get(ctx, "/conversations/"+url.PathEscape(conversationId), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateConversationTitle sets the title of an existing conversation
func (c *Client) UpdateConversationTitle(ctx context.Context, conversationId, title string) error {
	return c.patch(ctx, "/conversations/"+url.PathEscape(conversationId), &UpdateConversationRequest{Title: title}, nil)
}

// DeleteConversation deletes a conversation. Its messages are kept.
func (c *Client) DeleteConversation(ctx context.Context, conversationId string) error {
	return c.delete(ctx, "/conversations/"+url.PathEscape(conversationId), nil)
}
