package sdk

import (
	"context"
	"net/url"
	"strconv"
)

// SendMessage sends a message and returns its id
func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (string, error) {
	var result StatusResponse
	if err := c.post(ctx, "/messages", req, &result); err != nil {
		return "", err
	}
	return result.Id, nil
}

// SendTextMessage is a convenience method to send a plain text message
func (c *Client) SendTextMessage(ctx context.Context, conversationId, senderId, text string) (string, error) {
	return c.SendMessage(ctx, &SendMessageRequest{
		ConversationId: conversationId,
		SenderId:       senderId,
		Text:           text,
	})
}

// ListMessages lists a page of messages, newest first
func (c *Client) ListMessages(ctx context.Context, req *ListMessagesRequest) ([]*MessageInfo, error) {
	params := url.Values{"conversationId": {req.ConversationId}}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.LastTimestamp > 0 {
		params.Set("lastTimestamp", strconv.FormatInt(req.LastTimestamp, 10))
	}

	var result []*MessageInfo
	if err := c.get(ctx, "/messages", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListAllMessages walks every page of a conversation, newest first
func (c *Client) ListAllMessages(ctx context.Context, conversationId string, pageSize int) ([]*MessageInfo, error) {
	var all []*MessageInfo
	req := &ListMessagesRequest{ConversationId: conversationId, Limit: pageSize}
	for {
		page, err := c.ListMessages(ctx, req)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || (pageSize > 0 && len(page) < pageSize) {
			return all, nil
		}
		req.LastTimestamp = page[len(page)-1].Timestamp
	}
}

// GetMessage gets a message by id
func (c *Client) GetMessage(ctx context.Context, msgId string) (*MessageInfo, error) {
	var result MessageInfo
	if err := c.get(ctx, "/messages/"+url.PathEscape(msgId), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// EditMessage replaces the text of a message
func (c *Client) EditMessage(ctx context.Context, msgId, text string) error {
	return c.patch(ctx, "/messages/"+url.PathEscape(msgId), &EditMessageRequest{Text: text}, nil)
}

// DeleteMessage deletes a message
func (c *Client) DeleteMessage(ctx context.Context, msgId string) error {
	return c.delete(ctx, "/messages/"+url.PathEscape(msgId), nil)
}
