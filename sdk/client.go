package sdk

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Client is the SDK client for the chat API
type Client struct {
	baseURL    string
	httpClient *client.Client
	requestId  string
}

// ClientOption is a function to configure the client
type ClientOption func(*Client)

// WithHertzClient sets a custom Hertz client
func WithHertzClient(httpClient *client.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRequestId sends the given X-Request-Id with every request
func WithRequestId(requestId string) ClientOption {
	return func(c *Client) {
		c.requestId = requestId
	}
}

// NewClient creates a new SDK client
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	httpClient, err := client.NewClient(
		client.WithDialTimeout(10*time.Second),
		client.WithClientReadTimeout(30*time.Second),
		client.WithWriteTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// MustNewClient creates a new SDK client and panics on error
func MustNewClient(baseURL string, opts ...ClientOption) *Client {
	c, err := NewClient(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// request makes an HTTP request and decodes the response body into result.
// Responses with a status >= 400 are returned as *Error.
func (c *Client) request(ctx context.Context, method, path string, params url.Values, body interface{}, result interface{}) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req := &protocol.Request{}
	resp := &protocol.Response{}

	req.SetMethod(method)
	req.SetRequestURI(reqURL)
	if c.requestId != "" {
		req.Header.Set("X-Request-Id", c.requestId)
	}

	if body != nil {
		jsonBody, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		req.Header.SetContentTypeBytes([]byte(consts.MIMEApplicationJSON))
		req.SetBody(jsonBody)
	}

	if err := c.httpClient.Do(ctx, req, resp); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	if status := resp.StatusCode(); status >= consts.StatusBadRequest {
		apiErr := &Error{StatusCode: status}
		var errResp ErrorResponse
		if err := sonic.Unmarshal(resp.Body(), &errResp); err == nil {
			apiErr.Message = errResp.Error
		} else {
			apiErr.Message = string(resp.Body())
		}
		return apiErr
	}

	if result != nil {
		if err := sonic.Unmarshal(resp.Body(), result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// get makes a GET request with query parameters
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	return c.request(ctx, consts.MethodGet, path, params, nil, result)
}

// post makes a POST request
func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.request(ctx, consts.MethodPost, path, nil, body, result)
}

// patch makes a PATCH request
func (c *Client) patch(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.request(ctx, consts.MethodPatch, path, nil, body, result)
}

// delete makes a DELETE request
func (c *Client) delete(ctx context.Context, path string, result interface{}) error {
	return c.request(ctx, consts.MethodDelete, path, nil, nil, result)
}

// Health checks the server and its store
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil, nil)
}
