package gateway

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/chatline/internal/entity"
)

// Client represents a connected WebSocket subscriber
type Client struct {
	mu        sync.Mutex
	conn      ClientConn
	ConnId    string
	UserId    string
	server    *WsServer
	subs      map[string]struct{}
	closed    atomic.Bool
	closedErr error
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new client. userId is informational only.
func NewClient(conn ClientConn, connId, userId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:   conn,
		ConnId: connId,
		UserId: userId,
		server: server,
		subs:   make(map[string]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the client message handling
func (c *Client) Start() {
	go c.readLoop()
}

// readLoop continuously reads messages from the connection
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			c.closedErr = ErrPanic
			log.CtxError(c.ctx, "client read loop panic: conn_id=%s, error=%v", c.ConnId, r)
		}
		c.close()
	}()

	for {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "read message error: conn_id=%s, error=%v", c.ConnId, err)
			c.closedErr = err
			return
		}

		if c.closed.Load() {
			c.closedErr = ErrConnClosed
			return
		}

		if err := c.handleMessage(message); err != nil {
			log.CtxWarn(c.ctx, "handle message error: conn_id=%s, error=%v", c.ConnId, err)
			c.closedErr = err
			return
		}
	}
}

// handleMessage handles a single client frame. Only a failed reply ends the connection.
func (c *Client) handleMessage(message []byte) error {
	var req WSRequest
	if err := Decode(message, &req); err != nil {
		return c.writeEvent(ackEvent(EventError, "", ErrInvalidProtocol))
	}

	log.CtxDebug(c.ctx, "received frame: action=%s, conversation_id=%s, conn_id=%s", req.Action, req.ConversationId, c.ConnId)

	switch req.Action {
	case ActionSubscribe:
		err := c.Subscribe(req.ConversationId)
		return c.writeEvent(ackEvent(EventSubscribed, req.ConversationId, err))
	case ActionUnsubscribe:
		err := c.Unsubscribe(req.ConversationId)
		return c.writeEvent(ackEvent(EventUnsubscribed, req.ConversationId, err))
	default:
		return c.writeEvent(ackEvent(EventError, req.ConversationId, ErrUnknownAction))
	}
}

// Subscribe starts delivering events of conversationId to the client
func (c *Client) Subscribe(conversationId string) error {
	if conversationId == "" {
		return ErrConversationIdRequired
	}

	c.mu.Lock()
	if _, ok := c.subs[conversationId]; ok {
		c.mu.Unlock()
		return nil
	}
	if len(c.subs) >= MaxSubscriptions {
		c.mu.Unlock()
		return ErrTooManySubscriptions
	}
	c.subs[conversationId] = struct{}{}
	c.mu.Unlock()

	c.server.subs.Subscribe(conversationId, c)
	return nil
}

// Unsubscribe stops delivering events of conversationId to the client
func (c *Client) Unsubscribe(conversationId string) error {
	if conversationId == "" {
		return ErrConversationIdRequired
	}

	c.mu.Lock()
	delete(c.subs, conversationId)
	c.mu.Unlock()

	c.server.subs.Unsubscribe(conversationId, c)
	return nil
}

// Subscriptions returns the followed conversation ids, sorted
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// writeEvent encodes and queues a single event
func (c *Client) writeEvent(event *entity.Event) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}
	return c.Push(data)
}

// Push queues an encoded event frame
func (c *Client) Push(data []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.conn.WriteMessage(data)
}

// Close closes the client connection
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	return c.conn.Close()
}

// close handles cleanup when connection is closed
func (c *Client) close() {
	_ = c.Close()
	c.server.UnregisterClient(c)
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
