package sdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// eventBufferSize is the number of undelivered events kept before new ones are dropped
const eventBufferSize = 100

// Subscription is a live event stream from /ws
type Subscription struct {
	conn   *websocket.Conn
	events chan *Event
	done   chan struct{}
	mu     sync.Mutex
}

// Subscribe opens the event stream for conversationIds. The server confirms
// each one with a subscribed event; events are only guaranteed from then on.
// More conversations can be followed later with Subscription.Subscribe.
func (c *Client) Subscribe(ctx context.Context, conversationIds ...string) (*Subscription, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	if len(conversationIds) > 0 {
		u.RawQuery = url.Values{"conversationId": {strings.Join(conversationIds, ",")}}.Encode()
	}

	header := http.Header{}
	if c.requestId != "" {
		header.Set("X-Request-Id", c.requestId)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &Error{StatusCode: resp.StatusCode, Message: err.Error()}
		}
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	s := &Subscription{
		conn:   conn,
		events: make(chan *Event, eventBufferSize),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// readLoop decodes frames until the connection ends
func (s *Subscription) readLoop() {
	defer close(s.events)
	defer close(s.done)
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var event Event
		if err := sonic.Unmarshal(message, &event); err != nil {
			continue
		}

		select {
		case s.events <- &event:
		default:
			// consumer is behind, drop
		}
	}
}

// Events returns the event channel. It is closed when the connection ends.
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Done is closed when the connection ends
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Subscribe follows another conversation. The server acknowledges with a subscribed event.
func (s *Subscription) Subscribe(conversationId string) error {
	return s.send("subscribe", conversationId)
}

// Unsubscribe stops following a conversation
func (s *Subscription) Unsubscribe(conversationId string) error {
	return s.send("unsubscribe", conversationId)
}

func (s *Subscription) send(action, conversationId string) error {
	data, err := sonic.Marshal(map[string]string{
		"action":         action,
		"conversationId": conversationId,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the connection
func (s *Subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
