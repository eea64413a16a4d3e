package gateway

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/chatline/internal/config"
	"github.com/mbeoliero/chatline/internal/entity"
)

// WsServer fans change events out to the clients subscribed to a conversation.
// Events of one conversation always land on the same push worker, so
// subscribers observe them in publish order.
type WsServer struct {
	cfg            *config.WebSocketConfig
	subs           *SubscriptionMap
	registerChan   chan *Client
	unregisterChan chan *Client
	pushChans      []chan *entity.Event
	done           chan struct{}
	onlineConnNum  atomic.Int64
	droppedNum     atomic.Int64
}

// NewWsServer creates a new WebSocket server
func NewWsServer(cfg *config.WebSocketConfig) *WsServer {
	workerNum := cfg.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 1
	}
	pushChans := make([]chan *entity.Event, workerNum)
	for i := range pushChans {
		pushChans[i] = make(chan *entity.Event, cfg.PushChannelSize)
	}

	return &WsServer{
		cfg:            cfg,
		subs:           NewSubscriptionMap(),
		registerChan:   make(chan *Client, 1000),
		unregisterChan: make(chan *Client, 1000),
		pushChans:      pushChans,
		done:           make(chan struct{}),
	}
}

// Run starts the event loop and the push workers; they stop with ctx
func (s *WsServer) Run(ctx context.Context) {
	go s.eventLoop(ctx)
	for _, ch := range s.pushChans {
		go s.pushLoop(ctx, ch)
	}
	log.Info("started %d push workers", len(s.pushChans))
}

// eventLoop handles client registration and unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.registerChan:
			s.registerClient(ctx, client)
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// pushLoop drains one shard of the push queue
func (s *WsServer) pushLoop(ctx context.Context, ch chan *entity.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			s.processEvent(ctx, event)
		}
	}
}

// processEvent writes event to every subscriber of its conversation.
// A subscriber whose buffer is full is disconnected rather than skipped.
func (s *WsServer) processEvent(ctx context.Context, event *entity.Event) {
	clients := s.subs.Get(event.ConversationId)
	if len(clients) == 0 {
		return
	}

	data, err := Encode(event)
	if err != nil {
		log.CtxError(ctx, "encode event failed: type=%s, conversation_id=%s, error=%v", event.Type, event.ConversationId, err)
		return
	}

	for _, client := range clients {
		err := client.Push(data)
		switch {
		case err == nil:
		case errors.Is(err, ErrWriteChannelFull):
			log.CtxWarn(ctx, "slow subscriber disconnected: conn_id=%s, conversation_id=%s", client.ConnId, event.ConversationId)
			_ = client.Close()
		default:
			log.CtxDebug(ctx, "push to client failed: conn_id=%s, error=%v", client.ConnId, err)
		}
	}
}

// Publish queues event for delivery without blocking the caller
func (s *WsServer) Publish(event *entity.Event) {
	if event == nil || event.ConversationId == "" {
		return
	}

	select {
	case s.shard(event.ConversationId) <- event:
	default:
		s.droppedNum.Add(1)
		log.Warn("push channel full, event dropped: type=%s, conversation_id=%s", event.Type, event.ConversationId)
	}
}

func (s *WsServer) shard(conversationId string) chan *entity.Event {
	return s.pushChans[xxhash.Sum64String(conversationId)%uint64(len(s.pushChans))]
}

// Attach registers a new client on conn and subscribes it to conversationIds.
// It fails with ErrServerClosed once the event loop has stopped.
func (s *WsServer) Attach(conn ClientConn, userId string, conversationIds []string) (*Client, error) {
	if s.isStopped() {
		return nil, ErrServerClosed
	}

	client := NewClient(conn, uuid.New().String(), userId, s)
	for _, id := range conversationIds {
		if err := client.Subscribe(id); err != nil {
			s.subs.RemoveClient(client)
			return nil, err
		}
	}

	select {
	case s.registerChan <- client:
		return client, nil
	case <-s.done:
		s.subs.RemoveClient(client)
		return nil, ErrServerClosed
	}
}

func (s *WsServer) isStopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// registerClient registers a client
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	s.onlineConnNum.Add(1)
	log.CtxInfo(ctx, "client registered: conn_id=%s, user_id=%s, subscriptions=%d, online_conns=%d",
		client.ConnId, client.UserId, len(client.Subscriptions()), s.onlineConnNum.Load())
}

// unregisterClient unregisters a client
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	s.subs.RemoveClient(client)
	s.onlineConnNum.Add(-1)
	log.CtxInfo(ctx, "client unregistered: conn_id=%s, user_id=%s, online_conns=%d",
		client.ConnId, client.UserId, s.onlineConnNum.Load())
}

// UnregisterClient queues client for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		s.subs.RemoveClient(client)
		log.Warn("unregister channel full: conn_id=%s", client.ConnId)
	}
}

// GetOnlineConnCount returns online connection count
func (s *WsServer) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}

// GetDroppedEventCount returns how many events were dropped on a full push queue
func (s *WsServer) GetDroppedEventCount() int64 {
	return s.droppedNum.Load()
}

// GetSubscribedConversationCount returns the number of conversations with subscribers
func (s *WsServer) GetSubscribedConversationCount() int {
	return s.subs.ConversationCount()
}
