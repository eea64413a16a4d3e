package sdk

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/chatline/internal/config"
	"github.com/mbeoliero/chatline/internal/gateway"
	"github.com/mbeoliero/chatline/internal/handler"
	"github.com/mbeoliero/chatline/internal/repository"
	"github.com/mbeoliero/chatline/internal/router"
	"github.com/mbeoliero/chatline/internal/service"
	"github.com/mbeoliero/chatline/pkg/constant"
	"github.com/mbeoliero/chatline/pkg/idgen"
)

// startServer runs the full API on a free local port with the memory store
func startServer(t *testing.T) *Client {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := config.Default()
	cfg.Store.Driver = constant.DriverMemory

	repos := repository.NewMemoryRepositories(idgen.NewUUIDGenerator())
	msgService := service.NewMessageService(repos, &cfg.Pagination)
	convService := service.NewConversationService(repos)

	ctx, cancel := context.WithCancel(context.Background())
	wsServer := gateway.NewWsServer(&cfg.WebSocket)
	wsServer.Run(ctx)
	msgService.SetPublisher(wsServer)
	convService.SetPublisher(wsServer)

	h := server.New(server.WithHostPorts(addr))
	router.SetupRouter(h, &router.Handlers{
		Message:      handler.NewMessageHandler(msgService),
		Conversation: handler.NewConversationHandler(convService),
	}, cfg, repos, wsServer)
	go func() { _ = h.Run() }()

	t.Cleanup(func() {
		cancel()
		shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()
		_ = h.Shutdown(shutdownCtx)
	})

	c := MustNewClient("http://" + addr)
	require.Eventually(t, func() bool {
		return c.Health(context.Background()) == nil
	}, 5*time.Second, 20*time.Millisecond)
	return c
}

func TestClient_ConversationsAndMessages(t *testing.T) {
	ctx := context.Background()
	c := startServer(t)

	id, err := c.CreateConversation(ctx, &CreateConversationRequest{
		Id:           "room1",
		Participants: []string{"u1", "u2"},
		Title:        "Trip",
	})
	require.NoError(t, err)
	assert.Equal(t, "room1", id)

	msgId, err := c.SendTextMessage(ctx, "room1", "u1", "hi")
	require.NoError(t, err)
	require.NotEmpty(t, msgId)

	convs, err := c.ListConversations(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "Trip", convs[0].Title())
	assert.Equal(t, "hi", convs[0].LastMessage)

	require.NoError(t, c.EditMessage(ctx, msgId, "hello"))
	msg, err := c.GetMessage(ctx, msgId)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)

	require.NoError(t, c.UpdateConversationTitle(ctx, "room1", "Holiday"))
	conv, err := c.GetConversation(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, "Holiday", conv.Title())

	require.NoError(t, c.DeleteMessage(ctx, msgId))
	_, err = c.GetMessage(ctx, msgId)
	assert.True(t, IsNotFound(err))

	require.NoError(t, c.DeleteConversation(ctx, "room1"))
	_, err = c.GetConversation(ctx, "room1")
	assert.True(t, IsNotFound(err))
}

func TestClient_ListAllMessages(t *testing.T) {
	ctx := context.Background()
	c := startServer(t)

	for i := 0; i < 7; i++ {
		_, err := c.SendTextMessage(ctx, "room1", "u1", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	page, err := c.ListMessages(ctx, &ListMessagesRequest{ConversationId: "room1", Limit: 3})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "m6", page[0].Text)

	all, err := c.ListAllMessages(ctx, "room1", 3)
	require.NoError(t, err)
	require.Len(t, all, 7)
	assert.Equal(t, "m6", all[0].Text)
	assert.Equal(t, "m0", all[6].Text)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	c := startServer(t)

	_, err := c.SendMessage(ctx, &SendMessageRequest{ConversationId: "room1"})
	require.Error(t, err)
	assert.True(t, IsBadRequest(err))
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Missing required fields", apiErr.Message)

	_, err = c.ListMessages(ctx, &ListMessagesRequest{})
	assert.True(t, IsBadRequest(err))

	err = c.EditMessage(ctx, "ghost", "x")
	assert.True(t, IsNotFound(err))
}

func waitEvent(t *testing.T, sub *Subscription, typ string) *Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-sub.Events():
			require.True(t, ok, "subscription closed")
			if event.Type == typ {
				return event
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s", typ)
			return nil
		}
	}
}

func TestClient_Subscribe(t *testing.T) {
	ctx := context.Background()
	c := startServer(t)

	sub, err := c.Subscribe(ctx, "room1")
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, "room1", waitEvent(t, sub, EventSubscribed).ConversationId)

	msgId, err := c.SendTextMessage(ctx, "room1", "u1", "hi")
	require.NoError(t, err)

	created := waitEvent(t, sub, EventMessageCreated)
	assert.Equal(t, "room1", created.ConversationId)
	assert.Equal(t, msgId, created.Id)
	require.NotNil(t, created.Message)
	assert.Equal(t, "hi", created.Message.Text)

	require.NoError(t, c.EditMessage(ctx, msgId, "hello"))
	updated := waitEvent(t, sub, EventMessageUpdated)
	assert.Equal(t, "hello", updated.Message.Text)

	require.NoError(t, sub.Subscribe("room2"))
	ack := waitEvent(t, sub, EventSubscribed)
	assert.Equal(t, "room2", ack.ConversationId)

	_, err = c.CreateConversation(ctx, &CreateConversationRequest{Id: "room2", Title: "Other"})
	require.NoError(t, err)
	conv := waitEvent(t, sub, EventConversationUpdated)
	assert.Equal(t, "room2", conv.ConversationId)
	require.NotNil(t, conv.Conversation)
	assert.Equal(t, "Other", conv.Conversation.Title())

	require.NoError(t, c.DeleteMessage(ctx, msgId))
	deleted := waitEvent(t, sub, EventMessageDeleted)
	assert.Equal(t, msgId, deleted.Id)
}
