package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/websocket"

	"github.com/mbeoliero/chatline/internal/config"
	"github.com/mbeoliero/chatline/internal/gateway"
	"github.com/mbeoliero/chatline/internal/handler"
	"github.com/mbeoliero/chatline/internal/middleware"
	"github.com/mbeoliero/chatline/internal/repository"
	"github.com/mbeoliero/chatline/pkg/errcode"
	"github.com/mbeoliero/chatline/pkg/response"
)

// RootMessage is the body of GET /
const RootMessage = "Chat API is running! 🚀"

// Handlers holds all HTTP handlers
type Handlers struct {
	Message      *handler.MessageHandler
	Conversation *handler.ConversationHandler
}

// SetupRouter sets up all routes. wsServer may be nil when realtime events are disabled.
func SetupRouter(h *server.Hertz, handlers *Handlers, cfg *config.Config, repos *repository.Repositories, wsServer *gateway.WsServer) {
	h.Use(middleware.RequestId(), middleware.AccessLog(), middleware.CORS(cfg.Server.AllowedOrigins))

	if cfg.Server.MetricsEnabled {
		metrics := middleware.NewMetrics()
		h.Use(metrics.Middleware())
		h.GET("/metrics", metrics.Handler())
	}

	h.GET("/", func(ctx context.Context, c *app.RequestContext) {
		c.String(consts.StatusOK, RootMessage)
	})

	// Health check
	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		if err := repos.CheckConnection(ctx); err != nil {
			response.ErrorWithCode(ctx, c, errcode.ErrStoreUnavailable.Wrap(err))
			return
		}
		c.JSON(consts.StatusOK, map[string]string{"status": "ok", "driver": repos.Driver})
	})

	// Message routes
	msgGroup := h.Group("/messages")
	{
		msgGroup.GET("", handlers.Message.GetMessages)
		msgGroup.POST("", handlers.Message.SendMessage)
		msgGroup.GET("/:id", handlers.Message.GetMessage)
		msgGroup.PATCH("/:id", handlers.Message.EditMessage)
		msgGroup.DELETE("/:id", handlers.Message.DeleteMessage)
	}

	// Conversation routes
	convGroup := h.Group("/conversations")
	{
		convGroup.GET("", handlers.Conversation.GetConversationList)
		convGroup.POST("", handlers.Conversation.CreateConversation)
		convGroup.GET("/:id", handlers.Conversation.GetConversation)
		convGroup.PATCH("/:id", handlers.Conversation.UpdateConversation)
		convGroup.DELETE("/:id", handlers.Conversation.DeleteConversation)
	}

	if wsServer == nil {
		return
	}

	// WebSocket event stream
	allowedOrigins := cfg.Server.AllowedOrigins
	upgrader := &websocket.HertzUpgrader{
		CheckOrigin: func(ctx *app.RequestContext) bool {
			return checkOrigin(ctx, allowedOrigins)
		},
	}

	h.GET("/ws", func(ctx context.Context, c *app.RequestContext) {
		wsServer.HandleHertzConnection(ctx, c, upgrader)
	})
}

// checkOrigin validates the Origin header against allowed origins.
// Requests without an Origin header come from non-browser clients and pass.
func checkOrigin(c *app.RequestContext, allowedOrigins []string) bool {
	origin := string(c.Request.Header.Peek("Origin"))
	if origin == "" {
		return true
	}
	_, ok := middleware.MatchOrigin(origin, allowedOrigins)
	return ok
}
