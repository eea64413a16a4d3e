package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/chatline/internal/config"
	"github.com/mbeoliero/chatline/internal/gateway"
	"github.com/mbeoliero/chatline/internal/handler"
	"github.com/mbeoliero/chatline/internal/repository"
	"github.com/mbeoliero/chatline/internal/router"
	"github.com/mbeoliero/chatline/internal/service"
)

// configPathEnv overrides the default config file location
const configPathEnv = "CHAT_CONFIG_PATH"

func main() {
	ctx := context.TODO()

	configPath := os.Getenv(configPathEnv)
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s, driver=%s", cfg.Server.Mode, cfg.Store.Driver)

	// Initialize repositories
	repos, err := repository.Shared(ctx, cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	// Check store connection
	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "store connection check failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "store connection established")

	// Initialize services
	msgService := service.NewMessageService(repos, &cfg.Pagination)
	convService := service.NewConversationService(repos)

	// Initialize realtime event stream
	var wsServer *gateway.WsServer
	if cfg.WebSocket.Enabled {
		wsServer = gateway.NewWsServer(&cfg.WebSocket)
		msgService.SetPublisher(wsServer)
		convService.SetPublisher(wsServer)

		runCtx, stop := context.WithCancel(ctx)
		defer stop()
		wsServer.Run(runCtx)
	}

	// Initialize handlers
	handlers := &router.Handlers{
		Message:      handler.NewMessageHandler(msgService),
		Conversation: handler.NewConversationHandler(convService),
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	// Setup routes
	router.SetupRouter(h, handlers, cfg, repos, wsServer)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	// Start server in goroutine
	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "server stopped")
}
