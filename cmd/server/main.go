package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"devconnect/internal/api"
	"devconnect/internal/repository"
	"devconnect/internal/service"
	"devconnect/internal/websocket"
	"devconnect/pkg/cache"
	"devconnect/pkg/config"
	"devconnect/pkg/db"
	"devconnect/pkg/logger"
	"devconnect/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 初始化配置
	if err := config.Init(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GlobalConfig

	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.ProductionMode); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := logger.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment); err != nil {
		logger.L.Warn("Sentry disabled", zap.Error(err))
	}
	defer logger.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.L.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// 初始化数据库连接
	if err := db.InitDB(); err != nil {
		logger.L.Fatal("Failed to initialize database", zap.Error(err))
	}

	presence, err := cache.NewPresence(ctx)
	if err != nil {
		logger.L.Fatal("Failed to initialize presence store", zap.Error(err))
	}
	defer presence.Close()

	userRepo := repository.NewUserRepository()
	followRepo := repository.NewFollowRepository()
	messageRepo := repository.NewMessageRepository()
	postRepo := repository.NewPostRepository()

	// hub 与 ChatService 互相依赖: 先创建服务, 再注入 hub
	chatService := service.NewChatService(nil, presence, messageRepo, userRepo)
	hub, err := websocket.CreateHub(chatService)
	if err != nil {
		logger.L.Fatal("Failed to create hub", zap.Error(err))
	}
	chatService.SetNotifier(hub)
	if err := websocket.StartHub(hub); err != nil {
		logger.L.Fatal("Failed to start hub", zap.Error(err))
	}

	fileService, err := service.NewFileService()
	if err != nil {
		logger.L.Fatal("Failed to initialize file storage", zap.Error(err))
	}

	gin.SetMode(cfg.Server.Mode)
	router := api.NewRouter(api.Deps{
		UserRepo: userRepo,
		Auth:     service.NewAuthService(userRepo),
		Users:    service.NewUserService(userRepo, followRepo),
		Posts:    service.NewPostService(postRepo, followRepo, userRepo),
		Chat:     chatService,
		Files:    fileService,
		Hub:      hub,
		Presence: presence,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.L.Info("Server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.L.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := hub.Close(); err != nil {
		logger.L.Error("Failed to close hub", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.L.Error("Failed to flush traces", zap.Error(err))
	}
	logger.L.Info("Server exited")
}
