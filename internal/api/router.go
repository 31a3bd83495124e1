package api

import (
	"devconnect/internal/interfaces"
	"devconnect/internal/middleware"
	"devconnect/internal/repository"
	"devconnect/internal/service"
	"devconnect/pkg/cache"
	"devconnect/pkg/config"
	"devconnect/pkg/metrics"
	"devconnect/pkg/tracing"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps 路由依赖的服务
type Deps struct {
	UserRepo *repository.UserRepository
	Auth     *service.AuthService
	Users    *service.UserService
	Posts    *service.PostService
	Chat     *service.ChatService
	Files    *service.FileService
	Hub      interfaces.ConnectionManager
	Presence *cache.Presence
}

func NewRouter(d Deps) *gin.Engine {
	cfg := config.GlobalConfig

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Sentry.DSN != "" {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(tracing.ServiceName(cfg.Tracing)))
	}
	r.Use(
		middleware.RequestID(),
		middleware.GinZapLogger(),
		middleware.Metrics(),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})),
	)

	authHandler := NewAuthHandler(d.Auth)
	userHandler := NewUserHandler(d.Users)
	postHandler := NewPostHandler(d.Posts)
	chatHandler := NewChatHandler(d.Chat)
	fileHandler := NewFileHandler(d.Files)
	wsHandler := NewWSHandler(d.Hub, d.Chat)
	healthHandler := NewHealthHandler(d.Presence)

	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.Static(d.Files.PublicPrefix(), d.Files.BasePath())
	r.MaxMultipartMemory = maxMultipartMemory

	limiter := middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	requireAuth := middleware.AuthMiddleware(d.UserRepo)

	r.GET("/ws", requireAuth, wsHandler.HandleConnection)

	api := r.Group("/api")

	// 公开路由
	public := api.Group("", middleware.OptionalAuth(d.UserRepo), limiter)
	{
		public.POST("/auth/register", authHandler.Register)
		public.POST("/auth/login", authHandler.Login)

		public.GET("/users", userHandler.ListUsers)
		public.GET("/users/:id", userHandler.GetUser)
		public.GET("/users/username/:username", userHandler.GetUserByUsername)
		public.GET("/users/:id/followers", userHandler.Followers)
		public.GET("/users/:id/following", userHandler.Following)

		public.GET("/posts", postHandler.ListPosts)
		public.GET("/posts/:id", postHandler.GetPost)
	}

	// 受保护的路由
	protected := api.Group("", requireAuth, limiter)
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.PUT("/auth/me", authHandler.UpdateProfile)

		protected.POST("/users/:id/follow", userHandler.ToggleFollow)
		protected.GET("/users/suggested/users", userHandler.Suggested)

		protected.POST("/posts", postHandler.CreatePost)
		protected.GET("/posts/feed/me", postHandler.Feed)
		protected.PUT("/posts/:id", postHandler.UpdatePost)
		protected.DELETE("/posts/:id", postHandler.DeletePost)
		protected.POST("/posts/:id/like", postHandler.ToggleLike)
		protected.POST("/posts/:id/comment", postHandler.AddComment)
		protected.DELETE("/posts/:id/comment/:comment_id", postHandler.DeleteComment)

		protected.POST("/messages", chatHandler.SendMessage)
		protected.GET("/messages/conversations", chatHandler.ListConversations)
		protected.GET("/messages/conversation/:user_id", chatHandler.GetConversation)
		protected.PUT("/messages/conversation/:user_id/read", chatHandler.AckConversation)
		protected.GET("/messages/unread/count", chatHandler.UnreadCount)
		protected.GET("/messages/recent", chatHandler.RecentUnread)
		protected.PUT("/messages/:id/read", chatHandler.MarkRead)
		protected.PUT("/messages/:id", chatHandler.EditMessage)
		protected.DELETE("/messages/:id", chatHandler.DeleteMessage)

		protected.POST("/upload/avatar", fileHandler.UploadAvatar)
		protected.POST("/upload/cover", fileHandler.UploadCover)
		protected.POST("/upload/post-images", fileHandler.UploadPostImages)
	}

	return r
}
