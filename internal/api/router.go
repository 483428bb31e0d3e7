package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/opsboard/opsboard/internal/app"
	iauth "github.com/opsboard/opsboard/internal/auth"
	"github.com/opsboard/opsboard/internal/handlers"
	"github.com/opsboard/opsboard/internal/middleware"
	"github.com/opsboard/opsboard/internal/models"
	"github.com/opsboard/opsboard/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, sessions *iauth.SessionService, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	auditSvc, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	notificationSvc, err := services.NewNotificationService(db)
	if err != nil {
		return nil, err
	}
	taskSvc, err := services.NewTaskService(db, notificationSvc)
	if err != nil {
		return nil, err
	}
	chatSvc, err := services.NewChatService(db)
	if err != nil {
		return nil, err
	}
	userSvc, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	clientSvc, err := services.NewClientService(db)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))

	r.NoRoute(middleware.NotFoundHandler)

	// Public endpoints
	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/health", healthHandler.Health)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(db, sessions, auditSvc)
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	api.GET("/auth/me", authHandler.Me)
	api.POST("/auth/logout", authHandler.Logout)

	notificationHandler := handlers.NewNotificationHandler(notificationSvc)
	notifications := api.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.PATCH("/mark-read", notificationHandler.MarkRead)
		notifications.PATCH("/mark-all-read", notificationHandler.MarkAllRead)
	}

	taskHandler := handlers.NewTaskHandler(taskSvc)
	tasks := api.Group("/tasks")
	{
		tasks.GET("/history/:agentId", taskHandler.History)
		tasks.GET("/:id", taskHandler.Get)
		tasks.POST("", middleware.RequireRoles(models.RoleAccountManager), taskHandler.Create)
		tasks.PATCH("/:id/status", taskHandler.UpdateStatus)
	}

	chatHandler := handlers.NewChatHandler(chatSvc)
	chat := api.Group("/chat")
	{
		chat.GET("/conversations", chatHandler.ListConversations)
		chat.POST("/conversations/dm", chatHandler.OpenDM)
		chat.GET("/conversations/:id/messages", chatHandler.ListMessages)
		chat.POST("/conversations/:id/messages", chatHandler.SendMessage)
		chat.GET("/conversations/:id/messages/search", chatHandler.SearchMessages)
		chat.DELETE("/messages/:id", chatHandler.DeleteMessage)
		chat.POST("/messages/:id/reactions", chatHandler.AddReaction)
		chat.DELETE("/messages/:id/reactions/:emoji", chatHandler.RemoveReaction)
	}

	clientHandler := handlers.NewClientHandler(clientSvc)
	clients := api.Group("/clients")
	clients.Use(middleware.RequireRoles(models.RoleAccountManager))
	{
		clients.GET("", clientHandler.List)
		clients.GET("/:id", clientHandler.Get)
		clients.POST("", clientHandler.Create)
		clients.PATCH("/:id/manager", middleware.RequireRoles(), clientHandler.Reassign)
	}

	userHandler := handlers.NewUserHandler(userSvc)
	users := api.Group("/users")
	{
		users.GET("/agents", userHandler.ListAgents)
		users.GET("", middleware.RequireRoles(), userHandler.List)
		users.POST("", middleware.RequireRoles(), userHandler.Create)
		users.PATCH("/:id", middleware.RequireRoles(), userHandler.Update)
		users.DELETE("/:id", middleware.RequireRoles(), userHandler.Deactivate)
	}

	auditHandler := handlers.NewAuditHandler(auditSvc)
	api.GET("/audit", middleware.RequireRoles(), auditHandler.List)

	utilsHandler := handlers.NewUtilsHandler(services.NewURLProbe())
	api.GET("/utils/validate-url", utilsHandler.ValidateURL)

	return r, nil
}
