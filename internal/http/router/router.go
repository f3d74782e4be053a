package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/olegsazonov/emergency-backend/internal/config"
	"github.com/olegsazonov/emergency-backend/internal/http/handlers"
	"github.com/olegsazonov/emergency-backend/internal/http/middleware"
	"github.com/olegsazonov/emergency-backend/internal/models"
	"github.com/olegsazonov/emergency-backend/internal/service"
)

// SetupRouter собирает все маршруты сервиса.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	emergencyHandler *handlers.EmergencyHandler,
	notificationHandler *handlers.NotificationHandler,
	mediaHandler *handlers.MediaHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// WebSocket аутентифицируется токеном в query-параметре.
	api.GET("/ws", wsHandler.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.POST("/emergencies", emergencyHandler.Create)
		protected.GET("/emergencies", emergencyHandler.List)
		protected.GET("/emergencies/:id", middleware.UUIDValidator("id"), emergencyHandler.Get)
		protected.GET("/emergencies/:id/photos", middleware.UUIDValidator("id"), mediaHandler.ListPhotos)
		protected.POST("/emergencies/:id/photos", middleware.UUIDValidator("id"), mediaHandler.UploadPhoto)

		protected.POST("/classify", emergencyHandler.Classify)

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.POST("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.POST("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	// Маршруты дежурной смены: принятие и закрытие вызовов.
	responder := api.Group("/")
	responder.Use(middleware.AuthMiddleware(tokenManager))
	responder.Use(middleware.RequireRole(models.RoleResponder, models.RoleAdmin))
	{
		responder.GET("/emergencies/pending", emergencyHandler.ListPending)
		responder.GET("/emergencies/assigned", emergencyHandler.ListMine)
		responder.POST("/emergencies/:id/accept", middleware.UUIDValidator("id"), emergencyHandler.Accept)
		responder.POST("/emergencies/:id/resolve", middleware.UUIDValidator("id"), emergencyHandler.Resolve)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager))
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/queue/rebuild", emergencyHandler.RebuildQueue)
	}

	return r
}
