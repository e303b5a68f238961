package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"triconnect/internal/handler"
	"triconnect/internal/model"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *handler.AuthHandler,
	eventHandler *handler.EventHandler,
	registrationHandler *handler.RegistrationHandler,
	notificationHandler *handler.NotificationHandler,
	adminHandler *handler.AdminHandler,
	jwtSecret string,
	db *pgxpool.Pool,
) *Router {
	r := gin.Default()
	r.Use(TraceMiddleware(), MetricsMiddleware())

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)
	r.GET("/events", eventHandler.List)
	r.GET("/events/:id", eventHandler.Get)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/events/:id/register", registrationHandler.Register)
		auth.DELETE("/events/:id/register", registrationHandler.Cancel)
		auth.GET("/my/events", registrationHandler.MyEvents)

		auth.GET("/notifications", notificationHandler.List)
		auth.GET("/notifications/unread", notificationHandler.Unread)
		auth.POST("/notifications/:id/read", notificationHandler.MarkRead)
		auth.POST("/notifications/read-all", notificationHandler.MarkAllRead)
	}

	// Admin
	admin := r.Group("/")
	admin.Use(AuthMiddleware(jwtSecret), RequireRole(model.RoleAdmin))
	{
		admin.POST("/events", eventHandler.Create)
		admin.PUT("/events/:id", eventHandler.Update)
		admin.DELETE("/events/:id", eventHandler.Deactivate)

		admin.POST("/admin/outbox/replay", adminHandler.ReplayOutboxEvent)
		admin.POST("/admin/outbox/replay-failed", adminHandler.ReplayFailedEvents)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
