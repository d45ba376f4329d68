package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeromwolf/FluxNews/internal/handler"
	"github.com/jeromwolf/FluxNews/internal/middleware"
)

// Router wires the operational and user-facing HTTP surface. The
// pipeline itself runs in the background; HTTP is read-mostly.
type Router struct {
	engine        *gin.Engine
	health        *handler.HealthHandler
	stats         *handler.StatsHandler
	notifications *handler.NotificationHandler
}

func NewRouter(
	health *handler.HealthHandler,
	stats *handler.StatsHandler,
	notifications *handler.NotificationHandler,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	return &Router{
		engine:        gin.New(),
		health:        health,
		stats:         stats,
		notifications: notifications,
	}
}

func (r *Router) Setup() {
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.Logger())

	r.engine.GET("/health", r.health.Health)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.engine.GET("/stats", r.stats.Stats)

	api := r.engine.Group("/api/v1")
	{
		api.GET("/users/:user_id/notifications", r.notifications.List)
		api.POST("/users/:user_id/notifications/read", r.notifications.MarkRead)
		api.GET("/users/:user_id/settings", r.notifications.GetSettings)
		api.PUT("/users/:user_id/settings", r.notifications.UpdateSettings)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
