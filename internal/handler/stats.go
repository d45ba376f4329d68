package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jeromwolf/FluxNews/internal/service/dedup"
	"github.com/jeromwolf/FluxNews/internal/service/notification"
	"github.com/jeromwolf/FluxNews/pkg/httpclient"
)

// StatsHandler exposes pipeline counters for operators: queue depth,
// connection registry, dedup hit rates, and outbound request throttling.
type StatsHandler struct {
	notifications *notification.Service
	dedup         *dedup.Service
	client        *httpclient.Client
}

func NewStatsHandler(n *notification.Service, d *dedup.Service, c *httpclient.Client) *StatsHandler {
	return &StatsHandler{notifications: n, dedup: d, client: c}
}

func (h *StatsHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, NewSuccessResponse(gin.H{
		"queue":       h.notifications.QueueStats(),
		"connections": h.notifications.RegistryStats(),
		"dedup":       h.dedup.Stats(),
		"rate_limits": h.client.LimiterStats(),
		"retries":     h.client.RetryStats(),
	}))
}
