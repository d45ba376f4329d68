package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// HealthHandler reports process and database health.
type HealthHandler struct {
	db      *sqlx.DB
	version string
	started time.Time
}

func NewHealthHandler(db *sqlx.DB, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version, started: time.Now()}
}

func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "ok"
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		dbStatus = err.Error()
	}
	c.JSON(status, gin.H{
		"status":   http.StatusText(status),
		"version":  h.version,
		"uptime":   time.Since(h.started).String(),
		"database": dbStatus,
	})
}
