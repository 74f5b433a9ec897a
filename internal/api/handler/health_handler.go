package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// PingFunc 依赖探活
type PingFunc func(ctx context.Context) error

const readyTimeout = 2 * time.Second

// HealthHandler 存活 / 就绪探针
type HealthHandler struct {
	dbPing    PingFunc
	cachePing PingFunc
}

// NewHealthHandler 创建 HealthHandler；cachePing 为 nil 表示未启用 Redis
func NewHealthHandler(dbPing, cachePing PingFunc) *HealthHandler {
	return &HealthHandler{dbPing: dbPing, cachePing: cachePing}
}

// Live 存活探针
// GET /health
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready 就绪探针：数据库不可用返回 503，Redis 不可用仅降级
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	checks := gin.H{"database": "ok"}
	status := http.StatusOK

	if h.dbPing == nil {
		checks["database"] = "unconfigured"
		status = http.StatusServiceUnavailable
	} else if err := h.dbPing(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	switch {
	case h.cachePing == nil:
		checks["redis"] = "disabled"
	default:
		if err := h.cachePing(ctx); err != nil {
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}
