package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fin-research-api/internal/infrastructure/persistence/milvus"
	"fin-research-api/internal/infrastructure/persistence/postgres"
	"fin-research-api/internal/infrastructure/persistence/redis"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	pg     *postgres.Client
	redis  *redis.Client
	milvus *milvus.Client
}

func NewHealthHandler(pg *postgres.Client, redisClient *redis.Client, milvusClient *milvus.Client) *HealthHandler {
	return &HealthHandler{
		pg:     pg,
		redis:  redisClient,
		milvus: milvusClient,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Live 存活检查接口
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready 就绪检查接口
// Postgres 与 Redis 为必需依赖，Milvus 故障只降级不影响就绪态
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]*readinessCheck{
		"postgres": {Status: "unknown"},
		"redis":    {Status: "unknown"},
		"milvus":   {Status: "disabled"},
	}

	ready := true
	ready = h.checkRequired(ctx, checks["postgres"], h.pgCheck()) && ready
	ready = h.checkRequired(ctx, checks["redis"], h.redisCheck()) && ready

	if h != nil && h.milvus != nil {
		check := &readinessCheck{Status: "unknown"}
		start := time.Now()
		err := h.milvus.HealthCheck(ctx)
		check.LatencyMs = time.Since(start).Milliseconds()
		if err != nil {
			check.Status = "degraded"
			check.Error = err.Error()
		} else {
			check.Status = "ok"
		}
		checks["milvus"] = check
	}

	resp := readinessResponse{Status: "ok", Checks: checks}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HealthHandler) pgCheck() func(context.Context) error {
	if h == nil || h.pg == nil {
		return nil
	}
	return h.pg.HealthCheck
}

func (h *HealthHandler) redisCheck() func(context.Context) error {
	if h == nil || h.redis == nil {
		return nil
	}
	return h.redis.HealthCheck
}

func (h *HealthHandler) checkRequired(ctx context.Context, check *readinessCheck, fn func(context.Context) error) bool {
	if fn == nil {
		check.Status = "missing"
		check.Error = "dependency not configured"
		return false
	}
	start := time.Now()
	err := fn(ctx)
	check.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		check.Status = "error"
		check.Error = err.Error()
		return false
	}
	check.Status = "ok"
	return true
}
